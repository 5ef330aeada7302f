package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/skyrun-game/skyrun/internal/common"
)

func TestLogin(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		var gotPath string
		var gotBody LoginRequest

		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			body, _ := io.ReadAll(r.Body)
			_ = json.Unmarshal(body, &gotBody)
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"message":"ok","requiresVerification":true,"userId":"alice@x.com"}`))
		}))
		defer ts.Close()

		g := NewHTTPGateway(ts.URL)
		resp, err := g.Login(context.Background(), LoginRequest{
			Email: "alice@x.com", Password: "pw", DeviceIdentifier: "D1",
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if gotPath != "/api/login" {
			t.Fatalf("path = %q, want /api/login", gotPath)
		}
		if gotBody.DeviceIdentifier != "D1" {
			t.Fatalf("deviceIdentifier = %q, want D1", gotBody.DeviceIdentifier)
		}
		if !resp.RequiresVerification {
			t.Fatal("expected requiresVerification=true")
		}
	})

	t.Run("domain error from error body", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"invalid credentials"}`))
		}))
		defer ts.Close()

		g := NewHTTPGateway(ts.URL)
		_, err := g.Login(context.Background(), LoginRequest{Email: "a@x.com", Password: "bad"})
		de, ok := common.AsDomainError(err)
		if !ok {
			t.Fatalf("want DomainError, got %v", err)
		}
		if de.Message != "invalid credentials" {
			t.Fatalf("message = %q", de.Message)
		}
	})

	t.Run("decode error on malformed 2xx body", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`not json`))
		}))
		defer ts.Close()

		g := NewHTTPGateway(ts.URL)
		_, err := g.Login(context.Background(), LoginRequest{Email: "a@x.com", Password: "pw"})
		if !errors.Is(err, common.ErrDecode) {
			t.Fatalf("want ErrDecode, got %v", err)
		}
	})

	t.Run("transport error on closed server", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		ts.Close()

		g := NewHTTPGateway(ts.URL)
		_, err := g.Login(context.Background(), LoginRequest{Email: "a@x.com", Password: "pw"})
		if !errors.Is(err, common.ErrTransport) {
			t.Fatalf("want ErrTransport, got %v", err)
		}
	})
}

func TestGetProgress(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/progress/bob@x.com" {
			t.Errorf("path = %q", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"message":"ok","bestScores":{"Level1":42,"Level2":7}}`))
	}))
	defer ts.Close()

	g := NewHTTPGateway(ts.URL)
	scores, err := g.GetProgress(context.Background(), "bob@x.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if scores["Level1"] != 42 || scores["Level2"] != 7 {
		t.Fatalf("scores = %v", scores)
	}
}

func TestGetProgressEmptyRemote(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"message":"no progress yet"}`))
	}))
	defer ts.Close()

	g := NewHTTPGateway(ts.URL)
	scores, err := g.GetProgress(context.Background(), "bob@x.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if scores == nil || len(scores) != 0 {
		t.Fatalf("want empty map, got %v", scores)
	}
}

func TestUpdateProgressEncodesScoreMapAsString(t *testing.T) {
	var got progressUpdate

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		_, _ = w.Write([]byte(`{"message":"updated"}`))
	}))
	defer ts.Close()

	g := NewHTTPGateway(ts.URL)
	err := g.UpdateProgress(context.Background(), "bob@x.com", map[string]int{"Level1": 9})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.UserEmail != "bob@x.com" {
		t.Fatalf("userEmail = %q", got.UserEmail)
	}
	var decoded map[string]int
	if err := json.Unmarshal([]byte(got.BestScores), &decoded); err != nil {
		t.Fatalf("bestScores not a JSON-encoded object: %v", err)
	}
	if decoded["Level1"] != 9 {
		t.Fatalf("decoded = %v", decoded)
	}
}

func TestPingAppliesDefaultDeadline(t *testing.T) {
	blocked := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-blocked
	}))
	defer ts.Close()
	defer close(blocked)

	g := NewHTTPGateway(ts.URL, WithTimeout(50*time.Millisecond))

	start := time.Now()
	err := g.Ping(context.Background())
	if !errors.Is(err, common.ErrTransport) {
		t.Fatalf("want ErrTransport, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("ping took %v, deadline not applied", elapsed)
	}
}
