package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/skyrun-game/skyrun/internal/common"
)

// DefaultTimeout bounds every remote call that arrives without a deadline.
const DefaultTimeout = 5 * time.Second

// HTTPGateway implements Gateway against the JSON/HTTP account service.
type HTTPGateway struct {
	baseURL string
	client  *http.Client
	timeout time.Duration
}

type HTTPOption func(*HTTPGateway)

// WithTimeout overrides the per-call deadline applied when the caller's
// context has none.
func WithTimeout(d time.Duration) HTTPOption {
	return func(g *HTTPGateway) { g.timeout = d }
}

// WithHTTPClient substitutes the underlying *http.Client (tests).
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(g *HTTPGateway) { g.client = c }
}

func NewHTTPGateway(baseURL string, opts ...HTTPOption) *HTTPGateway {
	g := &HTTPGateway{
		baseURL: baseURL,
		client:  &http.Client{},
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// withDeadline derives a bounded context when the caller did not set one.
func (g *HTTPGateway) withDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, g.timeout)
}

// errorBody is the server's structured rejection shape.
type errorBody struct {
	Error string `json:"error"`
}

// do performs one exchange and decodes a 2xx body into out (when non-nil).
func (g *HTTPGateway) do(ctx context.Context, method, path string, in, out any) error {
	ctx, cancel := g.withDeadline(ctx)
	defer cancel()

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrTransport, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: reading body: %v", common.ErrTransport, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var eb errorBody
		if err := json.Unmarshal(data, &eb); err == nil && eb.Error != "" {
			return &common.DomainError{Code: resp.Status, Message: eb.Error}
		}
		return &common.DomainError{Code: resp.Status, Message: http.StatusText(resp.StatusCode)}
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("%w: %v", common.ErrDecode, err)
		}
	}
	return nil
}

func (g *HTTPGateway) Register(ctx context.Context, req RegisterRequest) error {
	return g.do(ctx, http.MethodPost, "/api/register", req, nil)
}

func (g *HTTPGateway) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	var resp LoginResponse
	if err := g.do(ctx, http.MethodPost, "/api/login", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (g *HTTPGateway) GetSecurityQuestion(ctx context.Context, email string) (*SecurityQuestion, error) {
	var resp SecurityQuestion
	path := "/api/security-question/" + url.PathEscape(email)
	if err := g.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (g *HTTPGateway) VerifyDevice(ctx context.Context, req VerifyDeviceRequest) (*VerifyDeviceResponse, error) {
	var resp VerifyDeviceResponse
	if err := g.do(ctx, http.MethodPost, "/api/verify-device", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// progressResponse carries the remote best-score map.
type progressResponse struct {
	Message    string         `json:"message"`
	BestScores map[string]int `json:"bestScores"`
}

// progressUpdate mirrors the historical wire shape: the score map travels
// as a JSON-encoded string inside the JSON body.
type progressUpdate struct {
	UserEmail  string `json:"userEmail"`
	BestScores string `json:"bestScores"`
}

func (g *HTTPGateway) GetProgress(ctx context.Context, userEmail string) (map[string]int, error) {
	var resp progressResponse
	path := "/api/progress/" + url.PathEscape(userEmail)
	if err := g.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	if resp.BestScores == nil {
		return map[string]int{}, nil
	}
	return resp.BestScores, nil
}

func (g *HTTPGateway) UpdateProgress(ctx context.Context, userEmail string, bestScores map[string]int) error {
	encoded, err := json.Marshal(bestScores)
	if err != nil {
		return fmt.Errorf("encoding scores: %w", err)
	}
	req := progressUpdate{UserEmail: userEmail, BestScores: string(encoded)}
	return g.do(ctx, http.MethodPost, "/api/progress", req, nil)
}

// Ping hits the service root; any 2xx means reachable.
func (g *HTTPGateway) Ping(ctx context.Context) error {
	return g.do(ctx, http.MethodGet, "/", nil, nil)
}
