package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/skyrun-game/skyrun/internal/common"
)

type registerRequest struct {
	Email            string `json:"email"`
	Password         string `json:"password"`
	SecurityQuestion string `json:"securityQuestion"`
	SecurityAnswer   string `json:"securityAnswer"`
}

type loginRequest struct {
	Email            string `json:"email"`
	Password         string `json:"password"`
	DeviceIdentifier string `json:"deviceIdentifier"`
}

type loginResponse struct {
	Message              string `json:"message"`
	RequiresVerification bool   `json:"requiresVerification"`
	UserID               string `json:"userId"`
}

type questionResponse struct {
	Question string `json:"question"`
	Message  string `json:"message"`
}

type verifyRequest struct {
	UserEmail        string `json:"userEmail"`
	DeviceIdentifier string `json:"deviceIdentifier"`
	SecurityAnswer   string `json:"securityAnswer"`
}

type verifyResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type progressResponse struct {
	Message    string         `json:"message"`
	BestScores map[string]int `json:"bestScores"`
}

// progressUpdateRequest keeps the historical shape: the score map arrives
// as a JSON-encoded string inside the JSON body.
type progressUpdateRequest struct {
	UserEmail  string `json:"userEmail"`
	BestScores string `json:"bestScores"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *HTTPServer) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error(context.Background(), "writing response", "error", err)
	}
}

func (s *HTTPServer) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, errorResponse{Error: msg})
}

func (s *HTTPServer) decode(w http.ResponseWriter, r *http.Request, into any) bool {
	if err := json.NewDecoder(r.Body).Decode(into); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// emailParam pulls the {email} segment; chi leaves it percent-escaped.
func emailParam(r *http.Request) string {
	v := chi.URLParam(r, "email")
	if u, err := url.PathUnescape(v); err == nil {
		return u
	}
	return v
}

func validEmail(email string) bool {
	at := strings.Index(email, "@")
	return at > 0 && at < len(email)-1
}

func (s *HTTPServer) handleRoot(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, messageResponse{Message: "ok"})
}

func (s *HTTPServer) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !s.decode(w, r, &req) {
		return
	}

	if !validEmail(req.Email) || req.Password == "" || req.SecurityQuestion == "" || req.SecurityAnswer == "" {
		s.writeError(w, http.StatusBadRequest, "email, password, security question and answer are required")
		return
	}

	_, err := s.userService.Register(r.Context(), req.Email, req.Password, req.SecurityQuestion, req.SecurityAnswer)
	if err != nil {
		if errors.Is(err, common.ErrEmailTaken) {
			s.writeError(w, http.StatusConflict, "email already registered")
			return
		}
		s.internalError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, messageResponse{Message: "user registered successfully"})
}

func (s *HTTPServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !s.decode(w, r, &req) {
		return
	}

	if req.Email == "" || req.Password == "" || req.DeviceIdentifier == "" {
		s.writeError(w, http.StatusBadRequest, "email, password and device identifier are required")
		return
	}

	result, err := s.userService.Login(r.Context(), req.Email, req.Password, req.DeviceIdentifier)
	if err != nil {
		if errors.Is(err, common.ErrorUnauthorized) {
			s.writeError(w, http.StatusUnauthorized, "invalid email or password")
			return
		}
		s.internalError(w, r, err)
		return
	}

	msg := "login successful"
	if result.RequiresVerification {
		msg = "device verification required"
	}
	s.writeJSON(w, http.StatusOK, loginResponse{
		Message:              msg,
		RequiresVerification: result.RequiresVerification,
		UserID:               result.UserID,
	})
}

func (s *HTTPServer) handleSecurityQuestion(w http.ResponseWriter, r *http.Request) {
	email := emailParam(r)

	question, err := s.userService.SecurityQuestion(r.Context(), email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.writeError(w, http.StatusNotFound, "user not found")
			return
		}
		s.internalError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, questionResponse{Question: question, Message: "security question retrieved"})
}

func (s *HTTPServer) handleVerifyDevice(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if !s.decode(w, r, &req) {
		return
	}

	if req.UserEmail == "" || req.DeviceIdentifier == "" || req.SecurityAnswer == "" {
		s.writeError(w, http.StatusBadRequest, "user email, device identifier and security answer are required")
		return
	}

	ok, err := s.userService.VerifyDevice(r.Context(), req.UserEmail, req.DeviceIdentifier, req.SecurityAnswer)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.writeError(w, http.StatusNotFound, "user not found")
			return
		}
		s.internalError(w, r, err)
		return
	}

	if !ok {
		s.writeJSON(w, http.StatusOK, verifyResponse{Success: false, Message: "incorrect security answer"})
		return
	}
	s.writeJSON(w, http.StatusOK, verifyResponse{Success: true, Message: "device verified successfully"})
}

func (s *HTTPServer) handleGetProgress(w http.ResponseWriter, r *http.Request) {
	email := emailParam(r)

	scores, err := s.progressService.BestScores(r.Context(), email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.writeError(w, http.StatusNotFound, "user not found")
			return
		}
		s.internalError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, progressResponse{Message: "progress retrieved", BestScores: scores})
}

func (s *HTTPServer) handleUpdateProgress(w http.ResponseWriter, r *http.Request) {
	var req progressUpdateRequest
	if !s.decode(w, r, &req) {
		return
	}

	if req.UserEmail == "" {
		s.writeError(w, http.StatusBadRequest, "user email is required")
		return
	}

	scores := map[string]int{}
	if req.BestScores != "" {
		if err := json.Unmarshal([]byte(req.BestScores), &scores); err != nil {
			s.writeError(w, http.StatusBadRequest, "bestScores is not valid JSON")
			return
		}
	}

	err := s.progressService.RaiseScores(r.Context(), req.UserEmail, scores)
	if err != nil {
		switch {
		case errors.Is(err, common.ErrorNotFound):
			s.writeError(w, http.StatusNotFound, "user not found")
		case errors.Is(err, common.ErrValidation):
			s.writeError(w, http.StatusBadRequest, err.Error())
		default:
			s.internalError(w, r, err)
		}
		return
	}

	s.writeJSON(w, http.StatusOK, messageResponse{Message: "progress updated"})
}

func (s *HTTPServer) internalError(w http.ResponseWriter, r *http.Request, err error) {
	s.logger.Error(r.Context(), "request failed", "path", r.URL.Path, "error", err)
	s.writeError(w, http.StatusInternalServerError, "internal server error")
}
