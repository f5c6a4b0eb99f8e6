package http

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/dynatos/pos-terminal/internal/api"
	"github.com/dynatos/pos-terminal/internal/app"
	"github.com/dynatos/pos-terminal/internal/domain"
	"github.com/dynatos/pos-terminal/internal/guard"
)

type AuthHandler struct {
	terminal *app.Terminal
	timeout  time.Duration
}

func NewAuthHandler(terminal *app.Terminal, timeout time.Duration) *AuthHandler {
	return &AuthHandler{
		terminal: terminal,
		timeout:  timeout,
	}
}

type CredentialsDTO struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (c CredentialsDTO) domain() domain.Credentials {
	return domain.Credentials{Username: strings.TrimSpace(c.Username), Password: c.Password}
}

type LoginResponseDTO struct {
	User     domain.Session `json:"user"`
	Redirect string         `json:"redirect"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req CredentialsDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "username and password are required")
		return
	}

	sess, err := h.terminal.Login(ctx, req.domain())
	if err != nil {
		var apiErr *api.Error
		if errors.As(err, &apiErr) && !apiErr.Temporary() {
			respondError(w, http.StatusUnauthorized, "invalid_credentials", "invalid username or password")
			return
		}
		handleError(w, r, err)
		return
	}

	// drawer state is re-derived for the new operator; /pos retries on failure
	if _, err := h.terminal.RefreshDrawer(ctx); err != nil {
		log.Printf("[%s] drawer refresh after login failed: %v", getRequestID(r), err)
	}

	respondJSON(w, http.StatusOK, LoginResponseDTO{User: sess, Redirect: guard.Home(sess.Role)})
}

// Logout clears everything the terminal holds and sends the client to login.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.terminal.Logout(ctx); err != nil {
		handleError(w, r, err)
		return
	}
	http.Redirect(w, r, guard.LoginPath, http.StatusSeeOther)
}
