// internal/handlers/user.go
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/jason-s-yu/wordrelay/internal/auth"
)

type loginRequest struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Admin bool   `json:"admin"`
}

// LoginHandler checks credentials against the user directory and sets the
// auth_token cookie.
//
// Request payload:
//
//	{
//	  "name": "alice",
//	  "password": "password"
//	}
//
// The token is returned in the body as well as in the cookie.
func (s *RoomServer) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request payload", http.StatusBadRequest)
		return
	}

	user, err := s.Users.Authenticate(req.Name, req.Password)
	switch {
	case errors.Is(err, auth.ErrBanned):
		http.Error(w, "account is banned", http.StatusForbidden)
		return
	case err != nil:
		if !errors.Is(err, auth.ErrInvalidCredentials) {
			s.Logger.WithError(err).WithField("name", req.Name).Warn("login failed")
		}
		http.Error(w, "authentication failed", http.StatusForbidden)
		return
	}

	token, err := auth.CreateJWT(user)
	if err != nil {
		s.Logger.WithError(err).Error("failed to sign token")
		http.Error(w, "failed to create token", http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    token,
		HttpOnly: true,
		Path:     "/",
		MaxAge:   int(s.TokenExpiry.Seconds()),
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, loginResponse{Token: token, ID: user.ID, Name: user.Name, Admin: user.IsAdmin()})
}
