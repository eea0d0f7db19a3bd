package server

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"wolweb/internal/appconfig"
	"wolweb/internal/store"
	"wolweb/internal/validate"
)

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	if currentUser(r) != nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	s.render(w, r, http.StatusOK, "login.html", "Sign In", viewData{Form: map[string]string{}})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	username := r.PostFormValue("username")
	password := r.PostFormValue("password")
	remember := r.PostFormValue("remember_me") != ""

	ipKey := "ip:" + clientIP(r)
	userKey := "user:" + username
	for _, key := range []string{ipKey, userKey} {
		if ok, resetAt := s.limiter.Allow(key, s.cfg.LoginRateLimit, s.cfg.LoginRateWindow); !ok {
			retry := int(time.Until(resetAt).Seconds()) + 1
			s.log.Warn().Str("key", key).Msg("login throttled")
			w.Header().Set("Retry-After", fmt.Sprintf("%d", retry))
			s.render(w, r, http.StatusTooManyRequests, "login.html", "Sign In", viewData{
				Form:   map[string]string{"username": username},
				Errors: map[string]string{"login": "Too many login attempts, try again later."},
			})
			return
		}
	}

	uid, err := s.store.Users.Authenticate(r.Context(), username, password)
	if err != nil {
		if !errors.Is(err, store.ErrAuthFailure) {
			s.log.Error().Err(err).Msg("authenticating user")
		}
		s.render(w, r, http.StatusUnauthorized, "login.html", "Sign In", viewData{
			Form:   map[string]string{"username": username},
			Errors: map[string]string{"login": "Invalid username or password."},
		})
		return
	}

	s.limiter.Reset(userKey)
	if err := s.issueSession(w, uid, remember); err != nil {
		s.log.Error().Err(err).Msg("encoding session cookie")
		s.renderError(w, r, http.StatusInternalServerError)
		return
	}
	s.log.Info().Uint("user_id", uid).Msg("user logged in")
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.clearSession(w)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func (s *Server) handleRegisterPage(w http.ResponseWriter, r *http.Request) {
	if currentUser(r) != nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	if !s.settings.GetBool(appconfig.KeyRegistrationEnabled) {
		s.renderError(w, r, http.StatusForbidden)
		return
	}
	s.render(w, r, http.StatusOK, "register.html", "Register", viewData{Form: map[string]string{}})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if !s.settings.GetBool(appconfig.KeyRegistrationEnabled) {
		s.renderError(w, r, http.StatusForbidden)
		return
	}

	form := map[string]string{
		"username": r.PostFormValue("username"),
		"email":    r.PostFormValue("email"),
	}
	password := r.PostFormValue("password")
	if password != r.PostFormValue("password_confirm") {
		s.render(w, r, http.StatusUnprocessableEntity, "register.html", "Register", viewData{
			Form:   form,
			Errors: map[string]string{"password_confirm": "passwords do not match"},
		})
		return
	}

	uid, err := s.store.Users.Register(r.Context(), form["username"], form["email"], password)
	if err != nil {
		status := http.StatusUnprocessableEntity
		fieldErrors := map[string]string{}
		var fe *validate.FieldError
		switch {
		case errors.As(err, &fe):
			fieldErrors[fe.Field] = fe.Message
		case errors.Is(err, store.ErrDuplicateUsername):
			fieldErrors["username"] = "already taken"
			status = http.StatusConflict
		case errors.Is(err, store.ErrDuplicateEmail):
			fieldErrors["email"] = "already registered"
			status = http.StatusConflict
		default:
			s.log.Error().Err(err).Msg("registering user")
			s.renderError(w, r, http.StatusInternalServerError)
			return
		}
		s.render(w, r, status, "register.html", "Register", viewData{Form: form, Errors: fieldErrors})
		return
	}

	s.log.Info().Uint("user_id", uid).Msg("user registered")
	s.flash(w, r, "success", "You are registered.")
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// clientIP trusts the RealIP middleware, which already folded
// X-Forwarded-For into RemoteAddr.
func clientIP(r *http.Request) string {
	host := r.RemoteAddr
	for i := len(host) - 1; i >= 0; i-- {
		if host[i] == ':' {
			return host[:i]
		}
	}
	return host
}
