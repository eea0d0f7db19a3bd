package server

import (
	"net/http"
	"time"

	"github.com/google/uuid"
)

const (
	cookieSession = "wolweb_session"
	cookieFlash   = "wolweb_flash"
	cookieCSRF    = "wolweb_csrf"

	sessionTTL  = 12 * time.Hour
	rememberTTL = 30 * 24 * time.Hour
)

type sessionClaims struct {
	UserID uint  `json:"uid"`
	Exp    int64 `json:"exp"`
}

// issueSession sets the session cookie for uid and rotates the CSRF
// token.
func (s *Server) issueSession(w http.ResponseWriter, uid uint, remember bool) error {
	ttl := sessionTTL
	if remember {
		ttl = rememberTTL
	}
	exp := time.Now().UTC().Add(ttl)
	val, err := s.codec.Encode(cookieSession, sessionClaims{UserID: uid, Exp: exp.Unix()})
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name: cookieSession, Value: val, Path: "/",
		HttpOnly: true, SameSite: http.SameSiteLaxMode, Expires: exp,
	})
	http.SetCookie(w, &http.Cookie{
		Name: cookieCSRF, Value: uuid.NewString(), Path: "/",
		HttpOnly: true, SameSite: http.SameSiteLaxMode, Expires: exp,
	})
	return nil
}

func (s *Server) clearSession(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{Name: cookieSession, Value: "", Path: "/", HttpOnly: true, SameSite: http.SameSiteLaxMode, MaxAge: -1})
	http.SetCookie(w, &http.Cookie{Name: cookieCSRF, Value: "", Path: "/", HttpOnly: true, SameSite: http.SameSiteLaxMode, MaxAge: -1})
}

// sessionUserID validates the session cookie and returns the user id.
func (s *Server) sessionUserID(r *http.Request) (uint, bool) {
	ck, err := r.Cookie(cookieSession)
	if err != nil {
		return 0, false
	}
	var claims sessionClaims
	if err := s.codec.Decode(cookieSession, ck.Value, &claims); err != nil {
		return 0, false
	}
	if claims.UserID == 0 || time.Now().UTC().Unix() > claims.Exp {
		return 0, false
	}
	return claims.UserID, true
}

// csrfToken returns the current CSRF token, issuing one when absent so
// unauthenticated forms (login, register) are covered too.
func (s *Server) csrfToken(w http.ResponseWriter, r *http.Request) string {
	if ck, err := r.Cookie(cookieCSRF); err == nil && ck.Value != "" {
		return ck.Value
	}
	token := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name: cookieCSRF, Value: token, Path: "/",
		HttpOnly: true, SameSite: http.SameSiteLaxMode,
	})
	return token
}

// Flash is a one-shot message rendered on the next page load.
type Flash struct {
	Level   string `json:"level"` // success, warning, danger
	Message string `json:"message"`
}

// flash appends a message to the flash cookie.
func (s *Server) flash(w http.ResponseWriter, r *http.Request, level, message string) {
	flashes := s.peekFlashes(r)
	flashes = append(flashes, Flash{Level: level, Message: message})
	val, err := s.codec.Encode(cookieFlash, flashes)
	if err != nil {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name: cookieFlash, Value: val, Path: "/",
		HttpOnly: true, SameSite: http.SameSiteLaxMode, MaxAge: 300,
	})
}

// takeFlashes returns pending messages and clears the cookie.
func (s *Server) takeFlashes(w http.ResponseWriter, r *http.Request) []Flash {
	flashes := s.peekFlashes(r)
	if len(flashes) > 0 {
		http.SetCookie(w, &http.Cookie{Name: cookieFlash, Value: "", Path: "/", HttpOnly: true, SameSite: http.SameSiteLaxMode, MaxAge: -1})
	}
	return flashes
}

func (s *Server) peekFlashes(r *http.Request) []Flash {
	ck, err := r.Cookie(cookieFlash)
	if err != nil {
		return nil
	}
	var flashes []Flash
	if err := s.codec.Decode(cookieFlash, ck.Value, &flashes); err != nil {
		return nil
	}
	return flashes
}
