package server

import (
	"context"
	"net/http"
	"strings"

	"wolweb/internal/appconfig"
	"wolweb/internal/store"
	"wolweb/pkg/httpx"
)

type ctxKey int

const ctxUser ctxKey = iota

// currentUser returns the authenticated identity from the request
// context, if any.
func currentUser(r *http.Request) *store.User {
	u, _ := r.Context().Value(ctxUser).(*store.User)
	return u
}

// withUser resolves the session cookie to a user row on every request.
// Looking the row up each time is what invalidates sessions of deleted
// accounts: a valid cookie for a missing row carries no identity.
func (s *Server) withUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if uid, ok := s.sessionUserID(r); ok {
			if u, err := s.store.Users.GetByID(r.Context(), uid); err == nil {
				r = r.WithContext(context.WithValue(r.Context(), ctxUser, &u))
			}
		}
		next.ServeHTTP(w, r)
	})
}

// requireAuth redirects browsers to /login and answers 401 on JSON
// routes.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if currentUser(r) == nil {
			if wantsJSON(r) {
				httpx.WriteError(w, http.StatusUnauthorized, "authentication required")
				return
			}
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireAdmin gates the admin subtree: settings mutation, user listing
// and user admin-flag/delete operations. The subtree disappears
// entirely when administration is disabled.
func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.settings.GetBool(appconfig.KeyAdminEnabled) {
			http.NotFound(w, r)
			return
		}
		u := currentUser(r)
		if u == nil {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		if !u.IsAdmin {
			s.log.Warn().Uint("user_id", u.ID).Str("path", r.URL.Path).Msg("non-admin hit admin route")
			s.renderError(w, r, http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireCSRF enforces the double-submit token on mutating form posts.
func (s *Server) requireCSRF(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			next.ServeHTTP(w, r)
			return
		}
		ck, err := r.Cookie(cookieCSRF)
		if err != nil || ck.Value == "" || r.PostFormValue("csrf_token") != ck.Value {
			s.renderError(w, r, http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func wantsJSON(r *http.Request) bool {
	return strings.HasSuffix(r.URL.Path, "/json") ||
		strings.Contains(r.Header.Get("Accept"), "application/json")
}
