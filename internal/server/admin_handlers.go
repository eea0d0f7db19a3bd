package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"wolweb/internal/appconfig"
	"wolweb/internal/store"
)

func (s *Server) handleAdminPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "admin/admin.html", "Administration", viewData{
		Data: map[string]any{
			"AdminEnabled":        s.settings.GetBool(appconfig.KeyAdminEnabled),
			"RegistrationEnabled": s.settings.GetBool(appconfig.KeyRegistrationEnabled),
			"APIProto":            s.settings.Get(appconfig.KeyAPIProto),
			"APIHost":             s.settings.Get(appconfig.KeyAPIHost),
			"APIPort":             s.settings.Get(appconfig.KeyAPIPort),
			"APIKey":              s.settings.Get(appconfig.KeyAPIKey),
			"SSOClientID":         s.settings.Get(appconfig.KeySSOClientID),
			"SSOClientSecret":     s.settings.Get(appconfig.KeySSOClientSecret),
		},
	})
}

// handleAdminOptions flips the feature toggles. Disabling
// administration takes effect on the next request, locking the subtree
// for everyone including the caller.
func (s *Server) handleAdminOptions(w http.ResponseWriter, r *http.Request) {
	adminEnabled := r.PostFormValue("admin_enabled") != ""
	registrationEnabled := r.PostFormValue("registration_enabled") != ""
	if err := s.settings.SetBool(appconfig.KeyAdminEnabled, adminEnabled); err != nil {
		s.settingsError(w, r, err)
		return
	}
	if err := s.settings.SetBool(appconfig.KeyRegistrationEnabled, registrationEnabled); err != nil {
		s.settingsError(w, r, err)
		return
	}
	s.log.Info().Bool("admin_enabled", adminEnabled).Bool("registration_enabled", registrationEnabled).Msg("options changed")
	s.flash(w, r, "success", "Options updated.")
	http.Redirect(w, r, "/admin", http.StatusSeeOther)
}

func (s *Server) handleAdminAPI(w http.ResponseWriter, r *http.Request) {
	updates := map[string]string{
		appconfig.KeyAPIProto: r.PostFormValue("api_proto"),
		appconfig.KeyAPIHost:  r.PostFormValue("api_host"),
		appconfig.KeyAPIPort:  r.PostFormValue("api_port"),
		appconfig.KeyAPIKey:   r.PostFormValue("api_key"),
	}
	if proto := updates[appconfig.KeyAPIProto]; proto != "http" && proto != "https" {
		s.flash(w, r, "danger", "Protocol must be http or https.")
		http.Redirect(w, r, "/admin", http.StatusSeeOther)
		return
	}
	if _, err := strconv.ParseUint(updates[appconfig.KeyAPIPort], 10, 16); err != nil {
		s.flash(w, r, "danger", "API port must be a number.")
		http.Redirect(w, r, "/admin", http.StatusSeeOther)
		return
	}
	for key, value := range updates {
		if err := s.settings.Set(key, value); err != nil {
			s.settingsError(w, r, err)
			return
		}
	}
	s.log.Info().Msg("wake proxy settings changed")
	s.flash(w, r, "success", "API settings updated.")
	http.Redirect(w, r, "/admin", http.StatusSeeOther)
}

func (s *Server) handleAdminSSO(w http.ResponseWriter, r *http.Request) {
	if err := s.settings.Set(appconfig.KeySSOClientID, r.PostFormValue("sso_client_id")); err != nil {
		s.settingsError(w, r, err)
		return
	}
	if err := s.settings.Set(appconfig.KeySSOClientSecret, r.PostFormValue("sso_client_secret")); err != nil {
		s.settingsError(w, r, err)
		return
	}
	s.log.Info().Msg("sso settings changed")
	s.flash(w, r, "success", "SSO settings updated.")
	http.Redirect(w, r, "/admin", http.StatusSeeOther)
}

func (s *Server) settingsError(w http.ResponseWriter, r *http.Request, err error) {
	s.log.Error().Err(err).Msg("persisting settings")
	s.flash(w, r, "danger", "Error saving settings.")
	http.Redirect(w, r, "/admin", http.StatusSeeOther)
}

func (s *Server) handleAdminUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.store.Users.List(r.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("listing users")
		s.renderError(w, r, http.StatusInternalServerError)
		return
	}
	s.render(w, r, http.StatusOK, "admin/users.html", "Users", viewData{
		Data: map[string]any{"Users": users, "SuperuserID": store.SuperuserID},
	})
}

func (s *Server) handleAdminSetAdmin(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(r)
	if !ok {
		s.renderError(w, r, http.StatusNotFound)
		return
	}
	isAdmin, err := strconv.ParseBool(r.PostFormValue("is_admin"))
	if err != nil {
		s.flash(w, r, "danger", "Admin flag must be true or false.")
		http.Redirect(w, r, "/admin/users", http.StatusSeeOther)
		return
	}

	switch err := s.store.Users.SetAdmin(r.Context(), id, isAdmin); {
	case errors.Is(err, store.ErrForbiddenOperation):
		s.flash(w, r, "warning", "Forbidden: the superuser's admin status cannot change.")
	case errors.Is(err, store.ErrNotFound):
		s.renderError(w, r, http.StatusNotFound)
		return
	case err != nil:
		s.log.Error().Err(err).Msg("setting admin flag")
		s.flash(w, r, "danger", "Error changing admin status.")
	default:
		s.log.Info().Uint("user_id", id).Bool("is_admin", isAdmin).Msg("admin flag changed")
		s.flash(w, r, "success", "Admin status changed.")
	}
	http.Redirect(w, r, "/admin/users", http.StatusSeeOther)
}

func (s *Server) handleAdminDeleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(r)
	if !ok {
		s.renderError(w, r, http.StatusNotFound)
		return
	}

	actor := currentUser(r)
	switch err := s.store.Users.Delete(r.Context(), id); {
	case errors.Is(err, store.ErrForbiddenOperation):
		s.flash(w, r, "warning", "Forbidden: the superuser cannot be deleted.")
	case errors.Is(err, store.ErrNotFound):
		s.renderError(w, r, http.StatusNotFound)
		return
	case err != nil:
		s.log.Error().Err(err).Msg("deleting user")
		s.flash(w, r, "danger", "Error deleting user.")
	default:
		s.log.Info().Uint("user_id", id).Msg("user deleted")
		if actor.ID == id {
			// Self deletion: the session cookie no longer resolves to a
			// row, so the actor is logged out from here on.
			s.clearSession(w)
			s.flash(w, r, "warning", "You deleted your own account and have been logged out.")
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		s.flash(w, r, "success", "User deleted.")
	}
	http.Redirect(w, r, "/admin/users", http.StatusSeeOther)
}

func userID(r *http.Request) (uint, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "userID"), 10, 32)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}
