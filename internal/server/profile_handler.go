package server

import (
	"errors"
	"net/http"

	"wolweb/internal/store"
	"wolweb/internal/validate"
)

func (s *Server) handleProfilePage(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)
	s.render(w, r, http.StatusOK, "user.html", "Edit Profile", viewData{
		Form: map[string]string{"username": u.Username, "email": u.Email},
	})
}

func (s *Server) handleProfileUpdate(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)
	form := map[string]string{
		"username": r.PostFormValue("username"),
		"email":    r.PostFormValue("email"),
	}
	password := r.PostFormValue("password")

	if password != "" && password != r.PostFormValue("password_confirm") {
		s.render(w, r, http.StatusUnprocessableEntity, "user.html", "Edit Profile", viewData{
			Form:   form,
			Errors: map[string]string{"password_confirm": "passwords do not match"},
		})
		return
	}

	err := s.store.Users.UpdateProfile(r.Context(), u.ID, form["username"], form["email"])
	if err == nil && password != "" {
		err = s.store.Users.SetPassword(r.Context(), u.ID, password)
	}
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
			s.log.Error().Err(err).Msg("updating profile")
			s.renderError(w, r, http.StatusInternalServerError)
			return
		}
		s.render(w, r, status, "user.html", "Edit Profile", viewData{Form: form, Errors: fieldErrors})
		return
	}

	s.flash(w, r, "success", "Profile updated.")
	http.Redirect(w, r, "/user", http.StatusSeeOther)
}

func (s *Server) handleAboutPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "about.html", "About", viewData{})
}
