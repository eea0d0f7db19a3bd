package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"wolweb/internal/appconfig"
	"wolweb/internal/store"
	"wolweb/internal/validate"
	"wolweb/internal/wol"
	"wolweb/pkg/httpx"
)

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	s.renderHostsPage(w, r, http.StatusOK, "index.html", "Home", nil, nil)
}

func (s *Server) handleHostsPage(w http.ResponseWriter, r *http.Request) {
	s.renderHostsPage(w, r, http.StatusOK, "hosts.html", "Edit hosts", nil, nil)
}

func (s *Server) renderHostsPage(w http.ResponseWriter, r *http.Request, status int, page, title string, form, fieldErrors map[string]string) {
	u := currentUser(r)
	hosts, err := s.store.Hosts.ListByOwner(r.Context(), u.ID)
	if err != nil {
		s.log.Error().Err(err).Msg("listing hosts")
		s.renderError(w, r, http.StatusInternalServerError)
		return
	}
	if form == nil {
		form = map[string]string{}
	}
	s.render(w, r, status, page, title, viewData{
		Form:   form,
		Errors: fieldErrors,
		Data:   map[string]any{"Hosts": hosts},
	})
}

// hostForm pulls the descriptor fields out of a submitted form.
func hostForm(r *http.Request) (store.HostDescriptor, map[string]string, error) {
	form := map[string]string{
		"name":       r.PostFormValue("name"),
		"macaddress": r.PostFormValue("macaddress"),
		"port":       r.PostFormValue("port"),
		"ipaddress":  r.PostFormValue("ipaddress"),
		"interface":  r.PostFormValue("interface"),
	}
	d := store.HostDescriptor{
		Name:       form["name"],
		MACAddress: form["macaddress"],
		IPAddress:  form["ipaddress"],
		Interface:  form["interface"],
	}
	if v := form["port"]; v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return d, form, &validate.FieldError{Field: "port", Message: "must be a number"}
		}
		d.Port = port
	}
	return d, form, nil
}

func (s *Server) handleHostCreate(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)
	d, form, err := hostForm(r)
	if err == nil {
		_, err = s.store.Hosts.Create(r.Context(), u.ID, d)
	}
	if err != nil {
		s.renderHostMutationError(w, r, "index.html", "Home", "/", form, err)
		return
	}
	s.flash(w, r, "success", "Host added.")
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleHostUpdate(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)
	id, ok := hostID(r)
	if !ok {
		s.renderError(w, r, http.StatusNotFound)
		return
	}
	d, form, err := hostForm(r)
	if err == nil {
		err = s.store.Hosts.Update(r.Context(), id, u.ID, d)
	}
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.renderError(w, r, http.StatusNotFound)
			return
		}
		s.renderHostMutationError(w, r, "hosts.html", "Edit hosts", "/hosts", form, err)
		return
	}
	s.flash(w, r, "success", "Host updated.")
	http.Redirect(w, r, "/hosts", http.StatusSeeOther)
}

func (s *Server) renderHostMutationError(w http.ResponseWriter, r *http.Request, page, title, redirect string, form map[string]string, err error) {
	var fe *validate.FieldError
	switch {
	case errors.As(err, &fe):
		s.renderHostsPage(w, r, http.StatusUnprocessableEntity, page, title, form, map[string]string{fe.Field: fe.Message})
	case errors.Is(err, store.ErrDuplicateHost):
		s.flash(w, r, "warning", "Host configuration already exists, skipping.")
		http.Redirect(w, r, redirect, http.StatusSeeOther)
	default:
		s.log.Error().Err(err).Msg("persisting host")
		s.renderError(w, r, http.StatusInternalServerError)
	}
}

func (s *Server) handleHostDelete(w http.ResponseWriter, r *http.Request) {
	host, ok := s.ownedHost(w, r)
	if !ok {
		return
	}
	if err := s.store.Hosts.Delete(r.Context(), host.ID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.renderError(w, r, http.StatusNotFound)
			return
		}
		s.log.Error().Err(err).Msg("deleting host")
		s.renderError(w, r, http.StatusInternalServerError)
		return
	}
	s.flash(w, r, "success", "Host removed.")
	http.Redirect(w, r, "/hosts", http.StatusSeeOther)
}

func (s *Server) handleHostJSON(w http.ResponseWriter, r *http.Request) {
	host, ok := s.ownedHost(w, r)
	if !ok {
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"id":         host.ID,
		"name":       host.Name,
		"macaddress": host.MACAddress,
		"port":       host.Port,
		"ipaddress":  host.IPAddress,
		"interface":  host.Interface,
		"user_id":    host.UserID,
	})
}

func (s *Server) handleHostWake(w http.ResponseWriter, r *http.Request) {
	host, ok := s.ownedHost(w, r)
	if !ok {
		return
	}

	outcome, err := s.wol.Dispatch(r.Context(), host,
		s.settings.Get(appconfig.KeyAPIKey), s.settings.WakeProxyURL())
	s.metrics.observeWake(outcome.String())
	switch outcome {
	case wol.Sent:
		s.flash(w, r, "success", "Wake-on-LAN packet sent to "+host.Name+".")
	default:
		s.log.Warn().Err(err).Str("outcome", outcome.String()).Str("host", host.Name).Msg("wake dispatch failed")
		s.flash(w, r, "warning", "Error sending wake-on-LAN packet to "+host.Name+".")
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// ownedHost loads the addressed host and enforces owner-only access.
// Hosts of other users read as 404: admins get no override, and the
// response does not reveal that the row exists.
func (s *Server) ownedHost(w http.ResponseWriter, r *http.Request) (store.Host, bool) {
	u := currentUser(r)
	id, ok := hostID(r)
	if !ok {
		s.notFound(w, r)
		return store.Host{}, false
	}
	host, err := s.store.Hosts.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.notFound(w, r)
			return store.Host{}, false
		}
		s.log.Error().Err(err).Msg("loading host")
		s.renderError(w, r, http.StatusInternalServerError)
		return store.Host{}, false
	}
	if host.UserID != u.ID {
		s.notFound(w, r)
		return store.Host{}, false
	}
	return host, true
}

func (s *Server) notFound(w http.ResponseWriter, r *http.Request) {
	if wantsJSON(r) {
		httpx.WriteError(w, http.StatusNotFound, "host not found")
		return
	}
	s.renderError(w, r, http.StatusNotFound)
}

func hostID(r *http.Request) (uint, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "hostID"), 10, 32)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}
