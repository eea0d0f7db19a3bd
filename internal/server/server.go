// Package server wires the HTTP surface: routing, sessions, templates
// and the handlers orchestrating the store, settings and wake dispatch.
package server

import (
	"github.com/gorilla/securecookie"
	"github.com/rs/zerolog"

	"wolweb/internal/appconfig"
	"wolweb/internal/config"
	"wolweb/internal/ratelimit"
	"wolweb/internal/store"
	"wolweb/internal/wol"
)

// Server carries the collaborators every handler needs. Identity is
// always taken from the request context, never from a global.
type Server struct {
	cfg      config.Config
	store    *store.Store
	settings *appconfig.Store
	wol      *wol.Dispatcher
	limiter  *ratelimit.Store
	codec    *securecookie.SecureCookie
	views    *views
	metrics  *metrics
	log      zerolog.Logger
}

// New assembles a server from its collaborators.
func New(cfg config.Config, st *store.Store, settings *appconfig.Store, dispatcher *wol.Dispatcher, limiter *ratelimit.Store, log zerolog.Logger) (*Server, error) {
	v, err := newViews()
	if err != nil {
		return nil, err
	}
	codec := securecookie.New(cfg.SessionHashKey, cfg.SessionBlockKey)
	codec.SetSerializer(securecookie.JSONEncoder{})
	return &Server{
		cfg:      cfg,
		store:    st,
		settings: settings,
		wol:      dispatcher,
		limiter:  limiter,
		codec:    codec,
		views:    v,
		metrics:  newMetrics(),
		log:      log,
	}, nil
}
