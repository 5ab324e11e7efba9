package main

import (
	"github.com/comigor/conner-go/internal/account"
	"github.com/comigor/conner-go/internal/config"
	"github.com/comigor/conner-go/internal/conversation"
	"github.com/comigor/conner-go/internal/gateway"
	"github.com/comigor/conner-go/internal/logger"
	"github.com/comigor/conner-go/internal/session"
	"github.com/comigor/conner-go/internal/store"
)

// app wires the store, registry, gateway and controller for one command.
type app struct {
	store    *store.Store
	registry *session.Registry
	gateway  gateway.Client
	ctrl     *conversation.Controller
	accounts *account.Service
}

func newApp(cfg *config.Config) *app {
	st := store.Open(cfg.Store.Path, store.WithMaxValueBytes(cfg.Store.MaxValueBytes))
	reg := session.NewRegistry(st, session.WithCap(cfg.Store.SessionCap))

	gw, err := gateway.Initialize(*cfg)
	if err != nil {
		logger.L.Warn("assistant gateway unavailable; replies will fall back to an apology", "error", err)
		gw = nil
	}

	return &app{
		store:    st,
		registry: reg,
		gateway:  gw,
		ctrl:     conversation.New(reg, st, gw),
		accounts: account.New(st),
	}
}

// Close releases the gateway's tool servers and the store.
func (a *app) Close() {
	if closer, ok := a.gateway.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			logger.L.Warn("gateway close failed", "error", err)
		}
	}
	if err := a.store.Close(); err != nil {
		logger.L.Warn("store close failed", "error", err)
	}
}
