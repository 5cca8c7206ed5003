// Package di assembles the service from configuration using Wire.
package di

import (
	"reflect"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/wuzhiguocarter/Aletheia/internal/config"
	"github.com/wuzhiguocarter/Aletheia/internal/observability"
	"github.com/wuzhiguocarter/Aletheia/internal/persona"
	"github.com/wuzhiguocarter/Aletheia/internal/workspace"
)

// Container holds the wired service.
type Container struct {
	Config    *config.Config
	Logger    *zap.Logger
	Router    *chi.Mux
	Workspace *workspace.Workspace
	Watcher   *config.Watcher
	Metrics   *observability.Collector

	responder *persona.Swappable
}

// GetRouter returns the HTTP handler.
func (c *Container) GetRouter() *chi.Mux { return c.Router }

func provideContainer(
	cfg *config.Config,
	logger *zap.Logger,
	router *chi.Mux,
	ws *workspace.Workspace,
	watcher *config.Watcher,
	responder *persona.Swappable,
	metrics *observability.Collector,
) *Container {
	c := &Container{
		Config:    cfg,
		Logger:    logger,
		Router:    router,
		Workspace: ws,
		Watcher:   watcher,
		Metrics:   metrics,
		responder: responder,
	}
	watcher.OnChange(c.applyReload)
	return c
}

// applyReload installs the settings that can change without a restart:
// the persona backend and the default export audience.
func (c *Container) applyReload(old, next *config.Config) {
	if !reflect.DeepEqual(old.Persona, next.Persona) {
		r, err := persona.New(next.Persona)
		if err != nil {
			c.Logger.Error("keeping previous persona backend", zap.Error(err))
		} else {
			c.responder.Swap(r)
			c.Logger.Info("persona backend reloaded",
				zap.String("backend", string(next.Persona.Backend)),
				zap.String("model", next.Persona.Model),
			)
		}
	}
	if old.Workspace.DefaultAudience != next.Workspace.DefaultAudience {
		c.Workspace.SetDefaultAudience(next.Workspace.DefaultAudience)
		c.Logger.Info("default audience reloaded", zap.String("audience", next.Workspace.DefaultAudience))
	}
	if old.Gateway != next.Gateway || old.Server != next.Server {
		c.Logger.Warn("gateway and server settings take effect after a restart")
	}
}
