package main

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/cors"

	"github.com/sagarc03/switchboard"
	"github.com/sagarc03/switchboard/acl"
	"github.com/sagarc03/switchboard/auth"
	"github.com/sagarc03/switchboard/config"
	"github.com/sagarc03/switchboard/keybackend"
	"github.com/sagarc03/switchboard/telemetry"
)

const healthPath = "/healthz"

// app is a server assembled from configuration.
type app struct {
	server  *switchboard.Server
	metrics *telemetry.Metrics
	keys    *keybackend.MapSecretStore
}

func buildApp(cfg *config.Config, logger *slog.Logger) (*app, error) {
	settings, err := buildSettings(cfg, logger)
	if err != nil {
		return nil, err
	}

	server, err := switchboard.NewServer(settings, nil)
	if err != nil {
		return nil, err
	}
	a := &app{server: server}
	routes := server.Routes

	if err := routes.PreAuthentication.Static.Add(http.MethodGet, healthPath, handleHealth); err != nil {
		return nil, err
	}

	if err := addContentRoutes(routes, cfg.Content); err != nil {
		return nil, err
	}

	if cfg.CORS.Enabled {
		opts := cors.Options{
			AllowedOrigins:   cfg.CORS.AllowedOrigins,
			AllowedMethods:   cfg.CORS.AllowedMethods,
			AllowedHeaders:   cfg.CORS.AllowedHeaders,
			ExposedHeaders:   cfg.CORS.ExposedHeaders,
			AllowCredentials: cfg.CORS.AllowCredentials,
			MaxAge:           cfg.CORS.MaxAge,
		}
		routes.Preflight = switchboard.CORSPreflight(opts)
		routes.PreRouting = switchboard.CORSHeaders(opts)
	}

	if cfg.Auth.Mode != "none" {
		a.keys, err = keybackend.NewSecretStore(cfg.Auth.Keys)
		if err != nil {
			return nil, fmt.Errorf("load access keys: %w", err)
		}
		routes.AuthenticateRequest = auth.NewHook(auth.Config{
			Authenticators: authenticators(cfg.Auth, a.keys),
			PublicPaths:    cfg.Auth.PublicPaths,
			Logger:         logger,
		})
	}

	if cfg.Metrics.Enabled {
		a.metrics = telemetry.NewMetrics(&telemetry.Config{
			Logger:    logger,
			Namespace: cfg.Metrics.Namespace,
			Subsystem: "http",
		})
		a.metrics.Instrument(server)
		if cfg.Server.Listener == "native" {
			if err := routes.PreAuthentication.Static.Add(http.MethodGet, cfg.Metrics.Path, a.metrics.Handler()); err != nil {
				return nil, err
			}
		}
	}

	return a, nil
}

func buildSettings(cfg *config.Config, logger *slog.Logger) (*switchboard.Settings, error) {
	s := switchboard.NewSettings(cfg.Server.Host, cfg.Server.Port)
	s.KeepAlive = cfg.Server.KeepAlive
	s.IO = switchboard.IOSettings{
		BufferSize:         cfg.Server.BufferSize,
		MaxRequestBodySize: cfg.Server.MaxRequestBodySize,
		ReadTimeout:        cfg.Server.ReadTimeout,
		WriteTimeout:       cfg.Server.WriteTimeout,
		IdleTimeout:        cfg.Server.IdleTimeout,
	}
	for k, v := range cfg.Headers {
		s.Headers.DefaultHeaders[http.CanonicalHeaderKey(k)] = v
	}

	mode, err := acl.ParseMode(cfg.Access.Mode)
	if err != nil {
		return nil, err
	}
	manager := acl.NewManager(mode)
	if err := manager.PermitList.Update(cfg.Access.Permit); err != nil {
		return nil, fmt.Errorf("access permit list: %w", err)
	}
	if err := manager.DenyList.Update(cfg.Access.Deny); err != nil {
		return nil, fmt.Errorf("access deny list: %w", err)
	}
	s.AccessControl = manager
	s.DenyStatus = cfg.Access.DenyStatus

	s.Logger = logger
	if cfg.Log.Level == "debug" {
		s.Debug = switchboard.DebugSettings{AccessControl: true, Routing: true, Requests: true, Responses: true}
	}
	return s, nil
}

func addContentRoutes(routes *switchboard.Routes, cfg config.ContentConfig) error {
	for _, g := range []*switchboard.RoutingGroup{routes.PreAuthentication, routes.PostAuthentication} {
		if err := g.Content.SetBaseDirectory(cfg.BaseDirectory); err != nil {
			return err
		}
		if len(cfg.DefaultFiles) > 0 {
			g.Content.SetDefaultFiles(cfg.DefaultFiles...)
		}
	}
	for _, r := range cfg.Routes {
		g := routes.PostAuthentication
		if r.Public {
			g = routes.PreAuthentication
		}
		if err := g.Content.Add(r.Path, r.Directory); err != nil {
			return err
		}
	}
	return nil
}

func authenticators(cfg config.AuthConfig, store keybackend.SecretStore) []auth.Authenticator {
	basic := auth.NewBasic(store, cfg.Realm)
	presigned := auth.NewVerifier(cfg.Region, cfg.Service, store)

	switch cfg.Mode {
	case "basic":
		return []auth.Authenticator{basic}
	case "presigned":
		return []auth.Authenticator{presigned}
	default:
		return []auth.Authenticator{basic, presigned}
	}
}

func handleHealth(c *switchboard.Context) error {
	return switchboard.WriteJSON(c, http.StatusOK, map[string]string{"status": "ok"})
}
