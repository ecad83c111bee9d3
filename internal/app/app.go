package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/roomchat-server/internal/auth"
	"github.com/vovakirdan/roomchat-server/internal/config"
	"github.com/vovakirdan/roomchat-server/internal/core"
	"github.com/vovakirdan/roomchat-server/internal/groups"
	"github.com/vovakirdan/roomchat-server/internal/log"
	"github.com/vovakirdan/roomchat-server/internal/store"
	"github.com/vovakirdan/roomchat-server/internal/store/file"
	"github.com/vovakirdan/roomchat-server/internal/store/sqlite"
	"github.com/vovakirdan/roomchat-server/internal/transport/tcp"
	transporthttp "github.com/vovakirdan/roomchat-server/internal/transport/http"
)

// App wires together core and transport layers.
type App struct {
	chat            *tcp.Server
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	hub             *core.Hub
	store           store.Store
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	st, err := openStore(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	logger.Info().Str("backend", cfg.Storage.Backend).Msg("storage initialized")

	catalog, err := groups.Load(context.Background(), st, groups.Options{
		Capacity: cfg.MaxGroups,
		Policy:   groups.IDPolicy(cfg.Groups.IDPolicy),
	})
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("load groups: %w", err)
	}
	logger.Info().Int("groups", catalog.Len()).Msg("group catalog loaded")

	hasher, err := auth.NewHasher(cfg.Auth.PasswordHashing)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	jwtConfig := &auth.JWTConfig{
		Secret:   []byte(cfg.Auth.JWTSecret),
		Issuer:   cfg.Auth.JWTIssuer,
		Audience: cfg.Auth.JWTAudience,
		TTL:      cfg.Auth.TokenTTL,
	}
	authService := auth.NewService(st, hasher, jwtConfig)

	hub := core.NewHub(authService, catalog, st, core.Options{
		MaxClients:    cfg.MaxClients,
		ReplayDelay:   cfg.ReplayDelay,
		RatePerSecond: cfg.RateLimit.PerSecond,
		RateBurst:     cfg.RateLimit.Burst,
	}, log.Component(logger, "hub"))

	chat := tcp.NewServer(hub, tcp.Options{
		Addr:         cfg.Addr,
		IdleTimeout:  cfg.IdleTimeout,
		WriteTimeout: cfg.WriteTimeout,
		MaxLineBytes: cfg.MaxLineBytes,
	}, log.Component(logger, "tcp"))

	var server *stdhttp.Server
	if cfg.HTTPAddr != "" {
		server = transporthttp.NewServer(hub, authService, cfg, log.Component(logger, "http"))
	}

	return &App{
		chat:            chat,
		server:          server,
		shutdownTimeout: cfg.ShutdownTimeout,
		hub:             hub,
		store:           st,
		log:             logger,
	}, nil
}

func openStore(cfg config.StorageConfig) (store.Store, error) {
	switch cfg.Backend {
	case config.BackendSQLite:
		return sqlite.New(cfg.DatabasePath)
	default:
		return file.New(cfg.DataDir)
	}
}

// ChatAddr returns the bound chat listener address once Run has started it.
func (a *App) ChatAddr() net.Addr {
	return a.chat.Addr()
}

// Run starts the chat and HTTP listeners and blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	chatErr := make(chan error, 1)
	go func() {
		chatErr <- a.chat.ListenAndServe(ctx)
	}()

	serverErr := make(chan error, 1)
	if a.server != nil {
		go func() {
			a.log.Info().Str("addr", a.server.Addr).Msg("http listener started")
			if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
				serverErr <- err
				return
			}
			serverErr <- nil
		}()
	}

	var runErr error
	select {
	case err := <-chatErr:
		// The chat listener only returns early on a listen failure.
		runErr = err
		chatErr <- nil
	case err := <-serverErr:
		runErr = err
	case <-ctx.Done():
	}

	a.shutdown(cancel)
	if err := <-chatErr; err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

func (a *App) shutdown(cancel context.CancelFunc) {
	shutdownCtx, done := context.WithTimeout(context.Background(), a.shutdownTimeout)
	defer done()

	a.log.Info().Msg("shutting down")
	cancel()
	if a.server != nil {
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.log.Warn().Err(err).Msg("http shutdown")
		}
	}

	a.hub.CloseAll()
	if err := a.chat.Wait(shutdownCtx); err != nil {
		a.log.Warn().Err(err).Msg("chat connections did not drain before timeout")
	}
	a.cleanup()
}

// cleanup closes database and other resources.
func (a *App) cleanup() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}
