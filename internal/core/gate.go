package core

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/roomchat-server/internal/auth"
	"github.com/vovakirdan/roomchat-server/internal/proto"
	"github.com/vovakirdan/roomchat-server/internal/store"
)

// AuthState is the login state of a session.
type AuthState int

const (
	StateUnauthenticated AuthState = iota
	// StateAuthenticated is terminal for the lifetime of the connection.
	StateAuthenticated
)

func (s AuthState) String() string {
	if s == StateAuthenticated {
		return "authenticated"
	}
	return "unauthenticated"
}

// Gate admits sessions through /login or /register and rejects everything
// else until then.
type Gate struct {
	accounts *auth.Service
	registry *Registry
	router   *Router
	log      *zerolog.Logger
}

// NewGate builds the login gate.
func NewGate(accounts *auth.Service, registry *Registry, router *Router, logger *zerolog.Logger) *Gate {
	return &Gate{
		accounts: accounts,
		registry: registry,
		router:   router,
		log:      logger,
	}
}

// State returns the session's current auth state.
func (g *Gate) State(s *Session) AuthState {
	if g.registry.Info(s).Authenticated {
		return StateAuthenticated
	}
	return StateUnauthenticated
}

// Handle processes one command from an unauthenticated session.
func (g *Gate) Handle(ctx context.Context, s *Session, cmd proto.Command) {
	if cmd.Kind != proto.CommandLogin && cmd.Kind != proto.CommandRegister {
		_ = s.Send(proto.Notice("Auth required. Use /login [u] [p] or /register [u] [p]."))
		return
	}
	if len(cmd.Args) != 2 {
		_ = s.Send(coreError(ErrCodeProtocol, "Please use /login [user] [pass] or /register [user] [pass]").Line())
		return
	}
	username, password := cmd.Args[0], cmd.Args[1]

	var (
		acc *store.Account
		err error
		ok  string
	)
	if cmd.Kind == proto.CommandLogin {
		acc, err = g.accounts.Login(ctx, username, password)
		ok = "Login successful."
	} else {
		acc, err = g.accounts.Register(ctx, username, password)
		ok = "Registered & Logged in."
	}
	if err != nil {
		g.reject(s, cmd, username, err)
		return
	}

	if !g.registry.Authenticate(s, acc.Username, store.RoomGeneral) {
		return
	}
	s.log.Info().Str("user", acc.Username).Str("via", cmd.Name).Msg("session authenticated")

	_ = s.Send(proto.Notice("%s", ok))
	g.router.Enter(ctx, s)
}

func (g *Gate) reject(s *Session, cmd proto.Command, username string, err error) {
	var msg string
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		msg = "Invalid credentials."
	case errors.Is(err, auth.ErrUserExists):
		msg = "Username taken."
	case errors.Is(err, auth.ErrInvalidUsername):
		msg = "Invalid username."
	case errors.Is(err, auth.ErrInvalidPassword):
		msg = "Invalid password."
	default:
		s.log.Error().Err(err).Str("user", username).Str("via", cmd.Name).Msg("auth failed")
	}
	ce := classify(err, msg)
	s.log.Debug().Str("user", username).Str("code", ce.Code).Str("via", cmd.Name).Msg("auth rejected")
	_ = s.Send(ce.Line())
}
