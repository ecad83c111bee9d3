// Package tcp serves the newline-delimited chat protocol over raw TCP.
package tcp

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/roomchat-server/internal/core"
	"github.com/vovakirdan/roomchat-server/internal/proto"
)

// Options configure the listener.
type Options struct {
	Addr string
	// IdleTimeout closes connections that send nothing for this long. 0 disables it.
	IdleTimeout  time.Duration
	WriteTimeout time.Duration
	MaxLineBytes int
}

// Server accepts chat connections and feeds their lines to the hub.
type Server struct {
	hub  *core.Hub
	opts Options
	log  *zerolog.Logger

	mu       sync.Mutex
	listener net.Listener
	wg       sync.WaitGroup
}

// NewServer builds a TCP chat server.
func NewServer(hub *core.Hub, opts Options, logger *zerolog.Logger) *Server {
	if opts.MaxLineBytes <= 0 {
		opts.MaxLineBytes = 4096
	}
	return &Server{hub: hub, opts: opts, log: logger}
}

// ListenAndServe listens on opts.Addr and serves until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return fmt.Errorf("tcp: listen %s: %w", s.opts.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled or ln is closed.
// It returns nil on a clean stop.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	stop := context.AfterFunc(ctx, func() { _ = ln.Close() })
	defer stop()

	s.log.Info().Str("addr", ln.Addr().String()).Msg("chat listener started")
	for {
		nc, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.log.Error().Err(err).Msg("accept error")
			time.Sleep(50 * time.Millisecond)
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handle(ctx, nc)
		}()
	}
}

// Addr returns the bound address, or nil before Serve.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Wait blocks until every connection handler has returned or ctx expires.
func (s *Server) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Server) handle(ctx context.Context, nc net.Conn) {
	conn := newConn(nc, s.opts.WriteTimeout)
	defer conn.Close()

	sess, err := s.hub.Connect(conn)
	if err != nil {
		s.log.Warn().Err(err).Str("remote", conn.RemoteAddr()).Msg("rejecting connection")
		_ = conn.Send(proto.Notice("Server full."))
		return
	}
	log := sess.Logger()
	log.Info().Msg("connection accepted")

	// Leave notices and history writes must still happen during shutdown.
	defer s.hub.Disconnect(context.WithoutCancel(ctx), sess)

	sc := bufio.NewScanner(nc)
	sc.Buffer(make([]byte, 0, min(1024, s.opts.MaxLineBytes)), s.opts.MaxLineBytes)

	handshaken := false
	for {
		if s.opts.IdleTimeout > 0 {
			_ = nc.SetReadDeadline(time.Now().Add(s.opts.IdleTimeout))
		}
		if !sc.Scan() {
			break
		}
		line := strings.TrimRight(sc.Text(), "\r")
		if !handshaken {
			s.hub.Handshake(sess, line)
			handshaken = true
			continue
		}
		if line == "" {
			continue
		}
		s.hub.HandleLine(ctx, sess, line)
	}

	switch err := sc.Err(); {
	case err == nil, errors.Is(err, io.EOF), errors.Is(err, net.ErrClosed):
		log.Info().Msg("connection closed")
	case errors.Is(err, bufio.ErrTooLong):
		log.Warn().Int("max_line_bytes", s.opts.MaxLineBytes).Msg("line too long, closing connection")
	default:
		log.Info().Err(err).Msg("connection read ended")
	}
}
