package http

import (
	"context"
	"errors"
	stdhttp "net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/roomchat-server/internal/core"
	"github.com/vovakirdan/roomchat-server/internal/proto"
)

// WSOptions tune the WebSocket bridge.
type WSOptions struct {
	MaxLineBytes int
	WriteTimeout time.Duration
}

// WSHandler upgrades HTTP connections and bridges them to the hub.
// Each text frame is one protocol line in either direction.
type WSHandler struct {
	hub  *core.Hub
	opts WSOptions
	log  *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(hub *core.Hub, opts WSOptions, logger *zerolog.Logger) stdhttp.Handler {
	if opts.MaxLineBytes <= 0 {
		opts.MaxLineBytes = 4096
	}
	return &WSHandler{hub: hub, opts: opts, log: logger}
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	c.SetReadLimit(int64(h.opts.MaxLineBytes))

	// The request context ends when the handler returns, so the bridge owns its own.
	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	defer cancel()

	conn := &wsConn{c: c, ctx: ctx, writeTimeout: h.opts.WriteTimeout, remote: r.RemoteAddr}
	sess, err := h.hub.Connect(conn)
	if err != nil {
		h.log.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("rejecting ws connection")
		_ = conn.Send(proto.Notice("Server full."))
		_ = c.Close(websocket.StatusTryAgainLater, "server full")
		return
	}
	log := sess.Logger()
	log.Info().Str("transport", "ws").Msg("connection accepted")
	defer h.hub.Disconnect(ctx, sess)

	err = h.readLoop(ctx, c, sess)

	status := websocket.CloseStatus(err)
	switch {
	case err == nil, status == websocket.StatusNormalClosure, status == websocket.StatusGoingAway,
		errors.Is(err, context.Canceled):
		log.Info().Msg("connection closed")
		_ = c.Close(websocket.StatusNormalClosure, "closing")
	case status == websocket.StatusMessageTooBig:
		log.Warn().Int("max_line_bytes", h.opts.MaxLineBytes).Msg("line too long, closing connection")
	default:
		log.Info().Err(err).Msg("ws connection closed with error")
		_ = c.Close(websocket.StatusInternalError, "read error")
	}
}

func (h *WSHandler) readLoop(ctx context.Context, c *websocket.Conn, sess *core.Session) error {
	handshaken := false
	for {
		typ, data, err := c.Read(ctx)
		if err != nil {
			return err
		}
		if typ != websocket.MessageText {
			continue
		}
		// A frame carrying several lines is handled as that many lines.
		for _, line := range proto.SplitLines(string(data)) {
			if !handshaken {
				h.hub.Handshake(sess, line)
				handshaken = true
				continue
			}
			if line == "" {
				continue
			}
			h.hub.HandleLine(ctx, sess, line)
		}
	}
}

// wsConn adapts a WebSocket to core.Conn.
type wsConn struct {
	c            *websocket.Conn
	ctx          context.Context
	writeTimeout time.Duration
	remote       string
}

func (w *wsConn) Send(line string) error {
	ctx := w.ctx
	if w.writeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.writeTimeout)
		defer cancel()
	}
	return w.c.Write(ctx, websocket.MessageText, []byte(line))
}

func (w *wsConn) Close() error {
	return w.c.CloseNow()
}

func (w *wsConn) RemoteAddr() string {
	return w.remote
}
