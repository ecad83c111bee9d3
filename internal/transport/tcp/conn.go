package tcp

import (
	"io"
	"net"
	"time"
)

// conn adapts a net.Conn to core.Conn with newline framing.
type conn struct {
	nc           net.Conn
	writeTimeout time.Duration
}

func newConn(nc net.Conn, writeTimeout time.Duration) *conn {
	return &conn{nc: nc, writeTimeout: writeTimeout}
}

func (c *conn) Send(line string) error {
	if c.writeTimeout > 0 {
		_ = c.nc.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	_, err := io.WriteString(c.nc, line+"\n")
	return err
}

func (c *conn) Close() error {
	return c.nc.Close()
}

func (c *conn) RemoteAddr() string {
	return c.nc.RemoteAddr().String()
}
