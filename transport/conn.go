package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/w1xm/ioptron_interface/ioptron"
)

var (
	_ ioptron.Transport = (*Conn)(nil)
	_ ioptron.Transport = (*Serial)(nil)
)

// purgeWindow is how long Purge waits for stale bytes to arrive.
const purgeWindow = 5 * time.Millisecond

// Conn carries the protocol over a stream connection, such as a WiFi
// serial bridge or the simulator's pipe.
type Conn struct {
	conn net.Conn
}

func NewConn(conn net.Conn) *Conn {
	return &Conn{conn: conn}
}

// Dial connects to a TCP serial bridge at addr.
func Dial(ctx context.Context, addr string) (*Conn, error) {
	dialer := &net.Dialer{
		Timeout: time.Second,
	}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("opening %q: %w", addr, err)
	}
	return NewConn(conn), nil
}

func (c *Conn) Write(p []byte) (int, error) {
	return c.conn.Write(p)
}

// ReadExact reads until p is full or timeout elapses.
func (c *Conn) ReadExact(p []byte, timeout time.Duration) (int, error) {
	if err := c.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return 0, err
	}
	n, err := io.ReadFull(c.conn, p)
	if err != nil && !errors.Is(err, os.ErrDeadlineExceeded) {
		return n, err
	}
	return n, nil
}

func (c *Conn) Flush() error {
	return nil
}

// Purge discards any input that arrives within purgeWindow.
func (c *Conn) Purge() error {
	var buf [64]byte
	for {
		if err := c.conn.SetReadDeadline(time.Now().Add(purgeWindow)); err != nil {
			return err
		}
		if _, err := c.conn.Read(buf[:]); err != nil {
			if errors.Is(err, os.ErrDeadlineExceeded) {
				return nil
			}
			return err
		}
	}
}

func (c *Conn) Close() error {
	return c.conn.Close()
}
