package session

import (
	"context"
	"net"
	"time"
)

// Transport is the minimal datagram socket surface Session needs.
// Implemented by *UDPTransport for real use and faked in tests.
type Transport interface {
	Send(ctx context.Context, data []byte) error
	Receive(ctx context.Context) ([]byte, error)
	Close() error
}

// UDPTransport is a Transport over a real UDP socket, matching the
// source's socket.settimeout(SOCKET_TIMEOUT)/sendto/recv pair.
type UDPTransport struct {
	conn    *net.UDPConn
	timeout time.Duration
}

// DialUDP opens a UDP socket to addr with the given per-receive
// timeout.
func DialUDP(addr string, timeout time.Duration) (*UDPTransport, error) {
	raddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, err
	}
	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		return nil, err
	}
	return &UDPTransport{conn: conn, timeout: timeout}, nil
}

func (t *UDPTransport) Send(ctx context.Context, data []byte) error {
	if dl, ok := ctx.Deadline(); ok {
		_ = t.conn.SetWriteDeadline(dl)
	}
	_, err := t.conn.Write(data)
	return err
}

// Receive reads a single datagram, applying this transport's fixed
// read timeout (the source's SOCKET_TIMEOUT = 10s) regardless of
// ctx's own deadline, since AniDB's server either answers promptly or
// not at all and a longer caller deadline shouldn't mask that.
func (t *UDPTransport) Receive(ctx context.Context) ([]byte, error) {
	if err := t.conn.SetReadDeadline(time.Now().Add(t.timeout)); err != nil {
		return nil, err
	}
	buf := make([]byte, 65507) // MAX_RECEIVE_SIZE
	n, err := t.conn.Read(buf)
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}

func (t *UDPTransport) Close() error { return t.conn.Close() }
