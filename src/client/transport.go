package client

import (
	"context"
	"net/url"
	"time"

	"github.com/fasthttp/websocket"
	"github.com/samber/oops"
)

// Transport is one live socket. *websocket.Conn satisfies it.
type Transport interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Dialer opens transports.
type Dialer interface {
	Dial(ctx context.Context, rawURL string) (Transport, error)
}

// WSDialer dials with fasthttp/websocket.
type WSDialer struct {
	HandshakeTimeout time.Duration
}

func (d WSDialer) Dial(ctx context.Context, rawURL string) (Transport, error) {
	dialer := websocket.Dialer{HandshakeTimeout: d.HandshakeTimeout}
	if dialer.HandshakeTimeout == 0 {
		dialer.HandshakeTimeout = 10 * time.Second
	}

	conn, resp, err := dialer.DialContext(ctx, rawURL, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		return nil, oops.In("client").With("url", rawURL).With("status", status).Wrapf(err, "dial")
	}
	return conn, nil
}

// EndpointURL appends the handshake identity to base.
func EndpointURL(base, userID, organizationID string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", oops.In("client").With("url", base).Wrapf(err, "parse endpoint")
	}
	q := u.Query()
	q.Set("userId", userID)
	if organizationID != "" {
		q.Set("organizationId", organizationID)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
