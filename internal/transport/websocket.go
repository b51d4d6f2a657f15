package transport

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/muurk/easycontrols/internal/logging"
	"go.uber.org/zap"
)

const (
	// DefaultTimeout bounds one full exchange: dial, send and receive
	DefaultTimeout = 10 * time.Second

	// DefaultPort is the port of the easyControls web interface
	DefaultPort = "80"

	// closeWait is how long the close handshake may take after a response
	closeWait = time.Second
)

// Exchanger sends one request frame and returns the single response frame
type Exchanger interface {
	Exchange(ctx context.Context, frame []byte) ([]byte, error)
}

// WebSocket exchanges frames with a unit over a fresh WebSocket connection per exchange.
// The unit serves a single client at a time, so the connection is never kept open.
type WebSocket struct {
	url     string
	timeout time.Duration
	dialer  *websocket.Dialer
}

// Option configures a WebSocket
type Option func(*WebSocket)

// WithTimeout sets the per-exchange timeout. Non-positive values keep the default.
func WithTimeout(d time.Duration) Option {
	return func(w *WebSocket) {
		if d > 0 {
			w.timeout = d
		}
	}
}

// WithDialer replaces the gorilla dialer
func WithDialer(d *websocket.Dialer) Option {
	return func(w *WebSocket) {
		w.dialer = d
	}
}

// NewWebSocket creates an exchanger for the unit at host
func NewWebSocket(host string, opts ...Option) *WebSocket {
	w := &WebSocket{
		url:     URLForHost(host),
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.dialer == nil {
		w.dialer = &websocket.Dialer{
			HandshakeTimeout: w.timeout,
		}
	}
	return w
}

// URLForHost returns the WebSocket URL of a unit.
// A bare host gets port 80; an explicit port or ws:// URL is kept.
func URLForHost(host string) string {
	host = strings.TrimSpace(host)
	if strings.HasPrefix(host, "ws://") || strings.HasPrefix(host, "wss://") {
		return host
	}
	if _, _, err := net.SplitHostPort(host); err == nil {
		return "ws://" + host
	}
	return "ws://" + net.JoinHostPort(strings.Trim(host, "[]"), DefaultPort)
}

// URL returns the unit URL
func (w *WebSocket) URL() string {
	return w.url
}

// Timeout returns the per-exchange timeout
func (w *WebSocket) Timeout() time.Duration {
	return w.timeout
}

// Exchange opens a connection, writes frame as one binary message, reads one
// message back and closes the connection.
func (w *WebSocket) Exchange(ctx context.Context, frame []byte) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	conn, resp, err := w.dialer.DialContext(ctx, w.url, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, Classify(ctx, KindDial, w.url, err)
	}
	defer func() {
		_ = conn.Close()
	}()

	// Unblock reads and writes when the caller cancels
	stop := context.AfterFunc(ctx, func() {
		_ = conn.Close()
	})
	defer stop()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetWriteDeadline(deadline)
		_ = conn.SetReadDeadline(deadline)
	}

	logging.LogExchange(w.url, "sent", frame)
	if err := conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		return nil, Classify(ctx, KindSend, w.url, err)
	}

	messageType, data, err := conn.ReadMessage()
	if err != nil {
		return nil, Classify(ctx, KindReceive, w.url, err)
	}
	logging.LogExchange(w.url, "received", data)

	if messageType != websocket.BinaryMessage {
		logging.Debug("Unit answered with a non-binary message",
			zap.String("url", w.url),
			zap.Int("message_type", messageType),
		)
	}

	// The response is complete; a failed close handshake is not an exchange failure
	if err := conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(closeWait)); err != nil {
		logging.Debug("Close handshake failed", zap.String("url", w.url), zap.Error(err))
	}

	return data, nil
}

// String describes the exchanger
func (w *WebSocket) String() string {
	return fmt.Sprintf("websocket %s (timeout %s)", w.url, w.timeout)
}
