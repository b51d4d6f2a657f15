package transport

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

var (
	readRequest = []byte{0x03, 0x00, 0xf6, 0x00, 0x00, 0x00, 0xf9, 0x00}
	ack         = []byte{0x02, 0x00, 0xf5, 0x00, 0xf7, 0x00}
)

// newUnit starts a test server that upgrades and hands the connection to handle
func newUnit(t *testing.T, handle func(conn *websocket.Conn)) string {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		handle(conn)
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestURLForHost(t *testing.T) {
	tests := []struct {
		host string
		want string
	}{
		{host: "192.168.1.50", want: "ws://192.168.1.50:80"},
		{host: " kwl.local ", want: "ws://kwl.local:80"},
		{host: "10.0.0.31:8080", want: "ws://10.0.0.31:8080"},
		{host: "fe80::1", want: "ws://[fe80::1]:80"},
		{host: "[fe80::1]", want: "ws://[fe80::1]:80"},
		{host: "ws://127.0.0.1:1234", want: "ws://127.0.0.1:1234"},
	}

	for _, tt := range tests {
		if got := URLForHost(tt.host); got != tt.want {
			t.Errorf("URLForHost(%q) = %q, want %q", tt.host, got, tt.want)
		}
	}
}

func TestNewWebSocket_Defaults(t *testing.T) {
	ws := NewWebSocket("10.0.0.31")
	if ws.Timeout() != DefaultTimeout {
		t.Errorf("Timeout() = %v, want %v", ws.Timeout(), DefaultTimeout)
	}
	if ws.URL() != "ws://10.0.0.31:80" {
		t.Errorf("URL() = %s", ws.URL())
	}

	ws = NewWebSocket("10.0.0.31", WithTimeout(-time.Second))
	if ws.Timeout() != DefaultTimeout {
		t.Errorf("non-positive timeout should keep the default, got %v", ws.Timeout())
	}
}

func TestExchange(t *testing.T) {
	received := make(chan []byte, 1)
	url := newUnit(t, func(conn *websocket.Conn) {
		messageType, data, err := conn.ReadMessage()
		if err != nil || messageType != websocket.BinaryMessage {
			return
		}
		received <- data
		_ = conn.WriteMessage(websocket.BinaryMessage, ack)
	})

	ws := NewWebSocket(url, WithTimeout(2*time.Second))
	resp, err := ws.Exchange(context.Background(), readRequest)
	if err != nil {
		t.Fatalf("Exchange() error = %v", err)
	}
	if !bytes.Equal(resp, ack) {
		t.Errorf("Exchange() = %x, want %x", resp, ack)
	}

	select {
	case got := <-received:
		if !bytes.Equal(got, readRequest) {
			t.Errorf("unit received %x, want %x", got, readRequest)
		}
	case <-time.After(time.Second):
		t.Fatal("unit did not receive the frame")
	}
}

func TestExchange_ConnectionPerExchange(t *testing.T) {
	connections := make(chan struct{}, 10)
	url := newUnit(t, func(conn *websocket.Conn) {
		connections <- struct{}{}
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
		_ = conn.WriteMessage(websocket.BinaryMessage, ack)
	})

	ws := NewWebSocket(url, WithTimeout(2*time.Second))
	for i := 0; i < 3; i++ {
		if _, err := ws.Exchange(context.Background(), readRequest); err != nil {
			t.Fatalf("Exchange() #%d error = %v", i, err)
		}
	}
	if got := len(connections); got != 3 {
		t.Errorf("connections = %d, want 3", got)
	}
}

func TestExchange_Timeout(t *testing.T) {
	url := newUnit(t, func(conn *websocket.Conn) {
		// Read the request, never answer, wait for the client to go away
		_, _, _ = conn.ReadMessage()
		_, _, _ = conn.ReadMessage()
	})

	ws := NewWebSocket(url, WithTimeout(150*time.Millisecond))
	start := time.Now()
	_, err := ws.Exchange(context.Background(), readRequest)
	if !IsTimeout(err) {
		t.Fatalf("Exchange() error = %v, want timeout", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("timeout took %v", elapsed)
	}

	var te *Error
	if !errors.As(err, &te) || te.Op != "receive" {
		t.Errorf("error = %#v, want receive phase", err)
	}
}

func TestExchange_CallerDeadline(t *testing.T) {
	url := newUnit(t, func(conn *websocket.Conn) {
		_, _, _ = conn.ReadMessage()
		_, _, _ = conn.ReadMessage()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	ws := NewWebSocket(url, WithTimeout(5*time.Second))
	if _, err := ws.Exchange(ctx, readRequest); !IsTimeout(err) {
		t.Errorf("Exchange() error = %v, want timeout", err)
	}
}

func TestExchange_ClosedByUnit(t *testing.T) {
	url := newUnit(t, func(conn *websocket.Conn) {
		_, _, _ = conn.ReadMessage()
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "busy"))
	})

	ws := NewWebSocket(url, WithTimeout(2*time.Second))
	_, err := ws.Exchange(context.Background(), readRequest)
	if !IsClosed(err) {
		t.Errorf("Exchange() error = %v, want closed", err)
	}
}

func TestExchange_DialFailures(t *testing.T) {
	notWebSocket := httptest.NewServer(http.NotFoundHandler())
	defer notWebSocket.Close()

	gone := httptest.NewServer(http.NotFoundHandler())
	goneURL := "ws" + strings.TrimPrefix(gone.URL, "http")
	gone.Close()

	tests := []struct {
		name string
		url  string
	}{
		{name: "no upgrade", url: "ws" + strings.TrimPrefix(notWebSocket.URL, "http")},
		{name: "connection refused", url: goneURL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ws := NewWebSocket(tt.url, WithTimeout(2*time.Second))
			_, err := ws.Exchange(context.Background(), readRequest)

			var te *Error
			if !errors.As(err, &te) {
				t.Fatalf("Exchange() error = %v, want *Error", err)
			}
			if te.Kind != KindDial {
				t.Errorf("Kind = %s, want dial", te.Kind)
			}
			if !IsTransportError(err) {
				t.Error("IsTransportError() = false")
			}
		})
	}
}

func TestClassify(t *testing.T) {
	expired, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	tests := []struct {
		name string
		ctx  context.Context
		op   Kind
		err  error
		want Kind
	}{
		{name: "deadline in context", ctx: expired, op: KindReceive, err: errors.New("use of closed network connection"), want: KindTimeout},
		{name: "wrapped deadline", ctx: context.Background(), op: KindDial, err: context.DeadlineExceeded, want: KindTimeout},
		{name: "close frame", ctx: context.Background(), op: KindReceive, err: &websocket.CloseError{Code: websocket.CloseNormalClosure}, want: KindClosed},
		{name: "plain send error", ctx: context.Background(), op: KindSend, err: errors.New("broken pipe"), want: KindSend},
		{name: "dial stays dial", ctx: context.Background(), op: KindDial, err: websocket.ErrBadHandshake, want: KindDial},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.ctx, tt.op, "ws://unit:80", tt.err)
			if got.Kind != tt.want {
				t.Errorf("Classify() kind = %s, want %s", got.Kind, tt.want)
			}
			if !errors.Is(got, tt.err) {
				t.Error("Classify() must wrap the original error")
			}
		})
	}

	if Classify(context.Background(), KindSend, "", nil) != nil {
		t.Error("Classify(nil) should be nil")
	}
}
