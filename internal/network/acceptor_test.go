package network

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Pedro-5D/planchis/internal/network/connector"
)

// echoHandler 将收到的消息原样回写，并记录生命周期事件。
type echoHandler struct {
	mu        sync.Mutex
	connected []uint64
	closed    []uint64
	messages  [][]byte
}

func (h *echoHandler) OnConnected(sess Session) {
	h.mu.Lock()
	h.connected = append(h.connected, sess.ID())
	h.mu.Unlock()
}

func (h *echoHandler) OnMessage(sess Session, data []byte) {
	h.mu.Lock()
	h.messages = append(h.messages, data)
	h.mu.Unlock()
	_ = sess.Send(data)
}

func (h *echoHandler) OnClosed(sess Session, err error) {
	h.mu.Lock()
	h.closed = append(h.closed, sess.ID())
	h.mu.Unlock()
}

func (h *echoHandler) connectedCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.connected)
}

func (h *echoHandler) closedCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.closed)
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestAcceptorEcho(t *testing.T) {
	h := &echoHandler{}
	acceptor := NewAcceptor(Config{Path: "/"}, h)

	srv := httptest.NewServer(acceptor)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := connector.Dial(ctx, wsURL(srv), connector.Config{}, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool {
		return h.connectedCount() == 1
	}, time.Second, 10*time.Millisecond)

	payload := []byte(`{"type":"ping","timestamp":1}`)
	require.NoError(t, conn.Send(payload))

	select {
	case got := <-conn.Recv():
		assert.Equal(t, payload, got)
	case <-ctx.Done():
		t.Fatal("timed out waiting for echo")
	}
}

func TestAcceptorOrderedDelivery(t *testing.T) {
	h := &echoHandler{}
	acceptor := NewAcceptor(Config{Path: "/"}, h)

	srv := httptest.NewServer(acceptor)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := connector.Dial(ctx, wsURL(srv), connector.Config{}, nil)
	require.NoError(t, err)
	defer conn.Close()

	// 同一连接上的消息按发送顺序回显。
	want := []string{`{"seq":1}`, `{"seq":2}`, `{"seq":3}`}
	for _, msg := range want {
		require.NoError(t, conn.Send([]byte(msg)))
	}

	for _, expected := range want {
		select {
		case got := <-conn.Recv():
			assert.Equal(t, expected, string(got))
		case <-ctx.Done():
			t.Fatal("timed out waiting for message")
		}
	}
}

func TestAcceptorClosedCallback(t *testing.T) {
	h := &echoHandler{}
	acceptor := NewAcceptor(Config{Path: "/"}, h)

	srv := httptest.NewServer(acceptor)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := connector.Dial(ctx, wsURL(srv), connector.Config{}, nil)
	require.NoError(t, err)

	require.NoError(t, conn.Close())

	require.Eventually(t, func() bool {
		return h.closedCount() == 1
	}, time.Second, 10*time.Millisecond)
}

func TestAcceptorRejectsUnknownPath(t *testing.T) {
	h := &echoHandler{}
	acceptor := NewAcceptor(Config{Path: "/"}, h)

	srv := httptest.NewServer(acceptor)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := connector.Dial(ctx, wsURL(srv)+"/nope", connector.Config{MaxRetryElapsed: 200 * time.Millisecond}, nil)
	assert.Error(t, err)
}
