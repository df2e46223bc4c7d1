package transport

import (
	"testing"

	"go.uber.org/zap"
)

func TestSendDropsWhenQueueFull(t *testing.T) {
	c := newConn("c1", nil, 1, zap.NewNop())
	if err := c.Send([]byte("a")); err != nil {
		t.Fatalf("first send: %v", err)
	}
	if err := c.Send([]byte("b")); err != errQueueFull {
		t.Fatalf("expected errQueueFull, got %v", err)
	}
	close(c.done)
	if err := c.Send([]byte("c")); err != errClosed {
		t.Fatalf("expected errClosed, got %v", err)
	}
}
