package stream

import (
	"context"
	"testing"
	"time"

	"github.com/lyzr/mediacatalog/common/logger"
	"github.com/lyzr/mediacatalog/common/queue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startHub(t *testing.T) (*Hub, context.CancelFunc) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	h := NewHub(logger.Nop())
	go h.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-h.done
	})
	return h, cancel
}

// watcher builds a client without a connection; only the send side is used
func watcher(h *Hub, entryID int64, buffer int) *Client {
	return &Client{hub: h, entryID: entryID, send: make(chan []byte, buffer)}
}

func receive(t *testing.T, c *Client) []byte {
	t.Helper()
	select {
	case msg, ok := <-c.send:
		require.True(t, ok, "send channel closed")
		return msg
	case <-time.After(time.Second):
		t.Fatal("no message delivered")
		return nil
	}
}

func assertNothing(t *testing.T, c *Client) {
	t.Helper()
	select {
	case msg := <-c.send:
		t.Fatalf("unexpected message %q", msg)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_RoutesByEntry(t *testing.T) {
	h, _ := startHub(t)

	all := watcher(h, 0, 8)
	one := watcher(h, 1, 8)
	two := watcher(h, 2, 8)
	for _, c := range []*Client{all, one, two} {
		require.True(t, h.Register(c))
	}
	assert.Eventually(t, func() bool { return h.ConnectionCount() == 3 }, time.Second, 5*time.Millisecond)

	require.True(t, h.Broadcast(&Message{EntryID: 1, Data: []byte(`{"entryId":1}`)}))

	assert.Equal(t, `{"entryId":1}`, string(receive(t, all)))
	assert.Equal(t, `{"entryId":1}`, string(receive(t, one)))
	assertNothing(t, two)
}

func TestHub_UnregisterClosesSend(t *testing.T) {
	h, _ := startHub(t)

	c := watcher(h, 3, 1)
	require.True(t, h.Register(c))
	h.Unregister(c)
	h.Unregister(c)

	_, ok := <-c.send
	assert.False(t, ok)
	assert.Equal(t, 0, h.ConnectionCount())
}

func TestHub_DisconnectsSlowWatcher(t *testing.T) {
	h, _ := startHub(t)

	slow := watcher(h, 0, 1)
	require.True(t, h.Register(slow))

	h.Broadcast(&Message{EntryID: 1, Data: []byte("a")})
	h.Broadcast(&Message{EntryID: 1, Data: []byte("b")})

	assert.Eventually(t, func() bool { return h.ConnectionCount() == 0 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "a", string(<-slow.send))
	_, ok := <-slow.send
	assert.False(t, ok)
}

func TestHub_StopDisconnectsEveryone(t *testing.T) {
	h, cancel := startHub(t)

	c := watcher(h, 0, 1)
	require.True(t, h.Register(c))

	cancel()
	<-h.done

	_, ok := <-c.send
	assert.False(t, ok)
	assert.False(t, h.Register(watcher(h, 0, 1)))
	assert.False(t, h.Broadcast(&Message{EntryID: 1}))
}

func TestHub_SubscribeForwardsQueueEvents(t *testing.T) {
	h, _ := startHub(t)
	q := queue.NewMemoryQueue(logger.Nop())
	t.Cleanup(func() { _ = q.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	c := watcher(h, 5, 8)
	require.True(t, h.Register(c))
	require.NoError(t, h.Subscribe(ctx, q, "catalog.events"))

	require.NoError(t, q.Publish(ctx, "catalog.events", "not-an-id", []byte("skip")))
	require.NoError(t, q.Publish(ctx, "catalog.events", "5", []byte(`{"type":"entry.liked"}`)))

	assert.Equal(t, `{"type":"entry.liked"}`, string(receive(t, c)))
}
