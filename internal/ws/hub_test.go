package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeChannel struct {
	mu     sync.Mutex
	frames []any
	fail   bool
	closed bool
}

func (c *fakeChannel) WriteJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return errors.New("broken pipe")
	}
	c.frames = append(c.frames, v)
	return nil
}

func (c *fakeChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeChannel) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.frames)
}

func (c *fakeChannel) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func TestHub_PushToEveryConnectionOfIdentity(t *testing.T) {
	h := NewHub(zap.NewNop())
	a1, a2, b := &fakeChannel{}, &fakeChannel{}, &fakeChannel{}
	h.Register("c1", "tok", "alice", a1)
	h.Register("c2", "tok", "alice", a2)
	h.Register("c3", "tok2", "bob", b)

	n := h.PushTo("alice", map[string]string{"type": "incoming"})

	assert.Equal(t, 2, n)
	assert.Equal(t, 1, a1.count())
	assert.Equal(t, 1, a2.count())
	assert.Equal(t, 0, b.count())
	assert.Equal(t, 3, h.Count())
}

func TestHub_PushToOfflineIdentity(t *testing.T) {
	h := NewHub(zap.NewNop())
	assert.Equal(t, 0, h.PushTo("nobody", "x"))
	assert.False(t, h.IsOnline("nobody"))
}

func TestHub_FailingChannelIsClosedAndIsolated(t *testing.T) {
	h := NewHub(zap.NewNop())
	bad, good := &fakeChannel{fail: true}, &fakeChannel{}
	h.Register("bad", "tok", "alice", bad)
	h.Register("good", "tok", "alice", good)

	n := h.PushTo("alice", "frame")

	assert.Equal(t, 1, n)
	assert.True(t, bad.isClosed())
	assert.False(t, good.isClosed())
	assert.Equal(t, 1, good.count())
}

func TestHub_Unregister(t *testing.T) {
	h := NewHub(zap.NewNop())
	ch := &fakeChannel{}
	h.Register("c1", "tok", "alice", ch)
	require.True(t, h.IsOnline("alice"))

	h.Unregister("c1")
	h.Unregister("c1")
	h.Unregister("unknown")

	assert.False(t, h.IsOnline("alice"))
	assert.Equal(t, 0, h.Count())
	assert.Equal(t, 0, h.PushTo("alice", "frame"))
}

func TestHub_RegisterSameConnIDReplaces(t *testing.T) {
	h := NewHub(zap.NewNop())
	old, cur := &fakeChannel{}, &fakeChannel{}
	h.Register("c1", "tok", "alice", old)
	h.Register("c1", "tok", "bob", cur)

	assert.False(t, h.IsOnline("alice"))
	assert.True(t, h.IsOnline("bob"))
	assert.Equal(t, 1, h.Count())
}

func TestHub_ConcurrentRegisterAndPush(t *testing.T) {
	h := NewHub(zap.NewNop())
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("c%d", i)
			h.Register(id, "tok", "alice", &fakeChannel{})
			h.Unregister(id)
		}(i)
		go func() {
			defer wg.Done()
			h.Deliver(context.Background(), "alice", "frame")
		}()
	}
	wg.Wait()
	assert.Equal(t, 0, h.Count())
}

type loopbackBus struct {
	mu       sync.Mutex
	handlers map[string][]func([]byte)
	fail     bool
}

func (b *loopbackBus) Publish(subject string, data []byte) error {
	if b.fail {
		return errors.New("nats: connection closed")
	}
	b.mu.Lock()
	hs := append([]func([]byte){}, b.handlers[subject]...)
	b.mu.Unlock()
	for _, h := range hs {
		h(data)
	}
	return nil
}

func (b *loopbackBus) Subscribe(subject string, handler func([]byte)) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.handlers == nil {
		b.handlers = map[string][]func([]byte){}
	}
	b.handlers[subject] = append(b.handlers[subject], handler)
	return nil
}

func TestFanout_DeliversAcrossInstances(t *testing.T) {
	bus := &loopbackBus{}
	hubA, hubB := NewHub(zap.NewNop()), NewHub(zap.NewNop())
	fanA := NewFanout(hubA, bus, zap.NewNop())
	fanB := NewFanout(hubB, bus, zap.NewNop())
	require.NoError(t, fanA.Start())
	require.NoError(t, fanB.Start())

	ch := &fakeChannel{}
	hubB.Register("c1", "tok", "bob", ch)

	fanA.Deliver(context.Background(), "bob", map[string]string{"type": "incoming", "from": "alice"})

	require.Equal(t, 1, ch.count())
	raw, ok := ch.frames[0].(json.RawMessage)
	require.True(t, ok)
	assert.JSONEq(t, `{"type":"incoming","from":"alice"}`, string(raw))
}

func TestFanout_PublishFailureFallsBackToLocal(t *testing.T) {
	bus := &loopbackBus{fail: true}
	hub := NewHub(zap.NewNop())
	fan := NewFanout(hub, bus, zap.NewNop())

	ch := &fakeChannel{}
	hub.Register("c1", "tok", "bob", ch)
	fan.Deliver(context.Background(), "bob", map[string]string{"type": "incoming"})

	assert.Equal(t, 1, ch.count())
}
