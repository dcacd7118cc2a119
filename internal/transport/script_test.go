package transport

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// collector is a Receiver that records every callback.
type collector struct {
	mu       sync.Mutex
	tokens   map[string][]string
	finished map[string]int
	errs     map[string]*Error
	typing   []bool
	done     chan string // receives messageID on finish or error
}

func newCollector() *collector {
	return &collector{
		tokens:   make(map[string][]string),
		finished: make(map[string]int),
		errs:     make(map[string]*Error),
		done:     make(chan string, 8),
	}
}

func (c *collector) OnTokenArrived(messageID, text string) {
	c.mu.Lock()
	c.tokens[messageID] = append(c.tokens[messageID], text)
	c.mu.Unlock()
}

func (c *collector) OnStreamFinished(messageID string) {
	c.mu.Lock()
	c.finished[messageID]++
	c.mu.Unlock()
	c.done <- messageID
}

func (c *collector) OnError(messageID string, err *Error) {
	c.mu.Lock()
	c.errs[messageID] = err
	c.mu.Unlock()
	c.done <- messageID
}

func (c *collector) OnTypingStateChanged(typing bool) {
	c.mu.Lock()
	c.typing = append(c.typing, typing)
	c.mu.Unlock()
}

func (c *collector) content(messageID string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return strings.Join(c.tokens[messageID], "")
}

func (c *collector) waitDone(t *testing.T) string {
	t.Helper()
	select {
	case id := <-c.done:
		return id
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for stream to settle")
		return ""
	}
}

func TestScriptReplaysStepsInOrder(t *testing.T) {
	defer goleak.VerifyNone(t)

	recv := newCollector()
	s := NewScript(recv, []ScriptStep{
		{Tokens: []string{"Hello ", "there"}},
		{Tokens: []string{"Second ", "reply"}},
	}, time.Millisecond)

	id1 := "msg-1"
	require.NoError(t, s.Send(context.Background(), id1, Request{Content: "hi"}))
	recv.waitDone(t)

	id2 := "msg-2"
	require.NoError(t, s.Send(context.Background(), id2, Request{Content: "again"}))
	recv.waitDone(t)

	require.NoError(t, s.Close())

	assert.Equal(t, "Hello there", recv.content(id1))
	assert.Equal(t, "Second reply", recv.content(id2))
	assert.Equal(t, 1, recv.finished[id1])
	assert.Equal(t, 1, recv.finished[id2])
}

func TestScriptFallbackAfterExhaustion(t *testing.T) {
	recv := newCollector()
	s := NewScript(recv, nil, time.Millisecond)

	id := "msg-1"
	require.NoError(t, s.Send(context.Background(), id, Request{Content: "anything"}))
	recv.waitDone(t)
	require.NoError(t, s.Close())

	assert.NotEmpty(t, recv.content(id))
	assert.Equal(t, 1, recv.finished[id])
}

func TestScriptErrorThenRetry(t *testing.T) {
	defer goleak.VerifyNone(t)

	recv := newCollector()
	s := NewScript(recv, []ScriptStep{
		{Tokens: []string{"Recovered ", "reply"}, Err: Timeout(context.DeadlineExceeded)},
	}, time.Millisecond)

	id := "msg-1"
	require.NoError(t, s.Send(context.Background(), id, Request{Content: "hi"}))
	recv.waitDone(t)

	require.NotNil(t, recv.errs[id])
	assert.Equal(t, ErrTimeout, recv.errs[id].Kind)
	assert.Empty(t, recv.content(id))

	// A retry delivers the step's tokens; the error fired only once.
	require.NoError(t, s.Retry(context.Background(), id))
	recv.waitDone(t)
	require.NoError(t, s.Close())

	assert.Equal(t, "Recovered reply", recv.content(id))
	assert.Equal(t, 1, recv.finished[id])
}

func TestScriptRetryCancelsInFlightReplay(t *testing.T) {
	defer goleak.VerifyNone(t)

	recv := newCollector()
	s := NewScript(recv, []ScriptStep{
		{Tokens: []string{"x", "y", "z"}},
	}, 200*time.Millisecond)

	id := "msg-1"
	require.NoError(t, s.Send(context.Background(), id, Request{Content: "hi"}))

	// Retry while the first replay is still between tokens. At most one
	// replay may stay in flight, so the reply arrives exactly once.
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, s.Retry(context.Background(), id))
	recv.waitDone(t)
	require.NoError(t, s.Close())

	assert.Equal(t, "xyz", recv.content(id))
	assert.Equal(t, 1, recv.finished[id])
}

func TestScriptRetryUnknownMessage(t *testing.T) {
	recv := newCollector()
	s := NewScript(recv, nil, time.Millisecond)
	defer s.Close()

	require.Error(t, s.Retry(context.Background(), "never-sent"))
}

func TestScriptClosedRejectsSend(t *testing.T) {
	recv := newCollector()
	s := NewScript(recv, nil, time.Millisecond)
	require.NoError(t, s.Close())

	require.Error(t, s.Send(context.Background(), "msg-1", Request{Content: "hi"}))
}
