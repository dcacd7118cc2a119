package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func streamServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func writeChunks(t *testing.T, w http.ResponseWriter, deltas ...string) {
	t.Helper()
	fl, ok := w.(http.Flusher)
	require.True(t, ok)
	for _, d := range deltas {
		line, err := json.Marshal(chatChunk{Delta: d})
		require.NoError(t, err)
		fmt.Fprintf(w, "data: %s\n", line)
		fl.Flush()
	}
	fmt.Fprint(w, "data: [DONE]\n")
	fl.Flush()
}

func TestStreamClientDeliversTokens(t *testing.T) {
	var gotReq chatRequest
	srv := streamServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		w.Header().Set("Content-Type", "text/event-stream")
		writeChunks(t, w, "Hel", "lo ", "there")
	})

	recv := newCollector()
	client := NewStreamClient(DefaultStreamConfig(srv.URL), recv)

	id := "msg-1"
	require.NoError(t, client.Send(context.Background(), id, Request{Content: "hi"}))
	require.Equal(t, id, recv.waitDone(t))
	require.NoError(t, client.Close())

	assert.Equal(t, "Hello there", recv.content(id))
	assert.Equal(t, 1, recv.finished[id])
	assert.Nil(t, recv.errs[id])
	assert.True(t, gotReq.Stream)
	assert.Equal(t, "hi", gotReq.Message)
	assert.Equal(t, "dayflow-assistant-1", gotReq.Model)

	// Typing toggled on before tokens and off after the stream settled.
	recv.mu.Lock()
	typing := append([]bool(nil), recv.typing...)
	recv.mu.Unlock()
	require.Len(t, typing, 2)
	assert.True(t, typing[0])
	assert.False(t, typing[1])
}

func TestStreamClientServerErrorStatus(t *testing.T) {
	srv := streamServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	})

	recv := newCollector()
	client := NewStreamClient(DefaultStreamConfig(srv.URL), recv)

	id := "msg-1"
	require.NoError(t, client.Send(context.Background(), id, Request{Content: "hi"}))
	recv.waitDone(t)
	require.NoError(t, client.Close())

	require.NotNil(t, recv.errs[id])
	assert.Equal(t, ErrServer, recv.errs[id].Kind)
	assert.Equal(t, http.StatusServiceUnavailable, recv.errs[id].Code)
	assert.True(t, recv.errs[id].Retryable())
}

func TestStreamClientConnectionRefused(t *testing.T) {
	recv := newCollector()
	// Nothing listens on this address.
	client := NewStreamClient(DefaultStreamConfig("http://127.0.0.1:1"), recv)

	id := "msg-1"
	require.NoError(t, client.Send(context.Background(), id, Request{Content: "hi"}))
	recv.waitDone(t)
	require.NoError(t, client.Close())

	require.NotNil(t, recv.errs[id])
	assert.Equal(t, ErrNoConnection, recv.errs[id].Kind)
}

func TestStreamClientRetryReusesMessageID(t *testing.T) {
	var calls int
	srv := streamServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			http.Error(w, "bad gateway", http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		writeChunks(t, w, "second ", "attempt")
	})

	recv := newCollector()
	client := NewStreamClient(DefaultStreamConfig(srv.URL), recv)

	id := "msg-1"
	require.NoError(t, client.Send(context.Background(), id, Request{Content: "hi"}))
	recv.waitDone(t)
	require.NotNil(t, recv.errs[id])

	require.NoError(t, client.Retry(context.Background(), id))
	require.Equal(t, id, recv.waitDone(t))
	require.NoError(t, client.Close())

	assert.Equal(t, "second attempt", recv.content(id))
	assert.Equal(t, 1, recv.finished[id])
}

func TestStreamClientRetryUnknownMessage(t *testing.T) {
	recv := newCollector()
	client := NewStreamClient(DefaultStreamConfig("http://127.0.0.1:1"), recv)
	defer client.Close()

	require.Error(t, client.Retry(context.Background(), "never-sent"))
}

func TestStreamClientIgnoresMalformedChunks(t *testing.T) {
	srv := streamServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fl := w.(http.Flusher)
		fmt.Fprint(w, "data: {not json}\n")
		fl.Flush()
		writeChunks(t, w, "kept")
	})

	recv := newCollector()
	client := NewStreamClient(DefaultStreamConfig(srv.URL), recv)

	id := "msg-1"
	require.NoError(t, client.Send(context.Background(), id, Request{Content: "hi"}))
	recv.waitDone(t)
	require.NoError(t, client.Close())

	assert.Equal(t, "kept", recv.content(id))
	assert.Equal(t, 1, recv.finished[id])
}

func TestStreamClientCloseRejectsSend(t *testing.T) {
	recv := newCollector()
	client := NewStreamClient(DefaultStreamConfig("http://127.0.0.1:1"), recv)
	require.NoError(t, client.Close())

	require.Error(t, client.Send(context.Background(), "msg-1", Request{Content: "hi"}))
}

func TestStreamClientTimeout(t *testing.T) {
	srv := streamServer(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
	})

	cfg := DefaultStreamConfig(srv.URL)
	cfg.Timeout = 50 * time.Millisecond
	recv := newCollector()
	client := NewStreamClient(cfg, recv)

	id := "msg-1"
	require.NoError(t, client.Send(context.Background(), id, Request{Content: "hi"}))
	recv.waitDone(t)
	require.NoError(t, client.Close())

	require.NotNil(t, recv.errs[id])
	assert.Equal(t, ErrTimeout, recv.errs[id].Kind)
}
