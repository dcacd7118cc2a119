package transport

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"dayflow/internal/logging"
)

// StreamClient is an HTTP transport that streams assistant replies as
// server-sent events. One in-flight request per assistant message id; a
// retry for the same id cancels its predecessor.
type StreamClient struct {
	baseURL    string
	model      string
	httpClient *http.Client
	receiver   Receiver

	mu       sync.Mutex
	pending  map[string]Request       // messageID -> original request (for retry)
	inflight map[string]*streamHandle // messageID -> active stream
	wg       sync.WaitGroup
	closed   bool
}

// streamHandle identifies one stream attempt so a finished goroutine only
// deregisters itself, never a replacement started by a retry.
type streamHandle struct {
	cancel context.CancelFunc
}

// StreamConfig holds configuration for the streaming client.
type StreamConfig struct {
	BaseURL string
	Model   string
	Timeout time.Duration
}

// DefaultStreamConfig returns sensible defaults.
func DefaultStreamConfig(baseURL string) StreamConfig {
	return StreamConfig{
		BaseURL: baseURL,
		Model:   "dayflow-assistant-1",
		Timeout: 120 * time.Second,
	}
}

// NewStreamClient creates a streaming transport delivering into receiver.
func NewStreamClient(cfg StreamConfig, receiver Receiver) *StreamClient {
	return &StreamClient{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		model:    cfg.Model,
		receiver: receiver,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		pending:  make(map[string]Request),
		inflight: make(map[string]*streamHandle),
	}
}

// chatRequest is the wire request body.
type chatRequest struct {
	Model   string `json:"model"`
	Message string `json:"message"`
	Stream  bool   `json:"stream"`
}

// chatChunk is one streamed response line.
type chatChunk struct {
	Delta string `json:"delta"`
	Done  bool   `json:"done"`
}

// Send issues the request and starts streaming the reply into the
// caller-allocated assistant message id.
func (c *StreamClient) Send(ctx context.Context, messageID string, req Request) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return fmt.Errorf("transport closed")
	}
	c.pending[messageID] = req
	c.mu.Unlock()

	logging.Transport("send message_id=%s len=%d", messageID, len(req.Content))
	c.start(ctx, messageID, req)
	return nil
}

// Retry cancels any in-flight stream for messageID and re-issues the
// original request. The assistant message keeps its id.
func (c *StreamClient) Retry(ctx context.Context, messageID string) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return fmt.Errorf("transport closed")
	}
	req, ok := c.pending[messageID]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("no pending request for message %s", messageID)
	}
	if h, busy := c.inflight[messageID]; busy {
		h.cancel()
	}
	c.mu.Unlock()

	logging.Transport("retry message_id=%s", messageID)
	c.start(ctx, messageID, req)
	return nil
}

// start launches the streaming goroutine for one request.
func (c *StreamClient) start(ctx context.Context, messageID string, req Request) {
	streamCtx, cancel := context.WithCancel(ctx)
	handle := &streamHandle{cancel: cancel}

	c.mu.Lock()
	c.inflight[messageID] = handle
	c.mu.Unlock()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer func() {
			c.mu.Lock()
			if c.inflight[messageID] == handle {
				delete(c.inflight, messageID)
			}
			c.mu.Unlock()
			cancel()
		}()
		c.stream(streamCtx, messageID, req)
	}()
}

// stream performs the HTTP exchange and forwards events to the receiver.
func (c *StreamClient) stream(ctx context.Context, messageID string, req Request) {
	c.receiver.OnTypingStateChanged(true)
	defer c.receiver.OnTypingStateChanged(false)

	body, err := json.Marshal(chatRequest{Model: c.model, Message: req.Content, Stream: true})
	if err != nil {
		c.receiver.OnError(messageID, &Error{Kind: ErrNoConnection, Err: err})
		return
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat", bytes.NewReader(body))
	if err != nil {
		c.receiver.OnError(messageID, &Error{Kind: ErrNoConnection, Err: err})
		return
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			// Cancelled by retry or shutdown; the replacement stream (if
			// any) owns error reporting now.
			logging.TransportDebug("stream cancelled message_id=%s", messageID)
			return
		}
		c.receiver.OnError(messageID, ClassifyError(err))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.receiver.OnError(messageID, ServerError(resp.StatusCode))
		return
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		line = strings.TrimPrefix(line, "data: ")
		if line == "[DONE]" {
			break
		}

		var chunk chatChunk
		if err := json.Unmarshal([]byte(line), &chunk); err != nil {
			logging.TransportDebug("skipping malformed chunk for %s: %v", messageID, err)
			continue
		}
		if chunk.Delta != "" {
			c.receiver.OnTokenArrived(messageID, chunk.Delta)
		}
		if chunk.Done {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		if ctx.Err() != nil {
			return
		}
		c.receiver.OnError(messageID, ClassifyError(err))
		return
	}

	c.receiver.OnStreamFinished(messageID)
}

// Close cancels all in-flight streams and waits for their goroutines.
func (c *StreamClient) Close() error {
	c.mu.Lock()
	c.closed = true
	for _, h := range c.inflight {
		h.cancel()
	}
	c.mu.Unlock()
	c.wg.Wait()
	return nil
}

// ClassifyError maps a raw transport error into the taxonomy.
func ClassifyError(err error) *Error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Timeout(err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Timeout(err)
	}
	return NoConnection(err)
}
