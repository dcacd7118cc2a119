package transport

import (
	"context"
	"fmt"
	"sync"
	"time"

	"dayflow/internal/logging"
)

// ScriptStep is one canned assistant reply: a sequence of tokens delivered
// in order, or a transport error in place of a reply.
type ScriptStep struct {
	Tokens []string
	Err    *Error
}

// Script is an in-process transport that replays canned replies with a
// fixed inter-token delay. Replies are consumed in order; once exhausted,
// every send answers with a short fallback. Used by tests and the offline
// demo mode.
type Script struct {
	receiver   Receiver
	tokenDelay time.Duration

	mu      sync.Mutex
	steps   []ScriptStep
	next    int
	pending map[string]ScriptStep    // messageID -> step (for retry)
	active  map[string]*replayHandle // messageID -> in-flight replay
	wg      sync.WaitGroup
	closed  bool
}

// replayHandle identifies one replay attempt so a finished goroutine only
// deregisters itself, never a replacement started by a retry.
type replayHandle struct {
	cancel context.CancelFunc
}

// NewScript creates a scripted transport delivering into receiver.
func NewScript(receiver Receiver, steps []ScriptStep, tokenDelay time.Duration) *Script {
	return &Script{
		receiver:   receiver,
		steps:      steps,
		tokenDelay: tokenDelay,
		pending:    make(map[string]ScriptStep),
		active:     make(map[string]*replayHandle),
	}
}

var fallbackStep = ScriptStep{Tokens: []string{"I'm ", "not ", "sure ", "how ", "to ", "help ", "with ", "that."}}

// Send consumes the next scripted step and streams it into the
// caller-allocated assistant message id.
func (s *Script) Send(ctx context.Context, messageID string, req Request) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return fmt.Errorf("transport closed")
	}
	step := fallbackStep
	if s.next < len(s.steps) {
		step = s.steps[s.next]
		s.next++
	}
	s.pending[messageID] = step
	s.mu.Unlock()

	logging.TransportDebug("script send message_id=%s tokens=%d", messageID, len(step.Tokens))
	s.replay(ctx, messageID, step)
	return nil
}

// Retry cancels any in-flight replay for messageID and replays the step
// previously assigned to it.
func (s *Script) Retry(ctx context.Context, messageID string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return fmt.Errorf("transport closed")
	}
	step, ok := s.pending[messageID]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("no pending request for message %s", messageID)
	}
	// Errors are scripted once; a retry succeeds with the step's tokens.
	step.Err = nil
	s.pending[messageID] = step
	if h, busy := s.active[messageID]; busy {
		h.cancel()
	}
	s.mu.Unlock()

	s.replay(ctx, messageID, step)
	return nil
}

func (s *Script) replay(ctx context.Context, messageID string, step ScriptStep) {
	replayCtx, cancel := context.WithCancel(ctx)
	handle := &replayHandle{cancel: cancel}

	s.mu.Lock()
	s.active[messageID] = handle
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			s.mu.Lock()
			if s.active[messageID] == handle {
				delete(s.active, messageID)
			}
			s.mu.Unlock()
			cancel()
		}()

		s.receiver.OnTypingStateChanged(true)
		defer s.receiver.OnTypingStateChanged(false)

		if step.Err != nil {
			s.receiver.OnError(messageID, step.Err)
			return
		}

		for _, tok := range step.Tokens {
			select {
			case <-replayCtx.Done():
				return
			case <-time.After(s.tokenDelay):
			}
			s.receiver.OnTokenArrived(messageID, tok)
		}
		s.receiver.OnStreamFinished(messageID)
	}()
}

// Close waits for all replay goroutines to drain.
func (s *Script) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.wg.Wait()
	return nil
}
