// Streaming channel adapter: bridges push-style delivery of response
// fragments into a cancellable pull-style sequence.
//
// Every backend client shares this one bridge; only the backend-specific
// event demultiplexing differs. Reimplementing the queue/wait logic per
// backend is how the buffering and termination rules drift apart.

package llm

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// ErrStreamClosed is returned by Recv after the stream has terminated and
// every buffered chunk has been yielded.
var ErrStreamClosed = errors.New("llm: stream closed")

// SubscribeFunc registers a delivery callback for the stream identified by
// id and returns the matching unsubscribe function. Delivery may happen
// from any goroutine at any time.
type SubscribeFunc func(id string, deliver func(StreamChunk)) (unsubscribe func(), err error)

// StartFunc begins the remote operation that will deliver chunks for id.
type StartFunc func(ctx context.Context, id string) error

// ChunkStream is a single-consumer lazy sequence of StreamChunks.
//
// Exactly one goroutine may call Recv; concurrent readers are undefined
// behavior. Publication order is preserved. A terminal error is raised
// only after every chunk queued ahead of it has been yielded; errors
// never preempt already-buffered output. The unsubscribe function runs
// exactly once on every exit path: normal completion, terminal error,
// cancellation, or early abandonment via Close.
type ChunkStream struct {
	id     string
	logger *slog.Logger

	mu       sync.Mutex
	buf      []StreamChunk
	termErr  error
	sealed   bool // terminal chunk observed; further publishes are dropped
	finished bool // consumer has seen the terminal state
	wake     chan struct{}

	cleanup     func()
	cleanupOnce sync.Once
}

// NewChunkStream subscribes to the event source and starts the remote
// operation, wiring both to a fresh correlation id.
func NewChunkStream(ctx context.Context, subscribe SubscribeFunc, start StartFunc) (*ChunkStream, error) {
	s := &ChunkStream{
		id:     uuid.NewString(),
		logger: slog.Default(),
		wake:   make(chan struct{}),
	}

	unsubscribe, err := subscribe(s.id, s.publish)
	if err != nil {
		return nil, err
	}
	s.cleanup = unsubscribe

	if err := start(ctx, s.id); err != nil {
		s.release()
		return nil, err
	}
	return s, nil
}

// ID returns the stream's correlation id.
func (s *ChunkStream) ID() string {
	return s.id
}

// publish appends one delivered event. Terminal chunks seal the stream;
// anything delivered after that is dropped.
func (s *ChunkStream) publish(chunk StreamChunk) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sealed {
		return
	}
	switch chunk.Type {
	case ChunkError:
		err := chunk.Err
		if err == nil {
			err = errors.New("llm: stream failed")
		}
		s.termErr = err
		s.sealed = true
	case ChunkDone:
		s.buf = append(s.buf, chunk)
		s.sealed = true
	default:
		s.buf = append(s.buf, chunk)
	}

	close(s.wake)
	s.wake = make(chan struct{})
}

// Recv returns the next chunk. It suspends only when no buffered chunk is
// available and the stream has not terminated. After yielding the done
// chunk it returns ErrStreamClosed; a buffered terminal error is returned
// once the chunks ahead of it are drained. Cancelling ctx wakes a
// suspended call promptly and returns ctx.Err().
func (s *ChunkStream) Recv(ctx context.Context) (StreamChunk, error) {
	for {
		s.mu.Lock()
		if len(s.buf) > 0 {
			chunk := s.buf[0]
			s.buf = s.buf[1:]
			if chunk.Type == ChunkDone {
				s.finished = true
			}
			s.mu.Unlock()
			if chunk.Type == ChunkDone {
				s.release()
			}
			return chunk, nil
		}
		if s.finished {
			s.mu.Unlock()
			return StreamChunk{}, ErrStreamClosed
		}
		if s.termErr != nil {
			err := s.termErr
			s.finished = true
			s.mu.Unlock()
			s.logger.Debug("stream terminated with error", "stream", s.id, "error", err)
			s.release()
			return StreamChunk{}, err
		}
		wake := s.wake
		s.mu.Unlock()

		select {
		case <-wake:
		case <-ctx.Done():
			s.mu.Lock()
			s.finished = true
			s.mu.Unlock()
			s.release()
			return StreamChunk{}, ctx.Err()
		}
	}
}

// Close abandons the stream early. Safe to call at any time, including
// after normal completion; the unsubscribe still runs only once.
func (s *ChunkStream) Close() {
	s.mu.Lock()
	s.finished = true
	s.sealed = true
	s.mu.Unlock()
	s.release()
}

func (s *ChunkStream) release() {
	s.cleanupOnce.Do(func() {
		if s.cleanup != nil {
			s.cleanup()
		}
	})
}

// Collect drains the stream into a single Response, concatenating text
// and gathering tool calls in arrival order.
func (s *ChunkStream) Collect(ctx context.Context) (Response, error) {
	var resp Response
	for {
		chunk, err := s.Recv(ctx)
		if errors.Is(err, ErrStreamClosed) {
			return resp, nil
		}
		if err != nil {
			return resp, err
		}
		switch chunk.Type {
		case ChunkText:
			resp.Content += chunk.Text
		case ChunkToolCall:
			resp.ToolCalls = append(resp.ToolCalls, *chunk.ToolCall)
		case ChunkDone:
			resp.Usage = chunk.Usage
			return resp, nil
		}
	}
}

// PumpFunc reads a backend's native stream and emits canonical chunks,
// including the final done chunk. A non-nil return is converted into the
// stream's terminal error.
type PumpFunc func(ctx context.Context, emit func(StreamChunk)) error

// startPump bridges a backend pump into a ChunkStream. cleanup releases
// the backend stream and runs exactly once on any exit path.
func startPump(ctx context.Context, cleanup func(), pump PumpFunc) (*ChunkStream, error) {
	var deliver func(StreamChunk)
	subscribe := func(id string, fn func(StreamChunk)) (func(), error) {
		deliver = fn
		if cleanup == nil {
			return func() {}, nil
		}
		return cleanup, nil
	}
	start := func(ctx context.Context, id string) error {
		go func() {
			if err := pump(ctx, deliver); err != nil {
				deliver(ErrorChunk(err))
			}
		}()
		return nil
	}
	return NewChunkStream(ctx, subscribe, start)
}
