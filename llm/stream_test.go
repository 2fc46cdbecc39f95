package llm

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testStream builds a ChunkStream whose deliver function is handed back to
// the test, plus a counter tracking unsubscribe calls.
func testStream(t *testing.T) (*ChunkStream, func(StreamChunk), *atomic.Int32) {
	t.Helper()
	var deliver func(StreamChunk)
	var unsubs atomic.Int32

	s, err := NewChunkStream(context.Background(),
		func(id string, fn func(StreamChunk)) (func(), error) {
			deliver = fn
			return func() { unsubs.Add(1) }, nil
		},
		func(ctx context.Context, id string) error { return nil },
	)
	require.NoError(t, err)
	require.NotNil(t, deliver)
	return s, deliver, &unsubs
}

func TestChunkStreamOrdering(t *testing.T) {
	s, deliver, unsubs := testStream(t)

	deliver(TextChunk("one"))
	deliver(TextChunk("two"))
	deliver(TextChunk("three"))
	deliver(DoneChunk(&TokenUsage{TotalTokens: 9}))

	ctx := context.Background()
	for _, want := range []string{"one", "two", "three"} {
		chunk, err := s.Recv(ctx)
		require.NoError(t, err)
		assert.Equal(t, ChunkText, chunk.Type)
		assert.Equal(t, want, chunk.Text)
	}

	chunk, err := s.Recv(ctx)
	require.NoError(t, err)
	assert.Equal(t, ChunkDone, chunk.Type)
	require.NotNil(t, chunk.Usage)
	assert.Equal(t, uint32(9), chunk.Usage.TotalTokens)

	_, err = s.Recv(ctx)
	assert.ErrorIs(t, err, ErrStreamClosed)
	assert.Equal(t, int32(1), unsubs.Load())
}

func TestChunkStreamErrorAfterDrain(t *testing.T) {
	s, deliver, unsubs := testStream(t)

	boom := errors.New("upstream failed")
	deliver(TextChunk("partial"))
	deliver(ErrorChunk(boom))

	ctx := context.Background()
	chunk, err := s.Recv(ctx)
	require.NoError(t, err)
	assert.Equal(t, "partial", chunk.Text)

	_, err = s.Recv(ctx)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, int32(1), unsubs.Load())

	// Terminal state is sticky.
	_, err = s.Recv(ctx)
	assert.Error(t, err)
	assert.Equal(t, int32(1), unsubs.Load())
}

func TestChunkStreamDropsAfterTerminal(t *testing.T) {
	s, deliver, _ := testStream(t)

	deliver(DoneChunk(nil))
	deliver(TextChunk("late"))

	ctx := context.Background()
	chunk, err := s.Recv(ctx)
	require.NoError(t, err)
	assert.Equal(t, ChunkDone, chunk.Type)

	_, err = s.Recv(ctx)
	assert.ErrorIs(t, err, ErrStreamClosed)
}

func TestChunkStreamRecvBlocksUntilDelivery(t *testing.T) {
	s, deliver, _ := testStream(t)

	got := make(chan StreamChunk, 1)
	go func() {
		chunk, err := s.Recv(context.Background())
		if err == nil {
			got <- chunk
		}
	}()

	time.Sleep(20 * time.Millisecond)
	deliver(TextChunk("hello"))

	select {
	case chunk := <-got:
		assert.Equal(t, "hello", chunk.Text)
	case <-time.After(time.Second):
		t.Fatal("Recv did not wake on delivery")
	}
}

func TestChunkStreamCancellation(t *testing.T) {
	s, _, unsubs := testStream(t)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := s.Recv(ctx)
		errCh <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Recv did not wake on cancellation")
	}
	assert.Equal(t, int32(1), unsubs.Load())
}

func TestChunkStreamCloseIdempotent(t *testing.T) {
	s, deliver, unsubs := testStream(t)

	deliver(TextChunk("pending"))
	s.Close()
	s.Close()

	assert.Equal(t, int32(1), unsubs.Load())
}

func TestChunkStreamStartFailureUnsubscribes(t *testing.T) {
	var unsubs atomic.Int32
	boom := errors.New("start failed")

	_, err := NewChunkStream(context.Background(),
		func(id string, fn func(StreamChunk)) (func(), error) {
			return func() { unsubs.Add(1) }, nil
		},
		func(ctx context.Context, id string) error { return boom },
	)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, int32(1), unsubs.Load())
}

func TestChunkStreamCollect(t *testing.T) {
	s, deliver, _ := testStream(t)

	deliver(TextChunk("Hello, "))
	deliver(TextChunk("world"))
	deliver(ToolCallChunk(ToolCall{ID: "c1", Name: "lookup", Arguments: []byte(`{}`)}))
	deliver(DoneChunk(&TokenUsage{PromptTokens: 3, CompletionTokens: 4, TotalTokens: 7}))

	resp, err := s.Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Hello, world", resp.Content)
	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "lookup", resp.ToolCalls[0].Name)
	require.NotNil(t, resp.Usage)
	assert.Equal(t, uint32(7), resp.Usage.TotalTokens)
}
