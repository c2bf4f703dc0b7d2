package llm

import (
	"context"
	"io"
	"sync"

	"github.com/juju/errors"

	"github.com/warriorguo/canvasflow/types"
)

var (
	_ types.ChatCompleter = &Scripted{}
)

/**
 * Scripted replays fixed chunks for every request. Err, when set, is
 * returned by Recv after the chunks instead of io.EOF.
 */
type Scripted struct {
	Chunks []string
	Err    error

	mu       sync.Mutex
	requests []*types.ChatRequest
}

func NewScripted(chunks ...string) *Scripted {
	return &Scripted{Chunks: chunks}
}

func (s *Scripted) StreamChat(ctx context.Context, req *types.ChatRequest) (types.ChatStream, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Trace(err)
	}
	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.mu.Unlock()

	return &chunkStream{chunks: append([]string(nil), s.Chunks...), err: s.Err}, nil
}

func (s *Scripted) Requests() []*types.ChatRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*types.ChatRequest(nil), s.requests...)
}

type chunkStream struct {
	chunks []string
	err    error
}

func (c *chunkStream) Recv() (string, error) {
	if len(c.chunks) == 0 {
		if c.err != nil {
			return "", c.err
		}
		return "", io.EOF
	}
	chunk := c.chunks[0]
	c.chunks = c.chunks[1:]
	return chunk, nil
}

func (c *chunkStream) Close() error {
	return nil
}

// splitChunks cuts s into pieces of at most size runes.
func splitChunks(s string, size int) []string {
	runes := []rune(s)
	chunks := make([]string, 0, len(runes)/size+1)
	for len(runes) > 0 {
		n := min(size, len(runes))
		chunks = append(chunks, string(runes[:n]))
		runes = runes[n:]
	}
	return chunks
}
