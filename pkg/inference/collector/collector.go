package collector

import (
	"context"
	"io"
	"strings"

	"github.com/pkg/errors"
)

// ErrStreamTruncated is returned when a source ends without sending its
// termination signal.
var ErrStreamTruncated = errors.New("stream ended without termination signal")

// Chunk is one decoded event of a provider token stream.
//
// Done marks the provider's termination signal. A chunk that is neither Done
// nor carries content (role announcements, keep-alives, usage records, ...) is
// ignored by Collect.
type Chunk struct {
	Content    string
	HasContent bool
	Done       bool
}

func ContentChunk(content string) Chunk {
	return Chunk{Content: content, HasContent: true}
}

func DoneChunk() Chunk {
	return Chunk{Done: true}
}

// Source yields decoded chunks in arrival order. Recv blocks until the next
// chunk is available.
type Source interface {
	Recv() (Chunk, error)
}

// AppendFunc receives each incremental delta, never the accumulated text.
type AppendFunc func(delta string) error

// SourceFunc adapts a function to a Source.
type SourceFunc func() (Chunk, error)

func (f SourceFunc) Recv() (Chunk, error) {
	return f()
}

// Collect drains src until the termination signal, invoking onDelta for every
// content delta, and returns the concatenated text. A read error, an error
// from onDelta, or context cancellation aborts collection; no partial text is
// returned in that case.
func Collect(ctx context.Context, src Source, onDelta AppendFunc) (string, error) {
	var sb strings.Builder

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}

		chunk, err := src.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return "", ErrStreamTruncated
			}
			return "", err
		}

		if chunk.Done {
			return sb.String(), nil
		}
		if !chunk.HasContent || chunk.Content == "" {
			continue
		}

		sb.WriteString(chunk.Content)
		if onDelta != nil {
			if err := onDelta(chunk.Content); err != nil {
				return "", errors.Wrap(err, "could not forward delta")
			}
		}
	}
}
