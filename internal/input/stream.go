package input

import "context"

// ChunkReader is the subset of Reader needed to page through a file.
type ChunkReader interface {
	ReadChunk(path string, chunkSize int, offset int64) ([]byte, error)
}

// StreamChunk is one step of a chunk stream. The final chunk of a successful
// stream has empty Data; a failed stream ends with a chunk carrying Err.
type StreamChunk struct {
	Data   []byte
	Offset int64
	Err    error
}

// Stream pages through path in chunkSize steps, advancing the offset by the
// length of each chunk, and closes the channel after the empty EOF chunk or the
// first error. Peak memory stays bounded by chunkSize times the channel buffer.
func Stream(ctx context.Context, r ChunkReader, path string, chunkSize int) <-chan StreamChunk {
	ch := make(chan StreamChunk, 4)
	go func() {
		defer close(ch)
		var offset int64
		for {
			if err := ctx.Err(); err != nil {
				return
			}

			data, err := r.ReadChunk(path, chunkSize, offset)
			if err != nil {
				send(ctx, ch, StreamChunk{Offset: offset, Err: err})
				return
			}
			if !send(ctx, ch, StreamChunk{Data: data, Offset: offset}) {
				return
			}
			if len(data) == 0 {
				return
			}
			offset += int64(len(data))
		}
	}()
	return ch
}

func send(ctx context.Context, ch chan<- StreamChunk, c StreamChunk) bool {
	select {
	case ch <- c:
		return true
	case <-ctx.Done():
		return false
	}
}
