package reconcile

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// DefaultBatchSize is the number of concurrent requests per chunk
const DefaultBatchSize = 10

// Batcher splits work into chunks. Chunks run strictly one after another;
// calls inside a chunk run concurrently and finish in any order.
type Batcher struct {
	Size int

	// OnChunk, when set, is called before each chunk starts
	OnChunk func(index, size int)
}

func (b Batcher) size() int {
	if b.Size <= 0 {
		return DefaultBatchSize
	}
	return b.Size
}

// Dispatch calls fn for every item and returns the per-item errors, aligned
// with items. A failing item does not stop its siblings or later chunks.
// The second return value is non-nil only when ctx ended before all chunks
// were started.
func Dispatch[T any](ctx context.Context, b Batcher, items []T, fn func(context.Context, T) error) ([]error, error) {
	errs := make([]error, len(items))
	size := b.size()

	for index, start := 0, 0; start < len(items); index, start = index+1, start+size {
		if err := ctx.Err(); err != nil {
			return errs, err
		}
		end := min(start+size, len(items))
		if b.OnChunk != nil {
			b.OnChunk(index, end-start)
		}

		var g errgroup.Group
		for i := start; i < end; i++ {
			g.Go(func() error {
				errs[i] = fn(ctx, items[i])
				return nil
			})
		}
		g.Wait()
	}
	return errs, nil
}
