package drift

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/meigma/drift/naming"
)

// DefaultWorkers is the uploader's concurrency when none is set.
const DefaultWorkers = 4

// Item is one pending upload.
type Item struct {
	LocalPath string
	Entry     naming.Entry
}

// Uploader pushes a batch of archives with bounded concurrency. Each
// worker opens its own Store, so no transport session ever carries two
// operations at once.
type Uploader struct {
	url     string
	workers int
	opts    []Option
}

// NewUploader builds an uploader for the given target. workers <= 0
// selects DefaultWorkers. The options are applied to every worker's
// Store.
func NewUploader(rawURL string, workers int, opts ...Option) *Uploader {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Uploader{url: rawURL, workers: workers, opts: opts}
}

// Upload pushes every item and returns the first failure. A failing
// worker cancels the group; items not yet started are abandoned, items
// already uploaded stay uploaded.
func (u *Uploader) Upload(ctx context.Context, items []Item) error {
	g, ctx := errgroup.WithContext(ctx)
	jobs := make(chan Item)

	workers := u.workers
	if workers > len(items) {
		workers = len(items)
	}
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			store, err := Open(ctx, u.url, u.opts...)
			if err != nil {
				return err
			}
			defer store.Close()
			for item := range jobs {
				if _, err := store.Put(ctx, item.LocalPath, item.Entry); err != nil {
					return err
				}
			}
			return nil
		})
	}

	g.Go(func() error {
		defer close(jobs)
		for _, item := range items {
			select {
			case jobs <- item:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})

	return g.Wait()
}
