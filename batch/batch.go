// Package batch runs the pipeline over many images.
//
// With a reference palette every image is quantized against the same
// palette, so an index means the same color across the whole batch. Without
// one each image gets its own palette and the results are only consistent
// within themselves.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/makeworld-the-better-one/indexed/palette"
	"github.com/makeworld-the-better-one/indexed/parallel"
	"github.com/makeworld-the-better-one/indexed/pipeline"
	"github.com/makeworld-the-better-one/indexed/pixbuf"
)

// Item is one input of a batch. Load is called on a worker goroutine right
// before the item is processed.
type Item struct {
	ID   string
	Load func() (*pixbuf.Buffer, error)
}

// FileItem loads an image from disk.
func FileItem(path string, autoOrient bool) Item {
	return Item{
		ID: path,
		Load: func() (*pixbuf.Buffer, error) {
			return pixbuf.Load(path, autoOrient)
		},
	}
}

// BufferItem wraps an image that is already decoded.
func BufferItem(id string, buf *pixbuf.Buffer) Item {
	return Item{
		ID: id,
		Load: func() (*pixbuf.Buffer, error) {
			if buf == nil {
				return nil, &pixbuf.InputError{Source: id, Err: pixbuf.ErrEmpty}
			}
			return buf, nil
		},
	}
}

type Mode int

const (
	// Independent means every image derived its own palette.
	Independent Mode = iota
	// Consistent means every image shares the reference palette.
	Consistent
)

func (m Mode) String() string {
	if m == Consistent {
		return "consistent"
	}
	return "independent"
}

type Options struct {
	Config pipeline.Config

	// Reference is the palette shared by the whole batch. It is copied
	// before any image is processed.
	Reference *palette.Palette

	// Workers is the number of images processed at once. Below 1 means
	// GOMAXPROCS.
	Workers int

	// Output, if set, is called with every successful result as soon as it
	// is ready, from the worker that produced it. An error fails that item.
	Output func(Result) error

	// Progress, if set, is called after each item finishes, successfully or
	// not. Calls are serialized and done increases by one every time.
	Progress func(done, total int)
}

// Result is the outcome of one item. Exactly one of Result and Err is set.
type Result struct {
	Index int
	ID    string
	Mode  Mode

	*pipeline.Result
	Err error
}

type Failure struct {
	Index int
	ID    string
	Err   error
}

// PartialFailure lists the items that failed while the rest of the batch
// went on.
type PartialFailure struct {
	Total    int
	Failures []Failure
}

func (e *PartialFailure) Error() string {
	if len(e.Failures) == 1 {
		f := e.Failures[0]
		return fmt.Sprintf("1 of %d images failed: %s: %v", e.Total, f.ID, f.Err)
	}
	return fmt.Sprintf("%d of %d images failed", len(e.Failures), e.Total)
}

func (e *PartialFailure) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f.Err
	}
	return errs
}

// Process runs every item and returns one Result per item, in input order.
//
// Configuration errors are returned before any item is touched. Errors of
// single items don't stop the batch; they are collected into a
// *PartialFailure. Cancelling ctx stops the batch between images: images
// already started are finished, the rest fail with the context error.
func Process(ctx context.Context, items []Item, opts Options, logger *slog.Logger) ([]Result, error) {
	if logger == nil {
		logger = slog.Default()
	}

	mode := Independent
	var ref *palette.Palette
	if opts.Reference != nil {
		mode = Consistent
		ref = opts.Reference.Clone()
	}
	if err := opts.Config.Validate(ref == nil); err != nil {
		return nil, err
	}
	if ref == nil && len(items) > 1 {
		logger.Info("no reference palette, every image gets its own palette", "images", len(items))
	}
	results := make([]Result, len(items))
	for i, item := range items {
		results[i] = Result{Index: i, ID: item.ID, Mode: mode}
	}

	var (
		mu   sync.Mutex
		done int
	)
	finished := func() {
		if opts.Progress == nil {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		done++
		opts.Progress(done, len(items))
	}

	pool := parallel.Start(ctx, opts.Workers)
	for i, item := range items {
		item := item
		r := &results[i]
		queued := pool.Do(func() {
			defer finished()
			if err := ctx.Err(); err != nil {
				r.Err = err
				return
			}
			r.Result, r.Err = run(item, ref, opts, logger.With("image", item.ID))
			if r.Err == nil && opts.Output != nil {
				if err := opts.Output(*r); err != nil {
					r.Result, r.Err = nil, err
				}
			}
		})
		if !queued {
			r.Err = ctx.Err()
			finished()
		}
	}
	pool.Wait()

	var failures []Failure
	for _, r := range results {
		if r.Err != nil {
			failures = append(failures, Failure{Index: r.Index, ID: r.ID, Err: r.Err})
		}
	}
	if len(failures) > 0 {
		return results, &PartialFailure{Total: len(items), Failures: failures}
	}
	return results, nil
}

func run(item Item, ref *palette.Palette, opts Options, logger *slog.Logger) (*pipeline.Result, error) {
	if item.Load == nil {
		return nil, &pixbuf.InputError{Source: item.ID, Err: errors.New("no loader")}
	}
	buf, err := item.Load()
	if err != nil {
		return nil, err
	}
	if ref != nil {
		return pipeline.Replay(buf, ref, opts.Config, logger)
	}
	return pipeline.Run(buf, opts.Config, logger)
}
