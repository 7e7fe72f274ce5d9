package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"ytdash/internal/model"
	"ytdash/internal/progress"
)

// SinkFactory returns the display sink for the i-th operation of a batch.
type SinkFactory func(i int, id, url string) progress.Sink

// RunBatch runs one operation per URL, at most jobs at a time (jobs < 1
// means one at a time). Each operation has its own relay and sink; a
// failure does not stop its siblings. Results are in input order and the
// returned error joins every failure.
func (s *Service) RunBatch(ctx context.Context, urls []string, opts model.DownloadOptions, jobs int, sinkFor SinkFactory) ([]Result, error) {
	if jobs < 1 {
		jobs = 1
	}
	results := make([]Result, len(urls))
	errs := make([]error, len(urls))

	var g errgroup.Group
	g.SetLimit(jobs)
	for i, u := range urls {
		id := uuid.NewString()
		var sink progress.Sink
		if sinkFor != nil {
			sink = sinkFor(i, id, u)
		}
		g.Go(func() error {
			res, err := s.RunWithID(ctx, id, u, opts, sink)
			results[i] = res
			if err != nil {
				errs[i] = fmt.Errorf("%s: %w", u, err)
			}
			return nil
		})
	}
	_ = g.Wait()
	return results, errors.Join(errs...)
}
