package source

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ppiankov/reachpan/internal/config"
	"github.com/ppiankov/reachpan/internal/record"
)

// Result is the outcome of walking one page.
type Result struct {
	Task    Task
	Records []record.Record
	Err     error
}

// Scheduler walks many pages concurrently, one worker per page, optionally
// capped at MaxParallel workers.
type Scheduler struct {
	Credentials *config.Credentials
	MaxParallel int
	Log         zerolog.Logger
}

// Run walks every page in sources and returns one Result per page in input
// order, regardless of the order the walks finish in. A failed walk is
// logged and keeps its partial records; it never affects the other pages.
//
// Run returns as soon as ctx is done, without waiting for workers to wind
// down.
func (s *Scheduler) Run(ctx context.Context, sources []string, walk WalkFunc) ([]Result, error) {
	results := make([]Result, len(sources))
	started := time.Now()

	var g errgroup.Group
	if s.MaxParallel > 0 {
		g.SetLimit(s.MaxParallel)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i, id := range sources {
			task := Task{Index: i, SourceID: id, Credential: s.Credentials.Resolve(id)}
			if task.Credential == "" {
				s.Log.Warn().Str("page", id).Msg("no credential available")
			}
			g.Go(func() error {
				if err := ctx.Err(); err != nil {
					results[task.Index] = Result{Task: task, Err: err}
					return nil
				}
				recs, err := walk(ctx, task)
				if err != nil {
					s.Log.Error().Err(err).Str("page", task.SourceID).Int("kept", len(recs)).Msg("walk failed")
				}
				results[task.Index] = Result{Task: task, Records: recs, Err: err}
				return nil
			})
		}
		_ = g.Wait()
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	s.Log.Info().Int("pages", len(sources)).Dur("took", time.Since(started)).Msg("done")
	return results, nil
}

// Merge concatenates the records of results in result order.
func Merge(results []Result) []record.Record {
	n := 0
	for _, r := range results {
		n += len(r.Records)
	}
	out := make([]record.Record, 0, n)
	for _, r := range results {
		out = append(out, r.Records...)
	}
	return out
}
