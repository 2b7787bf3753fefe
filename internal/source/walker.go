package source

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/ppiankov/reachpan/internal/graph"
	"github.com/ppiankov/reachpan/internal/record"
)

const defaultProgressEvery = 10

// Walker follows a page's feed from newest to oldest until it reaches an
// item published before the boundary or runs out of pages.
type Walker struct {
	First   FirstPageFunc
	Next    NextPageFunc
	Process ProcessFunc
	Log     zerolog.Logger

	// ProgressEvery sets how many processed items pass between progress
	// lines. Zero means 10.
	ProgressEvery int
	// Location renders item times in progress lines. Nil means UTC.
	Location *time.Location
}

// Walk returns the records of every item of task's feed published at or
// after from, in API order. The first older item ends the walk and no
// further page is requested.
//
// A fetch failure or an API error object ends the walk early; the records
// gathered so far are returned together with the error.
func (w *Walker) Walk(ctx context.Context, task Task, from time.Time, until string) ([]record.Record, error) {
	log := w.Log.With().Str("page", task.SourceID).Logger()
	every := w.ProgressEvery
	if every <= 0 {
		every = defaultProgressEvery
	}
	loc := w.Location
	if loc == nil {
		loc = time.UTC
	}

	var (
		records   []record.Record
		processed int
		started   = time.Now()
	)

	res, err := w.First(ctx, task.SourceID, task.Credential, until)
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", task.SourceID, err)
	}

	for {
		page, err := graph.ParsePage(res)
		if err != nil {
			var apiErr *graph.APIError
			if errors.As(err, &apiErr) {
				log.Warn().Int("code", apiErr.Code).Str("type", apiErr.Type).Msg(apiErr.Message)
			}
			return records, fmt.Errorf("walk %s: %w", task.SourceID, err)
		}
		for _, skipErr := range page.Skipped {
			log.Warn().Err(skipErr).Msg("skip item")
		}

		for _, item := range page.Items {
			if err := ctx.Err(); err != nil {
				return records, err
			}
			if item.CreatedTime.Before(from) {
				log.Info().Int("items", processed).Dur("took", time.Since(started)).Msg("finished processing")
				return records, nil
			}

			rec, err := w.Process(ctx, task, item)
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return records, ctxErr
				}
				log.Warn().Err(err).Str("item", item.ID).Msg("skip item")
				continue
			}
			if rec == nil {
				continue
			}

			records = append(records, rec)
			processed++
			if processed%every == 0 {
				log.Info().
					Int("items", processed).
					Str("published", item.CreatedTime.In(loc).Format("2006-01-02 15:04:05")).
					Msg("items processed")
			}
		}

		if page.Next == "" {
			break
		}
		if err := ctx.Err(); err != nil {
			return records, err
		}
		res, err = w.Next(ctx, page.Next)
		if err != nil {
			return records, fmt.Errorf("walk %s: %w", task.SourceID, err)
		}
	}

	log.Info().Int("items", processed).Dur("took", time.Since(started)).Msg("finished processing")
	return records, nil
}

// Func binds the boundary and upper cursor so the walker can be handed to
// a Scheduler.
func (w *Walker) Func(from time.Time, until string) WalkFunc {
	return func(ctx context.Context, task Task) ([]record.Record, error) {
		return w.Walk(ctx, task, from, until)
	}
}
