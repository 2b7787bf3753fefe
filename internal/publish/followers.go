package publish

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/sethvargo/go-retry"

	"github.com/ppiankov/reachpan/internal/elastic"
)

// FollowersDoc is the follower count of one page at scrape time.
type FollowersDoc struct {
	Type      string `json:"Type"`
	Page      string `json:"Page"`
	Followers int64  `json:"Followers"`
	Timestamp string `json:"Timestamp"`
}

// IndexFollowers writes every document into index on each host. Transient
// failures are retried like bulk writes.
func (p *Publisher) IndexFollowers(ctx context.Context, index, docType string, docs []FollowersDoc) error {
	var result *multierror.Error
	for _, c := range p.Clients {
		for _, doc := range docs {
			if err := p.indexDocument(ctx, c, index, docType, doc); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				result = multierror.Append(result, fmt.Errorf("%s: %s: %w", c.BaseURL(), doc.Page, err))
				continue
			}
			p.Log.Info().
				Str("host", c.BaseURL()).
				Str("page", doc.Page).
				Int64("followers", doc.Followers).
				Msg("followers indexed")
		}
	}
	return result.ErrorOrNil()
}

func (p *Publisher) indexDocument(ctx context.Context, c elastic.Client, index, docType string, doc any) error {
	return retry.Do(ctx, p.backoff(), func(ctx context.Context) error {
		err := c.IndexDocument(ctx, index, docType, doc)
		if err != nil && elastic.Retryable(err) {
			p.Log.Warn().Err(err).Str("host", c.BaseURL()).Msg("index document failed, retrying")
			return retry.RetryableError(err)
		}
		return err
	})
}
