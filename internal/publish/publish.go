// Package publish bulk-loads scraped records into every configured index
// host and moves the read alias onto the freshly written index.
package publish

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"

	"github.com/ppiankov/reachpan/internal/elastic"
	"github.com/ppiankov/reachpan/internal/record"
	"github.com/ppiankov/reachpan/internal/store"
)

const (
	DefaultRetryInterval = 3 * time.Second
	indexTimeLayout      = "20060102-150405"
)

// Ledger records which snapshots were written and swapped.
type Ledger interface {
	RecordWritten(ctx context.Context, in store.SnapshotInput) (store.Snapshot, error)
	MarkSwapped(ctx context.Context, index, host string, at time.Time) error
}

// Batch is one group of records sharing a mapping type and id field.
type Batch struct {
	Name    string
	Records []record.Record
	DocType string
	IDField string
}

// HostAck summarizes what one host accepted.
type HostAck struct {
	Host       string
	Docs       int
	ItemErrors int
	Swapped    bool
}

// AliasSwapError reports that an index was written but the alias could not
// be moved onto it. Re-running the swap for the same index is safe.
type AliasSwapError struct {
	Host  string
	Index string
	Alias string
	Step  string
	Err   error
}

func (e *AliasSwapError) Error() string {
	return fmt.Sprintf("alias swap %s -> %s on %s failed at %s: %v", e.Alias, e.Index, e.Host, e.Step, e.Err)
}

func (e *AliasSwapError) Unwrap() error { return e.Err }

// IndexName returns the snapshot index name for a run started at now.
func IndexName(prefix string, now time.Time) string {
	return prefix + "-" + now.UTC().Format(indexTimeLayout)
}

// Publisher writes snapshots to a fixed list of hosts, one after another.
type Publisher struct {
	Clients       []elastic.Client
	Alias         string
	RetryInterval time.Duration
	Ledger        Ledger
	Log           zerolog.Logger
	Now           func() time.Time
}

func (p *Publisher) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

func (p *Publisher) backoff() retry.Backoff {
	interval := p.RetryInterval
	if interval <= 0 {
		interval = DefaultRetryInterval
	}
	return retry.NewConstant(interval)
}

// Preflight pings every host and fails if any is unreachable.
func (p *Publisher) Preflight(ctx context.Context) error {
	if len(p.Clients) == 0 {
		return errors.New("no index hosts configured")
	}
	var result *multierror.Error
	for _, c := range p.Clients {
		if err := c.Ping(ctx); err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: %w", c.BaseURL(), err))
			continue
		}
		p.Log.Debug().Str("host", c.BaseURL()).Msg("host reachable")
	}
	return result.ErrorOrNil()
}

// PutTemplate installs the index template on every host.
func (p *Publisher) PutTemplate(ctx context.Context, name string, body []byte) error {
	var result *multierror.Error
	for _, c := range p.Clients {
		if err := c.PutTemplate(ctx, name, body); err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: %w", c.BaseURL(), err))
			continue
		}
		p.Log.Info().Str("host", c.BaseURL()).Str("template", name).Msg("template installed")
	}
	return result.ErrorOrNil()
}

// Publish bulk-writes every batch into index on each host, records the
// snapshot, then swaps the alias onto it. A host whose write fails is not
// swapped; the other hosts carry on. Swap failures are *AliasSwapError.
func (p *Publisher) Publish(ctx context.Context, index string, batches ...Batch) ([]HostAck, error) {
	bodies := make([][]byte, len(batches))
	for i, b := range batches {
		body, err := elastic.BuildBulkBody(b.Records, index, b.DocType, b.IDField)
		if err != nil {
			return nil, fmt.Errorf("build %s bulk: %w", b.Name, err)
		}
		bodies[i] = body
	}

	var (
		acks   []HostAck
		result *multierror.Error
	)
	for _, c := range p.Clients {
		ack, err := p.write(ctx, c, index, batches, bodies)
		if err != nil {
			if ctx.Err() != nil {
				return acks, ctx.Err()
			}
			result = multierror.Append(result, fmt.Errorf("%s: %w", c.BaseURL(), err))
			continue
		}

		if err := p.swap(ctx, c, index); err != nil {
			result = multierror.Append(result, err)
		} else {
			ack.Swapped = true
		}
		acks = append(acks, ack)
	}
	return acks, result.ErrorOrNil()
}

// SwapAlias moves the alias onto an already written index on every host.
func (p *Publisher) SwapAlias(ctx context.Context, index string) error {
	var result *multierror.Error
	for _, c := range p.Clients {
		if err := p.swap(ctx, c, index); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

func (p *Publisher) write(ctx context.Context, c elastic.Client, index string, batches []Batch, bodies [][]byte) (HostAck, error) {
	ack := HostAck{Host: c.BaseURL()}
	if err := p.createIndex(ctx, c, index); err != nil {
		return ack, err
	}
	for i, b := range batches {
		if len(b.Records) == 0 {
			continue
		}
		resp, err := p.bulk(ctx, c, bodies[i])
		if err != nil {
			return ack, fmt.Errorf("bulk %s: %w", b.Name, err)
		}

		failed := resp.Failed()
		for _, f := range failed {
			p.Log.Warn().
				Str("host", ack.Host).
				Str("id", f.ID).
				RawJSON("cause", f.Error).
				Msg("bulk item failed")
		}
		ack.Docs += len(b.Records) - len(failed)
		ack.ItemErrors += len(failed)

		p.Log.Info().
			Str("host", ack.Host).
			Str("index", index).
			Str("batch", b.Name).
			Int("docs", len(b.Records)).
			Int("failed", len(failed)).
			Int("took_ms", resp.Took).
			Msg("bulk written")
	}

	if p.Ledger != nil {
		if _, err := p.Ledger.RecordWritten(ctx, store.SnapshotInput{
			Index:      index,
			Alias:      p.Alias,
			Host:       ack.Host,
			Docs:       ack.Docs,
			ItemErrors: ack.ItemErrors,
			WrittenAt:  p.now(),
		}); err != nil {
			p.Log.Warn().Err(err).Str("index", index).Msg("snapshot not recorded")
		}
	}
	return ack, nil
}

// bulk submits one body, retrying transport failures and overload
// responses until the context ends.
func (p *Publisher) bulk(ctx context.Context, c elastic.Client, body []byte) (*elastic.BulkResponse, error) {
	return retry.DoValue(ctx, p.backoff(), func(ctx context.Context) (*elastic.BulkResponse, error) {
		resp, err := c.Bulk(ctx, body)
		if err == nil {
			return resp, nil
		}
		if elastic.Retryable(err) {
			p.Log.Warn().Err(err).Str("host", c.BaseURL()).Msg("bulk failed, retrying")
			return nil, retry.RetryableError(err)
		}
		return nil, err
	})
}

// createIndex makes sure index exists before any bulk, so a run with no
// records still leaves an index the alias can point at.
func (p *Publisher) createIndex(ctx context.Context, c elastic.Client, index string) error {
	return retry.Do(ctx, p.backoff(), func(ctx context.Context) error {
		err := c.CreateIndex(ctx, index)
		if err != nil && elastic.Retryable(err) {
			p.Log.Warn().Err(err).Str("host", c.BaseURL()).Str("index", index).Msg("create index failed, retrying")
			return retry.RetryableError(err)
		}
		return err
	})
}

func (p *Publisher) swap(ctx context.Context, c elastic.Client, index string) error {
	host := c.BaseURL()
	fail := func(step string, err error) error {
		return &AliasSwapError{Host: host, Index: index, Alias: p.Alias, Step: step, Err: err}
	}

	ok, err := c.IndexExists(ctx, index)
	if err != nil {
		return fail("verify", err)
	}
	if !ok {
		return fail("verify", fmt.Errorf("index %s does not exist", index))
	}

	bound, err := c.AliasExists(ctx, p.Alias)
	if err != nil {
		return fail("lookup", err)
	}
	if bound {
		if err := c.DeleteAlias(ctx, p.Alias); err != nil {
			return fail("delete", err)
		}
	}
	if err := c.PutAlias(ctx, index, p.Alias); err != nil {
		return fail("create", err)
	}

	p.Log.Info().Str("host", host).Str("alias", p.Alias).Str("index", index).Msg("alias swapped")

	if p.Ledger != nil {
		if err := p.Ledger.MarkSwapped(ctx, index, host, p.now()); err != nil {
			p.Log.Warn().Err(err).Str("index", index).Msg("swap not recorded")
		}
	}
	return nil
}
