// Package source walks the paginated feeds of a set of pages and fans the
// walks out across pages, merging results back in the caller's page order.
package source

import (
	"context"

	"github.com/ppiankov/reachpan/internal/graph"
	"github.com/ppiankov/reachpan/internal/record"
)

// Task is one page to walk. Index is the page's position in the caller's
// list and decides where its records land in the merged output.
type Task struct {
	Index      int
	SourceID   string
	Credential string
}

// FirstPageFunc fetches the first feed page of a page, bounded above by
// until (a POSIX timestamp, empty for now).
type FirstPageFunc func(ctx context.Context, sourceID, credential, until string) (*graph.FetchResult, error)

// NextPageFunc follows a paging.next URL.
type NextPageFunc func(ctx context.Context, next string) (*graph.FetchResult, error)

// ProcessFunc turns one feed item into a record. A nil record skips the item.
type ProcessFunc func(ctx context.Context, task Task, item graph.Item) (record.Record, error)

// WalkFunc walks the feed of one page.
type WalkFunc func(ctx context.Context, task Task) ([]record.Record, error)
