package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "reachpan.db")
	st, err := Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})
	return st, path
}

func TestOpenAndMigrate(t *testing.T) {
	st, path := openTestStore(t)

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("db file not created: %v", err)
	}

	var version string
	if err := st.db.QueryRow("SELECT value FROM metadata WHERE key = 'schema_version'").Scan(&version); err != nil {
		t.Fatalf("read schema version: %v", err)
	}
	if version != "1" {
		t.Fatalf("unexpected schema version: %s", version)
	}
}

func TestOpen_Reopen(t *testing.T) {
	st, path := openTestStore(t)
	_ = st.Close()

	again, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	_ = again.Close()
}

func TestOpen_RejectsNewerSchema(t *testing.T) {
	st, path := openTestStore(t)
	if _, err := st.db.Exec("UPDATE metadata SET value = '2' WHERE key = 'schema_version'"); err != nil {
		t.Fatalf("bump version: %v", err)
	}
	_ = st.Close()

	if again, err := Open(path); err == nil {
		_ = again.Close()
		t.Fatal("expected error for a ledger written by a newer schema")
	}
}

func TestOpen_EmptyPath(t *testing.T) {
	if _, err := Open("  "); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestRecordWrittenAndSwap(t *testing.T) {
	st, _ := openTestStore(t)
	ctx := context.Background()

	writtenAt := time.Date(2016, 9, 2, 12, 0, 0, 0, time.UTC)
	snap, err := st.RecordWritten(ctx, SnapshotInput{
		Index:      "facebook-20160902-1200",
		Alias:      "facebook",
		Host:       "http://es1:9200",
		Docs:       120,
		ItemErrors: 2,
		WrittenAt:  writtenAt,
	})
	if err != nil {
		t.Fatalf("record written: %v", err)
	}
	if snap.ID == 0 || snap.Status != StatusWritten {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
	if !snap.WrittenAt.Equal(writtenAt) || !snap.SwappedAt.IsZero() {
		t.Fatalf("unexpected times: %+v", snap)
	}

	pending, err := st.Pending(ctx)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected 1 pending, got %d", len(pending))
	}

	swappedAt := writtenAt.Add(time.Minute)
	if err := st.MarkSwapped(ctx, snap.Index, snap.Host, swappedAt); err != nil {
		t.Fatalf("mark swapped: %v", err)
	}

	pending, err = st.Pending(ctx)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("expected no pending, got %d", len(pending))
	}

	all, err := st.ListSnapshots(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 1 || all[0].Status != StatusSwapped || !all[0].SwappedAt.Equal(swappedAt) {
		t.Fatalf("unexpected list: %+v", all)
	}
	if all[0].Docs != 120 || all[0].ItemErrors != 2 {
		t.Fatalf("unexpected counts: %+v", all[0])
	}
}

func TestRecordWritten_RewriteResetsStatus(t *testing.T) {
	st, _ := openTestStore(t)
	ctx := context.Background()
	at := time.Date(2016, 9, 2, 12, 0, 0, 0, time.UTC)

	in := SnapshotInput{Index: "fb-1", Alias: "fb", Host: "h1", Docs: 1, WrittenAt: at}
	if _, err := st.RecordWritten(ctx, in); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := st.MarkSwapped(ctx, "fb-1", "h1", at); err != nil {
		t.Fatalf("swap: %v", err)
	}

	in.Docs = 5
	snap, err := st.RecordWritten(ctx, in)
	if err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	if snap.Status != StatusWritten || snap.Docs != 5 || !snap.SwappedAt.IsZero() {
		t.Fatalf("unexpected snapshot after rewrite: %+v", snap)
	}

	all, _ := st.ListSnapshots(ctx)
	if len(all) != 1 {
		t.Fatalf("expected upsert, got %d rows", len(all))
	}
}

func TestRecordWritten_Validation(t *testing.T) {
	st, _ := openTestStore(t)
	ctx := context.Background()
	at := time.Now()

	cases := []SnapshotInput{
		{Alias: "fb", Host: "h", WrittenAt: at},
		{Index: "fb-1", Host: "h", WrittenAt: at},
		{Index: "fb-1", Alias: "fb", WrittenAt: at},
		{Index: "fb-1", Alias: "fb", Host: "h"},
		{Index: "fb-1", Alias: "fb", Host: "h", WrittenAt: at, Docs: -1},
	}
	for i, in := range cases {
		if _, err := st.RecordWritten(ctx, in); err == nil {
			t.Errorf("case %d: expected error", i)
		}
	}
}

func TestMarkSwapped_Unknown(t *testing.T) {
	st, _ := openTestStore(t)
	if err := st.MarkSwapped(context.Background(), "nope", "h1", time.Now()); err == nil {
		t.Fatal("expected error for unknown snapshot")
	}
}

func TestListSnapshots_Filters(t *testing.T) {
	st, _ := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2016, 9, 1, 0, 0, 0, 0, time.UTC)

	for i, idx := range []string{"fb-1", "fb-2", "fb-3"} {
		for _, host := range []string{"h1", "h2"} {
			if _, err := st.RecordWritten(ctx, SnapshotInput{
				Index: idx, Alias: "fb", Host: host, WrittenAt: base.Add(time.Duration(i) * time.Hour),
			}); err != nil {
				t.Fatalf("record: %v", err)
			}
		}
	}
	if err := st.MarkSwapped(ctx, "fb-3", "h1", base.Add(3*time.Hour)); err != nil {
		t.Fatalf("swap: %v", err)
	}

	all, err := st.ListSnapshots(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 6 || all[0].Index != "fb-3" || all[5].Index != "fb-1" {
		t.Fatalf("unexpected order: %+v", all)
	}

	byIndex, _ := st.ListSnapshots(ctx, SnapshotFilter{Index: "fb-2"})
	if len(byIndex) != 2 {
		t.Fatalf("expected 2 for fb-2, got %d", len(byIndex))
	}

	swapped, _ := st.ListSnapshots(ctx, SnapshotFilter{Status: StatusSwapped})
	if len(swapped) != 1 || swapped[0].Host != "h1" {
		t.Fatalf("unexpected swapped: %+v", swapped)
	}

	limited, _ := st.ListSnapshots(ctx, SnapshotFilter{Limit: 2})
	if len(limited) != 2 {
		t.Fatalf("expected limit 2, got %d", len(limited))
	}
}

func TestPruneOld(t *testing.T) {
	st, _ := openTestStore(t)
	ctx := context.Background()

	if _, err := st.RecordWritten(ctx, SnapshotInput{
		Index: "old", Alias: "fb", Host: "h", WrittenAt: time.Now().AddDate(0, 0, -40),
	}); err != nil {
		t.Fatalf("record: %v", err)
	}
	if _, err := st.RecordWritten(ctx, SnapshotInput{
		Index: "new", Alias: "fb", Host: "h", WrittenAt: time.Now(),
	}); err != nil {
		t.Fatalf("record: %v", err)
	}

	n, err := st.PruneOld(ctx, 30)
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 pruned, got %d", n)
	}

	if n, _ := st.PruneOld(ctx, 0); n != 0 {
		t.Fatalf("zero retain should be a no-op, got %d", n)
	}
}

func TestNilStore(t *testing.T) {
	var st *Store
	if err := st.Close(); err != nil {
		t.Fatalf("close nil: %v", err)
	}
	if _, err := st.ListSnapshots(context.Background()); err == nil {
		t.Fatal("expected error from nil store")
	}
}
