package publish

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/ppiankov/reachpan/internal/elastic"
	"github.com/ppiankov/reachpan/internal/store"
)

// MockClient is an in-memory cluster. Fn fields override single calls.
type MockClient struct {
	Host string

	PingFn        func(ctx context.Context) error
	BulkFn        func(ctx context.Context, body []byte) (*elastic.BulkResponse, error)
	CreateIndexFn func(ctx context.Context, index string) error
	PutAliasFn    func(ctx context.Context, index, alias string) error
	DeleteAliasFn func(ctx context.Context, alias string) error
	IndexDocFn    func(ctx context.Context, index, docType string, doc any) error

	mu        sync.Mutex
	indices   map[string]map[string]json.RawMessage
	aliases   map[string]map[string]bool
	documents []any
	calls     []string
}

func NewMockClient(host string) *MockClient {
	return &MockClient{
		Host:    host,
		indices: make(map[string]map[string]json.RawMessage),
		aliases: make(map[string]map[string]bool),
	}
}

func (m *MockClient) record(call string) {
	m.mu.Lock()
	m.calls = append(m.calls, call)
	m.mu.Unlock()
}

func (m *MockClient) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

func (m *MockClient) BaseURL() string { return m.Host }

func (m *MockClient) Ping(ctx context.Context) error {
	m.record("ping")
	if m.PingFn != nil {
		return m.PingFn(ctx)
	}
	return nil
}

func (m *MockClient) Bulk(ctx context.Context, body []byte) (*elastic.BulkResponse, error) {
	m.record("bulk")
	if m.BulkFn != nil {
		return m.BulkFn(ctx, body)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	resp := &elastic.BulkResponse{Took: 1}
	sc := bufio.NewScanner(bytes.NewReader(body))
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		var action struct {
			Index struct {
				Index string `json:"_index"`
				ID    string `json:"_id"`
			} `json:"index"`
		}
		if err := json.Unmarshal(sc.Bytes(), &action); err != nil {
			return nil, err
		}
		if !sc.Scan() {
			break
		}
		idx := action.Index.Index
		if m.indices[idx] == nil {
			m.indices[idx] = make(map[string]json.RawMessage)
		}
		m.indices[idx][action.Index.ID] = append(json.RawMessage(nil), sc.Bytes()...)
		resp.Items = append(resp.Items, elastic.BulkItem{"index": {Index: idx, ID: action.Index.ID, Status: 201}})
	}
	return resp, sc.Err()
}

func (m *MockClient) CreateIndex(ctx context.Context, index string) error {
	m.record("create " + index)
	if m.CreateIndexFn != nil {
		if err := m.CreateIndexFn(ctx, index); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.indices[index] == nil {
		m.indices[index] = make(map[string]json.RawMessage)
	}
	return nil
}

func (m *MockClient) IndexExists(ctx context.Context, index string) (bool, error) {
	m.record("exists " + index)
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.indices[index]
	return ok, nil
}

func (m *MockClient) AliasExists(ctx context.Context, alias string) (bool, error) {
	m.record("alias_exists " + alias)
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.aliases[alias]) > 0, nil
}

func (m *MockClient) DeleteAlias(ctx context.Context, alias string) error {
	m.record("delete_alias " + alias)
	if m.DeleteAliasFn != nil {
		if err := m.DeleteAliasFn(ctx, alias); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.aliases, alias)
	return nil
}

func (m *MockClient) PutAlias(ctx context.Context, index, alias string) error {
	m.record("put_alias " + index)
	if m.PutAliasFn != nil {
		if err := m.PutAliasFn(ctx, index, alias); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.aliases[alias] == nil {
		m.aliases[alias] = make(map[string]bool)
	}
	m.aliases[alias][index] = true
	return nil
}

func (m *MockClient) GetAlias(ctx context.Context, alias string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for idx := range m.aliases[alias] {
		out = append(out, idx)
	}
	sort.Strings(out)
	return out, nil
}

func (m *MockClient) PutTemplate(ctx context.Context, name string, body []byte) error {
	m.record("template " + name)
	return nil
}

func (m *MockClient) IndexDocument(ctx context.Context, index, docType string, doc any) error {
	m.record("doc " + index)
	if m.IndexDocFn != nil {
		if err := m.IndexDocFn(ctx, index, docType, doc); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.documents = append(m.documents, doc)
	return nil
}

func (m *MockClient) Docs(index string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.indices[index])
}

// memLedger records ledger calls in memory.
type memLedger struct {
	written []store.SnapshotInput
	swapped []string
}

func (l *memLedger) RecordWritten(ctx context.Context, in store.SnapshotInput) (store.Snapshot, error) {
	l.written = append(l.written, in)
	return store.Snapshot{Index: in.Index, Host: in.Host, Status: store.StatusWritten}, nil
}

func (l *memLedger) MarkSwapped(ctx context.Context, index, host string, at time.Time) error {
	l.swapped = append(l.swapped, index+"@"+host)
	return nil
}
