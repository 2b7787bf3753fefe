// Package elastic is a small HTTP client for the Elasticsearch endpoints the
// publisher needs: bulk, index and alias management, templates and single
// document writes.
package elastic

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ppiankov/reachpan/internal/privacy"
)

const (
	defaultRequestTimeout = 30 * time.Second
	pingTimeout           = 3 * time.Second
	maxResponseBytes      = 32 * 1024 * 1024
)

// Client defines the cluster operations used by the publisher.
type Client interface {
	BaseURL() string
	Ping(ctx context.Context) error
	Bulk(ctx context.Context, body []byte) (*BulkResponse, error)
	CreateIndex(ctx context.Context, index string) error
	IndexExists(ctx context.Context, index string) (bool, error)
	AliasExists(ctx context.Context, alias string) (bool, error)
	DeleteAlias(ctx context.Context, alias string) error
	PutAlias(ctx context.Context, index, alias string) error
	GetAlias(ctx context.Context, alias string) ([]string, error)
	PutTemplate(ctx context.Context, name string, body []byte) error
	IndexDocument(ctx context.Context, index, docType string, doc any) error
}

// StatusError is returned when the cluster answers with a non-2xx status.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.Status, e.Body)
}

// Retryable reports whether err is worth retrying: a transport failure, a
// 5xx response or a 429.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Status >= 500 || se.Status == http.StatusTooManyRequests
	}
	return true
}

// ClientConfig holds configuration for DefaultClient.
type ClientConfig struct {
	BaseURL            string
	Username           string
	Password           string
	InsecureSkipVerify bool
	RequestTimeout     time.Duration
}

// DefaultClient implements Client over net/http.
type DefaultClient struct {
	http   *http.Client
	config ClientConfig
}

// NewDefaultClient constructs a DefaultClient from the given config.
// Returns an error if BaseURL is empty.
func NewDefaultClient(cfg ClientConfig) (*DefaultClient, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("BaseURL is required")
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{
		InsecureSkipVerify: cfg.InsecureSkipVerify, //nolint:gosec
	}

	return &DefaultClient{
		http: &http.Client{
			Timeout:   cfg.RequestTimeout,
			Transport: transport,
		},
		config: cfg,
	}, nil
}

// NewFromURI parses a host URI with optional embedded credentials and
// returns a client for it.
func NewFromURI(uri string, insecure bool, timeout time.Duration) (*DefaultClient, error) {
	base, user, pass, err := ParseHostURI(uri)
	if err != nil {
		return nil, err
	}
	return NewDefaultClient(ClientConfig{
		BaseURL:            base,
		Username:           user,
		Password:           pass,
		InsecureSkipVerify: insecure,
		RequestTimeout:     timeout,
	})
}

// ParseHostURI splits an http(s) URI into a credential-free base URL plus
// basic auth username and password.
func ParseHostURI(uri string) (baseURL, username, password string, err error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", "", "", fmt.Errorf("invalid URI %q: %w", privacy.Secrets(uri), err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", "", "", fmt.Errorf("unsupported scheme %q (must be http or https)", u.Scheme)
	}
	if u.Hostname() == "" {
		return "", "", "", fmt.Errorf("invalid URI %q: host is required", privacy.Secrets(uri))
	}
	if u.User != nil {
		username = u.User.Username()
		password, _ = u.User.Password()
		u.User = nil
	}
	return strings.TrimRight(u.String(), "/"), username, password, nil
}

// BaseURL returns the credential-free base URL of the cluster.
func (c *DefaultClient) BaseURL() string {
	return c.config.BaseURL
}

// do sends a request to path (relative to BaseURL) and returns the body of
// a 2xx response. Any other status yields *StatusError.
func (c *DefaultClient) do(ctx context.Context, method, path, contentType string, body []byte) ([]byte, int, error) {
	target := strings.TrimRight(c.config.BaseURL, "/") + path

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.config.Username != "" || c.config.Password != "" {
		req.SetBasicAuth(c.config.Username, c.config.Password)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("do request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return respBody, resp.StatusCode, &StatusError{Status: resp.StatusCode, Body: truncate(respBody, 200)}
	}
	return respBody, resp.StatusCode, nil
}

// exists issues a HEAD request and maps 200/404 to true/false.
func (c *DefaultClient) exists(ctx context.Context, path string) (bool, error) {
	_, status, err := c.do(ctx, http.MethodHead, path, "", nil)
	if status == http.StatusNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Ping checks connectivity by fetching the cluster root.
func (c *DefaultClient) Ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	_, _, err := c.do(pingCtx, http.MethodGet, "/", "", nil)
	return err
}

// BulkResponse is the decoded answer of the bulk endpoint.
type BulkResponse struct {
	Took   int        `json:"took"`
	Errors bool       `json:"errors"`
	Items  []BulkItem `json:"items"`
}

// BulkItem is the result for one action line; only the populated action
// key is set.
type BulkItem map[string]BulkResult

// BulkResult is the outcome of one bulk action.
type BulkResult struct {
	Index  string          `json:"_index"`
	ID     string          `json:"_id"`
	Status int             `json:"status"`
	Error  json.RawMessage `json:"error,omitempty"`
}

// Failed returns the results that carry an error.
func (r *BulkResponse) Failed() []BulkResult {
	var out []BulkResult
	for _, item := range r.Items {
		for _, res := range item {
			if len(res.Error) > 0 && string(res.Error) != "null" {
				out = append(out, res)
			}
		}
	}
	return out
}

// Bulk posts an NDJSON body to /_bulk.
func (c *DefaultClient) Bulk(ctx context.Context, body []byte) (*BulkResponse, error) {
	respBody, _, err := c.do(ctx, http.MethodPost, "/_bulk", "application/x-ndjson", body)
	if err != nil {
		return nil, fmt.Errorf("Bulk: %w", err)
	}
	var result BulkResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("Bulk decode: %w", err)
	}
	return &result, nil
}

// CreateIndex creates an empty index. An index that already exists is not
// an error.
func (c *DefaultClient) CreateIndex(ctx context.Context, index string) error {
	body, status, err := c.do(ctx, http.MethodPut, "/"+url.PathEscape(index), "", nil)
	if status == http.StatusBadRequest && bytes.Contains(body, []byte("already_exists_exception")) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("CreateIndex: %w", err)
	}
	return nil
}

// IndexExists reports whether index exists.
func (c *DefaultClient) IndexExists(ctx context.Context, index string) (bool, error) {
	ok, err := c.exists(ctx, "/"+url.PathEscape(index))
	if err != nil {
		return false, fmt.Errorf("IndexExists: %w", err)
	}
	return ok, nil
}

// AliasExists reports whether alias is bound to any index.
func (c *DefaultClient) AliasExists(ctx context.Context, alias string) (bool, error) {
	ok, err := c.exists(ctx, "/_alias/"+url.PathEscape(alias))
	if err != nil {
		return false, fmt.Errorf("AliasExists: %w", err)
	}
	return ok, nil
}

// DeleteAlias removes alias from every index it is bound to.
func (c *DefaultClient) DeleteAlias(ctx context.Context, alias string) error {
	if _, _, err := c.do(ctx, http.MethodDelete, "/_all/_alias/"+url.PathEscape(alias), "", nil); err != nil {
		return fmt.Errorf("DeleteAlias: %w", err)
	}
	return nil
}

// PutAlias binds alias to index.
func (c *DefaultClient) PutAlias(ctx context.Context, index, alias string) error {
	path := "/" + url.PathEscape(index) + "/_alias/" + url.PathEscape(alias)
	if _, _, err := c.do(ctx, http.MethodPut, path, "", nil); err != nil {
		return fmt.Errorf("PutAlias: %w", err)
	}
	return nil
}

// GetAlias returns the indices alias is bound to, sorted by the cluster.
// A missing alias yields no indices and no error.
func (c *DefaultClient) GetAlias(ctx context.Context, alias string) ([]string, error) {
	body, status, err := c.do(ctx, http.MethodGet, "/_alias/"+url.PathEscape(alias), "", nil)
	if status == http.StatusNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("GetAlias: %w", err)
	}
	var result map[string]json.RawMessage
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("GetAlias decode: %w", err)
	}
	indices := make([]string, 0, len(result))
	for name := range result {
		indices = append(indices, name)
	}
	return indices, nil
}

// PutTemplate creates or replaces an index template.
func (c *DefaultClient) PutTemplate(ctx context.Context, name string, body []byte) error {
	path := "/_template/" + url.PathEscape(name)
	if _, _, err := c.do(ctx, http.MethodPut, path, "application/json", body); err != nil {
		return fmt.Errorf("PutTemplate: %w", err)
	}
	return nil
}

// IndexDocument writes one document with a cluster-generated id. docType
// selects a legacy mapping type; empty uses _doc.
func (c *DefaultClient) IndexDocument(ctx context.Context, index, docType string, doc any) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("IndexDocument encode: %w", err)
	}
	if docType == "" {
		docType = "_doc"
	}
	path := "/" + url.PathEscape(index) + "/" + url.PathEscape(docType)
	if _, _, err := c.do(ctx, http.MethodPost, path, "application/json", body); err != nil {
		return fmt.Errorf("IndexDocument: %w", err)
	}
	return nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
