package config

import "strings"

// Credential is the access token for one owned page.
type Credential struct {
	SourceID string
	Token    string
}

// Credentials is a read-only token table keyed by page handle. Lookups are
// case-insensitive because page handles are not.
type Credentials struct {
	tokens   map[string]string
	fallback string
}

// NewCredentials builds a table from entries. The first entry with a
// non-empty token becomes the default credential for pages that have none.
func NewCredentials(entries []Credential) *Credentials {
	c := &Credentials{tokens: make(map[string]string, len(entries))}
	for _, e := range entries {
		key := strings.ToLower(strings.TrimSpace(e.SourceID))
		if key == "" || e.Token == "" {
			continue
		}
		if _, ok := c.tokens[key]; ok {
			continue
		}
		c.tokens[key] = e.Token
		if c.fallback == "" {
			c.fallback = e.Token
		}
	}
	return c
}

// Lookup returns the page's own token.
func (c *Credentials) Lookup(sourceID string) (string, bool) {
	if c == nil {
		return "", false
	}
	tok, ok := c.tokens[strings.ToLower(strings.TrimSpace(sourceID))]
	return tok, ok
}

// Owned reports whether sourceID has its own token.
func (c *Credentials) Owned(sourceID string) bool {
	_, ok := c.Lookup(sourceID)
	return ok
}

// Default returns the token used for pages without one of their own.
func (c *Credentials) Default() string {
	if c == nil {
		return ""
	}
	return c.fallback
}

// Resolve returns the page's own token, or the default credential.
func (c *Credentials) Resolve(sourceID string) string {
	if tok, ok := c.Lookup(sourceID); ok {
		return tok
	}
	return c.Default()
}

// Len returns the number of owned pages with a token.
func (c *Credentials) Len() int {
	if c == nil {
		return 0
	}
	return len(c.tokens)
}
