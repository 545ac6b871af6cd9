package document

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed documents.yaml
var defaultDocuments []byte

// ErrCollectionNotFound is returned for an account/database/collection triple
// the catalog does not hold.
var ErrCollectionNotFound = errors.New("collection not found")

// Document is a schemaless record, as stored in a document database.
type Document map[string]any

type collection struct {
	Account   string     `yaml:"account"`
	Database  string     `yaml:"database"`
	ID        string     `yaml:"id"`
	Documents []Document `yaml:"documents"`
}

type file struct {
	Collections []collection `yaml:"collections"`
}

type key struct {
	account, database, collection string
}

func (k key) String() string {
	return k.account + "/" + k.database + "/" + k.collection
}

// Catalog is an in-process set of document collections. Writes do not
// survive a restart.
type Catalog struct {
	mu          sync.RWMutex
	collections map[key][]Document
}

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{collections: make(map[key][]Document)}
}

// Seed returns the built-in factory collections.
func Seed() *Catalog {
	c, err := Parse(defaultDocuments)
	if err != nil {
		panic(fmt.Sprintf("embedded documents: %v", err))
	}
	return c
}

// Parse decodes a YAML collections document.
func Parse(data []byte) (*Catalog, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse documents: %w", err)
	}

	c := NewCatalog()
	for i, col := range f.Collections {
		if col.Account == "" || col.Database == "" || col.ID == "" {
			return nil, fmt.Errorf("collection %d: account, database and id are required", i)
		}
		c.Replace(col.Account, col.Database, col.ID, col.Documents)
	}
	return c, nil
}

// LoadFile reads the built-in collections and replaces or adds the
// collections found in the file at path. An empty path returns the seed.
func LoadFile(path string) (*Catalog, error) {
	c := Seed()
	if path == "" {
		return c, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("documents file %s not found", path)
		}
		return nil, err
	}

	overrides, err := Parse(data)
	if err != nil {
		return nil, err
	}

	overrides.mu.RLock()
	defer overrides.mu.RUnlock()
	for k, docs := range overrides.collections {
		c.Replace(k.account, k.database, k.collection, docs)
	}
	return c, nil
}

func newKey(account, database, collection string) key {
	return key{
		account:    strings.TrimSpace(account),
		database:   strings.TrimSpace(database),
		collection: strings.TrimSpace(collection),
	}
}

// Replace sets the full contents of a collection, creating it if needed.
func (c *Catalog) Replace(account, database, collection string, docs []Document) {
	k := newKey(account, database, collection)
	stored := make([]Document, 0, len(docs))
	for _, doc := range docs {
		if doc != nil {
			stored = append(stored, doc)
		}
	}

	c.mu.Lock()
	c.collections[k] = stored
	c.mu.Unlock()
}

// Documents returns every document of a collection in insertion order.
func (c *Catalog) Documents(_ context.Context, account, database, collection string) ([]Document, error) {
	k := newKey(account, database, collection)

	c.mu.RLock()
	defer c.mu.RUnlock()
	docs, ok := c.collections[k]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, k)
	}
	return append([]Document(nil), docs...), nil
}

// Insert appends v to an existing collection. v is stored through its JSON
// form, so struct tags decide the field names.
func (c *Catalog) Insert(_ context.Context, account, database, collection string, v any) error {
	doc, err := toDocument(v)
	if err != nil {
		return err
	}
	k := newKey(account, database, collection)

	c.mu.Lock()
	defer c.mu.Unlock()
	docs, ok := c.collections[k]
	if !ok {
		return fmt.Errorf("%w: %s", ErrCollectionNotFound, k)
	}
	c.collections[k] = append(docs, doc)
	return nil
}

// Decode converts documents into a typed slice pointed to by dst.
func Decode(docs []Document, dst any) error {
	data, err := json.Marshal(docs)
	if err != nil {
		return fmt.Errorf("failed to encode documents: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("failed to decode documents: %w", err)
	}
	return nil
}

func toDocument(v any) (Document, error) {
	if doc, ok := v.(Document); ok {
		return doc, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("document must be a JSON object: %w", err)
	}
	return doc, nil
}
