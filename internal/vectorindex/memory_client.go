package vectorindex

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/hyperjump/semsearch/internal/models"
)

const indexFileExt = ".idx"

// MemoryClient is a Client holding named MemoryIndex instances in process.
type MemoryClient struct {
	indexes map[string]*MemoryIndex
	mu      sync.RWMutex
}

// NewMemoryClient returns an empty client.
func NewMemoryClient() *MemoryClient {
	return &MemoryClient{indexes: make(map[string]*MemoryIndex)}
}

// ListIndexes returns index names in sorted order.
func (c *MemoryClient) ListIndexes(ctx context.Context) ([]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.indexes))
	for name := range c.indexes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// CreateIndex creates an empty index. Returns ErrIndexExists when the name is taken.
func (c *MemoryClient) CreateIndex(ctx context.Context, req CreateIndexRequest) error {
	if req.Name == "" {
		return fmt.Errorf("index name is required")
	}
	idx, err := NewMemoryIndex(req.Name, req.Dimension, req.Metric)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.indexes[req.Name]; ok {
		return fmt.Errorf("%w: %s", ErrIndexExists, req.Name)
	}
	c.indexes[req.Name] = idx
	return nil
}

// DescribeIndex returns the description of a named index.
func (c *MemoryClient) DescribeIndex(ctx context.Context, name string) (*models.IndexDescription, error) {
	idx, err := c.Memory(name)
	if err != nil {
		return nil, err
	}
	d := idx.Describe()
	return &d, nil
}

// Index returns a handle to a named index.
func (c *MemoryClient) Index(ctx context.Context, name string) (Index, error) {
	return c.Memory(name)
}

// Memory returns the concrete MemoryIndex for name.
func (c *MemoryClient) Memory(name string) (*MemoryIndex, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	idx, ok := c.indexes[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrIndexNotFound, name)
	}
	return idx, nil
}

// DeleteIndex removes a named index.
func (c *MemoryClient) DeleteIndex(ctx context.Context, name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.indexes[name]; !ok {
		return fmt.Errorf("%w: %s", ErrIndexNotFound, name)
	}
	delete(c.indexes, name)
	return nil
}

// SaveAll writes every index to dir as <name>.idx.
func (c *MemoryClient) SaveAll(dir string) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for name, idx := range c.indexes {
		if err := idx.Save(filepath.Join(dir, name+indexFileExt)); err != nil {
			return fmt.Errorf("save index %s: %w", name, err)
		}
	}
	return nil
}

// LoadAll reads every <name>.idx file in dir. A missing dir is not an error.
func (c *MemoryClient) LoadAll(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("read index dir: %w", err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	loaded := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), indexFileExt) {
			continue
		}
		name := strings.TrimSuffix(e.Name(), indexFileExt)
		idx, err := LoadMemoryIndex(name, filepath.Join(dir, e.Name()))
		if err != nil {
			return loaded, fmt.Errorf("load index %s: %w", name, err)
		}
		c.indexes[name] = idx
		loaded++
	}
	return loaded, nil
}
