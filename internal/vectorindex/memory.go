package vectorindex

import (
	"bufio"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/hyperjump/semsearch/internal/models"
	"github.com/hyperjump/semsearch/pkg/utils"
)

// MemoryIndex is an in-memory vector index using brute-force search.
// Upserts are idempotent on document ID: re-upserting an ID replaces its vector and metadata.
type MemoryIndex struct {
	name      string
	dimension int
	metric    models.Metric
	ids       []string
	positions map[string]int
	vectors   [][]float32
	metadata  []map[string]interface{}
	mu        sync.RWMutex
}

// NewMemoryIndex creates an empty in-memory index.
func NewMemoryIndex(name string, dimension int, metric models.Metric) (*MemoryIndex, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("dimension must be positive")
	}
	m, err := models.ParseMetric(string(metric))
	if err != nil {
		return nil, err
	}
	return &MemoryIndex{
		name:      name,
		dimension: dimension,
		metric:    m,
		positions: make(map[string]int),
	}, nil
}

// Describe returns the index name, dimension and metric.
func (m *MemoryIndex) Describe() models.IndexDescription {
	return models.IndexDescription{Name: m.name, Dimension: m.dimension, Metric: m.metric}
}

// Upsert validates every document first, then applies the whole batch.
// A batch with any invalid document is rejected without changes.
func (m *MemoryIndex) Upsert(ctx context.Context, docs []*models.Document) error {
	for _, d := range docs {
		if d == nil || d.ID == "" {
			return &UpsertError{Count: len(docs), Err: fmt.Errorf("document id is required")}
		}
		if len(d.Values) != m.dimension {
			return &UpsertError{Count: len(docs), Err: &DimensionMismatchError{
				ID: d.ID, Expected: m.dimension, Actual: len(d.Values),
			}}
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range docs {
		vec := make([]float32, m.dimension)
		copy(vec, d.Values)
		if pos, ok := m.positions[d.ID]; ok {
			m.vectors[pos] = vec
			m.metadata[pos] = d.Metadata
			continue
		}
		m.positions[d.ID] = len(m.ids)
		m.ids = append(m.ids, d.ID)
		m.vectors = append(m.vectors, vec)
		m.metadata = append(m.metadata, d.Metadata)
	}
	return nil
}

// Query returns the top-k matches. Dot product and cosine rank by descending score;
// euclidean ranks by ascending distance and reports the distance as the score.
func (m *MemoryIndex) Query(ctx context.Context, req models.QueryRequest) ([]*models.Match, error) {
	if req.TopK <= 0 {
		return nil, ErrInvalidTopK
	}
	if len(req.Vector) != m.dimension {
		return nil, &DimensionMismatchError{Expected: m.dimension, Actual: len(req.Vector)}
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.ids) == 0 {
		return []*models.Match{}, nil
	}
	type scored struct {
		pos   int
		score float64
	}
	scores := make([]scored, len(m.ids))
	for i, vec := range m.vectors {
		scores[i] = scored{pos: i, score: m.score(req.Vector, vec)}
	}
	if m.metric == models.MetricEuclidean {
		sort.SliceStable(scores, func(i, j int) bool { return scores[i].score < scores[j].score })
	} else {
		sort.SliceStable(scores, func(i, j int) bool { return scores[i].score > scores[j].score })
	}
	k := req.TopK
	if k > len(scores) {
		k = len(scores)
	}
	out := make([]*models.Match, k)
	for i := 0; i < k; i++ {
		s := scores[i]
		match := &models.Match{ID: m.ids[s.pos], Score: s.score}
		if req.IncludeMetadata {
			match.Metadata = m.metadata[s.pos]
		}
		out[i] = match
	}
	return out, nil
}

func (m *MemoryIndex) score(q, v []float32) float64 {
	switch m.metric {
	case models.MetricCosine:
		return utils.Cosine(q, v)
	case models.MetricEuclidean:
		return utils.EuclideanDistance(q, v)
	default:
		return utils.Dot(q, v)
	}
}

// DescribeStats reports the current vector count in the default namespace.
func (m *MemoryIndex) DescribeStats(ctx context.Context) (*models.IndexStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := int64(len(m.ids))
	stats := &models.IndexStats{
		Dimension:        m.dimension,
		TotalVectorCount: n,
		Namespaces:       map[string]models.NamespaceStats{},
	}
	if n > 0 {
		stats.Namespaces[""] = models.NamespaceStats{VectorCount: n}
	}
	return stats, nil
}

// Delete removes documents by ID. Unknown IDs are ignored.
func (m *MemoryIndex) Delete(ctx context.Context, ids []string) error {
	removeSet := make(map[string]bool, len(ids))
	for _, id := range ids {
		removeSet[id] = true
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	newIDs := make([]string, 0, len(m.ids))
	newVectors := make([][]float32, 0, len(m.vectors))
	newMetadata := make([]map[string]interface{}, 0, len(m.metadata))
	positions := make(map[string]int, len(m.ids))
	for i, id := range m.ids {
		if removeSet[id] {
			continue
		}
		positions[id] = len(newIDs)
		newIDs = append(newIDs, id)
		newVectors = append(newVectors, m.vectors[i])
		newMetadata = append(newMetadata, m.metadata[i])
	}
	m.ids, m.vectors, m.metadata, m.positions = newIDs, newVectors, newMetadata, positions
	return nil
}

// Size returns the number of vectors in the index.
func (m *MemoryIndex) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.ids)
}

// Save persists the index to path, creating the directory if needed. Format (little endian):
// dimension (4), metric length (4), metric, n (4), then per vector: id length (4), id,
// vector (dimension*4), metadata JSON length (4), metadata JSON.
func (m *MemoryIndex) Save(path string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create index file: %w", err)
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	if err := binary.Write(w, binary.LittleEndian, uint32(m.dimension)); err != nil {
		return fmt.Errorf("write dimension: %w", err)
	}
	if err := writeBytes(w, []byte(m.metric)); err != nil {
		return fmt.Errorf("write metric: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(m.ids))); err != nil {
		return fmt.Errorf("write count: %w", err)
	}
	for i, id := range m.ids {
		if err := writeBytes(w, []byte(id)); err != nil {
			return fmt.Errorf("write id: %w", err)
		}
		if _, err := w.Write(utils.Float32sToBytes(m.vectors[i])); err != nil {
			return fmt.Errorf("write vector: %w", err)
		}
		meta, err := json.Marshal(m.metadata[i])
		if err != nil {
			return fmt.Errorf("marshal metadata for %q: %w", id, err)
		}
		if err := writeBytes(w, meta); err != nil {
			return fmt.Errorf("write metadata: %w", err)
		}
	}
	return w.Flush()
}

// LoadMemoryIndex reads an index previously written by Save.
func LoadMemoryIndex(name, path string) (*MemoryIndex, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open index file: %w", err)
	}
	defer f.Close()
	r := bufio.NewReader(f)
	var dim, n uint32
	if err := binary.Read(r, binary.LittleEndian, &dim); err != nil {
		return nil, fmt.Errorf("read dimension: %w", err)
	}
	metric, err := readBytes(r)
	if err != nil {
		return nil, fmt.Errorf("read metric: %w", err)
	}
	m, err := NewMemoryIndex(name, int(dim), models.Metric(metric))
	if err != nil {
		return nil, err
	}
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, fmt.Errorf("read count: %w", err)
	}
	buf := make([]byte, m.dimension*4)
	for i := uint32(0); i < n; i++ {
		id, err := readBytes(r)
		if err != nil {
			return nil, fmt.Errorf("read id: %w", err)
		}
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, fmt.Errorf("read vector: %w", err)
		}
		metaJSON, err := readBytes(r)
		if err != nil {
			return nil, fmt.Errorf("read metadata: %w", err)
		}
		var meta map[string]interface{}
		if err := json.Unmarshal(metaJSON, &meta); err != nil {
			return nil, fmt.Errorf("unmarshal metadata: %w", err)
		}
		m.positions[string(id)] = len(m.ids)
		m.ids = append(m.ids, string(id))
		m.vectors = append(m.vectors, utils.BytesToFloat32s(buf))
		m.metadata = append(m.metadata, meta)
	}
	return m, nil
}

func writeBytes(w io.Writer, b []byte) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(b))); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

func readBytes(r io.Reader) ([]byte, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return b, nil
}
