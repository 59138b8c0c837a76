package models

import "fmt"

// Metric is the similarity metric a vector index is configured with.
type Metric string

const (
	MetricDotProduct Metric = "dotproduct"
	MetricCosine     Metric = "cosine"
	MetricEuclidean  Metric = "euclidean"
)

// ParseMetric validates s and returns the matching Metric. Empty defaults to dotproduct.
func ParseMetric(s string) (Metric, error) {
	switch Metric(s) {
	case MetricDotProduct, "":
		return MetricDotProduct, nil
	case MetricCosine:
		return MetricCosine, nil
	case MetricEuclidean:
		return MetricEuclidean, nil
	default:
		return "", fmt.Errorf("unknown metric: %s (supported: dotproduct, cosine, euclidean)", s)
	}
}

// IndexDescription describes a named index as reported by the index service.
type IndexDescription struct {
	Name      string `json:"name"`
	Dimension int    `json:"dimension"`
	Metric    Metric `json:"metric"`
	Host      string `json:"host,omitempty"`
}

// NamespaceStats holds the vector count of one namespace.
type NamespaceStats struct {
	VectorCount int64 `json:"vectorCount"`
}

// IndexStats is the index's reported state at a point in time.
type IndexStats struct {
	Dimension        int                       `json:"dimension"`
	IndexFullness    float64                   `json:"indexFullness"`
	TotalVectorCount int64                     `json:"totalVectorCount"`
	Namespaces       map[string]NamespaceStats `json:"namespaces,omitempty"`
}
