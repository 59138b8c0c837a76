package vectorindex

import "github.com/hyperjump/semsearch/internal/models"

// Request and response bodies of the index service REST API, shared by HTTPClient
// and the local server.

// CreateIndexRequest is the body of POST /indexes.
type CreateIndexRequest struct {
	Name      string        `json:"name"`
	Dimension int           `json:"dimension"`
	Metric    models.Metric `json:"metric"`
	Spec      *IndexSpec    `json:"spec,omitempty"`
}

// IndexSpec selects the deployment of a new index.
type IndexSpec struct {
	Pod *PodSpec `json:"pod,omitempty"`
}

// PodSpec places an index in a pod environment.
type PodSpec struct {
	Environment string `json:"environment"`
	PodType     string `json:"pod_type,omitempty"`
}

// ListIndexesResponse is the body of GET /indexes.
type ListIndexesResponse struct {
	Indexes []models.IndexDescription `json:"indexes"`
}

// UpsertRequest is the body of POST /vectors/upsert.
type UpsertRequest struct {
	Vectors   []*models.Document `json:"vectors"`
	Namespace string             `json:"namespace,omitempty"`
}

// UpsertResponse is the body returned by a successful upsert.
type UpsertResponse struct {
	UpsertedCount int `json:"upsertedCount"`
}

// QueryResponse is the body returned by POST /query.
type QueryResponse struct {
	Matches   []*models.Match `json:"matches"`
	Namespace string          `json:"namespace"`
}

// ErrorResponse is the body of any non-2xx response.
type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}
