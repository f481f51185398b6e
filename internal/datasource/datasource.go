// Package datasource defines the adapter contract the orchestrator uses to
// run a substituted query against a configured data source, plus the concrete
// drivers. New kinds register an Adapter; the orchestrator is untouched.
package datasource

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/reportengine/internal/models"
)

var (
	// ErrConnection marks failures to reach or authenticate with the source.
	ErrConnection = errors.New("datasource connection failed")
	// ErrQuery marks failures executing or reading the query itself.
	ErrQuery = errors.New("query failed")
	// ErrTimeout marks a query that exceeded the config's timeout.
	ErrTimeout = errors.New("query timed out")
)

// Result is a tabular query result with every value already rendered as a
// string, ready for the format encoders.
type Result struct {
	Columns []string
	Rows    [][]string
	// Truncated is set when the row cap cut the result short.
	Truncated bool
}

// Adapter runs a query against one kind of data source.
type Adapter interface {
	Run(ctx context.Context, ds *models.ReportDatasource, query string, timeout time.Duration, maxRows int) (*Result, error)
}

// Registry maps datasource kinds to their adapters.
type Registry struct {
	adapters map[models.DatasourceKind]Adapter
}

func NewRegistry() *Registry {
	return &Registry{adapters: make(map[models.DatasourceKind]Adapter)}
}

func (r *Registry) Register(kind models.DatasourceKind, a Adapter) {
	r.adapters[kind] = a
}

func (r *Registry) Get(kind models.DatasourceKind) (Adapter, error) {
	a, ok := r.adapters[kind]
	if !ok {
		return nil, fmt.Errorf("unsupported datasource kind: %s", kind)
	}
	return a, nil
}
