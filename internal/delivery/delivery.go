// Package delivery sends finished report artifacts to their configured
// destinations. The retry engine is generic over the Adapter interface;
// adding a delivery method means implementing Adapter and registering it,
// the orchestrator and retry logic are untouched.
package delivery

import (
	"context"
	"fmt"

	"github.com/reportengine/internal/models"
)

// Artifact is the generated report file handed to delivery adapters.
type Artifact struct {
	Path       string
	FileName   string
	SizeBytes  int64
	ReportName string
	Format     models.OutputFormat
}

// Detail is the method-specific blob recorded on the delivery log row
// (message ids, uploaded paths, response codes).
type Detail map[string]interface{}

// Adapter performs a single delivery attempt to every recipient.
// methodConfig is the delivery row's raw JSON configuration blob; vars are
// the execution's resolved template variables.
type Adapter interface {
	Send(ctx context.Context, methodConfig string, recipients []string, artifact Artifact, vars map[string]string) (Detail, error)
}

// Registry maps delivery methods to their adapters.
type Registry struct {
	adapters map[models.DeliveryMethod]Adapter
}

func NewRegistry() *Registry {
	return &Registry{adapters: make(map[models.DeliveryMethod]Adapter)}
}

func (r *Registry) Register(method models.DeliveryMethod, a Adapter) {
	r.adapters[method] = a
}

func (r *Registry) Get(method models.DeliveryMethod) (Adapter, error) {
	a, ok := r.adapters[method]
	if !ok {
		return nil, fmt.Errorf("unsupported delivery method: %s", method)
	}
	return a, nil
}
