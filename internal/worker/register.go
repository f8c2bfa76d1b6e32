// Package worker wires the practice workflow and session activities into a
// Temporal worker.
package worker

import (
	"github.com/ahrav/go-ielts/internal/session"
	"github.com/ahrav/go-ielts/internal/workflow"
)

// Registry is the registration surface of a Temporal worker.
type Registry interface {
	RegisterWorkflow(w any)
	RegisterActivity(a any)
}

// RegisterAll registers every workflow and activity with w. Call it once,
// before the worker starts.
func RegisterAll(w Registry, acts *session.Activities) {
	w.RegisterWorkflow(workflow.PracticeWorkflow)
	w.RegisterActivity(acts)
}
