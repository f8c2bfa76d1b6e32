package worker

import (
	"context"
	"fmt"
	"log/slog"

	"go.temporal.io/sdk/client"
	sdklog "go.temporal.io/sdk/log"
	sdkworker "go.temporal.io/sdk/worker"

	"github.com/ahrav/go-ielts/internal/session"
	"github.com/ahrav/go-ielts/pkg/activity"
	"github.com/ahrav/go-ielts/pkg/events"
)

// DefaultTaskQueue is the task queue practice workflows run on.
const DefaultTaskQueue = "ielts-practice"

// maxConcurrentAssessments caps in-flight LLM calls per worker.
const maxConcurrentAssessments = 4

// Dial connects to the Temporal frontend at hostPort, logging through
// logger.
func Dial(ctx context.Context, hostPort, namespace string, logger *slog.Logger) (client.Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	c, err := client.DialContext(ctx, client.Options{
		HostPort:  hostPort,
		Namespace: namespace,
		Logger:    sdklog.NewStructuredLogger(logger.With("component", "temporal")),
	})
	if err != nil {
		return nil, fmt.Errorf("dial temporal at %s: %w", hostPort, err)
	}
	return c, nil
}

// NewActivities builds the session activities. A nil sink logs events
// through logger.
func NewActivities(manager *session.Manager, sink events.EventSink, logger *slog.Logger) *session.Activities {
	if sink == nil {
		sink = events.NewLogEventSink(logger)
	}
	return session.NewActivities(activity.NewBaseActivities(sink), manager)
}

// New creates a worker on taskQueue with everything registered.
func New(c client.Client, taskQueue string, acts *session.Activities) sdkworker.Worker {
	if taskQueue == "" {
		taskQueue = DefaultTaskQueue
	}
	w := sdkworker.New(c, taskQueue, sdkworker.Options{
		MaxConcurrentActivityExecutionSize: maxConcurrentAssessments,
	})
	RegisterAll(w, acts)
	return w
}
