package worker

import (
	"reflect"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-ielts/internal/session"
	"github.com/ahrav/go-ielts/pkg/events"
)

type recordingRegistry struct {
	workflows  []any
	activities []any
}

func (r *recordingRegistry) RegisterWorkflow(w any) { r.workflows = append(r.workflows, w) }
func (r *recordingRegistry) RegisterActivity(a any) { r.activities = append(r.activities, a) }

func funcName(f any) string {
	return runtime.FuncForPC(reflect.ValueOf(f).Pointer()).Name()
}

func TestRegisterAll(t *testing.T) {
	acts := NewActivities(session.NewManager(nil, nil), events.NewNoOpEventSink(), nil)
	reg := &recordingRegistry{}

	RegisterAll(reg, acts)

	require.Len(t, reg.workflows, 1)
	assert.True(t, strings.HasSuffix(funcName(reg.workflows[0]), "workflow.PracticeWorkflow"))
	require.Len(t, reg.activities, 1)
	assert.Same(t, acts, reg.activities[0])
}

func TestNewActivities_DefaultSink(t *testing.T) {
	acts := NewActivities(session.NewManager(nil, nil), nil, nil)
	assert.NotNil(t, acts)
}
