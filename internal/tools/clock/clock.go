// Package clock provides the current-timestamp tool.
package clock

import (
	"context"
	"time"

	"github.com/haasonsaas/parley/internal/agent"
)

// Tool reports the current date and time. It runs silently, without a
// progress notice.
type Tool struct {
	nowFunc func() time.Time
}

// New creates the clock tool.
func New() *Tool {
	return &Tool{nowFunc: time.Now}
}

// SetNowFunc sets a custom time source for testing.
func (t *Tool) SetNowFunc(fn func() time.Time) {
	t.nowFunc = fn
}

func (t *Tool) Spec() agent.ToolSpec {
	return agent.ToolSpec{
		Name:        "current_time",
		Description: "Get the current date and time in ISO8601 format",
	}
}

func (t *Tool) Call(_ context.Context, _ map[string]any) agent.Outcome {
	return agent.Outcome{OK: true, Message: t.nowFunc().Format(time.RFC3339)}
}
