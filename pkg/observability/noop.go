package observability

import (
	"context"
	"time"
)

// NoopStorage discards every event. It is the default StorageAdapter
// when a caller passes nil.
type NoopStorage struct{}

func (NoopStorage) OnStepStart(context.Context, string, StepPrompts, StepConfig)     {}
func (NoopStorage) OnStepValidation(context.Context, string, time.Duration, []string) {}
func (NoopStorage) OnProviderCall(context.Context, string, time.Duration, int, int, float64, int, string) {
}
func (NoopStorage) OnSuspiciousContent(context.Context, string, []string)   {}
func (NoopStorage) OnStepComplete(context.Context, string, map[string]any) {}
func (NoopStorage) OnStepFailed(context.Context, string, error, int)       {}

var _ StorageAdapter = NoopStorage{}
