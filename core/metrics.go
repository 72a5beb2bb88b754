package core

import "context"

type NopMetricsRecorder struct{}

func (NopMetricsRecorder) IncCounter(context.Context, string, int64, map[string]string) {}

func (NopMetricsRecorder) ObserveHistogram(context.Context, string, float64, map[string]string) {}

func cloneTags(tags map[string]string) map[string]string {
	if len(tags) == 0 {
		return map[string]string{}
	}
	copied := make(map[string]string, len(tags))
	for key, value := range tags {
		copied[key] = value
	}
	return copied
}

type nopHook struct{}

func (nopHook) OnStart(context.Context, AttemptEvent)   {}
func (nopHook) OnSuccess(context.Context, AttemptEvent) {}
func (nopHook) OnFailure(context.Context, AttemptEvent) {}
func (nopHook) OnRetry(context.Context, AttemptEvent)   {}

var (
	_ MetricsRecorder = NopMetricsRecorder{}
	_ ProcessingHook  = nopHook{}
)
