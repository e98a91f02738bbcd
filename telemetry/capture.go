package telemetry

import "sync"

// CaptureSink accumulates everything it receives. Tests install one via
// SetSink (each test binary gets its own process, so the write-once global
// is per-package) and Reset between cases.
type CaptureSink struct {
	mu          sync.Mutex
	traces      []ProviderTrace
	completions []CompletionLog
}

func NewCaptureSink() *CaptureSink { return &CaptureSink{} }

func (c *CaptureSink) Record(t ProviderTrace) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.traces = append(c.traces, t)
}

func (c *CaptureSink) RecordCompletion(l CompletionLog) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.completions = append(c.completions, l)
}

// Traces returns a copy of the captured traces.
func (c *CaptureSink) Traces() []ProviderTrace {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]ProviderTrace(nil), c.traces...)
}

// Completions returns a copy of the captured completion logs.
func (c *CaptureSink) Completions() []CompletionLog {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]CompletionLog(nil), c.completions...)
}

// Reset drops everything captured so far.
func (c *CaptureSink) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.traces = nil
	c.completions = nil
}
