package luna

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// ToolKind distinguishes always-available tools from context-dependent
// ones. Static tools survive every selection fallback.
type ToolKind int

const (
	// ToolStatic tools are always available (e.g. the clock).
	ToolStatic ToolKind = iota
	// ToolDynamic tools are loaded per context (e.g. weather, search).
	ToolDynamic
)

func (k ToolKind) String() string {
	if k == ToolStatic {
		return "static"
	}
	return "dynamic"
}

// ToolState is the lifecycle status of a catalog entry.
type ToolState string

const (
	ToolAvailable ToolState = "available"
	ToolLoading   ToolState = "loading"
	ToolExecuting ToolState = "executing"
	ToolError     ToolState = "error"
	ToolDisabled  ToolState = "disabled"
)

// Tool is a single invocable capability: its function-calling spec and
// its execution logic. Implementations live under tools/.
type Tool interface {
	Spec() ToolDefinition
	Execute(ctx context.Context, args json.RawMessage) (ToolResult, error)
}

// ExecutionStatus is the live progress of an in-flight invocation.
type ExecutionStatus struct {
	Running     bool      `json:"running"`
	Progress    float64   `json:"progress"` // 0..1
	Step        string    `json:"step"`
	Request     string    `json:"request"`
	StartedAt   time.Time `json:"started_at"`
	EstimatedAt time.Time `json:"estimated_completion"`
}

// latencyWindow bounds the moving-average sample count.
const latencyWindow = 50

// Entry is one catalog entry: a Tool plus runtime health and usage
// metrics. Metric updates and status transitions are serialized by a
// per-entry invocation lock, so concurrent invocations of the same tool
// never race on counters.
type Entry struct {
	tool Tool
	name string
	kind ToolKind

	mu         sync.Mutex // per-tool invocation lock
	status     ToolState
	usageCount uint64
	errorCount uint64
	lastUsed   time.Time
	latencies  []time.Duration // ring of the last latencyWindow samples
	latPos     int
	exec       ExecutionStatus
}

func newEntry(tool Tool, kind ToolKind) *Entry {
	return &Entry{
		tool:   tool,
		name:   tool.Spec().Name,
		kind:   kind,
		status: ToolAvailable,
	}
}

// Name returns the entry's unique tool name.
func (e *Entry) Name() string { return e.name }

// Kind returns whether the tool is static or dynamic.
func (e *Entry) Kind() ToolKind { return e.kind }

// Spec returns the tool's function-calling definition.
func (e *Entry) Spec() ToolDefinition { return e.tool.Spec() }

// Status returns the entry's lifecycle status.
func (e *Entry) Status() ToolState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// Disable marks the entry unavailable without unregistering it.
func (e *Entry) Disable() {
	e.mu.Lock()
	e.status = ToolDisabled
	e.mu.Unlock()
}

// Enable returns a disabled or errored entry to service.
func (e *Entry) Enable() {
	e.mu.Lock()
	e.status = ToolAvailable
	e.mu.Unlock()
}

// Metrics is a snapshot of an entry's cumulative health counters.
type Metrics struct {
	UsageCount     uint64          `json:"usage_count"`
	ErrorCount     uint64          `json:"error_count"`
	ErrorRate      float64         `json:"error_rate"`
	AverageLatency time.Duration   `json:"average_latency"`
	LastUsed       time.Time       `json:"last_used"`
	Status         ToolState       `json:"status"`
	Execution      ExecutionStatus `json:"execution"`
}

// Metrics returns a consistent snapshot of the entry's counters.
func (e *Entry) Metrics() Metrics {
	e.mu.Lock()
	defer e.mu.Unlock()
	m := Metrics{
		UsageCount:     e.usageCount,
		ErrorCount:     e.errorCount,
		AverageLatency: e.averageLatencyLocked(),
		LastUsed:       e.lastUsed,
		Status:         e.status,
		Execution:      e.exec,
	}
	if e.usageCount > 0 {
		m.ErrorRate = float64(e.errorCount) / float64(e.usageCount)
	}
	return m
}

func (e *Entry) averageLatencyLocked() time.Duration {
	if len(e.latencies) == 0 {
		return 0
	}
	var sum time.Duration
	for _, d := range e.latencies {
		sum += d
	}
	return sum / time.Duration(len(e.latencies))
}

func (e *Entry) recordLatencyLocked(d time.Duration) {
	if len(e.latencies) < latencyWindow {
		e.latencies = append(e.latencies, d)
		return
	}
	e.latencies[e.latPos] = d
	e.latPos = (e.latPos + 1) % latencyWindow
}

// ExecuteWithMonitoring runs the tool with timing, progress markers,
// and counter updates. Failures — returned errors, structured tool
// errors, and panics alike — come back as a ToolResult with Error set;
// callers treat a failed tool as data, never as a thrown fault.
func (e *Entry) ExecuteWithMonitoring(ctx context.Context, request string, args json.RawMessage) (result ToolResult) {
	e.mu.Lock()
	start := time.Now()
	e.exec = ExecutionStatus{
		Running:   true,
		Progress:  0.2,
		Step:      "executing " + e.name,
		Request:   request,
		StartedAt: start,
	}
	if avg := e.averageLatencyLocked(); avg > 0 {
		e.exec.EstimatedAt = start.Add(avg)
	} else {
		e.exec.EstimatedAt = start.Add(3 * time.Second)
	}
	e.usageCount++
	e.lastUsed = start
	e.status = ToolExecuting
	e.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			result = ToolResult{Error: fmt.Sprintf("panic in tool %s: %v", e.name, r)}
		}
		failed := result.Error != ""
		e.mu.Lock()
		e.recordLatencyLocked(time.Since(start))
		if failed {
			e.errorCount++
			e.status = ToolError
			e.exec = ExecutionStatus{Step: "error: " + result.Error}
		} else {
			e.status = ToolAvailable
			e.exec = ExecutionStatus{Progress: 1, Step: "done"}
		}
		e.mu.Unlock()
	}()

	res, err := e.tool.Execute(ctx, args)
	if err != nil {
		return ToolResult{Error: err.Error()}
	}
	return res
}
