package trace

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Provenance tags where a result came from.
const (
	ProvenanceBuiltin = "builtin"
	ProvenanceTool    = "tool"
	ProvenanceMCP     = "mcp"
	ProvenanceUser    = "user"
)

// Metadata rides along with each entry. The tree fields (Depth, ParentPath,
// ChildCount, Subtree*) are zero until AnalyzeTreeStructure fills them in.
type Metadata struct {
	Provenance string         `json:"provenance"`
	ToolCalled string         `json:"tool_called,omitempty"`
	Error      string         `json:"error,omitempty"`
	Context    map[string]any `json:"context,omitempty"`
	TaskID     int64          `json:"task_id,omitempty"`

	Depth                 int     `json:"depth"`
	ParentPath            []int   `json:"parent_path"`
	HasChildren           bool    `json:"has_children"`
	ChildCount            int     `json:"child_count"`
	SubtreeDurationMS     float64 `json:"subtree_duration_ms"`
	SubtreeOperationCount int     `json:"subtree_operation_count"`
}

// TraceEntry is one recorded evaluation step. Entries are appended in
// temporal order; Path addresses the step structurally (child indices from
// the AST root), so consumers can rebuild the execution tree even when par
// branches complete out of order.
type TraceEntry struct {
	ID          int       `json:"id"`
	Timestamp   time.Time `json:"timestamp"`
	Operation   string    `json:"operation"`
	Path        []int     `json:"path"`
	Input       any       `json:"input"`
	Output      any       `json:"output"`
	DurationMS  float64   `json:"duration_ms"`
	Explanation string    `json:"explanation"`
	Metadata    Metadata  `json:"metadata"`

	started time.Time
	done    bool
}

// Recorder collects trace entries from all evaluation branches. Paths are
// explicitly threaded values passed by the evaluator, never a shared mutable
// stack, so concurrent branches cannot corrupt each other's position. The
// entry list is the one piece of shared state and sits behind a mutex.
type Recorder struct {
	mu      sync.Mutex
	entries []*TraceEntry
	sink    io.Writer
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

// NewRecorderWithSink writes every completed entry to w as one JSON object
// per line, in completion order.
func NewRecorderWithSink(w io.Writer) *Recorder {
	return &Recorder{sink: w}
}

// StartOperation opens a span. path must not be retained by the caller after
// the call; the recorder stores its own copy.
func (r *Recorder) StartOperation(op string, path []int, input any) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry := &TraceEntry{
		ID:        len(r.entries),
		Timestamp: time.Now(),
		Operation: op,
		Path:      clonePath(path),
		Metadata:  Metadata{Provenance: ProvenanceBuiltin},
		Input:     input,
		started:   time.Now(),
	}
	r.entries = append(r.entries, entry)
	return entry.ID
}

// EndOperation closes a span, computing its duration. meta may be nil to keep
// the defaults set at start.
func (r *Recorder) EndOperation(id int, output any, meta *Metadata) {
	r.mu.Lock()
	if id < 0 || id >= len(r.entries) {
		r.mu.Unlock()
		return
	}
	entry := r.entries[id]
	entry.Output = output
	entry.DurationMS = float64(time.Since(entry.started).Microseconds()) / 1000.0
	if meta != nil {
		entry.Metadata = *meta
	}
	entry.done = true
	sink := r.sink
	line := entry.jsonLine()
	r.mu.Unlock()

	if sink != nil && line != nil {
		sink.Write(append(line, '\n'))
	}
}

// LogError records a failure that bypassed normal completion.
func (r *Recorder) LogError(op string, path []int, input any, err error) {
	r.mu.Lock()
	entry := &TraceEntry{
		ID:          len(r.entries),
		Timestamp:   time.Now(),
		Operation:   op,
		Path:        clonePath(path),
		Input:       input,
		Explanation: fmt.Sprintf("error: %v", err),
		Metadata:    Metadata{Provenance: ProvenanceBuiltin, Error: err.Error()},
		started:     time.Now(),
		done:        true,
	}
	r.entries = append(r.entries, entry)
	sink := r.sink
	line := entry.jsonLine()
	r.mu.Unlock()

	if sink != nil && line != nil {
		sink.Write(append(line, '\n'))
	}
}

// Entries returns a snapshot of all entries in append order.
func (r *Recorder) Entries() []*TraceEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*TraceEntry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Completed returns only spans that have ended.
func (r *Recorder) Completed() []*TraceEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*TraceEntry
	for _, e := range r.entries {
		if e.done {
			out = append(out, e)
		}
	}
	return out
}

func (r *Recorder) Clear() {
	r.mu.Lock()
	r.entries = nil
	r.mu.Unlock()
}

// WriteJSONL dumps every entry as JSON-L. Consumers must tolerate unordered
// arrival and reconstruct tree order from path.
func (r *Recorder) WriteJSONL(w io.Writer) error {
	for _, e := range r.Entries() {
		line := e.jsonLine()
		if line == nil {
			continue
		}
		if _, err := w.Write(append(line, '\n')); err != nil {
			return err
		}
	}
	return nil
}

func (e *TraceEntry) jsonLine() []byte {
	b, err := json.Marshal(e)
	if err != nil {
		return nil
	}
	return b
}

func clonePath(path []int) []int {
	out := make([]int, len(path))
	copy(out, path)
	return out
}

// pathKey serializes a path to a compact "a.b.c" map key.
func pathKey(p []int) string {
	if len(p) == 0 {
		return ""
	}
	var sb strings.Builder
	for i, x := range p {
		if i > 0 {
			sb.WriteByte('.')
		}
		sb.WriteString(strconv.Itoa(x))
	}
	return sb.String()
}
