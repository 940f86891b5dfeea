package trace

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"reflect"
	"sync"
	"testing"
)

func TestStartEndOperation(t *testing.T) {
	r := NewRecorder()

	id := r.StartOperation("calc", []int{0}, "(calc \"1+1\")")
	r.EndOperation(id, 2, nil)

	entries := r.Completed()
	if len(entries) != 1 {
		t.Fatalf("expected 1 completed entry, got %d", len(entries))
	}
	e := entries[0]
	if e.Operation != "calc" {
		t.Errorf("operation = %q, want calc", e.Operation)
	}
	if !reflect.DeepEqual(e.Path, []int{0}) {
		t.Errorf("path = %v, want [0]", e.Path)
	}
	if e.Output != 2 {
		t.Errorf("output = %v, want 2", e.Output)
	}
	if e.DurationMS < 0 {
		t.Errorf("duration should be non-negative, got %f", e.DurationMS)
	}
}

func TestPathIsCopied(t *testing.T) {
	r := NewRecorder()
	path := []int{0, 1}
	id := r.StartOperation("op", path, nil)
	path[0] = 99
	r.EndOperation(id, nil, nil)

	if got := r.Entries()[0].Path; !reflect.DeepEqual(got, []int{0, 1}) {
		t.Errorf("recorder must store its own path copy, got %v", got)
	}
}

func TestLogError(t *testing.T) {
	r := NewRecorder()
	r.LogError("bad_op", []int{1}, "(bad_op)", errors.New("tool not found"))

	entries := r.Entries()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].Metadata.Error != "tool not found" {
		t.Errorf("error metadata = %q", entries[0].Metadata.Error)
	}
}

func TestConcurrentSpans(t *testing.T) {
	r := NewRecorder()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id := r.StartOperation("op", []int{n}, nil)
			r.EndOperation(id, n, nil)
		}(i)
	}
	wg.Wait()

	if got := len(r.Completed()); got != 20 {
		t.Errorf("expected 20 completed entries, got %d", got)
	}
	// ids must be unique
	seen := make(map[int]bool)
	for _, e := range r.Entries() {
		if seen[e.ID] {
			t.Errorf("duplicate entry id %d", e.ID)
		}
		seen[e.ID] = true
	}
}

func TestAnalyzeTreeStructure(t *testing.T) {
	r := NewRecorder()

	root := r.StartOperation("seq", nil, "(seq (calc \"1+1\") (notify \"done\"))")
	c1 := r.StartOperation("calc", []int{0}, "(calc \"1+1\")")
	r.EndOperation(c1, 2, nil)
	c2 := r.StartOperation("notify", []int{1}, "(notify \"done\")")
	r.EndOperation(c2, "done", nil)
	r.EndOperation(root, nil, nil)

	r.AnalyzeTreeStructure()

	entries := r.Entries()
	rootEntry := entries[0]
	if rootEntry.Metadata.Depth != 0 {
		t.Errorf("root depth = %d, want 0", rootEntry.Metadata.Depth)
	}
	if rootEntry.Metadata.ParentPath != nil {
		t.Errorf("root should have no parent, got %v", rootEntry.Metadata.ParentPath)
	}
	if rootEntry.Metadata.ChildCount != 2 {
		t.Errorf("root child count = %d, want 2", rootEntry.Metadata.ChildCount)
	}
	if !rootEntry.Metadata.HasChildren {
		t.Error("root should have children")
	}
	if rootEntry.Metadata.SubtreeOperationCount != 3 {
		t.Errorf("root subtree ops = %d, want 3", rootEntry.Metadata.SubtreeOperationCount)
	}

	child := entries[1]
	if child.Metadata.Depth != 1 {
		t.Errorf("child depth = %d, want 1", child.Metadata.Depth)
	}
	if !reflect.DeepEqual(child.Metadata.ParentPath, []int{}) {
		t.Errorf("child parent path = %v, want []", child.Metadata.ParentPath)
	}
	if child.Metadata.HasChildren {
		t.Error("leaf should have no children")
	}
}

func TestAnalyzeToleratesOutOfOrderEntries(t *testing.T) {
	r := NewRecorder()

	// par branches complete out of tree order: deepest entry recorded first
	a := r.StartOperation("calc", []int{1, 0}, nil)
	r.EndOperation(a, 4, nil)
	b := r.StartOperation("par", []int{1}, nil)
	r.EndOperation(b, nil, nil)
	c := r.StartOperation("seq", nil, nil)
	r.EndOperation(c, nil, nil)

	r.AnalyzeTreeStructure()

	for _, e := range r.Entries() {
		if e.Metadata.Depth != len(e.Path) {
			t.Errorf("entry %d depth = %d, want %d", e.ID, e.Metadata.Depth, len(e.Path))
		}
	}
	parEntry := r.Entries()[1]
	if parEntry.Metadata.ChildCount != 1 {
		t.Errorf("par child count = %d, want 1", parEntry.Metadata.ChildCount)
	}
	if parEntry.Metadata.SubtreeOperationCount != 2 {
		t.Errorf("par subtree ops = %d, want 2", parEntry.Metadata.SubtreeOperationCount)
	}
}

func TestSummarize(t *testing.T) {
	r := NewRecorder()
	ids := []int{
		r.StartOperation("root", nil, nil),
		r.StartOperation("a", []int{0}, nil),
		r.StartOperation("b", []int{1}, nil),
		r.StartOperation("a1", []int{0, 0}, nil),
	}
	for _, id := range ids {
		r.EndOperation(id, nil, nil)
	}
	r.AnalyzeTreeStructure()

	summary := r.Summarize()
	if summary.TotalOperations != 4 {
		t.Errorf("total = %d, want 4", summary.TotalOperations)
	}
	if summary.MaxDepth != 2 {
		t.Errorf("max depth = %d, want 2", summary.MaxDepth)
	}
	if summary.DepthStats[1].Count != 2 {
		t.Errorf("depth 1 count = %d, want 2", summary.DepthStats[1].Count)
	}
}

func TestJSONLOutput(t *testing.T) {
	var buf bytes.Buffer
	r := NewRecorderWithSink(&buf)

	id := r.StartOperation("notify", []int{0}, "hello")
	r.EndOperation(id, "hello", &Metadata{Provenance: ProvenanceTool, ToolCalled: "notify"})

	scanner := bufio.NewScanner(&buf)
	if !scanner.Scan() {
		t.Fatal("expected one JSON-L line")
	}
	var decoded map[string]any
	if err := json.Unmarshal(scanner.Bytes(), &decoded); err != nil {
		t.Fatalf("line is not valid JSON: %v", err)
	}
	for _, field := range []string{"id", "timestamp", "operation", "path", "input", "output", "duration_ms", "explanation", "metadata"} {
		if _, ok := decoded[field]; !ok {
			t.Errorf("JSON-L line missing field %q", field)
		}
	}
	meta, ok := decoded["metadata"].(map[string]any)
	if !ok {
		t.Fatal("metadata should be a nested object")
	}
	if meta["provenance"] != "tool" {
		t.Errorf("provenance = %v, want tool", meta["provenance"])
	}
}
