package tools

import (
	"context"
	"splan/internal/object"
	"sync"
)

// SpyCall is one recorded dispatch.
type SpyCall struct {
	Name string
	Args Args
}

// Spy records every dispatch it receives. Responses maps a tool name to the
// value it should return; unmapped names come back as a NotFound error unless
// a Next provider is set. Test support.
type Spy struct {
	Responses map[string]object.Value
	Errors    map[string]error
	Next      Provider

	mu    sync.Mutex
	calls []SpyCall
}

func NewSpy() *Spy {
	return &Spy{
		Responses: make(map[string]object.Value),
		Errors:    make(map[string]error),
	}
}

func (s *Spy) ExecuteTool(ctx context.Context, name string, args Args) (object.Value, error) {
	s.mu.Lock()
	s.calls = append(s.calls, SpyCall{Name: name, Args: args})
	s.mu.Unlock()

	if err, ok := s.Errors[name]; ok {
		return nil, err
	}
	if val, ok := s.Responses[name]; ok {
		return val, nil
	}
	if s.Next != nil {
		return s.Next.ExecuteTool(ctx, name, args)
	}
	return nil, newError(NotFound, name, "no such tool")
}

func (s *Spy) Calls() []SpyCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]SpyCall, len(s.calls))
	copy(out, s.calls)
	return out
}

func (s *Spy) CallCount(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		if c.Name == name {
			n++
		}
	}
	return n
}
