package workflow

import (
	"context"
	"errors"
	"sync"
	"time"

	"script-backend/internal/breakdown"
)

type fakeExtractor struct {
	mu   sync.Mutex
	doc  Document
	err  error
	hang bool
	// stall blocks Extract until closed, ignoring cancellation.
	stall chan struct{}
	calls int
	paths []string
}

func (f *fakeExtractor) Extract(ctx context.Context, path string) (Document, error) {
	f.mu.Lock()
	f.calls++
	f.paths = append(f.paths, path)
	f.mu.Unlock()
	if f.stall != nil {
		<-f.stall
		return f.doc, nil
	}
	if f.hang {
		<-ctx.Done()
		return Document{}, ctx.Err()
	}
	if f.err != nil {
		return Document{}, f.err
	}
	return f.doc, nil
}

func (f *fakeExtractor) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeAnalyzer returns its results in order, repeating the last one.
type fakeAnalyzer struct {
	mu      sync.Mutex
	results []*breakdown.Analysis
	errs    []error
	calls   int
	spend   int
	inputs  []AnalyzeInput
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, in AnalyzeInput) (AnalyzeResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	idx := f.calls
	f.calls++
	f.inputs = append(f.inputs, in)
	if idx < len(f.errs) && f.errs[idx] != nil {
		return AnalyzeResult{Calls: 1}, f.errs[idx]
	}
	if len(f.results) == 0 {
		return AnalyzeResult{}, errors.New("no result configured")
	}
	if idx >= len(f.results) {
		idx = len(f.results) - 1
	}
	spend := f.spend
	if spend == 0 {
		spend = 1
	}
	return AnalyzeResult{Analysis: f.results[idx], Calls: spend}, nil
}

func (f *fakeAnalyzer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

func newClock() *fixedClock {
	return &fixedClock{now: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func scriptDoc() Document {
	return Document{Text: "INT. KITCHEN - DAY\nANNA pours coffee.", WordCount: 6, PageCount: 1}
}
