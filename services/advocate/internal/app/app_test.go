package app

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"advocateai/pkg/ai"
	"advocateai/pkg/extract"
	"advocateai/pkg/storage"
	"advocateai/pkg/store"
)

// fakeCompleter streams deltas and then fails with err, if set.
type fakeCompleter struct {
	mu       sync.Mutex
	deltas   []string
	text     string
	tokens   int
	err      error
	requests []ai.Request
}

func (f *fakeCompleter) Complete(_ context.Context, req ai.Request) (ai.Completion, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	if f.err != nil {
		return ai.Completion{}, f.err
	}
	return ai.Completion{Text: f.text, Usage: ai.Usage{TotalTokens: f.tokens}}, nil
}

func (f *fakeCompleter) Stream(ctx context.Context, req ai.Request, onDelta ai.DeltaFunc) (ai.Completion, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	var b strings.Builder
	for _, d := range f.deltas {
		if err := ctx.Err(); err != nil {
			return ai.Completion{}, err
		}
		if err := onDelta(d); err != nil {
			return ai.Completion{}, err
		}
		b.WriteString(d)
	}
	if f.err != nil {
		return ai.Completion{}, f.err
	}
	return ai.Completion{Text: b.String(), Usage: ai.Usage{TotalTokens: f.tokens}}, nil
}

func (f *fakeCompleter) lastRequest(t *testing.T) ai.Request {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.requests) == 0 {
		t.Fatalf("completer was not called")
	}
	return f.requests[len(f.requests)-1]
}

type fixture struct {
	app      *App
	store    *store.MemoryStore
	objects  *storage.FileStore
	chat     *fakeCompleter
	analysis *fakeCompleter
	dir      string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithStore(t, nil)
}

func newFixtureWithStore(t *testing.T, wrap func(store.Store) store.Store) *fixture {
	t.Helper()
	dir := t.TempDir()
	objects, err := storage.NewFileStore(dir, "http://files.local", 0)
	if err != nil {
		t.Fatalf("file store: %v", err)
	}
	mem := store.NewMemoryStore()
	var st store.Store = mem
	if wrap != nil {
		st = wrap(mem)
	}
	chat := &fakeCompleter{deltas: []string{"Have you ", "considered ", "the opposite?"}, tokens: 21}
	analysisFake := &fakeCompleter{tokens: 300}
	var seq int
	clock := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	a, err := New(Config{
		Store:     st,
		Objects:   objects,
		Chat:      chat,
		Analysis:  analysisFake,
		Extractor: extract.New(objects, extract.WithPdftotext("")),
		Now: func() time.Time {
			clock = clock.Add(time.Second)
			return clock
		},
		NewID: func() string {
			seq++
			return fmt.Sprintf("id-%03d", seq)
		},
	})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	return &fixture{app: a, store: mem, objects: objects, chat: chat, analysis: analysisFake, dir: dir}
}

func TestNewRequiresDependencies(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatalf("expected error without store")
	}
	if _, err := New(Config{Store: store.NewMemoryStore()}); err == nil {
		t.Fatalf("expected error without object store")
	}
}
