package registry

import (
	"context"
	"errors"
	"slices"
	"strconv"
	"strings"
	"testing"

	"github.com/voicetyped/voicequery/internal/transcription/engine"
)

type stubEngine struct {
	model  string
	closed bool
}

func (s *stubEngine) Transcribe(context.Context, engine.Request) (*engine.Result, error) {
	return &engine.Result{Text: s.model}, nil
}
func (s *stubEngine) Models() []engine.ModelInfo { return nil }
func (s *stubEngine) Close() error {
	s.closed = true
	return nil
}

func TestRegistryCreate(t *testing.T) {
	r := NewRegistry()
	r.Register("b", func(cfg map[string]string) (engine.Engine, error) { return &stubEngine{model: "b:" + cfg["x"]}, nil })
	r.Register("a", func(map[string]string) (engine.Engine, error) { return nil, errors.New("no key") })

	got, err := r.Create("b", map[string]string{"x": "1"})
	if err != nil || got.(*stubEngine).model != "b:1" {
		t.Fatalf("Create = %v, %v", got, err)
	}
	if _, err := r.Create("missing", nil); !errors.Is(err, ErrUnknownBackend) {
		t.Errorf("expected ErrUnknownBackend, got %v", err)
	}
	if _, err := r.Create("a", nil); err == nil || !strings.Contains(err.Error(), "no key") {
		t.Errorf("factory error not propagated: %v", err)
	}
	if !r.Has("a") || r.Has("c") {
		t.Error("Has returned the wrong answer")
	}
	if !slices.Equal(r.List(), []string{"a", "b"}) {
		t.Errorf("List = %v", r.List())
	}
}

func TestCacheReusesInstances(t *testing.T) {
	reg := NewRegistry()
	created := 0
	reg.Register("stub", func(cfg map[string]string) (engine.Engine, error) {
		created++
		if cfg["api_key"] != "k" {
			t.Errorf("base config not passed: %v", cfg)
		}
		return &stubEngine{model: cfg["model"]}, nil
	})

	c := NewCache(reg, map[string]string{"api_key": "k"})
	first, err := c.Get("stub", "tiny")
	if err != nil {
		t.Fatal(err)
	}
	again, _ := c.Get("stub", "tiny")
	other, _ := c.Get("stub", "large")

	if first != again {
		t.Error("same key should return the cached engine")
	}
	if first == other {
		t.Error("different models must not share an engine")
	}
	if created != 2 {
		t.Errorf("factory called %d times, want 2", created)
	}

	if err := c.Close(); err != nil {
		t.Fatal(err)
	}
	if !first.(*stubEngine).closed || !other.(*stubEngine).closed {
		t.Error("Close should close cached engines")
	}
}

func TestCacheEvictsLeastRecentlyUsed(t *testing.T) {
	reg := NewRegistry()
	var built []*stubEngine
	reg.Register("stub", func(cfg map[string]string) (engine.Engine, error) {
		e := &stubEngine{model: cfg["model"]}
		built = append(built, e)
		return e, nil
	})

	c := NewCache(reg, nil, WithCacheSize(2))
	c.Get("stub", "m0")
	c.Get("stub", "m1")
	c.Get("stub", "m0") // m1 is now least recently used
	c.Get("stub", "m2")

	if c.Len() != 2 {
		t.Fatalf("Len = %d, want 2", c.Len())
	}
	if !built[1].closed {
		t.Error("evicted engine m1 should be closed")
	}
	if built[0].closed || built[2].closed {
		t.Error("live engines must stay open")
	}

	for i := range 1000 {
		if _, err := c.Get("stub", "model-"+strconv.Itoa(i)); err != nil {
			t.Fatal(err)
		}
	}
	if c.Len() != 2 {
		t.Fatalf("Len after churn = %d, want 2", c.Len())
	}
}

func TestCacheUnknownBackend(t *testing.T) {
	c := NewCache(NewRegistry(), nil)
	if _, err := c.Get("nope", ""); err == nil {
		t.Fatal("expected error")
	}
}

func TestRegisterDuplicatePanics(t *testing.T) {
	r := NewRegistry()
	f := func(map[string]string) (engine.Engine, error) { return &stubEngine{}, nil }
	r.Register("x", f)
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on duplicate registration")
		}
	}()
	r.Register("x", f)
}
