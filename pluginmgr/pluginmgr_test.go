package pluginmgr

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/codeindex/codeindex"
	"github.com/codeindex/codeindex/plugin"
	"github.com/codeindex/codeindex/plugin/genericlang"
)

func TestGetConstructsOnce(t *testing.T) {
	var constructions int
	m, err := New([]Descriptor{
		{Name: "generic", New: func(context.Context) (plugin.Plugin, error) {
			constructions++
			return genericlang.New(), nil
		}},
	}, &Options{})
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 3; i++ {
		if _, err := m.Get(context.Background(), "generic"); err != nil {
			t.Fatal(err)
		}
	}
	if constructions != 1 {
		t.Errorf("got %d constructions, want 1", constructions)
	}
}

func TestGetUnknownPlugin(t *testing.T) {
	m, err := New(nil, &Options{})
	if err != nil {
		t.Fatal(err)
	}
	_, err = m.Get(context.Background(), "nope")
	var ce *codeindex.Error
	if !errors.As(err, &ce) || ce.Kind != codeindex.ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestConstructionFailureDisablesPermanently(t *testing.T) {
	var attempts int
	m, err := New([]Descriptor{
		{Name: "broken", New: func(context.Context) (plugin.Plugin, error) {
			attempts++
			return nil, errors.New("boom")
		}},
	}, &Options{})
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 3; i++ {
		if _, err := m.Get(context.Background(), "broken"); err == nil {
			t.Fatal("expected error")
		}
	}
	if attempts != 1 {
		t.Errorf("got %d construction attempts, want 1 (should not retry)", attempts)
	}
	disabled := m.Disabled()
	if len(disabled) != 1 || disabled[0] != "broken" {
		t.Errorf("got disabled %v, want [broken]", disabled)
	}
}

func TestConstructionTimeout(t *testing.T) {
	m, err := New([]Descriptor{
		{Name: "slow", New: func(ctx context.Context) (plugin.Plugin, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		}},
	}, &Options{ConstructTimeout: 10 * time.Millisecond})
	if err != nil {
		t.Fatal(err)
	}
	_, err = m.Get(context.Background(), "slow")
	var ce *codeindex.Error
	if !errors.As(err, &ce) || ce.Kind != codeindex.ErrTimeout {
		t.Errorf("expected ErrTimeout, got %v", err)
	}
}

func TestMemoryCeilingEvicts(t *testing.T) {
	m, err := New([]Descriptor{
		{Name: "a", EstimateBytes: 100, New: func(context.Context) (plugin.Plugin, error) { return genericlang.New(), nil }},
		{Name: "b", EstimateBytes: 100, New: func(context.Context) (plugin.Plugin, error) { return genericlang.New(), nil }},
	}, &Options{MemoryCeilingBytes: 150})

	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.Get(context.Background(), "a"); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Get(context.Background(), "b"); err != nil {
		t.Fatal(err)
	}
	loaded := m.Loaded()
	if len(loaded) != 1 || loaded[0] != "b" {
		t.Errorf("expected only most-recently-used plugin loaded, got %v", loaded)
	}
}
