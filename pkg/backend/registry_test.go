package backend

import (
	"context"
	"errors"
	"strings"
	"testing"

	"showtracker/pkg/config"
	"showtracker/pkg/logger"
)

func TestRegistryBuild(t *testing.T) {
	logger.Init("DEBUG")
	reg := NewRegistry()
	reg.Register("Fake", func(cfg config.BackendConfig, deps Deps) (Backend, error) {
		if cfg.URL == "" {
			return nil, errors.New("url is required")
		}
		return &fakeBackend{
			desc:   Descriptor{Name: cfg.Name},
			search: func(context.Context, string) ([]Result, error) { return nil, nil },
		}, nil
	})

	if types := reg.Types(); len(types) != 1 || types[0] != "fake" {
		t.Errorf("Types() = %v", types)
	}

	backends, err := reg.Build([]config.BackendConfig{
		{Name: "a", Type: "fake", URL: "http://a"},
		{Name: "b", Type: "FAKE", URL: "http://b", Disabled: true},
		{Name: "c", Type: "fake"},
		{Name: "d", Type: "gopher", URL: "http://d"},
	}, Deps{})
	if len(backends) != 1 || backends[0].Descriptor().Name != "a" {
		t.Errorf("expected only backend a, got %d", len(backends))
	}
	if err == nil {
		t.Fatal("expected joined build errors")
	}
	msg := err.Error()
	if !strings.Contains(msg, `backend "c": url is required`) || !strings.Contains(msg, `unknown type "gopher"`) {
		t.Errorf("unexpected error %q", msg)
	}
}

func TestRegistryDuplicatePanics(t *testing.T) {
	reg := NewRegistry()
	f := func(config.BackendConfig, Deps) (Backend, error) { return nil, nil }
	reg.Register("x", f)
	defer func() {
		if recover() == nil {
			t.Error("expected panic on duplicate registration")
		}
	}()
	reg.Register("X", f)
}
