package backend

import (
	"context"
	"testing"
)

type mapStore map[string]string

func (m mapStore) Get(key string) string { return m[key] }

func TestLoadAuth(t *testing.T) {
	store := mapStore{
		"Idx Cookies": "sid=1",
		"Idx Login":   "alice:pa:ss",
		"Idx API Key": "k",
	}
	got := LoadAuth(store, "Idx")
	want := AuthState{Cookies: "sid=1", Username: "alice", Password: "pa:ss", APIKey: "k"}
	if got != want {
		t.Errorf("LoadAuth = %+v, want %+v", got, want)
	}
	if !LoadAuth(nil, "Idx").Empty() {
		t.Error("nil store should give empty state")
	}
	if !LoadAuth(mapStore{"Idx Login": "nopassword"}, "Idx").Empty() {
		t.Error("malformed login should be ignored")
	}
}

func TestApplyStoredAuth(t *testing.T) {
	tests := []struct {
		name     string
		requires bool
		current  AuthState
		store    mapStore
		usable   bool
		want     AuthState
	}{
		{"no auth needed", false, AuthState{}, mapStore{}, true, AuthState{}},
		{"required and missing", true, AuthState{}, mapStore{}, false, AuthState{}},
		{"required from store", true, AuthState{}, mapStore{"B API Key": "k"}, true, AuthState{APIKey: "k"}},
		{"required from config", true, AuthState{APIKey: "cfg"}, mapStore{}, true, AuthState{APIKey: "cfg"}},
		{"store overrides config", true, AuthState{APIKey: "cfg"}, mapStore{"B API Key": "k"}, true, AuthState{APIKey: "k"}},
		{"login", true, AuthState{}, mapStore{"B Login": "u:p"}, true, AuthState{Username: "u", Password: "p"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &fakeBackend{desc: Descriptor{Name: "B", RequiresAuth: tt.requires}, auth: tt.current}
			if got := ApplyStoredAuth(b, tt.store); got != tt.usable {
				t.Errorf("usable = %v, want %v", got, tt.usable)
			}
			if b.auth != tt.want {
				t.Errorf("auth = %+v, want %+v", b.auth, tt.want)
			}
		})
	}
}

type plainBackend struct{ desc Descriptor }

func (p plainBackend) Descriptor() Descriptor { return p.desc }

func (p plainBackend) Search(context.Context, string) ([]Result, error) { return nil, nil }

func TestApplyStoredAuthWithoutAuthenticator(t *testing.T) {
	store := mapStore{"P API Key": "k"}
	if !ApplyStoredAuth(plainBackend{Descriptor{Name: "P"}}, store) {
		t.Error("backend without auth requirement should be usable")
	}
	if ApplyStoredAuth(plainBackend{Descriptor{Name: "P", RequiresAuth: true}}, store) {
		t.Error("backend that requires auth but cannot take it should be excluded")
	}
}
