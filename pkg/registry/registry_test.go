package registry

import (
	"errors"
	"testing"

	"github.com/Upreak/miv1-sub001/pkg/config"
	"github.com/Upreak/miv1-sub001/pkg/providers"
)

func slot(name string, priority int) config.ProviderConfig {
	return config.ProviderConfig{
		Name:     name,
		Type:     "generic",
		APIKey:   "test-key",
		BaseURL:  "http://localhost:9999/v1",
		Priority: priority,
	}
}

func TestLoadOmitsUnconfiguredSlots(t *testing.T) {
	slots := []config.ProviderConfig{
		slot("a", 1),
		{Name: "no-credential", Type: "openai"}, // missing api_key
		{Name: "no-type", APIKey: "k"},          // missing type
		slot("b", 2),
	}

	r, err := Load(slots)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	defer r.Close()

	if r.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", r.Len())
	}
	if r.Get("no-credential") != nil || r.Get("no-type") != nil {
		t.Error("unconfigured slots should not be registered")
	}
}

func TestLoadUnknownTypeIsFatal(t *testing.T) {
	slots := []config.ProviderConfig{
		slot("a", 1),
		{Name: "weird", Type: "telepathy", APIKey: "k"},
	}

	_, err := Load(slots)
	if !errors.Is(err, providers.ErrUnknownProviderType) {
		t.Fatalf("Load() error = %v, want ErrUnknownProviderType", err)
	}
}

func TestLoadOrdersByPriority(t *testing.T) {
	slots := []config.ProviderConfig{
		slot("cheap-but-slow", 3),
		slot("primary", 1),
		slot("secondary", 2),
		slot("also-secondary", 2),
	}

	r, err := Load(slots)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	defer r.Close()

	want := []string{"primary", "secondary", "also-secondary", "cheap-but-slow"}
	got := r.Names()
	if len(got) != len(want) {
		t.Fatalf("Names() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Names()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestAddRemoveUpdate(t *testing.T) {
	r, err := Load([]config.ProviderConfig{slot("a", 1)})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	defer r.Close()

	if err := r.Add(slot("b", 0)); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if got := r.Names(); got[0] != "b" {
		t.Errorf("after Add, first provider = %q, want b (priority 0)", got[0])
	}

	if err := r.Add(slot("b", 0)); err == nil {
		t.Error("Add() of duplicate name should fail")
	}

	updated := slot("a", 5)
	updated.Model = "new-model"
	if err := r.Update("a", updated); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if got := r.Get("a").Config.Model; got != "new-model" {
		t.Errorf("after Update, model = %q, want new-model", got)
	}
	if got := r.Names(); got[len(got)-1] != "a" {
		t.Errorf("after Update, last provider = %q, want a (priority 5)", got[len(got)-1])
	}

	if err := r.Update("a", slot("renamed", 1)); err == nil {
		t.Error("Update() with mismatched name should fail")
	}

	if err := r.Remove("b"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if r.Get("b") != nil {
		t.Error("removed provider should not resolve")
	}
	if err := r.Remove("b"); err == nil {
		t.Error("Remove() of missing provider should fail")
	}
}
