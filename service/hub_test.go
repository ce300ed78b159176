package service

import (
	"errors"
	"testing"
)

type fakeService struct {
	name    string
	deps    []string
	failOn  string
	journal *[]string
}

func (f *fakeService) Name() string           { return f.name }
func (f *fakeService) Dependencies() []string { return f.deps }

func (f *fakeService) Init(args ...any) error {
	*f.journal = append(*f.journal, "init:"+f.name)
	if f.failOn == "init" {
		return errors.New("boom")
	}
	return nil
}

func (f *fakeService) Start() error {
	*f.journal = append(*f.journal, "start:"+f.name)
	if f.failOn == "start" {
		return errors.New("boom")
	}
	return nil
}

func (f *fakeService) Stop() error {
	*f.journal = append(*f.journal, "stop:"+f.name)
	return nil
}

// TestHubOrder verifies dependencies start first and stop last
func TestHubOrder(t *testing.T) {
	var journal []string
	h := NewHub()
	mustRegister(t, h, &fakeService{name: "manager", deps: []string{"backend", "output"}, journal: &journal})
	mustRegister(t, h, &fakeService{name: "output", journal: &journal})
	mustRegister(t, h, &fakeService{name: "backend", journal: &journal})

	if err := h.InitAll(); err != nil {
		t.Fatal(err)
	}
	if err := h.StartAll(); err != nil {
		t.Fatal(err)
	}
	if err := h.StopAll(); err != nil {
		t.Fatal(err)
	}

	want := []string{
		"init:backend", "init:output", "init:manager",
		"start:backend", "start:output", "start:manager",
		"stop:manager", "stop:output", "stop:backend",
	}
	if len(journal) != len(want) {
		t.Fatalf("journal %v, want %v", journal, want)
	}
	for i := range want {
		if journal[i] != want[i] {
			t.Errorf("step %d = %s, want %s", i, journal[i], want[i])
		}
	}
}

// TestHubStartRollback verifies a failed Start stops earlier services
func TestHubStartRollback(t *testing.T) {
	var journal []string
	h := NewHub()
	mustRegister(t, h, &fakeService{name: "a", journal: &journal})
	mustRegister(t, h, &fakeService{name: "b", deps: []string{"a"}, failOn: "start", journal: &journal})

	if err := h.StartAll(); err == nil {
		t.Fatal("expected start failure")
	}

	last := journal[len(journal)-1]
	if last != "stop:a" {
		t.Errorf("expected rollback stop:a, journal %v", journal)
	}
}

// TestHubCycle verifies circular dependencies are rejected
func TestHubCycle(t *testing.T) {
	var journal []string
	h := NewHub()
	mustRegister(t, h, &fakeService{name: "a", deps: []string{"b"}, journal: &journal})
	mustRegister(t, h, &fakeService{name: "b", deps: []string{"a"}, journal: &journal})

	if err := h.InitAll(); !errors.Is(err, ErrCycle) {
		t.Errorf("expected ErrCycle, got %v", err)
	}
}

// TestHubDuplicateAndLookup verifies unique names and typed lookup
func TestHubDuplicateAndLookup(t *testing.T) {
	var journal []string
	h := NewHub()
	mustRegister(t, h, &fakeService{name: "a", journal: &journal})
	if err := h.Register(&fakeService{name: "a", journal: &journal}); err == nil {
		t.Error("duplicate registration accepted")
	}

	if _, err := Lookup[*fakeService](h, "a"); err != nil {
		t.Errorf("lookup failed: %v", err)
	}
	if _, err := Lookup[*fakeService](h, "missing"); err == nil {
		t.Error("lookup of missing service succeeded")
	}
}

func mustRegister(t *testing.T, h *Hub, svc Service) {
	t.Helper()
	if err := h.Register(svc); err != nil {
		t.Fatal(err)
	}
}
