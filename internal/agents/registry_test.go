package agents

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestNew_SeedsIdleRoster(t *testing.T) {
	r := New()
	if r.Len() != 10 {
		t.Fatalf("Len() = %d, want 10", r.Len())
	}

	seen := map[string]bool{}
	for _, a := range r.List() {
		if seen[a.ID] {
			t.Errorf("duplicate agent id %q", a.ID)
		}
		seen[a.ID] = true
		if a.Status != StatusIdle || a.Active {
			t.Errorf("%s: got status=%q active=%v, want idle/inactive", a.ID, a.Status, a.Active)
		}
	}
}

func TestSetStatus(t *testing.T) {
	r := New()
	if err := r.SetStatus(Architecture, "designing system", true); err != nil {
		t.Fatalf("SetStatus() error = %v", err)
	}

	got, err := r.Get(Architecture)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	want := Agent{ID: Architecture, Name: "Architecture Agent", Specialty: "System Design", Status: "designing system", Active: true}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("agent mismatch (-want +got):\n%s", diff)
	}
	if ids := r.ActiveIDs(); len(ids) != 1 || ids[0] != Architecture {
		t.Errorf("ActiveIDs() = %v", ids)
	}
}

func TestSetStatus_UnknownAgent(t *testing.T) {
	r := New()
	err := r.SetStatus("ghost", "haunting", true)
	if !errors.Is(err, ErrAgentNotFound) {
		t.Fatalf("SetStatus(ghost) error = %v, want ErrAgentNotFound", err)
	}
	if _, err := r.Get("ghost"); !errors.Is(err, ErrAgentNotFound) {
		t.Fatalf("Get(ghost) error = %v, want ErrAgentNotFound", err)
	}
}

func TestResetAll(t *testing.T) {
	r := New()
	_ = r.SetStatus(Frontend, "generating code", true)
	_ = r.SetStatus(Backend, "generating code", true)

	r.ResetAll(StatusComplete, false)

	for _, a := range r.List() {
		if a.Status != StatusComplete || a.Active {
			t.Errorf("%s: got %q/%v after ResetAll", a.ID, a.Status, a.Active)
		}
	}
}

func TestList_ReturnsCopy(t *testing.T) {
	r := New()
	list := r.List()
	list[0].Status = "mutated"

	got, _ := r.Get(list[0].ID)
	if got.Status == "mutated" {
		t.Error("List() must return a copy")
	}
}
