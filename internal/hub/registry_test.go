package hub

import (
	"testing"
)

func TestRegistry(t *testing.T) {
	r := NewRegistry()

	a := newSubscriber("a", newRecordingConn(), 1, 0)
	b := newSubscriber("b", newRecordingConn(), 1, 0)

	captured := false
	if !r.Register(a, func() { captured = true }) {
		t.Fatal("Register(a) refused on open registry")
	}
	if !captured {
		t.Error("capture was not run")
	}
	if !r.Register(b, nil) {
		t.Fatal("Register(b) refused on open registry")
	}

	if got := r.Len(); got != 2 {
		t.Errorf("Len() = %d, want 2", got)
	}
	if got := len(r.List()); got != 2 {
		t.Errorf("len(List()) = %d, want 2", got)
	}

	if !r.Remove(a) {
		t.Error("Remove(a) = false, want true")
	}
	if r.Remove(a) {
		t.Error("second Remove(a) = true, want false")
	}

	// A different subscriber reusing an id does not remove the registered one.
	imposter := newSubscriber("b", newRecordingConn(), 1, 0)
	if r.Remove(imposter) {
		t.Error("Remove(imposter) = true, want false")
	}

	closed := r.Close()
	if len(closed) != 1 || closed[0] != b {
		t.Errorf("Close() = %v, want [b]", closed)
	}
	if r.Len() != 0 {
		t.Errorf("Len() after Close = %d, want 0", r.Len())
	}
	if r.Register(newSubscriber("c", newRecordingConn(), 1, 0), func() { t.Error("capture ran on closed registry") }) {
		t.Error("Register after Close = true, want false")
	}
}

func TestRegistryListIsCopy(t *testing.T) {
	r := NewRegistry()
	r.Register(newSubscriber("a", newRecordingConn(), 1, 0), nil)

	list := r.List()
	list[0] = nil

	if r.List()[0] == nil {
		t.Error("List() exposed internal storage")
	}
}
