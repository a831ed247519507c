package health

import (
	"errors"
	"testing"
)

func TestOverallEmptyIsHealthy(t *testing.T) {
	m := NewMonitor()
	if got := m.Overall(); got != Healthy {
		t.Fatalf("Overall() = %v, want healthy", got)
	}
}

func TestOverallReportsWorst(t *testing.T) {
	m := NewMonitor()
	m.Update(ComponentNetwork, Healthy, "")
	m.Update(ComponentClock, Degraded, "not yet synchronised")
	if got := m.Overall(); got != Degraded {
		t.Fatalf("Overall() = %v, want degraded", got)
	}

	m.Update(ComponentChecker, Unhealthy, "refresh failed")
	if got := m.Overall(); got != Unhealthy {
		t.Fatalf("Overall() = %v, want unhealthy", got)
	}
}

func TestUpdateReplacesCheck(t *testing.T) {
	m := NewMonitor()
	m.Update(ComponentBackend, Unhealthy, "apt-get missing")
	m.Update(ComponentBackend, Healthy, "")

	c, ok := m.Get(ComponentBackend)
	if !ok {
		t.Fatal("Get returned no check")
	}
	if c.Status != Healthy || c.Message != "" {
		t.Fatalf("check = %+v, want healthy with no message", c)
	}
	if got := m.Overall(); got != Healthy {
		t.Fatalf("Overall() = %v, want healthy", got)
	}
}

func TestUpdateFromError(t *testing.T) {
	m := NewMonitor()
	m.UpdateFromError(ComponentChecker, errors.New("mirror unreachable"))
	if got := m.Overall(); got != Unhealthy {
		t.Fatalf("Overall() = %v, want unhealthy", got)
	}

	m.UpdateFromError(ComponentChecker, nil)
	if got := m.Overall(); got != Healthy {
		t.Fatalf("Overall() = %v, want healthy", got)
	}
}

func TestAllSnapshots(t *testing.T) {
	m := NewMonitor()
	m.Update(ComponentNetwork, Healthy, "")
	m.Update(ComponentClock, Healthy, "")

	all := m.All()
	if len(all) != 2 {
		t.Fatalf("All() returned %d checks, want 2", len(all))
	}
	for _, c := range all {
		if c.UpdatedAt.IsZero() {
			t.Fatalf("check %s has zero UpdatedAt", c.Name)
		}
	}
}
