package gate

import "testing"

type fakeNetwork struct{ up bool }

func (f *fakeNetwork) Available() bool { return f.up }

type fakeClock struct{ synced bool }

func (f *fakeClock) Synced() bool { return f.synced }

func TestGateReportsProbeResults(t *testing.T) {
	cases := []struct {
		name    string
		network bool
		clock   bool
	}{
		{"both up", true, true},
		{"no network", false, true},
		{"clock unsynced", true, false},
		{"neither", false, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			g := NewWithProbes(&fakeNetwork{up: tc.network}, &fakeClock{synced: tc.clock})

			if got := g.Network(); got != tc.network {
				t.Fatalf("Network() = %v, want %v", got, tc.network)
			}
			if got := g.ClockSynced(); got != tc.clock {
				t.Fatalf("ClockSynced() = %v, want %v", got, tc.clock)
			}
		})
	}
}

func TestParseAddrHandlesCIDRAndPlain(t *testing.T) {
	if ip := parseAddr("192.168.1.10/24"); ip == nil || ip.String() != "192.168.1.10" {
		t.Fatalf("expected 192.168.1.10, got %v", ip)
	}
	if ip := parseAddr("10.0.0.1"); ip == nil || ip.String() != "10.0.0.1" {
		t.Fatalf("expected 10.0.0.1, got %v", ip)
	}
	if ip := parseAddr("not-an-address"); ip != nil {
		t.Fatalf("expected nil for garbage input, got %v", ip)
	}
}

func TestHasFlagIsCaseInsensitive(t *testing.T) {
	if !hasFlag([]string{"up", "Loopback"}, "loopback") {
		t.Fatal("expected loopback flag match")
	}
	if hasFlag([]string{"up", "broadcast"}, "loopback") {
		t.Fatal("unexpected loopback flag match")
	}
}
