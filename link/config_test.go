package link

import (
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestConfigDefaults(t *testing.T) {
	var cfg Config
	if err := cfg.Check(); err != nil {
		t.Fatalf("Check on zero config: %v", err)
	}

	want := DefaultConfig()
	want.PeerDiscoveryPort = DefaultDiscoveryPort
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestConfigPeerDiscoveryPort(t *testing.T) {
	cfg := Config{DiscoveryPort: 4000}
	if err := cfg.Check(); err != nil {
		t.Fatal(err)
	}
	if cfg.PeerDiscoveryPort != 4000 {
		t.Errorf("PeerDiscoveryPort = %d, want 4000", cfg.PeerDiscoveryPort)
	}
}

func TestConfigCheck(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string // empty for valid configs
	}{
		{"udp shares ports", Config{Transport: UDP, DataPort: 5000, ClockPort: 5000}, ""},
		{"unknown transport", Config{Transport: "sctp"}, "unknown transport"},
		{"port too big", Config{DataPort: 70000}, "invalid data_port"},
		{"negative port", Config{ClockPort: -1}, "invalid clock_port"},
		{"tcp same ports", Config{DataPort: 5000, ClockPort: 5000}, "must differ"},
		{"negative timeout", Config{ReplyTimeout: -time.Millisecond}, "negative reply_timeout"},
		{"timeout too long", Config{ReplyTimeout: 2 * time.Second}, "would stall"},
		{"deadline before window", Config{DiscoveryWindow: 5 * time.Second, DiscoveryDeadline: time.Second}, "shorter than"},
		{"negative poll", Config{PollCycles: -3}, "negative poll_cycles"},
		{"server and peer", Config{Server: true, PeerAddr: "10.0.0.2"}, "mutually exclusive"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Check()
			switch {
			case tt.wantErr == "" && err != nil:
				t.Errorf("Check() = %v, want no error", err)
			case tt.wantErr != "" && err == nil:
				t.Errorf("Check() = nil, want error containing %q", tt.wantErr)
			case tt.wantErr != "" && !strings.Contains(err.Error(), tt.wantErr):
				t.Errorf("Check() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}
