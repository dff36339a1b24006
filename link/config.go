package link

import (
	"fmt"
	"time"
)

// Transports.
const (
	TCP = "tcp" // data and clock on two stream connections
	UDP = "udp" // data and clock share one datagram socket
)

// Config holds the link cable settings.
type Config struct {
	// Server seeds this instance as Primary, skipping the discovery window.
	Server bool `toml:"server"`
	// PeerAddr seeds this instance as Secondary, connecting to that host
	// without waiting for its ping.
	PeerAddr string `toml:"peer_addr"`

	Transport string `toml:"transport"`

	// BindAddr is the local address on which the Primary listens.
	BindAddr  string `toml:"bind_addr"`
	DataPort  int    `toml:"data_port"`
	ClockPort int    `toml:"clock_port"`

	DiscoveryPort int `toml:"discovery_port"`
	// PeerDiscoveryPort is the port pings are sent to. Defaults to
	// DiscoveryPort, it only differs when both peers share a host.
	PeerDiscoveryPort int `toml:"peer_discovery_port"`
	// BroadcastAddr is where pings are sent. Empty means the broadcast
	// address of the first suitable local network.
	BroadcastAddr string `toml:"broadcast_addr"`

	DiscoveryWindow   time.Duration `toml:"discovery_window"`
	DiscoveryDeadline time.Duration `toml:"discovery_deadline"`
	PingInterval      time.Duration `toml:"ping_interval"`
	ReplyTimeout      time.Duration `toml:"reply_timeout"`

	// PollCycles is the interval, in scheduler cycles, at which the
	// network is checked for incoming frames.
	PollCycles int64 `toml:"poll_cycles"`
}

const maxReplyTimeout = time.Second

// DefaultConfig returns the configuration used for unset fields.
func DefaultConfig() Config {
	return Config{
		Transport:         TCP,
		DataPort:          DefaultDataPort,
		ClockPort:         DefaultClockPort,
		DiscoveryPort:     DefaultDiscoveryPort,
		DiscoveryWindow:   3 * time.Second,
		DiscoveryDeadline: 60 * time.Second,
		PingInterval:      250 * time.Millisecond,
		ReplyTimeout:      500 * time.Millisecond,
		PollCycles:        24,
	}
}

// Check fills unset fields with their default value and validates the
// configuration.
func (cfg *Config) Check() error {
	def := DefaultConfig()
	if cfg.Transport == "" {
		cfg.Transport = def.Transport
	}
	if cfg.DataPort == 0 {
		cfg.DataPort = def.DataPort
	}
	if cfg.ClockPort == 0 {
		cfg.ClockPort = def.ClockPort
	}
	if cfg.DiscoveryPort == 0 {
		cfg.DiscoveryPort = def.DiscoveryPort
	}
	if cfg.PeerDiscoveryPort == 0 {
		cfg.PeerDiscoveryPort = cfg.DiscoveryPort
	}
	if cfg.DiscoveryWindow == 0 {
		cfg.DiscoveryWindow = def.DiscoveryWindow
	}
	if cfg.DiscoveryDeadline == 0 {
		cfg.DiscoveryDeadline = def.DiscoveryDeadline
	}
	if cfg.PingInterval == 0 {
		cfg.PingInterval = def.PingInterval
	}
	if cfg.ReplyTimeout == 0 {
		cfg.ReplyTimeout = def.ReplyTimeout
	}
	if cfg.PollCycles == 0 {
		cfg.PollCycles = def.PollCycles
	}

	switch cfg.Transport {
	case TCP, UDP:
	default:
		return fmt.Errorf("link: unknown transport %q", cfg.Transport)
	}

	ports := []struct {
		name string
		port int
	}{
		{"data_port", cfg.DataPort},
		{"clock_port", cfg.ClockPort},
		{"discovery_port", cfg.DiscoveryPort},
		{"peer_discovery_port", cfg.PeerDiscoveryPort},
	}
	for _, p := range ports {
		if p.port < 1 || p.port > 0xFFFF {
			return fmt.Errorf("link: invalid %s %d", p.name, p.port)
		}
	}
	if cfg.Transport == TCP && cfg.DataPort == cfg.ClockPort {
		return fmt.Errorf("link: data and clock ports must differ with %s transport", TCP)
	}

	durations := []struct {
		name string
		d    time.Duration
	}{
		{"discovery_window", cfg.DiscoveryWindow},
		{"discovery_deadline", cfg.DiscoveryDeadline},
		{"ping_interval", cfg.PingInterval},
		{"reply_timeout", cfg.ReplyTimeout},
	}
	for _, d := range durations {
		if d.d < 0 {
			return fmt.Errorf("link: negative %s %s", d.name, d.d)
		}
	}
	if cfg.ReplyTimeout > maxReplyTimeout {
		return fmt.Errorf("link: reply_timeout %s above %s would stall emulation", cfg.ReplyTimeout, maxReplyTimeout)
	}
	if cfg.DiscoveryDeadline < cfg.DiscoveryWindow {
		return fmt.Errorf("link: discovery_deadline %s shorter than discovery_window %s", cfg.DiscoveryDeadline, cfg.DiscoveryWindow)
	}
	if cfg.PollCycles < 0 {
		return fmt.Errorf("link: negative poll_cycles %d", cfg.PollCycles)
	}

	if cfg.Server && cfg.PeerAddr != "" {
		return fmt.Errorf("link: server and peer_addr are mutually exclusive")
	}
	return nil
}
