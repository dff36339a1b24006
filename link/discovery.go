package link

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"gblink/emu/log"
)

// ErrNoPeer is returned when no peer showed up before the discovery deadline.
var ErrNoPeer = errors.New("link: no peer found before discovery deadline")

// Content of ping and join datagrams, only their arrival matters.
const (
	pingByte = 1
	joinByte = 0
)

// UDP join datagrams are sent a few times since a lost one would leave the
// Primary waiting. Extra ones are dropped by the Primary's channel.
const joinRepeat = 3

// Discover negotiates the roles with the other peer and establishes the
// session. It blocks until a peer is found, ctx is done or the discovery
// deadline is exceeded, in which case the error wraps ErrNoPeer.
//
// Without seed, Discover waits for a ping during the discovery window. An
// instance that receives one becomes Secondary and connects to the sender.
// Otherwise it becomes Primary, opens the session sockets and broadcasts
// pings until a peer connects. Two instances that both reach the Primary
// role are not reconciled, both fail with ErrNoPeer.
func Discover(ctx context.Context, cfg Config) (*Session, error) {
	if err := cfg.Check(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.DiscoveryDeadline)
	defer cancel()

	sess, err := discover(ctx, cfg)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w (%s)", ErrNoPeer, cfg.DiscoveryDeadline)
		}
		return nil, err
	}

	log.ModLink.InfoZ("session established").
		Stringer("role", sess.Role()).
		String("peer", sess.PeerAddr().String()).
		String("transport", cfg.Transport).
		End()
	return sess, nil
}

func discover(ctx context.Context, cfg Config) (*Session, error) {
	if cfg.PeerAddr != "" {
		ip, err := resolveIPv4(cfg.PeerAddr)
		if err != nil {
			return nil, err
		}
		return connectSecondary(ctx, cfg, ip)
	}

	ping, err := net.ListenUDP("udp4", &net.UDPAddr{Port: cfg.DiscoveryPort})
	if err != nil {
		return nil, fmt.Errorf("link: discovery socket: %w", err)
	}
	defer ping.Close()

	if !cfg.Server {
		from, err := awaitPing(ctx, ping, cfg.DiscoveryWindow)
		if err != nil {
			return nil, err
		}
		if from != nil {
			ping.Close()
			return connectSecondary(ctx, cfg, from.IP)
		}
	}
	return servePrimary(ctx, cfg, ping)
}

// awaitPing waits up to window for a ping. It returns a nil address if
// none was received.
func awaitPing(ctx context.Context, ping *net.UDPConn, window time.Duration) (*net.UDPAddr, error) {
	log.ModLink.DebugZ("checking for broadcast").
		Duration("window", window).
		End()

	deadline := time.Now().Add(window)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := ping.SetReadDeadline(deadline); err != nil {
		return nil, err
	}
	stop := context.AfterFunc(ctx, func() { ping.SetReadDeadline(time.Now()) })
	defer stop()

	var buf [16]byte
	_, from, err := ping.ReadFromUDP(buf[:])
	switch {
	case err == nil:
		log.ModLink.DebugZ("ping received").
			String("from", from.String()).
			End()
		return from, nil
	case isTimeout(err):
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, nil
	}
	return nil, err
}

func isTimeout(err error) bool {
	return errors.Is(err, os.ErrDeadlineExceeded)
}

func resolveIPv4(host string) (net.IP, error) {
	addr, err := net.ResolveIPAddr("ip4", host)
	if err != nil {
		return nil, fmt.Errorf("link: resolve %s: %w", host, err)
	}
	return addr.IP, nil
}

func hostPort(ip net.IP, port int) string {
	host := ""
	if ip != nil {
		host = ip.String()
	}
	return net.JoinHostPort(host, strconv.Itoa(port))
}

func connectSecondary(ctx context.Context, cfg Config, ip net.IP) (*Session, error) {
	log.ModLink.DebugZ("running secondary mode").
		String("peer", ip.String()).
		End()

	if cfg.Transport == UDP {
		raddr := &net.UDPAddr{IP: ip, Port: cfg.DataPort}
		conn, err := net.DialUDP("udp4", nil, raddr)
		if err != nil {
			return nil, fmt.Errorf("link: dial data: %w", err)
		}
		for range joinRepeat {
			if _, err := conn.Write([]byte{joinByte}); err != nil {
				conn.Close()
				return nil, fmt.Errorf("link: join: %w", err)
			}
		}
		return NewSession(Secondary, newPacketChannel(conn, raddr, true), nil, raddr), nil
	}

	var d net.Dialer
	data, err := d.DialContext(ctx, "tcp4", hostPort(ip, cfg.DataPort))
	if err != nil {
		return nil, fmt.Errorf("link: dial data: %w", err)
	}
	clock, err := d.DialContext(ctx, "tcp4", hostPort(ip, cfg.ClockPort))
	if err != nil {
		data.Close()
		return nil, fmt.Errorf("link: dial clock: %w", err)
	}

	return NewSession(Secondary,
		newStreamChannel("data", data, cfg.ReplyTimeout),
		newStreamChannel("clock", clock, cfg.ReplyTimeout),
		data.RemoteAddr()), nil
}

// broadcastIP returns the address pings are sent to.
func broadcastIP(cfg Config) (net.IP, error) {
	if cfg.BroadcastAddr != "" {
		return resolveIPv4(cfg.BroadcastAddr)
	}

	ifaces, err := net.Interfaces()
	if err != nil {
		return net.IPv4bcast, nil
	}
	for _, ifc := range ifaces {
		if ifc.Flags&net.FlagUp == 0 || ifc.Flags&net.FlagBroadcast == 0 || ifc.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := ifc.Addrs()
		if err != nil {
			continue
		}
		for _, a := range addrs {
			if ipn, ok := a.(*net.IPNet); ok {
				if ip := subnetBroadcast(ipn); ip != nil {
					return ip, nil
				}
			}
		}
	}
	return net.IPv4bcast, nil
}

// subnetBroadcast returns the broadcast address of an IPv4 network, or nil.
func subnetBroadcast(ipn *net.IPNet) net.IP {
	ip := ipn.IP.To4()
	if ip == nil {
		return nil
	}
	mask := ipn.Mask
	if len(mask) == net.IPv6len {
		mask = mask[12:]
	}
	if len(mask) != net.IPv4len {
		return nil
	}
	bcast := make(net.IP, net.IPv4len)
	for i := range bcast {
		bcast[i] = ip[i] | ^mask[i]
	}
	return bcast
}

type pinger struct {
	conn *net.UDPConn
	to   *net.UDPAddr
}

func (p pinger) ping() {
	if _, err := p.conn.WriteToUDP([]byte{pingByte}, p.to); err != nil {
		log.ModLink.WarnZ("broadcast failed").
			String("to", p.to.String()).
			Error("err", err).
			End()
	}
}

func servePrimary(ctx context.Context, cfg Config, ping *net.UDPConn) (*Session, error) {
	bcast, err := broadcastIP(cfg)
	if err != nil {
		return nil, err
	}
	p := pinger{conn: ping, to: &net.UDPAddr{IP: bcast, Port: cfg.PeerDiscoveryPort}}

	log.ModLink.DebugZ("running primary mode").
		String("broadcast", p.to.String()).
		End()

	var bindIP net.IP
	if cfg.BindAddr != "" {
		if bindIP, err = resolveIPv4(cfg.BindAddr); err != nil {
			return nil, err
		}
	}

	if cfg.Transport == UDP {
		return servePrimaryUDP(ctx, cfg, p, bindIP)
	}
	return servePrimaryTCP(ctx, cfg, p, bindIP)
}

func servePrimaryUDP(ctx context.Context, cfg Config, p pinger, bindIP net.IP) (*Session, error) {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: bindIP, Port: cfg.DataPort})
	if err != nil {
		return nil, fmt.Errorf("link: data socket: %w", err)
	}

	var buf [16]byte
	for {
		p.ping()
		if err := conn.SetReadDeadline(time.Now().Add(cfg.PingInterval)); err != nil {
			conn.Close()
			return nil, err
		}
		_, from, err := conn.ReadFromUDP(buf[:])
		if err == nil {
			if err := conn.SetReadDeadline(time.Time{}); err != nil {
				conn.Close()
				return nil, err
			}
			return NewSession(Primary, newPacketChannel(conn, from, false), nil, from), nil
		}
		if !isTimeout(err) {
			conn.Close()
			return nil, fmt.Errorf("link: await join: %w", err)
		}
		if err := ctx.Err(); err != nil {
			conn.Close()
			return nil, err
		}
	}
}

func servePrimaryTCP(ctx context.Context, cfg Config, p pinger, bindIP net.IP) (*Session, error) {
	var lc net.ListenConfig
	dataLn, err := lc.Listen(ctx, "tcp4", hostPort(bindIP, cfg.DataPort))
	if err != nil {
		return nil, fmt.Errorf("link: listen data: %w", err)
	}
	defer dataLn.Close()
	clockLn, err := lc.Listen(ctx, "tcp4", hostPort(bindIP, cfg.ClockPort))
	if err != nil {
		return nil, fmt.Errorf("link: listen clock: %w", err)
	}
	defer clockLn.Close()

	log.ModLink.DebugZ("sockets opened, awaiting connection").
		String("data", dataLn.Addr().String()).
		String("clock", clockLn.Addr().String()).
		End()

	var data net.Conn
	for data == nil {
		p.ping()
		if err := dataLn.(*net.TCPListener).SetDeadline(time.Now().Add(cfg.PingInterval)); err != nil {
			return nil, err
		}
		conn, err := dataLn.Accept()
		switch {
		case err == nil:
			data = conn
		case !isTimeout(err):
			return nil, fmt.Errorf("link: accept data: %w", err)
		case ctx.Err() != nil:
			return nil, ctx.Err()
		}
	}

	clock, err := acceptClock(ctx, clockLn.(*net.TCPListener), data.RemoteAddr())
	if err != nil {
		data.Close()
		return nil, err
	}

	return NewSession(Primary,
		newStreamChannel("data", data, cfg.ReplyTimeout),
		newStreamChannel("clock", clock, cfg.ReplyTimeout),
		data.RemoteAddr()), nil
}

// acceptClock accepts the clock connection, which must come from the host
// that opened the data connection.
func acceptClock(ctx context.Context, ln *net.TCPListener, peer net.Addr) (net.Conn, error) {
	if d, ok := ctx.Deadline(); ok {
		if err := ln.SetDeadline(d); err != nil {
			return nil, err
		}
	}
	stop := context.AfterFunc(ctx, func() { ln.SetDeadline(time.Now()) })
	defer stop()

	peerIP := peer.(*net.TCPAddr).IP
	for {
		conn, err := ln.Accept()
		if err != nil {
			if isTimeout(err) && ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("link: accept clock: %w", err)
		}
		if conn.RemoteAddr().(*net.TCPAddr).IP.Equal(peerIP) {
			return conn, nil
		}
		log.ModLink.WarnZ("rejected clock connection").
			String("from", conn.RemoteAddr().String()).
			End()
		conn.Close()
	}
}
