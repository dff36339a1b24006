package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/alecthomas/kong"

	"gblink/emu/log"
	"gblink/link"
)

type mode byte

const (
	runMode      mode = iota // Run a console over the network
	loopbackMode             // Link two consoles in memory
	discoverMode             // Only negotiate roles
	versionMode              // Show gblink version
)

type (
	CLI struct {
		Run      Run      `cmd:"" help:"Run a console and exchange bytes with a peer over the network." default:"withargs"`
		Loopback Loopback `cmd:"" help:"Exchange bytes between two consoles linked in memory."`
		Discover Discover `cmd:"" help:"Negotiate roles with a peer and exit."`
		Version  Version  `cmd:"" help:"Show gblink version."`

		Log    logModMask `help:"${log_help}" placeholder:"mod0,mod1,..."`
		Config string     `help:"${config_help}" type:"path" placeholder:"FILE"`

		mode mode
	}

	LinkFlags struct {
		Server    bool   `help:"${server_help}"`
		Peer      string `help:"${peer_help}" placeholder:"HOST"`
		Transport string `help:"${transport_help}" placeholder:"tcp|udp"`
	}

	Run struct {
		LinkFlags `embed:""`

		Send       byteList `help:"${send_help}" default:"42" placeholder:"42,43,..."`
		Trace      *outfile `help:"${trace_help}" placeholder:"FILE|stdout|stderr"`
		Background bool     `help:"${background_help}"`
		Frames     int64    `help:"Stop after N frames. (0: until all bytes are exchanged)" placeholder:"N"`
	}

	Loopback struct {
		Send   byteList `help:"${send_help}" default:"42" placeholder:"42,43,..."`
		Reply  byteList `help:"Bytes sent back by the secondary, in hexadecimal." default:"99" placeholder:"99,98,..."`
		Trace  *outfile `help:"${trace_help}" placeholder:"FILE|stdout|stderr"`
		Frames int      `help:"Give up after N frames." default:"60" placeholder:"N"`
	}

	Discover struct {
		LinkFlags `embed:""`
	}

	Version struct{}
)

var vars = kong.Vars{
	"log_help":        "Enable logging for specified modules.",
	"config_help":     "Configuration file. (default: config.toml in the user config directory)",
	"server_help":     "Be the primary, skip the discovery window.",
	"peer_help":       "Connect to that host as secondary, skip the discovery window.",
	"transport_help":  "Link transport, overrides the configuration.",
	"send_help":       "Bytes to send, in hexadecimal.",
	"trace_help":      "Write a JSON trace of every transfer.",
	"background_help": "Discover the peer in the background while emulation runs. The cable stays unplugged until then.",
}

func parseArgs(args []string) CLI {
	var cfg CLI
	parser, err := kong.New(&cfg,
		kong.Name("gblink"),
		kong.Description("Link cable over the network for handheld emulators."),
		kong.UsageOnError(),
		kong.Help(printHelp),
		vars)
	if err != nil {
		panic(err)
	}

	ctx, err := parser.Parse(args)
	check("command line", err)
	check("command line", ctx.Error)

	switch ctx.Command() {
	case "loopback":
		cfg.mode = loopbackMode
	case "discover":
		cfg.mode = discoverMode
	case "version":
		cfg.mode = versionMode
	default:
		cfg.mode = runMode
	}
	return cfg
}

func printHelp(options kong.HelpOptions, ctx *kong.Context) error {
	if err := kong.DefaultHelpPrinter(options, ctx); err != nil {
		return err
	}
	loggingHelp := `
Log modules:
  The --log flag accepts a comma-separated list of modules.

  Valid log modules are:
%s

  As a special case, the following values are accepted:
    - no                     Disable all logging.
    - all                    Enable all logs.
`
	var strs []string
	for _, m := range log.ModuleNames() {
		strs = append(strs, "    - "+m)
	}

	fmt.Fprintf(os.Stderr, loggingHelp, strings.Join(strs, "\n"))
	return nil
}

// apply overrides cfg with the flags that were set.
func (f LinkFlags) apply(cfg *link.Config) {
	if f.Server {
		cfg.Server = true
		cfg.PeerAddr = ""
	}
	if f.Peer != "" {
		cfg.PeerAddr = f.Peer
		cfg.Server = false
	}
	if f.Transport != "" {
		cfg.Transport = f.Transport
	}
}

// logModMask turns on debug logs for the modules it lists.
type logModMask log.ModuleMask

// Decode implements kong.MapperValue.
func (lm *logModMask) Decode(ctx *kong.DecodeContext) error {
	mask, quiet, err := parseLogModules(ctx.Scan.Pop().Value.(string))
	if err != nil {
		return err
	}
	*lm = logModMask(mask)
	if quiet {
		log.Disable()
		return nil
	}
	log.EnableDebugModules(mask)
	return nil
}

// parseLogModules parses a comma-separated list of module names. "all"
// selects every module and "no" alone silences logging, warnings included.
func parseLogModules(s string) (mask log.ModuleMask, quiet bool, err error) {
	all := false
	for name := range strings.SplitSeq(s, ",") {
		switch name = strings.TrimSpace(name); name {
		case "all":
			all = true
		case "no":
			quiet = true
		default:
			mod, ok := log.ModuleByName(name)
			if !ok {
				return 0, false, fmt.Errorf("unknown log module %q", name)
			}
			mask |= mod.Mask()
		}
	}
	if quiet && (all || mask != 0) {
		return 0, false, fmt.Errorf("log module 'no' must be used alone")
	}
	if all {
		mask = log.ModuleMaskAll
	}
	return mask, quiet, nil
}

// byteList is a list of bytes, given as comma-separated hexadecimal values.
type byteList []uint8

// Decode implements kong.MapperValue interface.
func (bl *byteList) Decode(ctx *kong.DecodeContext) error {
	tok := ctx.Scan.Pop()
	s, ok := tok.Value.(string)
	if !ok {
		return fmt.Errorf("expected a list of bytes, got %v", tok.Value)
	}
	out, err := parseBytes(s)
	if err != nil {
		return err
	}
	*bl = out
	return nil
}

func parseBytes(s string) (byteList, error) {
	var out byteList
	for _, v := range strings.Split(s, ",") {
		v = strings.TrimPrefix(strings.TrimSpace(v), "0x")
		n, err := strconv.ParseUint(v, 16, 8)
		if err != nil {
			return nil, fmt.Errorf("invalid byte %q", v)
		}
		out = append(out, uint8(n))
	}
	return out, nil
}

// outfile is where a trace goes: a file, created or truncated, or one of
// the standard streams.
type outfile struct {
	io.Writer
	name string
	file *os.File // nil for standard streams
}

// Decode implements kong.MapperValue.
func (f *outfile) Decode(ctx *kong.DecodeContext) error {
	f.name = ctx.Scan.Pop().Value.(string)
	switch f.name {
	case "stdout":
		f.Writer = os.Stdout
	case "stderr":
		f.Writer = os.Stderr
	default:
		fd, err := os.Create(f.name)
		if err != nil {
			return fmt.Errorf("trace file: %w", err)
		}
		f.Writer, f.file = fd, fd
	}
	return nil
}

func (f *outfile) String() string { return f.name }

func (f *outfile) Close() error {
	if f.file == nil {
		return nil
	}
	return f.file.Close()
}

// check exits if err is not nil, telling what failed.
func check(what string, err error) {
	if err != nil {
		fatal(what, err)
	}
}

func fatal(what string, err error) {
	fmt.Fprintf(os.Stderr, "gblink: %s: %v\n", what, err)
	os.Exit(1)
}
