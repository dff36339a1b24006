package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"gblink/emu"
	"gblink/emu/log"
	"gblink/link"
)

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

func printStats(name string, st link.Stats) {
	fmt.Printf("%s: %d transfers, %d fallbacks, %d rejected writes, %d dropped frames\n",
		name, st.Transfers, st.Fallbacks, st.Rejected, st.Dropped)
}

// runMain runs one console linked to a peer over the network.
func runMain(args Run, cfg emu.Config) error {
	args.apply(&cfg.Link)
	if err := cfg.Link.Check(); err != nil {
		return err
	}
	limit := cfg.General.FramesLimit
	if args.Frames > 0 {
		limit = args.Frames
	}

	ctx, stop := signalContext()
	defer stop()

	c := emu.NewConsole(cfg.General)
	log.AddContext(c)
	defer log.RemoveContext(c)

	var l *link.Link
	if args.Background {
		l = link.Connect(ctx, cfg.Link)
	} else {
		sess, err := link.Discover(ctx, cfg.Link)
		if err != nil {
			return fmt.Errorf("link cable not attached: %w", err)
		}
		l = link.Established(sess)
	}

	drv := link.NewDriver(l, cfg.Link)
	if args.Trace != nil {
		defer args.Trace.Close()
		drv.SetTracer(link.NewTracer(args.Trace))
	}
	if err := c.SetDriver(drv); err != nil {
		l.Close()
		return err
	}
	defer c.Close()

	var (
		pump    *emu.Pump
		role    link.Role
		discErr error
	)
	err := c.Run(ctx, limit, func() bool {
		if pump != nil {
			return pump.Done()
		}
		sess := l.Session()
		if sess == nil {
			if discErr = l.Err(); discErr != nil {
				c.SetDriver(nil)
				return true
			}
			return false
		}
		role = sess.Role()
		pump = emu.NewPump(c, role == link.Primary, args.Send)
		pump.Start()
		log.ModEmu.InfoZ("link cable attached").
			Stringer("role", role).
			String("peer", sess.PeerAddr().String()).
			End()
		return false
	})
	if discErr != nil {
		return fmt.Errorf("link cable not attached: %w", discErr)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	if pump != nil {
		fmt.Printf("%s received: % x\n", role, pump.Received())
	}
	printStats(role.String(), drv.Stats())
	return nil
}

// loopbackMain links two consoles in memory and runs them in lockstep.
func loopbackMain(args Loopback, cfg emu.Config) error {
	if err := cfg.Link.Check(); err != nil {
		return err
	}

	a, b := link.Pipe()
	pc, sc := emu.NewConsole(cfg.General), emu.NewConsole(cfg.General)
	pd := link.NewDriver(link.Established(link.NewSession(link.Primary, a, nil, nil)), cfg.Link)
	sd := link.NewDriver(link.Established(link.NewSession(link.Secondary, b, nil, nil)), cfg.Link)
	if args.Trace != nil {
		defer args.Trace.Close()
		tr := link.NewTracer(args.Trace)
		pd.SetTracer(tr)
		sd.SetTracer(tr)
	}
	if err := pc.SetDriver(pd); err != nil {
		return err
	}
	defer pc.Close()
	if err := sc.SetDriver(sd); err != nil {
		return err
	}
	defer sc.Close()

	pp := emu.NewPump(pc, true, args.Send)
	sp := emu.NewPump(sc, false, args.Reply)
	sp.Start()
	pp.Start()

	done := func() bool { return pp.Done() && sp.Done() }
	slice := cfg.Link.PollCycles
	for frame := 0; !done(); frame++ {
		if frame == args.Frames {
			return fmt.Errorf("exchange not over after %d frames", frame)
		}
		for cycles := int64(0); cycles < emu.CyclesPerFrame && !done(); cycles += slice {
			pc.Step(slice)
			sc.Step(slice)
		}
	}

	fmt.Printf("primary received: % x\n", pp.Received())
	fmt.Printf("secondary received: % x\n", sp.Received())
	printStats("primary", pd.Stats())
	printStats("secondary", sd.Stats())
	return nil
}

// discoverMain negotiates roles with a peer, prints them and exits.
func discoverMain(args Discover, cfg emu.Config) error {
	args.apply(&cfg.Link)

	ctx, stop := signalContext()
	defer stop()

	sess, err := link.Discover(ctx, cfg.Link)
	if err != nil {
		return err
	}
	defer sess.Close()

	fmt.Printf("role: %s, peer: %s\n", sess.Role(), sess.PeerAddr())
	return nil
}
