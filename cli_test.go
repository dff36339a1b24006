package main

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"gblink/emu/log"
	"gblink/link"
)

func TestParseBytes(t *testing.T) {
	tests := []struct {
		in      string
		want    byteList
		wantErr bool
	}{
		{in: "42", want: byteList{0x42}},
		{in: "42,43,ff", want: byteList{0x42, 0x43, 0xff}},
		{in: "0x01, 0x02", want: byteList{0x01, 0x02}},
		{in: "100", wantErr: true},
		{in: "zz", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		got, err := parseBytes(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseBytes(%q) err = %v, wantErr %t", tt.in, err, tt.wantErr)
			continue
		}
		if diff := cmp.Diff(tt.want, got); diff != "" {
			t.Errorf("parseBytes(%q) mismatch (-want +got):\n%s", tt.in, diff)
		}
	}
}

func TestParseLogModules(t *testing.T) {
	tests := []struct {
		in        string
		want      log.ModuleMask
		wantQuiet bool
		wantErr   bool
	}{
		{in: "link", want: log.ModLink.Mask()},
		{in: "link, serial", want: log.ModLink.Mask() | log.ModSerial.Mask()},
		{in: "all", want: log.ModuleMaskAll},
		{in: "no", wantQuiet: true},
		{in: "no,all", wantErr: true},
		{in: "no,link", wantErr: true},
		{in: "cpu", wantErr: true},
	}
	for _, tt := range tests {
		mask, quiet, err := parseLogModules(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseLogModules(%q) err = %v, wantErr %t", tt.in, err, tt.wantErr)
			continue
		}
		if mask != tt.want || quiet != tt.wantQuiet {
			t.Errorf("parseLogModules(%q) = %x, %t, want %x, %t", tt.in, mask, quiet, tt.want, tt.wantQuiet)
		}
	}
}

func TestParseArgs(t *testing.T) {
	cli := parseArgs([]string{"run", "--server", "--transport", "udp", "--send", "1,2,3", "--frames", "10"})
	if cli.mode != runMode {
		t.Fatalf("mode = %d, want %d", cli.mode, runMode)
	}
	if diff := cmp.Diff(byteList{1, 2, 3}, cli.Run.Send); diff != "" {
		t.Errorf("send mismatch (-want +got):\n%s", diff)
	}
	if cli.Run.Frames != 10 {
		t.Errorf("frames = %d, want 10", cli.Run.Frames)
	}

	cfg := link.Config{PeerAddr: "10.0.0.1"}
	cli.Run.apply(&cfg)
	want := link.Config{Server: true, Transport: link.UDP}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("link config mismatch (-want +got):\n%s", diff)
	}

	cli = parseArgs([]string{"loopback"})
	if cli.mode != loopbackMode {
		t.Fatalf("mode = %d, want %d", cli.mode, loopbackMode)
	}
	if diff := cmp.Diff(byteList{0x99}, cli.Loopback.Reply); diff != "" {
		t.Errorf("default reply mismatch (-want +got):\n%s", diff)
	}
}
