package link

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestFrameRoundTrip(t *testing.T) {
	frames := []Frame{
		{Tag: ClockRequest, Payload: 0x42},
		{Tag: ClockResponse, Payload: 0x99},
		{Tag: ClockResponse, Payload: DisconnectedByte},
	}

	var buf bytes.Buffer
	for _, f := range frames {
		if err := WriteFrame(&buf, f); err != nil {
			t.Fatalf("WriteFrame(%v): %v", f, err)
		}
	}
	if buf.Len() != len(frames)*FrameSize {
		t.Fatalf("encoded %d bytes, want %d", buf.Len(), len(frames)*FrameSize)
	}

	var got []Frame
	for {
		f, err := ReadFrame(&buf)
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("ReadFrame: %v", err)
		}
		got = append(got, f)
	}
	if diff := cmp.Diff(frames, got); diff != "" {
		t.Errorf("frames mismatch (-want +got):\n%s", diff)
	}
}

func TestFrameEncoding(t *testing.T) {
	b, err := Frame{Tag: ClockRequest, Payload: 0x42}.MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]byte{0x01, 0x42}, b); diff != "" {
		t.Errorf("request encoding mismatch (-want +got):\n%s", diff)
	}

	if _, err := (Frame{Tag: 7}).MarshalBinary(); !errors.Is(err, ErrUnknownTag) {
		t.Errorf("MarshalBinary with tag 7: err = %v, want %v", err, ErrUnknownTag)
	}
}

func TestDecodeFrameErrors(t *testing.T) {
	tests := []struct {
		name string
		buf  []byte
		want error
	}{
		{"empty", nil, ErrShortFrame},
		{"one byte", []byte{ClockRequest}, ErrShortFrame},
		{"unknown tag", []byte{2, 0}, ErrUnknownTag},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeFrame(tt.buf); !errors.Is(err, tt.want) {
				t.Errorf("DecodeFrame(%x) err = %v, want %v", tt.buf, err, tt.want)
			}
		})
	}
}

func TestReadFrameTruncated(t *testing.T) {
	_, err := ReadFrame(bytes.NewReader([]byte{ClockResponse}))
	if !errors.Is(err, ErrShortFrame) {
		t.Errorf("ReadFrame on truncated stream: err = %v, want %v", err, ErrShortFrame)
	}
}

func TestFrameString(t *testing.T) {
	tests := []struct {
		f    Frame
		want string
	}{
		{Frame{ClockRequest, 0x42}, "request(42)"},
		{Frame{ClockResponse, 0xff}, "response(ff)"},
		{Frame{9, 1}, "frame(09,01)"},
	}
	for _, tt := range tests {
		if got := tt.f.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}
