package protocol

import (
	"bytes"
	"crypto/rand"
	"testing"
)

func TestMessageTypeOfIsTotal(t *testing.T) {
	known := map[byte]string{
		1: "PutSourceCode",
		3: "PutByteCode",
		4: "PreviewImage",
		5: "PreviewFrame",
		6: "GetSourceCode",
		7: "GetProgramList",
		8: "PutPixelMap",
		9: "ExpanderConfig",
	}

	for i := 0; i < 256; i++ {
		mt := MessageTypeOf(byte(i))
		want, ok := known[byte(i)]
		if mt.IsKnown() != ok {
			t.Errorf("tag %d: IsKnown() = %v, want %v", i, mt.IsKnown(), ok)
		}
		if !ok {
			want = "Unknown(" + itoa(i) + ")"
		}
		if got := mt.String(); got != want {
			t.Errorf("tag %d: String() = %q, want %q", i, got, want)
		}
	}
}

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	var b []byte
	for i > 0 {
		b = append([]byte{byte('0' + i%10)}, b...)
		i /= 10
	}
	return string(b)
}

func TestCommandWire(t *testing.T) {
	tests := []struct {
		cmd     Command
		wantOp  Opcode
		wantTxt string
	}{
		{CommandSendPong, OpPong, ""},
		{CommandSubscribe, OpText, `{"sendUpdates":true}`},
		{CommandGetConfig, OpText, `{"getConfig":true}`},
		{CommandClose, OpClose, ""},
	}

	for _, tc := range tests {
		t.Run(tc.cmd.String(), func(t *testing.T) {
			op, payload := tc.cmd.Wire()
			if op != tc.wantOp {
				t.Errorf("op = %v, want %v", op, tc.wantOp)
			}
			if string(payload) != tc.wantTxt {
				t.Errorf("payload = %q, want %q", payload, tc.wantTxt)
			}
		})
	}
}

// TestCommandTextRoundTrip encodes each text command through the codec and
// decodes it back.
func TestCommandTextRoundTrip(t *testing.T) {
	for _, cmd := range []Command{CommandSubscribe, CommandGetConfig} {
		op, payload := cmd.Wire()

		var buf bytes.Buffer
		if err := WriteFrame(&buf, op, payload, rand.Reader); err != nil {
			t.Fatalf("%v: WriteFrame() error = %v", cmd, err)
		}
		f, err := ReadFrame(&buf, 0)
		if err != nil {
			t.Fatalf("%v: ReadFrame() error = %v", cmd, err)
		}
		if f.Opcode != OpText || string(f.Payload) != string(payload) {
			t.Errorf("%v: decoded %v %q, want Text %q", cmd, f.Opcode, f.Payload, payload)
		}
	}
}

func TestCommandString(t *testing.T) {
	if got := Command(0).String(); got != "Unknown" {
		t.Errorf("Command(0).String() = %q, want Unknown", got)
	}
	if op, payload := Command(0).Wire(); op != 0 || payload != nil {
		t.Errorf("Command(0).Wire() = %v, %v", op, payload)
	}
}
