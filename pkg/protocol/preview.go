package protocol

import (
	"fmt"
	"strings"
)

// DefaultGridPixels is the pixel count of the reference 4x4 grid.
const DefaultGridPixels = 16

// minPreviewPayload is the tag byte plus one complete RGB triplet.
const minPreviewPayload = 4

// Pixel is one RGB color.
type Pixel struct {
	R, G, B uint8
}

// String formats the pixel as #rrggbb.
func (p Pixel) String() string {
	return fmt.Sprintf("#%02x%02x%02x", p.R, p.G, p.B)
}

// PixelFrame is an ordered list of pixels, never longer than the grid
// capacity it was decoded for.
type PixelFrame []Pixel

// String renders the frame for sampled logging.
func (f PixelFrame) String() string {
	parts := make([]string, len(f))
	for i, p := range f {
		parts[i] = p.String()
	}
	return "[" + strings.Join(parts, " ") + "]"
}

// DecodePreviewFrame parses a PreviewFrame message:
//
//	[tag: 0x05][R G B]*
//
// At most capacity pixels are returned; extra triplets are dropped. Any
// malformed payload returns ErrInvalidPreview and a nil frame.
func DecodePreviewFrame(payload []byte, capacity int) (PixelFrame, error) {
	if len(payload) < minPreviewPayload {
		return nil, fmt.Errorf("%w: %d bytes is shorter than %d", ErrInvalidPreview, len(payload), minPreviewPayload)
	}
	if mt := MessageTypeOf(payload[0]); mt != MsgPreviewFrame {
		return nil, fmt.Errorf("%w: message type %s", ErrInvalidPreview, mt)
	}

	rgb := payload[1:]
	if len(rgb)%3 != 0 {
		return nil, fmt.Errorf("%w: %d color bytes is not a multiple of 3", ErrInvalidPreview, len(rgb))
	}

	n := min(len(rgb)/3, capacity)
	if n < 0 {
		n = 0
	}
	frame := make(PixelFrame, n)
	for i := range frame {
		off := i * 3
		frame[i] = Pixel{R: rgb[off], G: rgb[off+1], B: rgb[off+2]}
	}
	return frame, nil
}

// EncodePreviewFrame encodes pixels as a PreviewFrame message.
func EncodePreviewFrame(frame PixelFrame) []byte {
	buf := make([]byte, 1, 1+3*len(frame))
	buf[0] = byte(MsgPreviewFrame)
	for _, p := range frame {
		buf = append(buf, p.R, p.G, p.B)
	}
	return buf
}
