package mve

import (
	"bytes"
	"errors"
	"image/color"
	"testing"
)

// frameData prepends the 14-byte video data header to the opcode operands.
func frameData(flags int, data ...byte) []byte {
	p := make([]byte, 14)
	p[12] = byte(flags)
	p[13] = byte(flags >> 8)
	return append(p, data...)
}

func newTestVideo(t *testing.T, width, height int) *Video {
	t.Helper()

	v := NewVideo()
	if err := v.Configure(width, height); err != nil {
		t.Fatal(err)
	}

	return v
}

// block returns the 8x8 block at macroblock coordinate (col, row) as 64 bytes.
func block(buf []byte, width, col, row int) []byte {
	out := make([]byte, 0, 64)
	off := row*8*width + col*8
	for i := 0; i < 8; i++ {
		out = append(out, buf[off+i*width:off+i*width+8]...)
	}

	return out
}

func TestRelFar(t *testing.T) {
	tests := []struct {
		i, sign int
		x, y    int
	}{
		{0, 1, 8, 0},
		{6, 1, 14, 0},
		{7, 1, 8, 1},
		{55, 1, 14, 7},
		{56, 1, -14, 8},
		{84, 1, 14, 8},
		{255, 1, 11, 14},
		{0, -1, -8, 0},
		{56, -1, 14, -8},
	}

	for _, tt := range tests {
		x, y := relFar(tt.i, tt.sign)
		if x != tt.x || y != tt.y {
			t.Errorf("relFar(%d, %d): got (%d, %d), want (%d, %d)", tt.i, tt.sign, x, y, tt.x, tt.y)
		}
	}
}

func TestRelClose(t *testing.T) {
	tests := []struct {
		i    int
		x, y int
	}{
		{0x00, -8, -8},
		{0x88, 0, 0},
		{0xFF, 7, 7},
		{0x18, 0, -7},
	}

	for _, tt := range tests {
		x, y := relClose(tt.i)
		if x != tt.x || y != tt.y {
			t.Errorf("relClose(%#02x): got (%d, %d), want (%d, %d)", tt.i, x, y, tt.x, tt.y)
		}
	}
}

func TestPatternRow2(t *testing.T) {
	p := [4]byte{0xAA, 0xBB}
	dst := make([]byte, 8)

	// The low bit maps to the leftmost pixel.
	patternRow2(dst, 0x03, &p)

	want := []byte{0xBB, 0xBB, 0xAA, 0xAA, 0xAA, 0xAA, 0xAA, 0xAA}
	if !bytes.Equal(dst, want) {
		t.Errorf("patternRow2: got %x, want %x", dst, want)
	}

	p = [4]byte{0x11, 0x22}
	patternRow2(dst, 0xFE, &p)

	want = []byte{0x11, 0x22, 0x22, 0x22, 0x22, 0x22, 0x22, 0x22}
	if !bytes.Equal(dst, want) {
		t.Errorf("patternRow2: got %x, want %x", dst, want)
	}
}

func TestPatternRow4(t *testing.T) {
	p := [4]byte{0x00, 0x01, 0x02, 0x03}
	dst := make([]byte, 8)

	// 0xE4 unpacks LSB-first to the bit pairs 00 01 10 11.
	patternRow4(dst, 0xE4, 0x00, &p)

	want := []byte{0x00, 0x01, 0x02, 0x03, 0x00, 0x00, 0x00, 0x00}
	if !bytes.Equal(dst, want) {
		t.Errorf("patternRow4: got %x, want %x", dst, want)
	}
}

func TestPatternQuadrant2(t *testing.T) {
	p := [4]byte{0x00, 0x22}
	dst := make([]byte, 4*16)

	patternQuadrant2(dst, 16, 0xF9, 0x9F, &p)

	want := [][]byte{
		{0x22, 0x00, 0x00, 0x22},
		{0x22, 0x22, 0x22, 0x22},
		{0x22, 0x22, 0x22, 0x22},
		{0x22, 0x00, 0x00, 0x22},
	}
	for i, row := range want {
		if !bytes.Equal(dst[i*16:i*16+4], row) {
			t.Errorf("patternQuadrant2 row %d: got %x, want %x", i, dst[i*16:i*16+4], row)
		}
	}
}

func TestDecodeCopyOpcodes(t *testing.T) {
	v := newTestVideo(t, 16, 8)

	for i := range v.back2 {
		v.back2[i] = byte(i)
	}
	for i := range v.back1 {
		v.back1[i] = 0xCC
	}

	// Left block from the previous frame, right block unchanged.
	frame, err := v.DecodeFrame([]byte{0x10}, frameData(0))
	if err != nil {
		t.Fatal(err)
	}

	if !bytes.Equal(block(frame.Pix, 16, 0, 0), block(v.back2, 16, 0, 0)) {
		t.Error("copy opcode: left block does not match previous frame")
	}

	for i, b := range block(frame.Pix, 16, 1, 0) {
		if b != 0xCC {
			t.Fatalf("skip opcode: right block byte %d: got %#02x, want %#02x", i, b, 0xCC)
		}
	}
}

func TestDecodeBufferSwap(t *testing.T) {
	v := newTestVideo(t, 16, 8)

	// First frame fills both blocks solid.
	if _, err := v.DecodeFrame([]byte{0xEE}, frameData(0, 0x11, 0x22)); err != nil {
		t.Fatal(err)
	}

	// Second frame swaps buffers and copies everything from the previous one.
	frame, err := v.DecodeFrame([]byte{0x00}, frameData(1))
	if err != nil {
		t.Fatal(err)
	}

	if frame.Pix[0] != 0x11 || frame.Pix[8] != 0x22 {
		t.Errorf("swap+copy: got %#02x, %#02x, want %#02x, %#02x", frame.Pix[0], frame.Pix[8], 0x11, 0x22)
	}
}

func TestDecodeTwoColorCoarse(t *testing.T) {
	v := newTestVideo(t, 16, 8)

	frame, err := v.DecodeFrame([]byte{0x17}, frameData(0, 0x22, 0x11, 0x7E, 0x83))
	if err != nil {
		t.Fatal(err)
	}

	want := [][]byte{
		{0x22, 0x22, 0x11, 0x11, 0x11, 0x11, 0x11, 0x11},
		{0x22, 0x22, 0x11, 0x11, 0x11, 0x11, 0x11, 0x11},
		{0x11, 0x11, 0x11, 0x11, 0x11, 0x11, 0x22, 0x22},
		{0x11, 0x11, 0x11, 0x11, 0x11, 0x11, 0x22, 0x22},
		{0x11, 0x11, 0x11, 0x11, 0x22, 0x22, 0x22, 0x22},
		{0x11, 0x11, 0x11, 0x11, 0x22, 0x22, 0x22, 0x22},
		{0x22, 0x22, 0x22, 0x22, 0x22, 0x22, 0x11, 0x11},
		{0x22, 0x22, 0x22, 0x22, 0x22, 0x22, 0x11, 0x11},
	}
	for i, row := range want {
		got := frame.Pix[i*16 : i*16+8]
		if !bytes.Equal(got, row) {
			t.Errorf("row %d: got %x, want %x", i, got, row)
		}
	}
}

func TestDecodeTwoColorFine(t *testing.T) {
	v := newTestVideo(t, 16, 8)

	data := []byte{0x11, 0x22, 0x01, 0x02, 0x04, 0x08, 0x10, 0x20, 0x40, 0x80}
	frame, err := v.DecodeFrame([]byte{0x17}, frameData(0, data...))
	if err != nil {
		t.Fatal(err)
	}

	// Each row has a single 0x22 pixel walking left to right.
	for i := 0; i < 8; i++ {
		for j := 0; j < 8; j++ {
			want := byte(0x11)
			if i == j {
				want = 0x22
			}
			if got := frame.Pix[i*16+j]; got != want {
				t.Fatalf("pixel (%d,%d): got %#02x, want %#02x", i, j, got, want)
			}
		}
	}
}

func TestDecodeTwoColorQuadrants(t *testing.T) {
	v := newTestVideo(t, 16, 8)

	data := []byte{
		0x00, 0x22, 0xF9, 0x9F,
		0x44, 0x55, 0xAA, 0x55,
		0x11, 0x33, 0xCC, 0x33,
		0x66, 0x77, 0x01, 0xEF,
	}
	frame, err := v.DecodeFrame([]byte{0x18}, frameData(0, data...))
	if err != nil {
		t.Fatal(err)
	}

	want := [][]byte{
		{0x22, 0x00, 0x00, 0x22, 0x11, 0x11, 0x33, 0x33},
		{0x22, 0x22, 0x22, 0x22, 0x11, 0x11, 0x33, 0x33},
		{0x22, 0x22, 0x22, 0x22, 0x33, 0x33, 0x11, 0x11},
		{0x22, 0x00, 0x00, 0x22, 0x33, 0x33, 0x11, 0x11},
		{0x44, 0x55, 0x44, 0x55, 0x77, 0x66, 0x66, 0x66},
		{0x44, 0x55, 0x44, 0x55, 0x66, 0x66, 0x66, 0x66},
		{0x55, 0x44, 0x55, 0x44, 0x77, 0x77, 0x77, 0x77},
		{0x55, 0x44, 0x55, 0x44, 0x66, 0x77, 0x77, 0x77},
	}
	for i, row := range want {
		got := frame.Pix[i*16 : i*16+8]
		if !bytes.Equal(got, row) {
			t.Errorf("row %d: got %x, want %x", i, got, row)
		}
	}
}

func TestDecodeFourColor(t *testing.T) {
	v := newTestVideo(t, 16, 8)

	data := make([]byte, 0, 20)
	data = append(data, 0x00, 0x01, 0x02, 0x03)
	for i := 0; i < 8; i++ {
		data = append(data, 0xE4, 0x00)
	}

	frame, err := v.DecodeFrame([]byte{0x19}, frameData(0, data...))
	if err != nil {
		t.Fatal(err)
	}

	want := []byte{0x00, 0x01, 0x02, 0x03, 0x00, 0x00, 0x00, 0x00}
	for i := 0; i < 8; i++ {
		got := frame.Pix[i*16 : i*16+8]
		if !bytes.Equal(got, want) {
			t.Errorf("row %d: got %x, want %x", i, got, want)
		}
	}
}

func TestDecodeFourColorQuadrants(t *testing.T) {
	v := newTestVideo(t, 16, 8)

	// Four quadrants, each a zero pattern, so each fills with its first color.
	data := []byte{
		0x10, 0x11, 0x12, 0x13, 0, 0, 0, 0,
		0x20, 0x21, 0x22, 0x23, 0, 0, 0, 0,
		0x30, 0x31, 0x32, 0x33, 0, 0, 0, 0,
		0x40, 0x41, 0x42, 0x43, 0, 0, 0, 0,
	}
	frame, err := v.DecodeFrame([]byte{0x1A}, frameData(0, data...))
	if err != nil {
		t.Fatal(err)
	}

	quads := []struct {
		col, row int
		want     byte
	}{
		{0, 0, 0x10},
		{0, 1, 0x20},
		{1, 0, 0x30},
		{1, 1, 0x40},
	}
	for _, q := range quads {
		for i := 0; i < 4; i++ {
			for j := 0; j < 4; j++ {
				got := frame.Pix[(q.row*4+i)*16+q.col*4+j]
				if got != q.want {
					t.Fatalf("quadrant (%d,%d) pixel (%d,%d): got %#02x, want %#02x", q.col, q.row, i, j, got, q.want)
				}
			}
		}
	}
}

func TestDecodeRaw(t *testing.T) {
	v := newTestVideo(t, 16, 8)

	data := make([]byte, 0, 80)
	for i := 0; i < 64; i++ {
		data = append(data, byte(i))
	}
	for i := 0; i < 16; i++ {
		data = append(data, byte(0xA0+i))
	}

	frame, err := v.DecodeFrame([]byte{0xCB}, frameData(0, data...))
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 8; i++ {
		for j := 0; j < 8; j++ {
			if got := frame.Pix[i*16+j]; got != byte(i*8+j) {
				t.Fatalf("raw pixel (%d,%d): got %#02x, want %#02x", i, j, got, byte(i*8+j))
			}

			want := byte(0xA0 + (i/2)*4 + j/2)
			if got := frame.Pix[i*16+8+j]; got != want {
				t.Fatalf("raw 2x2 pixel (%d,%d): got %#02x, want %#02x", i, j, got, want)
			}
		}
	}
}

func TestDecodeRaw4x4(t *testing.T) {
	v := newTestVideo(t, 16, 8)

	frame, err := v.DecodeFrame([]byte{0x1D}, frameData(0, 0x0A, 0x0B, 0x0C, 0x0D))
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 8; i++ {
		for j := 0; j < 8; j++ {
			want := byte(0x0A)
			switch {
			case i < 4 && j >= 4:
				want = 0x0B
			case i >= 4 && j < 4:
				want = 0x0C
			case i >= 4 && j >= 4:
				want = 0x0D
			}
			if got := frame.Pix[i*16+j]; got != want {
				t.Fatalf("pixel (%d,%d): got %#02x, want %#02x", i, j, got, want)
			}
		}
	}
}

// A double skip that crosses the last macroblock ends the whole frame: the
// remaining map entries never execute and consume no data.
func TestDecodeSkipEndsFrame(t *testing.T) {
	v := newTestVideo(t, 16, 16)

	// The second map byte would need 128 raw bytes if it ever ran.
	frame, err := v.DecodeFrame([]byte{0x66, 0xBB}, frameData(0))
	if err != nil {
		t.Fatal(err)
	}

	for i, b := range frame.Pix {
		if b != 0 {
			t.Fatalf("Pix[%d]: got %#02x, want %#02x", i, b, 0)
		}
	}
}

func TestDecodeErrors(t *testing.T) {
	v := NewVideo()

	if _, err := v.DecodeFrame([]byte{0x11}, frameData(0)); !errors.Is(err, ErrNoVideoBuffers) {
		t.Errorf("unconfigured: got %v, want %v", err, ErrNoVideoBuffers)
	}

	if err := v.Configure(16, 8); err != nil {
		t.Fatal(err)
	}

	if _, err := v.DecodeFrame([]byte{0x11}, []byte{1, 2, 3}); !errors.Is(err, ErrDataShort) {
		t.Errorf("short header: got %v, want %v", err, ErrDataShort)
	}

	if _, err := v.DecodeFrame(nil, frameData(0)); !errors.Is(err, ErrMapShort) {
		t.Errorf("short map: got %v, want %v", err, ErrMapShort)
	}

	// Raw block with only half its operand bytes.
	if _, err := v.DecodeFrame([]byte{0x1B}, frameData(0, make([]byte, 32)...)); !errors.Is(err, ErrDataShort) {
		t.Errorf("short data: got %v, want %v", err, ErrDataShort)
	}
}

// Every opcode variant consumes a fixed operand count. The exact sizes keep
// the opcode stream in sync with the decoding map, so each case is checked
// both ways: the exact payload decodes, one byte less aborts.
func TestDecodeByteAccounting(t *testing.T) {
	tests := []struct {
		name   string
		opcode byte
		data   []byte
	}{
		{"copyOther", 0x0, nil},
		{"skip", 0x1, nil},
		{"relFarDown", 0x2, []byte{0}},
		{"relFarUp", 0x3, []byte{0}},
		{"relClose", 0x4, []byte{0x88}},
		{"relSigned", 0x5, []byte{0, 0}},
		{"twoColorFine", 0x7, pad([]byte{0x00, 0x01}, 10)},
		{"twoColorCoarse", 0x7, pad([]byte{0x01, 0x00}, 4)},
		{"twoColorQuad", 0x8, pad([]byte{0x00, 0x01}, 16)},
		{"twoColorLR", 0x8, pad([]byte{0x01, 0x00, 0, 0, 0, 0, 0x00, 0x01}, 12)},
		{"twoColorTB", 0x8, pad([]byte{0x01, 0x00, 0, 0, 0, 0, 0x03, 0x02}, 12)},
		{"fourColorFine", 0x9, pad([]byte{0x00, 0x01, 0x00, 0x01}, 20)},
		{"fourColor2x2", 0x9, pad([]byte{0x00, 0x01, 0x01, 0x00}, 8)},
		{"fourColor2x1", 0x9, pad([]byte{0x01, 0x00, 0x00, 0x01}, 12)},
		{"fourColor1x2", 0x9, pad([]byte{0x01, 0x00, 0x01, 0x00}, 12)},
		{"fourColorQuad", 0xA, pad([]byte{0x00, 0x01}, 32)},
		{"fourColorLR", 0xA, pad([]byte{0x01, 0x00, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0x00, 0x01}, 24)},
		{"fourColorTB", 0xA, pad([]byte{0x01, 0x00, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0x01, 0x00}, 24)},
		{"raw", 0xB, make([]byte, 64)},
		{"raw2x2", 0xC, make([]byte, 16)},
		{"raw4x4", 0xD, make([]byte, 4)},
		{"solid", 0xE, []byte{0}},
		{"dither", 0xF, []byte{0, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newTestVideo(t, 16, 8)

			// Pair the opcode with a skip so any stray byte is left over.
			dmap := []byte{tt.opcode | 0x10}

			if _, err := v.DecodeFrame(dmap, frameData(0, tt.data...)); err != nil {
				t.Errorf("exact payload: got %v, want nil", err)
			}

			if len(tt.data) == 0 {
				return
			}

			short := tt.data[:len(tt.data)-1]
			if _, err := v.DecodeFrame(dmap, frameData(0, short...)); !errors.Is(err, ErrDataShort) {
				t.Errorf("short payload: got %v, want %v", err, ErrDataShort)
			}
		})
	}
}

// pad extends head with zeros to the full operand size.
func pad(head []byte, size int) []byte {
	out := make([]byte, size)
	copy(out, head)

	return out
}

func TestSetPalettePacked(t *testing.T) {
	v := newTestVideo(t, 16, 8)

	data := make([]byte, 32, 38)
	data[0] = 0x05 // entries 0 and 2
	data = append(data, 1, 2, 3, 4, 5, 6)

	v.SetPalettePacked(data)

	want := map[int]color.RGBA{
		0: {R: 4, G: 8, B: 12, A: 0xFF},
		1: {A: 0xFF},
		2: {R: 16, G: 20, B: 24, A: 0xFF},
	}
	for n, w := range want {
		if got := v.palette[n]; got != w {
			t.Errorf("palette[%d]: got %v, want %v", n, got, w)
		}
	}
}

func TestLegacyFaultConsumesOperands(t *testing.T) {
	v := newTestVideo(t, 16, 8)

	var faults int
	v.SetLogFunc(func(level LogLevel, msg string) {
		faults++
	})

	// The left block writes out of range via a far self-reference; the right
	// block must still find its solid byte at the correct stream position.
	frame, err := v.DecodeFrame([]byte{0xE2}, frameData(0, 56, 0x99))
	if err != nil {
		t.Fatal(err)
	}

	if faults == 0 {
		t.Error("out-of-bounds copy was not reported")
	}

	if frame.Pix[8] != 0x99 {
		t.Errorf("Pix[8]: got %#02x, want %#02x", frame.Pix[8], 0x99)
	}
}
