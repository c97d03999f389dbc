package mve

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"time"
	"unsafe"
)

// Video errors.
var (
	// ErrBlockGrid is returned when the frame dimensions are not multiples of
	// the 8x8 macroblock size.
	ErrBlockGrid = errors.New("width and height must be positive multiples of 8")

	// ErrCursorRange is returned in strict mode when a block would be read or
	// written outside the frame buffers.
	ErrCursorRange = errors.New("frame cursor out of bounds")

	// ErrDataShort is returned when an opcode needs more operand bytes than
	// the video data stream has left.
	ErrDataShort = errors.New("video data stream exhausted")

	// ErrMapShort is returned when the decoding map is smaller than the
	// macroblock grid requires.
	ErrMapShort = errors.New("decoding map too short")

	// ErrNoVideoBuffers is returned when a frame is decoded before the video
	// buffers have been configured.
	ErrNoVideoBuffers = errors.New("video buffers not initialized")
)

// LogLevel is the severity passed to LogFunc.
type LogLevel int

// Log levels.
const (
	LogWarn LogLevel = iota
	LogCritical
)

// LogFunc is the diagnostic sink for decode integrity faults. The decoder
// itself produces no output; set a log function to see out-of-bounds reports.
type LogFunc func(level LogLevel, msg string)

// Frame represents decoded video frame.
type Frame struct {
	Time float64

	Width  int
	Height int

	// Pix holds one palette index per pixel in row-major order. It aliases
	// the decoder back buffer and is valid until the next decoded frame.
	Pix []byte

	// Palette is a live view of the decoder palette (256 entries).
	Palette color.Palette

	imPaletted image.Paletted
	imRGBA     image.RGBA
}

// Paletted returns frame as image.Paletted.
func (f *Frame) Paletted() *image.Paletted {
	return &f.imPaletted
}

// RGBA returns frame as image.RGBA.
func (f *Frame) RGBA() *image.RGBA {
	b := f.imPaletted.Bounds()
	draw.Draw(&f.imRGBA, b, &f.imPaletted, b.Min, draw.Src)
	return &f.imRGBA
}

// Pixels returns frame as slice of color.RGBA.
func (f *Frame) Pixels() []color.RGBA {
	img := f.RGBA()
	return unsafe.Slice((*color.RGBA)(unsafe.Pointer(&img.Pix[0])), len(img.Pix)/4)
}

// Video decodes MVE video data into raw 8-bit palettized frames.
//
// Two back buffers are kept, the way the original player recycles them: the
// write target still holds the frame decoded two frames ago, the other buffer
// holds the previous frame. Inter-coded blocks predict from either buffer.
type Video struct {
	width    int
	height   int
	mbWidth  int
	mbHeight int

	framePeriod   float64
	time          float64
	framesDecoded int

	back1 []byte // write target, holds the frame from two frames ago
	back2 []byte // previous frame

	// Overflow target for blocks rejected in legacy mode; sized like one
	// macroblock row span so the pattern fillers can write with the real stride.
	scratch []byte

	palette color.Palette

	strict  bool
	logFunc LogFunc

	frame Frame
}

// NewVideo creates a video decoder. The frame dimensions are supplied later
// through Configure, from the init video buffers segment.
func NewVideo() *Video {
	video := &Video{}

	video.palette = make(color.Palette, 256)
	for i := range video.palette {
		video.palette[i] = color.RGBA{A: 0xFF}
	}

	return video
}

// Configure sets the frame dimensions and allocates the back buffers. Width
// and height must be positive multiples of 8; anything else is rejected with
// ErrBlockGrid. Calling Configure again resets both back buffers to black.
func (v *Video) Configure(width, height int) error {
	if width <= 0 || height <= 0 || width%8 != 0 || height%8 != 0 {
		return ErrBlockGrid
	}

	v.width = width
	v.height = height
	v.mbWidth = width >> 3
	v.mbHeight = height >> 3

	v.back1 = make([]byte, width*height)
	v.back2 = make([]byte, width*height)
	v.scratch = make([]byte, 7*width+8)

	v.frame.Width = width
	v.frame.Height = height
	v.frame.Palette = v.palette

	v.frame.imPaletted = image.Paletted{
		Stride:  width,
		Rect:    image.Rect(0, 0, width, height),
		Palette: v.palette,
	}

	v.frame.imRGBA = image.RGBA{
		Pix:    make([]byte, width*height*4),
		Stride: 4 * width,
		Rect:   image.Rect(0, 0, width, height),
	}

	return nil
}

// Width returns the display width.
func (v *Video) Width() int {
	return v.width
}

// Height returns the display height.
func (v *Video) Height() int {
	return v.height
}

// Palette returns the current palette (256 entries).
func (v *Video) Palette() color.Palette {
	return v.palette
}

// SetPalette sets palette entries starting at index start from packed RGB
// triplets with 6-bit VGA components, as carried by the set palette segment.
func (v *Video) SetPalette(start int, rgb []byte) {
	for i := 0; i+2 < len(rgb); i += 3 {
		n := start + i/3
		if n < 0 || n > 255 {
			break
		}

		v.palette[n] = color.RGBA{
			R: rgb[i] << 2,
			G: rgb[i+1] << 2,
			B: rgb[i+2] << 2,
			A: 0xFF,
		}
	}
}

// SetPalettePacked sets palette entries from the packed form: a 32-byte
// presence bitmask followed by one RGB triplet per set bit.
func (v *Video) SetPalettePacked(data []byte) {
	if len(data) < 32 {
		return
	}

	rgb := data[32:]
	for i := 0; i < 256; i++ {
		if data[i>>3]&(1<<(i&7)) == 0 {
			continue
		}
		if len(rgb) < 3 {
			return
		}

		v.palette[i] = color.RGBA{
			R: rgb[0] << 2,
			G: rgb[1] << 2,
			B: rgb[2] << 2,
			A: 0xFF,
		}
		rgb = rgb[3:]
	}
}

// SetStrict switches between the hardened and the legacy fault mode. In
// strict mode any block read or write that would leave the frame buffers
// aborts the frame with ErrCursorRange. In the default legacy mode the fault
// is reported through the log function, the offending block is dropped and
// decoding continues, matching the original player.
func (v *Video) SetStrict(strict bool) {
	v.strict = strict
}

// SetLogFunc sets the diagnostic sink.
func (v *Video) SetLogFunc(logFunc LogFunc) {
	v.logFunc = logFunc
}

// Framerate returns the framerate in frames per second.
func (v *Video) Framerate() float64 {
	if v.framePeriod > 0 {
		return 1 / v.framePeriod
	}

	return 0
}

// SetFramePeriod sets the duration of one frame, from the create timer segment.
func (v *Video) SetFramePeriod(period time.Duration) {
	v.framePeriod = period.Seconds()
}

// Time returns the current internal time in seconds.
func (v *Video) Time() float64 {
	return v.time
}

// SetTime sets the current internal time in seconds. This is only useful when you
// manipulate the underlying stream and want to enforce correct timestamps.
func (v *Video) SetTime(time float64) {
	if v.framePeriod > 0 {
		v.framesDecoded = int(time / v.framePeriod)
	}
	v.time = time
}

// Rewind resets the internal time and clears both back buffers.
func (v *Video) Rewind() {
	v.time = 0
	v.framesDecoded = 0

	for i := range v.back1 {
		v.back1[i] = 0
	}
	for i := range v.back2 {
		v.back2[i] = 0
	}
}

// DecodeFrame decodes one frame from a decoding map and a video data segment
// and advances the internal time by one frame period.
//
// The decoding map holds two 4-bit block opcodes per byte, one byte per
// horizontal macroblock pair. The data segment starts with the 14-byte frame
// header; when its flags word has bit 0 set the back buffers are swapped
// before decoding.
//
// The returned frame aliases the decoder back buffer and is valid until the
// next call. A skip opcode can legitimately end the frame early; blocks not
// yet visited then keep whatever the buffer already held, typically stale
// pixels from two frames ago. That is the behavior of the original format,
// not an error.
func (v *Video) DecodeFrame(dmap, data []byte) (*Frame, error) {
	if v.width == 0 {
		return nil, ErrNoVideoBuffers
	}

	if len(data) < 14 {
		return nil, ErrDataShort
	}
	if len(dmap) < v.mbWidth*v.mbHeight/2 {
		return nil, ErrMapShort
	}

	flags := le16(data[12:])
	if flags&1 != 0 {
		v.back1, v.back2 = v.back2, v.back1
	}

	if err := v.decodeBlocks(dmap, data[14:]); err != nil {
		return nil, err
	}

	v.frame.Pix = v.back1
	v.frame.imPaletted.Pix = v.back1
	v.frame.Time = v.time

	v.framesDecoded++
	if v.framePeriod > 0 {
		v.time = float64(v.framesDecoded) * v.framePeriod
	}

	return &v.frame, nil
}

// blockContext is the mutable state threaded through every opcode: the frame
// write cursor, the data cursor with its remaining-byte count, and the
// macroblock coordinate the skip opcode steers by.
type blockContext struct {
	src    []byte
	data   int
	remain int

	frame int
	col   int // macroblock pair index within the row
	row   int

	done bool
}

// fetch consumes the next n operand bytes. Multi-byte reads are atomic: the
// cursor does not move when fewer than n bytes remain.
func (c *blockContext) fetch(n int) ([]byte, error) {
	if n > c.remain || c.data+n > len(c.src) {
		return nil, ErrDataShort
	}

	p := c.src[c.data : c.data+n]
	c.data += n
	c.remain -= n

	return p, nil
}

// peek returns the next n bytes without consuming them.
func (c *blockContext) peek(n int) ([]byte, error) {
	if n > c.remain || c.data+n > len(c.src) {
		return nil, ErrDataShort
	}

	return c.src[c.data : c.data+n], nil
}

func (v *Video) decodeBlocks(dmap, data []byte) error {
	ctx := blockContext{src: data, remain: len(data)}

	mapIndex := 0
	for ctx.row = 0; ctx.row < v.mbHeight; ctx.row++ {
		for ctx.col = 0; ctx.col < v.mbWidth/2; ctx.col++ {
			m := dmap[mapIndex]
			mapIndex++

			if err := v.dispatch(&ctx, m&0xF); err != nil {
				return err
			}
			if ctx.done {
				return nil
			}
			if err := v.checkCursor(&ctx, m&0xF); err != nil {
				return err
			}

			if err := v.dispatch(&ctx, m>>4); err != nil {
				return err
			}
			if ctx.done {
				return nil
			}
			if err := v.checkCursor(&ctx, m>>4); err != nil {
				return err
			}
		}

		ctx.frame += 7 * v.width
	}

	return nil
}

func (v *Video) checkCursor(ctx *blockContext, opcode byte) error {
	if ctx.frame >= 0 && ctx.frame < len(v.back1) {
		return nil
	}

	where := "above"
	if ctx.frame < 0 {
		where = "below"
	}

	if v.strict {
		return fmt.Errorf("%w: %s frame buffer at %d,%d [%x]", ErrCursorRange, where, ctx.col, ctx.row, opcode)
	}

	v.log(LogCritical, fmt.Sprintf("frame cursor out of bounds %s after dispatch: %d, %d [%x]", where, ctx.col, ctx.row, opcode))

	return nil
}

func (v *Video) log(level LogLevel, msg string) {
	if v.logFunc != nil {
		v.logFunc(level, msg)
	}
}

// blockInBounds reports whether a full 8x8 block starting at off fits the
// frame buffer.
func (v *Video) blockInBounds(off int) bool {
	return off >= 0 && off+7*v.width+8 <= v.width*v.height
}

// blockDst returns the destination block for a writing opcode. In legacy mode
// an out-of-bounds block is redirected to the scratch buffer after logging, so
// the opcode still consumes its exact operand bytes and the stream stays in
// sync. In strict mode the frame is aborted.
func (v *Video) blockDst(ctx *blockContext, opcode byte) ([]byte, error) {
	if v.blockInBounds(ctx.frame) {
		return v.back1[ctx.frame:], nil
	}

	if v.strict {
		return nil, fmt.Errorf("%w: write at %d,%d [%x]", ErrCursorRange, ctx.col, ctx.row, opcode)
	}

	v.log(LogCritical, fmt.Sprintf("block write out of bounds: %d, %d [%x]", ctx.col, ctx.row, opcode))

	return v.scratch, nil
}

// copyBlock copies an 8x8 block from src at srcOff into the write target at
// the frame cursor. Both rectangles are validated before any pixel moves.
func (v *Video) copyBlock(ctx *blockContext, opcode byte, src []byte, srcOff int) error {
	if !v.blockInBounds(ctx.frame) || !v.blockInBounds(srcOff) {
		if v.strict {
			return fmt.Errorf("%w: copy at %d,%d [%x]", ErrCursorRange, ctx.col, ctx.row, opcode)
		}

		v.log(LogCritical, fmt.Sprintf("block copy out of bounds: %d, %d [%x]", ctx.col, ctx.row, opcode))

		return nil
	}

	d, s := ctx.frame, srcOff
	for i := 0; i < 8; i++ {
		copy(v.back1[d:d+8], src[s:s+8])
		d += v.width
		s += v.width
	}

	return nil
}

// relClose maps one offset byte to the symmetric +-8 range around the block
// origin: the low nibble is x-8, the high nibble is y-8.
func relClose(i int) (x, y int) {
	x = (i & 0xF) - 8
	y = (i >> 4) - 8

	return x, y
}

// relFar maps one offset byte to the lopsided below/right (sign +1) or
// above/left (sign -1) range used by the self-referencing copy opcodes.
func relFar(i, sign int) (x, y int) {
	if i < 56 {
		x = sign * (8 + i%7)
		y = sign * (i / 7)
	} else {
		x = sign * (-14 + (i-56)%29)
		y = sign * (8 + (i-56)/29)
	}

	return x, y
}

// dispatch executes one block opcode. Data is processed in 8x8 pixel blocks
// and there are 16 ways to encode each block. Every opcode leaves the frame
// cursor advanced by 8 pixels, except the double skip.
func (v *Video) dispatch(ctx *blockContext, opcode byte) error {
	width := v.width

	switch opcode {
	case 0x0:
		// Block is copied from the same position in the previous frame.
		if err := v.copyBlock(ctx, opcode, v.back2, ctx.frame); err != nil {
			return err
		}
		ctx.frame += 8

	case 0x1:
		// Block is unchanged from two frames ago; the write target still
		// holds those pixels.
		ctx.frame += 8

	case 0x2:
		// Block is copied from below and/or to the right within the new frame.
		b, err := ctx.fetch(1)
		if err != nil {
			return err
		}

		x, y := relFar(int(b[0]), 1)
		if err := v.copyBlock(ctx, opcode, v.back1, ctx.frame+x+y*width); err != nil {
			return err
		}
		ctx.frame += 8

	case 0x3:
		// Same as 0x2, from above and/or to the left.
		b, err := ctx.fetch(1)
		if err != nil {
			return err
		}

		x, y := relFar(int(b[0]), -1)
		if err := v.copyBlock(ctx, opcode, v.back1, ctx.frame+x+y*width); err != nil {
			return err
		}
		ctx.frame += 8

	case 0x4:
		// Copy from the previous frame, offset by the symmetric +-8 mapping.
		b, err := ctx.fetch(1)
		if err != nil {
			return err
		}

		x, y := relClose(int(b[0]))
		if err := v.copyBlock(ctx, opcode, v.back2, ctx.frame+x+y*width); err != nil {
			return err
		}
		ctx.frame += 8

	case 0x5:
		// Copy from the previous frame, offset by a signed byte pair.
		b, err := ctx.fetch(2)
		if err != nil {
			return err
		}

		x, y := int(int8(b[0])), int(int8(b[1]))
		if err := v.copyBlock(ctx, opcode, v.back2, ctx.frame+x+y*width); err != nil {
			return err
		}
		ctx.frame += 8

	case 0x6:
		// Skip the next two blocks, wrapping to the next macroblock row when
		// the end of a row is crossed. The pair index is compared against the
		// full block count here, exactly as the original format does; do not
		// "fix" the bookkeeping. Reaching the bottom-right macroblock ends
		// the whole frame decode.
		for i := 0; i < 2; i++ {
			ctx.frame += 16
			ctx.col++
			if ctx.col == v.mbWidth {
				ctx.frame += 7 * width
				ctx.col = 0
				ctx.row++
				if ctx.row == v.mbHeight {
					ctx.done = true
					return nil
				}
			}
		}

	case 0x7:
		// Two-color block. P0 <= P1 selects one pattern byte per row at 1x1
		// resolution; P0 > P1 selects two nibble patterns at 2x2 resolution,
		// low nibble on top.
		b, err := ctx.fetch(2)
		if err != nil {
			return err
		}

		var p [4]byte
		p[0], p[1] = b[0], b[1]

		dst, err := v.blockDst(ctx, opcode)
		if err != nil {
			return err
		}

		if p[0] <= p[1] {
			pat, err := ctx.fetch(8)
			if err != nil {
				return err
			}

			for i := 0; i < 8; i++ {
				patternRow2(dst[i*width:], pat[i], &p)
			}
		} else {
			pat, err := ctx.fetch(2)
			if err != nil {
				return err
			}

			for i := 0; i < 2; i++ {
				patternRow2x2(dst[4*i*width:], width, pat[i]&0xF, &p)
				patternRow2x2(dst[(4*i+2)*width:], width, pat[i]>>4, &p)
			}
		}
		ctx.frame += 8

	case 0x8:
		// Two-color block split into 4x4 regions. Three layouts, selected by
		// the color pair ordering: four independent quadrants, left/right
		// halves, or top/bottom halves.
		sel, err := ctx.peek(8)
		if err != nil {
			return err
		}

		dst, err := v.blockDst(ctx, opcode)
		if err != nil {
			return err
		}

		var p [4]byte

		switch {
		case sel[0] <= sel[1]:
			// Four independent quadrants, visited top-left, bottom-left,
			// top-right, bottom-right, each with its own color pair and
			// 16-bit pattern.
			for _, off := range quadrantOffsets(width) {
				b, err := ctx.fetch(4)
				if err != nil {
					return err
				}

				p[0], p[1] = b[0], b[1]
				patternQuadrant2(dst[off:], width, b[2], b[3], &p)
			}

		case sel[6] <= sel[7]:
			// Left and right halves, each color pair shared by two vertically
			// stacked quadrants.
			for i, off := range quadrantOffsets(width) {
				if i&1 == 0 {
					b, err := ctx.fetch(2)
					if err != nil {
						return err
					}
					p[0], p[1] = b[0], b[1]
				}

				b, err := ctx.fetch(2)
				if err != nil {
					return err
				}
				patternQuadrant2(dst[off:], width, b[0], b[1], &p)
			}

		default:
			// Top and bottom halves at 1x1 row resolution.
			for i := 0; i < 8; i++ {
				if i&3 == 0 {
					b, err := ctx.fetch(2)
					if err != nil {
						return err
					}
					p[0], p[1] = b[0], b[1]
				}

				b, err := ctx.fetch(1)
				if err != nil {
					return err
				}
				patternRow2(dst[i*width:], b[0], &p)
			}
		}
		ctx.frame += 8

	case 0x9:
		// Four-color block over the whole 8x8 area. The orderings of the two
		// color pairs select the pattern granularity: 1x1, 2x2, 2x1 or 1x2.
		b, err := ctx.fetch(4)
		if err != nil {
			return err
		}

		var p [4]byte
		copy(p[:], b)

		dst, err := v.blockDst(ctx, opcode)
		if err != nil {
			return err
		}

		switch {
		case p[0] <= p[1] && p[2] <= p[3]:
			pat, err := ctx.fetch(16)
			if err != nil {
				return err
			}

			for i := 0; i < 8; i++ {
				patternRow4(dst[i*width:], pat[2*i], pat[2*i+1], &p)
			}

		case p[0] <= p[1]:
			pat, err := ctx.fetch(4)
			if err != nil {
				return err
			}

			for i := 0; i < 4; i++ {
				patternRow4x2(dst[2*i*width:], width, pat[i], &p)
			}

		case p[2] <= p[3]:
			pat, err := ctx.fetch(8)
			if err != nil {
				return err
			}

			for i := 0; i < 8; i++ {
				patternRow4x2x1(dst[i*width:], pat[i], &p)
			}

		default:
			pat, err := ctx.fetch(8)
			if err != nil {
				return err
			}

			for i := 0; i < 4; i++ {
				patternRow4(dst[2*i*width:], pat[2*i], pat[2*i+1], &p)
				patternRow4(dst[(2*i+1)*width:], pat[2*i], pat[2*i+1], &p)
			}
		}
		ctx.frame += 8

	case 0xA:
		// Four-color block split into quadrants or halves, the four-color
		// counterpart of 0x8.
		sel, err := ctx.peek(14)
		if err != nil {
			return err
		}

		dst, err := v.blockDst(ctx, opcode)
		if err != nil {
			return err
		}

		var p, pat [4]byte

		switch {
		case sel[0] <= sel[1]:
			// Four independent quadrants, each with its own four colors and
			// 32-bit pattern.
			for _, off := range quadrantOffsets(width) {
				b, err := ctx.fetch(8)
				if err != nil {
					return err
				}

				copy(p[:], b[:4])
				copy(pat[:], b[4:])
				patternQuadrant4(dst[off:], width, &pat, &p)
			}

		case sel[12] <= sel[13]:
			// Left and right halves.
			for i, off := range quadrantOffsets(width) {
				if i&1 == 0 {
					b, err := ctx.fetch(4)
					if err != nil {
						return err
					}
					copy(p[:], b)
				}

				b, err := ctx.fetch(4)
				if err != nil {
					return err
				}
				copy(pat[:], b)
				patternQuadrant4(dst[off:], width, &pat, &p)
			}

		default:
			// Top and bottom halves at 1x1 row resolution.
			for i := 0; i < 8; i++ {
				if i&3 == 0 {
					b, err := ctx.fetch(4)
					if err != nil {
						return err
					}
					copy(p[:], b)
				}

				b, err := ctx.fetch(2)
				if err != nil {
					return err
				}
				patternRow4(dst[i*width:], b[0], b[1], &p)
			}
		}
		ctx.frame += 8

	case 0xB:
		// Raw block: 64 bytes, one per pixel.
		b, err := ctx.fetch(64)
		if err != nil {
			return err
		}

		dst, err := v.blockDst(ctx, opcode)
		if err != nil {
			return err
		}

		for i := 0; i < 8; i++ {
			copy(dst[i*width:i*width+8], b[8*i:8*i+8])
		}
		ctx.frame += 8

	case 0xC:
		// Raw block at 2x2 granularity: 16 bytes, each replicated to a 2x2 cell.
		b, err := ctx.fetch(16)
		if err != nil {
			return err
		}

		dst, err := v.blockDst(ctx, opcode)
		if err != nil {
			return err
		}

		for i := 0; i < 4; i++ {
			for j := 0; j < 2; j++ {
				row := dst[(2*i+j)*width:]
				for k := 0; k < 4; k++ {
					row[2*k] = b[4*i+k]
					row[2*k+1] = b[4*i+k]
				}
			}
		}
		ctx.frame += 8

	case 0xD:
		// Raw block at 4x4 granularity: 4 bytes, each replicated to a 4x4 cell.
		b, err := ctx.fetch(4)
		if err != nil {
			return err
		}

		dst, err := v.blockDst(ctx, opcode)
		if err != nil {
			return err
		}

		for i := 0; i < 2; i++ {
			for k := 0; k < 4; k++ {
				row := dst[(4*i+k)*width:]
				for j := 0; j < 4; j++ {
					row[j] = b[2*i]
					row[j+4] = b[2*i+1]
				}
			}
		}
		ctx.frame += 8

	case 0xE:
		// Solid block: one byte replicated across all 64 pixels.
		b, err := ctx.fetch(1)
		if err != nil {
			return err
		}

		dst, err := v.blockDst(ctx, opcode)
		if err != nil {
			return err
		}

		for i := 0; i < 8; i++ {
			row := dst[i*width : i*width+8]
			for j := range row {
				row[j] = b[0]
			}
		}
		ctx.frame += 8

	case 0xF:
		// Dithered block: two bytes checkerboarded by (row+col) parity.
		b, err := ctx.fetch(2)
		if err != nil {
			return err
		}

		dst, err := v.blockDst(ctx, opcode)
		if err != nil {
			return err
		}

		for i := 0; i < 8; i++ {
			row := dst[i*width : i*width+8]
			for j := range row {
				row[j] = b[(i+j)&1]
			}
		}
		ctx.frame += 8
	}

	return nil
}

// quadrantOffsets returns the block-relative start of the four 4x4 quadrants
// in their visiting order: top-left, bottom-left, top-right, bottom-right.
func quadrantOffsets(width int) [4]int {
	return [4]int{0, 4 * width, 4, 4*width + 4}
}

// Pattern fillers. These are pure functions over a destination slice, a row
// stride, packed pattern bits and a palette of 2 or 4 pixel values. The
// low-order bit or bit pair always maps to the leftmost, topmost position of
// the packed unit.

// patternRow2 fills the next 8 pixels with either p[0] or p[1], depending on pat.
func patternRow2(dst []byte, pat byte, p *[4]byte) {
	for i := 0; i < 8; i++ {
		dst[i] = p[(pat>>i)&1]
	}
}

// patternRow2x2 fills the next four 2x2 pixel boxes with either p[0] or p[1],
// depending on the low four bits of pat.
func patternRow2x2(dst []byte, width int, pat byte, p *[4]byte) {
	for i := 0; i < 4; i++ {
		pel := p[(pat>>i)&1]
		dst[2*i] = pel
		dst[2*i+1] = pel
		dst[width+2*i] = pel
		dst[width+2*i+1] = pel
	}
}

// patternQuadrant2 fills a 4x4 pixel box with either p[0] or p[1], depending
// on the 16 bits of pat0 and pat1.
func patternQuadrant2(dst []byte, width int, pat0, pat1 byte, p *[4]byte) {
	pat := uint16(pat1)<<8 | uint16(pat0)
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			dst[i*width+j] = p[pat&1]
			pat >>= 1
		}
	}
}

// patternRow4 fills the next 8 pixels with p[0], p[1], p[2] or p[3], depending
// on the corresponding two-bit value in pat0 and pat1.
func patternRow4(dst []byte, pat0, pat1 byte, p *[4]byte) {
	pat := uint16(pat1)<<8 | uint16(pat0)
	for i := 0; i < 8; i++ {
		dst[i] = p[pat&3]
		pat >>= 2
	}
}

// patternRow4x2 fills the next four 2x2 pixel boxes with p[0], p[1], p[2] or
// p[3], depending on the corresponding two-bit value in pat.
func patternRow4x2(dst []byte, width int, pat byte, p *[4]byte) {
	for i := 0; i < 4; i++ {
		pel := p[(pat>>(2*i))&3]
		dst[2*i] = pel
		dst[2*i+1] = pel
		dst[width+2*i] = pel
		dst[width+2*i+1] = pel
	}
}

// patternRow4x2x1 fills the next four 2x1 pixel pairs with p[0], p[1], p[2] or
// p[3], depending on the corresponding two-bit value in pat.
func patternRow4x2x1(dst []byte, pat byte, p *[4]byte) {
	for i := 0; i < 4; i++ {
		pel := p[(pat>>(2*i))&3]
		dst[2*i] = pel
		dst[2*i+1] = pel
	}
}

// patternQuadrant4 fills a 4x4 pixel box with p[0], p[1], p[2] or p[3],
// depending on the 16 two-bit values spread across pat.
func patternQuadrant4(dst []byte, width int, pat *[4]byte, p *[4]byte) {
	bits := uint32(pat[3])<<24 | uint32(pat[2])<<16 | uint32(pat[1])<<8 | uint32(pat[0])
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			dst[i*width+j] = p[bits&3]
			bits >>= 2
		}
	}
}
