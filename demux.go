package mve

import (
	"bytes"
	"errors"
)

// Segment is a demuxed MVE stream segment.
// The Type maps directly to the segment opcodes of the MVE container.
// Data aliases the demuxer buffer and is valid until the next call to Decode().
type Segment struct {
	Type    int
	Version int
	Data    []byte
}

// Chunk types. Chunks group the segments of one timer tick; the init chunks
// come first and carry the stream parameters.
const (
	ChunkInitAudio = 0x0000
	ChunkAudioOnly = 0x0001
	ChunkInitVideo = 0x0002
	ChunkVideo     = 0x0003
	ChunkShutdown  = 0x0004
	ChunkEnd       = 0x0005
)

// Segment types.
const (
	SegmentEndOfStream         = 0x00
	SegmentEndOfChunk          = 0x01
	SegmentCreateTimer         = 0x02
	SegmentInitAudioBuffers    = 0x03
	SegmentStartStopAudio      = 0x04
	SegmentInitVideoBuffers    = 0x05
	SegmentSendBufferToDisplay = 0x07
	SegmentAudioData           = 0x08
	SegmentAudioSilence        = 0x09
	SegmentInitVideoMode       = 0x0A
	SegmentCreateGradient      = 0x0B
	SegmentSetPalette          = 0x0C
	SegmentSetPalettePacked    = 0x0D
	SegmentSetDecodingMap      = 0x0F
	SegmentVideoData           = 0x11
)

// ErrInvalidHeader is the error returned when the MVE file header is not found.
var ErrInvalidHeader = errors.New("invalid MVE header")

// The 26-byte file header: a 20-byte signature followed by three
// little-endian magic words.
var mveSignature = []byte("Interplay MVE File\x1a\x00")

const mveHeaderSize = 26

// Demux an MVE stream into separate segments.
type Demux struct {
	buf *Buffer

	hasHeaders bool
	headerRead bool

	numAudioStreams int
	numVideoStreams int

	chunkType   int
	chunkRemain int

	nextLength  int
	nextType    int
	nextVersion int

	currentSegment Segment

	ended bool

	duration     float64
	lastFileSize int
}

// NewDemux creates a demuxer with buffer as a source.
func NewDemux(buf *Buffer) (*Demux, error) {
	dmux := &Demux{}

	dmux.buf = buf
	dmux.chunkType = -1
	dmux.nextLength = -1

	if !dmux.HasHeaders() {
		return nil, ErrInvalidHeader
	}

	return dmux, nil
}

// Buffer returns demuxer buffer.
func (d *Demux) Buffer() *Buffer {
	return d.buf
}

// HasHeaders checks whether the file header has been found.
// This will attempt to read the header if none is present yet.
func (d *Demux) HasHeaders() bool {
	if d.hasHeaders {
		return true
	}

	if !d.buf.has(mveHeaderSize) {
		return false
	}

	p := d.buf.bytes[d.buf.index:]
	if !bytes.Equal(p[:len(mveSignature)], mveSignature) {
		return false
	}

	p = p[len(mveSignature):]
	if le16(p) != 0x001A || le16(p[2:]) != 0x0100 || le16(p[4:]) != 0x1133 {
		return false
	}

	d.hasHeaders = true
	d.scanStreams()

	return true
}

// NumVideoStreams returns the number of video streams (0--1) found in the init chunks.
func (d *Demux) NumVideoStreams() int {
	if d.HasHeaders() {
		return d.numVideoStreams
	}

	return 0
}

// NumAudioStreams returns the number of audio streams (0--1) found in the init chunks.
func (d *Demux) NumAudioStreams() int {
	if d.HasHeaders() {
		return d.numAudioStreams
	}

	return 0
}

// Rewind rewinds the internal buffer.
func (d *Demux) Rewind() {
	d.buf.Rewind()
	d.headerRead = false
	d.chunkType = -1
	d.chunkRemain = 0
	d.nextLength = -1
	d.ended = false
}

// HasEnded checks whether the stream has ended. This will be cleared on rewind.
func (d *Demux) HasEnded() bool {
	return d.ended || d.buf.HasEnded()
}

// Duration returns the video duration in seconds for the given framerate.
// MVE carries no timestamps; every video chunk holds exactly one frame, so the
// duration is the video chunk count over the framerate. This scans the whole
// source and can only be used when the underlying reader is seekable.
func (d *Demux) Duration(framerate float64) float64 {
	if framerate <= 0 {
		return 0
	}

	fileSize := d.buf.Size()
	if d.lastFileSize == fileSize && fileSize > 0 && d.duration > 0 {
		return d.duration
	}

	if !d.buf.Seekable() {
		return 0
	}

	prevPos := d.buf.tell()

	d.buf.seek(0)
	d.buf.skip(mveHeaderSize)

	frames := 0
	for d.buf.has(4) {
		length := d.buf.readLE16()
		typ := d.buf.readLE16()

		if typ == ChunkVideo {
			frames++
		}
		if typ == ChunkEnd || !d.buf.has(length) {
			break
		}

		d.buf.skip(length)
	}

	d.buf.seek(prevPos)

	d.duration = float64(frames) / framerate
	d.lastFileSize = fileSize

	return d.duration
}

// Decode decodes and returns the next segment. End-of-chunk segments are
// consumed internally; nil is returned at the end of the stream or when the
// buffer ran out of data.
func (d *Demux) Decode() *Segment {
	if !d.HasHeaders() {
		return nil
	}

	if d.ended {
		return nil
	}

	if !d.headerRead {
		if !d.buf.has(mveHeaderSize) {
			return nil
		}

		d.buf.skip(mveHeaderSize)
		d.headerRead = true
	}

	for {
		// pending segment waiting for data?
		if d.nextLength < 0 {
			if d.chunkRemain <= 0 {
				if !d.buf.has(4) {
					return nil
				}

				d.chunkRemain = d.buf.readLE16()
				d.chunkType = d.buf.readLE16()
			}

			if !d.buf.has(4) {
				return nil
			}

			d.nextLength = d.buf.readLE16()
			d.nextType = int(d.buf.readByte())
			d.nextVersion = int(d.buf.readByte())
			d.chunkRemain -= 4 + d.nextLength
		}

		if !d.buf.has(d.nextLength) {
			return nil
		}

		data := d.buf.readBytes(d.nextLength)
		typ, version := d.nextType, d.nextVersion
		d.nextLength = -1

		if typ == SegmentEndOfChunk {
			continue
		}
		if typ == SegmentEndOfStream {
			d.ended = true
		}

		d.currentSegment = Segment{Type: typ, Version: version, Data: data}

		return &d.currentSegment
	}
}

// scanStreams peeks through the init chunks at the head of the stream to find
// which streams are present, without consuming any data.
func (d *Demux) scanStreams() {
	prevDiscard := d.buf.discardRead
	d.buf.discardRead = false

	idx := d.buf.index + mveHeaderSize
	for d.buf.has(idx + 4 - d.buf.index) {
		length := le16(d.buf.bytes[idx:])
		typ := le16(d.buf.bytes[idx+2:])
		if typ != ChunkInitAudio && typ != ChunkInitVideo {
			break
		}

		if !d.buf.has(idx + 4 + length - d.buf.index) {
			break
		}

		off := idx + 4
		for off+4 <= idx+4+length {
			segLength := le16(d.buf.bytes[off:])
			segType := int(d.buf.bytes[off+2])

			switch segType {
			case SegmentInitAudioBuffers:
				d.numAudioStreams = 1
			case SegmentInitVideoBuffers:
				d.numVideoStreams = 1
			}

			off += 4 + segLength
		}

		idx += 4 + length
	}

	d.buf.discardRead = prevDiscard
}
