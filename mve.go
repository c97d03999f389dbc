// Package mve implements an Interplay MVE movie decoder: the chunk/segment
// demuxer, the 8-bit palettized block video decoder and the PCM/DPCM audio
// decoder.
//
// This library provides several interfaces to demux and decode MVE video and
// audio data. A high-level MVE API combines the demuxer, video and audio
// decoders in an easy-to-use wrapper.
//
// With the high-level interface you have two options to decode video and audio:
//
// 1. Decode() and just hand over the delta time since the last call.
// It will decode everything needed and call your callbacks (specified through
// Set{Video|Audio}Callback()) any number of times.
//
// 2. Use DecodeVideo() and DecodeAudio() to decode exactly one frame of video
// or audio data at a time. How you handle the synchronization of both streams
// is up to you.
//
// If you only want to decode video *or* audio through these functions, you
// should disable the other stream (Set{Video|Audio}Enabled(false)).
//
// Video data is decoded into a struct with one palette index byte per pixel
// plus the 256-entry palette; you can get image.Paletted via the Paletted()
// function or convert to image.RGBA on the CPU via the RGBA() function.
//
// Audio data is decoded into a struct with separate []float32 slices for the
// left and right channel, a single interleaved []float32 slice and the raw
// []int16 samples. You can convert samples to a byte slice via the Bytes()
// function.
//
// There should be no need to use the lower level Demux, Video and Audio, if
// all you want to do is read/decode an MVE file. However, if you only want to
// analyze an MVE file or extract raw segments from it, you can use the Demux.
//
// Seeking is not supported: MVE delta-codes every frame against the previous
// two with no random-access points, so Rewind() is the only repositioning.
package mve

import (
	"bytes"
	"errors"
	"io"
	"time"
)

// VideoFunc callback function.
type VideoFunc func(mve *MVE, frame *Frame)

// AudioFunc callback function.
type AudioFunc func(mve *MVE, samples *Samples)

// ErrInvalidMVE is the error returned when the reader is not a valid Interplay MVE file.
var ErrInvalidMVE = errors.New("invalid MVE file")

// MVE is high-level interface implementation.
type MVE struct {
	demux *Demux
	time  float64

	loop       bool
	hasEnded   bool
	hasHeaders bool

	framePeriod float64

	videoEnabled bool
	videoDecoder *Video

	audioEnabled  bool
	audioLeadTime float64
	audioDecoder  *Audio

	dmap []byte

	decodedFrame   *Frame
	pendingFrame   *Frame
	pendingSamples *Samples

	done chan bool

	videoCallback VideoFunc
	audioCallback AudioFunc
}

// New creates a new MVE instance.
func New(r io.Reader) (*MVE, error) {
	m := &MVE{}

	buf, err := NewBuffer(r)
	if err != nil {
		return nil, err
	}

	buf.SetLoadCallback(buf.LoadReaderCallback)

	if !buf.has(mveHeaderSize) {
		return nil, ErrInvalidMVE
	}
	if !bytes.Equal(mveSignature, buf.Bytes()[0:len(mveSignature)]) {
		return nil, ErrInvalidMVE
	}

	m.demux, err = NewDemux(buf)
	if err != nil {
		return nil, err
	}

	m.done = make(chan bool, 1)

	m.videoEnabled = true
	m.audioEnabled = true
	m.videoDecoder = NewVideo()
	m.audioDecoder = NewAudio()

	return m, nil
}

// HasHeaders checks whether the init chunks have been processed, and we can
// report the number of video/audio streams, video dimensions, framerate and
// audio samplerate. This decodes segments up to the first frame if needed.
func (m *MVE) HasHeaders() bool {
	if m.hasHeaders {
		return true
	}

	if !m.demux.HasHeaders() {
		return false
	}

	for m.videoDecoder.width == 0 || m.framePeriod == 0 {
		segment := m.demux.Decode()
		if segment == nil {
			return false
		}

		m.processSegment(segment)
	}

	m.hasHeaders = true

	return true
}

// Done returns done channel.
func (m *MVE) Done() chan bool {
	return m.done
}

// Video returns video decoder.
func (m *MVE) Video() *Video {
	return m.videoDecoder
}

// Audio returns audio decoder.
func (m *MVE) Audio() *Audio {
	return m.audioDecoder
}

// SetVideoCallback sets a video callback.
func (m *MVE) SetVideoCallback(callback VideoFunc) {
	m.videoCallback = callback
}

// SetAudioCallback sets a audio callback.
func (m *MVE) SetAudioCallback(callback AudioFunc) {
	m.audioCallback = callback
}

// VideoEnabled checks whether video decoding is enabled.
func (m *MVE) VideoEnabled() bool {
	return m.videoEnabled
}

// SetVideoEnabled sets whether video decoding is enabled.
func (m *MVE) SetVideoEnabled(enabled bool) {
	m.videoEnabled = enabled
}

// AudioEnabled checks whether audio decoding is enabled.
func (m *MVE) AudioEnabled() bool {
	return m.audioEnabled
}

// SetAudioEnabled sets whether audio decoding is enabled.
func (m *MVE) SetAudioEnabled(enabled bool) {
	m.audioEnabled = enabled
}

// SetStrict switches the video decoder between the hardened and the legacy
// fault mode, see Video.SetStrict.
func (m *MVE) SetStrict(strict bool) {
	m.videoDecoder.SetStrict(strict)
}

// NumVideoStreams returns the number of video streams (0--1) found in the init chunks.
func (m *MVE) NumVideoStreams() int {
	return m.demux.NumVideoStreams()
}

// NumAudioStreams returns the number of audio streams (0--1) found in the init chunks.
func (m *MVE) NumAudioStreams() int {
	return m.demux.NumAudioStreams()
}

// Width returns the display width of the video stream.
func (m *MVE) Width() int {
	if m.HasHeaders() {
		return m.videoDecoder.Width()
	}

	return 0
}

// Height returns the display height of the video stream.
func (m *MVE) Height() int {
	if m.HasHeaders() {
		return m.videoDecoder.Height()
	}

	return 0
}

// Framerate returns the framerate of the video stream in frames per second.
func (m *MVE) Framerate() float64 {
	if m.HasHeaders() {
		return m.videoDecoder.Framerate()
	}

	return 0
}

// Palette returns the current video palette.
func (m *MVE) Palette() []byte {
	p := make([]byte, 0, 256*3)
	for _, c := range m.videoDecoder.Palette() {
		r, g, b, _ := c.RGBA()
		p = append(p, byte(r>>8), byte(g>>8), byte(b>>8))
	}

	return p
}

// Samplerate returns the samplerate of the audio stream in samples per second.
func (m *MVE) Samplerate() int {
	if m.HasHeaders() {
		return m.audioDecoder.Samplerate()
	}

	return 0
}

// Channels returns the number of channels.
func (m *MVE) Channels() int {
	if m.HasHeaders() {
		return m.audioDecoder.Channels()
	}

	return 0
}

// AudioFormat returns audio format.
func (m *MVE) AudioFormat() AudioFormat {
	return m.audioDecoder.format
}

// SetAudioFormat sets audio format.
func (m *MVE) SetAudioFormat(format AudioFormat) {
	m.audioDecoder.format = format
	m.audioDecoder.samples.format = format
}

// AudioLeadTime returns the audio lead time - the time in which audio samples
// are decoded in advance (or behind) the video decode time.
func (m *MVE) AudioLeadTime() time.Duration {
	return time.Duration(m.audioLeadTime * float64(time.Second))
}

// SetAudioLeadTime sets the audio lead time. Typically, this should be set to
// the duration of the buffer of the audio API that you use for output.
func (m *MVE) SetAudioLeadTime(leadTime time.Duration) {
	m.audioLeadTime = leadTime.Seconds()
}

// Time returns the current internal time.
func (m *MVE) Time() time.Duration {
	return time.Duration(m.time * float64(time.Second))
}

// Duration returns the video duration of the underlying source.
func (m *MVE) Duration() time.Duration {
	return time.Duration(m.demux.Duration(m.Framerate()) * float64(time.Second))
}

// Rewind rewinds all buffers back to the beginning. The init segments are
// processed again as decoding resumes.
func (m *MVE) Rewind() {
	m.videoDecoder.Rewind()
	m.audioDecoder.Rewind()
	m.demux.Rewind()

	m.decodedFrame = nil
	m.pendingFrame = nil
	m.pendingSamples = nil
	m.hasEnded = false
	m.time = 0
}

// Loop returns looping.
func (m *MVE) Loop() bool {
	return m.loop
}

// SetLoop sets looping.
func (m *MVE) SetLoop(loop bool) {
	m.loop = loop
}

// HasEnded checks whether the movie has ended.
// If looping is enabled, this will always return false.
func (m *MVE) HasEnded() bool {
	return m.hasEnded
}

// Decode advances the internal timer by the tick and decodes video/audio up
// to this time. This will call the VideoFunc and AudioFunc callbacks any
// number of times. A frame-skip is not implemented, i.e. everything up to
// current time will be decoded.
func (m *MVE) Decode(tick time.Duration) {
	if !m.HasHeaders() {
		return
	}

	decodeVideo := m.videoCallback != nil && m.videoEnabled
	decodeAudio := m.audioCallback != nil && m.audioEnabled && m.audioDecoder.hasHeader

	if !decodeVideo && !decodeAudio {
		// Nothing to do here
		return
	}

	videoTarget := m.time + tick.Seconds()
	audioTarget := videoTarget + m.audioLeadTime

	for !m.hasEnded {
		needVideo := decodeVideo && m.videoDecoder.Time() < videoTarget
		needAudio := decodeAudio && m.audioDecoder.Time() < audioTarget

		if !needVideo && !needAudio {
			break
		}

		segment := m.demux.Decode()
		if segment == nil {
			if m.demux.HasEnded() {
				m.handleEnd()
			}

			break
		}

		m.processSegment(segment)

		if m.pendingFrame != nil {
			if decodeVideo {
				m.videoCallback(m, m.pendingFrame)
			}
			m.pendingFrame = nil
		}

		if m.pendingSamples != nil {
			if decodeAudio {
				m.audioCallback(m, m.pendingSamples)
			}
			m.pendingSamples = nil
		}
	}

	if !m.hasEnded {
		m.time = videoTarget
	}
}

// DecodeVideo decodes and returns one video frame. Returns nil if no frame
// could be decoded (either because the source ended or data is corrupt). If
// you only want to decode video, you should disable audio via
// SetAudioEnabled(). The returned Frame is valid until the next call to
// DecodeVideo().
func (m *MVE) DecodeVideo() *Frame {
	if !m.videoEnabled {
		return nil
	}

	for m.pendingFrame == nil {
		segment := m.demux.Decode()
		if segment == nil {
			if m.demux.HasEnded() {
				m.handleEnd()
			}

			return nil
		}

		m.processSegment(segment)

		if m.hasEnded {
			return nil
		}
	}

	frame := m.pendingFrame
	m.pendingFrame = nil
	m.time = frame.Time

	return frame
}

// DecodeAudio decodes and returns one segment worth of audio samples.
// Returns nil if no samples could be decoded (either because the source ended
// or data is corrupt). If you only want to decode audio, you should disable
// video via SetVideoEnabled(). The returned Samples is valid until the next
// call to DecodeAudio().
func (m *MVE) DecodeAudio() *Samples {
	if !m.audioEnabled {
		return nil
	}

	for m.pendingSamples == nil {
		segment := m.demux.Decode()
		if segment == nil {
			if m.demux.HasEnded() {
				m.handleEnd()
			}

			return nil
		}

		m.processSegment(segment)

		if m.hasEnded {
			return nil
		}
	}

	samples := m.pendingSamples
	m.pendingSamples = nil
	m.time = samples.Time

	return samples
}

func (m *MVE) processSegment(segment *Segment) {
	data := segment.Data

	switch segment.Type {
	case SegmentCreateTimer:
		if len(data) >= 6 {
			rate := le32(data)
			subdivision := le16(data[4:])
			period := time.Duration(rate*subdivision) * time.Microsecond

			m.framePeriod = period.Seconds()
			m.videoDecoder.SetFramePeriod(period)
		}

	case SegmentInitVideoBuffers:
		// Dimensions are carried in 8-pixel units.
		if len(data) >= 4 {
			_ = m.videoDecoder.Configure(le16(data)<<3, le16(data[2:])<<3)
		}

	case SegmentInitAudioBuffers:
		_ = m.audioDecoder.Init(segment.Version, data)

	case SegmentSetPalette:
		if len(data) >= 4 {
			count := le16(data[2:])
			if 4+3*count <= len(data) {
				m.videoDecoder.SetPalette(le16(data), data[4:4+3*count])
			}
		}

	case SegmentSetPalettePacked:
		m.videoDecoder.SetPalettePacked(data)

	case SegmentSetDecodingMap:
		m.dmap = append(m.dmap[:0], data...)

	case SegmentVideoData:
		if m.videoEnabled {
			frame, err := m.videoDecoder.DecodeFrame(m.dmap, data)
			if err == nil {
				m.decodedFrame = frame
			}
		}

	case SegmentSendBufferToDisplay:
		if m.decodedFrame != nil {
			m.pendingFrame = m.decodedFrame
			m.decodedFrame = nil
		}

	case SegmentAudioData:
		if m.audioEnabled {
			m.pendingSamples = m.audioDecoder.DecodeFrame(data)
		}

	case SegmentAudioSilence:
		if m.audioEnabled {
			m.pendingSamples = m.audioDecoder.DecodeSilence(data)
		}

	case SegmentEndOfStream:
		m.handleEnd()
	}
}

func (m *MVE) handleEnd() {
	if m.loop {
		m.Rewind()
	} else if !m.hasEnded {
		m.hasEnded = true
		m.done <- true
	}
}
