package mve

import (
	"bytes"
	"io"
	"unsafe"
)

// AudioFormat is the sample layout produced by the audio decoder.
type AudioFormat int

const (
	// AudioF32N - 32-bit floating point samples, normalized
	AudioF32N AudioFormat = iota
	// AudioF32NLR - 32-bit floating point samples, normalized, separate channels
	AudioF32NLR
	// AudioS16 - signed 16-bit samples
	AudioS16
)

// Samples represents decoded audio samples, stored as normalized (-1, 1)
// float32, interleaved and in separate channels, plus the raw signed 16-bit
// values. MVE audio segments carry a variable number of samples, so the
// slices are sized per segment.
type Samples struct {
	Time        float64
	S16         []int16
	Left        []float32
	Right       []float32
	Interleaved []float32

	format AudioFormat
}

// Bytes returns samples as slice of bytes in the configured format.
func (s *Samples) Bytes() []byte {
	if len(s.S16) == 0 {
		return nil
	}

	switch s.format {
	case AudioF32N:
		return unsafe.Slice((*byte)(unsafe.Pointer(&s.Interleaved[0])), len(s.Interleaved)*4)
	case AudioS16:
		return unsafe.Slice((*byte)(unsafe.Pointer(&s.S16[0])), len(s.S16)*2)
	}

	return nil
}

type SamplesReader struct {
	reader *bytes.Reader
}

// Read implements the io.Reader interface.
func (s *SamplesReader) Read(b []byte) (int, error) {
	if s.reader.Len() == 0 {
		_, err := s.reader.Seek(0, io.SeekStart)
		if err != nil {
			return 0, err
		}
	}

	return s.reader.Read(b)
}

// Seek implements the io.Seeker interface.
func (s *SamplesReader) Seek(offset int64, whence int) (int64, error) {
	return 0, nil
}

// Audio decodes MVE audio segments (unsigned 8-bit PCM, signed 16-bit PCM or
// Interplay DPCM) into raw samples.
type Audio struct {
	samplerate int
	channels   int
	bits       int
	compressed bool

	time           float64
	samplesDecoded int

	hasHeader bool

	samples Samples
	format  AudioFormat
}

// NewAudio creates an audio decoder. The stream parameters are supplied later
// through Init, from the init audio buffers segment.
func NewAudio() *Audio {
	audio := &Audio{}
	audio.channels = 1
	audio.bits = 8

	return audio
}

// Reader returns samples reader.
func (a *Audio) Reader() io.Reader {
	if len(a.samples.S16) == 0 {
		return &SamplesReader{bytes.NewReader(nil)}
	}

	switch a.format {
	case AudioF32N:
		b := unsafe.Slice((*byte)(unsafe.Pointer(&a.samples.Interleaved[0])), len(a.samples.Interleaved)*4)
		return &SamplesReader{bytes.NewReader(b)}
	case AudioS16:
		b := unsafe.Slice((*byte)(unsafe.Pointer(&a.samples.S16[0])), len(a.samples.S16)*2)
		return &SamplesReader{bytes.NewReader(b)}
	}

	return nil
}

// Init parses the init audio buffers segment: flags bit 0 selects stereo,
// bit 1 16-bit samples and, from version 1 on, bit 2 Interplay DPCM
// compression.
func (a *Audio) Init(version int, data []byte) error {
	if len(data) < 6 {
		return ErrDataShort
	}

	flags := le16(data[2:])

	a.channels = 1
	if flags&1 != 0 {
		a.channels = 2
	}

	a.bits = 8
	if flags&2 != 0 {
		a.bits = 16
	}

	a.compressed = version > 0 && flags&4 != 0
	a.samplerate = le16(data[4:])
	a.hasHeader = true

	return nil
}

// HasHeader checks whether an init audio buffers segment was seen, and we can
// accurately report on samplerate and channels.
func (a *Audio) HasHeader() bool {
	return a.hasHeader
}

// Samplerate returns the sample rate in samples per second.
func (a *Audio) Samplerate() int {
	return a.samplerate
}

// Channels returns the number of channels.
func (a *Audio) Channels() int {
	return a.channels
}

// Time returns the current internal time in seconds.
func (a *Audio) Time() float64 {
	return a.time
}

// SetTime sets the current internal time in seconds.
func (a *Audio) SetTime(time float64) {
	if a.samplerate > 0 {
		a.samplesDecoded = int(time * float64(a.samplerate))
	}
	a.time = time
}

// Rewind resets the internal time.
func (a *Audio) Rewind() {
	a.time = 0
	a.samplesDecoded = 0
}

// DecodeFrame decodes one audio data segment and advances the internal time
// by the number of samples it carries. The segment starts with a 6-byte
// header: a sequence index, a stream mask and the decompressed PCM byte
// count. Segments not addressed to the first stream are ignored.
// The returned Samples is valid until the next decoded segment.
func (a *Audio) DecodeFrame(data []byte) *Samples {
	if !a.hasHeader || len(data) < 6 {
		return nil
	}

	if le16(data[2:])&1 == 0 {
		return nil
	}

	body := data[6:]

	switch {
	case a.compressed:
		a.decodeDPCM(body)
	case a.bits == 16:
		a.samples.S16 = a.samples.S16[:0]
		for i := 0; i+1 < len(body); i += 2 {
			a.samples.S16 = append(a.samples.S16, int16(uint16(le16(body[i:]))))
		}
	default:
		a.samples.S16 = a.samples.S16[:0]
		for _, b := range body {
			a.samples.S16 = append(a.samples.S16, (int16(b)-128)<<8)
		}
	}

	return a.finishSamples()
}

// DecodeSilence synthesizes the zero samples an audio silence segment stands
// for, using the same 6-byte header as the data segments.
func (a *Audio) DecodeSilence(data []byte) *Samples {
	if !a.hasHeader || len(data) < 6 {
		return nil
	}

	if le16(data[2:])&1 == 0 {
		return nil
	}

	count := le16(data[4:])
	if a.bits == 16 || a.compressed {
		count /= 2
	}

	a.samples.S16 = a.samples.S16[:0]
	for i := 0; i < count; i++ {
		a.samples.S16 = append(a.samples.S16, 0)
	}

	return a.finishSamples()
}

// decodeDPCM expands Interplay DPCM: one initial little-endian predictor per
// channel, then one delta table index byte per sample, channels interleaved.
// The predictors are emitted as the first sample of each channel and the
// accumulator is clamped to the 16-bit range.
func (a *Audio) decodeDPCM(body []byte) {
	a.samples.S16 = a.samples.S16[:0]

	var predictor [2]int
	for ch := 0; ch < a.channels; ch++ {
		if len(body) < 2 {
			return
		}

		predictor[ch] = int(int16(uint16(le16(body))))
		body = body[2:]
		a.samples.S16 = append(a.samples.S16, int16(predictor[ch]))
	}

	ch := 0
	for _, b := range body {
		predictor[ch] += int(dpcmDeltaTable[b])
		if predictor[ch] > 32767 {
			predictor[ch] = 32767
		} else if predictor[ch] < -32768 {
			predictor[ch] = -32768
		}

		a.samples.S16 = append(a.samples.S16, int16(predictor[ch]))
		ch = (ch + 1) % a.channels
	}
}

// finishSamples derives the float views from the decoded S16 values and
// advances the internal clock.
func (a *Audio) finishSamples() *Samples {
	s := &a.samples

	s.Interleaved = s.Interleaved[:0]
	s.Left = s.Left[:0]
	s.Right = s.Right[:0]

	for i, v := range s.S16 {
		f := float32(v) / 32768

		s.Interleaved = append(s.Interleaved, f)
		if a.channels == 2 && i&1 == 1 {
			s.Right = append(s.Right, f)
		} else {
			s.Left = append(s.Left, f)
		}
	}

	s.format = a.format
	s.Time = a.time

	a.samplesDecoded += len(s.S16) / a.channels
	if a.samplerate > 0 {
		a.time = float64(a.samplesDecoded) / float64(a.samplerate)
	}

	return s
}

// dpcmDeltaTable is the Interplay DPCM step table, indexed by the delta byte.
var dpcmDeltaTable = [256]int16{
	0, 1, 2, 3, 4, 5, 6, 7,
	8, 9, 10, 11, 12, 13, 14, 15,
	16, 17, 18, 19, 20, 21, 22, 23,
	24, 25, 26, 27, 28, 29, 30, 31,
	32, 33, 34, 35, 36, 37, 38, 39,
	40, 41, 42, 43, 47, 51, 56, 61,
	66, 72, 79, 86, 94, 102, 112, 122,
	133, 145, 158, 173, 189, 206, 225, 245,
	267, 292, 318, 348, 379, 414, 452, 493,
	538, 587, 640, 699, 763, 832, 908, 991,
	1081, 1180, 1288, 1405, 1534, 1673, 1826, 1993,
	2175, 2373, 2590, 2826, 3084, 3365, 3672, 4008,
	4373, 4772, 5208, 5683, 6202, 6767, 7385, 8059,
	8794, 9597, 10472, 11428, 12471, 13609, 14851, 16206,
	17685, 19298, 21060, 22981, 25078, 27367, 29864, 32589,
	-29973, -26728, -23186, -19322, -15105, -10503, -5481, -1,
	1, 5481, 10503, 15105, 19322, 23186, 26728, 29973,
	-32589, -29864, -27367, -25078, -22981, -21060, -19298, -17685,
	-16206, -14851, -13609, -12471, -11428, -10472, -9597, -8794,
	-8059, -7385, -6767, -6202, -5683, -5208, -4772, -4373,
	-4008, -3672, -3365, -3084, -2826, -2590, -2373, -2175,
	-1993, -1826, -1673, -1534, -1405, -1288, -1180, -1081,
	-991, -908, -832, -763, -699, -640, -587, -538,
	-493, -452, -414, -379, -348, -318, -292, -267,
	-245, -225, -206, -189, -173, -158, -145, -133,
	-122, -112, -102, -94, -86, -79, -72, -66,
	-61, -56, -51, -47, -43, -42, -41, -40,
	-39, -38, -37, -36, -35, -34, -33, -32,
	-31, -30, -29, -28, -27, -26, -25, -24,
	-23, -22, -21, -20, -19, -18, -17, -16,
	-15, -14, -13, -12, -11, -10, -9, -8,
	-7, -6, -5, -4, -3, -2, -1, 0,
}
