// Package decoder defines the interfaces the engine consumes to turn
// encoded audio (files, network streams) into PCM samples (spec §6).
// Format decoding itself is explicitly out of scope for the engine core
// (spec §1 non-goals name it as an external collaborator concern); this
// package only defines the seam a real decoder plugs into, and
// generator.StreamingGenerator is the component that consumes it.
//
// Grounded on the teacher's internal/audiocore AudioSource-style
// "produce frames on demand" interface shape; a concrete adapter lives
// outside the engine package in examples/wavdemo (go-audio/wav), the
// same separation the teacher keeps between its core interfaces and its
// cmd/ demo programs.
package decoder

import "io"

// Stream is an open, seekable decoded-audio source: planar float32
// samples at a fixed sample rate and channel count.
type Stream interface {
	// Read fills out (one slice per channel, equal length) with up to
	// len(out[0]) frames of decoded audio, returning how many frames
	// were actually produced. Returns io.EOF once the stream is
	// exhausted; a return of (n, io.EOF) with n>0 is valid and means
	// the final n frames were written before end of stream.
	Read(out [][]float32) (int, error)

	// Seek moves the read position to the given frame offset from the
	// start of the stream.
	Seek(frameOffset int64) error

	// SampleRate reports the stream's native sample rate in Hz.
	SampleRate() int

	// Channels reports the stream's channel count.
	Channels() int

	// Length reports the total number of frames in the stream, or -1
	// if unknown (e.g. a live network stream).
	Length() int64

	io.Closer
}

// Decoder opens a named resource (a file path, a URL — implementation
// defined) as a decoded Stream.
type Decoder interface {
	Open(name string) (Stream, error)
}
