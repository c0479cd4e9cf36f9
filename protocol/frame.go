// Package protocol implements the length-delimited framing guest
// code layers on top of a loopback, and the renderer's wire schema,
// the one higher-level protocol the core ships a concrete codec for.
// Framing itself is out of scope for the core's socket layer per the
// system's non-goals; this package is the guest-level convention, not
// a core requirement.
package protocol

import (
	"encoding/binary"
	"fmt"
	"io"

	cbor "github.com/fxamacker/cbor/v2"
)

// MaxFrameBytes bounds a single frame's payload to guard against a
// malformed length prefix exhausting memory.
const MaxFrameBytes = 16 * 1024 * 1024

// FrameReader decodes length-delimited frames from a byte stream: a
// big-endian uint32 length prefix followed by exactly that many bytes
// of payload.
type FrameReader struct {
	r io.Reader
}

// NewFrameReader wraps r.
func NewFrameReader(r io.Reader) *FrameReader {
	return &FrameReader{r: r}
}

// ReadFrame reads one length-prefixed payload. It returns io.EOF only
// when the stream ends cleanly between frames.
func (fr *FrameReader) ReadFrame() ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(fr.r, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if n > MaxFrameBytes {
		return nil, fmt.Errorf("protocol: frame size %d exceeds limit %d", n, MaxFrameBytes)
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(fr.r, payload); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return payload, nil
}

// ReadValue reads one frame and CBOR-decodes it into v.
func (fr *FrameReader) ReadValue(v interface{}) error {
	payload, err := fr.ReadFrame()
	if err != nil {
		return err
	}
	return cbor.Unmarshal(payload, v)
}

// FrameWriter encodes length-delimited frames onto a byte stream.
type FrameWriter struct {
	w io.Writer
}

// NewFrameWriter wraps w.
func NewFrameWriter(w io.Writer) *FrameWriter {
	return &FrameWriter{w: w}
}

// WriteFrame writes one length-prefixed payload.
func (fw *FrameWriter) WriteFrame(payload []byte) error {
	if len(payload) > MaxFrameBytes {
		return fmt.Errorf("protocol: frame size %d exceeds limit %d", len(payload), MaxFrameBytes)
	}
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	if _, err := fw.w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := fw.w.Write(payload)
	return err
}

// WriteValue CBOR-encodes v and writes it as one frame.
func (fw *FrameWriter) WriteValue(v interface{}) error {
	payload, err := cbor.Marshal(v)
	if err != nil {
		return err
	}
	return fw.WriteFrame(payload)
}
