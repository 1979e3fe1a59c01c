// Package codec implements the framed, optionally zlib-compressed packet
// transport used by every phase of the Minecraft Java Edition protocol this
// proxy speaks. It is intentionally ignorant of packet semantics: it knows
// how to cut one frame off the wire and hand back an id + payload, and how
// to do the reverse. Everything above this layer treats packets as opaque.
package codec

import (
	"bufio"
	"bytes"
	"compress/zlib"
	"fmt"
	"io"
	"sync"
)

// noCompression is the Decoder/Encoder sentinel meaning "compression is
// currently disabled on this stream", distinct from a configured threshold
// of zero (which compresses every packet, including empty ones).
const noCompression = -1

// Decoder reads framed packets off a byte stream, applying the zlib
// decompression dance once a compression threshold has been negotiated.
type Decoder struct {
	r           *bufio.Reader
	mu          sync.Mutex
	threshold   int32 // noCompression when unset
	zlibReader  io.ReadCloser
	compressBuf bytes.Buffer
}

// NewDecoder wraps r. Compression is disabled until SetCompression is called.
func NewDecoder(r *bufio.Reader) *Decoder {
	return &Decoder{r: r, threshold: noCompression}
}

// SetCompression enables (threshold >= 0) or disables (threshold < 0)
// compression for subsequently-read frames. Must be called in lockstep with
// the paired Encoder on the other side of the same logical negotiation, and
// before the next frame is read — see spec §4.3 on SetCompression ordering.
func (d *Decoder) SetCompression(threshold int32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.threshold = threshold
}

// ReadPacket reads and fully decodes the next frame.
func (d *Decoder) ReadPacket() (Packet, error) {
	d.mu.Lock()
	threshold := d.threshold
	d.mu.Unlock()

	totalLen, err := ReadVarInt(d.r)
	if err != nil {
		return Packet{}, err
	}
	if totalLen < 0 {
		return Packet{}, ErrInvalidVarInt
	}

	frame := make([]byte, totalLen)
	if _, err := io.ReadFull(d.r, frame); err != nil {
		return Packet{}, ErrEndOfStream
	}
	fr := bytes.NewReader(frame)

	var raw []byte
	if threshold < 0 {
		raw = frame
	} else {
		dataLen, err := ReadVarInt(fr)
		if err != nil {
			return Packet{}, err
		}
		if dataLen == 0 {
			rest := make([]byte, fr.Len())
			_, _ = io.ReadFull(fr, rest)
			raw = rest
		} else {
			zr, err := zlib.NewReader(fr)
			if err != nil {
				return Packet{}, fmt.Errorf("codec: zlib: %w", err)
			}
			defer zr.Close()
			out := make([]byte, dataLen)
			if _, err := io.ReadFull(zr, out); err != nil {
				return Packet{}, fmt.Errorf("codec: zlib: %w", err)
			}
			raw = out
		}
	}

	raw2 := bytes.NewReader(raw)
	id, err := ReadVarInt(raw2)
	if err != nil {
		return Packet{}, err
	}
	payload := make([]byte, raw2.Len())
	_, _ = io.ReadFull(raw2, payload)
	return Packet{ID: id, Payload: payload}, nil
}

// Encoder writes framed packets to a byte stream, compressing frames whose
// raw (id+payload) length is at or above the negotiated threshold.
type Encoder struct {
	w         *bufio.Writer
	mu        sync.Mutex
	threshold int32 // noCompression when unset
}

// NewEncoder wraps w. Compression is disabled until SetCompression is called.
func NewEncoder(w *bufio.Writer) *Encoder {
	return &Encoder{w: w, threshold: noCompression}
}

// SetCompression mirrors Decoder.SetCompression for the write direction.
func (e *Encoder) SetCompression(threshold int32) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.threshold = threshold
}

// WritePacket encodes and flushes p.
func (e *Encoder) WritePacket(p Packet) error {
	e.mu.Lock()
	threshold := e.threshold
	e.mu.Unlock()

	raw := new(bytes.Buffer)
	if err := WriteVarInt(raw, p.ID); err != nil {
		return err
	}
	if _, err := raw.Write(p.Payload); err != nil {
		return err
	}

	frame := new(bytes.Buffer)
	if threshold < 0 {
		frame = raw
	} else if int32(raw.Len()) >= threshold {
		if err := WriteVarInt(frame, int32(raw.Len())); err != nil {
			return err
		}
		zw := zlib.NewWriter(frame)
		if _, err := zw.Write(raw.Bytes()); err != nil {
			return err
		}
		if err := zw.Close(); err != nil {
			return err
		}
	} else {
		if err := WriteVarInt(frame, 0); err != nil {
			return err
		}
		if _, err := frame.Write(raw.Bytes()); err != nil {
			return err
		}
	}

	if err := WriteVarInt(e.w, int32(frame.Len())); err != nil {
		return err
	}
	if _, err := e.w.Write(frame.Bytes()); err != nil {
		return err
	}
	return e.w.Flush()
}
