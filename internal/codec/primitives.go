package codec

import (
	"encoding/binary"
	"io"
	"unicode/utf8"

	"github.com/google/uuid"
)

const (
	maxVarIntBytes = 5  // a 32-bit varint never needs more than 5 bytes
	maxStringLen   = 1 << 16
)

// WriteVarInt writes v using Minecraft's LEB128-style varint encoding:
// seven payload bits per byte, high bit set while more bytes follow.
func WriteVarInt(w io.Writer, v int32) error {
	uv := uint32(v)
	var buf [maxVarIntBytes]byte
	n := 0
	for {
		b := byte(uv & 0x7F)
		uv >>= 7
		if uv != 0 {
			b |= 0x80
		}
		buf[n] = b
		n++
		if uv == 0 {
			break
		}
	}
	_, err := w.Write(buf[:n])
	return err
}

// ReadVarInt reads a Minecraft varint, rejecting streams that never
// terminate the continuation sequence within 5 bytes.
func ReadVarInt(r io.Reader) (int32, error) {
	var result uint32
	var shift uint
	var b [1]byte
	for i := 0; i < maxVarIntBytes; i++ {
		if _, err := io.ReadFull(r, b[:]); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return 0, ErrEndOfStream
			}
			return 0, err
		}
		result |= uint32(b[0]&0x7F) << shift
		if b[0]&0x80 == 0 {
			return int32(result), nil
		}
		shift += 7
	}
	return 0, ErrVarIntTooBig
}

// WriteVarU8 writes a u8-valued field using the varint encoding (next_state).
func WriteVarU8(w io.Writer, v uint8) error {
	return WriteVarInt(w, int32(v))
}

// ReadVarU8 reads a varint and validates it fits in a u8.
func ReadVarU8(r io.Reader) (uint8, error) {
	v, err := ReadVarInt(r)
	if err != nil {
		return 0, err
	}
	if v < 0 || v > 0xFF {
		return 0, ErrInvalidVarInt
	}
	return uint8(v), nil
}

// WriteVarU16 writes a u16-valued field (protocol_version) using the varint encoding.
func WriteVarU16(w io.Writer, v uint16) error {
	return WriteVarInt(w, int32(v))
}

// ReadVarU16 reads a varint and validates it fits in a u16.
func ReadVarU16(r io.Reader) (uint16, error) {
	v, err := ReadVarInt(r)
	if err != nil {
		return 0, err
	}
	if v < 0 || v > 0xFFFF {
		return 0, ErrInvalidVarInt
	}
	return uint16(v), nil
}

// ZigzagEncode maps a signed value onto an unsigned varint-friendly range:
// 0, -1, 1, -2, 2 -> 0, 1, 2, 3, 4.
func ZigzagEncode(v int32) int32 {
	return (v << 1) ^ (v >> 31)
}

// ZigzagDecode reverses ZigzagEncode.
func ZigzagDecode(v int32) int32 {
	return int32(uint32(v)>>1) ^ -(v & 1)
}

// WriteVarIntZigzag writes v zigzag-encoded, used for the isize compression threshold field.
func WriteVarIntZigzag(w io.Writer, v int32) error {
	return WriteVarInt(w, ZigzagEncode(v))
}

// ReadVarIntZigzag reads a varint and zigzag-decodes it.
func ReadVarIntZigzag(r io.Reader) (int32, error) {
	v, err := ReadVarInt(r)
	if err != nil {
		return 0, err
	}
	return ZigzagDecode(v), nil
}

// WriteString writes a varint-length-prefixed UTF-8 string.
func WriteString(w io.Writer, s string) error {
	if len(s) > maxStringLen {
		return ErrStringTooBig
	}
	if err := WriteVarInt(w, int32(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

// ReadString reads a varint-length-prefixed UTF-8 string.
func ReadString(r io.Reader) (string, error) {
	n, err := ReadVarInt(r)
	if err != nil {
		return "", err
	}
	if n < 0 || n > maxStringLen {
		return "", ErrStringTooBig
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", ErrEndOfStream
	}
	if !utf8.Valid(buf) {
		return "", ErrInvalidUTF8
	}
	return string(buf), nil
}

// WriteUnsignedShort writes a big-endian u16.
func WriteUnsignedShort(w io.Writer, v uint16) error {
	var buf [2]byte
	binary.BigEndian.PutUint16(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

// ReadUnsignedShort reads a big-endian u16.
func ReadUnsignedShort(r io.Reader) (uint16, error) {
	var buf [2]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, ErrEndOfStream
	}
	return binary.BigEndian.Uint16(buf[:]), nil
}

// WriteBool writes a single-byte boolean.
func WriteBool(w io.Writer, v bool) error {
	b := byte(0)
	if v {
		b = 1
	}
	_, err := w.Write([]byte{b})
	return err
}

// ReadBool reads a single-byte boolean.
func ReadBool(r io.Reader) (bool, error) {
	var buf [1]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return false, ErrEndOfStream
	}
	return buf[0] != 0, nil
}

// WriteUUID writes a 128-bit UUID as 16 raw bytes, high half then low half.
func WriteUUID(w io.Writer, id uuid.UUID) error {
	_, err := w.Write(id[:])
	return err
}

// ReadUUID reads 16 raw bytes (high half then low half) into a UUID.
func ReadUUID(r io.Reader) (uuid.UUID, error) {
	var id uuid.UUID
	if _, err := io.ReadFull(r, id[:]); err != nil {
		return uuid.UUID{}, ErrEndOfStream
	}
	return id, nil
}

// WriteBytes writes a varint length followed by the raw bytes, used for
// shared_secret/verify_token in the encryption request/response packets.
func WriteBytes(w io.Writer, b []byte) error {
	if err := WriteVarInt(w, int32(len(b))); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

// ReadBytes reads a varint length followed by that many raw bytes.
func ReadBytes(r io.Reader) ([]byte, error) {
	n, err := ReadVarInt(r)
	if err != nil {
		return nil, err
	}
	if n < 0 || int(n) > maxStringLen {
		return nil, ErrStringTooBig
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, ErrEndOfStream
	}
	return buf, nil
}
