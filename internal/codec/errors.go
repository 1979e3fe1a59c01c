package codec

import "errors"

// Sentinel errors returned by the primitive readers and by Decoder.ReadPacket.
// All of them are fatal to the owning forwarding loop or login driver.
var (
	ErrEndOfStream  = errors.New("codec: end of stream")
	ErrInvalidVarInt = errors.New("codec: invalid varint")
	ErrInvalidUTF8  = errors.New("codec: invalid utf8 string")
	ErrVarIntTooBig = errors.New("codec: varint exceeds maximum size")
	ErrStringTooBig = errors.New("codec: string length exceeds limit")
)
