package proxy

import (
	"bufio"
	"net"

	"relay.dev/relay/internal/codec"
)

// frameConn pairs a net.Conn with the framed codec reading/writing through
// it. It carries no session-handler dispatch of its own — packet semantics
// live one layer up, in the login driver and forwarding loops.
type frameConn struct {
	net.Conn
	dec *codec.Decoder
	enc *codec.Encoder
}

func newFrameConn(c net.Conn) *frameConn {
	return &frameConn{
		Conn: c,
		dec:  codec.NewDecoder(bufio.NewReader(c)),
		enc:  codec.NewEncoder(bufio.NewWriter(c)),
	}
}

func (f *frameConn) ReadPacket() (codec.Packet, error) {
	return f.dec.ReadPacket()
}

func (f *frameConn) WritePacket(p codec.Packet) error {
	return f.enc.WritePacket(p)
}

// SetCompression applies threshold to both the read and write sides. Spec
// §4.3 requires this happen before the next frame is read in either
// direction; callers are responsible for that ordering.
func (f *frameConn) SetCompression(threshold int32) {
	f.dec.SetCompression(threshold)
	f.enc.SetCompression(threshold)
}
