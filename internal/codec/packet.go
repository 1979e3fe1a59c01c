package codec

// Packet is one opaque Minecraft protocol frame as seen by the proxy: an id
// and an undecoded payload. The forwarding loops never interpret Payload;
// only the login driver parses specific packet ids it must interleave with
// compression/encryption negotiation.
type Packet struct {
	ID      int32
	Payload []byte
}

// Clone returns a Packet with its own copy of Payload, safe to hand to an
// event listener that may mutate it without aliasing the original buffer.
func (p Packet) Clone() Packet {
	cp := make([]byte, len(p.Payload))
	copy(cp, p.Payload)
	return Packet{ID: p.ID, Payload: cp}
}
