package proxy

import (
	"bytes"
	"fmt"
	"net"

	"github.com/google/uuid"
	"relay.dev/relay/internal/codec"
	"relay.dev/relay/internal/config"
)

// buildHandshakePacket encodes the outbound handshake §4.3 sends to an
// upstream, optionally appending the player-forwarding address fields when
// mode is ForwardingHandshake and suppressPF is false.
func buildHandshakePacket(protocolVersion uint16, serverAddress string, serverPort uint16, nextState uint8, mode config.ForwardingMode, suppressPF bool, clientAddr net.Addr) (codec.Packet, error) {
	buf := new(bytes.Buffer)
	if err := codec.WriteVarU16(buf, protocolVersion); err != nil {
		return codec.Packet{}, err
	}
	if err := codec.WriteString(buf, serverAddress); err != nil {
		return codec.Packet{}, err
	}
	if err := codec.WriteUnsignedShort(buf, serverPort); err != nil {
		return codec.Packet{}, err
	}
	if err := codec.WriteVarU8(buf, nextState); err != nil {
		return codec.Packet{}, err
	}

	if mode == config.ForwardingHandshake && !suppressPF {
		ip, port, isV6, err := splitClientAddr(clientAddr)
		if err != nil {
			return codec.Packet{}, err
		}
		if err := codec.WriteBool(buf, isV6); err != nil {
			return codec.Packet{}, err
		}
		if err := codec.WriteUnsignedShort(buf, port); err != nil {
			return codec.Packet{}, err
		}
		if _, err := buf.Write(ip); err != nil {
			return codec.Packet{}, err
		}
	}

	return codec.Packet{ID: packetHandshake, Payload: buf.Bytes()}, nil
}

// splitClientAddr decomposes a client's TCP peer address into the raw
// 4-or-16-byte IP form and is_ipv6 flag the Handshake forwarding extension
// requires (spec §4.3).
func splitClientAddr(addr net.Addr) (ip []byte, port uint16, isV6 bool, err error) {
	tcpAddr, ok := addr.(*net.TCPAddr)
	if !ok {
		return nil, 0, false, fmt.Errorf("proxy: client address %v is not a TCP address", addr)
	}
	if v4 := tcpAddr.IP.To4(); v4 != nil {
		return v4, uint16(tcpAddr.Port), false, nil
	}
	v6 := tcpAddr.IP.To16()
	if v6 == nil {
		return nil, 0, false, fmt.Errorf("proxy: unrecognized client IP %v", tcpAddr.IP)
	}
	return v6, uint16(tcpAddr.Port), true, nil
}

// buildLoginStartPacket encodes the LoginStart (0x00) packet replayed
// against a new upstream during server-swap (spec §4.6 step 4b).
func buildLoginStartPacket(name string, uid uuid.UUID) (codec.Packet, error) {
	buf := new(bytes.Buffer)
	if err := codec.WriteString(buf, name); err != nil {
		return codec.Packet{}, err
	}
	if err := codec.WriteUUID(buf, uid); err != nil {
		return codec.Packet{}, err
	}
	return codec.Packet{ID: packetLoginStart, Payload: buf.Bytes()}, nil
}
