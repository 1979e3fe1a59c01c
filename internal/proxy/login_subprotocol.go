package proxy

import (
	"bytes"

	"relay.dev/relay/internal/codec"
)

// encryptionResponder produces the client's reply to an upstream
// EncryptionRequest. The initial login reads it live from the client; a
// server-swap replays the previously captured shared_secret/verify_token
// instead (spec §4.6 step 4c).
type encryptionResponder func(req codec.Packet) (codec.Packet, error)

func liveEncryptionResponder(client *frameConn, sess *Session) encryptionResponder {
	return func(req codec.Packet) (codec.Packet, error) {
		resp, err := client.ReadPacket()
		if err != nil {
			return codec.Packet{}, err
		}
		r := bytes.NewReader(resp.Payload)
		secret, err := codec.ReadBytes(r)
		if err != nil {
			return codec.Packet{}, err
		}
		token, err := codec.ReadBytes(r)
		if err != nil {
			return codec.Packet{}, err
		}
		sess.captureEncryption(secret, token)
		return resp, nil
	}
}

func replayEncryptionResponder(sess *Session) encryptionResponder {
	return func(req codec.Packet) (codec.Packet, error) {
		secret, token := sess.capturedEncryption()
		buf := new(bytes.Buffer)
		if err := codec.WriteBytes(buf, secret); err != nil {
			return codec.Packet{}, err
		}
		if err := codec.WriteBytes(buf, token); err != nil {
			return codec.Packet{}, err
		}
		return codec.Packet{ID: packetEncryptionResponse, Payload: buf.Bytes()}, nil
	}
}

// driveLoginSubProtocol runs the upstream login exchange common to both the
// initial Login state (spec §4.3) and the replay half of a server-swap
// (spec §4.6 step 4c): every upstream frame is mirrored to the client,
// EncryptionRequest is answered via respond, SetCompression is applied to
// both codecs before the next frame is read in either direction, and
// LoginSuccess ends the exchange after the synthesized LoginAcknowledged is
// sent upstream.
func driveLoginSubProtocol(client, upstream *frameConn, respond encryptionResponder) error {
	for {
		pkt, err := upstream.ReadPacket()
		if err != nil {
			return err
		}

		switch pkt.ID {
		case packetEncryptionRequest:
			if err := client.WritePacket(pkt); err != nil {
				return err
			}
			resp, err := respond(pkt)
			if err != nil {
				return err
			}
			if err := upstream.WritePacket(resp); err != nil {
				return err
			}

		case packetSetCompression:
			if err := client.WritePacket(pkt); err != nil {
				return err
			}
			threshold, err := codec.ReadVarIntZigzag(bytes.NewReader(pkt.Payload))
			if err != nil {
				return err
			}
			client.SetCompression(threshold)
			upstream.SetCompression(threshold)

		case packetLoginSuccess:
			if err := client.WritePacket(pkt); err != nil {
				return err
			}
			return upstream.WritePacket(codec.Packet{ID: packetLoginAcknowledged})

		default:
			if err := client.WritePacket(pkt); err != nil {
				return err
			}
		}
	}
}
