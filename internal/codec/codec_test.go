package codec

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pipe() (*Encoder, *Decoder, *bytes.Buffer) {
	buf := new(bytes.Buffer)
	enc := NewEncoder(bufio.NewWriter(buf))
	dec := NewDecoder(bufio.NewReader(buf))
	return enc, dec, buf
}

func TestRoundTripUncompressed(t *testing.T) {
	enc, dec, _ := pipe()
	want := Packet{ID: 0x02, Payload: []byte("hello world")}
	require.NoError(t, enc.WritePacket(want))
	got, err := dec.ReadPacket()
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestRoundTripManyPackets(t *testing.T) {
	enc, dec, _ := pipe()
	want := []Packet{
		{ID: 0x00, Payload: []byte{}},
		{ID: 0x01, Payload: []byte{1, 2, 3}},
		{ID: 0x7F, Payload: bytes.Repeat([]byte{0xAB}, 300)},
	}
	for _, p := range want {
		require.NoError(t, enc.WritePacket(p))
	}
	for _, w := range want {
		got, err := dec.ReadPacket()
		require.NoError(t, err)
		assert.Equal(t, w, got)
	}
}

func TestCompressionBelowThresholdIsRaw(t *testing.T) {
	enc, dec, _ := pipe()
	enc.SetCompression(256)
	dec.SetCompression(256)
	want := Packet{ID: 0x00, Payload: []byte("short")}
	require.NoError(t, enc.WritePacket(want))
	got, err := dec.ReadPacket()
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestCompressionAtOrAboveThresholdIsCompressed(t *testing.T) {
	enc, dec, _ := pipe()
	enc.SetCompression(256)
	dec.SetCompression(256)
	want := Packet{ID: 0x01, Payload: bytes.Repeat([]byte{0x42}, 1000)}
	require.NoError(t, enc.WritePacket(want))
	got, err := dec.ReadPacket()
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestCompressionThresholdZeroCompressesEverything(t *testing.T) {
	enc, dec, buf := pipe()
	enc.SetCompression(0)
	dec.SetCompression(0)
	want := Packet{ID: 0x00, Payload: []byte("x")}
	require.NoError(t, enc.WritePacket(want))
	// byte 0 is the frame length; byte 1 is data_len, which is the raw
	// (id + payload) length of 2 only on the zlib path and 0 otherwise.
	assert.Equal(t, byte(2), buf.Bytes()[1])
	got, err := dec.ReadPacket()
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestVarIntRoundTrip(t *testing.T) {
	for _, v := range []int32{0, 1, -1, 127, 128, 255, 25565, -2147483648, 2147483647} {
		buf := new(bytes.Buffer)
		require.NoError(t, WriteVarInt(buf, v))
		got, err := ReadVarInt(buf)
		require.NoError(t, err)
		assert.Equal(t, v, got)
	}
}

func TestZigzagRoundTrip(t *testing.T) {
	for _, v := range []int32{0, -1, 1, -2, 2, 256, -256} {
		assert.Equal(t, v, ZigzagDecode(ZigzagEncode(v)))
	}
}

func TestReadVarIntTooBig(t *testing.T) {
	buf := bytes.NewBuffer([]byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF})
	_, err := ReadVarInt(buf)
	assert.ErrorIs(t, err, ErrVarIntTooBig)
}

func TestStringRoundTrip(t *testing.T) {
	buf := new(bytes.Buffer)
	require.NoError(t, WriteString(buf, "play.example.com"))
	got, err := ReadString(buf)
	require.NoError(t, err)
	assert.Equal(t, "play.example.com", got)
}
