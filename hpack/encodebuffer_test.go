package hpack

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendInteger_ConcreteScenarios(t *testing.T) {
	cases := []struct {
		name       string
		value      uint64
		prefixBits int
		prefixByte byte
		want       []byte
	}{
		{"10 in 5-bit prefix", 10, 5, 0x00, []byte{0x0a}},
		{"1337 in 5-bit prefix", 1337, 5, 0x00, []byte{0x1f, 0x9a, 0x0a}},
		{"42 in 8-bit prefix", 42, 8, 0x00, []byte{0x2a}},
		{"300 in 8-bit prefix", 300, 8, 0x00, []byte{0xff, 0x2d}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			buf := NewEncodeBuffer(0)
			n := buf.AppendInteger(c.value, c.prefixBits, c.prefixByte)
			assert.Equal(t, len(c.want), n)
			assert.Equal(t, c.want, buf.Bytes())
		})
	}
}

func TestAppendInteger_RoundTrip(t *testing.T) {
	values := []uint64{0, 1, 15, 127, 128, 255, 256, 16383, 16384, 1 << 20, 1<<32 - 1}
	for _, prefixBits := range []int{1, 2, 3, 4, 5, 6, 7, 8} {
		for _, v := range values {
			buf := NewEncodeBuffer(0)
			n := buf.AppendInteger(v, prefixBits, 0)
			encoded := buf.Bytes()
			require.Equal(t, n, len(encoded))
			got, rest, err := decodeInteger(encoded, prefixBits)
			require.NoError(t, err)
			assert.Empty(t, rest)
			assert.Equal(t, v, got)
		}
	}
}

func TestAppendLiteral_Plain(t *testing.T) {
	buf := NewEncodeBuffer(0)
	n := buf.AppendLiteral("custom-key", false, MessageTypeRequest)
	want := append([]byte{0x0a}, []byte("custom-key")...)
	assert.Equal(t, len(want), n)
	assert.Equal(t, want, buf.Bytes())
}

func TestAppendLiteral_HuffmanRoundTrip(t *testing.T) {
	samples := []string{
		"",
		"a",
		"custom-key",
		"content-type",
		"application/json; charset=utf-8",
		"The quick brown fox jumps over the lazy dog 0123456789",
	}
	for _, msgType := range []MessageType{MessageTypeRequest, MessageTypeResponse} {
		for _, s := range samples {
			buf := NewEncodeBuffer(0)
			buf.AppendLiteral(s, true, msgType)
			encoded := buf.Bytes()
			huffman := encoded[0]&0x80 != 0
			require.True(t, huffman)
			length, rest, err := decodeInteger(encoded, 7)
			require.NoError(t, err)
			require.Equal(t, int(length), len(rest))
			got := tableFor(msgType).decode(rest)
			assert.Equal(t, s, string(got))
		}
	}
}

func TestReserveHeadroom_OnlyOnEmpty(t *testing.T) {
	buf := NewEncodeBuffer(0)
	buf.AppendByte('x')
	assert.Panics(t, func() { buf.ReserveHeadroom(4) })
}

func TestReserveHeadroom_AdvancesCursor(t *testing.T) {
	buf := NewEncodeBuffer(8)
	buf.ReserveHeadroom(4)
	assert.Equal(t, 4, buf.Len())
	buf.AppendByte('a')
	assert.Equal(t, 5, buf.Len())
	got := buf.Bytes()
	require.Len(t, got, 5)
	assert.Equal(t, byte('a'), got[4])
}

func TestGrowthAcrossSegments(t *testing.T) {
	buf := NewEncodeBuffer(4)
	for i := 0; i < 100; i++ {
		buf.AppendByte(byte(i))
	}
	assert.Equal(t, 100, buf.Len())
	got := buf.Bytes()
	for i := 0; i < 100; i++ {
		assert.Equal(t, byte(i), got[i])
	}
}
