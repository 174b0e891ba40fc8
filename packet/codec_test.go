package packet

import (
	"bytes"
	"encoding/binary"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func frame(body string) []byte {
	b := make([]byte, HeaderSize+len(body))
	binary.LittleEndian.PutUint16(b, uint16(len(body)))
	copy(b[HeaderSize:], body)
	return b
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	cases := []Packet{
		New(Bye, ""),
		New(Bye, "Goodbye."),
		New(Message, "Welcome to the \"Test\" Games Server.\n"),
		New(Input, "42"),
		New(Message, "unicode ✓ ünïcødé <tags> & \"quotes\""),
		New(Input, strings.Repeat("x", 4096)),
	}

	for _, p := range cases {
		t.Run(p.Command.String(), func(t *testing.T) {
			b, err := Encode(p)
			require.NoError(t, err)

			got, err := Decode(bytes.NewReader(b))
			require.NoError(t, err)
			assert.Equal(t, p, got)
		})
	}
}

func TestEncode_WireFormat(t *testing.T) {
	b, err := Encode(New(Message, "hi"))
	require.NoError(t, err)

	body := `{"command":"message","message":"hi"}`
	assert.Equal(t, uint16(len(body)), binary.LittleEndian.Uint16(b[:HeaderSize]))
	assert.Equal(t, body, string(b[HeaderSize:]))
}

func TestEncode_Capacity(t *testing.T) {
	// {"command":"message","message":""} is 34 bytes of envelope.
	const envelope = 34

	t.Run("body at the ceiling encodes", func(t *testing.T) {
		b, err := Encode(New(Message, strings.Repeat("a", MaxBodySize-envelope)))
		require.NoError(t, err)
		assert.Len(t, b, HeaderSize+MaxBodySize)
	})

	t.Run("body over the ceiling fails", func(t *testing.T) {
		b, err := Encode(New(Message, strings.Repeat("a", MaxBodySize-envelope+1)))
		assert.ErrorIs(t, err, ErrPayloadTooLarge)
		assert.Nil(t, b)
	})

	t.Run("large payload fails deterministically", func(t *testing.T) {
		p := New(Input, strings.Repeat("z", 70000))
		for i := 0; i < 3; i++ {
			_, err := Encode(p)
			assert.ErrorIs(t, err, ErrPayloadTooLarge)
		}
	})
}

func TestEncode_InvalidCommand(t *testing.T) {
	_, err := Encode(Packet{Command: Command(9), Message: "x"})
	assert.Error(t, err)
}

func TestDecode_ShortFrames(t *testing.T) {
	t.Run("empty stream", func(t *testing.T) {
		p, err := Decode(bytes.NewReader(nil))
		assert.ErrorIs(t, err, ErrShortFrame)
		assert.Equal(t, Packet{}, p)
	})

	t.Run("one header byte", func(t *testing.T) {
		_, err := Decode(bytes.NewReader([]byte{0x05}))
		assert.ErrorIs(t, err, ErrShortFrame)
	})

	t.Run("declared length longer than body", func(t *testing.T) {
		b := frame(`{"command":"bye","message":""}`)
		binary.LittleEndian.PutUint16(b, uint16(len(b)+10))

		p, err := Decode(bytes.NewReader(b))
		assert.ErrorIs(t, err, ErrShortFrame)
		assert.Equal(t, Packet{}, p)
	})
}

func TestDecode_Malformed(t *testing.T) {
	cases := map[string]string{
		"not json":        `hello`,
		"unknown command": `{"command":"jump","message":""}`,
		"ordinal command": `{"command":1,"message":""}`,
		"missing command": `{"message":"hi"}`,
		"empty object":    `{}`,
		"empty body":      ``,
	}

	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			p, err := Decode(bytes.NewReader(frame(body)))
			assert.ErrorIs(t, err, ErrMalformed)
			assert.Equal(t, Packet{}, p)
		})
	}
}

func TestDecode_MissingMessageDefaultsEmpty(t *testing.T) {
	p, err := Decode(bytes.NewReader(frame(`{"command":"input"}`)))
	require.NoError(t, err)
	assert.Equal(t, New(Input, ""), p)
}

func TestDecode_ConsecutiveFrames(t *testing.T) {
	var buf bytes.Buffer
	for _, p := range []Packet{New(Message, "one"), New(Input, "two"), New(Bye, "three")} {
		b, err := Encode(p)
		require.NoError(t, err)
		buf.Write(b)
	}

	for _, want := range []string{"one", "two", "three"} {
		p, err := Decode(&buf)
		require.NoError(t, err)
		assert.Equal(t, want, p.Message)
	}

	_, err := Decode(&buf)
	assert.ErrorIs(t, err, ErrShortFrame)
}
