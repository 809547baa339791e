package flat

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/lexis/internal/core/domain"
)

func TestPayload_RoundTrip(t *testing.T) {
	records := []Record{
		{ID: "5f0c6a1e-0000-5000-8000-000000000001", Vector: []float32{0.25, -1.5, 3}},
		{ID: "b", Vector: []float32{0, 0, 1e-7}},
	}

	var buf bytes.Buffer
	require.NoError(t, EncodePayload(&buf, 3, records))
	assert.Equal(t, "LXVI", buf.String()[:4])

	dim, got, err := DecodePayload(&buf)
	require.NoError(t, err)
	assert.Equal(t, 3, dim)
	assert.Equal(t, records, got)
}

func TestPayload_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, EncodePayload(&buf, 0, nil))

	dim, got, err := DecodePayload(&buf)
	require.NoError(t, err)
	assert.Zero(t, dim)
	assert.Empty(t, got)
}

func TestPayload_EncodeDimensionMismatch(t *testing.T) {
	var buf bytes.Buffer
	err := EncodePayload(&buf, 2, []Record{{ID: "a", Vector: []float32{1}}})
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
}

func TestPayload_DecodeCorrupt(t *testing.T) {
	var valid bytes.Buffer
	require.NoError(t, EncodePayload(&valid, 2, []Record{{ID: "a", Vector: []float32{1, 2}}}))
	data := valid.Bytes()

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"bad magic", append([]byte("NOPE"), data[4:]...)},
		{"bad version", append(append([]byte{}, data[:4]...), append([]byte{9, 0}, data[6:]...)...)},
		{"truncated", data[:len(data)-3]},
		{"trailing bytes", append(append([]byte{}, data...), 0xff)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := DecodePayload(bytes.NewReader(tt.data))
			assert.ErrorIs(t, err, domain.ErrCorruptOrMissingIndex)
		})
	}
}
