package clipboard

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRoundTrip(t *testing.T) {
	m := NewMemory()

	p, err := m.Read()
	require.NoError(t, err)
	assert.True(t, p.IsZero())

	want := Payload{TypeTag: TypePlainText, Bytes: []byte("hello")}
	require.NoError(t, m.Write(want))

	got, err := m.Read()
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestMemoryFailure(t *testing.T) {
	m := NewMemory()
	m.FailWith(errors.New("boom"))

	_, err := m.Read()
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, m.Write(Payload{TypeTag: TypePlainText}), ErrUnavailable)
}
