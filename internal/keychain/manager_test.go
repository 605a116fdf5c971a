package keychain

import (
	"testing"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager(t *testing.T) {
	m := NewWithRing(keyring.NewArrayKeyring(nil))

	_, err := m.LoadPassword("local")
	assert.ErrorIs(t, err, ErrNoPassword)

	require.NoError(t, m.SavePassword("local", "secret"))
	require.NoError(t, m.SavePassword("prod", "other"))

	pw, err := m.LoadPassword("local")
	require.NoError(t, err)
	assert.Equal(t, "secret", pw)

	require.NoError(t, m.SavePassword("local", "rotated"))
	pw, err = m.LoadPassword("local")
	require.NoError(t, err)
	assert.Equal(t, "rotated", pw)

	require.NoError(t, m.DeletePassword("local"))
	_, err = m.LoadPassword("local")
	assert.ErrorIs(t, err, ErrNoPassword)

	require.NoError(t, m.DeletePassword("local"))

	pw, err = m.LoadPassword("prod")
	require.NoError(t, err)
	assert.Equal(t, "other", pw)
}
