package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileGivesDefaults(t *testing.T) {
	c, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), c)
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	c := Default()
	c.LogLevel = "debug"
	c.RequestTimeout = 5 * time.Second
	c.SetProfile("local", Profile{DBName: "shop", Schema: "users {}", Username: "alice"})

	require.NoError(t, Save(path, c))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, c, got)
	assert.Equal(t, DefaultURL, got.Profiles["local"].URL)
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
log_level: warn
request_timeout: 2s
profiles:
  prod:
    url: wss://db.example.com
    db_name: orders
    username: bob
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	c, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "warn", c.LogLevel)
	assert.Equal(t, 2*time.Second, c.RequestTimeout)
	assert.Equal(t, DefaultHandshakeTimeout, c.HandshakeTimeout)
	assert.Equal(t, []string{"prod"}, c.ProfileNames())

	p, err := c.Profile("prod")
	require.NoError(t, err)
	assert.Equal(t, "wss://db.example.com", p.URL)
	assert.Equal(t, "orders", p.DBName)
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("profiles: [unterminated"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestProfiles(t *testing.T) {
	c := Default()

	_, err := c.Profile("x")
	assert.ErrorIs(t, err, ErrProfileNotFound)
	assert.ErrorIs(t, c.RemoveProfile("x"), ErrProfileNotFound)

	c.SetProfile("b", Profile{})
	c.SetProfile("a", Profile{URL: "ws://other:1"})
	assert.Equal(t, []string{"a", "b"}, c.ProfileNames())

	require.NoError(t, c.RemoveProfile("a"))
	assert.Equal(t, []string{"b"}, c.ProfileNames())
}

func TestProfileParameters(t *testing.T) {
	schemaPath := filepath.Join(t.TempDir(), "shop.tdb")
	require.NoError(t, os.WriteFile(schemaPath, []byte("users { name: string }"), 0o600))

	p := Profile{DBName: "shop", SchemaFile: schemaPath, Username: "alice"}

	params, err := p.Parameters("secret")
	require.NoError(t, err)
	assert.Equal(t, DefaultURL, params.URL)
	assert.Equal(t, "users { name: string }", params.Schema)
	assert.Equal(t, "secret", params.Password)

	p.Schema = "inline"
	params, err = p.Parameters("secret")
	require.NoError(t, err)
	assert.Equal(t, "inline", params.Schema)

	p = Profile{SchemaFile: filepath.Join(t.TempDir(), "missing.tdb")}
	_, err = p.Parameters("")
	assert.Error(t, err)
}
