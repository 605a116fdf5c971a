package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/LLIEPJIOK/tdb-client/internal/config"
	"github.com/LLIEPJIOK/tdb-client/internal/keychain"
	"github.com/LLIEPJIOK/tdb-client/pkg/tdb"
	"github.com/LLIEPJIOK/tdb-client/pkg/ws"
)

// passwordEnv overrides the keychain for every profile.
const passwordEnv = "TDB_PASSWORD"

type passwordStore interface {
	LoadPassword(profile string) (string, error)
}

// openKeychain is swapped in tests.
var openKeychain = func() (*keychain.Manager, error) {
	return keychain.Open()
}

func newClient(metrics *tdb.Metrics) (*tdb.Client, error) {
	c := tdb.DefaultConfig()
	c.HandshakeTimeout = cfg.HandshakeTimeout
	c.RequestTimeout = cfg.RequestTimeout
	c.Logger = logger
	c.Metrics = metrics

	material, err := ws.TLSConfigFromEnv()
	if err != nil {
		return nil, err
	}

	if material != nil {
		if c.TLS, err = material.Build(); err != nil {
			return nil, err
		}
	}

	return tdb.NewClient(c), nil
}

// profileResolver turns a profile name into connect parameters. The
// keychain is opened on first use only.
type profileResolver struct {
	cfg   *config.Config
	store passwordStore
}

func newProfileResolver(c *config.Config) *profileResolver {
	return &profileResolver{cfg: c}
}

func (r *profileResolver) Resolve(name string) (ws.ConnectionParameters, error) {
	p, err := r.cfg.Profile(name)
	if err != nil {
		return ws.ConnectionParameters{}, err
	}

	password, err := r.password(name)
	if err != nil {
		return ws.ConnectionParameters{}, err
	}

	return p.Parameters(password)
}

func (r *profileResolver) password(name string) (string, error) {
	if pw, ok := os.LookupEnv(passwordEnv); ok {
		return pw, nil
	}

	if r.store == nil {
		km, err := openKeychain()
		if err != nil {
			return "", err
		}
		r.store = km
	}

	pw, err := r.store.LoadPassword(name)
	if errors.Is(err, keychain.ErrNoPassword) {
		return "", fmt.Errorf("%w; run 'tdbctl profile add %s' or set %s", err, name, passwordEnv)
	}

	return pw, err
}

// parseRequest builds a request envelope from command-line text.
func parseRequest(action, table, data string) (ws.Request, error) {
	req := ws.Request{Action: ws.Action(action), Table: table}

	if action == "" {
		return req, errors.New("action is required")
	}

	if data == "" {
		return req, nil
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(data)))
	dec.UseNumber()

	if err := dec.Decode(&req.Data); err != nil {
		return req, fmt.Errorf("data must be a JSON object: %w", err)
	}

	if dec.More() {
		return req, errors.New("data must be a single JSON object")
	}

	return req, nil
}
