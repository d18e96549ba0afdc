package config

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func validParams() Params {
	return Params{
		ServerAddr:     "localhost:8080",
		Store:          "postgres",
		DatabaseDSN:    "host=localhost user=postgres password=postgres dbname=postgres sslmode=disable",
		SigningSecret:  "c29tZV9zZWNyZXQ=",
		AllowedOrigins: []string{"http://localhost:3000", " ", "https://kpr.app "},
		StoreTimeout:   5 * time.Second,
		LogLevel:       "debug",
	}
}

func TestNewConfig(t *testing.T) {
	tcases := []struct {
		name   string
		modify func(p *Params)
		err    bool
	}{
		{
			name:   "valid config",
			modify: func(p *Params) {},
		},
		{
			name:   "empty address",
			modify: func(p *Params) { p.ServerAddr = "" },
			err:    true,
		},
		{
			name:   "empty DSN",
			modify: func(p *Params) { p.DatabaseDSN = "" },
			err:    true,
		},
		{
			name:   "memory store needs no DSN",
			modify: func(p *Params) { p.Store = "memory"; p.DatabaseDSN = "" },
		},
		{
			name:   "mongo without URI",
			modify: func(p *Params) { p.Store = "mongo"; p.MongoDB = "kpr" },
			err:    true,
		},
		{
			name:   "mongo without database",
			modify: func(p *Params) { p.Store = "mongo"; p.MongoURI = "mongodb://localhost:27017" },
			err:    true,
		},
		{
			name:   "mongo",
			modify: func(p *Params) { p.Store = "mongo"; p.MongoURI = "mongodb://localhost:27017"; p.MongoDB = "kpr" },
		},
		{
			name:   "unknown store",
			modify: func(p *Params) { p.Store = "sqlite" },
			err:    true,
		},
		{
			name:   "empty signing key",
			modify: func(p *Params) { p.SigningSecret = "" },
			err:    true,
		},
		{
			name:   "signing key not base64",
			modify: func(p *Params) { p.SigningSecret = "not base64!" },
			err:    true,
		},
		{
			name:   "zero store timeout",
			modify: func(p *Params) { p.StoreTimeout = 0 },
			err:    true,
		},
		{
			name:   "negative redis db",
			modify: func(p *Params) { p.RedisDB = -1 },
			err:    true,
		},
		{
			name:   "bad log level",
			modify: func(p *Params) { p.LogLevel = "loud" },
			err:    true,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			p := validParams()
			tc.modify(&p)

			cfg, err := NewConfig(p)
			if tc.err {
				assert.Error(t, err, "expected an error")
				assert.Nil(t, cfg, "expected config to be nil")
				return
			}

			assert.NoError(t, err, "expected no error")
			assert.Equal(t, p.ServerAddr, cfg.ServerAddr, "expected server address to match")
			assert.Equal(t, []byte("some_secret"), cfg.SigningKey, "expected signing key to be decoded")
		})
	}
}

func TestNewConfigDefaults(t *testing.T) {
	p := validParams()
	p.LogLevel = ""

	cfg, err := NewConfig(p)
	assert.NoError(t, err)
	assert.Equal(t, logrus.InfoLevel, cfg.LogLevel, "expected info level by default")
	assert.Equal(t, []string{"http://localhost:3000", "https://kpr.app"}, cfg.AllowedOrigins, "expected blank origins to be dropped")
	assert.Equal(t, 5*time.Second, cfg.StoreTimeout)
}
