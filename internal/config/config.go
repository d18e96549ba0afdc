package config

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/Ravindra2377/KPR/internal/database"
	"github.com/sirupsen/logrus"
)

type Config struct {
	ServerAddr     string
	Store          string
	DatabaseDSN    string
	MongoURI       string
	MongoDB        string
	SigningKey     []byte
	AllowedOrigins []string
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	StoreTimeout   time.Duration
	SentryDSN      string
	LogLevel       logrus.Level
}

// Params holds the raw values collected from flags and the environment.
type Params struct {
	ServerAddr     string
	Store          string
	DatabaseDSN    string
	MongoURI       string
	MongoDB        string
	SigningSecret  string
	AllowedOrigins []string
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	StoreTimeout   time.Duration
	SentryDSN      string
	LogLevel       string
}

func decodeSigningSecret(base64Secret string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(base64Secret)
}

func NewConfig(p Params) (*Config, error) {
	if p.ServerAddr == "" {
		return nil, fmt.Errorf("server address cannot be empty")
	}

	switch p.Store {
	case database.StorePostgres:
		if p.DatabaseDSN == "" {
			return nil, fmt.Errorf("database DSN cannot be empty")
		}
	case database.StoreMongo:
		if p.MongoURI == "" {
			return nil, fmt.Errorf("mongo URI cannot be empty")
		}
		if p.MongoDB == "" {
			return nil, fmt.Errorf("mongo database name cannot be empty")
		}
	case database.StoreMemory:
	default:
		return nil, fmt.Errorf("unknown store %q", p.Store)
	}

	if p.SigningSecret == "" {
		return nil, fmt.Errorf("signing secret cannot be empty")
	}
	signingKey, err := decodeSigningSecret(p.SigningSecret)
	if err != nil {
		return nil, fmt.Errorf("decode signing secret: %w", err)
	}

	if p.StoreTimeout <= 0 {
		return nil, fmt.Errorf("store timeout must be positive")
	}
	if p.RedisDB < 0 {
		return nil, fmt.Errorf("redis db cannot be negative")
	}

	level := logrus.InfoLevel
	if p.LogLevel != "" {
		if level, err = logrus.ParseLevel(p.LogLevel); err != nil {
			return nil, fmt.Errorf("parse log level: %w", err)
		}
	}

	var origins []string
	for _, o := range p.AllowedOrigins {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}

	return &Config{
		ServerAddr:     p.ServerAddr,
		Store:          p.Store,
		DatabaseDSN:    p.DatabaseDSN,
		MongoURI:       p.MongoURI,
		MongoDB:        p.MongoDB,
		SigningKey:     signingKey,
		AllowedOrigins: origins,
		RedisAddr:      p.RedisAddr,
		RedisPassword:  p.RedisPassword,
		RedisDB:        p.RedisDB,
		StoreTimeout:   p.StoreTimeout,
		SentryDSN:      p.SentryDSN,
		LogLevel:       level,
	}, nil
}
