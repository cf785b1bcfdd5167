package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/Astemirdum/library-catalog/pkg/assets"
	"github.com/Astemirdum/library-catalog/pkg/auth"
	"github.com/Astemirdum/library-catalog/pkg/kafka"
	"github.com/Astemirdum/library-catalog/pkg/logger"
	"github.com/Astemirdum/library-catalog/pkg/postgres"
	"github.com/kelseyhightower/envconfig"
)

type HTTPServer struct {
	Host         string        `envconfig:"HTTP_HOST" default:"0.0.0.0"`
	Port         string        `envconfig:"HTTP_PORT" default:"8080"`
	ReadTimeout  time.Duration `envconfig:"HTTP_READ" default:"10s"`
	WriteTimeout time.Duration `envconfig:"HTTP_WRITE" default:"30s"`
}

type Config struct {
	Server   HTTPServer
	Database postgres.DB
	Log      logger.Log
	Auth     auth.Config
	Assets   assets.Config
	Kafka    kafka.Config
}

var (
	once sync.Once
	cfg  Config
)

// NewConfig reads config from environment once. Options override what the environment sets.
func NewConfig(ops ...Option) Config {
	once.Do(func() {
		c, err := load(ops...)
		if err != nil {
			log.Fatal("NewConfig ", err)
		}
		cfg = c
		printConfig(cfg)
	})
	return cfg
}

func load(ops ...Option) (Config, error) {
	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return Config{}, err
	}
	if c.Auth.Secret == "" {
		return Config{}, errors.New("JWT_SECRET must not be empty")
	}
	for _, op := range ops {
		op(&c)
	}
	return c, nil
}

func printConfig(cfg Config) {
	cfg.Database.Password = "***"
	cfg.Auth.Secret = "***"
	jscfg, _ := json.MarshalIndent(cfg, "", "	") //nolint:errcheck
	fmt.Println(string(jscfg))
}
