package postgres

import (
	"context"
	"embed"
	"net"
	"net/url"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx database/sql driver
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/pressly/goose/v3"
)

type DB struct {
	Host         string        `yaml:"host" envconfig:"DB_HOST" default:"localhost"`
	Port         string        `yaml:"port" envconfig:"DB_PORT" default:"5432"`
	User         string        `yaml:"user" envconfig:"DB_USER" default:"postgres"`
	Password     string        `yaml:"password" envconfig:"DB_PASSWORD"`
	NameDB       string        `yaml:"dbname" envconfig:"DB_NAME" default:"catalog"`
	SSLMode      string        `yaml:"sslmode" envconfig:"DB_SSLMODE" default:"disable"`
	MaxOpenConns int           `yaml:"maxOpenConns" envconfig:"DB_MAX_OPEN_CONNS" default:"20"`
	ConnLifetime time.Duration `yaml:"connLifetime" envconfig:"DB_CONN_LIFETIME" default:"5m"`
}

func (cfg *DB) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     net.JoinHostPort(cfg.Host, cfg.Port),
		Path:     "/" + cfg.NameDB,
		RawQuery: url.Values{"sslmode": {cfg.SSLMode}}.Encode(),
	}
	return u.String()
}

// NewPostgresDB connects through the pgx stdlib driver and applies the embedded goose migrations.
func NewPostgresDB(ctx context.Context, cfg *DB, migrations embed.FS) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "pgx", cfg.DSN())
	if err != nil {
		return nil, errors.Wrap(err, "sqlx.Connect")
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxOpenConns / 2)
	db.SetConnMaxLifetime(cfg.ConnLifetime)

	if err := migrate(db, migrations); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func migrate(db *sqlx.DB, migrations embed.FS) error {
	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return errors.Wrap(err, "goose.SetDialect")
	}
	if err := goose.Up(db.DB, "."); err != nil {
		return errors.Wrap(err, "goose.Up")
	}
	return nil
}
