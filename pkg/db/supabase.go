package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	supabase "github.com/supabase-community/supabase-go"
)

// SupabaseConfig describes a Supabase project. URL and Key reach PostgREST
// and GoTrue; Password (or ConnectionString) additionally opens the
// project's Postgres directly.
type SupabaseConfig struct {
	ConnectionString string
	SupabaseURL      string
	// SupabaseKey must be the service_role key for writes that bypass row-level security.
	SupabaseKey string
	Password    string

	MaxOpenConns int
	MaxIdleConns int
	ConnMaxIdle  time.Duration
	ConnMaxLife  time.Duration
}

// SupabaseClient holds whichever of the SDK client and the SQL handle the
// config allows.
type SupabaseClient struct {
	db  *sql.DB
	sdk *supabase.Client
	cfg SupabaseConfig
}

func NewSupabaseClient(cfg SupabaseConfig) *SupabaseClient {
	return &SupabaseClient{cfg: cfg}
}

// Connect opens the SDK client and, when credentials allow, the SQL handle.
// A failing SQL connection is tolerated as long as the SDK client is up.
func (c *SupabaseClient) Connect(ctx context.Context) error {
	if c.cfg.SupabaseURL != "" && c.cfg.SupabaseKey != "" {
		sdk, err := supabase.NewClient(c.cfg.SupabaseURL, c.cfg.SupabaseKey, nil)
		if err != nil {
			return fmt.Errorf("initialize supabase SDK: %w", err)
		}
		c.sdk = sdk
	}

	err := c.connectSQL(ctx)
	switch {
	case err != nil && c.sdk == nil:
		return err
	case c.db == nil && c.sdk == nil:
		return errors.New("supabase needs a database password or a URL and key")
	}
	return nil
}

func (c *SupabaseClient) connectSQL(ctx context.Context) error {
	dsn := c.cfg.ConnectionString
	if dsn == "" {
		if c.cfg.Password == "" {
			return nil
		}
		var err error
		if dsn, err = supabaseDSN(c.cfg.SupabaseURL, c.cfg.Password); err != nil {
			return err
		}
	}

	// pgx's statement cache collides across the pooler's shared backends.
	dsn = withDefaultParams(dsn,
		"statement_cache_capacity", "0",
		"default_query_exec_mode", "simple_protocol",
	)

	handle, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("open supabase postgres: %w", err)
	}
	applyPoolSettings(handle, c.cfg.MaxOpenConns, c.cfg.MaxIdleConns, c.cfg.ConnMaxIdle, c.cfg.ConnMaxLife)
	if err := handle.PingContext(ctx); err != nil {
		_ = handle.Close()
		return fmt.Errorf("ping supabase postgres: %w", err)
	}
	c.db = handle
	return nil
}

func (c *SupabaseClient) Close() error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}

// DB is nil when only the SDK client is available.
func (c *SupabaseClient) DB() *sql.DB {
	return c.db
}

func (c *SupabaseClient) HasDirectDB() bool {
	return c.db != nil
}

// SDK is nil unless both URL and key were configured.
func (c *SupabaseClient) SDK() *supabase.Client {
	return c.sdk
}

// Repository prefers SQL and falls back to PostgREST.
func (c *SupabaseClient) Repository() (Repository, error) {
	switch {
	case c.db != nil:
		return NewPostgresRepository(c), nil
	case c.sdk != nil:
		return NewRESTRepository(c.sdk), nil
	}
	return nil, ErrNotConfigured
}

// supabaseDSN derives the direct Postgres address from a project URL of the
// form https://<ref>.supabase.co.
func supabaseDSN(projectURL, password string) (string, error) {
	if projectURL == "" {
		return "", errors.New("supabase URL is required to derive the database address")
	}
	u, err := url.Parse(projectURL)
	if err != nil {
		return "", fmt.Errorf("parse supabase URL: %w", err)
	}
	ref, _, found := strings.Cut(u.Hostname(), ".")
	if !found || ref == "" {
		return "", fmt.Errorf("supabase URL %q has no project ref", projectURL)
	}

	dsn := url.URL{
		Scheme:   "postgresql",
		User:     url.UserPassword("postgres", password),
		Host:     "db." + ref + ".supabase.co:5432",
		Path:     "/postgres",
		RawQuery: "sslmode=require",
	}
	return dsn.String(), nil
}

// withDefaultParams appends each key/value pair the dsn does not already set.
func withDefaultParams(dsn string, kv ...string) string {
	for i := 0; i+1 < len(kv); i += 2 {
		key, value := kv[i], kv[i+1]
		if strings.Contains(dsn, key+"=") {
			continue
		}
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn += sep + key + "=" + value
	}
	return dsn
}
