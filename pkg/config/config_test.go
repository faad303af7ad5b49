package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mlcomp/mlboard/pkg/search"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	return path
}

func TestLoad_EnvVarOverrides(t *testing.T) {
	configPath := writeConfig(t, `
global:
  log_level: info
sources:
  - name: experiments
    http:
      url: http://board.example.com
tree:
  strict: false
search:
  threshold: 0.2
api:
  server:
    listen: ":9000"
preferences:
  database:
    driver: sqlite
    sqlite:
      path: /tmp/original.db
`)

	tests := []struct {
		name     string
		envVars  map[string]string
		validate func(t *testing.T, cfg *Config)
	}{
		{
			name:    "no env vars uses yaml values",
			envVars: map[string]string{},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "info", cfg.Global.LogLevel)
				assert.Equal(t, ":9000", cfg.API.Server.Listen)
				assert.InDelta(t, 0.2, cfg.Search.Threshold, 1e-9)
				assert.Equal(t, "/tmp/original.db", cfg.Preferences.Database.SQLite.Path)
			},
		},
		{
			name: "string override - log_level",
			envVars: map[string]string{
				"MLBOARD_GLOBAL_LOG_LEVEL": "debug",
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "debug", cfg.Global.LogLevel)
			},
		},
		{
			name: "boolean override - tree.strict",
			envVars: map[string]string{
				"MLBOARD_TREE_STRICT": "true",
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.True(t, cfg.Tree.Strict)
			},
		},
		{
			name: "float override - search.threshold",
			envVars: map[string]string{
				"MLBOARD_SEARCH_THRESHOLD": "0.4",
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.InDelta(t, 0.4, cfg.Search.Threshold, 1e-9)
			},
		},
		{
			name: "slice override - search.keys",
			envVars: map[string]string{
				"MLBOARD_SEARCH_KEYS": "name,tags",
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, []string{"name", "tags"}, cfg.Search.Keys)
			},
		},
		{
			name: "duration override - api.refresh_interval",
			envVars: map[string]string{
				"MLBOARD_API_REFRESH_INTERVAL": "1m30s",
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 90*time.Second, cfg.API.RefreshInterval)
			},
		},
		{
			name: "nested field override - api.server.rate_limit",
			envVars: map[string]string{
				"MLBOARD_API_SERVER_RATE_LIMIT_ENABLED":             "true",
				"MLBOARD_API_SERVER_RATE_LIMIT_REQUESTS_PER_MINUTE": "30",
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.True(t, cfg.API.Server.RateLimit.Enabled)
				assert.Equal(t, 30, cfg.API.Server.RateLimit.RequestsPerMinute)
			},
		},
		{
			name: "key absent from file - preferences.database.postgres.host",
			envVars: map[string]string{
				"MLBOARD_PREFERENCES_DATABASE_DRIVER":        "postgres",
				"MLBOARD_PREFERENCES_DATABASE_POSTGRES_HOST": "db.internal",
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "postgres", cfg.Preferences.Database.Driver)
				assert.Equal(t, "db.internal", cfg.Preferences.Database.Postgres.Host)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			cfg, err := Load(configPath)
			require.NoError(t, err)

			tt.validate(t, cfg)
		})
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
sources:
  - name: /remote//runs/
    http:
      url: http://board.example.com
  - local:
      path: /data/tree.json
  - name: archive
    s3:
      bucket: experiments
      key: snapshots/tree.json
`))
	require.NoError(t, err)

	assert.Equal(t, DefaultLogLevel, cfg.Global.LogLevel)
	assert.Equal(t, DefaultFetchConcurrency, cfg.Loader.Concurrency)
	assert.False(t, cfg.Tree.Strict)
	assert.Equal(t, search.DefaultOptions(), cfg.Search)
	assert.Equal(t, DefaultListen, cfg.API.Server.Listen)
	assert.Zero(t, cfg.API.RefreshInterval)
	assert.Equal(t, DefaultDatabaseDriver, cfg.Preferences.Database.Driver)
	assert.Equal(t, DefaultSQLitePath, cfg.Preferences.Database.SQLite.Path)

	require.Len(t, cfg.Sources, 3)

	remote := cfg.Sources[0]
	assert.Equal(t, "remote/runs", remote.Name)
	assert.Equal(t, "http", remote.Backend())
	assert.Equal(t, DefaultHTTPTimeout, remote.HTTP.Timeout)
	require.NotNil(t, remote.HTTP.Retries)
	assert.Equal(t, DefaultHTTPRetries, *remote.HTTP.Retries)
	assert.Equal(t, "http://board.example.com/_api/all", remote.HTTP.TreeURL())

	assert.Equal(t, "", cfg.Sources[1].Name)
	assert.Equal(t, "local", cfg.Sources[1].Backend())

	assert.Equal(t, "s3", cfg.Sources[2].Backend())
	assert.Equal(t, DefaultS3Region, cfg.Sources[2].S3.Region)

	require.NoError(t, cfg.Validate())
}

func TestLoad_MergesFiles(t *testing.T) {
	base := writeConfig(t, `
global:
  log_level: warn
sources:
  - local:
      path: /data/tree.json
search:
  distance: 20
`)
	override := writeConfig(t, `
global:
  log_level: debug
search:
  threshold: 0.3
`)

	cfg, err := Load(base, override)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Global.LogLevel)
	assert.Equal(t, 20, cfg.Search.Distance)
	assert.InDelta(t, 0.3, cfg.Search.Threshold, 1e-9)
	require.Len(t, cfg.Sources, 1)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestLoad_HTTPSourceOptions(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
sources:
  - name: remote
    http:
      url: https://board.example.com/custom/tree
      timeout: 5s
      retries: 0
      retry_backoff: 2s
      headers:
        Authorization: Bearer token
`))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	h := cfg.Sources[0].HTTP
	assert.Equal(t, 5*time.Second, h.Timeout)
	require.NotNil(t, h.Retries)
	assert.Zero(t, *h.Retries)
	assert.Equal(t, 2*time.Second, h.RetryBackoff)
	assert.Equal(t, "https://board.example.com/custom/tree", h.TreeURL())
	assert.Len(t, h.Headers, 1)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg, err := Load(writeConfig(t, `
sources:
  - local:
      path: /data/tree.json
`))
		require.NoError(t, err)

		return cfg
	}

	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{
			name:   "bad log level",
			mutate: func(c *Config) { c.Global.LogLevel = "loud" },
		},
		{
			name:   "no sources",
			mutate: func(c *Config) { c.Sources = nil },
		},
		{
			name: "source without backend",
			mutate: func(c *Config) {
				c.Sources = []SourceConfig{{Name: "x"}}
			},
		},
		{
			name: "source with two backends",
			mutate: func(c *Config) {
				c.Sources[0].S3 = &S3SourceConfig{Bucket: "b", Key: "k"}
			},
		},
		{
			name: "reserved mount prefix",
			mutate: func(c *Config) {
				c.Sources[0].Name = "_api"
			},
		},
		{
			name: "duplicate mount prefix",
			mutate: func(c *Config) {
				c.Sources = append(c.Sources, c.Sources[0])
			},
		},
		{
			name: "http source without scheme",
			mutate: func(c *Config) {
				c.Sources = []SourceConfig{{HTTP: &HTTPSourceConfig{URL: "board.example.com"}}}
			},
		},
		{
			name: "s3 source without key",
			mutate: func(c *Config) {
				c.Sources = []SourceConfig{{S3: &S3SourceConfig{Bucket: "b"}}}
			},
		},
		{
			name:   "zero concurrency",
			mutate: func(c *Config) { c.Loader.Concurrency = 0 },
		},
		{
			name:   "bad search options",
			mutate: func(c *Config) { c.Search.Threshold = 2 },
		},
		{
			name:   "empty listen address",
			mutate: func(c *Config) { c.API.Server.Listen = "" },
		},
		{
			name:   "unknown database driver",
			mutate: func(c *Config) { c.Preferences.Database.Driver = "oracle" },
		},
		{
			name:   "mysql without host",
			mutate: func(c *Config) { c.Preferences.Database.Driver = "mysql" },
		},
		{
			name: "snapshot with two destinations",
			mutate: func(c *Config) {
				c.Snapshot.Local = &LocalSnapshotConfig{Path: "/out/tree.json"}
				c.Snapshot.S3 = &S3SourceConfig{Bucket: "b", Key: "k"}
			},
		},
		{
			name: "snapshot with bad owner",
			mutate: func(c *Config) {
				c.Snapshot.Local = &LocalSnapshotConfig{Path: "/out/tree.json", Owner: "root"}
			},
		},
		{
			name: "snapshot s3 without bucket",
			mutate: func(c *Config) {
				c.Snapshot.S3 = &S3SourceConfig{Key: "k"}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}
}

func TestLoad_Snapshot(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
sources:
  - local:
      path: /data/tree.json
snapshot:
  s3:
    bucket: experiments
    key: merged/tree.json
`))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.True(t, cfg.Snapshot.Configured())
	assert.Nil(t, cfg.Snapshot.Local)
	require.NotNil(t, cfg.Snapshot.S3)
	assert.Equal(t, "experiments", cfg.Snapshot.S3.Bucket)
	assert.Equal(t, DefaultS3Region, cfg.Snapshot.S3.Region)

	cfg, err = Load(writeConfig(t, `
sources:
  - local:
      path: /data/tree.json
snapshot:
  local:
    path: /out/tree.json
    owner: "1000:1000"
`))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	require.NotNil(t, cfg.Snapshot.Local)
	assert.Equal(t, "1000:1000", cfg.Snapshot.Local.Owner)
}

func TestMySQLConfig_DSN(t *testing.T) {
	c := MySQLConfig{
		Host:     "db.internal",
		Port:     3306,
		User:     "board",
		Password: "secret",
		Database: "mlboard",
	}

	assert.Equal(t,
		"board:secret@tcp(db.internal:3306)/mlboard?charset=utf8mb4&parseTime=True&loc=Local",
		c.DSN(),
	)

	c.Charset = "latin1"
	assert.Contains(t, c.DSN(), "charset=latin1&")
}

func TestNormalizeMountPrefix(t *testing.T) {
	tests := map[string]string{
		"":           "",
		"/":          "",
		"runs":       "runs",
		"/runs/":     "runs",
		"a//b\\\\c/": "a/b/c",
	}

	for in, expected := range tests {
		assert.Equal(t, expected, NormalizeMountPrefix(in), in)
	}
}
