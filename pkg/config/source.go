package config

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"
)

const (
	// DefaultHTTPTimeout is the default per-attempt timeout of HTTP sources.
	DefaultHTTPTimeout = 30 * time.Second

	// DefaultHTTPRetries is the default number of retries of HTTP sources.
	DefaultHTTPRetries = 1

	// DefaultHTTPRetryBackoff is the default pause before a retry.
	DefaultHTTPRetryBackoff = 500 * time.Millisecond

	// DefaultTreeEndpoint is the path requested when an HTTP source URL
	// carries no path of its own.
	DefaultTreeEndpoint = "/_api/all"

	// DefaultS3Region is used when an S3 source sets no region.
	DefaultS3Region = "us-east-1"

	// reservedPrefix cannot be used as a mount prefix.
	reservedPrefix = "_api"
)

// SourceConfig describes one experiment tree and where it is mounted.
// Exactly one backend must be set.
type SourceConfig struct {
	// Name is the mount prefix of the tree. Empty mounts at the root.
	Name  string             `yaml:"name" mapstructure:"name"`
	HTTP  *HTTPSourceConfig  `yaml:"http,omitempty" mapstructure:"http"`
	Local *LocalSourceConfig `yaml:"local,omitempty" mapstructure:"local"`
	S3    *S3SourceConfig    `yaml:"s3,omitempty" mapstructure:"s3"`
}

// HTTPSourceConfig fetches the tree from a board HTTP endpoint.
type HTTPSourceConfig struct {
	URL          string            `yaml:"url" mapstructure:"url"`
	Timeout      time.Duration     `yaml:"timeout,omitempty" mapstructure:"timeout"`
	Retries      *int              `yaml:"retries,omitempty" mapstructure:"retries"`
	RetryBackoff time.Duration     `yaml:"retry_backoff,omitempty" mapstructure:"retry_backoff"`
	Headers      map[string]string `yaml:"headers,omitempty" mapstructure:"headers"`
}

// LocalSourceConfig reads a tree snapshot from a local JSON file.
type LocalSourceConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// S3SourceConfig reads a tree snapshot object from S3-compatible storage.
type S3SourceConfig struct {
	EndpointURL     string `yaml:"endpoint_url,omitempty" mapstructure:"endpoint_url"`
	Region          string `yaml:"region,omitempty" mapstructure:"region"`
	Bucket          string `yaml:"bucket" mapstructure:"bucket"`
	Key             string `yaml:"key" mapstructure:"key"`
	AccessKeyID     string `yaml:"access_key_id,omitempty" mapstructure:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key,omitempty" mapstructure:"secret_access_key"`
	ForcePathStyle  bool   `yaml:"force_path_style" mapstructure:"force_path_style"`
}

// Backend returns the name of the configured backend, or "" if none is.
func (s *SourceConfig) Backend() string {
	switch {
	case s.HTTP != nil:
		return "http"
	case s.Local != nil:
		return "local"
	case s.S3 != nil:
		return "s3"
	default:
		return ""
	}
}

func (s *SourceConfig) applyDefaults() {
	s.Name = NormalizeMountPrefix(s.Name)

	if s.HTTP != nil {
		if s.HTTP.Timeout == 0 {
			s.HTTP.Timeout = DefaultHTTPTimeout
		}

		if s.HTTP.Retries == nil {
			retries := DefaultHTTPRetries
			s.HTTP.Retries = &retries
		}

		if s.HTTP.RetryBackoff == 0 {
			s.HTTP.RetryBackoff = DefaultHTTPRetryBackoff
		}
	}

	if s.S3 != nil && s.S3.Region == "" {
		s.S3.Region = DefaultS3Region
	}
}

// Validate checks a single source.
func (s *SourceConfig) Validate() error {
	if s.Name == reservedPrefix {
		return fmt.Errorf("mount prefix %q is reserved", "/"+reservedPrefix)
	}

	backends := 0
	for _, set := range []bool{s.HTTP != nil, s.Local != nil, s.S3 != nil} {
		if set {
			backends++
		}
	}

	if backends != 1 {
		return errors.New("exactly one of http, local or s3 must be set")
	}

	switch {
	case s.HTTP != nil:
		u, err := url.Parse(s.HTTP.URL)
		if err != nil {
			return fmt.Errorf("http.url: %w", err)
		}

		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("http.url: unsupported scheme %q", u.Scheme)
		}

		if s.HTTP.Retries != nil && *s.HTTP.Retries < 0 {
			return errors.New("http.retries must not be negative")
		}
	case s.Local != nil:
		if s.Local.Path == "" {
			return errors.New("local.path is required")
		}
	case s.S3 != nil:
		if s.S3.Bucket == "" {
			return errors.New("s3.bucket is required")
		}

		if s.S3.Key == "" {
			return errors.New("s3.key is required")
		}
	}

	return nil
}

// TreeURL returns the URL requested by an HTTP source, adding the default
// tree endpoint when the configured URL has no path.
func (h *HTTPSourceConfig) TreeURL() string {
	u, err := url.Parse(h.URL)
	if err != nil || strings.Trim(u.Path, "/") != "" {
		return h.URL
	}

	u.Path = DefaultTreeEndpoint

	return u.String()
}

var slashRuns = regexp.MustCompile(`[/\\]+`)

// NormalizeMountPrefix collapses repeated separators and strips leading
// and trailing ones, so "/a//b/" becomes "a/b".
func NormalizeMountPrefix(prefix string) string {
	return strings.Trim(slashRuns.ReplaceAllString(prefix, "/"), "/")
}
