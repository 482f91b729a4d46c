package main

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/alanbriolat/resumable-download/internal/session"
)

const defaultDatabasePath = "download-history.db"

// fileConfig is the YAML configuration file; anything given on the command line takes precedence.
type fileConfig struct {
	Database        string         `yaml:"database"`
	ChunkSize       *int           `yaml:"chunk_size"`
	ConnectTimeout  *time.Duration `yaml:"connect_timeout"`
	HTTP2           *bool          `yaml:"http2"`
	VerifyTLS       *bool          `yaml:"verify_tls"`
	FollowRedirects *bool          `yaml:"follow_redirects"`
	UserAgent       string         `yaml:"user_agent"`
}

func loadConfig(path string) (fileConfig, error) {
	var config fileConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return config, err
	}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&config); err != nil {
		return config, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return config, nil
}

func (f fileConfig) apply(config *session.Config) {
	if f.ChunkSize != nil {
		config.ChunkSize = *f.ChunkSize
	}
	if f.ConnectTimeout != nil {
		config.ConnectTimeout = *f.ConnectTimeout
	}
	if f.HTTP2 != nil {
		config.HTTP2 = *f.HTTP2
	}
	if f.VerifyTLS != nil {
		config.VerifyTLS = *f.VerifyTLS
	}
	if f.FollowRedirects != nil {
		config.FollowRedirects = *f.FollowRedirects
	}
	if f.UserAgent != "" {
		config.UserAgent = f.UserAgent
	}
}

// fileConfigFromContext loads the --config file, if there is one.
func fileConfigFromContext(c *cli.Context) (fileConfig, error) {
	if path := c.String("config"); path != "" {
		return loadConfig(path)
	}
	return fileConfig{}, nil
}

func databasePath(c *cli.Context, f fileConfig) string {
	if !c.IsSet("db") && f.Database != "" {
		return f.Database
	}
	return c.String("db")
}

// sessionConfig layers DefaultConfig, the config file and the command's flags.
func sessionConfig(c *cli.Context, f fileConfig) session.Config {
	config := session.DefaultConfig
	f.apply(&config)
	if c.IsSet("chunk-size") {
		config.ChunkSize = c.Int("chunk-size")
	}
	if c.IsSet("connect-timeout") {
		config.ConnectTimeout = c.Duration("connect-timeout")
	}
	if c.Bool("no-http2") {
		config.HTTP2 = false
	}
	if c.Bool("insecure") {
		config.VerifyTLS = false
	}
	if c.Bool("no-follow") {
		config.FollowRedirects = false
	}
	if c.IsSet("user-agent") {
		config.UserAgent = c.String("user-agent")
	}
	return config
}
