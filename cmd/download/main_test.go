package main

import (
	"bytes"
	"context"
	"flag"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	assert_ "github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/alanbriolat/resumable-download/internal/session"
)

var content = bytes.Repeat([]byte("resumable"), 4096)

func newServer(t *testing.T) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/file.bin", func(w http.ResponseWriter, r *http.Request) {
		http.ServeContent(w, r, "file.bin", time.Time{}, bytes.NewReader(content))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestGet(t *testing.T) {
	assert := assert_.New(t)
	srv := newServer(t)
	output := filepath.Join(t.TempDir(), "file.bin")
	require.NoError(t, os.WriteFile(output, content[:1000], 0644))

	config := session.DefaultConfig
	err := get(context.Background(), config, srv.URL+"/file.bin", output, script{})
	require.NoError(t, err)
	data, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Equal(content, data)
}

func TestGet_Failure(t *testing.T) {
	srv := newServer(t)
	output := filepath.Join(t.TempDir(), "missing.bin")
	err := get(context.Background(), session.DefaultConfig, srv.URL+"/missing.bin", output, script{})
	require.Error(t, err)
	assert_.ErrorIs(t, err, session.ErrHTTPStatus)
	assert_.Contains(t, err.Error(), "404")
}

func TestGet_ScriptedCancel(t *testing.T) {
	srv := newServer(t)
	output := filepath.Join(t.TempDir(), "file.bin")
	// Paused and never resumed, so only the cancel ends it
	s := script{pauseAfter: time.Nanosecond, cancelAfter: 50 * time.Millisecond}
	config := session.DefaultConfig
	config.ChunkSize = 16
	assert_.NoError(t, get(context.Background(), config, srv.URL+"/file.bin", output, s))
}

func TestScript_Steps(t *testing.T) {
	assert := assert_.New(t)
	ses, err := session.New(context.Background(), session.Config{})
	require.NoError(t, err)
	defer ses.Close()

	names := func(steps []scriptStep) []string {
		var names []string
		for _, step := range steps {
			names = append(names, step.name)
		}
		return names
	}
	assert.Empty(script{}.steps(ses))
	assert.Empty(names(script{resumeAfter: time.Second}.steps(ses)), "resume needs a pause")
	assert.Equal([]string{"pause", "resume", "cancel"},
		names(script{pauseAfter: time.Second, resumeAfter: time.Second, cancelAfter: 5 * time.Second}.steps(ses)))
	assert.Equal([]string{"pause", "cancel", "resume"},
		names(script{pauseAfter: time.Second, resumeAfter: 5 * time.Second, cancelAfter: 2 * time.Second}.steps(ses)))
}

func TestLoadConfig(t *testing.T) {
	assert := assert_.New(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
database: /tmp/history.db
chunk_size: 4096
connect_timeout: 5s
http2: false
user_agent: test/1.0
`), 0644))

	f, err := loadConfig(path)
	require.NoError(t, err)
	assert.Equal("/tmp/history.db", f.Database)
	config := session.DefaultConfig
	f.apply(&config)
	assert.Equal(4096, config.ChunkSize)
	assert.Equal(5*time.Second, config.ConnectTimeout)
	assert.False(config.HTTP2)
	assert.True(config.VerifyTLS, "unset fields keep their defaults")
	assert.Equal("test/1.0", config.UserAgent)

	require.NoError(t, os.WriteFile(path, []byte("chunk_sise: 10\n"), 0644))
	_, err = loadConfig(path)
	assert.Error(err, "unknown fields are rejected")
}

func TestSessionConfig_FlagsOverrideFile(t *testing.T) {
	assert := assert_.New(t)
	set := flag.NewFlagSet("get", flag.ContinueOnError)
	set.Int("chunk-size", session.DefaultConfig.ChunkSize, "")
	set.Bool("insecure", false, "")
	set.String("db", defaultDatabasePath, "")
	require.NoError(t, set.Parse([]string{"-chunk-size", "512", "-insecure"}))
	c := cli.NewContext(cli.NewApp(), set, nil)

	size := 8192
	f := fileConfig{ChunkSize: &size, UserAgent: "file/1.0", Database: "file.db"}
	config := sessionConfig(c, f)
	assert.Equal(512, config.ChunkSize)
	assert.False(config.VerifyTLS)
	assert.Equal("file/1.0", config.UserAgent)
	assert.Equal("file.db", databasePath(c, f))
}

func TestHistoryTable(t *testing.T) {
	assert := assert_.New(t)
	records := []session.TransferRecord{
		{URL: "http://example.com/a", OutputPath: "a", State: session.StateCompleted, DownloadedBytes: 10, TotalBytes: 10},
		{URL: "http://example.com/b", OutputPath: "b", State: session.StateError, Error: "HTTP error: 404"},
	}
	out := historyTable(records, true)
	assert.Contains(out, "http://example.com/a")
	assert.Contains(out, "10/10")
	assert.Contains(out, "HTTP error: 404")
	assert.Contains(out, "|")
}
