package cli

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunServer_ServesAndStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ready := make(chan string, 1)
	opts := &RunOptions{
		RootOptions: &RootOptions{
			Format:   "text",
			Database: filepath.Join(t.TempDir(), "paywatch.db"),
			Chain:    newFakeChain("tx-1"),
		},
		Listen: "127.0.0.1:0",
		ready:  ready,
	}

	cmd := &cobra.Command{}
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetContext(ctx)

	done := make(chan error, 1)
	go func() { done <- runServer(opts, cmd) }()

	var addr string
	select {
	case addr = <-ready:
	case err := <-done:
		t.Fatalf("server exited early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not start")
	}

	resp, err := http.Get("http://" + addr + "/healthz")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "ok")

	resp, err = http.Post("http://"+addr+"/operations", "application/json", strings.NewReader(`{}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(15 * time.Second):
		t.Fatal("server did not stop")
	}
	assert.Contains(t, out.String(), "Listening on "+addr)
}

func TestRunServer_BadListenAddress(t *testing.T) {
	opts := &RunOptions{
		RootOptions: &RootOptions{
			Format:   "text",
			Database: filepath.Join(t.TempDir(), "paywatch.db"),
			Chain:    newFakeChain("tx-1"),
		},
		Listen: "256.0.0.1:http-nope",
	}
	cmd := &cobra.Command{}
	cmd.SetContext(context.Background())

	err := runServer(opts, cmd)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
