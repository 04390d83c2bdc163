package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCmd(t *testing.T, srv *httptest.Server, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--server", srv.URL}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestQueueCommand(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/match/queue", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]string{"matchId": "m-9"})
	}))
	defer srv.Close()

	out, err := runCmd(t, srv, "queue", "alice")
	require.NoError(t, err)
	assert.Contains(t, out, "matched: m-9")
}

func TestPositionCommand_Unranked(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("-1"))
	}))
	defer srv.Close()

	out, err := runCmd(t, srv, "position", "ghost")
	require.NoError(t, err)
	assert.Contains(t, out, "ghost is not ranked")
}

func TestSubmitCommand_RequiresWPM(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := runCmd(t, srv, "submit", "alice")
	require.Error(t, err)
}

func TestRoomCommand_ServerError(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := runCmd(t, srv, "room", "m-1", "--attempts", "2")
	require.Error(t, err)
	assert.Equal(t, 2, calls)
}
