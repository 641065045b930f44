package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dn51/speedtracker/internal/display"
)

func dialTestServer(t *testing.T, s *DisplayServer) *websocket.Conn {
	t.Helper()

	ts := httptest.NewServer(http.HandlerFunc(s.handleWS))
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestDisplayServer_BroadcastReachesClient(t *testing.T) {
	s := NewDisplayServer(":0", zerolog.Nop())
	conn := dialTestServer(t, s)

	// Wait for the client registration before broadcasting.
	require.Eventually(t, func() bool { return s.clients.Count() == 1 }, time.Second, 5*time.Millisecond)

	s.Broadcast(display.Frame{Phase: "live", ShowSpeed: true, SpeedLimit: 45})

	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)

	var frame display.Frame
	require.NoError(t, json.Unmarshal(payload, &frame))
	assert.Equal(t, "live", frame.Phase)
	assert.Equal(t, 45, frame.SpeedLimit)
}

func TestDisplayServer_NewClientGetsCurrentFrame(t *testing.T) {
	s := NewDisplayServer(":0", zerolog.Nop())
	s.Broadcast(display.Frame{Phase: "awaiting_permission"})

	conn := dialTestServer(t, s)

	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)

	var frame display.Frame
	require.NoError(t, json.Unmarshal(payload, &frame))
	assert.Equal(t, "awaiting_permission", frame.Phase)
}

func TestDisplayServer_ClientCommandsForwarded(t *testing.T) {
	s := NewDisplayServer(":0", zerolog.Nop())

	commands := make(chan Command, 1)
	s.SetCommandHandler(func(cmd Command) { commands <- cmd })

	conn := dialTestServer(t, s)
	require.NoError(t, conn.WriteJSON(Command{Type: CommandSetLimit, Value: 60}))

	select {
	case cmd := <-commands:
		assert.Equal(t, CommandSetLimit, cmd.Type)
		assert.Equal(t, 60, cmd.Value)
	case <-time.After(time.Second):
		t.Fatal("command not forwarded")
	}
}

func TestDisplayServer_StartStop(t *testing.T) {
	s := NewDisplayServer("127.0.0.1:0", zerolog.Nop())

	require.NoError(t, s.Start())
	err := s.Start()
	assert.Error(t, err)

	require.NoError(t, s.Stop())
	err = s.Stop()
	assert.Error(t, err)
}