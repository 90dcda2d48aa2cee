package live

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/smukkama/water-quality-server/internal/database"
)

func startHub(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub(16, zap.NewNop())
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return hub, srv
}

func connect(t *testing.T, hub *Hub, srv *httptest.Server) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.Eventually(t, func() bool { return hub.ClientCount() > 0 }, time.Second, 5*time.Millisecond)
	return conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn) map[string]json.RawMessage {
	t.Helper()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var frame map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &frame))
	return frame
}

func TestHub_PublishReading(t *testing.T) {
	hub, srv := startHub(t)
	conn := connect(t, hub, srv)

	reading := &database.Reading{ID: uuid.New(), Location: "Well 3", PH: 7.2}
	require.NoError(t, hub.PublishReading(context.Background(), reading))

	frame := readEnvelope(t, conn)
	assert.JSONEq(t, `"reading"`, string(frame["type"]))

	var got database.Reading
	require.NoError(t, json.Unmarshal(frame["payload"], &got))
	assert.Equal(t, reading.ID, got.ID)
	assert.Equal(t, 7.2, got.PH)
}

func TestHub_PublishAlert(t *testing.T) {
	hub, srv := startHub(t)
	conn := connect(t, hub, srv)

	alert := &database.Alert{
		ID:       uuid.New(),
		Type:     database.AlertTypeDiseaseRisk,
		Severity: database.SeverityCritical,
		Message:  "High risk of waterborne disease outbreak detected",
	}
	require.NoError(t, hub.PublishAlert(context.Background(), alert, "Well 3"))

	frame := readEnvelope(t, conn)
	assert.JSONEq(t, `"alert"`, string(frame["type"]))

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(frame["payload"], &got))
	assert.Equal(t, alert.ID.String(), got["id"])
	assert.Equal(t, "critical", got["severity"])
	assert.Equal(t, "Well 3", got["location"])
}

func TestHub_UnregistersClosedClients(t *testing.T) {
	hub, srv := startHub(t)
	conn := connect(t, hub, srv)

	conn.Close()
	assert.Eventually(t, func() bool { return hub.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHub_BacklogFull(t *testing.T) {
	// not running, so nothing drains the backlog
	hub := NewHub(1, zap.NewNop())

	require.NoError(t, hub.PublishReading(context.Background(), &database.Reading{}))
	assert.ErrorIs(t, hub.PublishReading(context.Background(), &database.Reading{}), ErrBacklogFull)
}
