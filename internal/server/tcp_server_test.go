package server

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/smukkama/water-quality-server/internal/connection"
	"github.com/smukkama/water-quality-server/internal/monitoring"
	"github.com/smukkama/water-quality-server/internal/protocol"
	"github.com/smukkama/water-quality-server/internal/scheduler"
	"github.com/smukkama/water-quality-server/pkg/config"
)

type fakeSubmitter struct {
	mu     sync.Mutex
	inputs []monitoring.ReadingInput
	err    error
}

func (f *fakeSubmitter) SubmitReading(_ context.Context, in monitoring.ReadingInput) (uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return uuid.Nil, f.err
	}
	f.inputs = append(f.inputs, in)
	return uuid.New(), nil
}

func startTestServer(t *testing.T, submitter ReadingSubmitter, inactivity time.Duration) (*TCPServer, *connection.Manager) {
	t.Helper()

	sched := scheduler.New()
	sched.Start()

	manager := connection.NewManager(10)
	cfg := &config.TCPServerConfig{
		Port:              0,
		MaxConnections:    10,
		IdentifyTimeout:   time.Second,
		InactivityTimeout: inactivity,
	}

	srv := NewTCPServer(cfg, manager, sched, submitter, zap.NewNop())
	require.NoError(t, srv.Start())
	t.Cleanup(func() {
		srv.Stop()
		sched.Stop()
	})
	return srv, manager
}

type stationClient struct {
	conn   net.Conn
	reader *bufio.Reader
}

func dial(t *testing.T, srv *TCPServer) *stationClient {
	t.Helper()
	conn, err := net.Dial("tcp", srv.Addr().String())
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return &stationClient{conn: conn, reader: bufio.NewReader(conn)}
}

func (c *stationClient) send(t *testing.T, line string) *protocol.AckMessage {
	t.Helper()
	_, err := c.conn.Write([]byte(line + "\n"))
	require.NoError(t, err)

	c.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	reply, err := c.reader.ReadString('\n')
	require.NoError(t, err)

	var ack protocol.AckMessage
	require.NoError(t, json.Unmarshal([]byte(reply), &ack))
	return &ack
}

const readingLine = `{"type":"reading","data":{"ph":7.1,"turbidity":2.5,"temperature":24,"dissolvedOxygen":8,"totalColiform":0,"ecoli":0,"chlorine":1.1}}`

func TestTCPServer_IdentifyAndSubmit(t *testing.T) {
	submitter := &fakeSubmitter{}
	srv, manager := startTestServer(t, submitter, time.Minute)
	client := dial(t, srv)

	ack := client.send(t, `{"type":"identify","location":"Well 3","station_id":"st-1"}`)
	assert.Equal(t, protocol.AckStatusIdentified, ack.Status)

	ack = client.send(t, readingLine)
	assert.Equal(t, protocol.AckStatusAccepted, ack.Status)
	_, err := uuid.Parse(ack.ReadingID)
	assert.NoError(t, err)

	ack = client.send(t, `{"type":"keepalive"}`)
	assert.Equal(t, protocol.AckStatusAlive, ack.Status)

	submitter.mu.Lock()
	require.Len(t, submitter.inputs, 1)
	assert.Equal(t, "Well 3", submitter.inputs[0].Location, "location falls back to the identified one")
	assert.Equal(t, 7.1, submitter.inputs[0].PH)
	submitter.mu.Unlock()

	stations := manager.Snapshot()
	require.Len(t, stations, 1)
	assert.Equal(t, "st-1", stations[0].StationID)
	assert.Equal(t, 1, stations[0].ReadingsAccepted)
}

func TestTCPServer_RejectsBadMessages(t *testing.T) {
	submitter := &fakeSubmitter{}
	srv, _ := startTestServer(t, submitter, time.Minute)
	client := dial(t, srv)

	client.send(t, `{"type":"identify","location":"Well 3","station_id":"st-1"}`)

	ack := client.send(t, `{"type":"reading","data":{"ph":7.1}}`)
	assert.Equal(t, protocol.AckStatusError, ack.Status)
	assert.Contains(t, ack.Error, "turbidity")

	ack = client.send(t, `not json`)
	assert.Equal(t, protocol.AckStatusError, ack.Status)

	submitter.mu.Lock()
	submitter.err = errors.New("invalid reading: ph must be between 0 and 14")
	submitter.mu.Unlock()
	ack = client.send(t, readingLine)
	assert.Equal(t, protocol.AckStatusError, ack.Status)
	assert.Contains(t, ack.Error, "ph must be")
}

func TestTCPServer_RequiresIdentifyFirst(t *testing.T) {
	srv, manager := startTestServer(t, &fakeSubmitter{}, time.Minute)
	client := dial(t, srv)

	ack := client.send(t, readingLine)
	assert.Equal(t, protocol.AckStatusError, ack.Status)
	assert.Contains(t, ack.Error, "expected identify")
	assert.Equal(t, 0, manager.Count())
}

func TestTCPServer_InactivityTimeout(t *testing.T) {
	srv, manager := startTestServer(t, &fakeSubmitter{}, 100*time.Millisecond)
	client := dial(t, srv)

	client.send(t, `{"type":"identify","location":"Well 3","station_id":"st-1"}`)
	assert.Equal(t, 1, manager.Count())

	client.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, err := client.reader.ReadString('\n')
	assert.Error(t, err, "server closes idle stations")

	assert.Eventually(t, func() bool { return manager.Count() == 0 }, time.Second, 10*time.Millisecond)
}
