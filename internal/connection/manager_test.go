package connection

import (
	"net"
	"testing"
	"time"
)

type mockAddr struct{}

func (m *mockAddr) Network() string { return "tcp" }
func (m *mockAddr) String() string  { return "10.0.0.7:51234" }

type mockConn struct{}

func (m *mockConn) Read(b []byte) (n int, err error)   { return 0, nil }
func (m *mockConn) Write(b []byte) (n int, err error)  { return len(b), nil }
func (m *mockConn) Close() error                       { return nil }
func (m *mockConn) LocalAddr() net.Addr                { return &mockAddr{} }
func (m *mockConn) RemoteAddr() net.Addr               { return &mockAddr{} }
func (m *mockConn) SetDeadline(t time.Time) error      { return nil }
func (m *mockConn) SetReadDeadline(t time.Time) error  { return nil }
func (m *mockConn) SetWriteDeadline(t time.Time) error { return nil }

func TestManager_Register(t *testing.T) {
	m := NewManager(10)

	if err := m.Register("conn1", "st-1", "Village Reservoir", &mockConn{}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	if m.Count() != 1 {
		t.Errorf("Expected 1 connection, got %d", m.Count())
	}

	station, exists := m.Get("conn1")
	if !exists {
		t.Fatal("Station not found")
	}
	if station.Location != "Village Reservoir" {
		t.Errorf("Expected location Village Reservoir, got %s", station.Location)
	}

	if err := m.Register("conn1", "st-1", "Village Reservoir", &mockConn{}); err == nil {
		t.Error("Expected duplicate connection ID to be rejected")
	}
}

func TestManager_RegisterMaxConnections(t *testing.T) {
	m := NewManager(2)
	conn := &mockConn{}

	m.Register("conn1", "st-1", "Well 1", conn)
	m.Register("conn2", "st-2", "Well 2", conn)

	err := m.Register("conn3", "st-3", "Well 3", conn)
	if err != ErrMaxConnectionsReached {
		t.Errorf("Expected ErrMaxConnectionsReached, got %v", err)
	}
}

func TestManager_Unregister(t *testing.T) {
	m := NewManager(10)
	conn := &mockConn{}

	m.Register("conn1", "st-1", "Well 1", conn)
	m.Register("conn2", "st-2", "Well 1", conn)

	if err := m.Unregister("conn1"); err != nil {
		t.Fatalf("Unregister failed: %v", err)
	}
	if m.Count() != 1 {
		t.Errorf("Expected 1 connection, got %d", m.Count())
	}
	if got := m.CountByLocation()["Well 1"]; got != 1 {
		t.Errorf("Expected 1 connection for Well 1, got %d", got)
	}

	m.Unregister("conn2")
	if _, ok := m.CountByLocation()["Well 1"]; ok {
		t.Error("Expected empty location to be removed")
	}

	if err := m.Unregister("conn2"); err == nil {
		t.Error("Expected error unregistering an unknown connection")
	}
}

func TestManager_RecordReading(t *testing.T) {
	m := NewManager(10)
	m.Register("conn1", "st-1", "Well 1", &mockConn{})

	station, _ := m.Get("conn1")
	first := station.Info().LastHeardFrom

	time.Sleep(10 * time.Millisecond)

	if err := m.RecordReading("conn1"); err != nil {
		t.Fatalf("RecordReading failed: %v", err)
	}
	m.RecordReading("conn1")

	info := station.Info()
	if info.ReadingsAccepted != 2 {
		t.Errorf("Expected 2 readings, got %d", info.ReadingsAccepted)
	}
	if !info.LastHeardFrom.After(first) {
		t.Error("LastHeardFrom was not updated")
	}

	if err := m.UpdateActivity("missing"); err == nil {
		t.Error("Expected error for unknown connection")
	}
}

func TestManager_Snapshot(t *testing.T) {
	m := NewManager(10)
	conn := &mockConn{}

	m.Register("conn1", "st-b", "Well B", conn)
	m.Register("conn2", "st-a", "Well A", conn)

	snapshot := m.Snapshot()
	if len(snapshot) != 2 {
		t.Fatalf("Expected 2 stations, got %d", len(snapshot))
	}
	if snapshot[0].Location != "Well A" || snapshot[1].Location != "Well B" {
		t.Errorf("Expected stations ordered by location, got %s, %s", snapshot[0].Location, snapshot[1].Location)
	}
	if snapshot[0].RemoteAddr != "10.0.0.7:51234" {
		t.Errorf("Unexpected remote address %s", snapshot[0].RemoteAddr)
	}
}

func TestManager_Stats(t *testing.T) {
	m := NewManager(100)
	conn := &mockConn{}

	m.Register("conn1", "st-1", "Well 1", conn)
	m.Register("conn2", "st-2", "Well 1", conn)
	m.Register("conn3", "st-3", "Well 2", conn)

	stats := m.Stats()
	if stats.TotalConnections != 3 {
		t.Errorf("Expected 3 connections, got %d", stats.TotalConnections)
	}
	if stats.UniqueLocations != 2 {
		t.Errorf("Expected 2 unique locations, got %d", stats.UniqueLocations)
	}
	if stats.MaxConnections != 100 {
		t.Errorf("Expected max 100, got %d", stats.MaxConnections)
	}
}
