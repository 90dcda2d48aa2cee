package connection

import (
	"errors"
	"fmt"
	"net"
	"sort"
	"sync"
	"time"
)

// ErrMaxConnectionsReached is returned when the station limit is hit
var ErrMaxConnectionsReached = errors.New("maximum connections reached")

// Station holds information about a connected monitoring station
type Station struct {
	ConnectionID string
	StationID    string
	Location     string
	ConnectedAt  time.Time
	Conn         net.Conn

	mu            sync.RWMutex
	lastHeardFrom time.Time
	readings      int
}

func (s *Station) touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastHeardFrom = time.Now()
}

func (s *Station) recordReading() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastHeardFrom = time.Now()
	s.readings++
}

// Info is a point-in-time view of a station
func (s *Station) Info() StationInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	info := StationInfo{
		ConnectionID:     s.ConnectionID,
		StationID:        s.StationID,
		Location:         s.Location,
		ConnectedAt:      s.ConnectedAt,
		LastHeardFrom:    s.lastHeardFrom,
		ReadingsAccepted: s.readings,
	}
	if s.Conn != nil {
		info.RemoteAddr = s.Conn.RemoteAddr().String()
	}
	return info
}

// StationInfo is the serialisable view of a station
type StationInfo struct {
	ConnectionID     string    `json:"connectionId"`
	StationID        string    `json:"stationId"`
	Location         string    `json:"location"`
	RemoteAddr       string    `json:"remoteAddr,omitempty"`
	ConnectedAt      time.Time `json:"connectedAt"`
	LastHeardFrom    time.Time `json:"lastHeardFrom"`
	ReadingsAccepted int       `json:"readingsAccepted"`
}

// Manager tracks connected stations
type Manager struct {
	stations   map[string]*Station // key: connection_id
	byLocation map[string][]string // key: location, value: []connection_id
	mu         sync.RWMutex
	maxConns   int
}

// NewManager creates a new connection manager
func NewManager(maxConnections int) *Manager {
	return &Manager{
		stations:   make(map[string]*Station),
		byLocation: make(map[string][]string),
		maxConns:   maxConnections,
	}
}

// Register adds a newly identified station
func (m *Manager) Register(connectionID, stationID, location string, conn net.Conn) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.stations) >= m.maxConns {
		return ErrMaxConnectionsReached
	}

	if _, exists := m.stations[connectionID]; exists {
		return fmt.Errorf("connection ID %s already registered", connectionID)
	}

	now := time.Now()
	m.stations[connectionID] = &Station{
		ConnectionID:  connectionID,
		StationID:     stationID,
		Location:      location,
		ConnectedAt:   now,
		Conn:          conn,
		lastHeardFrom: now,
	}
	m.byLocation[location] = append(m.byLocation[location], connectionID)

	return nil
}

// Unregister removes a station
func (m *Manager) Unregister(connectionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	station, exists := m.stations[connectionID]
	if !exists {
		return fmt.Errorf("connection ID %s not found", connectionID)
	}

	location := station.Location
	connIDs := m.byLocation[location]
	for i, id := range connIDs {
		if id == connectionID {
			m.byLocation[location] = append(connIDs[:i], connIDs[i+1:]...)
			break
		}
	}
	if len(m.byLocation[location]) == 0 {
		delete(m.byLocation, location)
	}

	delete(m.stations, connectionID)
	return nil
}

// Get retrieves a station by connection ID
func (m *Manager) Get(connectionID string) (*Station, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	station, exists := m.stations[connectionID]
	return station, exists
}

// UpdateActivity marks a station as heard from now
func (m *Manager) UpdateActivity(connectionID string) error {
	station, ok := m.Get(connectionID)
	if !ok {
		return fmt.Errorf("connection ID %s not found", connectionID)
	}
	station.touch()
	return nil
}

// RecordReading counts an accepted reading for a station
func (m *Manager) RecordReading(connectionID string) error {
	station, ok := m.Get(connectionID)
	if !ok {
		return fmt.Errorf("connection ID %s not found", connectionID)
	}
	station.recordReading()
	return nil
}

// Count returns the number of connected stations
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.stations)
}

// CountByLocation returns the number of connected stations per location
func (m *Manager) CountByLocation() map[string]int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make(map[string]int, len(m.byLocation))
	for location, connIDs := range m.byLocation {
		result[location] = len(connIDs)
	}
	return result
}

// Snapshot lists connected stations ordered by location, then connect time
func (m *Manager) Snapshot() []StationInfo {
	m.mu.RLock()
	stations := make([]*Station, 0, len(m.stations))
	for _, s := range m.stations {
		stations = append(stations, s)
	}
	m.mu.RUnlock()

	infos := make([]StationInfo, 0, len(stations))
	for _, s := range stations {
		infos = append(infos, s.Info())
	}
	sort.Slice(infos, func(i, j int) bool {
		if infos[i].Location != infos[j].Location {
			return infos[i].Location < infos[j].Location
		}
		return infos[i].ConnectedAt.Before(infos[j].ConnectedAt)
	})
	return infos
}

// Stats returns statistics about the connection manager
func (m *Manager) Stats() ManagerStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return ManagerStats{
		TotalConnections: len(m.stations),
		UniqueLocations:  len(m.byLocation),
		MaxConnections:   m.maxConns,
	}
}

// ManagerStats contains statistics about the connection manager
type ManagerStats struct {
	TotalConnections int
	UniqueLocations  int
	MaxConnections   int
}
