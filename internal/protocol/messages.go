package protocol

import (
	"encoding/json"
	"fmt"
	"strings"
)

// MessageType represents the type of message
type MessageType string

const (
	// Station to Server
	MsgTypeIdentify  MessageType = "identify"
	MsgTypeReading   MessageType = "reading"
	MsgTypeKeepalive MessageType = "keepalive"

	// Server to Station
	MsgTypeAck MessageType = "ack"
)

// BaseMessage is the common structure for all messages
type BaseMessage struct {
	Type MessageType `json:"type"`
}

// IdentifyMessage is sent by a station on connection
type IdentifyMessage struct {
	Type      MessageType `json:"type"`
	Location  string      `json:"location"`
	StationID string      `json:"station_id"`
}

// ReadingData is one set of sensor values as sent over the wire. Every
// parameter must be present; Location is optional and falls back to the
// station's identified location.
type ReadingData struct {
	Location        string   `json:"location,omitempty"`
	PH              *float64 `json:"ph"`
	Turbidity       *float64 `json:"turbidity"`
	Temperature     *float64 `json:"temperature"`
	DissolvedOxygen *float64 `json:"dissolvedOxygen"`
	TotalColiform   *float64 `json:"totalColiform"`
	EColi           *float64 `json:"ecoli"`
	Chlorine        *float64 `json:"chlorine"`
}

// Missing lists the parameters absent from the payload
func (d *ReadingData) Missing() []string {
	var missing []string
	fields := []struct {
		name  string
		value *float64
	}{
		{"ph", d.PH},
		{"turbidity", d.Turbidity},
		{"temperature", d.Temperature},
		{"dissolvedOxygen", d.DissolvedOxygen},
		{"totalColiform", d.TotalColiform},
		{"ecoli", d.EColi},
		{"chlorine", d.Chlorine},
	}
	for _, f := range fields {
		if f.value == nil {
			missing = append(missing, f.name)
		}
	}
	return missing
}

// ReadingMessage carries one sample from a station
type ReadingMessage struct {
	Type MessageType `json:"type"`
	Data ReadingData `json:"data"`
}

// KeepaliveMessage is sent by a station between readings
type KeepaliveMessage struct {
	Type MessageType `json:"type"`
}

// AckMessage is sent by the server in response to messages
type AckMessage struct {
	Type      MessageType `json:"type"`
	Status    string      `json:"status"`
	ReadingID string      `json:"reading_id,omitempty"`
	Error     string      `json:"error,omitempty"`
}

// AckStatus constants
const (
	AckStatusIdentified = "identified"
	AckStatusAccepted   = "accepted"
	AckStatusAlive      = "alive"
	AckStatusError      = "error"
)

// ParseMessage parses a JSON line into the appropriate message type
func ParseMessage(data []byte) (interface{}, error) {
	var base BaseMessage
	if err := json.Unmarshal(data, &base); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}

	switch base.Type {
	case MsgTypeIdentify:
		var msg IdentifyMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("invalid identify message: %w", err)
		}
		if err := validateIdentify(&msg); err != nil {
			return nil, err
		}
		return &msg, nil

	case MsgTypeReading:
		var msg ReadingMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("invalid reading message: %w", err)
		}
		if missing := msg.Data.Missing(); len(missing) > 0 {
			return nil, fmt.Errorf("reading is missing %s", strings.Join(missing, ", "))
		}
		return &msg, nil

	case MsgTypeKeepalive:
		return &KeepaliveMessage{Type: MsgTypeKeepalive}, nil

	default:
		return nil, fmt.Errorf("unknown message type: %s", base.Type)
	}
}

func validateIdentify(msg *IdentifyMessage) error {
	if strings.TrimSpace(msg.Location) == "" {
		return fmt.Errorf("location is required")
	}
	if msg.StationID == "" {
		return fmt.Errorf("station_id is required")
	}
	return nil
}

// EncodeMessage encodes a message to JSON
func EncodeMessage(msg interface{}) ([]byte, error) {
	return json.Marshal(msg)
}

// NewAckMessage creates a new acknowledgment message
func NewAckMessage(status string) *AckMessage {
	return &AckMessage{
		Type:   MsgTypeAck,
		Status: status,
	}
}

// NewErrorAck reports a rejected message back to the station
func NewErrorAck(err error) *AckMessage {
	return &AckMessage{
		Type:   MsgTypeAck,
		Status: AckStatusError,
		Error:  err.Error(),
	}
}
