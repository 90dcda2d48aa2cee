package server

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/smukkama/water-quality-server/internal/connection"
	"github.com/smukkama/water-quality-server/internal/monitoring"
	"github.com/smukkama/water-quality-server/internal/protocol"
	"github.com/smukkama/water-quality-server/internal/scheduler"
	"github.com/smukkama/water-quality-server/pkg/config"
)

// ReadingSubmitter accepts readings from stations
type ReadingSubmitter interface {
	SubmitReading(ctx context.Context, in monitoring.ReadingInput) (uuid.UUID, error)
}

// TCPServer accepts newline-delimited JSON from monitoring stations
type TCPServer struct {
	config      *config.TCPServerConfig
	connManager *connection.Manager
	scheduler   *scheduler.Scheduler
	submitter   ReadingSubmitter
	logger      *zap.Logger
	listener    net.Listener
	wg          sync.WaitGroup
	stopCh      chan struct{}
	ctx         context.Context
	cancel      context.CancelFunc
}

// NewTCPServer creates a new TCP server
func NewTCPServer(
	cfg *config.TCPServerConfig,
	connManager *connection.Manager,
	sched *scheduler.Scheduler,
	submitter ReadingSubmitter,
	logger *zap.Logger,
) *TCPServer {
	ctx, cancel := context.WithCancel(context.Background())
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TCPServer{
		config:      cfg,
		connManager: connManager,
		scheduler:   sched,
		submitter:   submitter,
		logger:      logger,
		stopCh:      make(chan struct{}),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start starts the TCP server
func (s *TCPServer) Start() error {
	addr := fmt.Sprintf(":%d", s.config.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to start TCP server: %w", err)
	}

	s.listener = listener
	s.logger.Info("TCP server listening", zap.String("addr", listener.Addr().String()))

	s.wg.Add(1)
	go s.acceptConnections()

	return nil
}

// Addr returns the listening address once started
func (s *TCPServer) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop closes the listener and every station connection, then waits
func (s *TCPServer) Stop() {
	close(s.stopCh)
	s.cancel()

	if s.listener != nil {
		s.listener.Close()
	}
	for _, info := range s.connManager.Snapshot() {
		if station, ok := s.connManager.Get(info.ConnectionID); ok && station.Conn != nil {
			station.Conn.Close()
		}
	}

	s.wg.Wait()
	s.logger.Info("TCP server stopped")
}

func (s *TCPServer) acceptConnections() {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.stopCh:
				return
			default:
				s.logger.Warn("Failed to accept connection", zap.Error(err))
				continue
			}
		}

		if s.connManager.Count() >= s.config.MaxConnections {
			s.logger.Warn("Maximum connections reached, rejecting connection",
				zap.String("remote_addr", conn.RemoteAddr().String()))
			conn.Close()
			continue
		}

		s.wg.Add(1)
		go s.handleConnection(conn)
	}
}

func (s *TCPServer) handleConnection(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	connectionID := uuid.New().String()
	log := s.logger.With(zap.String("connection_id", connectionID))
	log.Debug("New connection", zap.String("remote_addr", conn.RemoteAddr().String()))

	conn.SetReadDeadline(time.Now().Add(s.config.IdentifyTimeout))

	reader := bufio.NewReader(conn)
	line, err := reader.ReadString('\n')
	if err != nil {
		log.Warn("Failed to read identify message", zap.Error(err))
		return
	}

	msg, err := protocol.ParseMessage([]byte(line))
	if err != nil {
		log.Warn("Failed to parse identify message", zap.Error(err))
		s.sendMessage(conn, protocol.NewErrorAck(err))
		return
	}

	identify, ok := msg.(*protocol.IdentifyMessage)
	if !ok {
		s.sendMessage(conn, protocol.NewErrorAck(errors.New("expected identify message")))
		return
	}

	if err := s.connManager.Register(connectionID, identify.StationID, identify.Location, conn); err != nil {
		log.Warn("Failed to register station", zap.Error(err))
		s.sendMessage(conn, protocol.NewErrorAck(err))
		return
	}
	defer s.connManager.Unregister(connectionID)
	defer s.scheduler.Cancel(inactivityTimerID(connectionID))

	log = log.With(zap.String("station_id", identify.StationID), zap.String("location", identify.Location))
	log.Info("Station identified")

	if err := s.sendMessage(conn, protocol.NewAckMessage(protocol.AckStatusIdentified)); err != nil {
		log.Warn("Failed to send ack", zap.Error(err))
		return
	}

	s.scheduleInactivityTimer(connectionID)

	for {
		select {
		case <-s.stopCh:
			return
		default:
		}

		conn.SetReadDeadline(time.Now().Add(30 * time.Second))
		line, err := reader.ReadString('\n')
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				continue
			}
			log.Info("Connection closed", zap.Error(err))
			return
		}

		reply := s.handleMessage(connectionID, identify, []byte(line), log)
		if err := s.sendMessage(conn, reply); err != nil {
			log.Warn("Failed to send reply", zap.Error(err))
			return
		}

		s.scheduleInactivityTimer(connectionID)
	}
}

func (s *TCPServer) handleMessage(connectionID string, identify *protocol.IdentifyMessage, line []byte, log *zap.Logger) *protocol.AckMessage {
	msg, err := protocol.ParseMessage(line)
	if err != nil {
		log.Warn("Rejected message", zap.Error(err))
		return protocol.NewErrorAck(err)
	}

	switch m := msg.(type) {
	case *protocol.ReadingMessage:
		return s.handleReading(connectionID, identify, m, log)

	case *protocol.KeepaliveMessage:
		s.connManager.UpdateActivity(connectionID)
		return protocol.NewAckMessage(protocol.AckStatusAlive)

	default:
		return protocol.NewErrorAck(fmt.Errorf("unexpected message type: %T", msg))
	}
}

func (s *TCPServer) handleReading(connectionID string, identify *protocol.IdentifyMessage, msg *protocol.ReadingMessage, log *zap.Logger) *protocol.AckMessage {
	if msg.Data.Location == "" {
		msg.Data.Location = identify.Location
	}

	in, err := monitoring.FromData(&msg.Data)
	if err != nil {
		return protocol.NewErrorAck(err)
	}

	id, err := s.submitter.SubmitReading(s.ctx, in)
	if err != nil {
		log.Warn("Reading rejected", zap.Error(err))
		return protocol.NewErrorAck(err)
	}

	s.connManager.RecordReading(connectionID)
	log.Debug("Reading accepted", zap.String("reading_id", id.String()))

	ack := protocol.NewAckMessage(protocol.AckStatusAccepted)
	ack.ReadingID = id.String()
	return ack
}

func (s *TCPServer) sendMessage(conn net.Conn, msg interface{}) error {
	data, err := protocol.EncodeMessage(msg)
	if err != nil {
		return err
	}

	_, err = conn.Write(append(data, '\n'))
	return err
}

func inactivityTimerID(connectionID string) string {
	return "inactivity-" + connectionID
}

func (s *TCPServer) scheduleInactivityTimer(connectionID string) {
	callback := func() {
		station, exists := s.connManager.Get(connectionID)
		if !exists {
			return
		}
		s.logger.Info("Closing inactive station",
			zap.String("connection_id", connectionID),
			zap.String("station_id", station.StationID))

		// Unregister happens in the connection's deferred cleanup
		station.Conn.Close()
	}

	if err := s.scheduler.After(inactivityTimerID(connectionID), s.config.InactivityTimeout, callback); err != nil {
		s.logger.Warn("Failed to schedule inactivity timer", zap.Error(err))
	}
}
