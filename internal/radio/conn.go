package radio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"go.bug.st/serial"

	"meshtastic-exporter/internal/model"
)

var (
	ErrNoConnection = errors.New("no device connection configured")
	ErrNotConnected = errors.New("device transport is not connected")
)

// ConnManager owns the single transport to the device, TCP socket or serial
// port. It is itself an io.ReadWriteCloser over whichever transport is open.
type ConnManager struct {
	mu          sync.RWMutex
	port        io.ReadWriteCloser
	conn        model.Connection
	dialTimeout time.Duration
	logger      *slog.Logger
	openSerial  func(path string, mode *serial.Mode) (serial.Port, error)
}

func NewConnManager(conn model.Connection, dialTimeout time.Duration, logger *slog.Logger) *ConnManager {
	if dialTimeout <= 0 {
		dialTimeout = 10 * time.Second
	}
	return &ConnManager{
		conn:        conn,
		dialTimeout: dialTimeout,
		logger:      logger,
		openSerial:  serial.Open,
	}
}

// Connect opens the transport once. There is no retry: a device that cannot
// be reached at startup is a startup failure.
func (m *ConnManager) Connect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.port != nil {
		return nil
	}

	switch m.conn.Kind {
	case model.ConnectionTCP:
		d := net.Dialer{Timeout: m.dialTimeout, KeepAlive: 30 * time.Second}
		c, err := d.DialContext(ctx, "tcp", m.conn.Address())
		if err != nil {
			return fmt.Errorf("dial %s: %w", m.conn, err)
		}
		m.port = c
	case model.ConnectionSerial:
		p, err := m.openSerial(m.conn.Path, &serial.Mode{
			BaudRate: m.conn.Baud,
			DataBits: 8,
			Parity:   serial.NoParity,
			StopBits: serial.OneStopBit,
		})
		if err != nil {
			return fmt.Errorf("open %s: %w", m.conn, err)
		}
		if err := p.ResetInputBuffer(); err != nil {
			m.logger.Warn("serial input flush failed", "path", m.conn.Path, "error", err)
		}
		m.port = p
	default:
		return ErrNoConnection
	}
	m.logger.Info("device transport connected", "link", m.conn.String())
	return nil
}

func (m *ConnManager) Connected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.port != nil
}

func (m *ConnManager) Connection() model.Connection { return m.conn }

// current never holds the lock across I/O so Close can interrupt a blocked
// Read.
func (m *ConnManager) current() (io.ReadWriteCloser, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.port == nil {
		return nil, ErrNotConnected
	}
	return m.port, nil
}

func (m *ConnManager) Read(b []byte) (int, error) {
	p, err := m.current()
	if err != nil {
		return 0, err
	}
	return p.Read(b)
}

func (m *ConnManager) Write(b []byte) (int, error) {
	p, err := m.current()
	if err != nil {
		return 0, err
	}
	return p.Write(b)
}

// SetWriteDeadline applies to TCP links. Serial ports have no write deadline
// and report nil.
func (m *ConnManager) SetWriteDeadline(t time.Time) error {
	p, err := m.current()
	if err != nil {
		return err
	}
	if d, ok := p.(writeDeadliner); ok {
		return d.SetWriteDeadline(t)
	}
	return nil
}

func (m *ConnManager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.port == nil {
		return nil
	}
	err := m.port.Close()
	m.port = nil
	return err
}
