package radio

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"meshtastic-exporter/internal/meshproto"
)

var ErrAlreadyConfigured = errors.New("stream already configured")

const (
	decodedBuffer = 16

	// disconnectTimeout bounds the goodbye write on a stalled link.
	disconnectTimeout = time.Second
)

type writeDeadliner interface {
	SetWriteDeadline(t time.Time) error
}

// Stream speaks the framed device API over a byte transport. After Configure
// a reader goroutine decodes envelopes onto Decoded until the transport
// fails or is closed, at which point Decoded is closed and Err reports why.
type Stream struct {
	rwc    io.ReadWriteCloser
	wake   bool
	logger *slog.Logger
	reader *meshproto.FrameReader

	decoded chan *meshproto.FromRadio
	done    chan struct{}

	wmu        sync.Mutex
	configured bool

	errMu sync.Mutex
	err   error

	closeOnce sync.Once
	closeErr  error
}

// NewStream wraps rwc. wake sends the serial wake preamble before the
// handshake.
func NewStream(rwc io.ReadWriteCloser, wake bool, logger *slog.Logger) *Stream {
	return &Stream{
		rwc:     rwc,
		wake:    wake,
		logger:  logger,
		reader:  meshproto.NewFrameReader(rwc),
		decoded: make(chan *meshproto.FromRadio, decodedBuffer),
		done:    make(chan struct{}),
	}
}

// Configure performs the want_config handshake and starts reading. It may
// only be called once.
func (s *Stream) Configure(configID uint32) error {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	if s.configured {
		return ErrAlreadyConfigured
	}
	if s.wake {
		if _, err := s.rwc.Write(meshproto.WakeSequence()); err != nil {
			return fmt.Errorf("write wake sequence: %w", err)
		}
	}
	if err := meshproto.WriteToRadio(s.rwc, &meshproto.ToRadio{WantConfigID: configID}); err != nil {
		return fmt.Errorf("send want_config_id: %w", err)
	}
	s.configured = true
	go s.readLoop()
	return nil
}

func (s *Stream) Decoded() <-chan *meshproto.FromRadio { return s.decoded }

// Err is the reason Decoded was closed, or nil while it is open.
func (s *Stream) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

func (s *Stream) Send(m *meshproto.ToRadio) error {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	return meshproto.WriteToRadio(s.rwc, m)
}

// Close sends a best-effort disconnect and closes the transport. Safe to
// call more than once.
func (s *Stream) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		// Set before taking wmu so a Send stuck on a full socket gives up too.
		if d, ok := s.rwc.(writeDeadliner); ok {
			if err := d.SetWriteDeadline(time.Now().Add(disconnectTimeout)); err != nil {
				s.logger.Debug("set disconnect deadline failed", "error", err)
			}
		}
		s.wmu.Lock()
		if s.configured {
			if err := meshproto.WriteToRadio(s.rwc, &meshproto.ToRadio{Disconnect: true}); err != nil {
				s.logger.Debug("disconnect not delivered", "error", err)
			}
		}
		s.wmu.Unlock()
		s.closeErr = s.rwc.Close()
	})
	return s.closeErr
}

func (s *Stream) readLoop() {
	defer close(s.decoded)
	for {
		payload, err := s.reader.ReadFrame()
		if err != nil {
			s.setErr(err)
			return
		}
		m, err := meshproto.UnmarshalFromRadio(payload)
		if err != nil {
			s.logger.Warn("dropping undecodable envelope", "bytes", len(payload), "error", err)
			continue
		}
		select {
		case s.decoded <- m:
		case <-s.done:
			s.setErr(io.ErrClosedPipe)
			return
		}
	}
}

func (s *Stream) setErr(err error) {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	if s.err == nil {
		s.err = err
	}
}
