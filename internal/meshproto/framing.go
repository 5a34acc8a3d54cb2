package meshproto

import (
	"bufio"
	"errors"
	"fmt"
	"io"
)

const (
	frameStart1 = 0x94
	frameStart2 = 0xc3

	// MaxPayloadLen is the largest protobuf payload a frame may carry.
	MaxPayloadLen = 512

	headerLen = 4
	wakeLen   = 32
)

var ErrFrameTooLarge = errors.New("meshproto: frame payload exceeds 512 bytes")

// WakeSequence returns the bytes sent on a serial link before the first
// frame so a sleeping device resynchronises its reader.
func WakeSequence() []byte {
	b := make([]byte, wakeLen)
	for i := range b {
		b[i] = frameStart2
	}
	return b
}

// EncodeFrame prefixes payload with the stream header.
func EncodeFrame(payload []byte) ([]byte, error) {
	if len(payload) > MaxPayloadLen {
		return nil, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(payload))
	}
	out := make([]byte, 0, headerLen+len(payload))
	out = append(out, frameStart1, frameStart2, byte(len(payload)>>8), byte(len(payload)))
	return append(out, payload...), nil
}

// FrameReader extracts frame payloads from a device byte stream. Bytes
// outside a frame (the device debug console shares the stream) are counted
// and dropped.
type FrameReader struct {
	r       *bufio.Reader
	skipped uint64
}

func NewFrameReader(r io.Reader) *FrameReader {
	return &FrameReader{r: bufio.NewReaderSize(r, 1024)}
}

// Skipped reports how many non-frame bytes have been discarded so far.
func (f *FrameReader) Skipped() uint64 { return f.skipped }

// ReadFrame blocks until a complete frame arrives and returns its payload.
// A header announcing more than MaxPayloadLen bytes is treated as noise and
// the reader resynchronises on the next start marker.
func (f *FrameReader) ReadFrame() ([]byte, error) {
	for {
		if err := f.syncStart(); err != nil {
			return nil, err
		}
		hi, err := f.r.ReadByte()
		if err != nil {
			return nil, err
		}
		lo, err := f.r.ReadByte()
		if err != nil {
			return nil, err
		}
		n := int(hi)<<8 | int(lo)
		if n > MaxPayloadLen {
			f.skipped += headerLen
			continue
		}
		payload := make([]byte, n)
		if _, err := io.ReadFull(f.r, payload); err != nil {
			if errors.Is(err, io.EOF) {
				err = io.ErrUnexpectedEOF
			}
			return nil, err
		}
		return payload, nil
	}
}

// ReadFromRadio reads and decodes the next envelope.
func (f *FrameReader) ReadFromRadio() (*FromRadio, error) {
	payload, err := f.ReadFrame()
	if err != nil {
		return nil, err
	}
	return UnmarshalFromRadio(payload)
}

func (f *FrameReader) syncStart() error {
	for {
		b, err := f.r.ReadByte()
		if err != nil {
			return err
		}
		if b != frameStart1 {
			f.skipped++
			continue
		}
		b, err = f.r.ReadByte()
		if err != nil {
			return err
		}
		if b == frameStart2 {
			return nil
		}
		f.skipped++
		if b == frameStart1 {
			_ = f.r.UnreadByte()
			continue
		}
		f.skipped++
	}
}

// WriteToRadio frames and writes one envelope.
func WriteToRadio(w io.Writer, m *ToRadio) error {
	frame, err := EncodeFrame(m.Marshal())
	if err != nil {
		return err
	}
	_, err = w.Write(frame)
	return err
}
