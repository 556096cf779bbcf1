package protocol

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	// HeaderLen is the size of a frame header: payload length (u16) and type.
	HeaderLen = 3

	// MaxPayloadLen is the largest payload a frame can carry.
	MaxPayloadLen = 0xffff

	// snapshotFlag marks a frame that belongs to a snapshot upload.
	snapshotFlag = 0x80
)

// ErrFrameTooLarge is returned when a message does not fit in one frame.
var ErrFrameTooLarge = errors.New("message too large for a frame")

// BadDataError reports a frame that could not be decoded.
type BadDataError struct {
	Type Type
	Len  int
	Err  error
}

func (e *BadDataError) Error() string {
	return fmt.Sprintf("bad frame (type %d, %d bytes): %v", uint8(e.Type), e.Len, e.Err)
}

func (e *BadDataError) Unwrap() error { return e.Err }

// Frame is one decoded message together with its framing flags.
type Frame struct {
	Msg Message

	// Snapshot is set on frames uploaded as part of a snapshot.
	Snapshot bool
}

// Reader decodes frames from a byte stream.
type Reader struct {
	r   *bufio.Reader
	hdr [HeaderLen]byte
	buf []byte
}

func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReader(r)}
}

// ReadFrame reads the next frame. Undecodable frames yield a *BadDataError;
// the stream is still positioned after the bad frame.
func (r *Reader) ReadFrame() (Frame, error) {
	if _, err := io.ReadFull(r.r, r.hdr[:]); err != nil {
		return Frame{}, err
	}

	n := int(binary.BigEndian.Uint16(r.hdr[:2]))
	t := Type(r.hdr[2] &^ snapshotFlag)
	snapshot := r.hdr[2]&snapshotFlag != 0

	if cap(r.buf) < n {
		r.buf = make([]byte, n)
	}
	payload := r.buf[:n]
	if _, err := io.ReadFull(r.r, payload); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return Frame{}, err
	}

	msg, err := Unmarshal(t, payload)
	if err != nil {
		return Frame{}, &BadDataError{Type: t, Len: n, Err: err}
	}
	return Frame{Msg: msg, Snapshot: snapshot}, nil
}

// AppendFrame appends the framed encoding of msg to b.
func AppendFrame(b []byte, msg Message, snapshot bool) ([]byte, error) {
	if msg.Type() == TypeSnapshotPoint {
		return b, fmt.Errorf("%w: %v", ErrUnknownType, msg.Type())
	}
	n := msg.Len()
	if n > MaxPayloadLen {
		return b, ErrFrameTooLarge
	}
	t := uint8(msg.Type())
	if snapshot {
		t |= snapshotFlag
	}
	b = binary.BigEndian.AppendUint16(b, uint16(n))
	b = append(b, t)
	return msg.appendPayload(b), nil
}

// Writer encodes frames onto a byte stream. Call Flush to push buffered
// frames out.
type Writer struct {
	w   *bufio.Writer
	buf []byte
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

func (w *Writer) WriteMessage(msg Message) error {
	return w.write(msg, false)
}

// WriteSnapshotMessage writes msg flagged as snapshot upload data.
func (w *Writer) WriteSnapshotMessage(msg Message) error {
	return w.write(msg, true)
}

func (w *Writer) write(msg Message, snapshot bool) error {
	var err error
	w.buf, err = AppendFrame(w.buf[:0], msg, snapshot)
	if err != nil {
		return err
	}
	_, err = w.w.Write(w.buf)
	return err
}

func (w *Writer) Flush() error { return w.w.Flush() }
