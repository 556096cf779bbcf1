package protocol

import "fmt"

// MessageStream is the append-only session history.
//
// Indices are absolute: they keep counting up as old entries are trimmed from
// the head. Offset is the oldest retained index and End is one past the newest.
type MessageStream struct {
	messages []Message
	offset   int
	snapshot int
	bytes    int
}

func NewMessageStream() *MessageStream {
	return &MessageStream{snapshot: -1}
}

// Offset returns the index of the oldest retained message.
func (s *MessageStream) Offset() int { return s.offset }

// End returns the index one past the newest message.
func (s *MessageStream) End() int { return s.offset + len(s.messages) }

// LengthInBytes is the sum of the payload lengths of all retained messages.
func (s *MessageStream) LengthInBytes() int { return s.bytes }

func (s *MessageStream) IsValidIndex(i int) bool {
	return i >= s.offset && i < s.End()
}

// At returns the message at index i. Dereferencing a trimmed or not yet
// written index is a programming error and panics.
func (s *MessageStream) At(i int) Message {
	if !s.IsValidIndex(i) {
		panic(fmt.Sprintf("message stream index %d out of range [%d, %d)", i, s.offset, s.End()))
	}
	return s.messages[i-s.offset]
}

func (s *MessageStream) Append(msg Message) {
	s.messages = append(s.messages, msg)
	s.bytes += msg.Len()
}

func (s *MessageStream) HasSnapshot() bool { return s.snapshot >= 0 }

// SnapshotPointIndex returns the index of the current snapshot point, or -1.
func (s *MessageStream) SnapshotPointIndex() int { return s.snapshot }

// SnapshotPoint returns the current snapshot point, or nil.
func (s *MessageStream) SnapshotPoint() *SnapshotPoint {
	if s.snapshot < 0 {
		return nil
	}
	return s.At(s.snapshot).(*SnapshotPoint)
}

// AddSnapshotPoint appends a new, empty snapshot point. It refuses and returns
// false while the current snapshot point is still incomplete.
func (s *MessageStream) AddSnapshotPoint() bool {
	if sp := s.SnapshotPoint(); sp != nil && !sp.IsComplete() {
		return false
	}
	s.Append(&SnapshotPoint{})
	s.snapshot = s.End() - 1
	return true
}

// Cleanup drops every message older than a complete snapshot point, since the
// snapshot supersedes them. It returns the number of messages dropped.
func (s *MessageStream) Cleanup() int {
	sp := s.SnapshotPoint()
	if sp == nil || !sp.IsComplete() {
		return 0
	}

	n := s.snapshot - s.offset
	if n <= 0 {
		return 0
	}

	s.messages = append([]Message(nil), s.messages[n:]...)
	s.offset += n

	s.bytes = 0
	for _, msg := range s.messages {
		s.bytes += msg.Len()
	}
	return n
}

// HardCleanup trims messages from the head until the stream fits in sizeLimit
// bytes. It never trims past the oldest of the UndoHistoryLimit most recent
// undo points or the current snapshot point, so the stream may stay above the
// limit. A stream without undo points is left alone.
func (s *MessageStream) HardCleanup(sizeLimit int) int {
	protected := s.offset
	points := 0
	for i := s.End() - 1; i >= s.offset && points < UndoHistoryLimit; i-- {
		if s.At(i).Type() == TypeUndoPoint {
			protected = i
			points++
		}
	}
	if s.snapshot >= 0 && s.snapshot < protected {
		protected = s.snapshot
	}

	n := 0
	for s.bytes > sizeLimit && s.offset < protected {
		s.bytes -= s.messages[n].Len()
		s.messages[n] = nil
		s.offset++
		n++
	}
	s.messages = s.messages[n:]
	return n
}

// AbandonSnapshotPoint gives up on an incomplete snapshot point. The marker
// stays in the stream, but the snapshot pointer falls back to the newest
// complete snapshot point still retained, or to none. It returns false if
// there was nothing to abandon.
func (s *MessageStream) AbandonSnapshotPoint() bool {
	sp := s.SnapshotPoint()
	if sp == nil || sp.IsComplete() {
		return false
	}

	prev := -1
	for i := s.snapshot - 1; i >= s.offset; i-- {
		if p, ok := s.At(i).(*SnapshotPoint); ok && p.IsComplete() {
			prev = i
			break
		}
	}
	s.snapshot = prev
	return true
}

// Clear empties the stream. Indices continue from the current end.
func (s *MessageStream) Clear() {
	s.offset = s.End()
	s.snapshot = -1
	s.messages = nil
	s.bytes = 0
}

// Commands returns the retained messages that are part of the drawing history.
func (s *MessageStream) Commands() []Message {
	var cmds []Message
	for _, msg := range s.messages {
		if IsCommand(msg) {
			cmds = append(cmds, msg)
		}
	}
	return cmds
}
