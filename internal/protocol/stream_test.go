package protocol

import "testing"

func sumLen(s *MessageStream) int {
	n := 0
	for i := s.Offset(); i < s.End(); i++ {
		n += s.At(i).Len()
	}
	return n
}

func TestStreamLengthInBytes(t *testing.T) {
	s := NewMessageStream()
	s.Append(NewChat(1, "hello"))
	s.Append(&PenMove{ctx: ctx{1}, Points: make([]PenPoint, 3)})
	s.Append(NewPenUp(1))
	s.AddSnapshotPoint()
	s.Append(NewUndoPoint(2))

	if s.LengthInBytes() != sumLen(s) {
		t.Errorf("LengthInBytes() = %d, entries add up to %d", s.LengthInBytes(), sumLen(s))
	}
	if s.LengthInBytes() != 6+28+1+0+1 {
		t.Errorf("LengthInBytes() = %d", s.LengthInBytes())
	}
}

func TestStreamCleanup(t *testing.T) {
	s := NewMessageStream()
	s.Append(NewPenUp(1))
	s.Append(NewPenUp(2))

	if n := s.Cleanup(); n != 0 {
		t.Fatalf("cleanup without snapshot dropped %d", n)
	}

	if !s.AddSnapshotPoint() {
		t.Fatal("could not add snapshot point")
	}
	s.Append(NewChat(1, "after"))

	if n := s.Cleanup(); n != 0 {
		t.Fatalf("cleanup with incomplete snapshot dropped %d", n)
	}

	if s.AddSnapshotPoint() {
		t.Fatal("added a snapshot point while another is incomplete")
	}

	sp := s.SnapshotPoint()
	sp.Append(&LayerCreate{ID: 1})
	if !sp.Append(NewSnapshotMode(SnapshotEnd)) {
		t.Fatal("snapshot not complete after END")
	}

	before := s.End() - s.Offset()
	if n := s.Cleanup(); n != 2 {
		t.Fatalf("cleanup dropped %d, want 2", n)
	}
	if s.End()-s.Offset() >= before {
		t.Error("cleanup did not shrink the stream")
	}
	if s.SnapshotPointIndex() != s.Offset() || s.Offset() != 2 {
		t.Errorf("snapshot at %d, offset %d", s.SnapshotPointIndex(), s.Offset())
	}
	if s.LengthInBytes() != sumLen(s) {
		t.Error("byte count out of sync after cleanup")
	}
	if s.IsValidIndex(1) {
		t.Error("trimmed index still valid")
	}

	if n := s.Cleanup(); n != 0 {
		t.Errorf("second cleanup dropped %d", n)
	}

	if !s.AddSnapshotPoint() {
		t.Error("could not add a snapshot point after the previous one completed")
	}
}

func TestStreamHardCleanupKeepsUndoHistory(t *testing.T) {
	s := NewMessageStream()
	for i := 0; i < 10; i++ {
		s.Append(NewChat(1, "padding padding padding"))
	}

	firstProtected := s.End()
	for i := 0; i < UndoHistoryLimit+5; i++ {
		s.Append(NewUndoPoint(uint8(1 + i%3)))
		s.Append(NewChat(1, "x"))
	}
	// the 5 oldest undo points are outside the history limit
	firstProtected += 2 * 5

	s.HardCleanup(0)

	if s.Offset() != firstProtected {
		t.Fatalf("offset %d, want %d", s.Offset(), firstProtected)
	}
	if s.LengthInBytes() <= 0 {
		t.Fatal("expected remaining bytes above the limit")
	}

	points := 0
	for i := s.Offset(); i < s.End(); i++ {
		if s.At(i).Type() == TypeUndoPoint {
			points++
		}
	}
	if points != UndoHistoryLimit {
		t.Errorf("%d undo points left, want %d", points, UndoHistoryLimit)
	}
	if s.LengthInBytes() != sumLen(s) {
		t.Error("byte count out of sync after hard cleanup")
	}
}

func TestStreamHardCleanupStopsAtLimit(t *testing.T) {
	s := NewMessageStream()
	for i := 0; i < 10; i++ {
		s.Append(NewChat(1, "123456789")) // 10 bytes
	}
	s.Append(NewUndoPoint(1))

	s.HardCleanup(45)
	if s.LengthInBytes() != 41 || s.Offset() != 6 {
		t.Errorf("bytes %d offset %d", s.LengthInBytes(), s.Offset())
	}
}

func TestStreamHardCleanupWithoutUndoPoints(t *testing.T) {
	s := NewMessageStream()
	for i := 0; i < 10; i++ {
		s.Append(NewChat(1, "123456789"))
	}

	if n := s.HardCleanup(0); n != 0 || s.Offset() != 0 {
		t.Errorf("trimmed %d messages from a stream without undo points", n)
	}
}

func TestStreamHardCleanupKeepsSnapshot(t *testing.T) {
	s := NewMessageStream()
	s.Append(NewChat(1, "123456789"))
	s.Append(NewChat(1, "123456789"))
	s.AddSnapshotPoint()
	s.Append(NewChat(1, "123456789"))
	s.Append(NewUndoPoint(1))

	s.HardCleanup(0)
	if s.Offset() != 2 || s.SnapshotPointIndex() != 2 {
		t.Errorf("offset %d snapshot %d", s.Offset(), s.SnapshotPointIndex())
	}
}

func TestStreamAbandonSnapshotPoint(t *testing.T) {
	s := NewMessageStream()
	s.AddSnapshotPoint()
	s.SnapshotPoint().Append(NewSnapshotMode(SnapshotEnd))
	s.Append(NewChat(1, "hi"))

	if s.AbandonSnapshotPoint() {
		t.Fatal("abandoned a complete snapshot point")
	}

	s.AddSnapshotPoint()
	s.SnapshotPoint().Append(NewChat(1, "partial"))
	end := s.End()

	if !s.AbandonSnapshotPoint() {
		t.Fatal("incomplete snapshot point not abandoned")
	}
	if s.SnapshotPointIndex() != 0 || !s.SnapshotPoint().IsComplete() {
		t.Errorf("snapshot pointer %d", s.SnapshotPointIndex())
	}
	if s.End() != end {
		t.Error("abandoning moved the end of the stream")
	}
	if !s.AddSnapshotPoint() {
		t.Error("cannot add a snapshot point after abandoning one")
	}

	s = NewMessageStream()
	s.AddSnapshotPoint()
	if !s.AbandonSnapshotPoint() || s.HasSnapshot() {
		t.Error("first snapshot point not abandoned")
	}
}

func TestStreamClear(t *testing.T) {
	s := NewMessageStream()
	s.Append(NewPenUp(1))
	s.AddSnapshotPoint()
	s.Clear()

	if s.Offset() != 2 || s.End() != 2 || s.HasSnapshot() || s.LengthInBytes() != 0 {
		t.Errorf("unexpected state after clear: offset %d end %d", s.Offset(), s.End())
	}

	s.Append(NewPenUp(1))
	if s.At(2).Type() != TypePenUp {
		t.Error("indices must continue after clear")
	}
}

func TestStreamInvalidIndexPanics(t *testing.T) {
	s := NewMessageStream()
	s.Append(NewPenUp(1))

	defer func() {
		if recover() == nil {
			t.Error("expected a panic")
		}
	}()
	s.At(1)
}

func TestStreamCommands(t *testing.T) {
	s := NewMessageStream()
	s.Append(NewChat(1, "hi"))
	s.Append(NewPenUp(1))
	s.AddSnapshotPoint()
	s.Append(NewUndoPoint(1))

	if n := len(s.Commands()); n != 2 {
		t.Errorf("got %d commands, want 2", n)
	}
}
