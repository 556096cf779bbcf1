package server

import (
	"testing"

	"manualpilot/drawsrv/internal/protocol"
)

// undoPoints returns the states of user's undo points, oldest first.
func undoPoints(s *Server, user uint8) []protocol.UndoState {
	var states []protocol.UndoState
	for i := s.stream.Offset(); i < s.stream.End(); i++ {
		if up, ok := s.stream.At(i).(*protocol.UndoPoint); ok && up.ContextID() == user {
			states = append(states, up.State)
		}
	}
	return states
}

func expectStates(t *testing.T, s *Server, user uint8, want ...protocol.UndoState) {
	t.Helper()
	got := undoPoints(s, user)
	if len(got) != len(want) {
		t.Fatalf("user %d has %d undo points, want %d", user, len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("user %d undo points %v, want %v", user, got, want)
		}
	}
}

// sendUndo feeds an undo command and returns the point count that was
// broadcast, or 0 if the command was rejected.
func sendUndo(c *Client, override uint8, points int8) int8 {
	s := c.server
	end := s.stream.End()
	c.feed(&protocol.Undo{OverrideID: override, Points: points})
	if s.stream.End() == end {
		return 0
	}
	undo, ok := lastMessage(s).(*protocol.Undo)
	if !ok {
		return 0
	}
	return undo.Points
}

func TestUndoRedo(t *testing.T) {
	s := newTestServer(Config{})
	alice := hostSynced(t, s)

	for i := 0; i < 3; i++ {
		alice.feed(protocol.NewUndoPoint(0))
	}
	done, undone := protocol.UndoDone, protocol.UndoUndone

	if n := sendUndo(alice, 0, 2); n != 2 {
		t.Fatalf("undo applied %d", n)
	}
	expectStates(t, s, 1, done, undone, undone)

	if n := sendUndo(alice, 0, 5); n != 1 {
		t.Fatalf("undo rewritten to %d, want 1", n)
	}
	expectStates(t, s, 1, undone, undone, undone)

	if n := sendUndo(alice, 0, 1); n != 0 {
		t.Fatal("undo with nothing to undo was accepted")
	}

	if n := sendUndo(alice, 0, -3); n != -3 {
		t.Fatalf("redo applied %d", n)
	}
	expectStates(t, s, 1, done, done, done)

	if n := sendUndo(alice, 0, -1); n != 0 {
		t.Fatal("redo with nothing to redo was accepted")
	}
	expectStates(t, s, 1, done, done, done)

	if n := sendUndo(alice, 0, 0); n != 0 {
		t.Fatal("zero point undo was accepted")
	}
}

func TestRedoOrder(t *testing.T) {
	s := newTestServer(Config{})
	alice := hostSynced(t, s)

	for i := 0; i < 3; i++ {
		alice.feed(protocol.NewUndoPoint(0))
	}
	sendUndo(alice, 0, 3)

	if n := sendUndo(alice, 0, -1); n != -1 {
		t.Fatalf("redo applied %d", n)
	}
	expectStates(t, s, 1, protocol.UndoDone, protocol.UndoUndone, protocol.UndoUndone)
}

func TestUndoPointBranchesHistory(t *testing.T) {
	s := newTestServer(Config{})
	alice := hostSynced(t, s)

	alice.feed(protocol.NewUndoPoint(0), protocol.NewUndoPoint(0))
	sendUndo(alice, 0, 1)
	alice.feed(protocol.NewUndoPoint(0))
	expectStates(t, s, 1, protocol.UndoDone, protocol.UndoGone, protocol.UndoDone)

	if n := sendUndo(alice, 0, -1); n != 0 {
		t.Error("redo resurrected a gone undo point")
	}
	expectStates(t, s, 1, protocol.UndoDone, protocol.UndoGone, protocol.UndoDone)

	if n := sendUndo(alice, 0, 2); n != 2 {
		t.Fatalf("undo applied %d", n)
	}
	expectStates(t, s, 1, protocol.UndoUndone, protocol.UndoGone, protocol.UndoUndone)
}

func TestUndoOnlyTouchesOwnPoints(t *testing.T) {
	s := newTestServer(Config{})
	alice := hostSynced(t, s)
	bob := join(t, s, "bob")

	alice.feed(protocol.NewUndoPoint(0))
	bob.feed(protocol.NewUndoPoint(0))

	if n := sendUndo(bob, 0, 5); n != 1 {
		t.Fatalf("undo applied %d", n)
	}
	expectStates(t, s, 1, protocol.UndoDone)
	expectStates(t, s, 2, protocol.UndoUndone)

	// a new point from alice does not branch bob's history
	alice.feed(protocol.NewUndoPoint(0))
	expectStates(t, s, 2, protocol.UndoUndone)
}

func TestUndoOverride(t *testing.T) {
	s := newTestServer(Config{})
	alice := hostSynced(t, s)
	bob := join(t, s, "bob")
	bob.feed(protocol.NewUndoPoint(0))

	if n := sendUndo(bob, 1, 1); n != 0 {
		t.Fatal("non-operator used an override id")
	}

	if n := sendUndo(alice, 2, 1); n != 1 {
		t.Fatalf("override undo applied %d", n)
	}
	if ctx := lastMessage(s).ContextID(); ctx != 2 {
		t.Errorf("override undo broadcast as user %d", ctx)
	}
	expectStates(t, s, 2, protocol.UndoUndone)
}

func TestUndoHistoryLimit(t *testing.T) {
	s := newTestServer(Config{})
	alice := hostSynced(t, s)
	bob := join(t, s, "bob")

	alice.feed(protocol.NewUndoPoint(0))
	for i := 0; i < protocol.UndoHistoryLimit; i++ {
		bob.feed(protocol.NewUndoPoint(0))
	}

	if n := sendUndo(alice, 0, 1); n != 0 {
		t.Error("undid a point beyond the history limit")
	}
}

func TestUndoStopsAtSnapshot(t *testing.T) {
	s := newTestServer(Config{})
	s.stream.Append(protocol.NewUndoPoint(1))
	s.stream.AddSnapshotPoint()
	s.stream.Append(protocol.NewChat(1, "hi"))

	if n := s.undo(1, 1); n != 0 {
		t.Errorf("undo crossed the snapshot point")
	}
}
