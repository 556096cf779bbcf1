package server

import (
	"manualpilot/drawsrv/internal/protocol"
)

// Undo history lives in the stream itself: every undo point carries its own
// DONE/UNDONE/GONE state. Scans look at no more than UndoHistoryLimit undo
// points (counting every user's) and never cross the current snapshot point.

// handleUndoPoint branches the undo history of the client. Points that were
// undone can no longer be redone once a new undo point follows them.
func (c *Client) handleUndoPoint() {
	stream := c.server.stream
	limit := protocol.UndoHistoryLimit
	for pos := stream.End() - 1; stream.IsValidIndex(pos) && limit > 0; pos-- {
		msg := stream.At(pos)
		if msg.Type() == protocol.TypeSnapshotPoint {
			break
		}
		up, ok := msg.(*protocol.UndoPoint)
		if !ok {
			continue
		}
		limit--
		if up.ContextID() != c.id {
			continue
		}
		if up.State == protocol.UndoGone {
			break
		}
		if up.State == protocol.UndoUndone {
			up.State = protocol.UndoGone
		}
	}
}

// handleUndoCommand applies an undo or redo to the stream's undo points and
// rewrites msg to say how many points were actually affected. It returns false
// if nothing was done.
func (c *Client) handleUndoCommand(msg *protocol.Undo) bool {
	if msg.OverrideID != 0 {
		msg.SetContextID(msg.OverrideID)
	}
	user := msg.ContextID()

	var n int
	switch {
	case msg.Points > 0:
		n = c.server.undo(user, int(msg.Points))
	case msg.Points < 0:
		n = -c.server.redo(user, -int(msg.Points))
	}
	if n == 0 {
		return false
	}
	msg.Points = int8(n)
	return true
}

// undo marks up to points of user's DONE undo points as UNDONE, newest first.
func (s *Server) undo(user uint8, points int) int {
	limit := protocol.UndoHistoryLimit
	done := 0
	for pos := s.stream.End() - 1; s.stream.IsValidIndex(pos) && limit > 0 && done < points; pos-- {
		msg := s.stream.At(pos)
		if msg.Type() == protocol.TypeSnapshotPoint {
			break
		}
		up, ok := msg.(*protocol.UndoPoint)
		if !ok {
			continue
		}
		limit--
		if up.ContextID() == user && up.State == protocol.UndoDone {
			up.State = protocol.UndoUndone
			done++
		}
	}
	return done
}

// redo marks up to points of user's UNDONE undo points as DONE again, starting
// from the oldest point of the most recent undone run.
func (s *Server) redo(user uint8, points int) int {
	end := s.stream.End()
	start := end
	limit := protocol.UndoHistoryLimit
	for pos := end - 1; s.stream.IsValidIndex(pos) && limit > 0; pos-- {
		msg := s.stream.At(pos)
		if msg.Type() == protocol.TypeSnapshotPoint {
			break
		}
		up, ok := msg.(*protocol.UndoPoint)
		if !ok {
			continue
		}
		limit--
		if up.ContextID() != user {
			continue
		}
		if up.State == protocol.UndoDone {
			break
		}
		start = pos
	}
	if start == end {
		return 0
	}

	done := 0
	for pos := start; pos < end && done < points; pos++ {
		up, ok := s.stream.At(pos).(*protocol.UndoPoint)
		if ok && up.ContextID() == user && up.State == protocol.UndoUndone {
			up.State = protocol.UndoDone
			done++
		}
	}
	return done
}
