package server

import (
	"golang.org/x/exp/slog"

	"manualpilot/drawsrv/internal/protocol"
)

// handleSessionMessage runs a message from a logged in client through access
// control and, if it survives, appends it to the session history.
func (c *Client) handleSessionMessage(msg protocol.Message) {
	s := c.server
	sess := s.session

	switch msg.(type) {
	case *protocol.Login, *protocol.UserJoin, *protocol.UserAttr, *protocol.UserLeave,
		*protocol.SessionConfig, *protocol.StreamPos:
		c.log.Warn("client sent a server-to-client message", slog.String("type", msg.Type().String()))
		return
	}

	if protocol.IsOpCommand(msg) && !c.isOperator {
		c.log.Debug("operator command from non-operator", slog.String("type", msg.Type().String()))
		return
	}

	if sess.LayerControlLocked && !c.isOperator {
		switch msg.(type) {
		case *protocol.LayerCreate, *protocol.LayerAttr, *protocol.LayerOrder,
			*protocol.LayerRetitle, *protocol.LayerDelete:
			c.log.Debug("layer control is locked", slog.String("type", msg.Type().String()))
			return
		}
	}

	if protocol.IsCommand(msg) {
		if c.isDropLocked() {
			return
		}
		if c.isHoldLocked() {
			c.holdQueue = append(c.holdQueue, msg)
			return
		}

		var locked bool
		switch m := msg.(type) {
		case *protocol.PenMove:
			locked = c.isLayerLocked(sess.DrawingContext(c.id).CurrentLayer)
		case *protocol.LayerAttr:
			locked = !c.isOperator && c.isLayerLocked(m.ID)
		case *protocol.LayerRetitle:
			locked = !c.isOperator && c.isLayerLocked(m.ID)
		case *protocol.LayerDelete:
			locked = !c.isOperator && c.isLayerLocked(m.ID)
		case *protocol.PutImage:
			locked = c.isLayerLocked(m.Layer)
		}
		if locked {
			c.log.Debug("layer is locked", slog.String("type", msg.Type().String()))
			return
		}
	}

	msg.SetContextID(c.id)

	switch m := msg.(type) {
	case *protocol.ToolChange:
		sess.ToolChange(m)
	case *protocol.PenMove:
		sess.PenDown(c.id)
	case *protocol.PenUp:
		sess.PenUp(c.id)
		if c.barrier == barrierWait {
			c.barrier = barrierLocked
			s.clientBarrierLocked()
		}
	case *protocol.LayerCreate:
		if !sess.CreateLayer(m, true) {
			c.log.Warn("out of layer ids")
			return
		}
	case *protocol.LayerOrder:
		sess.ReorderLayers(m)
	case *protocol.LayerDelete:
		if !sess.DeleteLayer(m.ID) {
			return
		}
	case *protocol.LayerACL:
		if !sess.UpdateLayerACL(m) {
			return
		}
	case *protocol.AnnotationCreate:
		if !sess.CreateAnnotation(m, true) {
			c.log.Warn("out of annotation ids")
			return
		}
	case *protocol.AnnotationDelete:
		if !sess.DeleteAnnotation(m.ID) {
			return
		}
	case *protocol.UndoPoint:
		c.handleUndoPoint()
	case *protocol.Undo:
		if !c.handleUndoCommand(m) {
			c.log.Debug("nothing to undo or redo", slog.Int("points", int(m.Points)))
			return
		}
	case *protocol.Chat:
		if c.isOperator && c.handleOperatorCommand(m.Text) {
			return
		}
	case *protocol.SessionTitle:
		sess.Title = m.Title
	case *protocol.SnapshotMode:
		c.handleSnapshotStart(m)
		return
	}

	s.addToCommandStream(msg)
}
