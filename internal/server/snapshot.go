package server

import (
	"errors"

	"golang.org/x/exp/slog"

	"manualpilot/drawsrv/internal/protocol"
)

var errUnexpectedSnapshot = errors.New("unexpected snapshot data")

// requestSnapshot opens a new snapshot point and asks the client to fill it.
// It returns false if a snapshot is already being built.
func (c *Client) requestSnapshot(forceNew bool) bool {
	s := c.server
	if !s.stream.AddSnapshotPoint() {
		c.log.Warn("snapshot requested while the previous one is incomplete")
		return false
	}

	mode := protocol.SnapshotRequest
	if forceNew {
		mode = protocol.SnapshotRequestNew
	}
	c.send(protocol.NewSnapshotMode(mode))
	c.awaitingSnapshot = true

	for _, o := range s.clients {
		if o.id == 0 {
			continue
		}
		s.addToSnapshotStream(protocol.NewUserJoin(o.id, o.username))
		s.addToSnapshotStream(protocol.NewUserAttr(o.id, o.userLock, o.isOperator))
	}

	c.log.Debug("requested snapshot", slog.Bool("new", forceNew), slog.Int("index", s.stream.SnapshotPointIndex()))
	return true
}

func (c *Client) handleSnapshotStart(msg *protocol.SnapshotMode) {
	if msg.Mode != protocol.SnapshotAck {
		c.log.Warn("unexpected snapshot mode", slog.Int("mode", int(msg.Mode)))
		return
	}
	if !c.awaitingSnapshot {
		c.log.Warn("snapshot acknowledged without a request")
		return
	}
	c.awaitingSnapshot = false
	c.uploadingSnapshot = true
	c.log.Debug("started receiving snapshot")
	c.server.snapshotSyncStarted()
}

// receiveSnapshot handles a frame flagged as snapshot data.
func (c *Client) receiveSnapshot(msg protocol.Message) {
	s := c.server
	if !c.uploadingSnapshot {
		c.log.Error("aborting connection", errUnexpectedSnapshot, slog.String("type", msg.Type().String()))
		c.abort()
		return
	}

	switch msg.(type) {
	case *protocol.Login, *protocol.SessionConfig, *protocol.StreamPos:
		c.log.Warn("message not allowed in a snapshot", slog.String("type", msg.Type().String()))
		return
	}

	if !s.addToSnapshotStream(msg) {
		return
	}

	c.uploadingSnapshot = false
	n := s.stream.Cleanup()
	c.log.Info("snapshot complete", slog.Int("trimmed", n), slog.Int("bytes", s.stream.LengthInBytes()))

	if c.state == stateWaitForSync {
		s.session.SyncInitialState(s.stream.SnapshotPoint().Substream())
		c.state = stateInSession
		c.enqueueHeldCommands()
		c.sendAvailableCommands()
	}

	s.snapshotNowAvailable()
}
