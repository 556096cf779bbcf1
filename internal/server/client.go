package server

import (
	"net"

	"github.com/segmentio/ksuid"
	"golang.org/x/exp/slog"

	"manualpilot/drawsrv/internal/protocol"
)

type clientState int

const (
	stateLogin clientState = iota
	stateWaitForSync
	stateInSession
)

func (s clientState) String() string {
	switch s {
	case stateLogin:
		return "login"
	case stateWaitForSync:
		return "wait-for-sync"
	case stateInSession:
		return "in-session"
	}
	return "?"
}

type barrierState int

const (
	barrierNotLocked barrierState = iota
	barrierWait
	barrierLocked
)

const (
	loginExpectPassword = iota
	loginExpectCommand
)

// Client is one connection. All fields are guarded by the server mutex.
type Client struct {
	server *Server
	conn   net.Conn
	key    string
	log    *slog.Logger
	out    *outbox

	// closing is set once the connection is being torn down. Further input
	// is ignored.
	closing bool

	state    clientState
	substate int

	id         uint8
	username   string
	isOperator bool
	userLock   bool
	barrier    barrierState

	streamPointer    int
	subStreamPointer int
	streamPosSent    bool

	awaitingSnapshot  bool
	uploadingSnapshot bool

	holdQueue []protocol.Message
}

func newClient(s *Server, conn net.Conn) *Client {
	c := &Client{
		server:           s,
		conn:             conn,
		key:              ksuid.New().String(),
		out:              newOutbox(),
		subStreamPointer: -1,
	}
	log := s.log.With(slog.String("conn", c.key))
	if conn != nil {
		log = log.With(slog.String("remote", conn.RemoteAddr().String()))
	}
	c.log = log
	return c
}

func (c *Client) loggedIn() bool { return c.state != stateLogin }

func (c *Client) send(msg protocol.Message) {
	c.out.push(msg)
}

// closeWhenReady stops processing input and hangs up once everything queued has
// been written.
func (c *Client) closeWhenReady() {
	c.closing = true
	c.out.closeWhenReady()
}

// abort drops the connection without flushing.
func (c *Client) abort() {
	c.closing = true
	c.out.close()
	if c.conn != nil {
		_ = c.conn.Close()
	}
}

func (c *Client) receive(f protocol.Frame) {
	if c.closing {
		return
	}
	if f.Snapshot {
		c.receiveSnapshot(f.Msg)
		return
	}
	if c.state == stateLogin {
		c.handleLoginMessage(f.Msg)
		return
	}
	c.handleSessionMessage(f.Msg)
}

// isHoldLocked reports whether the client's commands are queued instead of
// applied.
func (c *Client) isHoldLocked() bool {
	return c.state == stateWaitForSync || c.barrier == barrierLocked
}

// isDropLocked reports whether the client's commands are discarded.
func (c *Client) isDropLocked() bool {
	return c.userLock || c.server.session.Locked
}

func (c *Client) isLayerLocked(id uint8) bool {
	l := c.server.session.Layer(id)
	if l == nil {
		return true
	}
	return l.IsLockedFor(c.id)
}

// sendAvailableCommands forwards everything between the client's cursor and
// the end of the stream.
func (c *Client) sendAvailableCommands() {
	if c.state != stateInSession {
		return
	}
	stream := c.server.stream

	for c.subStreamPointer >= 0 {
		sp, ok := stream.At(c.streamPointer).(*protocol.SnapshotPoint)
		if !ok {
			panic("client substream cursor is not at a snapshot point")
		}
		if !c.streamPosSent {
			c.send(protocol.NewStreamPos(uint32(c.remainingBytes(sp))))
			c.streamPosSent = true
		}
		sub := sp.Substream()
		for c.subStreamPointer < len(sub) {
			c.send(sub[c.subStreamPointer])
			c.subStreamPointer++
		}
		if !sp.IsComplete() {
			return
		}
		c.subStreamPointer = -1
		c.streamPointer++
	}

	for c.streamPointer < stream.End() {
		msg := stream.At(c.streamPointer)
		c.streamPointer++
		if msg.Type() != protocol.TypeSnapshotPoint {
			c.send(msg)
		}
	}
}

func (c *Client) remainingBytes(sp *protocol.SnapshotPoint) int {
	n := 0
	for _, msg := range sp.Substream()[c.subStreamPointer:] {
		n += protocol.WireLen(msg)
	}
	stream := c.server.stream
	for i := c.streamPointer + 1; i < stream.End(); i++ {
		if msg := stream.At(i); msg.Type() != protocol.TypeSnapshotPoint {
			n += protocol.WireLen(msg)
		}
	}
	return n
}

// startCatchup positions the cursor at the start of the current snapshot.
func (c *Client) startCatchup() {
	c.streamPointer = c.server.stream.SnapshotPointIndex()
	c.subStreamPointer = 0
	c.streamPosSent = false
}

// enqueueHeldCommands replays the hold queue for as long as the client is not
// hold-locked.
func (c *Client) enqueueHeldCommands() {
	for !c.isHoldLocked() && len(c.holdQueue) > 0 {
		msg := c.holdQueue[0]
		c.holdQueue[0] = nil
		c.holdQueue = c.holdQueue[1:]
		c.handleSessionMessage(msg)
	}
	if len(c.holdQueue) == 0 {
		c.holdQueue = nil
	}
}

// snapshotNowAvailable moves a waiting client into the session.
func (c *Client) snapshotNowAvailable() {
	if c.state != stateWaitForSync {
		return
	}
	c.state = stateInSession
	c.startCatchup()
	c.sendAvailableCommands()
	c.enqueueHeldCommands()
}

func (c *Client) sendUpdatedAttrs() {
	c.server.addToCommandStream(protocol.NewUserAttr(c.id, c.userLock, c.isOperator))
}

func (c *Client) grantOp() {
	c.log.Info("granted operator privileges")
	c.isOperator = true
	c.sendUpdatedAttrs()
}

func (c *Client) deOp() {
	c.log.Info("operator privileges removed")
	c.isOperator = false
	c.sendUpdatedAttrs()
}

func (c *Client) lockUser() {
	c.log.Info("locked")
	c.userLock = true
	c.sendUpdatedAttrs()
}

func (c *Client) unlockUser() {
	c.log.Info("unlocked")
	c.userLock = false
	c.sendUpdatedAttrs()
}

func (c *Client) kick(by uint8) {
	c.log.Info("kicked", slog.Int("by", int(by)))
	c.closeWhenReady()
}

// barrierLock locks the client as soon as its pen is up.
func (c *Client) barrierLock() {
	if c.server.session.DrawingContext(c.id).PenDown {
		c.barrier = barrierWait
		return
	}
	c.barrier = barrierLocked
	c.server.clientBarrierLocked()
}

func (c *Client) barrierUnlock() {
	c.barrier = barrierNotLocked
	c.enqueueHeldCommands()
}

// disconnected cleans up after the connection is gone.
func (c *Client) disconnected() {
	s := c.server
	c.closing = true
	s.removeClient(c)

	if c.id > 0 {
		if s.session.DrawingContext(c.id).PenDown {
			s.addToCommandStream(protocol.NewPenUp(c.id))
		}
		s.addToCommandStream(protocol.NewUserLeave(c.id))
		s.session.forgetUser(c.id)
		s.session.UserIDs.Release(c.id)
		if s.events() != nil {
			s.events().UserLeft(c.user())
		}
	}
	c.log.Info("disconnected")

	if c.awaitingSnapshot || c.uploadingSnapshot {
		c.log.Warn("snapshot source disconnected")
		s.abortSnapshotSync()
	}

	if s.started && s.userCount() == 0 {
		s.stopSession()
		return
	}
	s.clientBarrierLocked()
}
