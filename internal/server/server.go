package server

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"

	"golang.org/x/exp/slices"
	"golang.org/x/exp/slog"

	"manualpilot/drawsrv/internal/protocol"
)

var (
	ErrNoSuchUser         = errors.New("no such user")
	ErrNoSession          = errors.New("session not started")
	ErrSnapshotInProgress = errors.New("snapshot already in progress")
)

// User describes a logged in user.
type User struct {
	ID       uint8  `json:"id"`
	Name     string `json:"name"`
	Operator bool   `json:"operator"`
	Locked   bool   `json:"locked"`
}

// EventSink is told about things happening in the session. Its methods are
// called with the server lock held and must not block.
type EventSink interface {
	UserJoined(u User)
	UserLeft(u User)
	SnapshotCreated(messages, bytes int)
}

type Config struct {
	Title    string
	Password string
	MaxUsers int

	// HistoryLimit is the history size in bytes that triggers a new snapshot.
	// Zero disables it.
	HistoryLimit int

	// HardHistoryLimit is the history size in bytes above which old messages
	// are discarded even without a snapshot. Zero disables it.
	HardHistoryLimit int

	Events EventSink
}

// Server runs one drawing session.
//
// Every inbound frame is processed with mu held, so the session, the history
// and all client state change one message at a time. Socket writes happen on
// per-connection goroutines outside the lock.
type Server struct {
	log *slog.Logger
	cfg Config

	mu      sync.Mutex
	session *Session
	stream  *protocol.MessageStream
	clients []*Client

	// started is set once a user has hosted the session.
	started bool
	// synced is set once the session has had a complete snapshot.
	synced bool
	// syncPending is set while barrier locks are being collected for a forced
	// snapshot.
	syncPending bool
}

func New(logger *slog.Logger, cfg Config) *Server {
	if cfg.MaxUsers <= 0 {
		cfg.MaxUsers = 255
	}
	return &Server{
		log: logger,
		cfg: cfg,
		session: NewSession(SessionOptions{
			Title:    cfg.Title,
			Password: cfg.Password,
			MaxUsers: cfg.MaxUsers,
		}),
		stream: protocol.NewMessageStream(),
	}
}

// Serve accepts connections until ctx is cancelled or the listener fails.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		go s.ServeConn(ctx, conn)
	}
}

// ServeConn speaks the drawing protocol on conn until either side hangs up.
func (s *Server) ServeConn(ctx context.Context, conn net.Conn) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	c := s.attach(conn)
	log := c.log
	s.mu.Unlock()

	go c.writeLoop(log)
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	r := protocol.NewReader(conn)
	for {
		f, err := r.ReadFrame()
		if err != nil {
			var bad *protocol.BadDataError
			switch {
			case errors.As(err, &bad):
				log.Error("received bad data", err)
			case errors.Is(err, io.EOF), errors.Is(err, net.ErrClosed):
			default:
				log.Debug("read failed", slog.Any("err", err))
			}
			break
		}

		s.mu.Lock()
		c.receive(f)
		s.mu.Unlock()
	}

	s.mu.Lock()
	c.disconnected()
	s.mu.Unlock()

	c.out.close()
	_ = conn.Close()
}

// writeLoop runs without the server lock, so it logs through log rather than
// c.log, which is replaced on login.
func (c *Client) writeLoop(log *slog.Logger) {
	w := protocol.NewWriter(c.conn)
	for {
		msgs, done := c.out.next()
		for _, msg := range msgs {
			if err := w.WriteMessage(msg); err != nil {
				log.Error("failed to encode message", err, slog.String("type", msg.Type().String()))
			}
		}
		if err := w.Flush(); err != nil {
			log.Debug("write failed", slog.Any("err", err))
			done = true
		}
		if done {
			c.out.close()
			_ = c.conn.Close()
			return
		}
	}
}

// attach registers a new connection and greets it.
func (s *Server) attach(conn net.Conn) *Client {
	c := newClient(s, conn)
	s.clients = append(s.clients, c)
	c.sendGreeting()
	c.log.Info("connected")
	return c
}

func (s *Server) removeClient(c *Client) {
	if i := slices.Index(s.clients, c); i >= 0 {
		s.clients = slices.Delete(s.clients, i, i+1)
	}
}

func (s *Server) events() EventSink { return s.cfg.Events }

func (s *Server) clientLoggedIn(c *Client) {
	c.log = c.log.With(slog.Int("user", int(c.id)), slog.String("name", c.username))
	c.log.Info("logged in")
	if s.events() != nil {
		s.events().UserJoined(c.user())
	}
}

func (c *Client) user() User {
	return User{ID: c.id, Name: c.username, Operator: c.isOperator, Locked: c.userLock}
}

// stopSession resets the server for a new host once everyone has left.
func (s *Server) stopSession() {
	s.log.Info("last user left, session ended")
	s.stream.Clear()
	s.session.reset()
	s.started = false
	s.synced = false
	s.syncPending = false
}

func (s *Server) userCount() int {
	n := 0
	for _, c := range s.clients {
		if c.id > 0 {
			n++
		}
	}
	return n
}

func (s *Server) clientByID(id uint8) *Client {
	for _, c := range s.clients {
		if c.id == id && c.loggedIn() {
			return c
		}
	}
	return nil
}

// addToCommandStream appends msg to the session history and forwards it to
// everyone who is caught up.
func (s *Server) addToCommandStream(msg protocol.Message) {
	s.stream.Append(msg)
	for _, c := range s.clients {
		c.sendAvailableCommands()
	}
	s.enforceHistoryLimits()
}

// addToSnapshotStream adds msg to the snapshot being uploaded. It returns true
// once the snapshot is complete.
func (s *Server) addToSnapshotStream(msg protocol.Message) bool {
	sp := s.stream.SnapshotPoint()
	if sp == nil {
		panic("no snapshot point to add to")
	}
	done := sp.Append(msg)
	for _, c := range s.clients {
		c.sendAvailableCommands()
	}
	return done
}

func (s *Server) snapshotInProgress() bool {
	sp := s.stream.SnapshotPoint()
	return sp != nil && !sp.IsComplete()
}

func (s *Server) enforceHistoryLimits() {
	if limit := s.cfg.HardHistoryLimit; limit > 0 && s.stream.LengthInBytes() > limit {
		if n := s.stream.HardCleanup(limit); n > 0 {
			s.log.Warn("history over hard limit, discarded old messages",
				slog.Int("discarded", n), slog.Int("bytes", s.stream.LengthInBytes()))
		}
	}
	if limit := s.cfg.HistoryLimit; limit > 0 && s.stream.LengthInBytes() > limit &&
		s.synced && !s.syncPending && !s.snapshotInProgress() {
		s.log.Info("history over limit, requesting snapshot", slog.Int("bytes", s.stream.LengthInBytes()))
		s.startSnapshotSync()
	}
}

// snapshotNowAvailable brings every waiting client into the session.
func (s *Server) snapshotNowAvailable() {
	s.synced = true
	for _, c := range s.clients {
		c.snapshotNowAvailable()
	}
	if s.events() != nil {
		sp := s.stream.SnapshotPoint()
		s.events().SnapshotCreated(len(sp.Substream()), sp.WireLen())
	}
}

// startSnapshotSync barrier-locks everyone and, once all pens are up, asks a
// client for a fresh snapshot.
func (s *Server) startSnapshotSync() error {
	if s.syncPending || s.snapshotInProgress() {
		s.log.Warn("snapshot sync requested while one is in progress")
		return ErrSnapshotInProgress
	}
	s.log.Info("starting snapshot sync")
	s.syncPending = true
	for _, c := range s.clients {
		if c.loggedIn() {
			c.barrierLock()
		}
	}
	s.clientBarrierLocked()
	return nil
}

// clientBarrierLocked requests the snapshot once every logged in client is
// hold-locked. Clients that are being closed are not waited for.
func (s *Server) clientBarrierLocked() {
	if !s.syncPending {
		return
	}
	for _, c := range s.clients {
		if c.loggedIn() && !c.closing && !c.isHoldLocked() {
			return
		}
	}

	s.syncPending = false
	source := s.snapshotSource()
	if source == nil || !source.requestSnapshot(true) {
		s.log.Warn("no client could provide a snapshot")
		s.unlockBarriers()
	}
}

// snapshotSource picks the longest connected client that has the session
// state.
func (s *Server) snapshotSource() *Client {
	for _, c := range s.clients {
		if c.loggedIn() && !c.closing && c.state == stateInSession {
			return c
		}
	}
	return nil
}

// snapshotSyncStarted lifts the barriers once the snapshot source has
// acknowledged the request.
func (s *Server) snapshotSyncStarted() {
	s.unlockBarriers()
}

// abortSnapshotSync is called when the snapshot source goes away. The
// incomplete snapshot point is abandoned and a new snapshot is requested from
// someone else. Clients waiting for a first snapshot that nobody can provide
// are disconnected.
func (s *Server) abortSnapshotSync() {
	s.syncPending = false
	if s.stream.AbandonSnapshotPoint() {
		s.log.Warn("abandoned incomplete snapshot", slog.Int("fallback", s.stream.SnapshotPointIndex()))
	}

	if !s.stream.HasSnapshot() {
		s.synced = false
	} else if s.synced {
		for _, c := range s.clients {
			c.snapshotNowAvailable()
		}
	}
	s.unlockBarriers()

	if s.userCount() == 0 || s.syncPending || s.snapshotInProgress() {
		return
	}
	if s.snapshotSource() != nil {
		_ = s.startSnapshotSync()
		return
	}
	if !s.stream.HasSnapshot() {
		for _, c := range s.clients {
			if c.loggedIn() && !c.closing {
				c.log.Warn("no snapshot available, disconnecting")
				c.closeWhenReady()
			}
		}
	}
}

func (s *Server) unlockBarriers() {
	for _, c := range s.clients {
		if c.barrier != barrierNotLocked {
			c.barrierUnlock()
		}
	}
}

// Status is a point in time summary of the session.
type Status struct {
	Started       bool   `json:"started"`
	Title         string `json:"title"`
	Users         []User `json:"users"`
	Connections   int    `json:"connections"`
	Locked        bool   `json:"locked"`
	Closed        bool   `json:"closed"`
	HistoryBytes  int    `json:"historyBytes"`
	HistoryOffset int    `json:"historyOffset"`
	HistoryEnd    int    `json:"historyEnd"`
	HasSnapshot   bool   `json:"hasSnapshot"`
}

func (s *Server) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Status{
		Started:       s.started,
		Title:         s.session.Title,
		Users:         s.users(),
		Connections:   len(s.clients),
		Locked:        s.session.Locked,
		Closed:        s.session.Closed,
		HistoryBytes:  s.stream.LengthInBytes(),
		HistoryOffset: s.stream.Offset(),
		HistoryEnd:    s.stream.End(),
		HasSnapshot:   s.stream.HasSnapshot(),
	}
}

func (s *Server) Users() []User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.users()
}

func (s *Server) users() []User {
	users := []User{}
	for _, c := range s.clients {
		if c.loggedIn() {
			users = append(users, c.user())
		}
	}
	return users
}

// withUser runs fn on the logged in user with the given id.
func (s *Server) withUser(id uint8, fn func(c *Client)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.clientByID(id)
	if c == nil {
		return ErrNoSuchUser
	}
	fn(c)
	return nil
}

// Kick disconnects a user once its pending messages are flushed.
func (s *Server) Kick(id uint8) error {
	return s.withUser(id, func(c *Client) { c.kick(0) })
}

// SetLocked locks or unlocks a user.
func (s *Server) SetLocked(id uint8, locked bool) error {
	return s.withUser(id, func(c *Client) {
		if locked && !c.userLock {
			c.lockUser()
		} else if !locked && c.userLock {
			c.unlockUser()
		}
	})
}

// SetOperator grants or revokes operator privileges.
func (s *Server) SetOperator(id uint8, op bool) error {
	return s.withUser(id, func(c *Client) {
		if op && !c.isOperator {
			c.grantOp()
		} else if !op && c.isOperator {
			c.deOp()
		}
	})
}

// ForceSnapshot starts a barrier synchronized snapshot.
func (s *Server) ForceSnapshot() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return ErrNoSession
	}
	return s.startSnapshotSync()
}
