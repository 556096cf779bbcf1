package server

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/exp/slog"

	"manualpilot/drawsrv/internal/protocol"
)

// ProtocolMajorVersion is the protocol generation this server speaks.
const ProtocolMajorVersion = 7

// loginError is a login failure. Its text is the token sent to the client.
type loginError string

func (e loginError) Error() string { return string(e) }

const (
	errBadPass   loginError = "BADPASS"
	errWhat      loginError = "WHAT?"
	errBadName   loginError = "BADNAME"
	errClosed    loginError = "CLOSED"
	errNoSession loginError = "NOSESSION"
)

func (s *Server) greeting() string {
	hello := fmt.Sprintf("DRAWPILE %d.%d", ProtocolMajorVersion, s.session.MinorVersion)
	if s.session.Password != "" {
		hello += " PASS"
	}
	return hello
}

// sendGreeting announces the server to a freshly connected client.
func (c *Client) sendGreeting() {
	if c.server.session.Password != "" {
		c.substate = loginExpectPassword
	} else {
		c.substate = loginExpectCommand
	}
	c.send(protocol.NewLogin(c.server.greeting()))
}

func (c *Client) handleLoginMessage(msg protocol.Message) {
	err := error(errWhat)
	if login, ok := msg.(*protocol.Login); ok {
		if c.substate == loginExpectPassword {
			err = c.handleLoginPassword(login.Text)
		} else {
			err = c.handleLoginCommand(login.Text)
		}
	}
	if err == nil {
		return
	}

	token := errWhat
	var le loginError
	if errors.As(err, &le) {
		token = le
	}
	c.log.Info("login failed", slog.String("reason", string(token)), slog.String("type", msg.Type().String()))
	c.send(protocol.NewLogin(string(token)))
	c.closeWhenReady()
}

func (c *Client) handleLoginPassword(pass string) error {
	want := c.server.session.Password
	if subtle.ConstantTimeCompare([]byte(pass), []byte(want)) != 1 {
		return errBadPass
	}
	c.substate = loginExpectCommand
	c.send(protocol.NewLogin("OK"))
	return nil
}

func (c *Client) handleLoginCommand(text string) error {
	switch {
	case strings.HasPrefix(text, "HOST "):
		return c.handleHostSession(text)
	case strings.HasPrefix(text, "JOIN "):
		return c.handleJoinSession(text)
	}
	return errWhat
}

func (c *Client) handleHostSession(text string) error {
	s := c.server
	if s.started {
		return errClosed
	}

	tokens := strings.Fields(text)
	if len(tokens) < 4 {
		return errWhat
	}
	minor, err := strconv.Atoi(tokens[1])
	if err != nil || minor < 0 {
		return errWhat
	}
	id, err := strconv.Atoi(tokens[2])
	if err != nil || id < 1 || id > 255 {
		return errWhat
	}
	name := strings.Join(tokens[3:], " ")
	if !validUsername(name) {
		return errBadName
	}

	c.id = uint8(id)
	c.username = name
	s.session.MinorVersion = minor
	s.session.UserIDs.Reserve(c.id)
	s.clientLoggedIn(c)

	c.send(protocol.NewLogin(fmt.Sprintf("OK %d", c.id)))
	c.state = stateWaitForSync
	c.send(protocol.NewUserJoin(c.id, c.username))

	s.started = true
	c.requestSnapshot(false)
	c.streamPointer = s.stream.SnapshotPointIndex()
	c.subStreamPointer = -1

	c.grantOp()
	return nil
}

func (c *Client) handleJoinSession(text string) error {
	s := c.server
	if !s.started {
		return errNoSession
	}
	if s.session.Closed || s.userCount() >= s.session.MaxUsers {
		return errClosed
	}

	name := strings.TrimSpace(strings.TrimPrefix(text, "JOIN "))
	if !validUsername(name) {
		return errBadName
	}
	id := s.session.UserIDs.TakeNext()
	if id == 0 {
		return errClosed
	}

	c.id = id
	c.username = name
	s.clientLoggedIn(c)
	c.send(protocol.NewLogin(fmt.Sprintf("OK %d", c.id)))

	if s.synced && s.stream.HasSnapshot() && !s.snapshotInProgress() {
		c.state = stateInSession
		c.startCatchup()
	} else {
		c.state = stateWaitForSync
	}

	s.addToCommandStream(protocol.NewUserJoin(c.id, c.username))

	if s.userCount() == 1 {
		c.grantOp()
	} else if s.session.LockDefault {
		c.lockUser()
	}

	// a sync waiting for pens to lift must wait for this client too
	if s.syncPending {
		c.barrierLock()
	}
	return nil
}

func validUsername(name string) bool {
	if name == "" || !utf8.ValidString(name) {
		return false
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return false
		}
	}
	return true
}
