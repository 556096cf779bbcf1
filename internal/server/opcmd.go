package server

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/exp/slog"

	"manualpilot/drawsrv/internal/protocol"
)

// handleOperatorCommand interprets an IRC style command sent as chat by an
// operator. It returns true if the command was accepted, in which case the
// chat message is not passed on.
func (c *Client) handleOperatorCommand(cmd string) bool {
	if !strings.HasPrefix(cmd, "/") {
		return false
	}
	s := c.server
	sess := s.session
	tokens := strings.Fields(cmd)

	switch {
	case len(tokens) == 2 && isUserCommand(tokens[0]):
		target := s.clientByArg(tokens[1])
		if target == nil {
			return false
		}
		switch tokens[0] {
		case "/lock":
			target.lockUser()
		case "/unlock":
			target.unlockUser()
		case "/kick":
			target.kick(c.id)
		case "/op":
			if !target.isOperator {
				target.grantOp()
			}
		case "/deop":
			if target != c && target.isOperator {
				target.deOp()
			}
		}

	case len(tokens) == 1 && tokens[0] == "/lock":
		sess.Locked = true
		s.addToCommandStream(sess.Config())
	case len(tokens) == 1 && tokens[0] == "/unlock":
		sess.Locked = false
		s.addToCommandStream(sess.Config())
	case len(tokens) == 1 && tokens[0] == "/locklayerctrl":
		sess.LayerControlLocked = true
		s.addToCommandStream(sess.Config())
	case len(tokens) == 1 && tokens[0] == "/unlocklayerctrl":
		sess.LayerControlLocked = false
		s.addToCommandStream(sess.Config())
	case len(tokens) == 1 && tokens[0] == "/close":
		sess.Closed = true
		s.addToCommandStream(sess.Config())
	case len(tokens) == 1 && tokens[0] == "/open":
		sess.Closed = false
		s.addToCommandStream(sess.Config())
	case len(tokens) == 1 && tokens[0] == "/lockdefault":
		sess.LockDefault = true
		s.addToCommandStream(sess.Config())
	case len(tokens) == 1 && tokens[0] == "/unlockdefault":
		sess.LockDefault = false
		s.addToCommandStream(sess.Config())

	case len(tokens) > 1 && tokens[0] == "/title":
		sess.Title = strings.Join(tokens[1:], " ")
		s.addToCommandStream(protocol.NewSessionTitle(c.id, sess.Title))

	case len(tokens) == 2 && tokens[0] == "/maxusers":
		n, err := strconv.Atoi(tokens[1])
		if err != nil || n < 0 {
			return false
		}
		sess.MaxUsers = n

	case tokens[0] == "/password":
		if len(tokens) == 1 {
			sess.Password = ""
		} else {
			// may contain spaces
			sess.Password = cmd[strings.IndexByte(cmd, ' ')+1:]
		}

	case len(tokens) == 1 && tokens[0] == "/force_snapshot":
		s.startSnapshotSync()
	case len(tokens) == 1 && tokens[0] == "/who":
		c.sendWhoList()
	case len(tokens) == 1 && tokens[0] == "/status":
		c.sendServerStatus()

	default:
		return false
	}

	c.log.Info("operator command", slog.String("command", tokens[0]))
	return true
}

func isUserCommand(cmd string) bool {
	switch cmd {
	case "/lock", "/unlock", "/kick", "/op", "/deop":
		return true
	}
	return false
}

func (s *Server) clientByArg(arg string) *Client {
	id, err := strconv.Atoi(arg)
	if err != nil || id < 1 || id > 255 {
		return nil
	}
	return s.clientByID(uint8(id))
}

// sendWhoList tells the operator who is logged in. Flags: @ operator, L locked
// by an operator, l waiting for sync or a barrier.
func (c *Client) sendWhoList() {
	for _, o := range c.server.clients {
		if !o.loggedIn() {
			continue
		}
		var flags string
		if o.isOperator {
			flags += "@"
		}
		if o.userLock {
			flags += "L"
		}
		if o.isHoldLocked() {
			flags += "l"
		}
		c.send(protocol.NewChat(0, fmt.Sprintf("#%d: %s [%s]", o.id, o.username, flags)))
	}
}

func (c *Client) sendServerStatus() {
	s := c.server
	hasSnapshot := "no"
	if s.stream.HasSnapshot() {
		hasSnapshot = "yes"
	}
	lines := []string{
		fmt.Sprintf("Logged in users: %d", s.userCount()),
		fmt.Sprintf("History size: %.2f Mb", float64(s.stream.LengthInBytes())/(1024*1024)),
		fmt.Sprintf("History indices: %d -- %d", s.stream.Offset(), s.stream.End()),
		fmt.Sprintf("Snapshot point exists: %s", hasSnapshot),
	}
	for _, line := range lines {
		c.send(protocol.NewChat(0, line))
	}
}
