package internal

import (
	"errors"
	"fmt"

	"manualpilot/drawsrv/internal/server"
)

type EventType string

const (
	EventTypeJoin     EventType = "join"
	EventTypeLeave    EventType = "leave"
	EventTypeSnapshot EventType = "snapshot"
)

// Event is published on the events channel whenever something happens in the
// session that listeners outside the process may care about.
type Event struct {
	Type     EventType    `json:"type"`
	Instance string       `json:"instance"`
	Time     int64        `json:"time"`
	User     *server.User `json:"user,omitempty"`
	Messages int          `json:"messages,omitempty"`
	Bytes    int          `json:"bytes,omitempty"`
}

type ControlType string

const (
	ControlKick          ControlType = "kick"
	ControlLock          ControlType = "lock"
	ControlUnlock        ControlType = "unlock"
	ControlOp            ControlType = "op"
	ControlDeop          ControlType = "deop"
	ControlForceSnapshot ControlType = "force_snapshot"
)

// Control is a remote operator action. It arrives either as a signed admin
// request or on the instance's control channel.
type Control struct {
	Type ControlType `json:"type"`
	User uint8       `json:"user,omitempty"`
}

var errUnknownControl = errors.New("unknown control")

func apply(srv *server.Server, ctl Control) error {
	switch ctl.Type {
	case ControlKick:
		return srv.Kick(ctl.User)
	case ControlLock:
		return srv.SetLocked(ctl.User, true)
	case ControlUnlock:
		return srv.SetLocked(ctl.User, false)
	case ControlOp:
		return srv.SetOperator(ctl.User, true)
	case ControlDeop:
		return srv.SetOperator(ctl.User, false)
	case ControlForceSnapshot:
		return srv.ForceSnapshot()
	}
	return fmt.Errorf("%w %q", errUnknownControl, ctl.Type)
}

const eventsChannel = "drawsrv:events"

func controlChannel(instanceID string) string {
	return fmt.Sprintf("drawsrv:control:%v", instanceID)
}

func listingKey(instanceID string) string {
	return fmt.Sprintf("drawsrv:session:%v", instanceID)
}
