package app

import "github.com/scrumdeck/scrumdeck/internal/core"

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	MarkSlow
	KickConnection
	DropFrame
)

// Policy decides what happens to a connection whose send buffer is
// full when a broadcast comes through.
type Policy interface {
	OnBackPressure(room *core.SessionService, cid core.ConnID) BackpressureAction
}

// SimplePolicy drops slow consumers; a client that cannot drain its
// snapshots is already out of sync and will resync on reconnect.
type SimplePolicy struct{}

func (SimplePolicy) OnBackPressure(room *core.SessionService, cid core.ConnID) BackpressureAction {
	return KickConnection
}
