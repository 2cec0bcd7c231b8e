package tui

import (
	"github.com/Veraticus/edc-mapper/internal/poller"
	"github.com/Veraticus/edc-mapper/internal/session"
)

// snapshotMsg carries a store update into the program.
type snapshotMsg struct {
	snap session.Snapshot
}

// sponsorSelectedMsg reports the outcome of a sponsor switch.
type sponsorSelectedMsg struct {
	sponsor string
	changed bool
}

// refreshedMsg reports the poller state after a manual refresh.
type refreshedMsg struct {
	state poller.State
}

// subscriptionClosedMsg is sent once the update channel is closed.
type subscriptionClosedMsg struct{}
