// Package progress defines the pull progress callback interface (design
// note §9: "a small interface with one method progress(state) accepted
// by the pull operation") and a terminal console renderer implementation.
package progress

import (
	"os"

	"github.com/coreos/ioprogress"
	"github.com/sirupsen/logrus"
	"golang.org/x/term"
)

// State is a snapshot of an in-progress pull operation.
type State struct {
	Ref             string
	BytesTransferred int64
	BytesTotal       int64
	Done             bool
}

// Handle receives progress updates during a pull.
type Handle interface {
	Progress(state State)
}

// noop discards every update; used when no caller-supplied handle is given.
type noop struct{}

func (noop) Progress(State) {}

// Noop is a Handle that does nothing, for callers with no UI.
var Noop Handle = noop{}

// Console renders a single terminal status line, only while stdout is a
// console (per §4.8: "drives an async progress handle to a terminal
// status line if stdout is a console"). It stays silent otherwise so
// piping output never produces line noise.
type Console struct {
	log        *logrus.Logger
	isTerminal bool
}

// NewConsole builds a Console renderer bound to stdout.
func NewConsole() *Console {
	log := logrus.New()
	log.SetOutput(os.Stdout)
	log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	return &Console{
		log:        log,
		isTerminal: term.IsTerminal(int(os.Stdout.Fd())),
	}
}

// Progress implements Handle.
func (c *Console) Progress(state State) {
	if !c.isTerminal {
		return
	}
	if state.Done {
		c.log.Infof("%s: done", state.Ref)
		return
	}
	if state.BytesTotal <= 0 {
		c.log.Infof("%s: %s", state.Ref, ioprogress.ByteUnitStr(state.BytesTransferred))
		return
	}
	c.log.Infof("%s: %s", state.Ref, ioprogress.DrawTextFormatBytes(state.BytesTransferred, state.BytesTotal))
}
