package cli

import (
	"io"
	"sync"
	"time"

	"github.com/briandowns/spinner"
)

// waitSpinner runs until the first fragment arrives. Stop is idempotent.
type waitSpinner struct {
	s    *spinner.Spinner
	once sync.Once
}

func newWaitSpinner(w io.Writer, msg string) *waitSpinner {
	s := spinner.New(spinner.CharSets[14], 80*time.Millisecond, spinner.WithWriter(w))
	s.Suffix = "  " + msg
	s.Color("cyan")
	return &waitSpinner{s: s}
}

func (sp *waitSpinner) Start() {
	sp.s.Start()
}

func (sp *waitSpinner) Stop() {
	sp.once.Do(sp.s.Stop)
}
