package util

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/nanovms/docker2eif/log"
	"github.com/tj/go-spin"
)

// ProgressSpinner is an indefinite progress indicator using a spinner.
type ProgressSpinner struct {
	out     io.Writer
	message string
	colors  log.ConsoleColorsType
	delay   time.Duration

	mu   sync.Mutex
	stop chan struct{}
	wg   sync.WaitGroup
}

// NewProgressSpinner returns a spinner drawing on out
func NewProgressSpinner(out io.Writer) *ProgressSpinner {
	return &ProgressSpinner{out: out, delay: 100 * time.Millisecond}
}

// Start starts the spinner
func (ps *ProgressSpinner) Start(messages ...interface{}) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	if ps.stop != nil {
		return
	}

	ps.message = fmt.Sprint(messages...)
	ps.stop = make(chan struct{})
	s := spin.New()

	ps.wg.Add(1)
	go func(stop chan struct{}) {
		defer ps.wg.Done()
		ticker := time.NewTicker(ps.delay)
		defer ticker.Stop()
		for {
			fmt.Fprintf(ps.out, "\r%s%s %s%s", ps.colors.Yellow(), s.Next(), ps.colors.Reset(), ps.message)
			select {
			case <-stop:
				return
			case <-ticker.C:
			}
		}
	}(ps.stop)
}

// Do executes given function with given messages as label.
func (ps *ProgressSpinner) Do(workFunc func() error, messages ...interface{}) error {
	ps.Start(messages...)
	if err := workFunc(); err != nil {
		ps.Fail()
		return err
	}
	ps.Done()
	return nil
}

// Done stops the spinner with success mark.
func (ps *ProgressSpinner) Done() {
	ps.finish(ps.colors.Green() + "✔" + ps.colors.Reset())
}

// Fail stops the spinner with error mark.
func (ps *ProgressSpinner) Fail() {
	ps.finish(ps.colors.Red() + "✘" + ps.colors.Reset())
}

func (ps *ProgressSpinner) finish(mark string) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	if ps.stop == nil {
		return
	}
	close(ps.stop)
	ps.wg.Wait()
	ps.stop = nil
	fmt.Fprintf(ps.out, "\r%s %s\n", mark, ps.message)
}
