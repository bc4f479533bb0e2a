package main

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/jedib0t/go-pretty/v6/progress"
	"github.com/mattn/go-isatty"

	"ytarchive/internal/transfer"
)

func isTerminal(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// uploadProgress renders one bar per payload on an interactive terminal.
type uploadProgress struct {
	writer progress.Writer

	mu       sync.Mutex
	trackers map[string]*progress.Tracker
}

func newUploadProgress(out io.Writer) *uploadProgress {
	pw := progress.NewWriter()
	pw.SetOutputWriter(out)
	pw.SetAutoStop(false)
	pw.SetTrackerLength(30)
	pw.SetUpdateFrequency(250 * time.Millisecond)
	pw.SetStyle(progress.StyleDefault)
	pw.Style().Visibility.ETA = true
	pw.Style().Visibility.Speed = true
	pw.Style().Options.TimeInProgressPrecision = time.Second
	go pw.Render()
	return &uploadProgress{writer: pw, trackers: make(map[string]*progress.Tracker)}
}

func (p *uploadProgress) update(prog transfer.Progress) {
	p.mu.Lock()
	defer p.mu.Unlock()
	tracker, ok := p.trackers[prog.Name]
	if !ok {
		tracker = &progress.Tracker{Message: prog.Name, Total: prog.Total, Units: progress.UnitsBytes}
		p.writer.AppendTracker(tracker)
		p.trackers[prog.Name] = tracker
	}
	tracker.SetValue(prog.Sent)
	if prog.Sent >= prog.Total {
		tracker.MarkAsDone()
		delete(p.trackers, prog.Name)
	}
}

func (p *uploadProgress) stop() {
	p.writer.Stop()
}
