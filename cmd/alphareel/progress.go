package main

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/mattn/go-isatty"
)

// progressLine renders a single updating "Encoding NN%" line on terminals.
// On other writers it stays silent; the job logs carry sampled progress.
type progressLine struct {
	mu      sync.Mutex
	w       io.Writer
	tty     bool
	last    int
	printed bool
}

func newProgressLine(w io.Writer) *progressLine {
	return &progressLine{w: w, tty: isTerminal(w), last: -1}
}

func (p *progressLine) update(percent int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.tty || percent == p.last {
		return
	}
	p.last = percent
	p.printed = true
	fmt.Fprintf(p.w, "\rEncoding %3d%%", percent)
}

func (p *progressLine) finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.printed {
		fmt.Fprintln(p.w)
		p.printed = false
	}
}

func isTerminal(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
