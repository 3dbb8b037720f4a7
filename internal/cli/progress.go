package cli

import (
	"fmt"
	"io"
	"sync"
)

// progressPrinter renders job progress. On a terminal it redraws one line;
// elsewhere it prints a line each time another quarter is reached.
type progressPrinter struct {
	w     io.Writer
	live  bool
	quiet bool

	mu      sync.Mutex
	step    int
	printed bool
}

func newProgressPrinter(w io.Writer, live, quiet bool) *progressPrinter {
	return &progressPrinter{w: w, live: live, quiet: quiet, step: -1}
}

func (p *progressPrinter) update(fraction float64, text string) {
	if p.quiet {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	pct := int(fraction * 100)

	if p.live {
		fmt.Fprintf(p.w, "\r\033[K[%3d%%] %s", pct, text)
		p.printed = true

		return
	}

	if step := pct / 25; step > p.step {
		p.step = step
		fmt.Fprintf(p.w, "progress %3d%% %s\n", pct, text)
	}
}

// finish terminates a live line.
func (p *progressPrinter) finish() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.live && p.printed {
		fmt.Fprintln(p.w)
		p.printed = false
	}
}
