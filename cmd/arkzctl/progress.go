package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/dustin/go-humanize"
	"golang.org/x/term"
)

const barWidth = 30

// progressBar redraws a single line on a terminal. Off a terminal it prints
// nothing.
type progressBar struct {
	mu   sync.Mutex
	out  io.Writer
	tty  bool
	last int
}

func newProgressBar(f *os.File) *progressBar {
	return &progressBar{out: f, tty: term.IsTerminal(int(f.Fd())), last: -1}
}

func (p *progressBar) Update(sent, total int64) {
	if !p.tty || total <= 0 {
		return
	}
	pct := int(sent * 100 / total)
	p.mu.Lock()
	defer p.mu.Unlock()
	if pct == p.last {
		return
	}
	p.last = pct
	fmt.Fprint(p.out, "\r"+renderBar(sent, total))
}

func (p *progressBar) Done() {
	if p.tty && p.last >= 0 {
		fmt.Fprintln(p.out)
	}
}

func renderBar(sent, total int64) string {
	if total <= 0 {
		return ""
	}
	if sent > total {
		sent = total
	}
	filled := int(sent * barWidth / total)
	return fmt.Sprintf("[%s%s] %3d%% %s/%s",
		strings.Repeat("=", filled), strings.Repeat(" ", barWidth-filled),
		sent*100/total, humanize.IBytes(uint64(sent)), humanize.IBytes(uint64(total)))
}
