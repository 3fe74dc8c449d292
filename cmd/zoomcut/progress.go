package main

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
)

// progressDisplay рисует полосу на терминале и строки "[*] NN%" в остальных
// случаях (логи, пайпы).
type progressDisplay struct {
	w    io.Writer
	bar  *progressbar.ProgressBar
	last int
}

func newProgressDisplay(w io.Writer) *progressDisplay {
	d := &progressDisplay{w: w, last: -1}
	if isTerminal(w) {
		d.bar = progressbar.NewOptions(100,
			progressbar.OptionSetWriter(w),
			progressbar.OptionSetDescription("[*] Сборка"),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
	}
	return d
}

func (d *progressDisplay) set(pct int) {
	if pct <= d.last {
		return
	}
	d.last = pct
	if d.bar != nil {
		_ = d.bar.Set(pct)
		return
	}
	fmt.Fprintf(d.w, "[*] Прогресс: %d%%\n", pct)
}

func (d *progressDisplay) done() {
	if d.bar != nil {
		_ = d.bar.Finish()
		fmt.Fprintln(d.w)
	}
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
