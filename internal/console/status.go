package console

import (
	"io"

	"trip-agent/internal/entity"

	"github.com/fatih/color"
)

// StatusPrinter renders session status transitions as colored terminal lines.
type StatusPrinter struct {
	out     io.Writer
	login   *color.Color
	working *color.Color
	done    *color.Color
	failed  *color.Color
}

func NewStatusPrinter(out io.Writer) *StatusPrinter {
	return &StatusPrinter{
		out:     out,
		login:   color.New(color.FgYellow),
		working: color.New(color.FgBlue),
		done:    color.New(color.FgGreen, color.Bold),
		failed:  color.New(color.FgRed, color.Bold),
	}
}

func (p *StatusPrinter) ReportStatus(status entity.Status) {
	switch status.State {
	case entity.StatusLogin:
		p.login.Fprintln(p.out, "Waiting for login...")
	case entity.StatusWorking:
		p.working.Fprintf(p.out, "%s...\n", status.Action)
	case entity.StatusDone:
		p.done.Fprintln(p.out, "Done")
	case entity.StatusFailed:
		p.failed.Fprintln(p.out, "Failed")
	}
}
