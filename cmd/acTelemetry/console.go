package main

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/hako/durafmt"

	"justapengu.in/actelemetry/internal/laplog"
	"justapengu.in/actelemetry/pkg/acudp"
)

// Console prints the handful of human readable lines the logger produces.
type Console struct {
	out io.Writer

	connected *color.Color
	lap       *color.Color
	best      *color.Color
}

func NewConsole(out io.Writer) *Console {
	return &Console{
		out:       out,
		connected: color.New(color.FgGreen, color.Bold),
		lap:       color.New(color.FgCyan),
		best:      color.New(color.FgMagenta, color.Bold),
	}
}

func (c *Console) Connected(session acudp.SessionInfo) {
	_, _ = c.connected.Fprintln(c.out, "connected")
	_, _ = fmt.Fprintln(c.out, session)
}

func (c *Console) LapCompleted(lap laplog.LapSummary) {
	_, _ = c.lap.Fprintf(c.out, "lapCount: %d, lapTime: %.3f\n", lap.NextLap, lap.LapTime.Seconds())
}

func (c *Console) PersonalBest(best *laplog.LapRecord) {
	_, _ = c.best.Fprintf(c.out, "personal best: %.3f (%s)\n", best.LapTime.Seconds(), best.RecordedAt.Format("2006-01-02"))
}

func (c *Console) Summary(status laplog.Status, elapsed time.Duration) {
	_, _ = fmt.Fprintf(c.out, "wrote %s rows across %d lap files in %s\n",
		humanize.Comma(int64(status.TotalRows)),
		len(status.Files),
		durafmt.Parse(elapsed.Round(time.Second)),
	)
}
