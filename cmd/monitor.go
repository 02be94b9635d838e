// file: cmd/monitor.go
// version: 1.0.0
// guid: 8f4c2a96-1e7b-4d53-a9c0-3b6e5d8f1a27

package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/jdfalk/mediashare/internal/archive"
	"github.com/jdfalk/mediashare/internal/visitors"
)

const monitorInterval = 2 * time.Second

type jobLister interface {
	Jobs() []archive.Job
}

func runMonitor(ctx context.Context, out io.Writer, registry *visitors.Registry, jobs jobLister, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			renderMonitor(out, registry.Snapshot(), jobs.Jobs(), time.Now())
		}
	}
}

// renderMonitor prints the connected clients and any archive jobs in flight.
func renderMonitor(out io.Writer, clients []visitors.ClientRecord, jobs []archive.Job, now time.Time) {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleRounded)
	t.SetColumnConfigs([]table.ColumnConfig{{Number: 5, Align: text.AlignRight, AlignHeader: text.AlignLeft}})
	t.SetTitle(fmt.Sprintf("Connected clients (%d) at %s", len(clients), now.Format("15:04:05")))
	t.AppendHeader(table.Row{"IP", "Device", "OS", "Browser", "Requests", "Last seen"})
	for _, c := range clients {
		t.AppendRow(table.Row{c.IP, c.DeviceKind, c.OS, c.Browser, c.Requests, humanize.RelTime(c.LastSeenAt, now, "ago", "from now")})
	}
	if len(clients) == 0 {
		t.AppendRow(table.Row{"-", "", "", "", "", ""})
	}
	t.Render()

	var active []archive.Job
	for _, j := range jobs {
		if !j.Finished() {
			active = append(active, j)
		}
	}
	if len(active) == 0 {
		return
	}
	jt := table.NewWriter()
	jt.SetOutputMirror(out)
	jt.SetStyle(table.StyleRounded)
	jt.AppendHeader(table.Row{"Archive", "Status", "Progress"})
	for _, j := range active {
		pub := j.Public()
		jt.AppendRow(table.Row{j.Name, pub.Status, fmt.Sprintf("%d%%", pub.Progress)})
	}
	jt.Render()
}
