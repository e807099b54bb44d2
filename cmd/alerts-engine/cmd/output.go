package cmd

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	domain "github.com/langcorps/alerts-engine/pkg/types"
)

// tabWriter wraps tabwriter with error tracking.
type tabWriter struct {
	*tabwriter.Writer
	err error
}

func newTabWriter(w io.Writer) *tabWriter {
	return &tabWriter{Writer: tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)}
}

func (tw *tabWriter) writef(format string, args ...any) {
	if tw.err != nil {
		return
	}
	_, tw.err = fmt.Fprintf(tw.Writer, format, args...)
}

func (tw *tabWriter) finish() error {
	if tw.err != nil {
		return tw.err
	}
	return tw.Flush()
}

func printAlertsTable(alerts []domain.Alert) error {
	tw := newTabWriter(os.Stdout)
	tw.writef("ID\tENTITY\tKIND\tCREATED\tRESOLVED\tDETAILS\n")
	for i := range alerts {
		a := &alerts[i]
		resolved := "-"
		if a.ResolvedAt != nil {
			resolved = a.ResolvedAt.Format("2006-01-02 15:04:05")
		}
		tw.writef("%s\t%s\t%s\t%s\t%s\t%s\n",
			a.ID,
			a.Ref().String(),
			a.Kind,
			a.CreatedAt.Format("2006-01-02 15:04:05"),
			resolved,
			truncate(a.Details, 60),
		)
	}
	return tw.finish()
}

func printCheckRunsTable(runs []domain.CheckRun) error {
	tw := newTabWriter(os.Stdout)
	tw.writef("RUN\tSTATUS\tSTARTED\tCOMPLETED\tCREATED\tRESOLVED\tERROR\n")
	for i := range runs {
		r := &runs[i]
		completed := "-"
		if r.CompletedAt != nil {
			completed = r.CompletedAt.Format("2006-01-02 15:04:05")
		}
		tw.writef("%s\t%s\t%s\t%s\t%d\t%d\t%s\n",
			r.RunID,
			r.Status,
			r.StartedAt.Format("2006-01-02 15:04:05"),
			completed,
			r.CreatedCount,
			r.ResolvedCount,
			truncate(r.ErrorText, 40),
		)
	}
	return tw.finish()
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
