package activitylog

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
)

const (
	colorReset = "\x1b[0m"
	colorRed   = "\x1b[31m"
	colorGreen = "\x1b[32m"
)

// StatusColor returns the ANSI color an operator view uses for a status.
func StatusColor(status Status) string {
	switch status {
	case StatusError:
		return colorRed
	case StatusSuccess, StatusCreated, StatusInvoiced, StatusPaid:
		return colorGreen
	}
	return ""
}

// RenderTable writes the entries as an aligned table, one line per entry.
func RenderTable(w io.Writer, entries []Entry, color bool) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tSTATUS\tSECTION\tID\tMODE\tMESSAGE")

	for _, e := range entries {
		status := string(e.Status)
		if c := StatusColor(e.Status); color && c != "" {
			status = c + status + colorReset
		}
		// Only the first line of multi-line messages fits a table row.
		message, _, _ := strings.Cut(e.Message, "\n")
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			e.Time.Format("2006-01-02 15:04:05"), status, e.Section, e.SectionID, e.Mode, message)
	}
	return tw.Flush()
}
