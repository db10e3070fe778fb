// Package observability provides formatted summaries of search runs for the CLI.
package observability

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jonathan/lead-collector/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
)

// Stats counts the contacts found by a search.
type Stats struct {
	Total    int
	Websites int
	Emails   int
	LinkedIn int
	Facebook int
	WhatsApp int
	Elapsed  time.Duration
}

// ComputeStats tallies the contact fields of records.
func ComputeStats(records []types.BusinessRecord, elapsed time.Duration) Stats {
	s := Stats{Total: len(records), Elapsed: elapsed}
	for _, r := range records {
		if r.Website != "" {
			s.Websites++
		}
		if r.Email != "" {
			s.Emails++
		}
		if r.LinkedIn != "" {
			s.LinkedIn++
		}
		if r.Facebook != "" {
			s.Facebook++
		}
		if r.WhatsApp != "" {
			s.WhatsApp++
		}
	}
	return s
}

// Printer handles formatted output for the CLI
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	for _, line := range strings.Split(content, "\n") {
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, truncate(line, boxWidth-4))
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// PrintStats outputs the final statistics of a search.
func (p *Printer) PrintStats(s Stats) {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Businesses:  %d\n", s.Total))
	sb.WriteString(fmt.Sprintf("Websites:    %s\n", share(s.Websites, s.Total)))
	sb.WriteString(fmt.Sprintf("Emails:      %s\n", share(s.Emails, s.Total)))
	sb.WriteString(fmt.Sprintf("LinkedIn:    %s\n", share(s.LinkedIn, s.Total)))
	sb.WriteString(fmt.Sprintf("Facebook:    %s\n", share(s.Facebook, s.Total)))
	sb.WriteString(fmt.Sprintf("WhatsApp:    %s\n", share(s.WhatsApp, s.Total)))
	sb.WriteString(fmt.Sprintf("Elapsed:     %s", s.Elapsed.Round(100*time.Millisecond)))

	p.printBox("SEARCH STATISTICS", sb.String())
}

// PrintResults outputs the first records with the contacts found for each.
func (p *Printer) PrintResults(records []types.BusinessRecord) {
	if len(records) == 0 {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Total results: %d\n\n", len(records)))

	count := min(len(records), maxItemsToShow)
	for i := 0; i < count; i++ {
		r := records[i]
		sb.WriteString(fmt.Sprintf("#%d  %s\n", i+1, r.Name))
		if r.Phone != "" {
			sb.WriteString(fmt.Sprintf("    Phone: %s\n", r.Phone))
		}
		if found := r.Contacts().Found(); len(found) > 0 {
			sb.WriteString(fmt.Sprintf("    Found: %s\n", strings.Join(found, ", ")))
		}
		if i < count-1 {
			sb.WriteString("\n")
		}
	}
	if len(records) > maxItemsToShow {
		sb.WriteString(fmt.Sprintf("\n... and %d more", len(records)-maxItemsToShow))
	}

	p.printBox("RESULTS", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintSearchEntry outputs a summary of a recorded search.
func (p *Printer) PrintSearchEntry(entry *types.SearchEntry) {
	if entry == nil {
		return
	}

	stats := ComputeStats(entry.Results, 0)
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Niche:     %s\n", entry.Niche))
	sb.WriteString(fmt.Sprintf("City:      %s\n", entry.City))
	sb.WriteString(fmt.Sprintf("When:      %s\n", entry.Timestamp))
	sb.WriteString(fmt.Sprintf("Results:   %d\n", entry.TotalResults))
	sb.WriteString(fmt.Sprintf("Emails:    %d  WhatsApp: %d", stats.Emails, stats.WhatsApp))

	p.printBox(fmt.Sprintf("SEARCH #%d", entry.ID), sb.String())
}

func share(n, total int) string {
	if total == 0 {
		return "0"
	}
	return fmt.Sprintf("%d (%.0f%%)", n, float64(n)/float64(total)*100)
}

// truncate shortens s to width runes.
func truncate(s string, width int) string {
	runes := []rune(s)
	if len(runes) <= width {
		return s
	}
	return string(runes[:width-3]) + "..."
}
