package cli

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"mercator-hq/localchat/pkg/store"
)

// OutputFormat represents the output format for command results.
type OutputFormat string

const (
	// FormatText is an aligned table (default).
	FormatText OutputFormat = "text"
	// FormatJSON is indented JSON.
	FormatJSON OutputFormat = "json"
	// FormatCSV is CSV with a header row.
	FormatCSV OutputFormat = "csv"
)

// ParseOutputFormat validates a --output flag value.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(s)); f {
	case FormatText, FormatJSON, FormatCSV:
		return f, nil
	case "":
		return FormatText, nil
	default:
		return "", NewConfigError("output", fmt.Sprintf("must be one of [text json csv], got %q", s))
	}
}

// ThreadFormatter writes a thread listing.
type ThreadFormatter interface {
	FormatTo(w io.Writer, threads []store.Thread) error
}

// TextFormatter writes an aligned table.
type TextFormatter struct{}

// FormatTo writes threads as a table.
func (f *TextFormatter) FormatTo(w io.Writer, threads []store.Thread) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCREATED\tTITLE")
	for _, t := range threads {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", t.ID, t.CreatedAt.Format(time.DateTime), t.Title)
	}
	return tw.Flush()
}

// JSONFormatter writes JSON.
type JSONFormatter struct {
	Indent bool
}

// FormatTo writes threads as a JSON array.
func (f *JSONFormatter) FormatTo(w io.Writer, threads []store.Thread) error {
	if threads == nil {
		threads = []store.Thread{}
	}
	encoder := json.NewEncoder(w)
	if f.Indent {
		encoder.SetIndent("", "  ")
	}
	return encoder.Encode(threads)
}

// CSVFormatter writes CSV.
type CSVFormatter struct{}

// FormatTo writes one record per thread after an id,title,created_at header.
func (f *CSVFormatter) FormatTo(w io.Writer, threads []store.Thread) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"id", "title", "created_at"}); err != nil {
		return err
	}
	for _, t := range threads {
		if err := cw.Write([]string{t.ID, t.Title, t.CreatedAt.UTC().Format(time.RFC3339)}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// NewFormatter creates a new formatter for the specified format.
func NewFormatter(format OutputFormat) ThreadFormatter {
	switch format {
	case FormatJSON:
		return &JSONFormatter{Indent: true}
	case FormatCSV:
		return &CSVFormatter{}
	default:
		return &TextFormatter{}
	}
}
