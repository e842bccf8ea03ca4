package cli

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"mercator-hq/localchat/pkg/store"
)

var testThreads = []store.Thread{
	{ID: "t2", Title: "second, with comma", CreatedAt: time.Date(2024, 3, 2, 10, 0, 0, 0, time.UTC)},
	{ID: "t1", Title: "first", CreatedAt: time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)},
}

func TestParseOutputFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    OutputFormat
		wantErr bool
	}{
		{"", FormatText, false},
		{"text", FormatText, false},
		{"JSON", FormatJSON, false},
		{"csv", FormatCSV, false},
		{"junit", "", true},
	}
	for _, tt := range tests {
		got, err := ParseOutputFormat(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseOutputFormat(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseOutputFormat(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTextFormatter(t *testing.T) {
	var buf bytes.Buffer
	if err := NewFormatter(FormatText).FormatTo(&buf, testThreads); err != nil {
		t.Fatalf("FormatTo() error = %v", err)
	}

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3:\n%s", len(lines), buf.String())
	}
	if !strings.HasPrefix(lines[0], "ID") || !strings.Contains(lines[0], "TITLE") {
		t.Errorf("header = %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "t2") || !strings.Contains(lines[1], "2024-03-02 10:00:00") {
		t.Errorf("first row = %q", lines[1])
	}
}

func TestJSONFormatter(t *testing.T) {
	var buf bytes.Buffer
	if err := NewFormatter(FormatJSON).FormatTo(&buf, nil); err != nil {
		t.Fatalf("FormatTo() error = %v", err)
	}
	if got := strings.TrimSpace(buf.String()); got != "[]" {
		t.Errorf("empty listing = %q, want []", got)
	}

	buf.Reset()
	if err := NewFormatter(FormatJSON).FormatTo(&buf, testThreads); err != nil {
		t.Fatalf("FormatTo() error = %v", err)
	}
	if !strings.Contains(buf.String(), `"createdAt": "2024-03-01T09:30:00Z"`) {
		t.Errorf("missing createdAt in:\n%s", buf.String())
	}
}

func TestCSVFormatter(t *testing.T) {
	var buf bytes.Buffer
	if err := NewFormatter(FormatCSV).FormatTo(&buf, testThreads); err != nil {
		t.Fatalf("FormatTo() error = %v", err)
	}

	want := "id,title,created_at\n" +
		"t2,\"second, with comma\",2024-03-02T10:00:00Z\n" +
		"t1,first,2024-03-01T09:30:00Z\n"
	if buf.String() != want {
		t.Errorf("CSV output =\n%s\nwant\n%s", buf.String(), want)
	}
}
