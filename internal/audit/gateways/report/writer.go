// Package report renders audit reports for the console.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"gopkg.in/yaml.v3"

	"github.com/haukened/tf-spf-audit/internal/audit/domain"
)

// Supported output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Writer renders reports to an io.Writer.
type Writer struct {
	out    io.Writer
	format string
	host   *color.Color
	note   *color.Color
}

// NewWriter returns a Writer for format. Colour only applies to text output.
func NewWriter(out io.Writer, format string, useColor bool) (*Writer, error) {
	switch format {
	case FormatText, FormatJSON, FormatYAML:
	default:
		return nil, fmt.Errorf("unsupported report format: %q", format)
	}
	w := &Writer{
		out:    out,
		format: format,
		host:   color.New(color.FgRed, color.Bold),
		note:   color.New(color.FgYellow),
	}
	if useColor {
		w.host.EnableColor()
		w.note.EnableColor()
	} else {
		w.host.DisableColor()
		w.note.DisableColor()
	}
	return w, nil
}

// Write renders r in the configured format.
func (w *Writer) Write(r domain.Report) error {
	switch w.format {
	case FormatJSON:
		enc := json.NewEncoder(w.out)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	case FormatYAML:
		enc := yaml.NewEncoder(w.out)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return err
		}
		return enc.Close()
	default:
		return w.writeText(r)
	}
}

// writeText prints one " - <hostname>" line per violation.
func (w *Writer) writeText(r domain.Report) error {
	for _, v := range r.Violations {
		if _, err := fmt.Fprintf(w.out, " - %s", w.host.Sprint(v.Hostname)); err != nil {
			return err
		}
		if note := annotation(v); note != "" {
			if _, err := fmt.Fprintf(w.out, " %s", w.note.Sprint(note)); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintln(w.out); err != nil {
			return err
		}
	}
	return nil
}

func annotation(v domain.Violation) string {
	var notes []string
	switch {
	case v.LiveSPF != nil && *v.LiveSPF:
		notes = append(notes, "(live SPF published outside the scanned tree)")
	case v.LiveSPF != nil:
		notes = append(notes, "(no live SPF)")
	}
	switch {
	case v.ReportedRun != "":
		notes = append(notes, "(already reported in run "+v.ReportedRun+")")
	case v.PreviouslyReported:
		notes = append(notes, "(already reported)")
	}
	return strings.Join(notes, " ")
}
