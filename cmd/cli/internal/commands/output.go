package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v3"
)

// table is the tabular rendering of a result.
type table struct {
	headers []string
	rows    [][]string
	footer  string
}

type printer struct {
	w      io.Writer
	format string
}

// print renders v as JSON or YAML, or t as an aligned table.
func (p *printer) print(v any, t table) error {
	switch p.format {
	case "json":
		enc := json.NewEncoder(p.w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(p.w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("failed to encode yaml: %w", err)
		}
		return enc.Close()
	default:
		return p.table(t)
	}
}

func (p *printer) table(t table) error {
	if len(t.rows) == 0 {
		fmt.Fprintln(p.w, "Nothing found.")
	} else {
		w := tabwriter.NewWriter(p.w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, strings.Join(t.headers, "\t"))
		for _, row := range t.rows {
			fmt.Fprintln(w, strings.Join(row, "\t"))
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}

	if t.footer != "" {
		fmt.Fprintln(p.w)
		fmt.Fprintln(p.w, t.footer)
	}

	return nil
}

// message prints a confirmation line in table mode and a small object
// otherwise, so scripted callers always get parseable output.
func (p *printer) message(msg string, fields map[string]any) error {
	if p.format == "table" || p.format == "" {
		fmt.Fprintln(p.w, msg)
		return nil
	}
	return p.print(fields, table{})
}

func money(v float64) string {
	return fmt.Sprintf("%.2f", v)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func counts(m map[string]int, order []string) string {
	if len(m) == 0 {
		return ""
	}

	seen := map[string]bool{}
	parts := make([]string, 0, len(m))
	for _, k := range order {
		if n, ok := m[k]; ok {
			parts = append(parts, fmt.Sprintf("%s=%d", k, n))
			seen[k] = true
		}
	}
	for _, k := range slices.Sorted(maps.Keys(m)) {
		if !seen[k] {
			parts = append(parts, fmt.Sprintf("%s=%d", k, m[k]))
		}
	}
	return strings.Join(parts, " ")
}
