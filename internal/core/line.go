package core

// line.go tokenizes CSV lines and escapes values for export.
//
// The dialect is fixed: comma separated, double quotes for quoting, a doubled
// quote inside a quoted field is a literal quote. Malformed quoting never
// fails; it degrades to best-effort field boundaries.

import "strings"

// ParseLine splits a single CSV line into trimmed field values.
func ParseLine(line string) []string {
	var (
		fields       []string
		field        strings.Builder
		insideQuotes bool
	)

	flush := func() {
		fields = append(fields, cleanField(field.String()))
		field.Reset()
	}

	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case c == '"':
			if i+1 < len(line) && line[i+1] == '"' {
				field.WriteByte('"')
				i++
				continue
			}
			insideQuotes = !insideQuotes
		case c == ',' && !insideQuotes:
			flush()
		default:
			field.WriteByte(c)
		}
	}
	flush()

	return fields
}

// cleanField trims whitespace and strips one surrounding quote pair that
// survived tokenizing (e.g. a field quoted with padding around it).
func cleanField(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	return s
}

// EscapeValue quotes v when it contains a comma, a quote or a line break,
// doubling any embedded quotes. Other values are returned unchanged.
func EscapeValue(v string) string {
	if !strings.ContainsAny(v, ",\"\n\r") {
		return v
	}
	return `"` + strings.ReplaceAll(v, `"`, `""`) + `"`
}

// SplitLines splits decoded file text into logical CSV lines. A quote that
// opens a field may carry line breaks into the next physical lines; a quote
// in the middle of a field never does. A merged span that still does not
// parse to the schema's column count is split back into its physical lines,
// so a stray quote costs one row rather than the rest of the file.
//
// A trailing carriage return is dropped and blank lines are skipped.
func SplitLines(text string) []string {
	var (
		lines []string
		span  []string
		q     quoteState
	)

	flush := func() {
		joined := strings.Join(span, "\n")
		if len(span) > 1 && len(ParseLine(joined)) != len(Columns) {
			for _, line := range span {
				lines = appendLine(lines, line)
			}
		} else {
			lines = appendLine(lines, joined)
		}
		span = span[:0]
	}

	for _, line := range strings.Split(text, "\n") {
		span = append(span, line)
		if !q.scan(line) {
			flush()
		}
	}
	if len(span) > 0 {
		flush()
	}

	return lines
}

func appendLine(lines []string, line string) []string {
	line = strings.TrimSuffix(line, "\r")
	if strings.TrimSpace(line) == "" {
		return lines
	}
	return append(lines, line)
}

// quoteState tracks whether a logical line is inside a quoted field.
type quoteState struct {
	open bool
}

// scan consumes one physical line and reports whether a quoted field is
// still open at its end.
func (q *quoteState) scan(line string) bool {
	fieldStart := !q.open
	for i := 0; i < len(line); i++ {
		c := line[i]
		if q.open {
			if c == '"' {
				if i+1 < len(line) && line[i+1] == '"' {
					i++
					continue
				}
				q.open = false
			}
			continue
		}
		switch c {
		case ',':
			fieldStart = true
		case ' ', '\t', '\r':
		case '"':
			q.open = fieldStart
			fieldStart = false
		default:
			fieldStart = false
		}
	}
	return q.open
}
