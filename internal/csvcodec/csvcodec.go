// Package csvcodec encodes rows to CSV text and parses CSV text back into
// records.
//
// Output uses CRLF row terminators with a terminator after the last row.
// Input may carry a leading byte-order mark and any of CR, LF or CRLF as row
// terminators; quoted fields may span lines.
package csvcodec

import (
	"encoding/hex"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

const bom = "\uFEFF"

// Options controls Encode.
type Options struct {
	// QuoteAllFields quotes every non-null field instead of only those that
	// contain a comma, newline or double quote.
	QuoteAllFields bool
}

// Encode renders a header and rows as CSV text. Row values are converted
// with FormatValue; nil becomes an empty, unquoted field.
func Encode(header []string, rows [][]any, opts Options) string {
	var b strings.Builder

	for i, name := range header {
		if i > 0 {
			b.WriteByte(',')
		}
		writeField(&b, name, opts.QuoteAllFields)
	}
	b.WriteString("\r\n")

	for _, row := range rows {
		for i, v := range row {
			if i > 0 {
				b.WriteByte(',')
			}
			if v == nil {
				continue
			}
			writeField(&b, FormatValue(v), opts.QuoteAllFields)
		}
		b.WriteString("\r\n")
	}
	return b.String()
}

// EncodeRecords renders string records (the first one being the header).
func EncodeRecords(records [][]string, opts Options) string {
	var b strings.Builder
	for _, rec := range records {
		for i, field := range rec {
			if i > 0 {
				b.WriteByte(',')
			}
			writeField(&b, field, opts.QuoteAllFields)
		}
		b.WriteString("\r\n")
	}
	return b.String()
}

func writeField(b *strings.Builder, field string, quoteAll bool) {
	if !quoteAll && !NeedsQuotes(field) {
		b.WriteString(field)
		return
	}
	b.WriteByte('"')
	b.WriteString(strings.ReplaceAll(field, `"`, `""`))
	b.WriteByte('"')
}

// NeedsQuotes reports whether field must be quoted to survive a round trip.
func NeedsQuotes(field string) bool {
	return strings.ContainsAny(field, ",\"\r\n")
}

// FormatValue stringifies a value read from the engine.
func FormatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []byte:
		return hex.EncodeToString(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case int:
		return strconv.Itoa(val)
	case float64:
		return formatFloat(val)
	case bool:
		if val {
			return "1"
		}
		return "0"
	case time.Time:
		return FormatTime(val)
	default:
		return fmt.Sprint(val)
	}
}

func formatFloat(f float64) string {
	abs := math.Abs(f)
	if abs != 0 && (abs < 1e-6 || abs >= 1e21) {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// FormatTime renders t in UTC using SQLite's datetime layout, keeping
// fractional seconds only when present.
func FormatTime(t time.Time) string {
	t = t.UTC()
	if t.Nanosecond() == 0 {
		return t.Format("2006-01-02 15:04:05")
	}
	return t.Format("2006-01-02 15:04:05.999999999")
}

// Parse splits CSV text into records. Rows that carry no field data (blank
// lines, trailing terminators) are dropped. The first record is the header;
// checking that data rows match its width is left to the caller.
func Parse(text string) [][]string {
	text = strings.TrimPrefix(text, bom)

	var (
		records  [][]string
		row      []string
		field    strings.Builder
		inQuotes bool
		hasData  bool
	)

	endRow := func() {
		if hasData {
			row = append(row, field.String())
			records = append(records, row)
		}
		row = nil
		field.Reset()
		hasData = false
	}

	for i := 0; i < len(text); i++ {
		c := text[i]
		switch {
		case c == '"':
			hasData = true
			if inQuotes && i+1 < len(text) && text[i+1] == '"' {
				field.WriteByte('"')
				i++
				continue
			}
			inQuotes = !inQuotes
		case inQuotes:
			field.WriteByte(c)
		case c == ',':
			hasData = true
			row = append(row, field.String())
			field.Reset()
		case c == '\r':
			if i+1 < len(text) && text[i+1] == '\n' {
				i++
			}
			endRow()
		case c == '\n':
			endRow()
		default:
			hasData = true
			field.WriteByte(c)
		}
	}
	endRow()

	return records
}

// ParseLine splits a single line into fields using the same quoting rules as
// Parse. Line terminators inside the input are kept as field content.
func ParseLine(line string) []string {
	var (
		fields   []string
		field    strings.Builder
		inQuotes bool
	)
	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case c == '"':
			if inQuotes && i+1 < len(line) && line[i+1] == '"' {
				field.WriteByte('"')
				i++
				continue
			}
			inQuotes = !inQuotes
		case c == ',' && !inQuotes:
			fields = append(fields, field.String())
			field.Reset()
		default:
			field.WriteByte(c)
		}
	}
	return append(fields, field.String())
}
