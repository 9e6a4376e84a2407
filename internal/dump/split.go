package dump

import "strings"

// SplitStatements splits a script into trimmed, non-empty statements.
// Semicolons inside string literals, quoted identifiers, comments and
// CREATE TRIGGER ... END bodies do not end a statement; the END of a CASE
// expression inside a trigger does not end the body. Comments are dropped.
func SplitStatements(script string) []string {
	s := splitter{}
	src := script

	for i := 0; i < len(src); i++ {
		c := src[i]
		switch {
		case c == '\'' || c == '"' || c == '`':
			s.endWord()
			end := closingQuote(src, i, c)
			s.buf.WriteString(src[i:end])
			s.last = ""
			i = end - 1
		case c == '[':
			s.endWord()
			end := strings.IndexByte(src[i:], ']')
			if end < 0 {
				end = len(src) - i - 1
			}
			s.buf.WriteString(src[i : i+end+1])
			s.last = ""
			i += end
		case c == '-' && i+1 < len(src) && src[i+1] == '-':
			s.endWord()
			end := strings.IndexByte(src[i:], '\n')
			if end < 0 {
				i = len(src)
			} else {
				i += end - 1
			}
			s.buf.WriteByte(' ')
		case c == '/' && i+1 < len(src) && src[i+1] == '*':
			s.endWord()
			end := strings.Index(src[i+2:], "*/")
			if end < 0 {
				i = len(src)
			} else {
				i += end + 3
			}
			s.buf.WriteByte(' ')
		case c == ';':
			s.endWord()
			if s.trigger && s.last != "END" {
				s.buf.WriteByte(c)
				s.last = ""
				continue
			}
			s.emit()
		case isWordByte(c):
			s.word.WriteByte(c)
			s.buf.WriteByte(c)
		default:
			s.endWord()
			if c != ' ' && c != '\t' && c != '\n' && c != '\r' {
				s.last = ""
			}
			s.buf.WriteByte(c)
		}
	}
	s.endWord()
	s.emit()

	return s.stmts
}

type splitter struct {
	stmts []string
	buf   strings.Builder
	word  strings.Builder

	head    []string // leading keywords of the current statement
	last    string   // most recent keyword, "" after punctuation
	trigger bool
	cases   int // open CASE expressions inside a trigger body
}

func (s *splitter) endWord() {
	if s.word.Len() == 0 {
		return
	}
	w := strings.ToUpper(s.word.String())
	s.word.Reset()
	s.last = w
	if len(s.head) < 3 {
		s.head = append(s.head, w)
		s.trigger = isTriggerHead(s.head)
		return
	}
	if !s.trigger {
		return
	}
	// Only an END outside every CASE can close the trigger body.
	switch w {
	case "CASE":
		s.cases++
	case "END":
		if s.cases > 0 {
			s.cases--
			s.last = ""
		}
	}
}

func (s *splitter) emit() {
	if stmt := strings.TrimSpace(s.buf.String()); stmt != "" {
		s.stmts = append(s.stmts, stmt)
	}
	s.buf.Reset()
	s.head = s.head[:0]
	s.last = ""
	s.trigger = false
	s.cases = 0
}

// isTriggerHead matches CREATE [TEMP|TEMPORARY] TRIGGER.
func isTriggerHead(head []string) bool {
	if len(head) < 2 || head[0] != "CREATE" {
		return false
	}
	if head[1] == "TRIGGER" {
		return true
	}
	return len(head) == 3 && (head[1] == "TEMP" || head[1] == "TEMPORARY") && head[2] == "TRIGGER"
}

// closingQuote returns the index just past the quote that closes the one at
// start. A doubled quote character is an escaped literal.
func closingQuote(src string, start int, q byte) int {
	for j := start + 1; j < len(src); j++ {
		if src[j] != q {
			continue
		}
		if j+1 < len(src) && src[j+1] == q {
			j++
			continue
		}
		return j + 1
	}
	return len(src)
}

func isWordByte(c byte) bool {
	return c == '_' || c == '$' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c >= 0x80
}

// isTransactionControl reports whether stmt opens or ends a transaction.
func isTransactionControl(stmt string) bool {
	fields := strings.Fields(strings.ToUpper(stmt))
	if len(fields) == 0 {
		return false
	}
	switch fields[0] {
	case "BEGIN", "COMMIT", "END":
		return true
	}
	return false
}
