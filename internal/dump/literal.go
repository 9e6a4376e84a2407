package dump

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/johndauphine/litekeep/internal/csvcodec"
)

// Literal renders a value read from the engine as an SQL literal that
// evaluates back to the same value and storage class.
func Literal(v any) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return fmt.Sprintf("X'%X'", val)
	case string:
		return quoteString(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case int:
		return strconv.Itoa(val)
	case float64:
		return realLiteral(val)
	case bool:
		if val {
			return "1"
		}
		return "0"
	case time.Time:
		return quoteString(csvcodec.FormatTime(val))
	default:
		return quoteString(fmt.Sprint(val))
	}
}

func quoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// realLiteral keeps a decimal point or exponent so the value is stored as
// REAL again rather than INTEGER.
func realLiteral(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NULL"
	case math.IsInf(f, 1):
		return "1e999"
	case math.IsInf(f, -1):
		return "-1e999"
	}

	var s string
	if abs := math.Abs(f); abs != 0 && (abs < 1e-6 || abs >= 1e21) {
		s = strconv.FormatFloat(f, 'g', -1, 64)
	} else {
		s = strconv.FormatFloat(f, 'f', -1, 64)
	}
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	return s
}
