package db

import "testing"

func TestQuoteIdent(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		// Plain identifiers stay bare
		{name: "simple lowercase", input: "users", want: "users"},
		{name: "with underscore", input: "user_id", want: "user_id"},
		{name: "leading underscore", input: "_tmp", want: "_tmp"},
		{name: "with digits", input: "table1", want: "table1"},
		{name: "mixed case", input: "UserName", want: "UserName"},

		// Quoted
		{name: "empty string", input: "", want: `""`},
		{name: "space", input: "user name", want: `"user name"`},
		{name: "leading digit", input: "1st", want: `"1st"`},
		{name: "hyphen", input: "order-items", want: `"order-items"`},
		{name: "keyword", input: "order", want: `"order"`},
		{name: "keyword uppercase", input: "SELECT", want: `"SELECT"`},
		{name: "embedded quote", input: `a"b`, want: `"a""b"`},
		{name: "non-ascii", input: "café", want: `"café"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := QuoteIdent(tt.input); got != tt.want {
				t.Errorf("QuoteIdent(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestQuoteIdents(t *testing.T) {
	got := QuoteIdents([]string{"id", "group", "first name"})
	want := `id, "group", "first name"`
	if got != want {
		t.Errorf("QuoteIdents() = %q, want %q", got, want)
	}
}
