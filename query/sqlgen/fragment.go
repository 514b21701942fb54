package sqlgen

import (
	"fmt"
	"strings"

	"github.com/alecthomas/participle/v2/lexer"
)

// FragmentLexer tokenizes the SQL fragments registered as filters. It only
// needs to tell apart what gets substituted ([table] references, :params and
// the "this" keyword) from what must be left alone (string literals, quoted
// identifiers, postgres casts).
var FragmentLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "String", Pattern: `'(?:''|\\.|[^'\\])*'`},
	{Name: "QuotedIdent", Pattern: "`[^`]*`|\"[^\"]*\""},
	{Name: "TableRef", Pattern: `\[[A-Za-z_][A-Za-z0-9_]*\]`},
	{Name: "Cast", Pattern: `::`},
	{Name: "Param", Pattern: `:[A-Za-z_][A-Za-z0-9_]*`},
	{Name: "Ident", Pattern: `[A-Za-z_][A-Za-z0-9_$]*`},
	{Name: "Number", Pattern: `[0-9]+(?:\.[0-9]+)?`},
	{Name: "Whitespace", Pattern: `\s+`},
	{Name: "Punct", Pattern: `[^\sA-Za-z0-9_]`},
})

// ThisKeyword stands for the alias a fragment is applied to.
const ThisKeyword = "this"

var (
	tokTableRef   = FragmentLexer.Symbols()["TableRef"]
	tokParam      = FragmentLexer.Symbols()["Param"]
	tokIdent      = FragmentLexer.Symbols()["Ident"]
	tokWhitespace = FragmentLexer.Symbols()["Whitespace"]
	tokPunct      = FragmentLexer.Symbols()["Punct"]
)

// rawToken marks text inserted by a rewrite; it is never matched again.
const rawToken lexer.TokenType = -100

// Fragment is a tokenized SQL fragment. Rewrites return a new Fragment and
// leave the receiver untouched.
type Fragment struct {
	tokens []lexer.Token
}

// ParseFragment tokenizes s.
func ParseFragment(s string) (*Fragment, error) {
	lex, err := FragmentLexer.LexString("", s)
	if err != nil {
		return nil, fmt.Errorf("failed to tokenize fragment %q: %w", s, err)
	}
	tokens, err := lexer.ConsumeAll(lex)
	if err != nil {
		return nil, fmt.Errorf("failed to tokenize fragment %q: %w", s, err)
	}
	if n := len(tokens); n > 0 && tokens[n-1].EOF() {
		tokens = tokens[:n-1]
	}
	return &Fragment{tokens: tokens}, nil
}

// String renders the fragment back to SQL.
func (f *Fragment) String() string {
	var sb strings.Builder
	for _, t := range f.tokens {
		sb.WriteString(t.Value)
	}
	return sb.String()
}

// Params returns the ":name" placeholders, deduplicated, in order of first
// appearance.
func (f *Fragment) Params() []string {
	var out []string
	seen := make(map[string]bool)
	for _, t := range f.tokens {
		if t.Type == tokParam && !seen[t.Value] {
			seen[t.Value] = true
			out = append(out, t.Value)
		}
	}
	return out
}

// TableRefs returns the table names referenced as [table], deduplicated.
func (f *Fragment) TableRefs() []string {
	var out []string
	seen := make(map[string]bool)
	for _, t := range f.tokens {
		if t.Type != tokTableRef {
			continue
		}
		name := strings.Trim(t.Value, "[]")
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	return out
}

// Substitute replaces [table] references found in aliases and the bare
// "this" keyword with the matching alias. Unknown references are kept as
// they are. An empty this leaves the keyword alone.
func (f *Fragment) Substitute(aliases map[string]string, this string) *Fragment {
	out := f.clone()
	for i, t := range out.tokens {
		switch {
		case t.Type == tokTableRef:
			if alias, ok := aliases[strings.Trim(t.Value, "[]")]; ok {
				out.tokens[i] = raw(t, alias)
			}
		case t.Type == tokIdent && t.Value == ThisKeyword && this != "" && !out.qualified(i):
			out.tokens[i] = raw(t, this)
		}
	}
	return out
}

// ReplaceParam replaces every occurrence of the placeholder name with text.
func (f *Fragment) ReplaceParam(name, text string) *Fragment {
	out := f.clone()
	for i, t := range out.tokens {
		if t.Type == tokParam && t.Value == name {
			out.tokens[i] = raw(t, text)
		}
	}
	return out
}

// ReplaceFirstParam replaces the first occurrence of any placeholder with
// text and reports which placeholder it was.
func (f *Fragment) ReplaceFirstParam(text string) (*Fragment, string) {
	out := f.clone()
	for i, t := range out.tokens {
		if t.Type == tokParam {
			out.tokens[i] = raw(t, text)
			return out, t.Value
		}
	}
	return out, ""
}

// InList reports whether the placeholder appears as the operand of IN,
// either "IN (:name)" or "IN :name".
func (f *Fragment) InList(name string) bool {
	for i, t := range f.tokens {
		if t.Type != tokParam || t.Value != name {
			continue
		}
		if _, ok := f.inListPosition(i); ok {
			return true
		}
	}
	return false
}

// ExpandList replaces the IN-list placeholder name with the given
// placeholders. The list is parenthesized when the fragment did not do it.
// An empty list becomes NULL, which matches nothing and stays valid SQL.
func (f *Fragment) ExpandList(name string, placeholders []string) *Fragment {
	out := f.clone()
	for i, t := range out.tokens {
		if t.Type != tokParam || t.Value != name {
			continue
		}
		list := "NULL"
		if len(placeholders) > 0 {
			list = strings.Join(placeholders, ", ")
		}
		if paren, ok := out.inListPosition(i); ok && !paren {
			list = "(" + list + ")"
		}
		out.tokens[i] = raw(t, list)
	}
	return out
}

// inListPosition reports whether token i follows IN, and whether an opening
// parenthesis sits in between.
func (f *Fragment) inListPosition(i int) (paren bool, ok bool) {
	j := f.prevSignificant(i)
	if j >= 0 && f.tokens[j].Type == tokPunct && f.tokens[j].Value == "(" {
		paren = true
		j = f.prevSignificant(j)
	}
	if j >= 0 && f.tokens[j].Type == tokIdent && strings.EqualFold(f.tokens[j].Value, "IN") {
		return paren, true
	}
	return false, false
}

// qualified reports whether token i directly follows a dot.
func (f *Fragment) qualified(i int) bool {
	return i > 0 && f.tokens[i-1].Type == tokPunct && f.tokens[i-1].Value == "."
}

func (f *Fragment) prevSignificant(i int) int {
	for j := i - 1; j >= 0; j-- {
		if f.tokens[j].Type != tokWhitespace {
			return j
		}
	}
	return -1
}

func (f *Fragment) clone() *Fragment {
	tokens := make([]lexer.Token, len(f.tokens))
	copy(tokens, f.tokens)
	return &Fragment{tokens: tokens}
}

func raw(t lexer.Token, value string) lexer.Token {
	return lexer.Token{Type: rawToken, Value: value, Pos: t.Pos}
}

// EscapeColons renders the fragment for a named-parameter binder: every
// colon that is not part of a placeholder (string literals, casts, quoted
// identifiers) is doubled so the binder keeps it as a literal colon.
func (f *Fragment) EscapeColons() string {
	var sb strings.Builder
	for _, t := range f.tokens {
		if t.Type == tokParam {
			sb.WriteString(t.Value)
			continue
		}
		sb.WriteString(strings.ReplaceAll(t.Value, ":", "::"))
	}
	return sb.String()
}
