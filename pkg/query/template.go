// Package query builds GraphQL query text from templates with <NAME>
// placeholders.
//
// Substitution is literal: the engine never escapes or quotes values.
// Callers quote string arguments with Quote, After or ID before they are
// substituted.
package query

import (
	"strconv"
	"strings"
)

// Template is query text containing <NAME> placeholders.
type Template struct {
	text string
}

// New returns a template for text.
func New(text string) Template {
	return Template{text: text}
}

// Text returns the raw template text.
func (t Template) Text() string {
	return t.text
}

// Values maps placeholder names (without angle brackets) to their
// replacement text.
type Values map[string]string

// Render substitutes every <NAME> placeholder that has a value. Unknown
// placeholders are left in place.
func (t Template) Render(values Values) string {
	if len(values) == 0 {
		return t.text
	}
	pairs := make([]string, 0, len(values)*2)
	for name, value := range values {
		pairs = append(pairs, "<"+name+">", value)
	}
	return strings.NewReplacer(pairs...).Replace(t.text)
}

// Section returns the rendered sub-template when include is true, or the
// empty string. It is used for optional sub-queries.
func Section(include bool, t Template, values Values) string {
	if !include {
		return ""
	}
	return t.Render(values)
}

// Args joins the non-empty arguments with ", ". The separator only appears
// when more than one argument is present.
func Args(args ...string) string {
	present := make([]string, 0, len(args))
	for _, a := range args {
		if a != "" {
			present = append(present, a)
		}
	}
	return strings.Join(present, ", ")
}

// Quote returns s as a GraphQL string literal.
func Quote(s string) string {
	return strconv.Quote(s)
}

// First returns the "first: n" argument, or "" when n is not positive.
func First(n int) string {
	if n <= 0 {
		return ""
	}
	return "first: " + strconv.Itoa(n)
}

// After returns the quoted "after" argument, or "" for an empty cursor.
func After(cursor string) string {
	if cursor == "" {
		return ""
	}
	return "after: " + Quote(cursor)
}

// Arg returns a quoted string argument such as `id: "ENG-1"`.
func Arg(name, value string) string {
	return name + ": " + Quote(value)
}

// ID returns the quoted "id" argument.
func ID(id string) string {
	return Arg("id", id)
}

// Page returns the pagination arguments for one connection.
func Page(first int, after string) string {
	return Args(First(first), After(after))
}
