// Package textview reduces an HTML body to the text between its tags.
package textview

import (
	"strings"

	"golang.org/x/net/html"
)

// Strip removes tags, comments and doctypes from body and returns the
// remaining text as written, without decoding character references.
func Strip(body string) string {
	sb := &strings.Builder{}
	z := html.NewTokenizer(strings.NewReader(body))
	for {
		switch z.Next() {
		case html.ErrorToken:
			// io.EOF is the only error a strings.Reader produces
			return sb.String()
		case html.TextToken:
			sb.Write(z.Raw())
		}
	}
}
