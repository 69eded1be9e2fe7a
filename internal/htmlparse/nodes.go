// Package htmlparse implements the Search and Detail parsers against
// rendered SCJN HTML pages, using golang.org/x/net/html as the tokenizer —
// the real-parser equivalent of the original Python implementation's
// BeautifulSoup structural selectors (id='gridResultados', dxgvDataRow
// classes, etc).
package htmlparse

import (
	"strings"

	"golang.org/x/net/html"
)

// attr returns the value of attribute key on n, or "" if absent.
func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// hasClass reports whether n's class attribute contains cls as one of its
// space-separated tokens.
func hasClass(n *html.Node, cls string) bool {
	for _, tok := range strings.Fields(attr(n, "class")) {
		if tok == cls {
			return true
		}
	}
	return false
}

// findByID walks the tree rooted at n and returns the first element whose
// id attribute equals id, or nil.
func findByID(n *html.Node, id string) *html.Node {
	if n.Type == html.ElementNode && attr(n, "id") == id {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findByID(c, id); found != nil {
			return found
		}
	}
	return nil
}

// findAllByClass walks the tree rooted at n and returns every element with
// the given tag name carrying the given class token, in document order.
func findAllByClass(n *html.Node, tag, cls string) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == tag && hasClass(n, cls) {
			out = append(out, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return out
}

// findFirst walks the tree rooted at n and returns the first element node
// with the given tag name, or nil.
func findFirst(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && n.Data == tag {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findFirst(c, tag); found != nil {
			return found
		}
	}
	return nil
}

// findAll walks the tree rooted at n and returns every element with the
// given tag name, in document order.
func findAll(n *html.Node, tag string) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == tag {
			out = append(out, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return out
}

// text returns the concatenated text content of n and its descendants,
// with surrounding whitespace trimmed.
func text(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.TrimSpace(sb.String())
}

// hrefContaining returns the href attribute of the first <a> descendant of
// n whose href contains substr, or "" if none match.
func hrefContaining(n *html.Node, substr string) string {
	for _, a := range findAll(n, "a") {
		href := attr(a, "href")
		if strings.Contains(href, substr) {
			return href
		}
	}
	return ""
}

// linkContaining returns the first <a> descendant of n whose href contains
// substr, or nil if none match.
func linkContaining(n *html.Node, substr string) *html.Node {
	for _, a := range findAll(n, "a") {
		if strings.Contains(attr(a, "href"), substr) {
			return a
		}
	}
	return nil
}

// parseDocument parses a full HTML document into its node tree.
func parseDocument(raw string) (*html.Node, error) {
	return html.Parse(strings.NewReader(raw))
}
