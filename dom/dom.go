// Package dom provides the small set of HTML document operations the reader
// needs on top of golang.org/x/net/html.
package dom

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var ErrNoMatch = errors.New("no element matches selector")

// Parse parses a complete HTML document
func Parse(r io.Reader) (*html.Node, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse document: %w", err)
	}
	return doc, nil
}

func ParseString(s string) (*html.Node, error) {
	return Parse(strings.NewReader(s))
}

// Select returns the first element in document order matching selector.
// Supported selectors are "tag", "#id" and "tag#id".
func Select(root *html.Node, selector string) (*html.Node, error) {
	tag, id, err := parseSelector(selector)
	if err != nil {
		return nil, err
	}

	var found *html.Node
	walk(root, func(n *html.Node) bool {
		if n.Type != html.ElementNode {
			return true
		}
		if tag != "" && n.Data != tag {
			return true
		}
		if id != "" {
			if v, ok := Attr(n, "id"); !ok || v != id {
				return true
			}
		}
		found = n
		return false
	})

	if found == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoMatch, selector)
	}
	return found, nil
}

// SelectAll returns every element with the given tag name in document order
func SelectAll(root *html.Node, tag string) []*html.Node {
	var nodes []*html.Node
	walk(root, func(n *html.Node) bool {
		if n.Type == html.ElementNode && n.Data == tag {
			nodes = append(nodes, n)
		}
		return true
	})
	return nodes
}

func parseSelector(selector string) (string, string, error) {
	selector = strings.TrimSpace(selector)
	if selector == "" {
		return "", "", fmt.Errorf("empty selector")
	}
	tag, id, hasID := strings.Cut(selector, "#")
	if hasID && id == "" {
		return "", "", fmt.Errorf("invalid selector %q", selector)
	}
	if strings.ContainsAny(tag+id, " .#>[:") {
		return "", "", fmt.Errorf("unsupported selector %q", selector)
	}
	return strings.ToLower(tag), id, nil
}

// walk visits nodes depth first until visit returns false
func walk(n *html.Node, visit func(*html.Node) bool) bool {
	if !visit(n) {
		return false
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if !walk(c, visit) {
			return false
		}
	}
	return true
}

// Attr returns the value of the attribute key and whether it is present
func Attr(n *html.Node, key string) (string, bool) {
	if n == nil {
		return "", false
	}
	for _, attr := range n.Attr {
		if attr.Namespace == "" && attr.Key == key {
			return attr.Val, true
		}
	}
	return "", false
}

func SetAttr(n *html.Node, key, val string) {
	for i, attr := range n.Attr {
		if attr.Namespace == "" && attr.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

// Element creates a detached element node. attrs are key/value pairs.
func Element(tag string, attrs ...string) *html.Node {
	n := &html.Node{
		Type:     html.ElementNode,
		DataAtom: atom.Lookup([]byte(tag)),
		Data:     tag,
	}
	for i := 0; i+1 < len(attrs); i += 2 {
		n.Attr = append(n.Attr, html.Attribute{Key: attrs[i], Val: attrs[i+1]})
	}
	return n
}

func TextNode(text string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: text}
}

// Text returns the concatenated text content of n
func Text(n *html.Node) string {
	var sb strings.Builder
	walk(n, func(c *html.Node) bool {
		if c.Type == html.TextNode {
			sb.WriteString(c.Data)
		}
		return true
	})
	return sb.String()
}

func Render(w io.Writer, n *html.Node) error {
	return html.Render(w, n)
}

func RenderString(n *html.Node) (string, error) {
	var sb strings.Builder
	if err := html.Render(&sb, n); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// AppendHTML parses s as a fragment in the context of parent and appends the
// resulting nodes to it
func AppendHTML(parent *html.Node, s string) error {
	nodes, err := html.ParseFragment(strings.NewReader(s), parent)
	if err != nil {
		return fmt.Errorf("failed to parse fragment: %w", err)
	}
	for _, n := range nodes {
		parent.AppendChild(n)
	}
	return nil
}
