// Package elementid extracts fields from delimiter separated element
// identifiers such as "feedLink_42" or "entry_7".
package elementid

import (
	"errors"
	"fmt"
	"strings"

	"preader/dom"

	"golang.org/x/net/html"
)

const (
	DefaultDelimiter = "_"
	DefaultIndex     = 1
)

var (
	ErrInvalidElement  = errors.New("element has no identifier")
	ErrIndexOutOfRange = errors.New("identifier segment out of range")
)

// Element is anything carrying attributes
type Element interface {
	Attr(key string) (string, bool)
}

type node struct {
	n *html.Node
}

func (e node) Attr(key string) (string, bool) {
	return dom.Attr(e.n, key)
}

// Node adapts an HTML node to an Element
func Node(n *html.Node) Element {
	if n == nil {
		return nil
	}
	return node{n: n}
}

// Extract returns segment DefaultIndex of the element id split by
// DefaultDelimiter.
func Extract(el Element) (string, error) {
	return ExtractField(el, DefaultDelimiter, DefaultIndex)
}

// ExtractField returns segment index of the element id split by delimiter
func ExtractField(el Element, delimiter string, index int) (string, error) {
	if el == nil {
		return "", ErrInvalidElement
	}
	id, ok := el.Attr("id")
	if !ok || id == "" {
		return "", ErrInvalidElement
	}
	return Split(id, delimiter, index)
}

// Split returns segment index of id split by delimiter
func Split(id, delimiter string, index int) (string, error) {
	if id == "" {
		return "", ErrInvalidElement
	}
	segments := strings.Split(id, delimiter)
	if index < 0 || index >= len(segments) {
		return "", fmt.Errorf("%w: %q has %d segments, wanted index %d", ErrIndexOutOfRange, id, len(segments), index)
	}
	return segments[index], nil
}
