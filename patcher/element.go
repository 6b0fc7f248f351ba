package patcher

import (
	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Element is a typed handle on a single markup element. The zero Element is
// absent; every accessor is safe on it.
type Element struct {
	sel *goquery.Selection
}

func elementOf(sel *goquery.Selection) Element {
	if sel == nil || sel.Length() == 0 {
		return Element{}
	}
	return Element{sel: sel.First()}
}

// Exists reports whether the element is present in the document.
func (e Element) Exists() bool {
	return e.sel != nil && e.sel.Length() > 0
}

// Attr returns the named attribute.
func (e Element) Attr(name string) (string, bool) {
	if !e.Exists() {
		return "", false
	}
	return e.sel.Attr(name)
}

// SetAttr sets the named attribute, keeping its position if already present.
func (e Element) SetAttr(name, value string) {
	if !e.Exists() {
		return
	}
	e.sel.SetAttr(name, value)
}

// FindFirst returns the first descendant matching m, in document order.
func (e Element) FindFirst(m goquery.Matcher) Element {
	if !e.Exists() {
		return Element{}
	}
	return elementOf(e.sel.FindMatcher(m))
}

// FindFirstWithAttr returns the first descendant matching m whose attribute
// name equals value.
func (e Element) FindFirstWithAttr(m goquery.Matcher, name, value string) Element {
	if !e.Exists() {
		return Element{}
	}
	return elementOf(e.sel.FindMatcher(m).FilterFunction(func(_ int, s *goquery.Selection) bool {
		v, ok := s.Attr(name)
		return ok && v == value
	}))
}

// InsertChildAt inserts a detached node as the i-th child. Indexes past the
// last child append.
func (e Element) InsertChildAt(i int, n *html.Node) {
	if !e.Exists() || n == nil || n.Parent != nil {
		return
	}
	parent := e.sel.Get(0)
	ref := parent.FirstChild
	for ; ref != nil && i > 0; i-- {
		ref = ref.NextSibling
	}
	if ref == nil {
		parent.AppendChild(n)
		return
	}
	parent.InsertBefore(n, ref)
}
