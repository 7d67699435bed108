// Package xmltree parses an XML document into a generic attribute-labeled
// tree and extracts fields with tag and attribute predicates.
package xmltree

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"
)

// Node is one element of the tree.
type Node struct {
	XMLName  xml.Name
	Attrs    []xml.Attr `xml:",any,attr"`
	Content  string     `xml:",chardata"`
	Children []Node     `xml:",any"`
}

// Predicate selects nodes.
type Predicate func(*Node) bool

// Parse decodes data into its root node.
func Parse(data []byte) (*Node, error) {
	var root Node
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Strict = false
	dec.AutoClose = xml.HTMLAutoClose
	dec.Entity = xml.HTMLEntity
	if err := dec.Decode(&root); err != nil {
		return nil, fmt.Errorf("failed to parse XML: %w", err)
	}
	return &root, nil
}

func (n *Node) Tag() string {
	return n.XMLName.Local
}

// Attr returns the value of the named attribute, "" when absent or when n
// is nil.
func (n *Node) Attr(name string) string {
	if n == nil {
		return ""
	}
	for _, a := range n.Attrs {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}

// Text is the trimmed character data of the node.
func (n *Node) Text() string {
	if n == nil {
		return ""
	}
	return strings.TrimSpace(n.Content)
}

// Find returns the first direct child matching pred, or nil.
func (n *Node) Find(pred Predicate) *Node {
	if n == nil {
		return nil
	}
	for i := range n.Children {
		if pred(&n.Children[i]) {
			return &n.Children[i]
		}
	}
	return nil
}

// Filter returns every direct child matching pred, in document order.
func (n *Node) Filter(pred Predicate) []*Node {
	if n == nil {
		return nil
	}
	var out []*Node
	for i := range n.Children {
		if pred(&n.Children[i]) {
			out = append(out, &n.Children[i])
		}
	}
	return out
}

// Tag matches elements by local name.
func Tag(name string) Predicate {
	return func(n *Node) bool { return n.XMLName.Local == name }
}

// TagType matches elements by local name and "type" attribute, the shape
// used for typed names and links.
func TagType(name, typ string) Predicate {
	return func(n *Node) bool {
		return n.XMLName.Local == name && n.Attr("type") == typ
	}
}
