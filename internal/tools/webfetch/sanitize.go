package webfetch

import (
	"io"
	"strings"

	"golang.org/x/net/html"
)

// droppedElements are removed wholesale, subtree included. They carry no
// text the model can use and dominate page weight.
var droppedElements = map[string]bool{
	"style":    true,
	"script":   true,
	"link":     true,
	"noscript": true,
	"picture":  true,
}

// Sanitize parses an HTML document and re-renders it with presentation
// elements removed, all attributes stripped, and comments dropped.
func Sanitize(r io.Reader) (string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return "", err
	}
	clean(doc)

	var sb strings.Builder
	if err := html.Render(&sb, doc); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func clean(n *html.Node) {
	var next *html.Node
	for child := n.FirstChild; child != nil; child = next {
		next = child.NextSibling
		switch child.Type {
		case html.CommentNode:
			n.RemoveChild(child)
		case html.ElementNode:
			if droppedElements[child.Data] {
				n.RemoveChild(child)
				continue
			}
			child.Attr = nil
			clean(child)
		default:
			clean(child)
		}
	}
}
