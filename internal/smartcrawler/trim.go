// Package smartcrawler fetches candidate URLs, extracts product data, scores
// name match, and merges evidence across up to N sources with conflict
// detection (§4.5 SmartCrawler).
package smartcrawler

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// trimThreshold is the raw-HTML size above which trimming kicks in (§4.5
// Content trimming: "If raw HTML exceeds ~90 KB").
const trimThreshold = 90 * 1024

// truncateSize is the hard ceiling applied after trimming if content is
// still over threshold (§4.5).
const truncateSize = 90 * 1024

// TrimContent strips script/style elements and comments from raw HTML when
// it exceeds trimThreshold, then truncates to truncateSize if still over
// (§4.5 Content trimming), using golang.org/x/net/html for a parse-based
// strip rather than regex soup.
func TrimContent(raw string) string {
	if len(raw) <= trimThreshold {
		return raw
	}
	stripped := stripScriptStyleComments(raw)
	if len(stripped) > truncateSize {
		return stripped[:truncateSize]
	}
	return stripped
}

func stripScriptStyleComments(raw string) string {
	node, err := html.Parse(strings.NewReader(raw))
	if err != nil {
		return raw
	}
	removeNodes(node)
	var sb strings.Builder
	if err := html.Render(&sb, node); err != nil {
		return raw
	}
	return sb.String()
}

func removeNodes(n *html.Node) {
	var next *html.Node
	for c := n.FirstChild; c != nil; c = next {
		next = c.NextSibling
		if c.Type == html.CommentNode {
			n.RemoveChild(c)
			continue
		}
		if c.Type == html.ElementNode && (c.DataAtom == atom.Script || c.DataAtom == atom.Style) {
			n.RemoveChild(c)
			continue
		}
		removeNodes(c)
	}
}
