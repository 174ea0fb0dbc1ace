package html

import (
	"fmt"
	"strings"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

const cidScheme = "cid:"

// Attributes that can point at an inline image
var cidAttrs = []string{"src", "background"}

var cidSelector = cascadia.MustCompile(`[src^="cid:"], [background^="cid:"]`)

// ContentIDs returns the content IDs referenced by cid: URLs in body, in
// document order and without duplicates.
func ContentIDs(body string) ([]string, error) {
	doc, err := html.Parse(strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("can't parse the body as HTML: %v", err)
	}

	seen := make(map[string]struct{})
	ids := []string{}
	for _, n := range cidSelector.MatchAll(doc) {
		for _, a := range n.Attr {
			if !isCIDAttr(a.Key) || !strings.HasPrefix(a.Val, cidScheme) {
				continue
			}
			id := strings.TrimPrefix(a.Val, cidScheme)
			if id == "" {
				continue
			}
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func isCIDAttr(key string) bool {
	for _, k := range cidAttrs {
		if k == key {
			return true
		}
	}
	return false
}
