package builtin

import (
	"bytes"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
)

var tagPattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9-]*$`)

// DOM returns element and list builders plus read-only HTML queries.
// Builders produce plain node objects {tag, attrs, children}; render turns a
// node tree into sanitized HTML.
func DOM() map[string]any {
	policy := bluemonday.UGCPolicy()

	return map[string]any{
		"el":   element,
		"list": list,
		"render": func(node any) (string, error) {
			return renderNode(policy, node)
		},
		"sanitize": func(markup string) string {
			return policy.Sanitize(markup)
		},
		"select": selectText,
		"xpath":  xpathText,
		"text":   plainText,
	}
}

func element(tag string, attrs map[string]any, children ...any) (map[string]any, error) {
	if !tagPattern.MatchString(tag) {
		return nil, fmt.Errorf("invalid tag name %q", tag)
	}

	cleanAttrs := make(map[string]any, len(attrs))
	for k, v := range attrs {
		cleanAttrs[k] = fmt.Sprint(v)
	}

	return map[string]any{
		"tag":      strings.ToLower(tag),
		"attrs":    cleanAttrs,
		"children": flatten(children),
	}, nil
}

func list(items []any, ordered ...bool) map[string]any {
	tag := "ul"
	if len(ordered) > 0 && ordered[0] {
		tag = "ol"
	}

	children := make([]any, 0, len(items))
	for _, item := range items {
		children = append(children, map[string]any{
			"tag":      "li",
			"attrs":    map[string]any{},
			"children": flatten([]any{item}),
		})
	}

	return map[string]any{
		"tag":      tag,
		"attrs":    map[string]any{},
		"children": children,
	}
}

func flatten(children []any) []any {
	out := make([]any, 0, len(children))
	for _, child := range children {
		switch c := child.(type) {
		case nil:
		case []any:
			out = append(out, flatten(c)...)
		default:
			out = append(out, c)
		}
	}
	return out
}

func renderNode(policy *bluemonday.Policy, node any) (string, error) {
	root, err := buildNode(node, 0)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := html.Render(&buf, root); err != nil {
		return "", fmt.Errorf("failed to render node: %w", err)
	}
	return policy.Sanitize(buf.String()), nil
}

const maxNodeDepth = 256

func buildNode(node any, depth int) (*html.Node, error) {
	if depth > maxNodeDepth {
		return nil, fmt.Errorf("node tree deeper than %d levels", maxNodeDepth)
	}

	desc, ok := node.(map[string]any)
	if !ok {
		return &html.Node{Type: html.TextNode, Data: fmt.Sprint(node)}, nil
	}

	tag, _ := desc["tag"].(string)
	if !tagPattern.MatchString(tag) {
		return nil, fmt.Errorf("invalid tag name %q", tag)
	}

	el := &html.Node{Type: html.ElementNode, Data: strings.ToLower(tag)}

	if attrs, ok := desc["attrs"].(map[string]any); ok {
		keys := make([]string, 0, len(attrs))
		for k := range attrs {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			el.Attr = append(el.Attr, html.Attribute{Key: k, Val: fmt.Sprint(attrs[k])})
		}
	}

	if children, ok := desc["children"].([]any); ok {
		for _, child := range children {
			c, err := buildNode(child, depth+1)
			if err != nil {
				return nil, err
			}
			el.AppendChild(c)
		}
	}
	return el, nil
}

func selectText(markup, selector string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	var out []string
	doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		out = append(out, strings.TrimSpace(s.Text()))
	})
	return out, nil
}

func xpathText(markup, expr string) ([]string, error) {
	doc, err := htmlquery.Parse(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	nodes, err := htmlquery.QueryAll(doc, expr)
	if err != nil {
		return nil, fmt.Errorf("invalid xpath %q: %w", expr, err)
	}

	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, strings.TrimSpace(htmlquery.InnerText(n)))
	}
	return out, nil
}

func plainText(markup string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}
	return strings.Join(strings.Fields(doc.Text()), " "), nil
}
