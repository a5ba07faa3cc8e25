// Package bbcode converts Steam's BBCode dialect into HTML fragments.
//
// Only a fixed set of tags is recognized. Unknown tags are emitted as
// literal text, and a tag that cannot be rendered (a video preview without
// an id, an image with an unsafe source) renders as an empty string rather
// than failing the whole body. Render keeps no state between calls.
package bbcode

import (
	"errors"
	"fmt"
	"html"
	"net/url"
	"regexp"
	"strings"

	"github.com/steam-news/internal/models"
)

var (
	errNoVideoID = errors.New("video preview without id")
	errUnsafeURL = errors.New("unsafe url")
)

var (
	colorRe   = regexp.MustCompile(`^(#[0-9a-fA-F]{3}|#[0-9a-fA-F]{6}|[a-zA-Z]{1,20})$`)
	bareURLRe = regexp.MustCompile(`(?i)\b(?:https?://|www\.)[^\s<>"'\[\]]+`)
)

// Render returns body as HTML. HTML bodies pass through unchanged.
func Render(dialect models.Dialect, body string) string {
	switch dialect {
	case models.DialectBBCode:
		return ToHTML(body)
	default:
		return body
	}
}

// ToHTML renders a BBCode body
func ToHTML(body string) string {
	var b strings.Builder
	renderChildren(&b, parse(body), options{newlines: true, cosmetic: true, links: true})
	return b.String()
}

type options struct {
	newlines bool
	cosmetic bool
	links    bool
}

func (o options) inside(def *tagDef) options {
	return options{
		newlines: o.newlines && !def.noNewlines,
		cosmetic: o.cosmetic && !def.noCosmetic,
		links:    o.links && !def.noLinks,
	}
}

func renderChildren(b *strings.Builder, parent *node, opts options) {
	swallow := false
	for _, child := range parent.children {
		if child.def == nil {
			text := child.text
			if swallow {
				text = trimOneNewline(text)
			}
			b.WriteString(renderText(text, opts))
			swallow = false
			continue
		}

		out, err := renderTag(child, opts.inside(child.def))
		if err == nil {
			b.WriteString(out)
		}
		swallow = child.def.swallowAfter
	}
}

// renderText formats literal text, turning bare urls into links
func renderText(text string, opts options) string {
	if !opts.links {
		return formatText(text, opts)
	}

	var b strings.Builder
	last := 0
	for _, m := range bareURLRe.FindAllStringIndex(text, -1) {
		start := m[0]
		end := start + len(strings.TrimRight(text[start:m[1]], ".,;:!?)"))
		href, err := safeLink(text[start:end])
		if err != nil {
			continue
		}
		b.WriteString(formatText(text[last:start], opts))
		fmt.Fprintf(&b, `<a rel="nofollow" href="%s">%s</a>`,
			html.EscapeString(href), html.EscapeString(text[start:end]))
		last = end
	}
	b.WriteString(formatText(text[last:], opts))
	return b.String()
}

func formatText(text string, opts options) string {
	text = html.EscapeString(text)
	if opts.cosmetic {
		text = cosmeticReplacer.Replace(text)
	}
	if opts.newlines {
		text = newlineReplacer.Replace(text)
	}
	return text
}

func trimOneNewline(s string) string {
	switch {
	case strings.HasPrefix(s, "\r\n"):
		return s[2:]
	case strings.HasPrefix(s, "\n"), strings.HasPrefix(s, "\r"):
		return s[1:]
	}
	return s
}

// inner renders a tag's children with the tag's options applied
func inner(n *node, opts options) string {
	var b strings.Builder
	renderChildren(&b, n, opts)
	if n.def.strip {
		return strings.TrimSpace(b.String())
	}
	return b.String()
}

// rawText concatenates the literal text below n
func rawText(n *node) string {
	if n.def == nil && n.children == nil {
		return n.text
	}
	var b strings.Builder
	for _, c := range n.children {
		b.WriteString(rawText(c))
	}
	return b.String()
}

func renderTag(n *node, opts options) (string, error) {
	def := n.def
	switch def.kind {
	case kindSimple:
		return fmt.Sprintf("<%s>%s</%s>", def.element, inner(n, opts), def.element), nil

	case kindList:
		el := "ul"
		if n.option != "" {
			el = "ol"
		}
		return fmt.Sprintf("<%s>%s</%s>", el, inner(n, opts), el), nil

	case kindOList:
		return "<ol>" + inner(n, opts) + "</ol>", nil

	case kindListItem:
		return "<li>" + inner(n, opts) + "</li>", nil

	case kindQuote:
		author := n.option
		if author == "" {
			author = n.attrs["author"]
		}
		if author == "" {
			return "<blockquote>" + inner(n, opts) + "</blockquote>", nil
		}
		return fmt.Sprintf("<blockquote><p>Originally posted by <b>%s</b>:</p>%s</blockquote>",
			html.EscapeString(author), inner(n, opts)), nil

	case kindCode:
		return "<pre><code>" + html.EscapeString(rawText(n)) + "</code></pre>", nil

	case kindNoParse:
		return renderText(rawText(n), opts), nil

	case kindColor:
		color := strings.TrimSpace(n.option)
		if !colorRe.MatchString(color) {
			return inner(n, opts), nil
		}
		return fmt.Sprintf(`<span style="color: %s;">%s</span>`, color, inner(n, opts)), nil

	case kindURL:
		return renderURL(n, opts)

	case kindHR:
		return "<hr />", nil

	case kindImg:
		return renderImg(n)

	case kindPreviewYouTube:
		return renderPreviewYouTube(n)

	case kindSpoiler:
		return fmt.Sprintf(`<span style="%s">%s</span>`, spoilerStyle, inner(n, opts)), nil
	}
	return "", fmt.Errorf("unhandled tag %q", n.name)
}

func renderURL(n *node, opts options) (string, error) {
	href := n.option
	if href == "" {
		href = n.attrs["href"]
	}
	if href == "" {
		href = rawText(n)
	}
	body := inner(n, opts)

	link, err := safeLink(href)
	if err != nil {
		return body, nil
	}
	if body == "" {
		body = html.EscapeString(link)
	}
	return fmt.Sprintf(`<a rel="nofollow" href="%s">%s</a>`, html.EscapeString(link), body), nil
}

func renderImg(n *node) (string, error) {
	src := n.attrs["src"]
	if src == "" {
		src = n.option
	}
	if src == "" {
		src = rawText(n)
	}
	src = strings.TrimSpace(src)
	for _, p := range imagePlaceholders {
		src = strings.ReplaceAll(src, p.token, p.prefix)
	}

	link, err := safeLink(src)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(`<img style="%s" src="%s">`, imgStyle, html.EscapeString(link)), nil
}

// renderPreviewYouTube turns [previewyoutube=<id>;<qualifier>] into a plain
// link. The id is everything before the first ';'.
func renderPreviewYouTube(n *node) (string, error) {
	opt := n.option
	if opt == "" {
		opt = n.attrs["id"]
	}
	semi := strings.IndexByte(opt, ';')
	if semi <= 0 {
		return "", errNoVideoID
	}
	watch := youtubeWatch + url.QueryEscape(opt[:semi])
	return fmt.Sprintf(`<a rel="nofollow" href="%s">%s</a>`, html.EscapeString(watch), html.EscapeString(watch)), nil
}

// safeLink accepts http(s), mailto and steam links. A bare host gets http://.
func safeLink(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", errUnsafeURL
	}
	if strings.HasPrefix(raw, "//") {
		return "https:" + raw, nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", errUnsafeURL
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https", "mailto", "steam":
		return raw, nil
	case "":
		if strings.HasPrefix(raw, "/") {
			return "", errUnsafeURL
		}
		return "http://" + raw, nil
	default:
		return "", errUnsafeURL
	}
}
