package domain

import (
	"html"
	"net/url"
	"sort"
	"strings"
	"unicode/utf16"
)

// BlockType tags a RichBlock variant.
type BlockType string

const (
	BlockParagraph    BlockType = "paragraph"
	BlockHeading1     BlockType = "heading1"
	BlockHeading2     BlockType = "heading2"
	BlockHeading3     BlockType = "heading3"
	BlockHeading4     BlockType = "heading4"
	BlockHeading5     BlockType = "heading5"
	BlockHeading6     BlockType = "heading6"
	BlockPreformatted BlockType = "preformatted"
	BlockListItem     BlockType = "list-item"
	BlockOListItem    BlockType = "o-list-item"
	BlockImage        BlockType = "image"
	BlockEmbed        BlockType = "embed"
)

// SpanType tags inline formatting inside a block's text.
type SpanType string

const (
	SpanStrong    SpanType = "strong"
	SpanEm        SpanType = "em"
	SpanHyperlink SpanType = "hyperlink"
)

// Span marks [Start, End) of a block's text. Offsets count UTF-16 code units,
// matching the content store's wire format.
type Span struct {
	Start int       `json:"start"`
	End   int       `json:"end"`
	Type  SpanType  `json:"type"`
	Data  *SpanData `json:"data,omitempty"`
}

// SpanData carries hyperlink targets.
type SpanData struct {
	URL string `json:"url,omitempty"`
}

// RichBlock is one structured text block from the content store.
type RichBlock struct {
	Type  BlockType `json:"type"`
	Text  string    `json:"text,omitempty"`
	Spans []Span    `json:"spans,omitempty"`
	URL   string    `json:"url,omitempty"`
	Alt   string    `json:"alt,omitempty"`
}

// PlainText returns the block's textual content with no markup.
func (b RichBlock) PlainText() string {
	switch b.Type {
	case BlockImage, BlockEmbed:
		return ""
	default:
		return b.Text
	}
}

// AsText flattens blocks to plain text, one block per line.
func AsText(blocks []RichBlock) string {
	parts := make([]string, 0, len(blocks))
	for _, b := range blocks {
		if t := b.PlainText(); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, "\n")
}

// AsHTML renders blocks to HTML. Consecutive list items are grouped into a single list.
func AsHTML(blocks []RichBlock) string {
	var sb strings.Builder
	var openList BlockType

	closeList := func() {
		switch openList {
		case BlockListItem:
			sb.WriteString("</ul>")
		case BlockOListItem:
			sb.WriteString("</ol>")
		}
		openList = ""
	}

	for _, b := range blocks {
		if b.Type != openList {
			closeList()
			switch b.Type {
			case BlockListItem:
				sb.WriteString("<ul>")
				openList = b.Type
			case BlockOListItem:
				sb.WriteString("<ol>")
				openList = b.Type
			}
		}

		switch b.Type {
		case BlockParagraph:
			sb.WriteString("<p>" + renderSpans(b.Text, b.Spans) + "</p>")
		case BlockHeading1, BlockHeading2, BlockHeading3, BlockHeading4, BlockHeading5, BlockHeading6:
			tag := "h" + strings.TrimPrefix(string(b.Type), "heading")
			sb.WriteString("<" + tag + ">" + renderSpans(b.Text, b.Spans) + "</" + tag + ">")
		case BlockPreformatted:
			sb.WriteString("<pre>" + html.EscapeString(b.Text) + "</pre>")
		case BlockListItem, BlockOListItem:
			sb.WriteString("<li>" + renderSpans(b.Text, b.Spans) + "</li>")
		case BlockImage:
			sb.WriteString(`<p class="block-img"><img src="` + html.EscapeString(safeURL(b.URL)) + `" alt="` + html.EscapeString(b.Alt) + `" /></p>`)
		case BlockEmbed:
			sb.WriteString(`<div data-oembed="` + html.EscapeString(b.URL) + `"></div>`)
		default:
			// Unknown block types degrade to a paragraph of their text.
			if b.Text != "" {
				sb.WriteString("<p>" + html.EscapeString(b.Text) + "</p>")
			}
		}
	}
	closeList()

	return sb.String()
}

// renderSpans escapes text and wraps each span range in its tag. Overlapping
// spans are split at every boundary so the output always nests correctly.
func renderSpans(text string, spans []Span) string {
	if len(spans) == 0 {
		return html.EscapeString(text)
	}

	units := utf16.Encode([]rune(text))
	n := len(units)

	bounds := map[int]struct{}{0: {}, n: {}}
	for _, s := range spans {
		bounds[clamp(s.Start, 0, n)] = struct{}{}
		bounds[clamp(s.End, 0, n)] = struct{}{}
	}
	points := make([]int, 0, len(bounds))
	for p := range bounds {
		points = append(points, p)
	}
	sort.Ints(points)

	var sb strings.Builder
	for i := 0; i+1 < len(points); i++ {
		from, to := points[i], points[i+1]
		if from == to {
			continue
		}
		segment := html.EscapeString(string(utf16.Decode(units[from:to])))

		var active []Span
		for _, s := range spans {
			if s.Start <= from && s.End >= to {
				active = append(active, s)
			}
		}
		for _, s := range active {
			sb.WriteString(openTag(s))
		}
		sb.WriteString(segment)
		for j := len(active) - 1; j >= 0; j-- {
			sb.WriteString(closeTag(active[j]))
		}
	}
	return sb.String()
}

func openTag(s Span) string {
	switch s.Type {
	case SpanStrong:
		return "<strong>"
	case SpanEm:
		return "<em>"
	case SpanHyperlink:
		if s.Data == nil || !IsSafeURL(s.Data.URL) {
			return "<a>"
		}
		return `<a href="` + html.EscapeString(s.Data.URL) + `">`
	default:
		return ""
	}
}

func closeTag(s Span) string {
	switch s.Type {
	case SpanStrong:
		return "</strong>"
	case SpanEm:
		return "</em>"
	case SpanHyperlink:
		return "</a>"
	default:
		return ""
	}
}

// IsSafeURL reports whether a link target may be rendered: relative URLs and
// the http, https and mailto schemes.
func IsSafeURL(raw string) bool {
	if raw == "" {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	switch strings.ToLower(u.Scheme) {
	case "", "http", "https", "mailto":
		return true
	default:
		return false
	}
}

func safeURL(raw string) string {
	if !IsSafeURL(raw) {
		return ""
	}
	return raw
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
