package application

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"time"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/adrg/frontmatter"
	"github.com/dfryer1193/spacetraveling/blog/domain"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
)

const maxLength = 200

// PostFrontmatter is the YAML header of a post markdown file.
type PostFrontmatter struct {
	UID       string `yaml:"uid"`
	Title     string `yaml:"title"`
	Subtitle  string `yaml:"subtitle"`
	Author    string `yaml:"author"`
	Banner    string `yaml:"banner"`
	Published string `yaml:"published"`
	Edited    string `yaml:"edited"`
}

// SourceMeta carries what the caller knows about a file outside its contents.
// Frontmatter values take precedence.
type SourceMeta struct {
	ID          string
	UID         string
	PublishedAt time.Time
	EditedAt    time.Time
}

type relativeLinkTransformer struct {
	domain string
}

func (t *relativeLinkTransformer) Transform(node *ast.Document, reader text.Reader, pc parser.Context) {
	ast.Walk(node, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}

		link, linkOk := n.(*ast.Link)
		img, imgOk := n.(*ast.Image)
		if !linkOk && !imgOk {
			return ast.WalkContinue, nil
		}

		dest := ""
		if linkOk {
			dest = string(link.Destination)
		} else if imgOk {
			dest = string(img.Destination)
		}

		if isRelativeLink(dest) {
			destFile := path.Base(dest)
			if imgOk {
				img.Destination = []byte(t.domain + "/images/" + destFile)
			} else if linkOk {
				// Links between posts point at the post route, keyed by slug
				destFile = strings.TrimSuffix(destFile, ".md")
				destFile = strings.TrimSuffix(destFile, ".html")
				link.Destination = []byte(t.domain + "/posts/" + slugFromFilename(destFile))
			}
		}

		return ast.WalkContinue, nil
	})
}

func isRelativeLink(dest string) bool {
	if dest == "" || strings.HasPrefix(dest, "#") {
		return false
	}

	// Absolute path check
	if strings.HasPrefix(dest, "/") {
		if strings.HasPrefix(dest, "//") {
			return false
		}
		return true
	}

	if strings.HasPrefix(dest, "./") || strings.HasPrefix(dest, "../") {
		return true
	}

	if strings.Contains(dest, ":") {
		return false
	}

	return true
}

// MarkdownImporter converts a post markdown file into a content store record.
type MarkdownImporter interface {
	Import(markdown []byte, meta SourceMeta) (*domain.RawRecord, error)
}

type MarkdownImporterImpl struct {
	md goldmark.Markdown
}

// NewMarkdownImporter creates an importer that rewrites relative links against siteURL.
func NewMarkdownImporter(siteURL string) MarkdownImporter {
	md := goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
			extension.Table,
			extension.Strikethrough,
			extension.TaskList,
		),
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
			parser.WithASTTransformers(
				util.Prioritized(&relativeLinkTransformer{domain: strings.TrimRight(siteURL, "/")}, 100),
			),
		),
	)

	return &MarkdownImporterImpl{
		md: md,
	}
}

func (m *MarkdownImporterImpl) Import(markdown []byte, meta SourceMeta) (*domain.RawRecord, error) {
	var fm PostFrontmatter
	body, err := frontmatter.Parse(bytes.NewReader(markdown), &fm)
	if err != nil {
		return nil, fmt.Errorf("failed to parse frontmatter: %w", err)
	}

	uid := firstNonEmpty(fm.UID, meta.UID)
	if uid == "" {
		return nil, &domain.MalformedRecordError{UID: meta.ID, Field: "uid"}
	}

	title := firstNonEmpty(fm.Title, extractPostTitle(body))
	if title == "" {
		return nil, &domain.MalformedRecordError{UID: uid, Field: "title"}
	}

	publishedAt, err := frontmatterTime(fm.Published, meta.PublishedAt)
	if err != nil {
		return nil, &domain.MalformedRecordError{UID: uid, Field: "published", Reason: err.Error()}
	}
	if publishedAt.IsZero() {
		return nil, &domain.MalformedRecordError{UID: uid, Field: "published"}
	}

	editedAt, err := frontmatterTime(fm.Edited, meta.EditedAt)
	if err != nil {
		return nil, &domain.MalformedRecordError{UID: uid, Field: "edited", Reason: err.Error()}
	}
	if editedAt.IsZero() || editedAt.Before(publishedAt) {
		editedAt = publishedAt
	}

	doc := m.md.Parser().Parse(text.NewReader(body))
	sections, err := buildSections(doc, body, extractPostTitle(body) == title)
	if err != nil {
		return nil, fmt.Errorf("failed to convert markdown for %s: %w", uid, err)
	}

	rec := &domain.RawRecord{
		ID:                 firstNonEmpty(meta.ID, uid),
		UID:                uid,
		Type:               domain.PostType,
		FirstPublicationAt: domain.FormatTimestamp(publishedAt),
		LastPublicationAt:  domain.FormatTimestamp(editedAt),
		Data: domain.RecordData{
			Title:    title,
			Subtitle: firstNonEmpty(fm.Subtitle, extractSnippet(body)),
			Author:   fm.Author,
			Content:  sections,
		},
	}
	if fm.Banner != "" {
		rec.Data.Banner = &domain.Banner{URL: fm.Banner, Alt: title}
	}

	return rec, nil
}

// buildSections splits the document at every level-2 heading. Content before
// the first one becomes a section with an empty heading. With dropTitle set, a
// leading level-1 heading is left out since the page renders the title itself.
func buildSections(doc ast.Node, src []byte, dropTitle bool) ([]domain.RecordSection, error) {
	type pending struct {
		heading string
		blocks  []domain.RichBlock
	}

	var sections []pending
	current := &pending{}
	started := false

	first := doc.FirstChild()
	if h, ok := first.(*ast.Heading); ok && dropTitle && h.Level == 1 {
		first = first.NextSibling()
	}

	for n := first; n != nil; n = n.NextSibling() {
		if h, ok := n.(*ast.Heading); ok && h.Level == 2 {
			if started || len(current.blocks) > 0 {
				sections = append(sections, *current)
			}
			current = &pending{heading: plainInline(h, src)}
			started = true
			continue
		}
		current.blocks = append(current.blocks, convertBlock(n, src)...)
	}
	if started || len(current.blocks) > 0 {
		sections = append(sections, *current)
	}

	out := make([]domain.RecordSection, 0, len(sections))
	for _, s := range sections {
		blocks := s.blocks
		if blocks == nil {
			blocks = []domain.RichBlock{}
		}
		body, err := json.Marshal(blocks)
		if err != nil {
			return nil, err
		}
		out = append(out, domain.RecordSection{Heading: s.heading, Body: body})
	}
	return out, nil
}

func convertBlock(n ast.Node, src []byte) []domain.RichBlock {
	switch node := n.(type) {
	case *ast.Heading:
		t, spans := richInline(node, src)
		return []domain.RichBlock{{Type: domain.BlockType(fmt.Sprintf("heading%d", node.Level)), Text: t, Spans: spans}}
	case *ast.Paragraph, *ast.TextBlock:
		if img, ok := soleImage(node); ok {
			return []domain.RichBlock{{Type: domain.BlockImage, URL: string(img.Destination), Alt: plainInline(img, src)}}
		}
		t, spans := richInline(node, src)
		if strings.TrimSpace(t) == "" {
			return nil
		}
		return []domain.RichBlock{{Type: domain.BlockParagraph, Text: t, Spans: spans}}
	case *ast.List:
		itemType := domain.BlockListItem
		if node.IsOrdered() {
			itemType = domain.BlockOListItem
		}
		var blocks []domain.RichBlock
		for item := node.FirstChild(); item != nil; item = item.NextSibling() {
			t, spans := richInline(item, src)
			blocks = append(blocks, domain.RichBlock{Type: itemType, Text: t, Spans: spans})
		}
		return blocks
	case *ast.FencedCodeBlock:
		return []domain.RichBlock{{Type: domain.BlockPreformatted, Text: codeLines(node.Lines(), src)}}
	case *ast.CodeBlock:
		return []domain.RichBlock{{Type: domain.BlockPreformatted, Text: codeLines(node.Lines(), src)}}
	case *ast.Blockquote:
		var blocks []domain.RichBlock
		for c := node.FirstChild(); c != nil; c = c.NextSibling() {
			blocks = append(blocks, convertBlock(c, src)...)
		}
		return blocks
	default:
		// Thematic breaks, raw HTML and tables have no rich text equivalent.
		return nil
	}
}

func soleImage(n ast.Node) (*ast.Image, bool) {
	if n.ChildCount() != 1 {
		return nil, false
	}
	img, ok := n.FirstChild().(*ast.Image)
	return img, ok
}

func codeLines(lines *text.Segments, src []byte) string {
	var sb strings.Builder
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		sb.Write(seg.Value(src))
	}
	return strings.TrimRight(sb.String(), "\n")
}

// spanBuilder accumulates inline text while tracking offsets in UTF-16 code units.
type spanBuilder struct {
	sb    strings.Builder
	units int
	spans []domain.Span
}

func (b *spanBuilder) write(s string) {
	b.sb.WriteString(s)
	b.units += len(utf16.Encode([]rune(s)))
}

func (b *spanBuilder) walk(n ast.Node, src []byte) {
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch node := c.(type) {
		case *ast.Text:
			b.write(string(node.Segment.Value(src)))
			if node.HardLineBreak() {
				b.write("\n")
			} else if node.SoftLineBreak() {
				b.write(" ")
			}
		case *ast.String:
			b.write(string(node.Value))
		case *ast.Emphasis:
			spanType := domain.SpanEm
			if node.Level >= 2 {
				spanType = domain.SpanStrong
			}
			b.wrap(node, src, domain.Span{Type: spanType})
		case *ast.Link:
			b.wrap(node, src, domain.Span{Type: domain.SpanHyperlink, Data: &domain.SpanData{URL: string(node.Destination)}})
		case *ast.AutoLink:
			start := b.units
			b.write(string(node.Label(src)))
			b.spans = append(b.spans, domain.Span{Start: start, End: b.units, Type: domain.SpanHyperlink, Data: &domain.SpanData{URL: string(node.URL(src))}})
		case *ast.Image, *ast.RawHTML:
			continue
		case *ast.Paragraph, *ast.TextBlock:
			if b.units > 0 {
				b.write(" ")
			}
			b.walk(node, src)
		case *ast.List:
			// Nested lists flatten into their parent item.
			continue
		default:
			b.walk(node, src)
		}
	}
}

func (b *spanBuilder) wrap(n ast.Node, src []byte, span domain.Span) {
	start := b.units
	b.walk(n, src)
	if b.units == start {
		return
	}
	span.Start = start
	span.End = b.units
	b.spans = append(b.spans, span)
}

func richInline(n ast.Node, src []byte) (string, []domain.Span) {
	b := &spanBuilder{}
	b.walk(n, src)
	return b.sb.String(), b.spans
}

func plainInline(n ast.Node, src []byte) string {
	t, _ := richInline(n, src)
	return strings.TrimSpace(t)
}

func frontmatterTime(value string, fallback time.Time) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", value)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// extractPostTitle returns the text of a leading "# " heading, or "" if there is none.
func extractPostTitle(markdown []byte) string {
	lines := strings.SplitN(strings.TrimLeft(string(markdown), "\n"), "\n", 2)
	if len(lines) == 0 {
		return ""
	}

	firstLine := strings.TrimSpace(lines[0])
	title, found := strings.CutPrefix(firstLine, "# ")
	if !found {
		return ""
	}

	return strings.TrimSpace(title)
}

func extractSnippet(markdown []byte) string {
	lines := strings.Split(string(markdown), "\n")
	var paragraphLines []string

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)

		// Skip headings before we find content
		if strings.HasPrefix(trimmed, "#") {
			if len(paragraphLines) > 0 {
				break
			}
			continue
		}

		// Empty line handling
		if trimmed == "" {
			if len(paragraphLines) > 0 {
				break // End of first paragraph
			}
			continue
		}

		// Stop at code blocks, horizontal rules, lists, tables
		if strings.HasPrefix(trimmed, "```") ||
			strings.HasPrefix(trimmed, "---") ||
			strings.HasPrefix(trimmed, "***") ||
			strings.HasPrefix(trimmed, "- ") ||
			strings.HasPrefix(trimmed, "* ") ||
			strings.HasPrefix(trimmed, "+ ") ||
			strings.HasPrefix(trimmed, "|") {
			if len(paragraphLines) > 0 {
				break
			}
			continue
		}

		paragraphLines = append(paragraphLines, trimmed)
	}

	if len(paragraphLines) == 0 {
		return ""
	}

	snippet := strings.Join(paragraphLines, " ")

	if len(snippet) > maxLength {
		cut := maxLength
		for cut > 0 && !utf8.RuneStart(snippet[cut]) {
			cut--
		}
		snippet = snippet[:cut]
		if lastSpace := strings.LastIndexAny(snippet, " \t"); lastSpace > 0 {
			snippet = snippet[:lastSpace]
		}
		snippet += "..."
	}

	return snippet
}
