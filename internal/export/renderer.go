// Package export renders a project graph as text.
//
// Rendering is deterministic and performs no I/O: the same title, blocks,
// relationships and format always produce the same string. Archiving and
// delivering the result is the caller's job.
package export

import (
	"fmt"
	"strings"

	"github.com/wuzhiguocarter/Aletheia/internal/domain/block"
	"github.com/wuzhiguocarter/Aletheia/internal/domain/relationship"
	"github.com/wuzhiguocarter/Aletheia/internal/domain/shared"
	"github.com/wuzhiguocarter/Aletheia/internal/errors"
)

// Format selects an encoding.
type Format string

const (
	FormatMarkdown     Format = "markdown"
	FormatArticle      Format = "article"
	FormatPresentation Format = "presentation"
)

// excerptLength is how many characters of a supporting block the article quotes.
const excerptLength = 100

// ErrUnsupportedFormat is returned for format tags with no renderer.
var ErrUnsupportedFormat = errors.Validation(errors.CodeUnsupportedFormat.String(), "unsupported export format").
	WithResource("export").
	Build()

// Document is the input to a renderer.
type Document struct {
	Title         string
	Blocks        []block.Block
	Relationships []relationship.Relationship
}

// RenderFunc encodes a document.
type RenderFunc func(doc Document) string

var renderers = map[Format]RenderFunc{
	FormatMarkdown:     Markdown,
	FormatArticle:      Article,
	FormatPresentation: Presentation,
}

// Formats lists the supported formats.
func Formats() []Format {
	return []Format{FormatMarkdown, FormatArticle, FormatPresentation}
}

// ParseFormat validates a format tag.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.TrimSpace(s))
	if _, ok := renderers[f]; !ok {
		return "", errors.From(ErrUnsupportedFormat).WithDetailsf("format %q", s).Build()
	}
	return f, nil
}

// Render encodes doc in format f.
func Render(doc Document, f Format) (string, error) {
	render, ok := renderers[f]
	if !ok {
		return "", errors.From(ErrUnsupportedFormat).WithDetailsf("format %q", f).Build()
	}
	return render(doc), nil
}

// FileName is the download name for an export: markdown gets .md, every
// other format .txt.
func FileName(title string, f Format) string {
	if f == FormatMarkdown {
		return title + ".md"
	}
	return title + ".txt"
}

// ContentType is the MIME type served with an export.
func ContentType(f Format) string {
	if f == FormatMarkdown {
		return "text/markdown; charset=utf-8"
	}
	return "text/plain; charset=utf-8"
}

// Markdown groups blocks by type. Groups appear in the order their first
// block appears; blocks keep their order within a group.
func Markdown(doc Document) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", doc.Title)

	var groupOrder []block.Type
	groups := make(map[block.Type][]block.Block)
	for _, b := range doc.Blocks {
		if _, seen := groups[b.Type]; !seen {
			groupOrder = append(groupOrder, b.Type)
		}
		groups[b.Type] = append(groups[b.Type], b)
	}

	for _, t := range groupOrder {
		fmt.Fprintf(&sb, "## %ss\n\n", t.Label())
		for _, b := range groups[t] {
			fmt.Fprintf(&sb, "### %s\n\n", b.Title())
			fmt.Fprintf(&sb, "%s\n\n", b.Content)
			if tags := b.Tags(); len(tags) > 0 {
				fmt.Fprintf(&sb, "*Tags: %s*\n\n", strings.Join(tags, ", "))
			}
		}
	}
	return sb.String()
}

// Article writes an introduction and then each argument with excerpts of
// the blocks that support it.
func Article(doc Document) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", doc.Title)
	sb.WriteString("## Introduction\n\n")
	fmt.Fprintf(&sb, "This article synthesizes key insights from %d knowledge blocks.\n\n", len(doc.Blocks))

	byID := make(map[shared.BlockID]block.Block, len(doc.Blocks))
	var arguments []block.Block
	for _, b := range doc.Blocks {
		if _, dup := byID[b.ID]; !dup {
			byID[b.ID] = b
		}
		if b.Type == block.TypeArgument {
			arguments = append(arguments, b)
		}
	}
	if len(arguments) == 0 {
		return sb.String()
	}

	sb.WriteString("## Key Arguments\n\n")
	for i, arg := range arguments {
		fmt.Fprintf(&sb, "%d. **%s**\n\n", i+1, arg.Title())
		fmt.Fprintf(&sb, "%s\n\n", arg.Content)

		supporting := supportersOf(arg.ID, doc.Relationships, byID)
		if len(supporting) == 0 {
			continue
		}
		sb.WriteString("*Supporting evidence:*\n")
		for _, s := range supporting {
			fmt.Fprintf(&sb, "- %s...\n", excerpt(s.Content, excerptLength))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// Presentation writes one slide per block in document order.
func Presentation(doc Document) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n---\n\n", doc.Title)

	for i, b := range doc.Blocks {
		fmt.Fprintf(&sb, "## Slide %d: %s\n\n", i+1, b.Type)
		fmt.Fprintf(&sb, "%s\n\n", b.Content)
		if tags := b.Tags(); len(tags) > 0 {
			fmt.Fprintf(&sb, "*%s*\n\n", strings.Join(tags, " • "))
		}
		sb.WriteString("---\n\n")
	}
	return sb.String()
}

// supportersOf returns the source blocks of "supports" relationships that
// target id, in relationship order. Relationships to unknown blocks are skipped.
func supportersOf(id shared.BlockID, rels []relationship.Relationship, byID map[shared.BlockID]block.Block) []block.Block {
	var out []block.Block
	for _, r := range rels {
		if r.TargetBlockID != id || r.Type != relationship.TypeSupports {
			continue
		}
		if src, ok := byID[r.SourceBlockID]; ok {
			out = append(out, src)
		}
	}
	return out
}

// excerpt returns the first n characters of s.
func excerpt(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
