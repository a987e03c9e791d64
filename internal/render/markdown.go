// Package render converts the constrained Markdown subset emitted by the AI
// model into typed display blocks for the browser UI. It is intentionally
// minimal: no nested lists, no links, no code blocks.
package render

import "strings"

// Kind enum untuk display block
type Kind string

const (
	KindHeader2   Kind = "header2"
	KindHeader3   Kind = "header3"
	KindListItem  Kind = "list_item"
	KindParagraph Kind = "paragraph"
	KindBlank     Kind = "blank"
)

// Segment is a run of paragraph/bullet text with an emphasis flag.
type Segment struct {
	Text string `json:"text"`
	Bold bool   `json:"bold"`
}

// Block is one rendered display block. Exactly one block per input line.
type Block struct {
	Kind     Kind      `json:"kind"`
	Text     string    `json:"text,omitempty"`     // Header2 / Header3
	Label    string    `json:"label,omitempty"`    // bold lead-in of a list item
	Segments []Segment `json:"segments,omitempty"` // list item body / paragraph
}

const (
	header2Prefix = "## "
	header3Prefix = "### "
	bulletPrefix  = "- "
	boldMarker    = "**"
	labelDelim    = "**:"
)

// Render maps each input line to one block, checking prefixes in priority
// order: header2 > header3 > bold-led bullet > plain bullet > blank >
// paragraph. Pure and stateless; len(blocks) == number of input lines.
func Render(text string) []Block {
	lines := strings.Split(text, "\n")
	blocks := make([]Block, 0, len(lines))
	for _, line := range lines {
		blocks = append(blocks, renderLine(line))
	}
	return blocks
}

func renderLine(line string) Block {
	switch {
	case strings.HasPrefix(line, header2Prefix):
		return Block{Kind: KindHeader2, Text: strings.TrimSpace(line[len(header2Prefix):])}
	case strings.HasPrefix(line, header3Prefix):
		return Block{Kind: KindHeader3, Text: strings.TrimSpace(line[len(header3Prefix):])}
	case strings.HasPrefix(line, bulletPrefix):
		return renderBullet(strings.TrimSpace(line[len(bulletPrefix):]))
	case strings.TrimSpace(line) == "":
		return Block{Kind: KindBlank}
	default:
		return Block{Kind: KindParagraph, Segments: splitSegments(line)}
	}
}

// renderBullet handles "- **Label**: body" and plain "- body" lines.
func renderBullet(rest string) Block {
	if strings.HasPrefix(rest, boldMarker) {
		if idx := strings.Index(rest[len(boldMarker):], labelDelim); idx >= 0 {
			label := rest[len(boldMarker) : len(boldMarker)+idx]
			body := strings.TrimSpace(rest[len(boldMarker)+idx+len(labelDelim):])
			return Block{Kind: KindListItem, Label: label, Segments: splitSegments(body)}
		}
	}
	return Block{Kind: KindListItem, Segments: splitSegments(rest)}
}

// splitSegments resolves inline emphasis by splitting on the doubled marker;
// segments at odd split positions are emphasized. Empty splits are dropped.
func splitSegments(s string) []Segment {
	parts := strings.Split(s, boldMarker)
	segs := make([]Segment, 0, len(parts))
	for i, part := range parts {
		if part == "" {
			continue
		}
		segs = append(segs, Segment{Text: part, Bold: i%2 == 1})
	}
	return segs
}
