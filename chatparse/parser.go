// Package chatparse splits a raw assistant response into prose blocks
// and a deduplicated, ordered citation list. It is a lazy, single-pass,
// line-oriented classifier, not a general markdown parser: only the five
// block kinds below are recognized. Parsing never fails; a response
// without a sources section is all prose.
package chatparse

import (
	"regexp"
	"strings"

	"hrdesk/domain"

	"github.com/samber/lo"
)

// SourcesMarker separates the prose answer from the citation block.
// The backend emits it verbatim when a response carries sources.
const SourcesMarker = "📚 **Sources:**"

type BlockKind int

const (
	Paragraph BlockKind = iota
	OrderedItem
	BulletItem
	BoldParagraph
	Blank
)

func (k BlockKind) String() string {
	switch k {
	case OrderedItem:
		return "ordered"
	case BulletItem:
		return "bullet"
	case BoldParagraph:
		return "bold"
	case Blank:
		return "blank"
	default:
		return "paragraph"
	}
}

// Block is one classified prose line, in input order.
type Block struct {
	Kind BlockKind
	Text string
}

// Response is the decomposed assistant answer.
type Response struct {
	Prose     []Block
	Citations []domain.Citation
}

var (
	orderedRe  = regexp.MustCompile(`^\d+\.(\s|$)`)
	citationRe = regexp.MustCompile(`^\[([^\]]+)\]\s*\*\*(.+?)\*\*`)
)

// Parse decomposes one raw assistant response. The split happens at the
// first occurrence of SourcesMarker; without it the whole input is prose
// and the citation list is empty.
func Parse(raw string) Response {
	prose, sources, found := strings.Cut(raw, SourcesMarker)
	if !found {
		return Response{Prose: classify(raw)}
	}
	return Response{
		Prose:     classify(prose),
		Citations: parseCitations(sources),
	}
}

func classify(segment string) []Block {
	segment = strings.TrimRight(segment, " \t\n")
	if segment == "" {
		return nil
	}
	return lo.Map(strings.Split(segment, "\n"), func(line string, _ int) Block {
		return classifyLine(line)
	})
}

func classifyLine(line string) Block {
	trimmed := strings.TrimSpace(line)
	switch {
	case trimmed == "":
		return Block{Kind: Blank}
	case orderedRe.MatchString(trimmed):
		return Block{Kind: OrderedItem, Text: trimmed}
	case isBullet(trimmed):
		return Block{Kind: BulletItem, Text: trimmed}
	case strings.Count(trimmed, "**") >= 2:
		return Block{Kind: BoldParagraph, Text: trimmed}
	default:
		return Block{Kind: Paragraph, Text: trimmed}
	}
}

func isBullet(trimmed string) bool {
	for _, prefix := range []string{"- ", "• ", "* "} {
		if strings.HasPrefix(trimmed, prefix) {
			return true
		}
	}
	return false
}

// parseCitations reads the sources section line by line. A citation line
// is "[index] **name**", optionally followed by a "Preview:" fragment on
// the same line or on the next one. Names deduplicate first-occurrence-
// wins: a duplicate keeps the first index and preview, and swallows its
// own trailing preview line. Output order is first-seen order in the
// text, not numeric index order. Malformed lines are skipped.
func parseCitations(section string) []domain.Citation {
	var out []domain.Citation
	seen := map[string]struct{}{}
	lastKept := -1 // index into out; -1 after a dropped duplicate

	for _, line := range strings.Split(section, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		if m := citationRe.FindStringSubmatch(trimmed); m != nil {
			name := strings.TrimSpace(m[2])
			if _, dup := seen[name]; dup {
				lastKept = -1
				continue
			}
			citation := domain.Citation{
				Index:      strings.TrimSpace(m[1]),
				SourceName: name,
			}
			if rest := trimmed[len(m[0]):]; rest != "" {
				citation.Preview = previewFragment(rest)
			}
			seen[name] = struct{}{}
			out = append(out, citation)
			lastKept = len(out) - 1
			continue
		}

		if after, ok := strings.CutPrefix(trimmed, "Preview:"); ok {
			if lastKept >= 0 && out[lastKept].Preview == "" {
				out[lastKept].Preview = strings.TrimSpace(after)
			}
			continue
		}
	}
	return out
}

func previewFragment(rest string) string {
	if i := strings.Index(rest, "Preview:"); i >= 0 {
		return strings.TrimSpace(rest[i+len("Preview:"):])
	}
	return ""
}
