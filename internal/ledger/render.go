package ledger

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/starford/fabric-mcp/internal/models"
)

// Render returns the memo as a Markdown document.
func (l *Ledger) Render() string {
	return RenderDocument(l.Snapshot())
}

// RenderDocument renders doc as Markdown. Sections follow the order in which
// each category first appears; insights keep their insertion order inside a
// section.
func RenderDocument(doc models.Document) string {
	var b strings.Builder

	b.WriteString("# Company Insights Memo\n\n")
	lastUpdated := "Never"
	if doc.LastUpdated != nil {
		lastUpdated = formatTime(*doc.LastUpdated)
	}
	fmt.Fprintf(&b, "*Last Updated: %s*\n\n", lastUpdated)
	fmt.Fprintf(&b, "**Total Insights: %d**\n\n", len(doc.Insights))

	var order []string
	groups := make(map[string][]models.Insight)
	for _, in := range doc.Insights {
		if _, ok := groups[in.Category]; !ok {
			order = append(order, in.Category)
		}
		groups[in.Category] = append(groups[in.Category], in)
	}

	for _, category := range order {
		fmt.Fprintf(&b, "## %s\n\n", titleCase(category))
		for _, in := range groups[category] {
			fmt.Fprintf(&b, "### %s\n", in.Title)
			fmt.Fprintf(&b, "*%s - %s*\n\n", formatTime(in.CreatedAt), in.Author)
			fmt.Fprintf(&b, "%s\n\n", in.Content)
			if len(in.Tags) > 0 {
				fmt.Fprintf(&b, "**Tags:** %s\n\n", strings.Join(in.Tags, ", "))
			}
			b.WriteString("---\n\n")
		}
	}

	return b.String()
}

func formatTime(t time.Time) string {
	return t.Format(time.RFC3339)
}

// titleCase upper-cases the first letter of every run of letters and
// lower-cases the rest ("sales-ops" -> "Sales-Ops").
func titleCase(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inWord := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			if inWord {
				b.WriteRune(unicode.ToLower(r))
			} else {
				b.WriteRune(unicode.ToUpper(r))
			}
			inWord = true
			continue
		}
		inWord = false
		b.WriteRune(r)
	}
	return b.String()
}
