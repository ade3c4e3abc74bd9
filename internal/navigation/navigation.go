// Package navigation renders a categorized documentation hub.
package navigation

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/starford/laguz/internal/models"
	"github.com/starford/laguz/internal/parser"
)

// Category is a hub section.
type Category string

const (
	Architecture Category = "Architecture & Design"
	Guides       Category = "Guides & Tutorials"
	API          Category = "API Reference"
	Development  Category = "Development"
	Planning     Category = "Planning & Notes"
	Other        Category = "Other"
)

// Categories is the fixed display order.
var Categories = []Category{Architecture, Guides, API, Development, Planning, Other}

var icons = map[Category]string{
	Architecture: "🏗️",
	Guides:       "📚",
	API:          "🔌",
	Development:  "🛠️",
	Planning:     "📝",
	Other:        "📄",
}

// GeneratedMarker closes every rendered hub. A file without it belongs to
// the user.
const GeneratedMarker = "<!-- laguz:generated -->"

// IsHub reports whether content was rendered by Generate.
func IsHub(content string) bool {
	return strings.Contains(content, GeneratedMarker)
}

// Icon returns the display icon of c.
func (c Category) Icon() string { return icons[c] }

type rule struct {
	needles  []string
	category Category
}

var pathRules = []rule{
	{[]string{"/specs/"}, Architecture},
	{[]string{"/guides/"}, Guides},
	{[]string{"/api/"}, API},
}

var titleRules = []rule{
	{[]string{"guide", "tutorial"}, Guides},
	{[]string{"api", "reference"}, API},
	{[]string{"development", "coding"}, Development},
	{[]string{"note", "planning"}, Planning},
}

// DetermineCategory classifies doc by path first, then by title.
func DetermineCategory(doc *models.Document) Category {
	p := "/" + strings.ToLower(filepath.ToSlash(doc.RelativePath))
	for _, r := range pathRules {
		for _, n := range r.needles {
			if strings.Contains(p, n) {
				return r.category
			}
		}
	}
	title := strings.ToLower(doc.Metadata.Title)
	for _, r := range titleRules {
		for _, n := range r.needles {
			if strings.Contains(title, n) {
				return r.category
			}
		}
	}
	return Other
}

// Generator builds hub documents.
type Generator struct {
	now func() time.Time
}

// Option configures a Generator.
type Option func(*Generator)

// WithClock overrides the clock used for age labels.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) { g.now = now }
}

// New creates a Generator.
func New(opts ...Option) *Generator {
	g := &Generator{now: time.Now}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate renders the hub for docs. A non-empty existingReadme contributes
// its first paragraph as the introduction. Link-only clusters among related
// are listed under Related Topics.
func (g *Generator) Generate(docs []*models.Document, existingReadme string, related []models.TopicCluster) string {
	now := g.now()
	groups := make(map[Category][]*models.Document)
	for _, d := range docs {
		c := DetermineCategory(d)
		groups[c] = append(groups[c], d)
	}

	var b strings.Builder
	b.WriteString("# Documentation Hub\n\n")
	if intro := introFrom(existingReadme); intro != "" {
		b.WriteString(intro)
		b.WriteString("\n\n")
	}
	fmt.Fprintf(&b, "_%d documents, %d words. Generated %s._\n", len(docs), models.TotalWords(docs), now.Format("2006-01-02"))

	for _, c := range Categories {
		members := groups[c]
		if len(members) == 0 {
			continue
		}
		sort.SliceStable(members, func(i, j int) bool { return members[i].RelativePath < members[j].RelativePath })
		fmt.Fprintf(&b, "\n## %s %s\n\n", c.Icon(), c)
		for _, d := range members {
			fmt.Fprintf(&b, "- [%s](%s) · %d words · %s\n", displayTitle(d), linkPath(d), d.Metadata.WordCount, AgeLabel(now, d.ModTime))
		}
	}

	var linkOnly []models.TopicCluster
	for _, c := range related {
		if c.Strategy == models.ClusterLinkOnly && len(c.Documents) > 0 {
			linkOnly = append(linkOnly, c)
		}
	}
	if len(linkOnly) > 0 {
		b.WriteString("\n## 🔗 Related Topics\n")
		for _, c := range linkOnly {
			fmt.Fprintf(&b, "\n### %s\n\n", c.Name)
			if c.Description != "" {
				b.WriteString(c.Description)
				b.WriteString("\n\n")
			}
			for _, d := range c.Documents {
				fmt.Fprintf(&b, "- [%s](%s)\n", displayTitle(d), linkPath(d))
			}
		}
	}
	b.WriteString("\n" + GeneratedMarker + "\n")
	return b.String()
}

// AgeLabel renders a relative age: Today, days under a week, weeks under a
// month, then the date.
func AgeLabel(now, modified time.Time) string {
	days := int(now.Sub(modified).Hours() / 24)
	switch {
	case days <= 0:
		return "Today"
	case days == 1:
		return "1 day ago"
	case days < 7:
		return fmt.Sprintf("%d days ago", days)
	case days < 14:
		return "1 week ago"
	case days < 30:
		return fmt.Sprintf("%d weeks ago", days/7)
	default:
		return modified.Format("2006-01-02")
	}
}

func displayTitle(d *models.Document) string {
	if d.Metadata.Title != "" && d.Metadata.Title != parser.Untitled {
		return d.Metadata.Title
	}
	return d.Name
}

func linkPath(d *models.Document) string {
	return strings.ReplaceAll(filepath.ToSlash(d.RelativePath), " ", "%20")
}

func introFrom(readme string) string {
	if strings.TrimSpace(readme) == "" {
		return ""
	}
	body := parser.Parse([]byte(readme)).Body
	paras := parser.Paragraphs(parser.StripLeadingH1(body))
	for _, p := range paras {
		if !strings.HasPrefix(p, "```") && !strings.HasPrefix(p, "<!--") {
			return p
		}
	}
	return ""
}
