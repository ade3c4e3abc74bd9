package relevance

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/starford/laguz/internal/models"
	"github.com/starford/laguz/internal/parser"
)

var now = time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)

func mkDoc(name, content string, modified time.Time) *models.Document {
	res := parser.Parse([]byte(content))
	return &models.Document{
		Path:         "/repo/" + name,
		RelativePath: name,
		Name:         name,
		Size:         int64(len(content)),
		ModTime:      modified,
		Content:      content,
		Metadata:     res.Metadata,
	}
}

func words(n int) string {
	return strings.TrimSpace(strings.Repeat("lorem ", n))
}

func deploymentFixture() (a, b, c *models.Document) {
	var sb strings.Builder
	sb.WriteString("# Deployment Guide\n\n")
	for i := 1; i <= 4; i++ {
		fmt.Fprintf(&sb, "## Section %d\n\n%s\n\n```sh\nmake deploy\n```\n\n", i, words(150))
	}
	sb.WriteString("Related: [b](B.md) [c](C.md) [x](x.md) [y](y.md) [z](z.md)\n")
	a = mkDoc("A.md", sb.String(), now)

	b = mkDoc("B.md", "# Deployment Guide\n\n"+words(26)+" see A.md\n", now.AddDate(0, 0, -200))
	c = mkDoc("C.md", "# Deployment Guide\n\n"+words(600)+"\n\nBack to [A](A.md)\n", now)
	return a, b, c
}

func TestAnalyzeRelevance_Scenario(t *testing.T) {
	an := New(WithClock(func() time.Time { return now }))
	a, b, c := deploymentFixture()
	all := []*models.Document{a, b, c}

	sa := an.AnalyzeRelevance(a, all)
	if sa.Status != models.StatusHighlyRelevant {
		t.Errorf("A status = %s (score %d, %+v), want highly-relevant", sa.Status, sa.Score, sa.Factors)
	}
	sb := an.AnalyzeRelevance(b, all)
	if sb.Status != models.StatusStale {
		t.Errorf("B status = %s (score %d, %+v), want stale", sb.Status, sb.Score, sb.Factors)
	}
	sc := an.AnalyzeRelevance(c, all)
	if sa.Factors.Uniqueness >= 25 || sc.Factors.Uniqueness >= 25 {
		t.Errorf("uniqueness A=%d C=%d, want both below 25", sa.Factors.Uniqueness, sc.Factors.Uniqueness)
	}
	if !strings.Contains(sb.Reasoning, "recency") {
		t.Errorf("B reasoning should mention recency: %q", sb.Reasoning)
	}
}

func TestAnalyzeRelevance_Bounds(t *testing.T) {
	an := New(WithClock(func() time.Time { return now }))
	a, b, c := deploymentFixture()
	var links strings.Builder
	for i := 0; i < 40; i++ {
		fmt.Fprintf(&links, "[l%d](doc%d.md) ", i, i)
	}
	d := mkDoc("D.md", "# D\n"+links.String()+"\n"+strings.Repeat("```\nx\n```\n", 10), now.Add(time.Hour))
	all := []*models.Document{a, b, c, d}
	for i := 0; i < 8; i++ {
		all = append(all, mkDoc(fmt.Sprintf("dup%d.md", i), "# Deployment Guide\nA.md B.md C.md D.md", now.AddDate(-2, 0, 0)))
	}

	for _, doc := range all {
		s := an.AnalyzeRelevance(doc, all)
		for name, v := range map[string]int{
			"recency": s.Factors.Recency, "quality": s.Factors.ContentQuality,
			"connectivity": s.Factors.Connectivity, "uniqueness": s.Factors.Uniqueness,
		} {
			if v < 0 || v > models.MaxFactorScore {
				t.Errorf("%s: %s = %d out of range", doc.Name, name, v)
			}
		}
		if s.Score < 0 || s.Score > 100 || s.Score != s.Factors.Total() {
			t.Errorf("%s: score %d inconsistent", doc.Name, s.Score)
		}
		if s.Status != models.StatusForScore(s.Score) {
			t.Errorf("%s: status %s not derived from score", doc.Name, s.Status)
		}
	}
}

func TestRecencyBuckets(t *testing.T) {
	cases := map[int]int{0: 25, 7: 25, 8: 20, 30: 20, 90: 15, 180: 10, 181: 5}
	for days, want := range cases {
		if got := recencyScore(days); got != want {
			t.Errorf("recencyScore(%d) = %d, want %d", days, got, want)
		}
	}
}

func TestUniquenessBuckets(t *testing.T) {
	cases := map[int]int{0: 25, 1: 20, 2: 15, 3: 15, 4: 10, 5: 10, 6: 5}
	for n, want := range cases {
		if got := uniquenessScore(n); got != want {
			t.Errorf("uniquenessScore(%d) = %d, want %d", n, got, want)
		}
	}
}

func TestStatusForScore(t *testing.T) {
	cases := map[int]models.RelevanceStatus{
		100: models.StatusHighlyRelevant, 75: models.StatusHighlyRelevant,
		74: models.StatusRelevant, 50: models.StatusRelevant,
		49: models.StatusMarginal, 30: models.StatusMarginal,
		29: models.StatusStale, 0: models.StatusStale,
	}
	for score, want := range cases {
		if got := models.StatusForScore(score); got != want {
			t.Errorf("StatusForScore(%d) = %s, want %s", score, got, want)
		}
	}
}

func TestIsLocalMarkdownLink(t *testing.T) {
	cases := map[string]bool{
		"docs/a.md":               true,
		"../b.MD#section":         true,
		"https://x.dev/readme.md": false,
		"#anchor":                 false,
		"image.png":               false,
		"mailto:me@x.dev":         false,
	}
	for dest, want := range cases {
		if got := IsLocalMarkdownLink(dest); got != want {
			t.Errorf("IsLocalMarkdownLink(%q) = %v, want %v", dest, got, want)
		}
	}
}

func TestJaccard(t *testing.T) {
	a := titleWords("Deployment Guide")
	b := titleWords("deployment guide!")
	if Jaccard(a, b) != 1 {
		t.Errorf("identical titles should score 1")
	}
	if Jaccard(titleWords("API Reference"), titleWords("Deployment Guide")) != 0 {
		t.Errorf("disjoint titles should score 0")
	}
}
