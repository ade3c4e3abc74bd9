// Package report renders pipeline results for the terminal.
package report

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/starford/laguz/internal/autoconsolidate"
	"github.com/starford/laguz/internal/docservice"
	"github.com/starford/laguz/internal/models"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF"))
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50")).Bold(true)
	failStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true)
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#F7B801"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#999999"))
	detailStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#A0AEC0"))
	sectionStyle = lipgloss.NewStyle().PaddingLeft(2)
)

func statusStyle(s models.RelevanceStatus) lipgloss.Style {
	switch s {
	case models.StatusHighlyRelevant:
		return okStyle
	case models.StatusRelevant:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50"))
	case models.StatusMarginal:
		return warnStyle
	default:
		return failStyle
	}
}

// cell pads s to w display columns, keeping at least one space after it.
func cell(s string, w int) string {
	if pad := w - lipgloss.Width(s); pad > 0 {
		return s + strings.Repeat(" ", pad)
	}
	return s + " "
}

// Summary renders a run summary with one block per boundary.
func Summary(sum *autoconsolidate.Summary) string {
	var b strings.Builder
	verdict := okStyle.Render("ok")
	if !sum.Success {
		verdict = failStyle.Render("unsafe")
	}
	mode := string(sum.Mode)
	if sum.DryRun {
		mode += " (dry run)"
	}
	b.WriteString(titleStyle.Render("Laguz "+mode) + "  " + verdict + "\n")
	fmt.Fprintf(&b, "%s processed · %d consolidated · %d deleted · %d archived\n",
		plural(sum.Processed, "file"), len(sum.Consolidated), sum.Deleted, sum.Archived)
	if !sum.Changed && !sum.DryRun {
		b.WriteString(mutedStyle.Render("nothing to do") + "\n")
	}

	for _, r := range sum.Boundaries {
		b.WriteString("\n" + boundary(r, sum.DryRun))
	}
	return b.String()
}

func boundary(r *autoconsolidate.BoundaryReport, dryRun bool) string {
	var lines []string
	lines = append(lines, titleStyle.Render(r.Root)+" "+mutedStyle.Render(string(r.State)))
	if dryRun {
		for _, p := range r.Plans {
			lines = append(lines, fmt.Sprintf("plan  %s -> %s (%s, %.0f%%)",
				p.Strategy, filepath.Base(p.OutputFile), plural(len(p.Inputs), "input"), p.Confidence*100))
		}
	}
	for _, f := range r.Consolidated {
		lines = append(lines, okStyle.Render("+ ")+filepath.Base(f))
	}
	for _, f := range r.Archived {
		lines = append(lines, detailStyle.Render("→ ")+f)
	}
	for _, f := range r.Deleted {
		lines = append(lines, mutedStyle.Render("- ")+filepath.Base(f))
	}
	for _, f := range r.Purged {
		lines = append(lines, mutedStyle.Render("- ")+filepath.Base(f)+mutedStyle.Render(" (legacy)"))
	}
	if r.ReadmeUpdated {
		lines = append(lines, detailStyle.Render("README.md updated"))
	}
	if r.Validation != nil && len(r.Validation.Errors) > 0 {
		for _, e := range r.Validation.Errors {
			lines = append(lines, warnStyle.Render("! ")+e)
		}
	}
	for _, w := range r.Warnings {
		lines = append(lines, warnStyle.Render("! ")+w)
	}
	for _, e := range r.Errors {
		lines = append(lines, failStyle.Render("x ")+e)
	}
	return sectionStyle.Render(strings.Join(lines, "\n")) + "\n"
}

// Relevance renders scores as a table.
func Relevance(scores []models.RelevanceScore) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Relevance") + "\n")
	header := cell("SCORE", 7) + cell("STATUS", 17) + cell("R/Q/C/U", 14) + "PATH"
	b.WriteString(mutedStyle.Render(header) + "\n")
	for _, s := range scores {
		f := s.Factors
		b.WriteString(cell(fmt.Sprintf("%d", s.Score), 7))
		b.WriteString(statusStyle(s.Status).Render(cell(string(s.Status), 17)))
		b.WriteString(cell(fmt.Sprintf("%d/%d/%d/%d", f.Recency, f.ContentQuality, f.Connectivity, f.Uniqueness), 14))
		b.WriteString(s.Path + "\n")
		b.WriteString(detailStyle.Render("       "+s.Reasoning) + "\n")
	}
	return b.String()
}

// Plan renders a plan preview.
func Plan(v *docservice.PlanView) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Plan") + " " + mutedStyle.Render("clusters from "+string(v.Source)) + "\n")
	if v.Warning != "" {
		b.WriteString(warnStyle.Render("! "+v.Warning) + "\n")
	}
	for _, c := range v.Clusters {
		fmt.Fprintf(&b, "\n%s %s\n", okStyle.Render(c.Name), mutedStyle.Render("["+string(c.Strategy)+"]"))
		if c.Description != "" {
			b.WriteString(sectionStyle.Render(detailStyle.Render(c.Description)) + "\n")
		}
		for _, f := range c.Files {
			b.WriteString(sectionStyle.Render("· "+f) + "\n")
		}
	}
	if len(v.Plans) == 0 {
		b.WriteString("\n" + mutedStyle.Render("no plans") + "\n")
		return b.String()
	}
	b.WriteString("\n")
	for i, p := range v.Plans {
		fmt.Fprintf(&b, "%d. %s -> %s %s\n", i+1, p.Strategy, p.OutputFile,
			mutedStyle.Render(fmt.Sprintf("(%.0f%%, %s)", p.Confidence*100, plural(len(p.Inputs), "input"))))
		b.WriteString(sectionStyle.Render(detailStyle.Render(p.Reasoning)) + "\n")
	}
	return b.String()
}

// Documents renders a scan listing.
func Documents(items []docservice.DocumentItem) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(plural(len(items), "document")) + "\n")
	for _, d := range items {
		b.WriteString(cell(d.Path, 40))
		b.WriteString(cell(d.Title, 32))
		b.WriteString(mutedStyle.Render(fmt.Sprintf("%d words · %d headings · %d links", d.Words, d.Headings, d.Links)) + "\n")
	}
	return b.String()
}

// Manifests renders the backup manifest list.
func Manifests(ms []models.BackupManifest) string {
	if len(ms) == 0 {
		return mutedStyle.Render("no backups found") + "\n"
	}
	var b strings.Builder
	b.WriteString(titleStyle.Render("Backups") + "\n")
	for _, m := range ms {
		fmt.Fprintf(&b, "%s  %s  %s\n",
			m.ID,
			mutedStyle.Render(m.CreatedAt.Format("2006-01-02 15:04:05")),
			m.Label)
		for _, e := range m.Entries {
			b.WriteString(sectionStyle.Render(detailStyle.Render(string(e.Tag)+" "+e.Path)) + "\n")
		}
	}
	return b.String()
}

// Restored renders the outcome of a restore.
func Restored(id string, paths []string) string {
	var b strings.Builder
	b.WriteString(okStyle.Render("restored") + " " + id + "\n")
	for _, p := range paths {
		b.WriteString(sectionStyle.Render("· "+p) + "\n")
	}
	return b.String()
}

func plural(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}
