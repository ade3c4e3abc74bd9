package autoconsolidate

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/starford/laguz/internal/models"
)

// UpsertSection replaces the delimited section of doc with section, or
// appends it when the markers are absent. Running it twice with the same
// section yields the same document.
func UpsertSection(doc, section string) string {
	block := ReadmeMarkerStart + "\n" + strings.TrimSpace(section) + "\n" + ReadmeMarkerEnd
	start := strings.Index(doc, ReadmeMarkerStart)
	if start >= 0 {
		if end := strings.Index(doc[start:], ReadmeMarkerEnd); end >= 0 {
			end += start + len(ReadmeMarkerEnd)
			return doc[:start] + block + doc[end:]
		}
	}
	doc = strings.TrimRight(doc, "\n")
	if doc == "" {
		return block + "\n"
	}
	return doc + "\n\n" + block + "\n"
}

func (r *run) readmeSection() string {
	var b strings.Builder
	b.WriteString("## Consolidated Documentation\n\n")
	for _, e := range r.executed {
		if !isTopicPlan(e.plan.Strategy) && e.plan.Strategy != models.PlanCreateSuperReadme {
			continue
		}
		name := filepath.Base(e.plan.OutputFile)
		topic := e.plan.Cluster
		if topic == "" {
			topic = "navigation hub"
		}
		fmt.Fprintf(&b, "- [%s](%s): %s, from %d documents\n", name, name, topic, len(e.plan.Inputs))
	}
	if r.opts.Mode == ModeArchive {
		fmt.Fprintf(&b, "\nOriginal documents are kept in [%s/](%s/).\n", r.opts.ArchiveDir, r.opts.ArchiveDir)
	}
	fmt.Fprintf(&b, "\n_Updated %s._\n", r.o.now().Format("2006-01-02"))
	return b.String()
}

// updateReadme creates or updates README.md. An existing README is backed
// up first.
func (r *run) updateReadme(ctx context.Context) error {
	var current string
	if r.fsys.Exists(readmeName) {
		data, err := r.fsys.Read(readmeName)
		if err != nil {
			return err
		}
		current = string(data)
		entry, err := r.o.backups.BackupFile(ctx, filepath.Join(r.root, readmeName), models.BackupModify)
		if err != nil {
			return fmt.Errorf("back up README: %w", err)
		}
		m, err := r.o.backups.CreateManifest(ctx, []models.BackupEntry{entry}, "readme update")
		if err != nil {
			return fmt.Errorf("back up README: %w", err)
		}
		r.sideManifests = append(r.sideManifests, m)
	} else {
		current = "# " + filepath.Base(r.root) + "\n"
	}

	next := UpsertSection(current, r.readmeSection())
	if next == current {
		return nil
	}
	if err := r.fsys.Write(readmeName, []byte(next)); err != nil {
		return err
	}
	r.report.ReadmeUpdated = true
	return nil
}
