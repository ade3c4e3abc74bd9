package mcpserver

// ConventionsURI is the resource URI of OutputConventions.
const ConventionsURI = "laguz://conventions"

// OutputConventions describes the files a consolidation run creates, moves,
// and removes, so LLM consumers can reason about a repository afterwards.
const OutputConventions = `# Laguz Output Conventions

## Generated files

- ` + "`" + `CONSOLIDATED_<TOPIC>.md` + "`" + ` at the repository root holds one merged topic.
  The topic is upper-cased with underscores (e.g. ` + "`" + `CONSOLIDATED_GETTING_STARTED.md` + "`" + `).
- ` + "`" + `DOCUMENTATION.md` + "`" + ` is the navigation hub. It is regenerated, never edited.
- Generated files are never candidates for a later run.

## Protected files

README, LICENSE, CHANGELOG, CONTRIBUTING, CODE_OF_CONDUCT, SECURITY, AUTHORS,
CLAUDE.md and AGENTS.md are never merged, moved, or deleted.

## README section

The root README gains a section between
` + "`" + `<!-- laguz:consolidated:start -->` + "`" + ` and ` + "`" + `<!-- laguz:consolidated:end -->` + "`" + `
listing the generated files. Content outside the markers is preserved.

## Modes

1. **compress** merges the root markdown files into topic files and deletes the
   originals once every original has a confirmed backup.
2. **document-archive** writes the same topic files and moves the originals into
   ` + "`" + `documents/` + "`" + `.

## Backups

Every modified, moved, or deleted file is snapshotted before the change.
Use the ` + "`" + `list_backups` + "`" + ` tool to find a manifest; manifests are listed
newest first in ` + "`" + `.laguz/backups/BACKUP_INDEX.md` + "`" + ` as well.
`
