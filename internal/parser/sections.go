package parser

import "strings"

// StripLeadingH1 drops the first level-1 heading when it precedes any other content.
func StripLeadingH1(body string) string {
	lines := strings.Split(body, "\n")
	for i, line := range lines {
		t := strings.TrimSpace(line)
		if t == "" {
			continue
		}
		if strings.HasPrefix(t, "# ") || t == "#" {
			return strings.TrimLeft(strings.Join(lines[i+1:], "\n"), "\n")
		}
		break
	}
	return body
}

// Paragraphs splits body into blank-line separated blocks, dropping headings.
// Fenced code stays attached to the block it opens.
func Paragraphs(body string) []string {
	var out []string
	var cur []string
	inFence := false
	flush := func() {
		if len(cur) > 0 {
			out = append(out, strings.Join(cur, "\n"))
			cur = nil
		}
	}
	for _, line := range strings.Split(body, "\n") {
		if isFence(line) {
			inFence = !inFence
			cur = append(cur, line)
			continue
		}
		if inFence {
			cur = append(cur, line)
			continue
		}
		t := strings.TrimSpace(line)
		switch {
		case t == "":
			flush()
		case atxHeadingRe.MatchString(line):
			flush()
		default:
			cur = append(cur, line)
		}
	}
	flush()
	return out
}

// Preview returns up to max characters of the first prose paragraph, skipping
// headings, list items, quotes, tables, and code.
func Preview(body string, max int) string {
	for _, p := range Paragraphs(StripCode(body)) {
		first := strings.TrimSpace(strings.SplitN(p, "\n", 2)[0])
		if isListOrBlock(first) {
			continue
		}
		flat := strings.Join(strings.Fields(p), " ")
		return truncate(flat, max)
	}
	return ""
}

func isListOrBlock(line string) bool {
	switch {
	case strings.HasPrefix(line, "- "), strings.HasPrefix(line, "* "), strings.HasPrefix(line, "+ "):
		return true
	case strings.HasPrefix(line, ">"), strings.HasPrefix(line, "|"), strings.HasPrefix(line, "<"):
		return true
	}
	for i, r := range line {
		if r >= '0' && r <= '9' {
			continue
		}
		return i > 0 && (r == '.' || r == ')')
	}
	return false
}

func truncate(s string, max int) string {
	r := []rune(s)
	if max <= 0 || len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return strings.TrimSpace(string(r[:max-3])) + "..."
}
