package autoconsolidate

import "strings"

const tocHeading = "## Table of Contents"

// StripTOC removes a generated table of contents section: the heading and
// every line up to the next heading or horizontal rule.
func StripTOC(content string) string {
	lines := strings.Split(content, "\n")
	start := -1
	for i, l := range lines {
		if strings.TrimSpace(l) == tocHeading {
			start = i
			break
		}
	}
	if start < 0 {
		return content
	}
	end := len(lines)
	for i := start + 1; i < len(lines); i++ {
		t := strings.TrimSpace(lines[i])
		if strings.HasPrefix(t, "#") || t == "---" {
			end = i
			break
		}
	}
	out := append(append([]string(nil), lines[:start]...), lines[end:]...)
	return strings.Join(out, "\n")
}
