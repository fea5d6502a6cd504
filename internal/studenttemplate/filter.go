package studenttemplate

import (
	"path"
	"sort"
	"strings"
)

// FileTree is a relative-path → content map, the in-memory representation
// an activity loads from a Git tree before filtering (spec §4.8 step 4
// "Load the file tree").
type FileTree map[string][]byte

// FilterResult is the set of files that may be written into the student
// template for one content.
type FilterResult struct {
	Files FileTree
}

// FilterForStudents reduces a content's full file tree to the subset a
// student may see (spec §4.8 step 4 "Filter for students"). meta is nil
// when the content carries no meta.yaml.
func FilterForStudents(tree FileTree, meta *Meta) FilterResult {
	out := FileTree{}

	if meta == nil {
		for relPath, data := range tree {
			base := path.Base(relPath)
			if base == "meta.yaml" {
				continue
			}
			if strings.HasPrefix(base, "test") || hasTestSuffix(base) {
				continue
			}
			out[relPath] = data
		}
		return FilterResult{Files: out}
	}

	for relPath, data := range tree {
		if !strings.HasPrefix(relPath, "content/") {
			continue
		}
		rest := strings.TrimPrefix(relPath, "content/")
		base := path.Base(rest)
		dir := path.Dir(rest)

		var targetBase string
		switch {
		case base == "index.md":
			targetBase = "README.md"
		case strings.HasPrefix(base, "index_") && strings.HasSuffix(base, ".md"):
			targetBase = "README_" + strings.TrimPrefix(base, "index_")
		default:
			targetBase = base
		}

		target := targetBase
		if dir != "." {
			target = path.Join(dir, targetBase)
		}
		out[target] = data
	}

	for _, rel := range meta.Properties.AdditionalFiles {
		data, ok := tree[rel]
		if !ok {
			continue
		}
		out[path.Base(rel)] = data
	}

	for _, submissionPath := range meta.Properties.StudentSubmissionFiles {
		base := path.Base(submissionPath)
		if templateData, ok := findTemplate(tree, meta.Properties.StudentTemplates, base); ok {
			out[submissionPath] = templateData
		} else {
			out[submissionPath] = []byte{}
		}
	}

	return FilterResult{Files: out}
}

// findTemplate locates the studentTemplates entry whose basename matches
// target, preferring a path containing "studentTemplate" when more than
// one candidate matches (spec §4.8 step 4).
func findTemplate(tree FileTree, templates []string, target string) ([]byte, bool) {
	var best string
	var bestData []byte
	found := false
	for _, tmplPath := range templates {
		if path.Base(tmplPath) != target {
			continue
		}
		data, ok := tree[tmplPath]
		if !ok {
			continue
		}
		if !found {
			best, bestData, found = tmplPath, data, true
			continue
		}
		if strings.Contains(tmplPath, "studentTemplate") && !strings.Contains(best, "studentTemplate") {
			best, bestData = tmplPath, data
		}
	}
	return bestData, found
}

func hasTestSuffix(base string) bool {
	ext := path.Ext(base)
	if ext == "" {
		return false
	}
	stem := strings.TrimSuffix(base, ext)
	return strings.HasSuffix(stem, "_test")
}

// AssignmentEntry is one row of the student-template root README (spec
// §4.8 step 5).
type AssignmentEntry struct {
	TitlePath      string
	DeploymentPath string
	Title          string
	VersionTag     string
}

// TitlePathSegment names one ltree segment and the human title to use for
// it in the root README's title-path column, falling back to the raw
// segment when no title is known (spec §4.8 step 5).
type TitlePathSegment struct {
	Segment string
	Title   string
}

// BuildTitlePath joins a content's path segments' titles with " / ",
// falling back to the raw segment when a segment has no known title.
func BuildTitlePath(segments []TitlePathSegment) string {
	parts := make([]string, len(segments))
	for i, s := range segments {
		if s.Title != "" {
			parts[i] = s.Title
		} else {
			parts[i] = s.Segment
		}
	}
	return strings.Join(parts, " / ")
}

// GenerateRootReadme renders the root README.md content listing every
// successfully released assignment as a table (spec §4.8 step 5).
func GenerateRootReadme(entries []AssignmentEntry) []byte {
	sorted := make([]AssignmentEntry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].DeploymentPath < sorted[j].DeploymentPath })

	var b strings.Builder
	b.WriteString("# Assignments\n\n")
	b.WriteString("| Path | Directory | Title | Version |\n")
	b.WriteString("|------|-----------|-------|---------|\n")
	for _, e := range sorted {
		b.WriteString("| " + e.TitlePath + " | " + e.DeploymentPath + " | " + e.Title + " | " + e.VersionTag + " |\n")
	}
	return []byte(b.String())
}
