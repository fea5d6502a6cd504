package studenttemplate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMeta_BareAndVersionedDependencies(t *testing.T) {
	yaml := []byte(`
kind: assignment
slug: fizzbuzz
name: FizzBuzz
properties:
  studentTemplates:
    - studentTemplate/main.go
  studentSubmissionFiles:
    - main.go
  additionalFiles:
    - README_extra.md
  executionBackend:
    slug: golang
testDependencies:
  - "^shared-utils"
  - slug: base-lib
    version: ">=1.2"
`)
	m, err := ParseMeta(yaml)
	require.NoError(t, err)
	assert.Equal(t, "fizzbuzz", m.Slug)
	assert.Equal(t, "golang", m.Properties.ExecutionBackend.Slug)
	require.Len(t, m.TestDependencies, 2)
	assert.Equal(t, DependencySpec{Slug: "shared-utils", Constraint: "^"}, m.TestDependencies[0])
	assert.Equal(t, DependencySpec{Slug: "base-lib", Constraint: ">=1.2"}, m.TestDependencies[1])
}

func TestFilterForStudents_NoMeta_ExcludesTestFiles(t *testing.T) {
	tree := FileTree{
		"solution.py":  []byte("print(1)"),
		"test_main.py": []byte("assert True"),
		"helper_test.py": []byte("assert True"),
		"meta.yaml":    []byte("kind: assignment"),
	}
	result := FilterForStudents(tree, nil)
	assert.Equal(t, FileTree{"solution.py": []byte("print(1)")}, result.Files)
}

func TestFilterForStudents_WithMeta_RenamesContentIndex(t *testing.T) {
	tree := FileTree{
		"content/index.md":     []byte("# Intro"),
		"content/index_de.md":  []byte("# Einleitung"),
		"content/img/diagram.png": []byte("PNG"),
		"studentTemplate/main.go": []byte("package main"),
		"README_extra.md":        []byte("extra"),
	}
	meta := &Meta{}
	meta.Properties.AdditionalFiles = []string{"README_extra.md"}
	meta.Properties.StudentTemplates = []string{"studentTemplate/main.go"}
	meta.Properties.StudentSubmissionFiles = []string{"main.go", "extra_stub.go"}

	result := FilterForStudents(tree, meta)

	assert.Equal(t, []byte("# Intro"), result.Files["README.md"])
	assert.Equal(t, []byte("# Einleitung"), result.Files["README_de.md"])
	assert.Equal(t, []byte("PNG"), result.Files["img/diagram.png"])
	assert.Equal(t, []byte("extra"), result.Files["README_extra.md"])
	assert.Equal(t, []byte("package main"), result.Files["main.go"])
	assert.Equal(t, []byte{}, result.Files["extra_stub.go"])
}

func TestBuildTitlePath_FallsBackToRawSegment(t *testing.T) {
	path := BuildTitlePath([]TitlePathSegment{
		{Segment: "week1", Title: "Week One"},
		{Segment: "ex2"},
	})
	assert.Equal(t, "Week One / ex2", path)
}

func TestGenerateRootReadme_SortsByDeploymentPath(t *testing.T) {
	readme := GenerateRootReadme([]AssignmentEntry{
		{TitlePath: "Week 2", DeploymentPath: "week2", Title: "Loops", VersionTag: "v1"},
		{TitlePath: "Week 1", DeploymentPath: "week1", Title: "Intro", VersionTag: "v2"},
	})
	s := string(readme)
	assert.Less(t, indexOf(s, "week1"), indexOf(s, "week2"))
}

func indexOf(s, substr string) int {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return i
		}
	}
	return -1
}
