package types

import "encoding/json"

// Properties is the free-form extension map carried by every entity. It is
// persisted as JSON; call the typed accessors below to decode a known shape at
// the boundary instead of passing the raw map around.
type Properties map[string]any

// Decode unmarshals the "gitlab" (or any named) sub-object of Properties into
// dst. It round-trips through JSON so callers never touch map[string]any
// directly once past the store boundary.
func (p Properties) Decode(key string, dst any) error {
	raw, ok := p[key]
	if !ok || raw == nil {
		return nil
	}
	buf, err := json.Marshal(raw)
	if err != nil {
		return err
	}
	return json.Unmarshal(buf, dst)
}

// Set encodes v and stores it under key, round-tripping through JSON so the
// stored shape matches what Decode will later produce.
func (p Properties) Set(key string, v any) error {
	buf, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var decoded any
	if err := json.Unmarshal(buf, &decoded); err != nil {
		return err
	}
	p[key] = decoded
	return nil
}

// GitlabGroupInfo is the remote identity of a GitLab group backing an
// Organization or CourseFamily.
type GitlabGroupInfo struct {
	GroupID       int64  `json:"group_id"`
	NamespacePath string `json:"namespace_path"`
	WebURL        string `json:"web_url"`
}

// GitlabCourseProjects is the remote identity of the per-course project set
// created by the hierarchy workflow (§4.7 item 2).
type GitlabCourseProjects struct {
	StudentsGroupID      int64  `json:"students_group_id"`
	StudentTemplateID     int64  `json:"student_template_project_id"`
	AssignmentsProjectID  int64  `json:"assignments_project_id"`
	TestsProjectID        int64  `json:"tests_project_id"`
	ReferenceProjectID    int64  `json:"reference_project_id"`
	ExamplesProjectID     int64  `json:"examples_project_id"`
	DocumentsProjectID    int64  `json:"documents_project_id"`
	StudentTemplateURL    string `json:"student_template_url"`
	AssignmentsURL        string `json:"assignments_url"`
}

// GitlabRepoInfo is the remote identity of a per-student or per-team forked
// repository (§4.9).
type GitlabRepoInfo struct {
	FullPath    string `json:"full_path"`
	WebURL      string `json:"web_url"`
	GroupID     int64  `json:"group_id"`
	NamespaceID int64  `json:"namespace_id"`
}

// GitlabConfig is the access configuration carried on an Organization for
// talking to its remote Git host.
type GitlabConfig struct {
	URL   string `json:"url"`
	Token string `json:"token"`
}
