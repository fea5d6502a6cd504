package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/drewpayment/ctutor-controlplane/internal/apperrors"
)

// GitHostProject is the subset of a remote project's fields the hierarchy
// and repository workflows persist (spec §4.4, §4.7, §4.9).
type GitHostProject struct {
	ID            int64  `json:"id"`
	PathWithNamespace string `json:"path_with_namespace"`
	WebURL        string `json:"web_url"`
	NamespaceID   int64  `json:"namespace_id"`
}

// GitHostGroup is the remote identity of a group/namespace.
type GitHostGroup struct {
	ID            int64  `json:"id"`
	FullPath      string `json:"full_path"`
	WebURL        string `json:"web_url"`
}

// GitHostClient talks to a GitLab-compatible hosting API over REST (spec
// §4.4). Fork creation is asynchronous on the server; callers must poll
// GetProjectByPath until the forked project is readable.
type GitHostClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func NewGitHostClient(baseURL, token string) *GitHostClient {
	return &GitHostClient{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *GitHostClient) do(ctx context.Context, method, path string, body any, out any) error {
	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return apperrors.Internal("marshaling request body", err)
		}
		reqBody = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return apperrors.Internal("building request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("PRIVATE-TOKEN", c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperrors.Upstream(method+" "+path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return apperrors.Upstream("reading response body for "+path, err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return apperrors.NotFound(path, nil)
	}
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return apperrors.Upstream(fmt.Sprintf("%s %s returned %d: %s", method, path, resp.StatusCode, respBody), nil)
	}
	if resp.StatusCode >= 400 {
		return apperrors.Validation(fmt.Sprintf("%s %s returned %d: %s", method, path, resp.StatusCode, respBody), nil)
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return apperrors.Internal("unmarshaling response for "+path, err)
	}
	return nil
}

// CreateGroup creates a group under parentID (0 for a root group) with the
// given path. It does not look up an existing group; the server's error for
// a taken path is returned.
func (c *GitHostClient) CreateGroup(ctx context.Context, name, path string, parentID int64) (GitHostGroup, error) {
	var out GitHostGroup
	body := map[string]any{"name": name, "path": path}
	if parentID != 0 {
		body["parent_id"] = parentID
	}
	err := c.do(ctx, http.MethodPost, "/groups", body, &out)
	return out, err
}

// GetGroupByPath looks up a group by its full namespace path.
func (c *GitHostClient) GetGroupByPath(ctx context.Context, fullPath string) (GitHostGroup, error) {
	var out GitHostGroup
	err := c.do(ctx, http.MethodGet, "/groups/"+urlEscape(fullPath), nil, &out)
	return out, err
}

// CreateProject creates a project under namespaceID, unprotected on its
// default branch so activities may push immediately (spec §4.7 item 2).
func (c *GitHostClient) CreateProject(ctx context.Context, name, path string, namespaceID int64) (GitHostProject, error) {
	var out GitHostProject
	body := map[string]any{
		"name":                   name,
		"path":                   path,
		"namespace_id":           namespaceID,
		"initialize_with_readme": false,
	}
	if err := c.do(ctx, http.MethodPost, "/projects", body, &out); err != nil {
		return GitHostProject{}, err
	}
	if err := c.UnprotectBranch(ctx, out.ID, "main"); err != nil {
		return out, err
	}
	return out, nil
}

// GetProjectByPath looks up a project by its namespace/path or numeric id.
func (c *GitHostClient) GetProjectByPath(ctx context.Context, pathOrID string) (GitHostProject, error) {
	var out GitHostProject
	err := c.do(ctx, http.MethodGet, "/projects/"+urlEscape(pathOrID), nil, &out)
	return out, err
}

// ListProjects lists projects under a group/namespace path.
func (c *GitHostClient) ListProjects(ctx context.Context, groupPath string) ([]GitHostProject, error) {
	var out []GitHostProject
	err := c.do(ctx, http.MethodGet, "/groups/"+urlEscape(groupPath)+"/projects", nil, &out)
	return out, err
}

// ForkProject requests an asynchronous fork of sourceProjectID into
// namespaceID under the given path; the fork is not immediately readable
// (spec §4.4, §4.9).
func (c *GitHostClient) ForkProject(ctx context.Context, sourceProjectID, namespaceID int64, path, name string) (GitHostProject, error) {
	var out GitHostProject
	body := map[string]any{"namespace_id": namespaceID, "path": path, "name": name}
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/projects/%d/fork", sourceProjectID), body, &out)
	return out, err
}

// UnprotectBranch removes branch protection so pushes are accepted.
func (c *GitHostClient) UnprotectBranch(ctx context.Context, projectID int64, branch string) error {
	err := c.do(ctx, http.MethodDelete, fmt.Sprintf("/projects/%d/protected_branches/%s", projectID, branch), nil, nil)
	if apperrors.Is(err, apperrors.KindNotFound) {
		return nil
	}
	return err
}

// AddMember grants accessLevel (e.g. 40 = Maintainer) to userID on a project
// or group.
func (c *GitHostClient) AddMember(ctx context.Context, projectID, userID int64, accessLevel int) error {
	body := map[string]any{"user_id": userID, "access_level": accessLevel}
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/projects/%d/members", projectID), body, nil)
}

// FindUserByEmail resolves a remote user id from an email address, used when
// a CourseMember has no cached remote user id yet (spec §4.9 step 4).
func (c *GitHostClient) FindUserByEmail(ctx context.Context, email string) (int64, error) {
	var out []struct {
		ID int64 `json:"id"`
	}
	if err := c.do(ctx, http.MethodGet, "/users?search="+urlEscape(email), nil, &out); err != nil {
		return 0, err
	}
	if len(out) == 0 {
		return 0, apperrors.NotFound("no remote user for email "+email, nil)
	}
	return out[0].ID, nil
}

func urlEscape(s string) string {
	escaped := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		b := s[i]
		if b == '/' {
			escaped = append(escaped, '%', '2', 'F')
			continue
		}
		escaped = append(escaped, b)
	}
	return string(escaped)
}
