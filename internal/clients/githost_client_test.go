package clients

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/drewpayment/ctutor-controlplane/internal/apperrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGitHostClient_CreateProject(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/projects":
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(GitHostProject{ID: 42, PathWithNamespace: "org/course/assignments", WebURL: "https://git.example/org/course/assignments"})
		case r.Method == http.MethodDelete:
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := NewGitHostClient(srv.URL, "tok")
	proj, err := c.CreateProject(context.Background(), "assignments", "assignments", 7)
	require.NoError(t, err)
	assert.Equal(t, int64(42), proj.ID)
	assert.Equal(t, "org/course/assignments", proj.PathWithNamespace)
}

func TestGitHostClient_GetProjectByPath_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewGitHostClient(srv.URL, "tok")
	_, err := c.GetProjectByPath(context.Background(), "org/missing")
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))
}

func TestGitHostClient_ForkProject(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/projects/10/fork", r.URL.Path)
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(GitHostProject{ID: 99, PathWithNamespace: "students/alice-course"})
	}))
	defer srv.Close()

	c := NewGitHostClient(srv.URL, "tok")
	proj, err := c.ForkProject(context.Background(), 10, 3, "alice-course", "alice-course")
	require.NoError(t, err)
	assert.Equal(t, int64(99), proj.ID)
}

func TestGitHostClient_RateLimitSurfacesAsUpstream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewGitHostClient(srv.URL, "tok")
	_, err := c.GetProjectByPath(context.Background(), "org/x")
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.KindUpstream))
}

func TestGitHostClient_AddMember(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/projects/5/members", r.URL.Path)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c := NewGitHostClient(srv.URL, "tok")
	err := c.AddMember(context.Background(), 5, 3, 40)
	require.NoError(t, err)
}
