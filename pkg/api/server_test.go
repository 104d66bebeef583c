package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opus67/skillctx/pkg/engine"
	"github.com/opus67/skillctx/pkg/registry"
)

func testServer(t *testing.T) (*Server, string) {
	t.Helper()
	dir := t.TempDir()
	corpus := map[string]string{
		"docker.md": "---\nid: docker-expert\ntier: 1\ntoken_cost: 100\nkeywords: [docker]\n---\n\nDocker guidance.\n",
		"react.md":  "---\nid: react-pro\ntier: 2\ntoken_cost: 50\nkeywords: [react]\nfile_types: [tsx]\n---\n\nReact guidance.\n",
	}
	for name, content := range corpus {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}

	reg, err := registry.New(registry.WithDirs(dir))
	require.NoError(t, err)
	_, err = reg.Load(context.Background())
	require.NoError(t, err)

	eng, err := engine.New(reg)
	require.NoError(t, err)

	srv, err := NewServer(&ServerConfig{Host: "127.0.0.1", Port: 8067}, reg, eng, nil)
	require.NoError(t, err)
	return srv, dir
}

func TestServerConfigValidate(t *testing.T) {
	assert.Error(t, (&ServerConfig{Host: "", Port: 8067}).Validate())
	assert.Error(t, (&ServerConfig{Host: "127.0.0.1", Port: 0}).Validate())
	assert.Error(t, (&ServerConfig{Host: "127.0.0.1", Port: 70000}).Validate())
	assert.NoError(t, (&ServerConfig{Host: "127.0.0.1", Port: 8067}).Validate())
}

func TestHandleSelect(t *testing.T) {
	srv, _ := testServer(t)

	body, err := json.Marshal(map[string]any{
		"keywords":     []string{"docker"},
		"token_budget": 120,
	})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/select", bytes.NewReader(body))
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Result struct {
			OrderedSkillIDs []string          `json:"ordered_skill_ids"`
			TotalCost       int               `json:"total_cost"`
			Excluded        map[string]string `json:"excluded"`
		} `json:"result"`
		Context string `json:"context"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, []string{"docker-expert"}, resp.Result.OrderedSkillIDs)
	assert.Equal(t, 100, resp.Result.TotalCost)
	assert.Equal(t, "zero-relevance", resp.Result.Excluded["react-pro"])
	assert.Contains(t, resp.Context, "Docker guidance.")
}

func TestHandleSelectRejectsBadRequests(t *testing.T) {
	srv, _ := testServer(t)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("POST", "/api/select", bytes.NewReader([]byte("{not json"))))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("POST", "/api/select", bytes.NewReader([]byte(`{"keywords":["docker"]}`))))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleListSkills(t *testing.T) {
	srv, _ := testServer(t)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/api/skills", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		SnapshotVersion string `json:"snapshot_version"`
		Skills          []struct {
			ID        string `json:"id"`
			Tier      int    `json:"tier"`
			TokenCost int    `json:"token_cost"`
		} `json:"skills"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.SnapshotVersion)
	require.Len(t, resp.Skills, 2)
	assert.Equal(t, "docker-expert", resp.Skills[0].ID)
	assert.Equal(t, "react-pro", resp.Skills[1].ID)

	// Summaries never carry the content blob.
	assert.NotContains(t, rec.Body.String(), "Docker guidance.")
}

func TestHandleGetSkill(t *testing.T) {
	srv, _ := testServer(t)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/api/skills/docker-expert", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Docker guidance.")

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/api/skills/ghost", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleReload(t *testing.T) {
	srv, dir := testServer(t)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "tf.md"),
		[]byte("---\nid: terraform\ntier: 2\ntoken_cost: 30\nkeywords: [terraform]\n---\n\nTerraform.\n"), 0o644))

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("POST", "/api/reload", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Loaded int `json:"loaded"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 3, resp.Loaded)
}

func TestHandleHealthz(t *testing.T) {
	srv, _ := testServer(t)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Status string `json:"status"`
		Skills int    `json:"skills"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 2, resp.Skills)
}
