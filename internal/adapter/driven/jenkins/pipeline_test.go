package jenkins

import (
	"encoding/xml"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/tracklink/internal/domain/model"
	"github.com/ericfisherdev/tracklink/internal/domain/port/driven"
)

func TestLoadCatalog_Builtin(t *testing.T) {
	catalog, err := LoadCatalog("")
	require.NoError(t, err)

	for _, stack := range []model.TechStack{model.TechStackGo, model.TechStackNode, model.TechStackPython, model.TechStackJava} {
		p, ok := catalog.Stacks[stack]
		require.True(t, ok, "missing %s", stack)
		assert.NotEmpty(t, p.Image)
		assert.NotEmpty(t, p.Stages)
	}
}

func TestLoadCatalog_Override(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pipelines.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
stacks:
  go:
    image: golang:custom
    stages:
      - name: Lint
        steps: ["golangci-lint run"]
  rust:
    image: rust:1
    stages:
      - name: Test
        steps: ["cargo test"]
`), 0o600))

	catalog, err := LoadCatalog(path)
	require.NoError(t, err)

	assert.Equal(t, "golang:custom", catalog.Stacks[model.TechStackGo].Image)
	assert.Contains(t, catalog.Stacks, model.TechStack("rust"))
	assert.Contains(t, catalog.Stacks, model.TechStackNode, "built-in stacks survive")

	assert.True(t, catalog.Has("rust"))
	assert.False(t, catalog.Has("cobol"))
	client := NewClient("http://ci.example.com", "ci-bot", "api-token", 0, catalog)
	assert.True(t, client.Supports("rust"))
	assert.True(t, client.Supports(model.TechStackGo))
	assert.False(t, client.Supports("cobol"))
}

func TestLoadCatalog_MissingFile(t *testing.T) {
	_, err := LoadCatalog(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestRender(t *testing.T) {
	catalog, err := LoadCatalog("")
	require.NoError(t, err)

	script, err := catalog.Render(driven.JobSpec{
		Name:     "hello-world",
		Stack:    model.TechStackNode,
		CloneURL: "https://github.com/octocat/hello-world.git",
	})
	require.NoError(t, err)

	assert.Contains(t, script, "image 'node:22'")
	assert.Contains(t, script, "stage('Test')")
	assert.Contains(t, script, "sh 'npm ci'")
	assert.Contains(t, script, "x-access-token:${GIT_TOKEN}@github.com/octocat/hello-world.git")
	assert.Contains(t, script, "credentialsId: 'tracklink-callback-key'")
	assert.Contains(t, script, "notify('FAILED')")
}

func TestJobConfig_EscapesScript(t *testing.T) {
	out, err := JobConfig("desc", `sh 'echo "<tag> & more"'`)
	require.NoError(t, err)

	var def flowDefinition
	require.NoError(t, xml.Unmarshal(out, &def))
	assert.Equal(t, `sh 'echo "<tag> & more"'`, def.Definition.Script)
	assert.True(t, def.Definition.Sandbox)
}

func TestGroovyQuote(t *testing.T) {
	assert.Equal(t, `'plain'`, groovyQuote("plain"))
	assert.Equal(t, `'it\'s'`, groovyQuote("it's"))
	assert.Equal(t, `'a\\b'`, groovyQuote(`a\b`))
}
