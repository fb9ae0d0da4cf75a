package jenkins

import (
	"bytes"
	_ "embed"
	"encoding/xml"
	"fmt"
	"os"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"

	"github.com/ericfisherdev/tracklink/internal/domain/model"
	"github.com/ericfisherdev/tracklink/internal/domain/port/driven"
)

//go:embed pipelines.yaml
var builtinPipelines []byte

// CallbackCredentialID is the Jenkins string credential holding the shared
// key the pipeline presents to the build callback endpoint.
const CallbackCredentialID = "tracklink-callback-key"

// Stage is one named group of shell steps.
type Stage struct {
	Name  string   `yaml:"name"`
	Steps []string `yaml:"steps"`
}

// Pipeline is the template for one tech stack.
type Pipeline struct {
	Image  string  `yaml:"image"`
	Stages []Stage `yaml:"stages"`
}

// Catalog maps tech stacks to pipeline templates.
type Catalog struct {
	Stacks map[model.TechStack]Pipeline `yaml:"stacks"`
}

// LoadCatalog returns the built-in catalog, with stacks from overridePath
// replacing or adding entries when the path is non-empty.
func LoadCatalog(overridePath string) (*Catalog, error) {
	var catalog Catalog
	if err := yaml.Unmarshal(builtinPipelines, &catalog); err != nil {
		return nil, fmt.Errorf("parse built-in pipelines: %w", err)
	}

	if overridePath == "" {
		return &catalog, nil
	}

	data, err := os.ReadFile(overridePath)
	if err != nil {
		return nil, fmt.Errorf("read pipeline templates %s: %w", overridePath, err)
	}

	var override Catalog
	if err := yaml.Unmarshal(data, &override); err != nil {
		return nil, fmt.Errorf("parse pipeline templates %s: %w", overridePath, err)
	}

	for stack, p := range override.Stacks {
		catalog.Stacks[stack] = p
	}

	return &catalog, nil
}

// Has reports whether the catalog holds a pipeline for stack.
func (c *Catalog) Has(stack model.TechStack) bool {
	_, ok := c.Stacks[stack]
	return ok
}

var jenkinsfile = template.Must(template.New("Jenkinsfile").Funcs(template.FuncMap{
	"quote": groovyQuote,
}).Parse(`pipeline {
    agent { docker { image {{ quote .Pipeline.Image }} } }
    parameters {
        string(name: 'COMMIT_HASH', defaultValue: '')
        string(name: 'BUILD_ID', defaultValue: '')
        password(name: 'GIT_TOKEN', defaultValue: '')
        string(name: 'CALLBACK_URL', defaultValue: '')
    }
    stages {
        stage('Checkout') {
            steps {
                sh 'git init -q . && git fetch -q --depth 1 "https://x-access-token:${GIT_TOKEN}@{{ .CloneHost }}" "${COMMIT_HASH}" && git checkout -q FETCH_HEAD'
            }
        }
{{- range .Pipeline.Stages }}
        stage({{ quote .Name }}) {
            steps {
{{- range .Steps }}
                sh {{ quote . }}
{{- end }}
            }
        }
{{- end }}
    }
    post {
        success { script { notify('SUCCESS') } }
        failure { script { notify('FAILED') } }
    }
}

def notify(String status) {
    withCredentials([string(credentialsId: {{ quote .CredentialID }}, variable: 'CB_KEY')]) {
        writeFile file: 'callback.json', text: groovy.json.JsonOutput.toJson([status: status, build_number: env.BUILD_NUMBER as Integer])
        sh 'curl -fsS -X POST -H "Content-Type: application/json" -H "X-CI-Token: ${CB_KEY}" --data @callback.json "${CALLBACK_URL}"'
    }
}
`))

// Render produces the Jenkinsfile for spec.
func (c *Catalog) Render(spec driven.JobSpec) (string, error) {
	p, ok := c.Stacks[spec.Stack]
	if !ok {
		return "", fmt.Errorf("no pipeline template for tech stack %q", spec.Stack)
	}

	cloneHost := strings.TrimPrefix(strings.TrimPrefix(spec.CloneURL, "https://"), "http://")

	var buf bytes.Buffer
	err := jenkinsfile.Execute(&buf, struct {
		Pipeline     Pipeline
		CloneHost    string
		CredentialID string
	}{p, cloneHost, CallbackCredentialID})
	if err != nil {
		return "", fmt.Errorf("render pipeline for %s: %w", spec.Name, err)
	}

	return buf.String(), nil
}

type flowDefinition struct {
	XMLName     xml.Name `xml:"flow-definition"`
	Plugin      string   `xml:"plugin,attr"`
	Description string   `xml:"description"`
	Definition  struct {
		Class   string `xml:"class,attr"`
		Plugin  string `xml:"plugin,attr"`
		Script  string `xml:"script"`
		Sandbox bool   `xml:"sandbox"`
	} `xml:"definition"`
}

// JobConfig wraps a Jenkinsfile in the config.xml of a pipeline job.
func JobConfig(description, script string) ([]byte, error) {
	def := flowDefinition{Plugin: "workflow-job", Description: description}
	def.Definition.Class = "org.jenkinsci.plugins.workflow.cps.CpsFlowDefinition"
	def.Definition.Plugin = "workflow-cps"
	def.Definition.Script = script
	def.Definition.Sandbox = true

	out, err := xml.MarshalIndent(def, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal job config: %w", err)
	}

	return append([]byte(xml.Header), out...), nil
}

// groovyQuote renders s as a single-quoted Groovy string literal.
func groovyQuote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `'`, `\'`)
	return "'" + s + "'"
}
