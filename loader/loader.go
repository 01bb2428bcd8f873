package loader

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/mohitkumar/agentflow/agent"
	"github.com/mohitkumar/agentflow/model"
	"gopkg.in/yaml.v3"
)

const (
	AGENT_KIND_ECHO   = "echo"
	AGENT_KIND_JS     = "js"
	AGENT_KIND_SWITCH = "switch"
)

// File is the YAML layout accepted by the loader:
//
//	agents:
//	  - id: calc
//	    kind: js
//	    scripts:
//	      sum: "$.total = $.a + $.b;"
//	workflows:
//	  - id: math
//	    steps:
//	      - id: add
//	        agent: calc
//	        task: sum
//	        parameters: {a: 1, b: 2}
type File struct {
	Agents    []AgentDecl    `yaml:"agents"`
	Workflows []WorkflowDecl `yaml:"workflows"`
}

type AgentDecl struct {
	Id         string            `yaml:"id"`
	Name       string            `yaml:"name,omitempty"`
	Kind       string            `yaml:"kind"`
	Scripts    map[string]string `yaml:"scripts,omitempty"`
	Expression string            `yaml:"expression,omitempty"`
	Cases      map[string]any    `yaml:"cases,omitempty"`
}

type WorkflowDecl struct {
	Id    string           `yaml:"id"`
	Name  string           `yaml:"name,omitempty"`
	Steps []model.StepSpec `yaml:"steps"`
}

// Registry is the part of the orchestrator a loaded file is applied to.
type Registry interface {
	RegisterAgent(a agent.Agent) bool
	DefineWorkflow(ctx context.Context, id string, name string, steps []model.StepSpec, replace bool) (*model.WorkflowDefinition, error)
}

func Parse(data []byte) (*File, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("loader: payload is empty")
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("loader: decode: %w", err)
	}
	return &f, nil
}

func LoadReader(r io.Reader) (*File, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("loader: read: %w", err)
	}
	return Parse(content)
}

func LoadFile(path string) (*File, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loader: read %s: %w", path, err)
	}
	f, err := Parse(content)
	if err != nil {
		return nil, fmt.Errorf("loader: %s: %w", path, err)
	}
	return f, nil
}

func (d AgentDecl) Build() (agent.Agent, error) {
	if d.Id == "" {
		return nil, fmt.Errorf("loader: agent id can not be empty")
	}
	name := d.Name
	if name == "" {
		name = d.Id
	}
	switch d.Kind {
	case AGENT_KIND_ECHO, "":
		return agent.NewEchoAgent(d.Id, name), nil
	case AGENT_KIND_JS:
		a, err := agent.NewJsAgent(d.Id, name, d.Scripts)
		if err != nil {
			return nil, err
		}
		return a, nil
	case AGENT_KIND_SWITCH:
		a, err := agent.NewSwitchAgent(d.Id, name, d.Expression, d.Cases)
		if err != nil {
			return nil, err
		}
		return a, nil
	}
	return nil, fmt.Errorf("loader: agent %s has unknown kind %s", d.Id, d.Kind)
}

// Apply registers every declared agent and defines every declared workflow.
// It stops at the first error.
func (f *File) Apply(ctx context.Context, registry Registry, replace bool) error {
	for _, decl := range f.Agents {
		a, err := decl.Build()
		if err != nil {
			return err
		}
		if !registry.RegisterAgent(a) {
			return fmt.Errorf("loader: agent %s was rejected", decl.Id)
		}
	}
	for _, wf := range f.Workflows {
		name := wf.Name
		if name == "" {
			name = wf.Id
		}
		if _, err := registry.DefineWorkflow(ctx, wf.Id, name, wf.Steps, replace); err != nil {
			return fmt.Errorf("loader: workflow %s: %w", wf.Id, err)
		}
	}
	return nil
}
