// Package prompts renders the model prompts of each workflow stage from embedded templates.
package prompts

import (
	"embed"
	"fmt"
	"strings"
	"text/template"

	"github.com/aretw0/statforge/pkg/domain"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// Data is the template input of every prompt.
type Data struct {
	Description string
	Scene       string
	System      string
	EntityType  domain.EntityType
	Types       []string
	Examples    []string
	Draft       string
	Critique    string
	NoEffect    string
}

// NoEffect is the effect description that reports a scene with no magical outcome.
const NoEffect = "there is no magical effect"

// effectPrompt names the template that is not tied to a workflow stage.
const effectPrompt = "effect"

// Builder renders prompts. It is immutable and safe for concurrent use.
type Builder struct {
	templates map[string]*template.Template
}

var funcs = template.FuncMap{
	"join": strings.Join,
	"inc":  func(i int) int { return i + 1 },
}

// New parses the embedded templates.
func New() (*Builder, error) {
	files := map[string]string{
		string(domain.StageClassify): "templates/classify.tmpl",
		string(domain.StageGenerate): "templates/generate.tmpl",
		string(domain.StageCritique): "templates/critique.tmpl",
		string(domain.StageRevise):   "templates/revise.tmpl",
		effectPrompt:                 "templates/effect.tmpl",
	}

	b := &Builder{templates: make(map[string]*template.Template, len(files))}
	for name, file := range files {
		tmpl, err := template.New(name).Funcs(funcs).ParseFS(templateFS, file)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s prompt: %w", name, err)
		}
		b.templates[name] = tmpl
	}
	return b, nil
}

// MustNew is like New but panics on error.
func MustNew() *Builder {
	b, err := New()
	if err != nil {
		panic(err)
	}
	return b
}

// Render builds the prompt of stage from data.
func (b *Builder) Render(stage domain.Stage, data Data) (domain.Prompt, error) {
	return b.render(string(stage), data)
}

func (b *Builder) render(name string, data Data) (domain.Prompt, error) {
	tmpl, ok := b.templates[name]
	if !ok {
		return domain.Prompt{}, fmt.Errorf("no prompt for stage %q", name)
	}

	system, err := execute(tmpl, "system", data)
	if err != nil {
		return domain.Prompt{}, fmt.Errorf("failed to render %s system prompt: %w", name, err)
	}
	user, err := execute(tmpl, "user", data)
	if err != nil {
		return domain.Prompt{}, fmt.Errorf("failed to render %s user prompt: %w", name, err)
	}
	return domain.Prompt{System: system, User: user}, nil
}

func execute(tmpl *template.Template, name string, data Data) (string, error) {
	var buf strings.Builder
	if err := tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		return "", err
	}
	return strings.TrimSpace(buf.String()), nil
}

// Classify renders the classification prompt.
func (b *Builder) Classify(s *domain.WorkflowState) (domain.Prompt, error) {
	types := make([]string, 0, len(domain.EntityTypes()))
	for _, t := range domain.EntityTypes() {
		types = append(types, string(t))
	}
	return b.Render(domain.StageClassify, Data{
		Description: s.Description,
		System:      s.System,
		Types:       types,
	})
}

// Generate renders the initial draft prompt with pre-rendered examples.
func (b *Builder) Generate(s *domain.WorkflowState, examples []string) (domain.Prompt, error) {
	return b.Render(domain.StageGenerate, Data{
		Description: s.Description,
		System:      s.System,
		EntityType:  s.EntityType,
		Examples:    examples,
	})
}

// Critique renders the review prompt for a pre-rendered draft.
func (b *Builder) Critique(s *domain.WorkflowState, draft string) (domain.Prompt, error) {
	return b.Render(domain.StageCritique, Data{
		Description: s.Description,
		System:      s.System,
		EntityType:  s.EntityType,
		Draft:       draft,
	})
}

// Revise renders the revision prompt for a pre-rendered draft and its critique.
func (b *Builder) Revise(s *domain.WorkflowState, draft, critique string) (domain.Prompt, error) {
	return b.Render(domain.StageRevise, Data{
		Description: s.Description,
		System:      s.System,
		EntityType:  s.EntityType,
		Draft:       draft,
		Critique:    critique,
	})
}

// Effect renders the prompt deciding which magical effect a scene produces.
func (b *Builder) Effect(scene, system string) (domain.Prompt, error) {
	return b.render(effectPrompt, Data{Scene: scene, System: system, NoEffect: NoEffect})
}
