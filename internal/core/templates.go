package core

import (
	_ "embed"
	"strings"

	"github.com/rowanvale/forest/pkg/models"
	"gopkg.in/yaml.v3"
)

//go:embed templates.yaml
var templatesYAML []byte

// taskTemplate is one pre-defined task shape in templates.yaml.
type taskTemplate struct {
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	Branch      string `yaml:"branch"`
	Duration    string `yaml:"duration"`
	Difficulty  int    `yaml:"difficulty"`
}

type templateSet struct {
	Generic    []taskTemplate `yaml:"generic"`
	Escalation []taskTemplate `yaml:"escalation"`
}

// loadTemplates parses the embedded template file. The file ships with the
// binary, so a parse failure is a programming error.
func loadTemplates() templateSet {
	var set templateSet
	if err := yaml.Unmarshal(templatesYAML, &set); err != nil {
		panic("core: invalid embedded templates.yaml: " + err.Error())
	}
	return set
}

var builtinTemplates = loadTemplates()

// instantiateTemplates turns a template list into concrete tasks for the
// given goal.
func instantiateTemplates(templates []taskTemplate, goal string) []*models.Task {
	if goal == "" {
		goal = "your goal"
	}
	tasks := make([]*models.Task, 0, len(templates))
	for _, tmpl := range templates {
		tasks = append(tasks, &models.Task{
			Title:       strings.ReplaceAll(tmpl.Title, "{goal}", goal),
			Description: strings.ReplaceAll(tmpl.Description, "{goal}", goal),
			Branch:      tmpl.Branch,
			Duration:    models.Duration(tmpl.Duration),
			Difficulty:  tmpl.Difficulty,
		})
	}
	return tasks
}
