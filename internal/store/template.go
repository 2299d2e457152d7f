package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tixtracker/tix/internal/model"
)

// Template is the reusable projection of a task: no ID, timestamps, or
// completion state. Loading returns the raw projection for the caller
// to apply to a fresh AddTask.
type Template struct {
	Text     string         `json:"text"`
	Priority model.Priority `json:"priority"`
	Tags     []string       `json:"tags"`
	Links    []string       `json:"links"`
}

// TemplateStore persists one JSON file per template name.
type TemplateStore struct {
	dir string
}

// NewTemplateStore opens (or creates) the template directory.
func NewTemplateStore(dir string) (*TemplateStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating template directory %s: %w", dir, err)
	}
	return &TemplateStore{dir: dir}, nil
}

func (s *TemplateStore) templatePath(name string) string {
	return filepath.Join(s.dir, name+".json")
}

// Save stores the template projection of task under name.
func (s *TemplateStore) Save(task model.Task, name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("template name must not be empty")
	}

	tpl := Template{
		Text:     task.Text,
		Priority: task.Priority,
		Tags:     emptyIfNil(task.Tags),
		Links:    emptyIfNil(task.Links),
	}
	data, err := json.MarshalIndent(tpl, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding template %s: %w", name, err)
	}
	if err := os.WriteFile(s.templatePath(name), data, 0o644); err != nil {
		return fmt.Errorf("writing template %s: %w", name, err)
	}
	return nil
}

// Load returns a template by name, or (nil, nil) if absent.
func (s *TemplateStore) Load(name string) (*Template, error) {
	raw, err := os.ReadFile(s.templatePath(name))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading template %s: %w", name, err)
	}

	var tpl Template
	if err := json.Unmarshal(raw, &tpl); err != nil {
		return nil, fmt.Errorf("parsing template %s: %w", name, err)
	}
	tpl.Priority = model.ParsePriority(string(tpl.Priority))
	return &tpl, nil
}

// List returns all template names, sorted.
func (s *TemplateStore) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("listing templates: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		names = append(names, strings.TrimSuffix(entry.Name(), ".json"))
	}
	sort.Strings(names)
	return names, nil
}

// Delete removes a template, reporting whether it existed.
func (s *TemplateStore) Delete(name string) (bool, error) {
	err := os.Remove(s.templatePath(name))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("deleting template %s: %w", name, err)
	}
	return true, nil
}
