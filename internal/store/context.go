package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tixtracker/tix/internal/model"
)

// ContextStore is the registry of named workspaces. The registry lives
// in a JSON file; which workspace is active is a separate pointer file
// so other stores can resolve it without parsing the registry.
type ContextStore struct {
	path       string // contexts.json
	activePath string // active_context pointer file
	logger     *zap.Logger
}

type contextDocument struct {
	Contexts []model.Context `json:"contexts"`
}

// NewContextStore opens (or creates) the context registry under dir,
// seeding the default context.
func NewContextStore(dir string, logger *zap.Logger) (*ContextStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating context directory %s: %w", dir, err)
	}

	s := &ContextStore{
		path:       filepath.Join(dir, "contexts.json"),
		activePath: filepath.Join(dir, activeCtxName),
		logger:     logger,
	}

	contexts, err := s.List()
	if err != nil {
		return nil, err
	}
	if !containsContext(contexts, model.DefaultContext) {
		contexts = append([]model.Context{{
			Name:      model.DefaultContext,
			CreatedAt: time.Now().UTC(),
		}}, contexts...)
		if err := s.write(contexts); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *ContextStore) read() ([]model.Context, error) {
	raw, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading context registry %s: %w", s.path, err)
	}

	var doc contextDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		s.logger.Warn("treating malformed context registry as empty",
			zap.String("path", s.path),
			zap.Error(err),
		)
		return nil, nil
	}
	return doc.Contexts, nil
}

func (s *ContextStore) write(contexts []model.Context) error {
	if contexts == nil {
		contexts = []model.Context{}
	}
	data, err := json.MarshalIndent(contextDocument{Contexts: contexts}, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding context registry: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("writing context registry %s: %w", s.path, err)
	}
	return nil
}

// List returns all registered contexts.
func (s *ContextStore) List() ([]model.Context, error) {
	return s.read()
}

// Get returns a context by name, or (nil, nil) if absent.
func (s *ContextStore) Get(name string) (*model.Context, error) {
	contexts, err := s.read()
	if err != nil {
		return nil, err
	}
	for _, c := range contexts {
		if c.Name == name {
			found := c
			return &found, nil
		}
	}
	return nil, nil
}

// Exists reports whether a context with the given name is registered.
func (s *ContextStore) Exists(name string) (bool, error) {
	c, err := s.Get(name)
	return c != nil, err
}

// Add registers a new context. Duplicate names are rejected.
func (s *ContextStore) Add(name, description string) (model.Context, error) {
	if strings.TrimSpace(name) == "" {
		return model.Context{}, fmt.Errorf("context name must not be empty")
	}

	contexts, err := s.read()
	if err != nil {
		return model.Context{}, err
	}
	if containsContext(contexts, name) {
		return model.Context{}, fmt.Errorf("context %q already exists", name)
	}

	c := model.Context{
		Name:        name,
		Description: description,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.write(append(contexts, c)); err != nil {
		return model.Context{}, err
	}
	return c, nil
}

// Delete removes a context, reporting whether it was present. The
// default context cannot be deleted; deleting the active context
// switches back to default.
func (s *ContextStore) Delete(name string) (bool, error) {
	if name == model.DefaultContext {
		return false, fmt.Errorf("cannot delete the default context")
	}

	contexts, err := s.read()
	if err != nil {
		return false, err
	}
	for i, c := range contexts {
		if c.Name == name {
			if err := s.write(append(contexts[:i], contexts[i+1:]...)); err != nil {
				return false, err
			}
			active, err := s.Active()
			if err != nil {
				return false, err
			}
			if active == name {
				if err := s.writeActive(model.DefaultContext); err != nil {
					return false, err
				}
			}
			return true, nil
		}
	}
	return false, nil
}

// Active returns the active context name, defaulting when the pointer
// file is absent or unreadable.
func (s *ContextStore) Active() (string, error) {
	raw, err := os.ReadFile(s.activePath)
	if os.IsNotExist(err) {
		return model.DefaultContext, nil
	}
	if err != nil {
		return "", fmt.Errorf("reading active context %s: %w", s.activePath, err)
	}
	name := strings.TrimSpace(string(raw))
	if name == "" {
		return model.DefaultContext, nil
	}
	return name, nil
}

// SetActive switches the active context. The context must exist.
func (s *ContextStore) SetActive(name string) error {
	exists, err := s.Exists(name)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("context %q does not exist", name)
	}
	return s.writeActive(name)
}

func (s *ContextStore) writeActive(name string) error {
	if err := os.WriteFile(s.activePath, []byte(name), 0o644); err != nil {
		return fmt.Errorf("writing active context %s: %w", s.activePath, err)
	}
	return nil
}

func containsContext(contexts []model.Context, name string) bool {
	for _, c := range contexts {
		if c.Name == name {
			return true
		}
	}
	return false
}
