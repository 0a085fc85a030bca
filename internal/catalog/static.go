package catalog

import (
	"context"
	"fmt"
	"os"
	"slices"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/skillswap/exchange-api/internal/apperrors"
	"github.com/skillswap/exchange-api/internal/models"
)

// Seed is the YAML layout of a catalog file.
type Seed struct {
	Skills   []models.Skill   `yaml:"skills"`
	Profiles []models.Profile `yaml:"profiles"`
}

// Static is an in-memory catalog, loaded from a seed file or built in tests.
type Static struct {
	mu       sync.RWMutex
	skills   map[string]models.Skill
	profiles map[string]models.Profile
}

func NewStatic(seed Seed) *Static {
	c := &Static{
		skills:   make(map[string]models.Skill, len(seed.Skills)),
		profiles: make(map[string]models.Profile, len(seed.Profiles)),
	}
	for _, s := range seed.Skills {
		c.skills[s.ID] = s
	}
	for _, p := range seed.Profiles {
		c.profiles[p.ID] = p
	}
	return c
}

// ReadSeed parses a YAML catalog file.
func ReadSeed(path string) (Seed, error) {
	var seed Seed
	data, err := os.ReadFile(path)
	if err != nil {
		return seed, fmt.Errorf("read catalog %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return seed, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	for i, s := range seed.Skills {
		if s.ID == "" {
			return seed, fmt.Errorf("catalog %s: skill #%d has no id", path, i)
		}
	}
	for i, p := range seed.Profiles {
		if p.ID == "" {
			return seed, fmt.Errorf("catalog %s: profile #%d has no id", path, i)
		}
	}
	return seed, nil
}

// LoadFile builds a Static catalog from a YAML file.
func LoadFile(path string) (*Static, error) {
	seed, err := ReadSeed(path)
	if err != nil {
		return nil, err
	}
	return NewStatic(seed), nil
}

func (c *Static) Skill(_ context.Context, id string) (*models.Skill, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.skills[id]
	if !ok {
		return nil, fmt.Errorf("skill %q: %w", id, apperrors.ErrNotFound)
	}
	return &s, nil
}

func (c *Static) Profile(_ context.Context, actorID string) (*models.Profile, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.profiles[actorID]
	if !ok {
		return nil, fmt.Errorf("profile %q: %w", actorID, apperrors.ErrNotFound)
	}
	return cloneProfile(p), nil
}

func (c *Static) ProfilesTeaching(_ context.Context, skillID string) ([]models.Profile, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []models.Profile
	for _, p := range c.profiles {
		if slices.Contains(p.Teaches, skillID) {
			out = append(out, *cloneProfile(p))
		}
	}
	return out, nil
}

// PutProfile replaces or adds a profile.
func (c *Static) PutProfile(p models.Profile) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.profiles[p.ID] = *cloneProfile(p)
}

// PutSkill replaces or adds a skill.
func (c *Static) PutSkill(s models.Skill) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.skills[s.ID] = s
}

func cloneProfile(p models.Profile) *models.Profile {
	p.Teaches = slices.Clone(p.Teaches)
	p.Wants = slices.Clone(p.Wants)
	return &p
}
