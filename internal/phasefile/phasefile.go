// Package phasefile loads and saves phase plan files. A plan file is a
// YAML document with a top-level phases list; each phase carries its
// promise, budget, and dependencies.
package phasefile

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jdsingh122918/forge/internal/graph"
	"github.com/jdsingh122918/forge/pkg/models"
)

// ErrNoPhases indicates the plan file contained no phases.
var ErrNoPhases = errors.New("plan file has no phases")

// File is the on-disk shape of a phase plan.
type File struct {
	// Name is an optional display name for the plan.
	Name string `yaml:"name,omitempty"`
	// Phases is the ordered list of phase definitions.
	Phases []models.Phase `yaml:"phases"`
}

// Load reads a plan file, validates it, and returns the phases.
func Load(path string) ([]models.Phase, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading plan file: %w", err)
	}
	return Parse(data)
}

// Parse validates raw YAML plan content and returns the phases.
// Validation covers per-phase fields and the dependency structure:
// duplicate IDs, unknown dependencies, and cycles are all rejected.
func Parse(data []byte) ([]models.Phase, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing plan file: %w", err)
	}
	if len(f.Phases) == 0 {
		return nil, ErrNoPhases
	}

	for i := range f.Phases {
		if err := validatePhase(&f.Phases[i]); err != nil {
			return nil, err
		}
	}

	// Building the graph checks duplicates, unknown deps, and cycles.
	refs := make([]*models.Phase, len(f.Phases))
	for i := range f.Phases {
		refs[i] = &f.Phases[i]
	}
	if _, err := graph.Build(refs); err != nil {
		return nil, err
	}

	return f.Phases, nil
}

// Save writes phases back to a plan file, preserving sub-phases and
// runtime fields so a run can be resumed from disk.
func Save(path string, name string, phases []models.Phase) error {
	f := File{Name: name, Phases: phases}
	data, err := yaml.Marshal(&f)
	if err != nil {
		return fmt.Errorf("encoding plan file: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing plan file: %w", err)
	}
	return nil
}

func validatePhase(p *models.Phase) error {
	if strings.TrimSpace(p.ID) == "" {
		return fmt.Errorf("phase %q has no number", p.Name)
	}
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("phase %s has no name", p.ID)
	}
	if strings.TrimSpace(p.Promise) == "" {
		return fmt.Errorf("phase %s has no completion promise", p.ID)
	}
	if p.Budget <= 0 {
		return fmt.Errorf("phase %s has no iteration budget", p.ID)
	}
	if allocated := p.AllocatedBudget(); allocated > p.Budget {
		return fmt.Errorf("phase %s sub-phases claim %d iterations of a %d budget", p.ID, allocated, p.Budget)
	}
	for i := range p.SubPhases {
		sp := &p.SubPhases[i]
		if sp.Status == "" {
			sp.Status = models.StatusPending
		}
		if !sp.Status.Valid() {
			return fmt.Errorf("sub-phase %s has invalid status %q", sp.ID, sp.Status)
		}
	}
	return nil
}
