// Package pipelines is the registry of example pipelines shipped with
// opgraph: bible, entity, narrative, and translation. cmd/opgraph's
// "run" subcommand resolves a pipeline by name through this package
// rather than importing each pkg/pipelines/<name> package directly.
package pipelines

import (
	"database/sql"
	"fmt"
	"sort"

	"github.com/lonestarx1/opgraph/pkg/dag"
	"github.com/lonestarx1/opgraph/pkg/llm"
	"github.com/lonestarx1/opgraph/pkg/opconfig"
	"github.com/lonestarx1/opgraph/pkg/pipelines/bible"
	"github.com/lonestarx1/opgraph/pkg/pipelines/entity"
	"github.com/lonestarx1/opgraph/pkg/pipelines/narrative"
	"github.com/lonestarx1/opgraph/pkg/pipelines/translation"
)

// BuildFunc constructs a pipeline's dag given a provider registry, any
// per-operation AI config overrides loaded from opgraph.yaml, and a
// database connection. Pipelines that don't need a database (every
// example but translation) ignore db.
type BuildFunc func(reg *llm.Registry, overrides map[string]opconfig.OperationAIConfig, db *sql.DB) (*dag.Pipeline, error)

// Entry describes one registered example pipeline.
type Entry struct {
	ID          string
	Description string
	Build       BuildFunc
	// DefaultInput seeds a run when the caller supplies no input.
	DefaultInput func() map[string]any
}

var registry = map[string]Entry{
	bible.ID: {
		ID:          bible.ID,
		Description: "World/character/faction generation with heavy fan-out",
		Build: func(reg *llm.Registry, overrides map[string]opconfig.OperationAIConfig, _ *sql.DB) (*dag.Pipeline, error) {
			return bible.Build(reg, overrides)
		},
		DefaultInput: bible.DefaultInput,
	},
	entity.ID: {
		ID:          entity.ID,
		Description: "Structured entity extraction exercising JSON repair",
		Build: func(reg *llm.Registry, overrides map[string]opconfig.OperationAIConfig, _ *sql.DB) (*dag.Pipeline, error) {
			return entity.Build(reg, overrides)
		},
		DefaultInput: entity.DefaultInput,
	},
	narrative.ID: {
		ID:          narrative.ID,
		Description: "Outline, draft, and polish chain threading state forward",
		Build: func(reg *llm.Registry, overrides map[string]opconfig.OperationAIConfig, _ *sql.DB) (*dag.Pipeline, error) {
			return narrative.Build(reg, overrides)
		},
		DefaultInput: narrative.DefaultInput,
	},
	translation.ID: {
		ID:          translation.ID,
		Description: "Translation followed by a database-backed persist step",
		Build: func(reg *llm.Registry, overrides map[string]opconfig.OperationAIConfig, db *sql.DB) (*dag.Pipeline, error) {
			return translation.Build(reg, overrides, db)
		},
		DefaultInput: translation.DefaultInput,
	},
}

// ErrUnknownPipeline is returned by Get for an unregistered name.
type ErrUnknownPipeline struct{ Name string }

func (e ErrUnknownPipeline) Error() string {
	return fmt.Sprintf("pipelines: unknown pipeline %q (run 'opgraph list' to see available pipelines)", e.Name)
}

// Get looks up a registered pipeline by name.
func Get(name string) (Entry, error) {
	e, ok := registry[name]
	if !ok {
		return Entry{}, ErrUnknownPipeline{Name: name}
	}
	return e, nil
}

// Names returns every registered pipeline name, sorted.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// All returns every registered Entry, sorted by ID.
func All() []Entry {
	names := Names()
	entries := make([]Entry, 0, len(names))
	for _, name := range names {
		entries = append(entries, registry[name])
	}
	return entries
}
