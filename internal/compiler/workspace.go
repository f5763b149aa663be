package compiler

import (
	"context"
	"fmt"

	"brainc/internal/catalog"
	"brainc/internal/config"
	"brainc/internal/loader"
	"brainc/internal/logging"
	"brainc/internal/prompt"
)

// Workspace is the registry of one project plus the problems found while
// filling it: unreadable definition files and rejected registrations
// (duplicate ids, a second brain).
type Workspace struct {
	Registry *prompt.Registry
	Problems []error
	Loader   *loader.Loader
}

// LoadWorkspace seeds a registry from the built-in catalog (when enabled)
// and the project's definition files. Files and entries that fail to parse
// and rejected registrations are collected in Problems; the error is only
// returned when the definition files cannot be discovered.
func LoadWorkspace(ctx context.Context, cfg *config.Config) (*Workspace, error) {
	timer := logging.StartTimer(logging.CategoryCompile, "LoadWorkspace")
	defer timer.Stop()

	ws := &Workspace{
		Registry: prompt.NewRegistry(),
		Loader:   loader.New(cfg.ProjectRoot(), cfg.Definitions.Patterns, cfg.Definitions.Scripts),
	}

	if cfg.Catalog.Enabled {
		ws.Problems = append(ws.Problems, catalog.Register(ws.Registry)...)
	}

	defs, loadProblems, err := ws.Loader.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load definitions: %w", err)
	}
	ws.Problems = append(ws.Problems, loadProblems...)
	ws.Problems = append(ws.Problems, ws.Registry.RegisterAll(defs...)...)

	for _, p := range ws.Problems {
		logging.Get(logging.CategoryCompile).Warn("workspace problem: %v", p)
	}
	logging.Compile("workspace: %d definitions, %d registration problems", ws.Registry.Len(), len(ws.Problems))
	return ws, nil
}
