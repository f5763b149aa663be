package loader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"brainc/internal/logging"
	"brainc/internal/prompt"
)

// Loader discovers and parses definition files under a project root.
type Loader struct {
	root     string
	patterns []string
	scripts  []string
}

// New creates a loader. patterns and scripts are doublestar globs relative
// to root.
func New(root string, patterns, scripts []string) *Loader {
	return &Loader{root: root, patterns: patterns, scripts: scripts}
}

// Discover expands the configured globs. Each list is sorted and free of
// duplicates.
func (l *Loader) Discover() (yamlFiles, scriptFiles []string, err error) {
	if yamlFiles, err = l.glob(l.patterns); err != nil {
		return nil, nil, err
	}
	if scriptFiles, err = l.glob(l.scripts); err != nil {
		return nil, nil, err
	}
	return yamlFiles, scriptFiles, nil
}

func (l *Loader) glob(patterns []string) ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	for _, pattern := range patterns {
		abs := pattern
		if !filepath.IsAbs(abs) {
			abs = filepath.Join(l.root, pattern)
		}
		matches, err := doublestar.FilepathGlob(abs)
		if err != nil {
			return nil, fmt.Errorf("glob %q: %w", pattern, err)
		}
		for _, m := range matches {
			info, err := os.Stat(m)
			if err != nil || info.IsDir() || seen[m] {
				continue
			}
			seen[m] = true
			out = append(out, m)
		}
	}
	sort.Strings(out)
	return out, nil
}

// Load parses every discovered file. A file or entry that cannot be read or
// parsed is returned as a problem and the remaining files still load; the
// error is reserved for discovery failures and cancellation.
func (l *Loader) Load(ctx context.Context) ([]*prompt.Definition, []error, error) {
	timer := logging.StartTimer(logging.CategoryLoader, "Loader.Load")
	defer timer.Stop()

	yamlFiles, scriptFiles, err := l.Discover()
	if err != nil {
		return nil, nil, err
	}
	logging.Get(logging.CategoryLoader).Info("discovered %d yaml and %d script definition files under %s",
		len(yamlFiles), len(scriptFiles), l.root)

	var defs []*prompt.Definition
	var problems []error
	for _, path := range yamlFiles {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		fileDefs, fileProblems := l.parseYAMLFile(path)
		defs = append(defs, fileDefs...)
		problems = append(problems, fileProblems...)
	}
	for _, path := range scriptFiles {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		fileDefs, fileProblems, err := LoadScript(path, l.rel(path))
		if err != nil {
			fileProblems = append(fileProblems, err)
		}
		defs = append(defs, fileDefs...)
		problems = append(problems, fileProblems...)
	}

	for _, p := range problems {
		logging.Get(logging.CategoryLoader).Warn("%v", p)
	}
	logging.Get(logging.CategoryLoader).Info("loaded %d definitions, %d problems", len(defs), len(problems))
	return defs, problems, nil
}

func (l *Loader) parseYAMLFile(path string) ([]*prompt.Definition, []error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, []error{&FileError{Source: l.rel(path), Err: err}}
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		logging.Get(logging.CategoryLoader).Warn("skipping empty definition file %s", path)
		return nil, nil
	}
	defs, problems := Parse(data, l.rel(path))
	logging.Get(logging.CategoryLoader).Debug("parsed %d definitions from %s", len(defs), path)
	return defs, problems
}

// rel returns path relative to the project root, or path itself.
func (l *Loader) rel(path string) string {
	if r, err := filepath.Rel(l.root, path); err == nil && !strings.HasPrefix(r, "..") {
		return filepath.ToSlash(r)
	}
	return path
}

// Owns reports whether a changed path is matched by the loader's globs.
func (l *Loader) Owns(path string) bool {
	rel := l.rel(path)
	for _, pattern := range append(append([]string(nil), l.patterns...), l.scripts...) {
		if ok, _ := doublestar.Match(filepath.ToSlash(pattern), rel); ok {
			return true
		}
	}
	return false
}
