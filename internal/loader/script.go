package loader

import (
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
	"gopkg.in/yaml.v3"

	"brainc/internal/logging"
	"brainc/internal/prompt"
)

const scriptFuncName = "Definitions"

// LoadScript interprets a Go definition script. The script must declare
// package main and a function Definitions() []map[string]any (optionally
// with a trailing error). Each map has the YAML definition shape. A failing
// script is returned as a *FileError; entries that cannot become a
// definition are returned as problems.
func LoadScript(path, source string) (defs []*prompt.Definition, problems []error, err error) {
	timer := logging.StartTimer(logging.CategoryLoader, "LoadScript")
	defer timer.Stop()

	code, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, &FileError{Source: source, Err: err}
	}
	if len(strings.TrimSpace(string(code))) == 0 {
		return nil, nil, &FileError{Source: source, Err: fmt.Errorf("script is empty")}
	}

	i := interp.New(interp.Options{})
	if err := i.Use(stdlib.Symbols); err != nil {
		return nil, nil, &FileError{Source: source, Err: fmt.Errorf("load stdlib symbols: %w", err)}
	}
	if _, err := i.EvalPath(path); err != nil {
		return nil, nil, &FileError{Source: source, Err: fmt.Errorf("interpret: %w", err)}
	}
	fnValue, err := i.Eval(scriptFuncName)
	if err != nil {
		return nil, nil, &FileError{Source: source, Err: fmt.Errorf("must define %s() []map[string]any: %w", scriptFuncName, err)}
	}

	raw, err := invokeDefinitions(fnValue)
	if err != nil {
		return nil, nil, &FileError{Source: source, Err: err}
	}

	for idx, m := range raw {
		src := fmt.Sprintf("%s#%d", source, idx+1)
		d, err := scriptDefinition(m, src)
		if err != nil {
			problems = append(problems, &FileError{Source: src, Err: err})
			continue
		}
		defs = append(defs, d)
	}
	logging.Get(logging.CategoryLoader).Debug("script %s declared %d definitions (%d rejected)", source, len(defs), len(problems))
	return defs, problems, nil
}

// scriptDefinition round-trips one returned map through the YAML shape.
func scriptDefinition(m map[string]any, source string) (*prompt.Definition, error) {
	payload, err := yaml.Marshal(m)
	if err != nil {
		return nil, err
	}
	var df DefinitionFile
	if err := yaml.Unmarshal(payload, &df); err != nil {
		return nil, err
	}
	return df.ToDefinition(source)
}

func invokeDefinitions(fn reflect.Value) ([]map[string]any, error) {
	if !fn.IsValid() || fn.Kind() != reflect.Func {
		return nil, fmt.Errorf("%s is not a function", scriptFuncName)
	}
	if fn.Type().NumIn() != 0 {
		return nil, fmt.Errorf("%s must take no arguments", scriptFuncName)
	}

	results := fn.Call(nil)
	if len(results) == 0 || len(results) > 2 {
		return nil, fmt.Errorf("%s must return ([]map[string]any[, error])", scriptFuncName)
	}
	if len(results) == 2 && !results[1].IsNil() {
		if e, ok := results[1].Interface().(error); ok {
			return nil, e
		}
		return nil, fmt.Errorf("%s returned a non-error second value", scriptFuncName)
	}

	val := results[0]
	if defs, ok := val.Interface().([]map[string]any); ok {
		return defs, nil
	}
	if val.Kind() != reflect.Slice {
		return nil, fmt.Errorf("%s must return []map[string]any", scriptFuncName)
	}
	out := make([]map[string]any, val.Len())
	for i := 0; i < val.Len(); i++ {
		m, ok := val.Index(i).Interface().(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%s[%d] is not map[string]any", scriptFuncName, i)
		}
		out[i] = m
	}
	return out, nil
}
