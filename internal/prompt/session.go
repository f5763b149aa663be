package prompt

import (
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"

	"brainc/internal/logging"
)

// Standard variable names available to every definition.
const (
	VarProjectDirectory  = "PROJECT_DIRECTORY"
	VarBrainDirectory    = "BRAIN_DIRECTORY"
	VarAgentsDirectory   = "AGENTS_DIRECTORY"
	VarCommandsDirectory = "COMMANDS_DIRECTORY"
	VarSkillsDirectory   = "SKILLS_DIRECTORY"
	VarTarget            = "TARGET"
	VarDate              = "DATE"
	VarYear              = "YEAR"
	VarTimestamp         = "TIMESTAMP"
	VarSessionID         = "SESSION_ID"

	// Per-definition scope.
	VarDefinitionID   = "DEFINITION_ID"
	VarDefinitionKind = "DEFINITION_KIND"
	VarDefinitionPath = "DEFINITION_PATH"
)

// SessionOptions seeds a Session.
type SessionOptions struct {
	ID     string // generated when empty
	Target string
	Now    time.Time // time.Now() when zero

	ProjectDirectory  string
	BrainDirectory    string
	AgentsDirectory   string
	CommandsDirectory string
	SkillsDirectory   string

	// Variables are user-defined. They cannot replace standard names.
	Variables map[string]string
}

// Session is the immutable variable context of one compilation. Scope
// derives child sessions; nothing mutates an existing one, so a Session may
// be shared between goroutines.
type Session struct {
	id     string
	target string
	vars   map[string]string
}

// NewSession builds the session context from opts.
func NewSession(opts SessionOptions) *Session {
	id := opts.ID
	if id == "" {
		id = uuid.NewString()
	}
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}

	vars := make(map[string]string, len(opts.Variables)+10)
	for k, v := range opts.Variables {
		vars[k] = v
	}

	standard := map[string]string{
		VarProjectDirectory:  opts.ProjectDirectory,
		VarBrainDirectory:    opts.BrainDirectory,
		VarAgentsDirectory:   opts.AgentsDirectory,
		VarCommandsDirectory: opts.CommandsDirectory,
		VarSkillsDirectory:   opts.SkillsDirectory,
		VarTarget:            opts.Target,
		VarDate:              now.Format("2006-01-02"),
		VarYear:              strconv.Itoa(now.Year()),
		VarTimestamp:         now.UTC().Format(time.RFC3339),
		VarSessionID:         id,
	}
	for k, v := range standard {
		if _, clash := opts.Variables[k]; clash {
			logging.Get(logging.CategoryTemplate).Warn("user variable %s shadows a standard variable and is ignored", k)
		}
		vars[k] = v
	}

	return &Session{id: id, target: opts.Target, vars: vars}
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Target returns the compilation target name.
func (s *Session) Target() string { return s.target }

// Lookup returns the value of a variable.
func (s *Session) Lookup(name string) (string, bool) {
	v, ok := s.vars[name]
	return v, ok
}

// Names returns every defined variable name, sorted.
func (s *Session) Names() []string {
	names := make([]string, 0, len(s.vars))
	for k := range s.vars {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Vars returns a copy of every variable.
func (s *Session) Vars() map[string]string {
	out := make(map[string]string, len(s.vars))
	for k, v := range s.vars {
		out[k] = v
	}
	return out
}

// Scope returns a child session with overlay applied on top. The receiver
// is left unchanged.
func (s *Session) Scope(overlay map[string]string) *Session {
	vars := make(map[string]string, len(s.vars)+len(overlay))
	for k, v := range s.vars {
		vars[k] = v
	}
	for k, v := range overlay {
		vars[k] = v
	}
	return &Session{id: s.id, target: s.target, vars: vars}
}

// ForDefinition scopes the session to one definition and its output path.
func (s *Session) ForDefinition(d *Definition, path string) *Session {
	return s.Scope(map[string]string{
		VarDefinitionID:   d.Meta.ID,
		VarDefinitionKind: string(d.Kind),
		VarDefinitionPath: path,
	})
}
