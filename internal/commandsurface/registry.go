package commandsurface

import (
	"context"
	"sort"
)

// Handler runs one command's business logic and returns the text reply
// to post, or an error CommandSurface.Dispatch will render via
// engineerr.UserMessage.
type Handler func(ctx context.Context, s *Surface, inv Invocation) (string, error)

// Definition describes one registered command.
type Definition struct {
	Name        string
	Args        string
	Description string
	// Mutating commands require root / group admin-owner / game host
	// (§4.8); query commands are open to anyone in the channel.
	Mutating bool
	Handler  Handler
}

// Registry is the `/aigm` command table, grounded on the teacher's
// pkg/connector/commandregistry.Registry shape (register-then-lookup),
// adapted away from mautrix's commands.Event to our own Invocation.
type Registry struct {
	defs  map[string]Definition
	order []string
}

// NewRegistry builds an empty Registry.
func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]Definition)}
}

// Register adds def, panicking on a duplicate name since that is always
// a programmer error caught at startup, never at runtime.
func (r *Registry) Register(def Definition) {
	if _, exists := r.defs[def.Name]; exists {
		panic("commandsurface: duplicate command registered: " + def.Name)
	}
	r.defs[def.Name] = def
	r.order = append(r.order, def.Name)
}

// Get looks up a command by name.
func (r *Registry) Get(name string) (Definition, bool) {
	def, ok := r.defs[name]
	return def, ok
}

// All returns every registered Definition in registration order.
func (r *Registry) All() []Definition {
	out := make([]Definition, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.defs[name])
	}
	return out
}

// Names returns every registered command name, sorted.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.defs))
	for name := range r.defs {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
