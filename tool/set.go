package tool

import (
	"fmt"
	"sort"

	"github.com/domgolonka/ai-investment-agent-sub001/model"
)

// Set is an ordered, name unique collection of tools.
type Set struct {
	order []string
	tools map[string]Tool
}

// NewSet builds a set, rejecting duplicate names.
func NewSet(tools ...Tool) (*Set, error) {
	s := &Set{tools: make(map[string]Tool, len(tools))}
	for _, t := range tools {
		if err := s.Add(t); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Add appends a tool.
func (s *Set) Add(t Tool) error {
	if t == nil || t.Name() == "" {
		return fmt.Errorf("tool must have a name")
	}
	if _, dup := s.tools[t.Name()]; dup {
		return fmt.Errorf("duplicate tool %q", t.Name())
	}
	s.tools[t.Name()] = t
	s.order = append(s.order, t.Name())
	return nil
}

// Get looks a tool up by name.
func (s *Set) Get(name string) (Tool, bool) {
	if s == nil {
		return nil, false
	}
	t, ok := s.tools[name]
	return t, ok
}

// Len returns the number of tools.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.order)
}

// Names returns tool names in insertion order.
func (s *Set) Names() []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s.order...)
}

// Definitions converts the set into model tool definitions.
func (s *Set) Definitions() []model.ToolDefinition {
	if s == nil {
		return nil
	}
	defs := make([]model.ToolDefinition, 0, len(s.order))
	for _, name := range s.order {
		t := s.tools[name]
		defs = append(defs, model.ToolDefinition{
			Type: "function",
			Function: model.FunctionDefinition{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  t.Parameters(),
			},
		})
	}
	return defs
}

// Toolkit assigns a tool set to each analyst identifier.
type Toolkit map[string]*Set

// Union merges every set of the toolkit. A tool shared by several analysts
// must be the same name in each; the first occurrence wins.
func (k Toolkit) Union() *Set {
	keys := make([]string, 0, len(k))
	for key := range k {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	out := &Set{tools: map[string]Tool{}}
	for _, key := range keys {
		set := k[key]
		if set == nil {
			continue
		}
		for _, name := range set.order {
			if _, seen := out.tools[name]; !seen {
				_ = out.Add(set.tools[name])
			}
		}
	}
	return out
}
