package agent

import (
	"github.com/domgolonka/ai-investment-agent-sub001/core"
	"github.com/domgolonka/ai-investment-agent-sub001/internal/util"
)

// Provider supplies dynamic instruction text at run time.
type Provider interface {
	Instruction(s core.AgentState, vars map[string]any) (string, error)
}

// Func is a functional adapter to allow ordinary functions to be used as Providers.
type Func func(s core.AgentState, vars map[string]any) (string, error)

// Instruction implements Provider.
func (f Func) Instruction(s core.AgentState, vars map[string]any) (string, error) { return f(s, vars) }

// Instruction is either a prompt template or a dynamic provider.
// Templates are rendered against the node's prompt variables.
type Instruction struct {
	text     string
	provider Provider
}

// NewInstructionFromText creates an Instruction from a template string.
func NewInstructionFromText(text string) Instruction { return Instruction{text: text} }

// NewInstructionFromProvider creates an Instruction from a dynamic provider.
func NewInstructionFromProvider(p Provider) Instruction { return Instruction{provider: p} }

// NewInstructionFromFunc creates an Instruction from a function.
func NewInstructionFromFunc(f func(s core.AgentState, vars map[string]any) (string, error)) Instruction {
	return Instruction{provider: Func(f)}
}

// IsStatic returns true if the instruction is backed by a template string.
func (i Instruction) IsStatic() bool { return i.provider == nil }

// IsZero reports whether neither text nor provider is set.
func (i Instruction) IsZero() bool { return i.text == "" && i.provider == nil }

// Resolve returns the instruction text, invoking the provider or rendering
// the template as needed.
func (i Instruction) Resolve(s core.AgentState, vars map[string]any) (string, error) {
	if i.provider != nil {
		return i.provider.Instruction(s, vars)
	}
	return util.RenderTemplate(i.text, vars)
}
