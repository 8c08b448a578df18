// Package persona maps the expert choices offered on the page to the system
// prompt sent ahead of the user's question.
package persona

import "strings"

// Persona is one of the experts a user can consult
type Persona int

const (
	Python Persona = iota
	Frontend
)

const (
	pythonInstruction = "You are an experienced Python engineer. " +
		"Explain carefully with concrete examples so that even beginners can understand."
	frontendInstruction = "You are an engineer well versed in web frontend development. " +
		"Explain HTML/CSS/JavaScript and frameworks clearly from a practical point of view."

	// FallbackInstruction is used for choices that do not name a known persona.
	FallbackInstruction = "You are an AI assistant who supports users politely. " +
		"Answer clearly, matching the user's level."
)

// All returns the personas in display order. The first one is the default.
func All() []Persona {
	return []Persona{Python, Frontend}
}

// Key is the stable identifier used in forms and the JSON API
func (p Persona) Key() string {
	switch p {
	case Python:
		return "python"
	case Frontend:
		return "frontend"
	default:
		return ""
	}
}

// Label is the human readable name shown next to the radio button
func (p Persona) Label() string {
	switch p {
	case Python:
		return "Python engineer"
	case Frontend:
		return "Frontend web engineer"
	default:
		return ""
	}
}

// Instruction returns the system prompt for the persona
func (p Persona) Instruction() string {
	switch p {
	case Python:
		return pythonInstruction
	case Frontend:
		return frontendInstruction
	default:
		return FallbackInstruction
	}
}

func (p Persona) String() string {
	return p.Key()
}

// Parse accepts either a key ("python") or a label ("Python engineer").
// Matching ignores case and surrounding whitespace.
func Parse(choice string) (Persona, bool) {
	choice = strings.TrimSpace(choice)
	for _, p := range All() {
		if strings.EqualFold(choice, p.Key()) || strings.EqualFold(choice, p.Label()) {
			return p, true
		}
	}
	return 0, false
}

// Resolve maps untyped input to an instruction. Unknown choices get the
// generic assistant instruction.
func Resolve(choice string) string {
	if p, ok := Parse(choice); ok {
		return p.Instruction()
	}
	return FallbackInstruction
}
