// Package template provides the prompt template catalog used by constrained
// mode: variable definitions, value validation, and placeholder rendering.
package template

import (
	"fmt"
	"strconv"
	"strings"
)

// VariableType enumerates the supported input kinds for a template variable.
type VariableType string

const (
	TypeText     VariableType = "text"
	TypeTextarea VariableType = "textarea"
	TypeNumber   VariableType = "number"
	TypeSelect   VariableType = "select"
)

// DefaultMaxLength applies when a variable declares no max_length.
const DefaultMaxLength = 500

// Variable declares one fillable slot in a template body.
type Variable struct {
	Name      string       `yaml:"name"`
	Label     string       `yaml:"label,omitempty"`
	Type      VariableType `yaml:"type,omitempty"`
	Required  bool         `yaml:"required"`
	MaxLength int          `yaml:"max_length,omitempty"`
	Choices   []string     `yaml:"choices,omitempty"`
	HelpText  string       `yaml:"help_text,omitempty"`
}

// Template is a prompt skeleton with {name} placeholders. Templates are
// administered externally and read-only to the orchestrator.
type Template struct {
	ID          string     `yaml:"id"`
	Name        string     `yaml:"name"`
	Description string     `yaml:"description,omitempty"`
	Category    string     `yaml:"category"`
	Body        string     `yaml:"body"`
	Variables   []Variable `yaml:"variables"`
	Active      bool       `yaml:"active"`
}

// Render substitutes every {name} placeholder that has a supplied value.
// A variable with no supplied value is left as a literal placeholder; that
// is a deliberate, observable property, not an error.
func (t *Template) Render(values map[string]string) string {
	prompt := t.Body
	for _, v := range t.Variables {
		val, ok := values[v.Name]
		if !ok {
			continue
		}
		prompt = strings.ReplaceAll(prompt, "{"+v.Name+"}", val)
	}
	return prompt
}

// ValidateVariables checks supplied values against the declared definitions:
// required presence, numeric parseability, and max length. Unknown keys in
// values are silently ignored.
func ValidateVariables(values map[string]string, defs []Variable) (bool, string) {
	for _, def := range defs {
		val, present := values[def.Name]

		if def.Required && !present {
			return false, fmt.Sprintf("missing required variable: %s", def.Name)
		}
		if !present {
			continue
		}

		if def.Type == TypeNumber {
			if _, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err != nil {
				return false, fmt.Sprintf("variable %s must be a number", def.Name)
			}
		}

		maxLen := def.MaxLength
		if maxLen == 0 {
			maxLen = DefaultMaxLength
		}
		if len(val) > maxLen {
			return false, fmt.Sprintf("variable %s exceeds maximum length of %d", def.Name, maxLen)
		}
	}
	return true, ""
}

// Validate checks the template definition itself: placeholders must map to
// declared variables with valid identifier names, unique within the template.
func (t *Template) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("template has no id")
	}
	if strings.TrimSpace(t.Body) == "" {
		return fmt.Errorf("template %s has an empty body", t.ID)
	}
	seen := make(map[string]bool, len(t.Variables))
	for _, v := range t.Variables {
		if !isIdentifier(v.Name) {
			return fmt.Errorf("template %s: variable name %q is not a valid identifier", t.ID, v.Name)
		}
		if seen[v.Name] {
			return fmt.Errorf("template %s: duplicate variable %q", t.ID, v.Name)
		}
		seen[v.Name] = true
		if v.Type == TypeSelect && len(v.Choices) == 0 {
			return fmt.Errorf("template %s: select variable %q declares no choices", t.ID, v.Name)
		}
	}
	return nil
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_',
			r >= 'a' && r <= 'z',
			r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}
