package util

import (
	"fmt"
	"strings"
	"sync"
	"text/template"
)

var (
	promptFuncs = template.FuncMap{
		// default returns fallback when value is nil or an empty string.
		"default": func(fallback, value any) any {
			if value == nil || value == "" {
				return fallback
			}
			return value
		},
		"join": func(sep string, items any) string {
			switch v := items.(type) {
			case []string:
				return strings.Join(v, sep)
			case []any:
				parts := make([]string, len(v))
				for i, item := range v {
					parts[i] = fmt.Sprint(item)
				}
				return strings.Join(parts, sep)
			}
			return fmt.Sprint(items)
		},
	}

	// Prompt texts are a small fixed set, so parsed templates are kept for
	// the life of the process.
	parsedPrompts sync.Map // string -> *template.Template
)

// RenderTemplate executes a text/template prompt against vars. Text without
// template actions is returned unchanged.
func RenderTemplate(text string, vars map[string]any) (string, error) {
	if !strings.Contains(text, "{{") {
		return text, nil
	}

	tmpl, err := parsePrompt(text)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	if err := tmpl.Execute(&b, vars); err != nil {
		return "", fmt.Errorf("executing prompt template: %w", err)
	}
	return b.String(), nil
}

func parsePrompt(text string) (*template.Template, error) {
	if cached, ok := parsedPrompts.Load(text); ok {
		return cached.(*template.Template), nil
	}
	tmpl, err := template.New("prompt").Funcs(promptFuncs).Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parsing prompt template: %w", err)
	}
	actual, _ := parsedPrompts.LoadOrStore(text, tmpl)
	return actual.(*template.Template), nil
}
