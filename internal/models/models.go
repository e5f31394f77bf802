// Package models maps friendly model aliases to API model names.
//
// Users say "grok41_fast"; the wire wants "grok-4-1-fast-non-reasoning".
// Either form is accepted anywhere a model is named, so new API models
// work before an alias exists for them.
package models

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknown is returned when a model name is neither a known alias nor
// a known API model name.
var ErrUnknown = errors.New("unknown model")

// Model describes one available model.
type Model struct {
	Name        string `json:"name"`
	APIModel    string `json:"api_model"`
	Reasoning   bool   `json:"reasoning"`
	Description string `json:"description"`
}

// order fixes the presentation order; the default model comes first.
var order = []string{
	"grok41_fast",
	"grok41_heavy",
	"grok4_fast",
	"grok4_reasoning",
	"grok_code",
	"grok4",
	"grok2_image",
}

var modelMap = map[string]string{
	"grok41_fast":     "grok-4-1-fast-non-reasoning",
	"grok41_heavy":    "grok-4-1-fast-reasoning",
	"grok4_fast":      "grok-4-fast-non-reasoning",
	"grok4_reasoning": "grok-4-fast-reasoning",
	"grok_code":       "grok-code-fast-1",
	"grok4":           "grok-4",
	"grok2_image":     "grok-2-image-1212",
}

var descriptions = map[string]string{
	"grok41_fast":     "Default fast model (non-reasoning, cheapest)",
	"grok41_heavy":    "Heavy reasoning model (parallel agents)",
	"grok4_fast":      "Grok 4 fast (non-reasoning)",
	"grok4_reasoning": "Grok 4 with reasoning",
	"grok_code":       "Code-optimized model",
	"grok4":           "Grok 4 base model",
	"grok2_image":     "Image understanding model",
}

var reverseModelMap = func() map[string]string {
	m := make(map[string]string, len(modelMap))
	for friendly, api := range modelMap {
		m[api] = friendly
	}
	return m
}()

// Resolve turns a friendly alias or API model name into the API model
// name. Unknown names are an error naming the available aliases.
func Resolve(name string) (string, error) {
	if _, ok := reverseModelMap[name]; ok {
		return name, nil
	}
	if api, ok := modelMap[name]; ok {
		return api, nil
	}
	return "", fmt.Errorf("%w %q (available: %s; API model names also work)",
		ErrUnknown, name, strings.Join(order, ", "))
}

// FriendlyName returns the alias for an API model name, or the input
// unchanged when no alias exists.
func FriendlyName(apiModel string) string {
	if friendly, ok := reverseModelMap[apiModel]; ok {
		return friendly
	}
	return apiModel
}

// IsReasoning reports whether a model runs with reasoning enabled.
// "non-reasoning" models carry the word "reasoning" in their API names,
// so a plain substring check is not enough.
func IsReasoning(model string) bool {
	api, err := Resolve(model)
	if err != nil {
		api = model
	}
	return strings.Contains(api, "reasoning") && !strings.Contains(api, "non-reasoning")
}

// List returns all available models in presentation order.
func List() []Model {
	models := make([]Model, 0, len(order))
	for _, friendly := range order {
		api := modelMap[friendly]
		models = append(models, Model{
			Name:        friendly,
			APIModel:    api,
			Reasoning:   IsReasoning(api),
			Description: descriptions[friendly],
		})
	}
	return models
}
