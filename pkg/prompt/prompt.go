// Package prompt renders trip requests into generation prompts.
package prompt

import (
	"strconv"
	"strings"

	"github.com/pario-ai/wanderplan/pkg/models"
)

// TemplateVersion identifies the prompt template. Bump it whenever the
// template text changes so cached plans from the old template are not reused.
const TemplateVersion = "itinerary/v2"

// SystemInstruction is sent with every itinerary prompt.
const SystemInstruction = "You are an experienced travel planner. " +
	"Write practical, specific itineraries in Markdown. " +
	"Use the requested section headings exactly and keep costs in the requested currency."

// Sections are the headings every itinerary must contain, in order.
var Sections = []string{
	"Transportation",
	"Accommodation",
	"Attractions",
	"Food",
	"Weather",
	"Budget Breakdown",
	"Safety Tips",
}

// Build renders req into the user prompt. It is a pure function of req:
// preferences are normalized so their order does not affect the output.
// Empty fields are passed through verbatim.
func Build(req models.TripRequest) string {
	prefs := models.NormalizePreferences(req.Preferences)
	prefText := "none"
	if len(prefs) > 0 {
		prefText = strings.Join(prefs, ", ")
	}
	lang := req.Language
	if lang == "" {
		lang = models.DefaultLanguage
	}

	var b strings.Builder
	b.WriteString("Create a detailed itinerary for a trip from ")
	b.WriteString(req.Source)
	b.WriteString(" to ")
	b.WriteString(req.Destination)
	b.WriteString(".\n")
	b.WriteString("- Travel date: " + req.DateString() + "\n")
	b.WriteString("- Currency: " + req.Currency + "\n")
	b.WriteString("- Budget: " + formatAmount(req.Budget.Min) + " - " + formatAmount(req.Budget.Max) + " " + req.Currency + "\n")
	b.WriteString("- Preferences: " + prefText + "\n")
	b.WriteString("- Reader's language: " + lang.Name() + " (" + string(lang) + ")\n")
	b.WriteString("\nRespond in English. Structure the plan with exactly these Markdown sections, in this order:\n")
	for i, s := range Sections {
		b.WriteString(strconv.Itoa(i+1) + ". ### " + s + "\n")
	}
	b.WriteString("Include estimated costs for transport, lodging and food, and keep the total within the budget.\n")
	return b.String()
}

// Request wraps Build into a CompletionRequest for model.
func Request(req models.TripRequest, model string) models.CompletionRequest {
	return models.CompletionRequest{
		SystemInstruction: SystemInstruction,
		Prompt:            Build(req),
		Model:             model,
		TemplateVersion:   TemplateVersion,
	}
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
