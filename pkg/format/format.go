// Package format turns completion results into presentation documents.
//
// Format is a pure mapping. A successful plan keeps its markdown body
// verbatim and gains a plain-text download and an iCalendar entry; empty
// and failed results become a short user-facing message with no artifacts.
package format

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	ics "github.com/arran4/golang-ical"
	"github.com/google/uuid"

	"github.com/pario-ai/wanderplan/pkg/models"
)

// MaxDiagnostic bounds the length of the diagnostic line on failures.
const MaxDiagnostic = 120

const (
	msgReady = "Your custom travel plan is ready."
	msgEmpty = "Sorry, no plan could be generated for this trip. Please try again."
)

var failureMessages = map[models.ErrorKind]string{
	models.ErrorNetwork:       "The planning service could not be reached. Please try again in a moment.",
	models.ErrorService:       "The planning service rejected the request. Please check the trip details and try again.",
	models.ErrorBudget:        "The planning budget for this period has been used up. Please try again later.",
	models.ErrorCanceled:      "The request was canceled before a plan was ready.",
	models.ErrorConfiguration: "The planner is not configured correctly. Please contact the operator.",
}

// Title returns the document title for req.
func Title(req models.TripRequest) string {
	return fmt.Sprintf("Travel Plan: %s to %s", req.Source, req.Destination)
}

// DownloadFilename returns the plain-text export name for req.
func DownloadFilename(req models.TripRequest) string {
	return fmt.Sprintf("Travel_Plan_%s_to_%s.txt", req.Source, req.Destination)
}

// CalendarFilename returns the iCalendar export name for req.
func CalendarFilename(req models.TripRequest) string {
	return strings.TrimSuffix(DownloadFilename(req), ".txt") + ".ics"
}

// Format maps result to a PresentationDocument.
func Format(req models.TripRequest, result models.CompletionResult, extras models.Extras) models.PresentationDocument {
	doc := models.PresentationDocument{
		Title:   Title(req),
		Weather: extras.Weather,
		Images:  extras.Images,
		Notices: extras.Notices,
	}

	switch result.Status {
	case models.StatusSuccess:
		doc.Status = models.DocumentOK
		doc.Message = msgReady
		doc.Body = result.Text
		doc.Sections = Sections(result.Text)
		plain := PlainText(req, result.Text)
		doc.Download = &models.Artifact{
			Filename:    DownloadFilename(req),
			ContentType: "text/plain; charset=utf-8",
			Content:     []byte(plain),
		}
		if cal := Calendar(req, result.Text, extras.Weather); cal != "" {
			doc.Calendar = &models.Artifact{
				Filename:    CalendarFilename(req),
				ContentType: "text/calendar; charset=utf-8",
				Content:     []byte(cal),
			}
		}
	case models.StatusEmpty:
		doc.Status = models.DocumentWarning
		doc.Message = msgEmpty
	default:
		doc.Status = models.DocumentError
		msg, ok := failureMessages[result.Kind]
		if !ok {
			msg = failureMessages[models.ErrorNetwork]
		}
		doc.Message = msg
		doc.Diagnostic = Diagnostic(result)
	}
	return doc
}

// Diagnostic renders a failure as a single line of at most MaxDiagnostic
// characters.
func Diagnostic(result models.CompletionResult) string {
	line := string(result.Kind)
	if result.Message != "" {
		if line != "" {
			line += ": "
		}
		line += result.Message
	}
	line = strings.Join(strings.Fields(line), " ")
	if utf8.RuneCountInString(line) <= MaxDiagnostic {
		return line
	}
	runes := []rune(line)
	return string(runes[:MaxDiagnostic-3]) + "..."
}

// A closing run of # only counts when whitespace precedes it.
var headingRe = regexp.MustCompile(`^#{1,6}\s+(.*?)(?:\s+#+)?\s*$`)

// Sections splits markdown into headed blocks. Text before the first
// heading becomes a section with an empty heading.
func Sections(text string) []models.Section {
	var sections []models.Section
	var cur *models.Section
	var body []string

	flush := func() {
		b := strings.TrimSpace(strings.Join(body, "\n"))
		if cur != nil {
			cur.Body = b
			sections = append(sections, *cur)
		} else if b != "" {
			sections = append(sections, models.Section{Body: b})
		}
		body = body[:0]
	}

	for _, line := range strings.Split(text, "\n") {
		if m := headingRe.FindStringSubmatch(strings.TrimSpace(line)); m != nil {
			flush()
			cur = &models.Section{Heading: stripInline(m[1])}
			continue
		}
		body = append(body, line)
	}
	flush()
	return sections
}

var (
	linkRe   = regexp.MustCompile(`\[([^\]]+)\]\(([^)]+)\)`)
	strongRe = regexp.MustCompile(`(\*\*|__|~~|` + "`" + `)(\S(?:.*?\S)?)(\*\*|__|~~|` + "`" + `)`)
	bulletRe = regexp.MustCompile(`^(\s*)[*+]\s+`)

	// Single * and _ are emphasis only when not flanked by word characters,
	// so 5*3*2 and snake_case survive.
	starRe  = regexp.MustCompile(`(^|[^\w*])\*([^\s*](?:[^*]*?[^\s*])?)\*([^\w*]|$)`)
	underRe = regexp.MustCompile(`(^|[^\w_])_([^\s_](?:[^_]*?[^\s_])?)_([^\w_]|$)`)
)

func stripInline(s string) string {
	s = linkRe.ReplaceAllString(s, "$1 ($2)")
	for {
		next := strongRe.ReplaceAllStringFunc(s, func(m string) string {
			sub := strongRe.FindStringSubmatch(m)
			if sub[1] != sub[3] {
				return m
			}
			return sub[2]
		})
		next = starRe.ReplaceAllString(next, "$1$2$3")
		next = underRe.ReplaceAllString(next, "$1$2$3")
		if next == s {
			return s
		}
		s = next
	}
}

// StripMarkdown removes heading markers, emphasis and link syntax, and
// normalizes bullets to "- ".
func StripMarkdown(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if m := headingRe.FindStringSubmatch(trimmed); m != nil {
			lines[i] = strings.ToUpper(stripInline(m[1]))
			continue
		}
		if trimmed == "---" || trimmed == "***" {
			lines[i] = ""
			continue
		}
		line = bulletRe.ReplaceAllString(line, "$1- ")
		lines[i] = stripInline(line)
	}
	return strings.Join(lines, "\n")
}

// PlainText renders the download export: title, trip summary, then the
// plan with markdown removed.
func PlainText(req models.TripRequest, text string) string {
	var b strings.Builder
	title := Title(req)
	b.WriteString(title + "\n")
	b.WriteString(strings.Repeat("=", utf8.RuneCountInString(title)) + "\n\n")
	b.WriteString(Summary(req))
	b.WriteString("\n")
	b.WriteString(strings.TrimSpace(StripMarkdown(text)))
	b.WriteString("\n")
	return b.String()
}

// Summary lists the trip parameters, one per line.
func Summary(req models.TripRequest) string {
	date := req.DateString()
	if date == "" {
		date = "flexible"
	}
	prefs := strings.Join(models.NormalizePreferences(req.Preferences), ", ")
	if prefs == "" {
		prefs = "none"
	}
	lang := req.Language
	if lang == "" {
		lang = models.DefaultLanguage
	}
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\n", req.Source)
	fmt.Fprintf(&b, "To: %s\n", req.Destination)
	fmt.Fprintf(&b, "Date: %s\n", date)
	fmt.Fprintf(&b, "Budget: %s - %s %s\n", amount(req.Budget.Min), amount(req.Budget.Max), req.Currency)
	fmt.Fprintf(&b, "Preferences: %s\n", prefs)
	fmt.Fprintf(&b, "Language: %s\n", lang.Name())
	return b.String()
}

// Calendar returns an iCalendar document with one all-day event on the
// travel date, or "" when the date is unset.
func Calendar(req models.TripRequest, text string, w *models.Weather) string {
	if req.TravelDate.IsZero() {
		return ""
	}
	day := time.Date(req.TravelDate.Year(), req.TravelDate.Month(), req.TravelDate.Day(), 0, 0, 0, 0, time.UTC)
	uid := uuid.NewSHA1(uuid.NameSpaceURL, []byte("wanderplan:"+req.Source+"|"+req.Destination+"|"+req.DateString()))

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//wanderplan//itinerary//EN")

	ev := cal.AddEvent(uid.String() + "@wanderplan")
	ev.SetDtStampTime(day)
	ev.SetSummary(fmt.Sprintf("Trip: %s to %s", req.Source, req.Destination))
	ev.SetLocation(req.Destination)
	ev.SetAllDayStartAt(day)
	ev.SetAllDayEndAt(day.AddDate(0, 0, 1))

	desc := StripMarkdown(text)
	if w != nil {
		desc = fmt.Sprintf("Weather now in %s: %s, %.1f°C\n\n", w.City, w.Condition, w.TemperatureC) + desc
	}
	ev.SetDescription(strings.TrimSpace(desc))
	return cal.Serialize()
}

func amount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
