package format

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pario-ai/wanderplan/pkg/models"
)

func trip() models.TripRequest {
	return models.TripRequest{
		Source:      "New York",
		Destination: "Paris",
		TravelDate:  time.Date(2026, 5, 14, 0, 0, 0, 0, time.UTC),
		Currency:    "USD",
		Budget:      models.Budget{Min: 500, Max: 2000},
		Language:    models.English,
	}
}

const plan = "Intro line.\n\n### Transportation\nTake the **red-eye** flight.\n* Metro pass\n\n### Food\nTry [Le Comptoir](https://example.com).\n"

func TestFormatSuccess(t *testing.T) {
	doc := Format(trip(), models.Success(plan), models.Extras{
		Weather: &models.Weather{City: "Paris", Condition: "clear sky", TemperatureC: 18},
		Images:  []string{"https://img/1"},
		Notices: []string{"note"},
	})

	assert.Equal(t, models.DocumentOK, doc.Status)
	assert.Equal(t, plan, doc.Body)
	assert.Equal(t, "Travel Plan: New York to Paris", doc.Title)
	assert.Empty(t, doc.Diagnostic)
	assert.Equal(t, []string{"https://img/1"}, doc.Images)
	assert.Equal(t, []string{"note"}, doc.Notices)

	require.NotNil(t, doc.Download)
	assert.Equal(t, "Travel_Plan_New York_to_Paris.txt", doc.Download.Filename)
	assert.Equal(t, "text/plain; charset=utf-8", doc.Download.ContentType)
	content := string(doc.Download.Content)
	assert.True(t, strings.HasPrefix(content, "Travel Plan: New York to Paris\n"))
	assert.Contains(t, content, "Budget: 500 - 2000 USD")
	assert.Contains(t, content, "TRANSPORTATION")
	assert.Contains(t, content, "Take the red-eye flight.")
	assert.Contains(t, content, "- Metro pass")
	assert.Contains(t, content, "Le Comptoir (https://example.com)")
	assert.NotContains(t, content, "###")
	assert.NotContains(t, content, "**")

	require.NotNil(t, doc.Calendar)
	assert.Equal(t, "Travel_Plan_New York_to_Paris.ics", doc.Calendar.Filename)
	cal := string(doc.Calendar.Content)
	assert.Contains(t, cal, "BEGIN:VCALENDAR")
	assert.Contains(t, cal, "BEGIN:VEVENT")
	assert.Contains(t, cal, "20260514")
	assert.Contains(t, cal, "LOCATION:Paris")
}

func TestFormatSections(t *testing.T) {
	secs := Sections(plan)
	require.Len(t, secs, 3)
	assert.Equal(t, "", secs[0].Heading)
	assert.Equal(t, "Intro line.", secs[0].Body)
	assert.Equal(t, "Transportation", secs[1].Heading)
	assert.Equal(t, "Take the **red-eye** flight.\n* Metro pass", secs[1].Body)
	assert.Equal(t, "Food", secs[2].Heading)
}

func TestFormatSectionsHeadingOnly(t *testing.T) {
	secs := Sections("## **Safety Tips** ##")
	require.Len(t, secs, 1)
	assert.Equal(t, "Safety Tips", secs[0].Heading)
	assert.Empty(t, secs[0].Body)
}

func TestFormatEmpty(t *testing.T) {
	doc := Format(trip(), models.Empty(), models.Extras{})

	assert.Equal(t, models.DocumentWarning, doc.Status)
	assert.NotEmpty(t, doc.Message)
	assert.Empty(t, doc.Body)
	assert.Nil(t, doc.Download)
	assert.Nil(t, doc.Calendar)
}

func TestFormatFailure(t *testing.T) {
	raw := "dial tcp 10.0.0.1:443: i/o timeout\n" + strings.Repeat("goroutine 1 [running]:\n", 20)
	doc := Format(trip(), models.Failure(models.ErrorNetwork, raw), models.Extras{})

	assert.Equal(t, models.DocumentError, doc.Status)
	assert.Equal(t, failureMessages[models.ErrorNetwork], doc.Message)
	assert.Nil(t, doc.Download)
	assert.Nil(t, doc.Calendar)
	assert.NotContains(t, doc.Diagnostic, "\n")
	assert.LessOrEqual(t, len([]rune(doc.Diagnostic)), MaxDiagnostic)
	assert.True(t, strings.HasPrefix(doc.Diagnostic, "network: dial tcp"))
	assert.True(t, strings.HasSuffix(doc.Diagnostic, "..."))
}

func TestDiagnosticShort(t *testing.T) {
	assert.Equal(t, "budget: limit reached", Diagnostic(models.Failure(models.ErrorBudget, "limit\nreached")))
}

func TestFormatNoCalendarWithoutDate(t *testing.T) {
	req := trip()
	req.TravelDate = time.Time{}
	doc := Format(req, models.Success(plan), models.Extras{})

	assert.NotNil(t, doc.Download)
	assert.Nil(t, doc.Calendar)
	assert.Contains(t, string(doc.Download.Content), "Date: flexible")
}

func TestStripMarkdown(t *testing.T) {
	in := "# Title\n**Bold** and `code` and ~~gone~~\n+ item\n---\nsnake_case stays"
	want := "TITLE\nBold and code and gone\n- item\n\nsnake_case stays"
	assert.Equal(t, want, StripMarkdown(in))
}

func TestStripMarkdownKeepsArithmetic(t *testing.T) {
	assert.Equal(t, "Fare: 5*3*2 = 30 EUR", StripMarkdown("Fare: 5*3*2 = 30 EUR"))
	assert.Equal(t, "Try the local dish and more", StripMarkdown("Try the *local* dish and _more_"))
}

func TestFormatSectionsHeadingEndsWithHash(t *testing.T) {
	secs := Sections("### Learn C#\nA weekend course.")
	require.Len(t, secs, 1)
	assert.Equal(t, "Learn C#", secs[0].Heading)
	assert.Equal(t, "A weekend course.", secs[0].Body)
}
