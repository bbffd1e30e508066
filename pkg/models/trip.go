package models

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/samber/lo"
	"golang.org/x/text/currency"
)

// DateLayout is the wire and prompt format of a travel date.
const DateLayout = "2006-01-02"

// Budget is an inclusive spending range in the request currency.
type Budget struct {
	Min float64 `json:"min" yaml:"min"`
	Max float64 `json:"max" yaml:"max"`
}

// TripRequest is the structured set of user-supplied trip parameters.
type TripRequest struct {
	Source      string    `json:"source"`
	Destination string    `json:"destination"`
	TravelDate  time.Time `json:"travel_date"`
	Currency    string    `json:"currency"`
	Budget      Budget    `json:"budget"`
	Preferences []string  `json:"preferences,omitempty"`
	Language    Language  `json:"language,omitempty"`
}

// Normalized returns a copy with trimmed cities, an upper-case currency, the
// default language filled in and preferences reduced to a sorted set.
func (r TripRequest) Normalized() TripRequest {
	out := r
	out.Source = strings.TrimSpace(r.Source)
	out.Destination = strings.TrimSpace(r.Destination)
	out.Currency = strings.ToUpper(strings.TrimSpace(r.Currency))
	if out.Language == "" {
		out.Language = DefaultLanguage
	}
	out.Preferences = NormalizePreferences(r.Preferences)
	return out
}

// NormalizePreferences trims, drops blanks, de-duplicates case-insensitively
// and sorts. Order of the input is irrelevant to the result.
func NormalizePreferences(prefs []string) []string {
	trimmed := lo.Filter(lo.Map(prefs, func(p string, _ int) string {
		return strings.TrimSpace(p)
	}), func(p string, _ int) bool {
		return p != ""
	})
	unique := lo.UniqBy(trimmed, strings.ToLower)
	sort.Slice(unique, func(i, j int) bool {
		return strings.ToLower(unique[i]) < strings.ToLower(unique[j])
	})
	return unique
}

// DateString renders the travel date, or "" when unset.
func (r TripRequest) DateString() string {
	if r.TravelDate.IsZero() {
		return ""
	}
	return r.TravelDate.Format(DateLayout)
}

// Validate reports every problem with the request at once.
func (r TripRequest) Validate() error {
	var problems []string
	src := strings.TrimSpace(r.Source)
	dst := strings.TrimSpace(r.Destination)

	if src == "" {
		problems = append(problems, "departure city is required")
	}
	if dst == "" {
		problems = append(problems, "destination city is required")
	}
	if src != "" && dst != "" && strings.EqualFold(src, dst) {
		problems = append(problems, "departure and destination must differ")
	}
	if r.Budget.Min <= 0 || r.Budget.Max <= 0 {
		problems = append(problems, "budget bounds must be positive")
	} else if r.Budget.Min > r.Budget.Max {
		problems = append(problems, "budget minimum exceeds maximum")
	}
	if code := strings.TrimSpace(r.Currency); code == "" {
		problems = append(problems, "currency is required")
	} else if _, err := currency.ParseISO(code); err != nil {
		problems = append(problems, fmt.Sprintf("unknown currency %q", code))
	}
	if r.Language != "" && !r.Language.Valid() {
		problems = append(problems, fmt.Sprintf("unsupported language %q", r.Language))
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

// ValidationError lists the fields a caller must correct. No remote call is
// made for an invalid request.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid trip request: " + strings.Join(e.Problems, "; ")
}

// TripInput is the wire form of a TripRequest. TravelDate is YYYY-MM-DD
// and Language may be a code, a BCP-47 tag or a display name.
type TripInput struct {
	Source      string   `json:"source"`
	Destination string   `json:"destination"`
	TravelDate  string   `json:"travel_date,omitempty"`
	Currency    string   `json:"currency"`
	Budget      Budget   `json:"budget"`
	Preferences []string `json:"preferences,omitempty"`
	Language    string   `json:"language,omitempty"`
}

// Request converts the input, using fallback when no language is given.
// Unparseable dates and languages are reported as a *ValidationError.
func (in TripInput) Request(fallback Language) (TripRequest, error) {
	req := TripRequest{
		Source:      in.Source,
		Destination: in.Destination,
		Currency:    in.Currency,
		Budget:      in.Budget,
		Preferences: in.Preferences,
		Language:    fallback,
	}
	var problems []string
	if s := strings.TrimSpace(in.TravelDate); s != "" {
		d, err := time.Parse(DateLayout, s)
		if err != nil {
			problems = append(problems, fmt.Sprintf("travel date %q is not YYYY-MM-DD", s))
		}
		req.TravelDate = d
	}
	if strings.TrimSpace(in.Language) != "" {
		lang, err := ParseLanguage(in.Language)
		if err != nil {
			problems = append(problems, err.Error())
		}
		req.Language = lang
	}
	if len(problems) > 0 {
		return req, &ValidationError{Problems: problems}
	}
	return req, nil
}
