package models

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validTrip() TripRequest {
	return TripRequest{
		Source:      "New York",
		Destination: "Paris",
		TravelDate:  time.Date(2026, 5, 14, 0, 0, 0, 0, time.UTC),
		Currency:    "USD",
		Budget:      Budget{Min: 500, Max: 2000},
		Language:    English,
	}
}

func TestValidateAcceptsValidTrip(t *testing.T) {
	assert.NoError(t, validTrip().Validate())
}

func TestValidateReportsEveryProblem(t *testing.T) {
	req := TripRequest{Source: " ", Currency: "ZZZ", Budget: Budget{Min: 0, Max: 10}, Language: "xx"}

	err := req.Validate()
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Len(t, verr.Problems, 5)
	assert.Contains(t, err.Error(), "invalid trip request: ")
}

func TestValidateSameCity(t *testing.T) {
	req := validTrip()
	req.Destination = "new york"
	err := req.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must differ")
}

func TestValidateInvertedBudget(t *testing.T) {
	req := validTrip()
	req.Budget = Budget{Min: 3000, Max: 2000}
	assert.ErrorContains(t, req.Validate(), "minimum exceeds maximum")
}

func TestNormalized(t *testing.T) {
	req := validTrip()
	req.Source = "  New York "
	req.Currency = "usd"
	req.Language = ""
	req.Preferences = []string{"Luxury Travel", "eco-friendly", "", "Eco-friendly "}

	n := req.Normalized()
	assert.Equal(t, "New York", n.Source)
	assert.Equal(t, "USD", n.Currency)
	assert.Equal(t, English, n.Language)
	assert.Equal(t, []string{"eco-friendly", "Luxury Travel"}, n.Preferences)
}

func TestTripInputRequest(t *testing.T) {
	in := TripInput{
		Source: "Delhi", Destination: "Goa", TravelDate: "2026-12-01",
		Currency: "INR", Budget: Budget{Min: 100, Max: 500}, Language: "Hindi",
	}
	req, err := in.Request(English)
	require.NoError(t, err)
	assert.Equal(t, Hindi, req.Language)
	assert.Equal(t, "2026-12-01", req.DateString())

	in.Language = ""
	req, err = in.Request(French)
	require.NoError(t, err)
	assert.Equal(t, French, req.Language)

	in.TravelDate = "01/12/2026"
	in.Language = "Klingon"
	_, err = in.Request(English)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Problems, 2)
}
