package services

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"geoguesser-backend/internal/models"
)

// fenceRe matches a markdown code fence with an optional language tag,
// optionally surrounded by blank lines. Group 2 is the body.
var fenceRe = regexp.MustCompile("(?s)^```(\\w*)?\\s*\n?(.*?)\n?\\s*```$")

// StripFence removes a surrounding markdown code fence, if present, and trims
// the result. Text without a fence passes through unchanged apart from the trim.
func StripFence(raw string) string {
	s := strings.TrimSpace(raw)
	if m := fenceRe.FindStringSubmatch(s); m != nil && m[2] != "" {
		return strings.TrimSpace(m[2])
	}
	return s
}

// guessWire mirrors LocationGuess with pointer fields so missing keys are
// distinguishable from zero values.
type guessWire struct {
	Country          *string  `json:"country"`
	CountryCode      *string  `json:"countryCode"`
	State            *string  `json:"state"`
	City             *string  `json:"city"`
	Direction        *string  `json:"direction"`
	NearestCity      *string  `json:"nearestCity"`
	Reasoning        *string  `json:"reasoning"`
	Confidence       *string  `json:"confidence"`
	AccuracyRadiusKm *float64 `json:"accuracyRadiusKm"`
}

// ParseGuessReply interprets a model reply following the protocol convention:
// fence-strip, then brace-check, then JSON-parse, then field-validate. The
// detection order must not change; compatibility with the model's prompt
// depends on it. A nil guess with a nil error means the reply is chat text.
func ParseGuessReply(raw string) (*models.LocationGuess, error) {
	s := StripFence(raw)
	if !strings.HasPrefix(s, "{") || !strings.HasSuffix(s, "}") {
		return nil, nil
	}

	var w guessWire
	if err := json.Unmarshal([]byte(s), &w); err != nil {
		return nil, &MalformedGuessError{Raw: raw, Err: err}
	}

	if err := validateWire(w); err != nil {
		return nil, &MalformedGuessError{Raw: raw, Err: err}
	}

	return &models.LocationGuess{
		Country:          *w.Country,
		CountryCode:      *w.CountryCode,
		State:            *w.State,
		City:             *w.City,
		Direction:        *w.Direction,
		NearestCity:      *w.NearestCity,
		Reasoning:        *w.Reasoning,
		Confidence:       *w.Confidence,
		AccuracyRadiusKm: *w.AccuracyRadiusKm,
	}, nil
}

func validateWire(w guessWire) error {
	fields := map[string]*string{
		"country":     w.Country,
		"countryCode": w.CountryCode,
		"state":       w.State,
		"city":        w.City,
		"direction":   w.Direction,
		"nearestCity": w.NearestCity,
		"reasoning":   w.Reasoning,
		"confidence":  w.Confidence,
	}
	for name, v := range fields {
		if v == nil {
			return fmt.Errorf("missing field %q", name)
		}
	}
	if w.AccuracyRadiusKm == nil {
		return fmt.Errorf("missing field %q", "accuracyRadiusKm")
	}

	switch *w.Confidence {
	case models.ConfidenceHigh, models.ConfidenceMedium, models.ConfidenceLow:
	default:
		return fmt.Errorf("confidence %q is not one of High, Medium, Low", *w.Confidence)
	}
	return nil
}
