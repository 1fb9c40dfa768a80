package models

// Confidence levels the model is allowed to report.
const (
	ConfidenceHigh   = "High"
	ConfidenceMedium = "Medium"
	ConfidenceLow    = "Low"
	ConfidenceNoData = "No data"
)

// NoData is the placeholder stored for guess fields the model could not determine.
const NoData = "No data"

// UnknownRadiusKm is the sentinel stored when no accuracy radius was reported.
const UnknownRadiusKm = -1

// LocationGuess is the structured location estimate produced by the model for
// one image. It is treated as an immutable value: a revision replaces the
// whole guess, fields are never patched individually.
type LocationGuess struct {
	Country          string  `json:"country" bson:"country"`
	CountryCode      string  `json:"countryCode" bson:"countryCode"` // ISO 3166-1 alpha-2, or "N/A"
	State            string  `json:"state" bson:"state"`
	City             string  `json:"city" bson:"city"`
	Direction        string  `json:"direction" bson:"direction"` // coarse compass region within the country
	NearestCity      string  `json:"nearestCity" bson:"nearestCity"`
	Reasoning        string  `json:"reasoning" bson:"reasoning"`
	Confidence       string  `json:"confidence" bson:"confidence"`
	AccuracyRadiusKm float64 `json:"accuracyRadiusKm" bson:"accuracyRadiusKm"`
}
