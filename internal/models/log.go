package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Feedback dispositions for a guess episode. Feedback only moves forward:
// "not provided" → "correct" | "incorrect".
const (
	FeedbackCorrect     = "correct"
	FeedbackIncorrect   = "incorrect"
	FeedbackNotProvided = "not provided"
)

// LogEntry is the durable record of one guess episode. The remote store is
// the source of truth; each user's local mirror holds a denormalized copy.
type LogEntry struct {
	ID               primitive.ObjectID `json:"_id" bson:"_id,omitempty"`
	UserName         string             `json:"userName" bson:"userName"`
	ImageName        string             `json:"imageName" bson:"imageName"`
	ImagePath        string             `json:"imagePath" bson:"imagePath"`
	ThumbnailPath    string             `json:"thumbnailPath,omitempty" bson:"thumbnailPath,omitempty"`
	CapturedAt       *time.Time         `json:"capturedAt,omitempty" bson:"capturedAt,omitempty"`
	Guess            LocationGuess      `json:"guess" bson:"guess"`
	Feedback         string             `json:"feedback" bson:"feedback"`
	CorrectedCountry string             `json:"correctedCountry,omitempty" bson:"correctedCountry,omitempty"`
	CorrectedState   string             `json:"correctedState,omitempty" bson:"correctedState,omitempty"`
	CorrectedCity    string             `json:"correctedCity,omitempty" bson:"correctedCity,omitempty"`
	CreatedAt        time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt        time.Time          `json:"updatedAt" bson:"updatedAt"`
}

// LogUpdate is a merge-patch for an existing log entry: only the fields that
// are set change on the stored document.
type LogUpdate struct {
	Guess            *LocationGuess `json:"guess,omitempty" bson:"guess,omitempty"`
	Feedback         *string        `json:"feedback,omitempty" bson:"feedback,omitempty"`
	CorrectedCountry *string        `json:"correctedCountry,omitempty" bson:"correctedCountry,omitempty"`
	CorrectedState   *string        `json:"correctedState,omitempty" bson:"correctedState,omitempty"`
	CorrectedCity    *string        `json:"correctedCity,omitempty" bson:"correctedCity,omitempty"`
}

// IsEmpty reports whether the patch would change nothing.
func (u LogUpdate) IsEmpty() bool {
	return u.Guess == nil && u.Feedback == nil &&
		u.CorrectedCountry == nil && u.CorrectedState == nil && u.CorrectedCity == nil
}
