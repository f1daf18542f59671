package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Gender values accepted on the intake form.
const (
	GenderMale   = "male"
	GenderFemale = "female"
)

// Habit status values. Details must be present exactly when the status is
// HabitYes.
const (
	HabitNone = "none"
	HabitYes  = "yes"
)

// Smoking recency values.
const (
	SmokingCurrent = "current"
	SmokingQuit    = "quit"
)

// SmokingDetails describes an active or past smoking habit.
type SmokingDetails struct {
	Recency    string `json:"recency"`
	Years      int    `json:"years"`
	DailyCount int    `json:"daily_count"`
}

// DrinkingDetails describes a drinking habit.
type DrinkingDetails struct {
	MonthlyFrequency int    `json:"monthly_frequency"`
	Beverage         string `json:"beverage"`
	UnitsPerSession  int    `json:"units_per_session"`
}

// ExerciseDetails describes an exercise habit.
type ExerciseDetails struct {
	WeeklyFrequency   int `json:"weekly_frequency"`
	MinutesPerSession int `json:"minutes_per_session"`
}

// SmokingHabit is the tagged smoking record on the intake form.
type SmokingHabit struct {
	Status  string          `json:"status"`
	Details *SmokingDetails `json:"details,omitempty"`
}

// DrinkingHabit is the tagged drinking record on the intake form.
type DrinkingHabit struct {
	Status  string           `json:"status"`
	Details *DrinkingDetails `json:"details,omitempty"`
}

// ExerciseHabit is the tagged exercise record on the intake form.
type ExerciseHabit struct {
	Status  string           `json:"status"`
	Details *ExerciseDetails `json:"details,omitempty"`
}

// IntakeForm is the patient questionnaire collected before diagnosis.
type IntakeForm struct {
	Gender           string        `json:"gender"`
	Age              int           `json:"age"`
	HeightCm         float64       `json:"height_cm"`
	WeightKg         float64       `json:"weight_kg"`
	ConditionsSelf   []string      `json:"conditions_self"`
	ConditionsFamily []string      `json:"conditions_family"`
	Smoking          SmokingHabit  `json:"smoking"`
	Drinking         DrinkingHabit `json:"drinking"`
	Exercise         ExerciseHabit `json:"exercise"`
}

// Diagnosis labels produced by the inference engines.
const (
	LabelNormal        = "normal"
	LabelThyroidCancer = "thyroid cancer"
	LabelBrainTumor    = "brain tumor"
)

// DiagnosisResult is the output of one inference pass over one uploaded
// image. Confidence is a percentage in [0, 100] rounded to two decimals.
type DiagnosisResult struct {
	Confidence     float64 `json:"confidence"`
	Label          string  `json:"label"`
	AnnotatedImage []byte  `json:"annotated_image,omitempty"`
	Source         string  `json:"source"`
}

// RoundConfidence clamps a percentage to [0, 100] and rounds it to exactly
// two decimal digits.
func RoundConfidence(v float64) float64 {
	if v < 0 {
		v = 0
	}
	if v > 100 {
		v = 100
	}
	out, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return out
}

// Chat message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is one entry in a session's append-only message log.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// DiagnosisRecord is a completed pipeline result persisted to the database.
type DiagnosisRecord struct {
	Seq            int       `json:"seq"`
	SessionID      string    `json:"session_id"`
	Source         string    `json:"source"`
	Label          string    `json:"label"`
	Confidence     float64   `json:"confidence"`
	Note           string    `json:"note"`
	AnnotatedImage []byte    `json:"annotated_image,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}
