package intake

import (
	"fmt"
	"math"

	"diagnosis-assistant-service/models"
)

// Condition vocabulary for the patient's own history. The family vocabulary
// is the same minus pulmonary disease.
var SelfConditions = []string{
	"stroke",
	"myocardial infarction",
	"hypertension",
	"diabetes",
	"pulmonary disease",
	"other (incl. cancer)",
}

// FamilyConditions is the vocabulary for parent/sibling history.
var FamilyConditions = []string{
	"stroke",
	"myocardial infarction",
	"hypertension",
	"diabetes",
	"other (incl. cancer)",
}

// Beverages accepted for the drinking habit.
var Beverages = []string{"soju", "beer", "spirits", "makgeolli", "wine"}

// Declared bounds for the numeric intake fields. Out-of-range input is
// clamped rather than rejected, matching the widget behavior the form
// replaces.
const (
	MaxAge             = 150
	MaxHeightCm        = 300.0
	MaxWeightKg        = 500.0
	MaxSmokingYears    = 150
	MaxDailyCigarettes = 100
	MaxMonthlyDrinks   = 100
	MaxUnitsPerSession = 100
	MaxWeeklyExercise  = 20
	MaxExerciseMinutes = 1000
)

// DefaultSmokingDetails returns the sub-record used when the smoking habit
// is first enabled.
func DefaultSmokingDetails() *models.SmokingDetails {
	return &models.SmokingDetails{Recency: models.SmokingCurrent, Years: 3, DailyCount: 10}
}

// DefaultDrinkingDetails returns the sub-record used when the drinking habit
// is first enabled.
func DefaultDrinkingDetails() *models.DrinkingDetails {
	return &models.DrinkingDetails{MonthlyFrequency: 3, Beverage: "soju", UnitsPerSession: 3}
}

// DefaultExerciseDetails returns the sub-record used when the exercise habit
// is first enabled.
func DefaultExerciseDetails() *models.ExerciseDetails {
	return &models.ExerciseDetails{WeeklyFrequency: 3, MinutesPerSession: 30}
}

// DefaultForm returns the questionnaire state a new session starts with.
func DefaultForm() models.IntakeForm {
	return models.IntakeForm{
		Gender:           models.GenderMale,
		Age:              30,
		HeightCm:         170.0,
		WeightKg:         70.0,
		ConditionsSelf:   []string{},
		ConditionsFamily: []string{},
		Smoking:          models.SmokingHabit{Status: models.HabitNone},
		Drinking:         models.DrinkingHabit{Status: models.HabitNone},
		Exercise:         models.ExerciseHabit{Status: models.HabitNone},
	}
}

// RememberedDetails holds the last-entered habit sub-records so that
// toggling a habit off and back on restores what the user typed instead of
// losing it.
type RememberedDetails struct {
	Smoking  *models.SmokingDetails
	Drinking *models.DrinkingDetails
	Exercise *models.ExerciseDetails
}

// Normalize enforces the status/details pairing on a full-form rewrite and
// clamps numeric fields to their declared bounds. For each habit:
//   - status "yes" with nil details gets the remembered sub-record, or the
//     default one if nothing was ever entered;
//   - status "none" drops the details, remembering them first so a later
//     re-enable restores them.
//
// The remembered store is updated in place.
func Normalize(form models.IntakeForm, remembered *RememberedDetails) models.IntakeForm {
	form.Age = clampInt(form.Age, 0, MaxAge)
	form.HeightCm = clampFloat(form.HeightCm, 0, MaxHeightCm)
	form.WeightKg = clampFloat(form.WeightKg, 0, MaxWeightKg)
	if form.ConditionsSelf == nil {
		form.ConditionsSelf = []string{}
	}
	if form.ConditionsFamily == nil {
		form.ConditionsFamily = []string{}
	}

	// Sub-records are copied on every hand-off so a returned form is an
	// immutable snapshot: a later rewrite never mutates details an earlier
	// caller still holds.
	if form.Smoking.Status == models.HabitYes {
		var d models.SmokingDetails
		switch {
		case form.Smoking.Details != nil:
			d = *form.Smoking.Details
		case remembered.Smoking != nil:
			d = *remembered.Smoking
		default:
			d = *DefaultSmokingDetails()
		}
		d.Years = clampInt(d.Years, 0, MaxSmokingYears)
		d.DailyCount = clampInt(d.DailyCount, 0, MaxDailyCigarettes)
		if d.Recency != models.SmokingQuit {
			d.Recency = models.SmokingCurrent
		}
		form.Smoking.Details = &d
		cp := d
		remembered.Smoking = &cp
	} else {
		form.Smoking.Status = models.HabitNone
		if form.Smoking.Details != nil {
			cp := *form.Smoking.Details
			remembered.Smoking = &cp
			form.Smoking.Details = nil
		}
	}

	if form.Drinking.Status == models.HabitYes {
		var d models.DrinkingDetails
		switch {
		case form.Drinking.Details != nil:
			d = *form.Drinking.Details
		case remembered.Drinking != nil:
			d = *remembered.Drinking
		default:
			d = *DefaultDrinkingDetails()
		}
		d.MonthlyFrequency = clampInt(d.MonthlyFrequency, 0, MaxMonthlyDrinks)
		d.UnitsPerSession = clampInt(d.UnitsPerSession, 0, MaxUnitsPerSession)
		if !contains(Beverages, d.Beverage) {
			d.Beverage = "soju"
		}
		form.Drinking.Details = &d
		cp := d
		remembered.Drinking = &cp
	} else {
		form.Drinking.Status = models.HabitNone
		if form.Drinking.Details != nil {
			cp := *form.Drinking.Details
			remembered.Drinking = &cp
			form.Drinking.Details = nil
		}
	}

	if form.Exercise.Status == models.HabitYes {
		var d models.ExerciseDetails
		switch {
		case form.Exercise.Details != nil:
			d = *form.Exercise.Details
		case remembered.Exercise != nil:
			d = *remembered.Exercise
		default:
			d = *DefaultExerciseDetails()
		}
		d.WeeklyFrequency = clampInt(d.WeeklyFrequency, 0, MaxWeeklyExercise)
		d.MinutesPerSession = clampInt(d.MinutesPerSession, 0, MaxExerciseMinutes)
		form.Exercise.Details = &d
		cp := d
		remembered.Exercise = &cp
	} else {
		form.Exercise.Status = models.HabitNone
		if form.Exercise.Details != nil {
			cp := *form.Exercise.Details
			remembered.Exercise = &cp
			form.Exercise.Details = nil
		}
	}

	return form
}

// Validate checks enum membership for the non-numeric fields. Numeric
// bounds are handled by Normalize.
func Validate(form models.IntakeForm) error {
	if form.Gender != models.GenderMale && form.Gender != models.GenderFemale {
		return fmt.Errorf("unknown gender %q", form.Gender)
	}
	for _, c := range form.ConditionsSelf {
		if !contains(SelfConditions, c) {
			return fmt.Errorf("unknown condition %q", c)
		}
	}
	for _, c := range form.ConditionsFamily {
		if !contains(FamilyConditions, c) {
			return fmt.Errorf("unknown family condition %q", c)
		}
	}
	return nil
}

// CheckInvariant reports whether the status/details pairing holds for every
// habit on the form.
func CheckInvariant(form models.IntakeForm) bool {
	if (form.Smoking.Status == models.HabitYes) != (form.Smoking.Details != nil) {
		return false
	}
	if (form.Drinking.Status == models.HabitYes) != (form.Drinking.Details != nil) {
		return false
	}
	if (form.Exercise.Status == models.HabitYes) != (form.Exercise.Details != nil) {
		return false
	}
	return true
}

// BMI computes weight_kg / (height_cm/100)^2 rounded to one decimal.
// A zero height yields zero rather than a division error.
func BMI(heightCm, weightKg float64) float64 {
	if heightCm <= 0 {
		return 0
	}
	b := weightKg / math.Pow(heightCm/100, 2)
	return math.Round(b*10) / 10
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
