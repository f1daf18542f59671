package prompt

import (
	"fmt"
	"strings"

	"diagnosis-assistant-service/intake"
	"diagnosis-assistant-service/models"
)

// NoInformation is the placeholder rendered for empty or default fields.
const NoInformation = "no information"

// NoteCharBudget is the note length budget passed to the language model.
// It is an instruction to the model, not enforced programmatically.
const NoteCharBudget = 800

// Compose renders the intake form and diagnosis result into the note-drafting
// prompt. It is a pure function: identical inputs produce byte-identical
// output, so it is safe to unit test against fixed fixtures.
func Compose(form models.IntakeForm, diagnosis models.DiagnosisResult) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are a senior specialist physician at a top hospital.\n")
	fmt.Fprintf(&b, "Using the patient's intake information and the imaging AI diagnosis below, draft an initial clinical note within %d characters.\n\n", NoteCharBudget)

	fmt.Fprintf(&b, "Patient information:\n")
	fmt.Fprintf(&b, "- Gender: %s\n", form.Gender)
	fmt.Fprintf(&b, "- Age: %d years\n", form.Age)
	fmt.Fprintf(&b, "- Height: %.1f cm\n", form.HeightCm)
	fmt.Fprintf(&b, "- Weight: %.1f kg\n", form.WeightKg)
	fmt.Fprintf(&b, "- BMI: %.1f\n\n", intake.BMI(form.HeightCm, form.WeightKg))

	presentIllness := "Visited for evaluation of a suspected lesion on medical imaging"
	if len(form.ConditionsSelf) > 0 {
		presentIllness += fmt.Sprintf(". The patient has a history of %s", strings.Join(form.ConditionsSelf, ", "))
	}
	fmt.Fprintf(&b, "Present illness: %s\n\n", presentIllness)

	fmt.Fprintf(&b, "Past medical history: %s\n\n", listOrPlaceholder(form.ConditionsSelf))
	fmt.Fprintf(&b, "Family history: %s\n\n", listOrPlaceholder(form.ConditionsFamily))

	fmt.Fprintf(&b, "Social history:\n")
	fmt.Fprintf(&b, "- Smoking: %s\n", smokingLine(form.Smoking))
	fmt.Fprintf(&b, "- Drinking: %s\n", drinkingLine(form.Drinking))
	fmt.Fprintf(&b, "- Exercise: %s\n\n", exerciseLine(form.Exercise))

	fmt.Fprintf(&b, "Imaging AI diagnosis:\n")
	fmt.Fprintf(&b, "- Diagnosis: %s\n", diagnosis.Label)
	fmt.Fprintf(&b, "- Confidence: %.2f%%\n\n", diagnosis.Confidence)

	fmt.Fprintf(&b, "Draft the initial clinical note from this information. It must cover:\n")
	fmt.Fprintf(&b, "1. Chief complaint\n")
	fmt.Fprintf(&b, "2. Present illness\n")
	fmt.Fprintf(&b, "3. Social history\n")
	fmt.Fprintf(&b, "4. Past medical history\n")
	fmt.Fprintf(&b, "5. Family history\n")
	fmt.Fprintf(&b, "6. Patient information\n")
	fmt.Fprintf(&b, "7. Imaging findings\n")
	fmt.Fprintf(&b, "8. Differential diagnosis\n")
	fmt.Fprintf(&b, "9. Plan\n\n")
	fmt.Fprintf(&b, "Use appropriate medical terminology and keep the style concise and professional.\n")

	return b.String()
}

func listOrPlaceholder(items []string) string {
	if len(items) == 0 {
		return NoInformation
	}
	return strings.Join(items, ", ")
}

func smokingLine(h models.SmokingHabit) string {
	if h.Status != models.HabitYes || h.Details == nil {
		return models.HabitNone
	}
	recency := "currently smoking"
	if h.Details.Recency == models.SmokingQuit {
		recency = "has since quit"
	}
	return fmt.Sprintf("yes (%d years, %d cigarettes per day, %s)", h.Details.Years, h.Details.DailyCount, recency)
}

func drinkingLine(h models.DrinkingHabit) string {
	if h.Status != models.HabitYes || h.Details == nil {
		return models.HabitNone
	}
	return fmt.Sprintf("yes (%d times per month, %d glasses of %s per session)",
		h.Details.MonthlyFrequency, h.Details.UnitsPerSession, h.Details.Beverage)
}

func exerciseLine(h models.ExerciseHabit) string {
	if h.Status != models.HabitYes || h.Details == nil {
		return models.HabitNone
	}
	return fmt.Sprintf("yes (%d times per week, %d minutes per session)",
		h.Details.WeeklyFrequency, h.Details.MinutesPerSession)
}
