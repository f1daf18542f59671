package inference

import (
	"bytes"
	"context"
	"crypto/sha256"
	"image"
	"image/jpeg"

	"diagnosis-assistant-service/models"
)

// StubEngine is a deterministic, no-model engine intended for CI and local
// end-to-end runs. The diagnosis is a stable function of the image pixels so
// the downstream prompt, LLM and persistence paths are exercised
// repeatably.
type StubEngine struct {
	PositiveLabel string
}

// NewStubEngine returns a stub that reports the given label for its
// positive results.
func NewStubEngine(positiveLabel string) *StubEngine {
	return &StubEngine{PositiveLabel: positiveLabel}
}

// SourceName identifies this backend in saved records.
func (e *StubEngine) SourceName() string { return "Stub" }

// Predict derives a stable pseudo-diagnosis from a hash of the encoded
// image.
func (e *StubEngine) Predict(ctx context.Context, img image.Image) (models.DiagnosisResult, error) {
	if err := contextError(ctx); err != nil {
		return models.DiagnosisResult{}, err
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		return models.DiagnosisResult{}, err
	}
	sum := sha256.Sum256(buf.Bytes())

	raw := int(sum[0])<<8 | int(sum[1])
	confidence := models.RoundConfidence(50 + float64(raw%5000)/100.0)
	label := models.LabelNormal
	if sum[2]%2 == 1 {
		label = e.PositiveLabel
	}
	return models.DiagnosisResult{Confidence: confidence, Label: label, Source: e.SourceName()}, nil
}
