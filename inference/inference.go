// Package inference wraps the pretrained diagnosis models behind one
// Predict call. Two real backends exist: a local ONNX binary classifier and
// a remote object-detection service; a deterministic stub covers CI.
package inference

import (
	"context"
	"errors"
	"fmt"
	"image"

	"diagnosis-assistant-service/models"
)

// ErrInference is returned when a backend cannot produce a prediction for
// the given input.
var ErrInference = errors.New("inference failed")

// Engine is the diagnosis inference adapter. Implementations must be safe
// for use from concurrent sessions; loaded model weights are process-wide
// singletons reused for every request.
type Engine interface {
	// Predict runs one inference pass over a decoded upright image.
	Predict(ctx context.Context, img image.Image) (models.DiagnosisResult, error)
	// SourceName returns a short backend label persisted with each record.
	SourceName() string
}

// reduceClassifier maps the classifier's two-channel softmax output to a
// diagnosis. The channel treated as positive is an explicit configuration
// value; the historical drafts disagreed on it, so it is never inferred.
func reduceClassifier(probs []float32, positiveChannel int, positiveLabel string) (models.DiagnosisResult, error) {
	if len(probs) < 2 {
		return models.DiagnosisResult{}, fmt.Errorf("%w: expected 2 output channels, got %d", ErrInference, len(probs))
	}
	if positiveChannel < 0 || positiveChannel >= len(probs) {
		return models.DiagnosisResult{}, fmt.Errorf("%w: positive channel %d out of range", ErrInference, positiveChannel)
	}

	p := float64(probs[positiveChannel])
	if p >= 0.5 {
		return models.DiagnosisResult{
			Confidence: models.RoundConfidence(p * 100),
			Label:      positiveLabel,
		}, nil
	}
	return models.DiagnosisResult{
		Confidence: models.RoundConfidence((1 - p) * 100),
		Label:      models.LabelNormal,
	}, nil
}

// Detection is one bounding box returned by the detector service.
type Detection struct {
	ClassID    int        `json:"class_id"`
	ClassName  string     `json:"class_name"`
	Confidence float64    `json:"confidence"`
	Box        [4]float64 `json:"box"`
}

// reduceDetections collapses a box list to a single dominant label and
// confidence: the best box of the tumor class wins; otherwise the best box
// of any class is reported under the "normal" label; no boxes at all is a
// clean normal result at zero confidence.
func reduceDetections(dets []Detection, tumorClassID int, tumorLabel string) models.DiagnosisResult {
	if len(dets) == 0 {
		return models.DiagnosisResult{Confidence: 0.0, Label: models.LabelNormal}
	}

	bestTumor := -1.0
	bestAny := -1.0
	for _, d := range dets {
		if d.Confidence > bestAny {
			bestAny = d.Confidence
		}
		if d.ClassID == tumorClassID && d.Confidence > bestTumor {
			bestTumor = d.Confidence
		}
	}

	if bestTumor >= 0 {
		return models.DiagnosisResult{
			Confidence: models.RoundConfidence(bestTumor * 100),
			Label:      tumorLabel,
		}
	}
	return models.DiagnosisResult{
		Confidence: models.RoundConfidence(bestAny * 100),
		Label:      models.LabelNormal,
	}
}

func contextError(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrInference, err)
	}
	return nil
}
