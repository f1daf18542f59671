package inference

import (
	"context"
	"image"
	"image/color"
	"testing"

	"diagnosis-assistant-service/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReduceClassifier(t *testing.T) {
	cases := []struct {
		name            string
		probs           []float32
		positiveChannel int
		wantLabel       string
		wantConfidence  float64
	}{
		{"confident positive", []float32{0.1277, 0.8723}, 1, models.LabelThyroidCancer, 87.23},
		{"confident normal", []float32{0.93, 0.07}, 1, models.LabelNormal, 93.0},
		{"decision boundary is positive", []float32{0.5, 0.5}, 1, models.LabelThyroidCancer, 50.0},
		{"channel zero configured positive", []float32{0.8, 0.2}, 0, models.LabelThyroidCancer, 80.0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := reduceClassifier(tc.probs, tc.positiveChannel, models.LabelThyroidCancer)
			require.NoError(t, err)
			assert.Equal(t, tc.wantLabel, got.Label)
			assert.InDelta(t, tc.wantConfidence, got.Confidence, 0.001)
		})
	}
}

func TestReduceClassifierRejectsBadOutput(t *testing.T) {
	_, err := reduceClassifier([]float32{0.9}, 1, models.LabelThyroidCancer)
	assert.ErrorIs(t, err, ErrInference)

	_, err = reduceClassifier([]float32{0.4, 0.6}, 5, models.LabelThyroidCancer)
	assert.ErrorIs(t, err, ErrInference)
}

func TestReduceDetectionsZeroBoxes(t *testing.T) {
	got := reduceDetections(nil, 1, models.LabelBrainTumor)
	assert.Equal(t, models.LabelNormal, got.Label)
	assert.Equal(t, 0.0, got.Confidence)
}

func TestReduceDetectionsPrefersTumorClass(t *testing.T) {
	dets := []Detection{
		{ClassID: 0, ClassName: "benign", Confidence: 0.97},
		{ClassID: 1, ClassName: "tumor", Confidence: 0.62},
		{ClassID: 1, ClassName: "tumor", Confidence: 0.81},
	}
	got := reduceDetections(dets, 1, models.LabelBrainTumor)
	assert.Equal(t, models.LabelBrainTumor, got.Label)
	assert.InDelta(t, 81.0, got.Confidence, 0.001)
}

func TestReduceDetectionsFallsBackToBestOfAnyClass(t *testing.T) {
	dets := []Detection{
		{ClassID: 0, ClassName: "benign", Confidence: 0.44},
		{ClassID: 2, ClassName: "cyst", Confidence: 0.71},
	}
	got := reduceDetections(dets, 1, models.LabelBrainTumor)
	assert.Equal(t, models.LabelNormal, got.Label)
	assert.InDelta(t, 71.0, got.Confidence, 0.001)
}

func TestRoundConfidenceBounds(t *testing.T) {
	assert.Equal(t, 0.0, models.RoundConfidence(-3))
	assert.Equal(t, 100.0, models.RoundConfidence(104.2))
	assert.Equal(t, 87.23, models.RoundConfidence(87.2299999))
}

func testImage() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 32, 32))
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			img.Set(x, y, color.RGBA{uint8(x * 8), uint8(y * 8), 0, 255})
		}
	}
	return img
}

func TestStubEngineIsDeterministic(t *testing.T) {
	engine := NewStubEngine(models.LabelThyroidCancer)
	img := testImage()

	first, err := engine.Predict(context.Background(), img)
	require.NoError(t, err)
	second, err := engine.Predict(context.Background(), img)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.GreaterOrEqual(t, first.Confidence, 0.0)
	assert.LessOrEqual(t, first.Confidence, 100.0)
	assert.NotEmpty(t, first.Label)
}

func TestStubEngineHonorsCancelledContext(t *testing.T) {
	engine := NewStubEngine(models.LabelThyroidCancer)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := engine.Predict(ctx, testImage())
	assert.ErrorIs(t, err, ErrInference)
}

func TestAnnotateDetectionsProducesJPEG(t *testing.T) {
	dets := []Detection{{ClassID: 1, ClassName: "tumor", Confidence: 0.9, Box: [4]float64{4, 4, 20, 20}}}

	out, err := annotateDetections(testImage(), dets)
	require.NoError(t, err)
	require.Greater(t, len(out), 2)
	assert.Equal(t, byte(0xFF), out[0])
	assert.Equal(t, byte(0xD8), out[1])
}
