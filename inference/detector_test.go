package inference

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"diagnosis-assistant-service/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func detectorServer(t *testing.T, resp detectResponse, status int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/detect", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req detectRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.NotEmpty(t, req.Image)

		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func TestDetectorEnginePredict(t *testing.T) {
	srv := detectorServer(t, detectResponse{
		Status: "completed",
		Detections: []Detection{
			{ClassID: 1, ClassName: "tumor", Confidence: 0.774, Box: [4]float64{10, 10, 120, 140}},
			{ClassID: 0, ClassName: "benign", Confidence: 0.91, Box: [4]float64{200, 200, 260, 250}},
		},
	}, http.StatusOK)
	defer srv.Close()

	engine := NewDetectorEngine(srv.URL, 1, models.LabelBrainTumor, 5*time.Second)
	got, err := engine.Predict(context.Background(), testImage())

	require.NoError(t, err)
	assert.Equal(t, models.LabelBrainTumor, got.Label)
	assert.InDelta(t, 77.4, got.Confidence, 0.001)
	assert.Equal(t, "Detector", got.Source)
	assert.NotEmpty(t, got.AnnotatedImage, "detections should come with a visualization")
}

func TestDetectorEngineNoDetections(t *testing.T) {
	srv := detectorServer(t, detectResponse{Status: "completed"}, http.StatusOK)
	defer srv.Close()

	engine := NewDetectorEngine(srv.URL, 1, models.LabelBrainTumor, 5*time.Second)
	got, err := engine.Predict(context.Background(), testImage())

	require.NoError(t, err)
	assert.Equal(t, models.LabelNormal, got.Label)
	assert.Equal(t, 0.0, got.Confidence)
	assert.Empty(t, got.AnnotatedImage)
}

func TestDetectorEngineServiceError(t *testing.T) {
	srv := detectorServer(t, detectResponse{}, http.StatusInternalServerError)
	defer srv.Close()

	engine := NewDetectorEngine(srv.URL, 1, models.LabelBrainTumor, 5*time.Second)
	_, err := engine.Predict(context.Background(), testImage())

	assert.ErrorIs(t, err, ErrInference)
}

func TestDetectorEngineIncompleteStatus(t *testing.T) {
	srv := detectorServer(t, detectResponse{Status: "failed"}, http.StatusOK)
	defer srv.Close()

	engine := NewDetectorEngine(srv.URL, 1, models.LabelBrainTumor, 5*time.Second)
	_, err := engine.Predict(context.Background(), testImage())

	assert.ErrorIs(t, err, ErrInference)
}

func TestDetectorEngineUnreachable(t *testing.T) {
	engine := NewDetectorEngine("http://127.0.0.1:1", 1, models.LabelBrainTumor, time.Second)
	_, err := engine.Predict(context.Background(), testImage())

	assert.ErrorIs(t, err, ErrInference)
}
