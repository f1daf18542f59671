package inference

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"image/jpeg"
	"net/http"
	"time"

	"github.com/apex/log"

	"diagnosis-assistant-service/models"
	"diagnosis-assistant-service/preprocess"
)

// DetectorEngine talks to the object-detection service over HTTP. The
// service receives the preprocessed frame as base64 JSON and returns a list
// of scored bounding boxes which is reduced to one diagnosis.
type DetectorEngine struct {
	baseURL      string
	tumorClassID int
	tumorLabel   string
	httpClient   *http.Client
}

// detectRequest is the payload sent to the detector service.
type detectRequest struct {
	Image string `json:"image"`
}

// detectResponse is the detector service reply.
type detectResponse struct {
	Status     string      `json:"status"`
	Detections []Detection `json:"detections"`
}

// NewDetectorEngine creates a detector client with a bounded call timeout.
func NewDetectorEngine(baseURL string, tumorClassID int, tumorLabel string, timeout time.Duration) *DetectorEngine {
	return &DetectorEngine{
		baseURL:      baseURL,
		tumorClassID: tumorClassID,
		tumorLabel:   tumorLabel,
		httpClient:   &http.Client{Timeout: timeout},
	}
}

// SourceName identifies this backend in saved records.
func (e *DetectorEngine) SourceName() string {
	return "Detector"
}

// Predict preprocesses the image, calls the detection service and reduces
// the returned boxes to a single label/confidence pair plus an annotated
// visualization when anything was found.
func (e *DetectorEngine) Predict(ctx context.Context, img image.Image) (models.DiagnosisResult, error) {
	prepared := preprocess.ForDetector(img)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, prepared, nil); err != nil {
		return models.DiagnosisResult{}, fmt.Errorf("%w: %v", ErrInference, err)
	}

	body, err := json.Marshal(detectRequest{Image: base64.StdEncoding.EncodeToString(buf.Bytes())})
	if err != nil {
		return models.DiagnosisResult{}, fmt.Errorf("%w: %v", ErrInference, err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", e.baseURL+"/detect", bytes.NewBuffer(body))
	if err != nil {
		return models.DiagnosisResult{}, fmt.Errorf("%w: %v", ErrInference, err)
	}
	req.Header.Set("Content-Type", "application/json")

	log.Infof("Sending image to detector service: %s, payload size: %d bytes", e.baseURL, buf.Len())

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return models.DiagnosisResult{}, fmt.Errorf("%w: detector request failed: %v", ErrInference, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return models.DiagnosisResult{}, fmt.Errorf("%w: detector service returned status %d", ErrInference, resp.StatusCode)
	}

	var dr detectResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return models.DiagnosisResult{}, fmt.Errorf("%w: failed to decode detector response: %v", ErrInference, err)
	}
	if dr.Status != "completed" {
		return models.DiagnosisResult{}, fmt.Errorf("%w: detector service returned status %q", ErrInference, dr.Status)
	}

	result := reduceDetections(dr.Detections, e.tumorClassID, e.tumorLabel)
	result.Source = e.SourceName()
	if len(dr.Detections) > 0 {
		annotated, err := annotateDetections(prepared, dr.Detections)
		if err != nil {
			// Visualization is best-effort; the diagnosis still stands.
			log.Warnf("Failed to render detection overlay: %v", err)
		} else {
			result.AnnotatedImage = annotated
		}
	}

	log.WithFields(log.Fields{
		"detections": len(dr.Detections),
		"label":      result.Label,
		"confidence": result.Confidence,
	}).Info("detector prediction complete")

	return result, nil
}
