package inference

import (
	"context"
	"fmt"
	"image"
	"sync"

	"github.com/apex/log"
	ort "github.com/yalue/onnxruntime_go"

	"diagnosis-assistant-service/models"
	"diagnosis-assistant-service/preprocess"
)

// ClassifierEngine runs the binary ultrasound classifier locally through
// ONNX Runtime. The session is created once at startup and reused for every
// request; there is no reload path.
type ClassifierEngine struct {
	session         *ort.DynamicAdvancedSession
	inputName       string
	outputName      string
	positiveChannel int
	positiveLabel   string

	// ONNX Runtime sessions are not documented as safe for concurrent Run
	// calls with shared output tensors, so predictions are serialized.
	mu sync.Mutex
}

// ClassifierConfig carries the classifier backend settings.
type ClassifierConfig struct {
	ModelPath       string
	LibraryPath     string
	InputName       string
	OutputName      string
	PositiveChannel int
	PositiveLabel   string
}

var ortInitOnce sync.Once

// NewClassifierEngine loads the ONNX model and prepares a reusable session.
func NewClassifierEngine(cfg ClassifierConfig) (*ClassifierEngine, error) {
	var initErr error
	ortInitOnce.Do(func() {
		if cfg.LibraryPath != "" {
			ort.SetSharedLibraryPath(cfg.LibraryPath)
		}
		initErr = ort.InitializeEnvironment()
	})
	if initErr != nil {
		return nil, fmt.Errorf("failed to initialize onnxruntime: %w", initErr)
	}

	session, err := ort.NewDynamicAdvancedSession(cfg.ModelPath,
		[]string{cfg.InputName}, []string{cfg.OutputName}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load classifier model %s: %w", cfg.ModelPath, err)
	}

	log.WithFields(log.Fields{
		"model":            cfg.ModelPath,
		"positive_channel": cfg.PositiveChannel,
	}).Info("classifier model loaded")

	return &ClassifierEngine{
		session:         session,
		inputName:       cfg.InputName,
		outputName:      cfg.OutputName,
		positiveChannel: cfg.PositiveChannel,
		positiveLabel:   cfg.PositiveLabel,
	}, nil
}

// SourceName identifies this backend in saved records.
func (e *ClassifierEngine) SourceName() string {
	return "Classifier"
}

// Predict preprocesses the image and runs the softmax classifier.
func (e *ClassifierEngine) Predict(ctx context.Context, img image.Image) (models.DiagnosisResult, error) {
	if err := contextError(ctx); err != nil {
		return models.DiagnosisResult{}, err
	}

	data := preprocess.ForClassifier(img)
	input, err := ort.NewTensor(ort.NewShape(1, preprocess.ClassifierSize, preprocess.ClassifierSize, 3), data)
	if err != nil {
		return models.DiagnosisResult{}, fmt.Errorf("%w: %v", ErrInference, err)
	}
	defer input.Destroy()

	output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 2))
	if err != nil {
		return models.DiagnosisResult{}, fmt.Errorf("%w: %v", ErrInference, err)
	}
	defer output.Destroy()

	e.mu.Lock()
	err = e.session.Run([]ort.Value{input}, []ort.Value{output})
	e.mu.Unlock()
	if err != nil {
		return models.DiagnosisResult{}, fmt.Errorf("%w: %v", ErrInference, err)
	}

	result, err := reduceClassifier(output.GetData(), e.positiveChannel, e.positiveLabel)
	if err != nil {
		return models.DiagnosisResult{}, err
	}
	result.Source = e.SourceName()
	return result, nil
}

// Close releases the ONNX session.
func (e *ClassifierEngine) Close() error {
	if e.session != nil {
		return e.session.Destroy()
	}
	return nil
}
