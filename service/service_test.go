package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"diagnosis-assistant-service/config"
	"diagnosis-assistant-service/inference"
	"diagnosis-assistant-service/llm"
	"diagnosis-assistant-service/models"
	"diagnosis-assistant-service/preprocess"
	"diagnosis-assistant-service/session"
	"diagnosis-assistant-service/stubllm"
)

func testJPEG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, color.Gray{Y: uint8(x * 4)})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

func newTestService(llmClient llm.Client) (*Service, *session.Manager) {
	cfg := config.Load()
	cfg.MaxRetries = 0
	engine := inference.NewStubEngine(models.LabelThyroidCancer)
	return NewService(cfg, nil, engine, llmClient), session.NewManager(time.Hour)
}

func TestAnalyzeUploadHappyPath(t *testing.T) {
	svc, mgr := newTestService(stubllm.NewClient())
	sess := mgr.Create()

	outcome, err := svc.AnalyzeUpload(context.Background(), sess, "scan.jpg", testJPEG(t))

	require.NoError(t, err)
	assert.NotEmpty(t, outcome.Note)
	assert.GreaterOrEqual(t, outcome.Result.Confidence, 0.0)
	assert.LessOrEqual(t, outcome.Result.Confidence, 100.0)
	assert.Zero(t, outcome.Seq)

	diag, note := sess.Diagnosis()
	require.NotNil(t, diag)
	assert.Equal(t, outcome.Result, *diag)
	assert.Equal(t, outcome.Note, note)
}

func TestAnalyzeUploadRejectsUnsupportedExtension(t *testing.T) {
	svc, mgr := newTestService(stubllm.NewClient())
	sess := mgr.Create()

	_, err := svc.AnalyzeUpload(context.Background(), sess, "scan.png", testJPEG(t))

	assert.ErrorIs(t, err, preprocess.ErrUnsupportedFormat)
	diag, _ := sess.Diagnosis()
	assert.Nil(t, diag)
}

func TestAnalyzeUploadRejectsCorruptImage(t *testing.T) {
	svc, mgr := newTestService(stubllm.NewClient())
	sess := mgr.Create()

	data := testJPEG(t)[:40]
	_, err := svc.AnalyzeUpload(context.Background(), sess, "scan.jpg", data)

	assert.Error(t, err)
	diag, _ := sess.Diagnosis()
	assert.Nil(t, diag)
}

func TestAnalyzeUploadKeepsSessionStateWhenGenerationFails(t *testing.T) {
	failing := stubllm.NewClient()
	svc, mgr := newTestService(failing)
	sess := mgr.Create()

	// Seed a prior successful run.
	_, err := svc.AnalyzeUpload(context.Background(), sess, "scan.jpg", testJPEG(t))
	require.NoError(t, err)
	prevDiag, prevNote := sess.Diagnosis()

	failing.Err = errors.New("provider down")
	_, err = svc.AnalyzeUpload(context.Background(), sess, "scan.jpg", testJPEG(t))

	require.Error(t, err)
	diag, note := sess.Diagnosis()
	assert.Equal(t, prevDiag, diag)
	assert.Equal(t, prevNote, note)
}

type slowEngine struct{}

func (slowEngine) Predict(ctx context.Context, img image.Image) (models.DiagnosisResult, error) {
	<-ctx.Done()
	return models.DiagnosisResult{}, fmt.Errorf("%w: %v", inference.ErrInference, ctx.Err())
}

func (slowEngine) SourceName() string { return "Slow" }

func TestAnalyzeUploadBoundsInferenceTime(t *testing.T) {
	cfg := config.Load()
	cfg.MaxRetries = 0
	cfg.InferenceTimeout = 20 * time.Millisecond
	svc := NewService(cfg, nil, slowEngine{}, stubllm.NewClient())
	mgr := session.NewManager(time.Hour)
	sess := mgr.Create()

	start := time.Now()
	_, err := svc.AnalyzeUpload(context.Background(), sess, "scan.jpg", testJPEG(t))

	assert.ErrorIs(t, err, inference.ErrInference)
	assert.Less(t, time.Since(start), 2*time.Second)
	diag, _ := sess.Diagnosis()
	assert.Nil(t, diag)
}

type flakyLLM struct {
	failures int
	calls    int
}

func (f *flakyLLM) GenerateNote(prompt string) (string, error) {
	f.calls++
	if f.calls <= f.failures {
		return "", errors.New("transient")
	}
	return "recovered note", nil
}

func (f *flakyLLM) Chat(history []models.ChatMessage, userMessage string) (string, error) {
	return "", errors.New("unused")
}

func (f *flakyLLM) SourceName() string { return "Flaky" }

func TestAnalyzeUploadRetriesNoteGeneration(t *testing.T) {
	flaky := &flakyLLM{failures: 1}
	svc, mgr := newTestService(flaky)
	svc.config.MaxRetries = 2
	sess := mgr.Create()

	outcome, err := svc.AnalyzeUpload(context.Background(), sess, "scan.jpg", testJPEG(t))

	require.NoError(t, err)
	assert.Equal(t, "recovered note", outcome.Note)
	assert.Equal(t, 2, flaky.calls)
}

func TestChatTurnAppendsExactlyTwoMessages(t *testing.T) {
	svc, mgr := newTestService(stubllm.NewClient())
	sess := mgr.Create()

	reply, err := svc.ChatTurn(sess, "What does the confidence mean?")

	require.NoError(t, err)
	msgs := sess.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, models.RoleUser, msgs[0].Role)
	assert.Equal(t, "What does the confidence mean?", msgs[0].Content)
	assert.Equal(t, models.RoleAssistant, msgs[1].Role)
	assert.Equal(t, reply, msgs[1].Content)
}

func TestChatTurnFailureLeavesLogUntouched(t *testing.T) {
	failing := stubllm.NewClient()
	svc, mgr := newTestService(failing)
	sess := mgr.Create()

	_, err := svc.ChatTurn(sess, "first")
	require.NoError(t, err)

	failing.Err = errors.New("provider down")
	_, err = svc.ChatTurn(sess, "second")

	require.Error(t, err)
	msgs := sess.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "first", msgs[0].Content)
}

func TestStatsWithoutArchive(t *testing.T) {
	svc, _ := newTestService(stubllm.NewClient())

	_, err := svc.Stats()
	assert.Error(t, err)

	_, err = svc.RecordBySeq(1)
	assert.Error(t, err)
}
