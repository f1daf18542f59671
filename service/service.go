package service

import (
	"context"
	"fmt"
	"time"

	"github.com/apex/log"

	"diagnosis-assistant-service/config"
	"diagnosis-assistant-service/database"
	"diagnosis-assistant-service/inference"
	"diagnosis-assistant-service/llm"
	"diagnosis-assistant-service/metrics"
	"diagnosis-assistant-service/models"
	"diagnosis-assistant-service/preprocess"
	"diagnosis-assistant-service/prompt"
	"diagnosis-assistant-service/session"
)

// DiagnosisOutcome is what one completed pipeline run produces: the model
// verdict, the drafted note and, when the archive is enabled, the assigned
// record sequence number.
type DiagnosisOutcome struct {
	Result models.DiagnosisResult `json:"result"`
	Note   string                 `json:"note"`
	Seq    int                    `json:"seq,omitempty"`
}

// Service wires the pipeline stages together: decode, infer, compose,
// generate, persist. The database is optional; everything else is required.
type Service struct {
	config    *config.Config
	db        *database.Database
	engine    inference.Engine
	llmClient llm.Client
}

// NewService creates the diagnosis service.
func NewService(cfg *config.Config, db *database.Database, engine inference.Engine, llmClient llm.Client) *Service {
	return &Service{
		config:    cfg,
		db:        db,
		engine:    engine,
		llmClient: llmClient,
	}
}

// AnalyzeUpload runs the full pipeline for one uploaded image. On any error
// the session keeps its previous diagnosis and note; only a fully successful
// run replaces them.
func (s *Service) AnalyzeUpload(ctx context.Context, sess *session.Session, filename string, data []byte) (*DiagnosisOutcome, error) {
	if !preprocess.AcceptedFilename(filename) {
		return nil, fmt.Errorf("%w: %q", preprocess.ErrUnsupportedFormat, filename)
	}

	img, err := preprocess.Decode(data)
	if err != nil {
		return nil, err
	}

	inferStart := time.Now()
	inferCtx, cancel := context.WithTimeout(ctx, s.config.InferenceTimeout)
	result, err := s.engine.Predict(inferCtx, img)
	cancel()
	if err != nil {
		return nil, err
	}
	metrics.InferenceDurationSeconds.WithLabelValues(result.Source).Observe(time.Since(inferStart).Seconds())

	log.WithFields(log.Fields{
		"session": sess.ID,
		"source":  result.Source,
		"label":   result.Label,
	}).Infof("inference complete: %.2f%%", result.Confidence)

	composed := prompt.Compose(sess.Form(), result)
	note, err := s.generateNoteWithRetry(ctx, composed)
	if err != nil {
		return nil, err
	}

	outcome := &DiagnosisOutcome{Result: result, Note: note}

	if s.db != nil {
		seq, err := s.db.SaveDiagnosisRecord(&models.DiagnosisRecord{
			SessionID:      sess.ID,
			Source:         result.Source,
			Label:          result.Label,
			Confidence:     result.Confidence,
			Note:           note,
			AnnotatedImage: result.AnnotatedImage,
		})
		if err != nil {
			// The user already has their result; archival failure is logged
			// and does not fail the request.
			log.WithError(err).WithField("session", sess.ID).Error("failed to archive diagnosis record")
		} else {
			outcome.Seq = seq
		}
	}

	sess.SetDiagnosis(result, note)
	metrics.DiagnosesTotal.WithLabelValues(result.Label).Inc()

	return outcome, nil
}

// generateNoteWithRetry calls the language model up to MaxRetries+1 times
// with a short linear backoff. Transient provider errors are common enough
// that a single failure should not cost the user a finished inference run.
func (s *Service) generateNoteWithRetry(ctx context.Context, composed string) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= s.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", fmt.Errorf("%w: %v", llm.ErrGeneration, ctx.Err())
			case <-time.After(time.Duration(attempt) * time.Second):
			}
		}

		start := time.Now()
		note, err := s.llmClient.GenerateNote(composed)
		metrics.LLMDurationSeconds.WithLabelValues("note").Observe(time.Since(start).Seconds())
		if err == nil {
			metrics.LLMRequestsTotal.WithLabelValues("note", "ok").Inc()
			return note, nil
		}
		metrics.LLMRequestsTotal.WithLabelValues("note", "error").Inc()
		lastErr = err
		log.WithError(err).Warnf("note generation attempt %d/%d failed", attempt+1, s.config.MaxRetries+1)
	}
	return "", lastErr
}

// ChatTurn sends one user message with the session history. The log is
// touched only on success: a successful turn appends exactly the user
// message and the reply, a failed turn appends nothing.
func (s *Service) ChatTurn(sess *session.Session, userMessage string) (string, error) {
	history := sess.Messages()

	start := time.Now()
	reply, err := s.llmClient.Chat(history, userMessage)
	metrics.LLMDurationSeconds.WithLabelValues("chat").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.LLMRequestsTotal.WithLabelValues("chat", "error").Inc()
		metrics.ChatTurnsTotal.WithLabelValues("error").Inc()
		return "", err
	}
	metrics.LLMRequestsTotal.WithLabelValues("chat", "ok").Inc()
	metrics.ChatTurnsTotal.WithLabelValues("ok").Inc()

	sess.AppendTurn(userMessage, reply)
	return reply, nil
}

// Stats reads the archive aggregates. Returns an error when persistence is
// disabled.
func (s *Service) Stats() (*database.Stats, error) {
	if s.db == nil {
		return nil, fmt.Errorf("record archive is not configured")
	}
	return s.db.GetStats()
}

// RecordBySeq fetches one archived record. Returns an error when
// persistence is disabled.
func (s *Service) RecordBySeq(seq int) (*models.DiagnosisRecord, error) {
	if s.db == nil {
		return nil, fmt.Errorf("record archive is not configured")
	}
	return s.db.GetRecordBySeq(seq)
}

// SessionRecords lists the archived records for a session. Returns an error
// when persistence is disabled.
func (s *Service) SessionRecords(sessionID string) ([]models.DiagnosisRecord, error) {
	if s.db == nil {
		return nil, fmt.Errorf("record archive is not configured")
	}
	return s.db.GetSessionRecords(sessionID)
}
