package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"

	"diagnosis-assistant-service/inference"
	"diagnosis-assistant-service/intake"
	"diagnosis-assistant-service/llm"
	"diagnosis-assistant-service/models"
	"diagnosis-assistant-service/preprocess"
	"diagnosis-assistant-service/service"
	"diagnosis-assistant-service/session"
)

// maxUploadBytes bounds one uploaded image.
const maxUploadBytes = 20 << 20

// DiagnosisHandler exposes the session, intake, diagnosis and chat
// endpoints.
type DiagnosisHandler struct {
	svc      *service.Service
	sessions *session.Manager
}

func NewDiagnosisHandler(svc *service.Service, sessions *session.Manager) *DiagnosisHandler {
	return &DiagnosisHandler{
		svc:      svc,
		sessions: sessions,
	}
}

// HealthCheck returns service health status
func (h *DiagnosisHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "diagnosis-assistant-service",
	})
}

// CreateSession starts a new session seeded with the default questionnaire.
func (h *DiagnosisHandler) CreateSession(c *gin.Context) {
	sess := h.sessions.Create()
	c.JSON(http.StatusCreated, gin.H{
		"session_id": sess.ID,
		"form":       sess.Form(),
	})
}

// GetSession returns the session's current state.
func (h *DiagnosisHandler) GetSession(c *gin.Context) {
	sess := h.lookup(c)
	if sess == nil {
		return
	}

	resp := gin.H{
		"session_id":     sess.ID,
		"form":           sess.Form(),
		"form_collapsed": sess.FormCollapsed(),
		"messages":       sess.Messages(),
	}
	if diag, note := sess.Diagnosis(); diag != nil {
		resp["diagnosis"] = diag
		resp["note"] = note
	}
	c.JSON(http.StatusOK, resp)
}

// EndSession discards the session and all of its state.
func (h *DiagnosisHandler) EndSession(c *gin.Context) {
	sess := h.lookup(c)
	if sess == nil {
		return
	}
	h.sessions.End(sess.ID)
	c.JSON(http.StatusOK, gin.H{"ended": sess.ID})
}

// UpdateIntake replaces the questionnaire with the submitted form. The form
// is validated as a whole and either fully applied or fully rejected.
func (h *DiagnosisHandler) UpdateIntake(c *gin.Context) {
	sess := h.lookup(c)
	if sess == nil {
		return
	}

	var form models.IntakeForm
	if err := c.BindJSON(&form); err != nil {
		log.Errorf("Failed to bind intake form: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	if err := intake.Validate(form); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	applied := sess.UpdateForm(form)
	c.JSON(http.StatusOK, gin.H{"form": applied})
}

// SetFormCollapsed stores the questionnaire fold state.
func (h *DiagnosisHandler) SetFormCollapsed(c *gin.Context) {
	sess := h.lookup(c)
	if sess == nil {
		return
	}

	var req struct {
		Collapsed bool `json:"collapsed"`
	}
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}
	sess.SetFormCollapsed(req.Collapsed)
	c.JSON(http.StatusOK, gin.H{"form_collapsed": req.Collapsed})
}

// Diagnose accepts a multipart image upload and runs the full pipeline.
func (h *DiagnosisHandler) Diagnose(c *gin.Context) {
	sess := h.lookup(c)
	if sess == nil {
		return
	}

	fileHeader, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "An image file is required in the 'image' field"})
		return
	}
	if fileHeader.Size > maxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Image is too large"})
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		log.Errorf("Failed to open upload: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Could not read the uploaded file"})
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		log.Errorf("Failed to read upload: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Could not read the uploaded file"})
		return
	}

	outcome, err := h.svc.AnalyzeUpload(c.Request.Context(), sess, fileHeader.Filename, data)
	if err != nil {
		h.writeDiagnoseError(c, err)
		return
	}

	c.JSON(http.StatusOK, outcome)
}

func (h *DiagnosisHandler) writeDiagnoseError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, preprocess.ErrUnsupportedFormat):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unsupported image type. Please upload a .jpg or .bmp file."})
	case errors.Is(err, preprocess.ErrDecode):
		c.JSON(http.StatusBadRequest, gin.H{"error": "The uploaded file could not be decoded as an image."})
	case errors.Is(err, inference.ErrInference):
		log.WithError(err).Error("inference failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": "Image analysis failed. Please try again."})
	case errors.Is(err, llm.ErrGeneration):
		log.WithError(err).Error("note generation failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": "Clinical note generation failed. Please try again."})
	default:
		log.WithError(err).Error("diagnosis pipeline failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
	}
}

// Chat sends one user message with the session history and returns the
// assistant's reply.
func (h *DiagnosisHandler) Chat(c *gin.Context) {
	sess := h.lookup(c)
	if sess == nil {
		return
	}

	var req struct {
		Message string `json:"message"`
	}
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}
	if req.Message == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Message is required"})
		return
	}

	reply, err := h.svc.ChatTurn(sess, req.Message)
	if err != nil {
		log.WithError(err).Error("chat turn failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": "The assistant is unavailable right now. Your message was not recorded."})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"reply":    reply,
		"messages": sess.Messages(),
	})
}

// GetRecord fetches one archived diagnosis record by sequence number.
func (h *DiagnosisHandler) GetRecord(c *gin.Context) {
	seq, err := strconv.Atoi(c.Param("seq"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid sequence number"})
		return
	}

	record, err := h.svc.RecordBySeq(seq)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, record)
}

// GetSessionRecords lists the archived records for one session.
func (h *DiagnosisHandler) GetSessionRecords(c *gin.Context) {
	sess := h.lookup(c)
	if sess == nil {
		return
	}

	records, err := h.svc.SessionRecords(sess.ID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": records})
}

// GetStats returns archive aggregates by label and source.
func (h *DiagnosisHandler) GetStats(c *gin.Context) {
	stats, err := h.svc.Stats()
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// lookup resolves the :id path parameter to a live session, writing a 404
// when it does not exist.
func (h *DiagnosisHandler) lookup(c *gin.Context) *session.Session {
	sess := h.sessions.Get(c.Param("id"))
	if sess == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		return nil
	}
	return sess
}
