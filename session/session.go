// Package session replaces the web framework's implicit per-browser state
// dictionary with an explicit session object owned by the request handlers.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"diagnosis-assistant-service/intake"
	"diagnosis-assistant-service/metrics"
	"diagnosis-assistant-service/models"
)

// Session is the per-user scope: the questionnaire, the append-only chat
// log and the most recent diagnosis. Nothing is shared across sessions.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu            sync.Mutex
	lastSeen      time.Time
	form          models.IntakeForm
	remembered    intake.RememberedDetails
	messages      []models.ChatMessage
	lastDiagnosis *models.DiagnosisResult
	lastNote      string
	formCollapsed bool
}

// Form returns a copy of the current questionnaire state.
func (s *Session) Form() models.IntakeForm {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.form
}

// UpdateForm applies a full-form rewrite. The incoming value replaces the
// questionnaire wholesale after normalization; there is no field-level diff.
func (s *Session) UpdateForm(form models.IntakeForm) models.IntakeForm {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.form = intake.Normalize(form, &s.remembered)
	s.lastSeen = time.Now()
	return s.form
}

// Messages returns a copy of the ordered message log.
func (s *Session) Messages() []models.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.ChatMessage, len(s.messages))
	copy(out, s.messages)
	return out
}

// AppendTurn appends one user message and the assistant's reply. It is only
// called after a successful chat call, so a failed turn never touches the
// log.
func (s *Session) AppendTurn(userMessage, assistantReply string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages,
		models.ChatMessage{Role: models.RoleUser, Content: userMessage},
		models.ChatMessage{Role: models.RoleAssistant, Content: assistantReply},
	)
	s.lastSeen = time.Now()
}

// SetDiagnosis caches the latest pipeline result on the session so a
// re-render does not have to re-run inference.
func (s *Session) SetDiagnosis(result models.DiagnosisResult, note string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastDiagnosis = &result
	s.lastNote = note
	s.lastSeen = time.Now()
}

// Diagnosis returns the cached diagnosis and note, if any.
func (s *Session) Diagnosis() (*models.DiagnosisResult, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastDiagnosis == nil {
		return nil, ""
	}
	d := *s.lastDiagnosis
	return &d, s.lastNote
}

// SetFormCollapsed stores the questionnaire fold state.
func (s *Session) SetFormCollapsed(collapsed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.formCollapsed = collapsed
}

// FormCollapsed reports the questionnaire fold state.
func (s *Session) FormCollapsed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.formCollapsed
}

// Manager owns all live sessions. Each session is an independent copy;
// nothing is shared or locked across sessions beyond the lookup map itself.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	ttl      time.Duration
}

// NewManager creates a session manager. Sessions idle longer than ttl are
// removed by Sweep.
func NewManager(ttl time.Duration) *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		ttl:      ttl,
	}
}

// Create starts a new session seeded with the default questionnaire.
func (m *Manager) Create() *Session {
	now := time.Now()
	s := &Session{
		ID:        uuid.NewString(),
		CreatedAt: now,
		lastSeen:  now,
		form:      intake.DefaultForm(),
		messages:  []models.ChatMessage{},
	}
	m.mu.Lock()
	m.sessions[s.ID] = s
	metrics.ActiveSessions.Set(float64(len(m.sessions)))
	m.mu.Unlock()
	return s
}

// Get returns the session with the given ID, or nil.
func (m *Manager) Get(id string) *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessions[id]
}

// End removes a session; its state is discarded, which is the only way a
// message log is ever cleared.
func (m *Manager) End(id string) {
	m.mu.Lock()
	delete(m.sessions, id)
	metrics.ActiveSessions.Set(float64(len(m.sessions)))
	m.mu.Unlock()
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Sweep drops sessions idle past the TTL and returns how many were removed.
func (m *Manager) Sweep() int {
	cutoff := time.Now().Add(-m.ttl)
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for id, s := range m.sessions {
		s.mu.Lock()
		idle := s.lastSeen.Before(cutoff)
		s.mu.Unlock()
		if idle {
			delete(m.sessions, id)
			removed++
		}
	}
	metrics.ActiveSessions.Set(float64(len(m.sessions)))
	return removed
}

// StartSweeper runs Sweep on the given interval until stop is closed.
func (m *Manager) StartSweeper(interval time.Duration, stop <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.Sweep()
			case <-stop:
				return
			}
		}
	}()
}
