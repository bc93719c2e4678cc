package diagnostic

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"wayfinder/internal/gateway"
)

// State is the wizard's current phase.
type State string

const (
	StateLoading      State = "loading"
	StateQuestion     State = "question"
	StateFollowup     State = "followup"
	StateSubmitting   State = "submitting"
	StateRoadmapReady State = "roadmap_ready"
	StateErrored      State = "errored"
)

// Service is the gateway surface the flow needs. Implementations bind the
// caller's access token; the flow never sees credentials.
type Service interface {
	Start(ctx context.Context) (*gateway.StartDiagnosticResponse, error)
	Respond(ctx context.Context, sessionID string, responses map[string]string) (*gateway.SubmitResponsesResponse, error)
	Complete(ctx context.Context, sessionID string) error
	Generate(ctx context.Context, sessionID string) (string, error)
	ExistingRoadmap(ctx context.Context) (string, bool, error)
}

// MetricsRecorder is an optional interface for counting submit outcomes.
type MetricsRecorder interface {
	IncDiagnosticSubmission(result string)
}

// CategoryProgress is the answered count for one section.
type CategoryProgress struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Answered int    `json:"answered"`
	Total    int    `json:"total"`
}

// View is a snapshot of the wizard for rendering. Everything in it is a
// copy; mutating a View has no effect on the flow.
type View struct {
	State             State              `json:"state"`
	SessionID         string             `json:"session_id"`
	Questions         []gateway.Question `json:"questions"`
	Answers           map[string]string  `json:"answers"`
	Index             int                `json:"index"`
	Current           *gateway.Question  `json:"current,omitempty"`
	Progress          []CategoryProgress `json:"progress"`
	ValidationMessage string             `json:"validation_message,omitempty"`
	ErrorMessage      string             `json:"error_message,omitempty"`
	RoadmapID         string             `json:"roadmap_id,omitempty"`

	// Err is the underlying failure behind an errored state, kept for the
	// HTTP layer's error classification. Never serialized.
	Err error `json:"-"`
}

// Flow is the wizard state machine for one diagnostic session. Safe for
// concurrent use; the lock is released while the answers are in flight so a
// second Submit observes the submitting state instead of queueing a
// duplicate.
type Flow struct {
	svc     Service
	logger  *slog.Logger
	metrics MetricsRecorder

	mu          sync.Mutex
	state       State
	sessionID   string
	questions   []gateway.Question
	followupIDs map[string]bool
	answers     map[string]string
	index       int
	validation  string
	errMsg      string
	errCause    error
	roadmapID   string
	submitting  bool
}

// NewFlow creates an unstarted flow.
func NewFlow(svc Service, logger *slog.Logger) *Flow {
	if logger == nil {
		logger = slog.Default()
	}
	return &Flow{
		svc:         svc,
		logger:      logger,
		state:       StateLoading,
		followupIDs: make(map[string]bool),
		answers:     make(map[string]string),
	}
}

// SetMetrics sets the optional metrics recorder.
func (f *Flow) SetMetrics(rec MetricsRecorder) {
	f.metrics = rec
}

// Start loads or resumes the diagnostic session. A session the gateway
// reports as already complete goes straight to its roadmap and never shows
// questions again.
func (f *Flow) Start(ctx context.Context) View {
	f.mu.Lock()
	defer f.mu.Unlock()

	resp, err := f.svc.Start(ctx)
	if err != nil {
		return f.failLocked("starting the diagnostic failed", err)
	}
	f.sessionID = resp.SessionID
	f.errMsg, f.errCause = "", nil

	if resp.IsComplete {
		if id, ok, err := f.svc.ExistingRoadmap(ctx); err == nil && ok {
			f.roadmapID = id
			f.state = StateRoadmapReady
			return f.viewLocked()
		}
		return f.generateLocked(ctx)
	}

	f.questions = sortQuestions(resp.Questions)
	known := make(map[string]bool, len(f.questions))
	for _, q := range f.questions {
		known[q.QuestionID] = true
	}
	// Resume: seed only answers whose question still exists.
	for id, answer := range resp.ExistingResponses {
		if known[id] {
			f.answers[id] = answer
		}
	}
	f.appendFollowupsLocked(resp.FollowupQuestions)

	if resp.ReadyToComplete {
		return f.finishLocked(ctx)
	}

	f.index = f.firstUnansweredLocked()
	f.setQuestionStateLocked()
	return f.viewLocked()
}

// Answer records the answer for a visible question. Answers to unknown
// question IDs are ignored, so a stale submission cannot grow the set.
func (f *Flow) Answer(questionID, value string) View {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.questionAt(questionID) >= 0 {
		f.answers[questionID] = value
		f.validation = ""
	}
	return f.viewLocked()
}

// Next advances to the following question. Stepping past the last question
// attempts submission, so finishing the wizard and pressing next once more
// behaves the same as an explicit submit.
func (f *Flow) Next(ctx context.Context) View {
	f.mu.Lock()
	if f.index < len(f.questions)-1 {
		f.index++
		f.setQuestionStateLocked()
		v := f.viewLocked()
		f.mu.Unlock()
		return v
	}
	atEnd := len(f.questions) > 0 && (f.state == StateQuestion || f.state == StateFollowup)
	f.mu.Unlock()

	if atEnd {
		return f.Submit(ctx)
	}
	return f.View()
}

// Previous steps back one question.
func (f *Flow) Previous() View {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.index > 0 {
		f.index--
		f.setQuestionStateLocked()
	}
	return f.viewLocked()
}

// Submit sends the collected answers. Every visible question must carry a
// non-blank answer. While a submission is in flight a second Submit is a
// no-op returning the submitting view.
func (f *Flow) Submit(ctx context.Context) View {
	f.mu.Lock()
	if f.submitting || f.state == StateRoadmapReady {
		v := f.viewLocked()
		f.mu.Unlock()
		return v
	}
	if msg := f.validateLocked(); msg != "" {
		f.validation = msg
		f.record("validation")
		v := f.viewLocked()
		f.mu.Unlock()
		return v
	}

	f.submitting = true
	f.state = StateSubmitting
	sessionID := f.sessionID
	answers := make(map[string]string, len(f.answers))
	for k, v := range f.answers {
		answers[k] = v
	}
	f.mu.Unlock()

	resp, err := f.svc.Respond(ctx, sessionID, answers)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitting = false

	if err != nil {
		f.record("error")
		return f.failLocked("submitting answers failed", err)
	}

	if len(resp.FollowupQuestions) > 0 {
		added := f.appendFollowupsLocked(resp.FollowupQuestions)
		f.logger.Info("received follow-up questions", "count", added)
		f.index = f.firstUnansweredLocked()
		f.state = StateFollowup
		f.record("followups")
		return f.viewLocked()
	}

	if len(resp.MissingItems) > 0 {
		f.validation = "Some answers need more detail: " + strings.Join(resp.MissingItems, ", ")
		f.setQuestionStateLocked()
		f.record("validation")
		return f.viewLocked()
	}

	f.record("completed")
	return f.finishLocked(ctx)
}

// View returns the current snapshot without changing anything.
func (f *Flow) View() View {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.viewLocked()
}

// finishLocked closes the diagnostic and generates the roadmap.
func (f *Flow) finishLocked(ctx context.Context) View {
	if err := f.svc.Complete(ctx, f.sessionID); err != nil {
		return f.failLocked("completing the diagnostic failed", err)
	}
	return f.generateLocked(ctx)
}

func (f *Flow) generateLocked(ctx context.Context) View {
	id, err := f.svc.Generate(ctx, f.sessionID)
	if err != nil {
		return f.failLocked("generating the roadmap failed", err)
	}
	f.roadmapID = id
	f.state = StateRoadmapReady
	return f.viewLocked()
}

func (f *Flow) failLocked(msg string, err error) View {
	f.logger.Error(msg, "error", err, "session_id", f.sessionID)
	f.state = StateErrored
	f.errMsg = gateway.Detail(err)
	f.errCause = err
	return f.viewLocked()
}

func (f *Flow) validateLocked() string {
	for _, q := range f.questions {
		if strings.TrimSpace(f.answers[q.QuestionID]) == "" {
			return "Please answer every question before submitting."
		}
	}
	return ""
}

// appendFollowupsLocked adds follow-up questions not yet visible, keeping
// arrival order, and reports how many were new.
func (f *Flow) appendFollowupsLocked(qs []gateway.Question) int {
	added := 0
	for _, q := range qs {
		if q.QuestionID == "" || f.questionAt(q.QuestionID) >= 0 {
			continue
		}
		f.questions = append(f.questions, q)
		f.followupIDs[q.QuestionID] = true
		added++
	}
	return added
}

func (f *Flow) questionAt(id string) int {
	for i, q := range f.questions {
		if q.QuestionID == id {
			return i
		}
	}
	return -1
}

func (f *Flow) firstUnansweredLocked() int {
	for i, q := range f.questions {
		if strings.TrimSpace(f.answers[q.QuestionID]) == "" {
			return i
		}
	}
	if len(f.questions) == 0 {
		return 0
	}
	return len(f.questions) - 1
}

func (f *Flow) setQuestionStateLocked() {
	if len(f.questions) == 0 {
		return
	}
	if f.followupIDs[f.questions[f.index].QuestionID] {
		f.state = StateFollowup
	} else {
		f.state = StateQuestion
	}
}

func (f *Flow) viewLocked() View {
	v := View{
		State:             f.state,
		SessionID:         f.sessionID,
		Questions:         append([]gateway.Question(nil), f.questions...),
		Answers:           make(map[string]string, len(f.answers)),
		Index:             f.index,
		Progress:          f.progressLocked(),
		ValidationMessage: f.validation,
		ErrorMessage:      f.errMsg,
		RoadmapID:         f.roadmapID,
		Err:               f.errCause,
	}
	for k, val := range f.answers {
		v.Answers[k] = val
	}
	if f.index >= 0 && f.index < len(f.questions) {
		q := f.questions[f.index]
		v.Current = &q
	}
	return v
}

func (f *Flow) progressLocked() []CategoryProgress {
	byID := make(map[string]*CategoryProgress)
	order := []string{}
	for _, q := range f.questions {
		id := CategoryIDFor(q.Category)
		p, ok := byID[id]
		if !ok {
			title := id
			for _, c := range Categories {
				if c.ID == id {
					title = c.Title
				}
			}
			p = &CategoryProgress{ID: id, Title: title}
			byID[id] = p
			order = append(order, id)
		}
		p.Total++
		if strings.TrimSpace(f.answers[q.QuestionID]) != "" {
			p.Answered++
		}
	}

	sort.SliceStable(order, func(i, j int) bool {
		return categoryOrder(order[i]) < categoryOrder(order[j])
	})
	out := make([]CategoryProgress, 0, len(order))
	for _, id := range order {
		out = append(out, *byID[id])
	}
	return out
}

func (f *Flow) record(result string) {
	if f.metrics != nil {
		f.metrics.IncDiagnosticSubmission(result)
	}
}

// sortQuestions orders the base questions by category, then by the
// gateway's explicit order, then by ID for stability.
func sortQuestions(qs []gateway.Question) []gateway.Question {
	out := append([]gateway.Question(nil), qs...)
	sort.SliceStable(out, func(i, j int) bool {
		ci, cj := categoryOrder(CategoryIDFor(out[i].Category)), categoryOrder(CategoryIDFor(out[j].Category))
		if ci != cj {
			return ci < cj
		}
		if out[i].Order != out[j].Order {
			return out[i].Order < out[j].Order
		}
		return out[i].QuestionID < out[j].QuestionID
	})
	return out
}
