package web

import (
	"context"
	"net/http"
	"sync"
	"time"

	"wayfinder/internal/diagnostic"
	"wayfinder/internal/gateway"
	"wayfinder/internal/session"
)

// flowTTL is how long an idle diagnostic flow survives between requests.
const flowTTL = time.Hour

// diagnosticService adapts the gateway client into the flow's Service
// interface. The session manager is rebound on every request because
// managers are per-request; the flow itself lives across requests.
type diagnosticService struct {
	client *gateway.Client

	mu      sync.Mutex
	mgr     *session.Manager
	company string
	role    string
}

func (d *diagnosticService) bind(mgr *session.Manager) {
	d.mu.Lock()
	d.mgr = mgr
	d.mu.Unlock()
}

func (d *diagnosticService) setTargets(company, role string) {
	d.mu.Lock()
	if company != "" {
		d.company = company
	}
	if role != "" {
		d.role = role
	}
	d.mu.Unlock()
}

func (d *diagnosticService) do(ctx context.Context, call func(tok string) error) error {
	d.mu.Lock()
	mgr := d.mgr
	d.mu.Unlock()
	return mgr.Do(ctx, call)
}

func (d *diagnosticService) Start(ctx context.Context) (*gateway.StartDiagnosticResponse, error) {
	var resp *gateway.StartDiagnosticResponse
	err := d.do(ctx, func(tok string) error {
		var err error
		resp, err = d.client.StartDiagnostic(ctx, tok)
		return err
	})
	return resp, err
}

func (d *diagnosticService) Respond(ctx context.Context, sessionID string, responses map[string]string) (*gateway.SubmitResponsesResponse, error) {
	var resp *gateway.SubmitResponsesResponse
	err := d.do(ctx, func(tok string) error {
		var err error
		resp, err = d.client.SubmitResponses(ctx, tok, sessionID, responses)
		return err
	})
	return resp, err
}

func (d *diagnosticService) Complete(ctx context.Context, sessionID string) error {
	return d.do(ctx, func(tok string) error {
		_, err := d.client.CompleteDiagnostic(ctx, tok, sessionID)
		return err
	})
}

func (d *diagnosticService) Generate(ctx context.Context, sessionID string) (string, error) {
	d.mu.Lock()
	company, role := d.company, d.role
	d.mu.Unlock()

	var id string
	err := d.do(ctx, func(tok string) error {
		resp, err := d.client.GenerateRoadmap(ctx, tok, sessionID, company, role)
		if err != nil {
			return err
		}
		id = resp.RoadmapID
		return nil
	})
	return id, err
}

func (d *diagnosticService) ExistingRoadmap(ctx context.Context) (string, bool, error) {
	var id string
	err := d.do(ctx, func(tok string) error {
		list, err := d.client.Roadmaps(ctx, tok)
		if err != nil {
			return err
		}
		if len(list.Roadmaps) > 0 {
			id = list.Roadmaps[0].ID
		}
		return nil
	})
	if err != nil {
		return "", false, err
	}
	return id, id != "", nil
}

// flowEntry pairs a flow with its rebindable service.
type flowEntry struct {
	flow     *diagnostic.Flow
	svc      *diagnosticService
	lastSeen time.Time
}

// flowRegistry keeps one diagnostic flow per browser (device cookie).
// Entries idle past flowTTL are reaped opportunistically.
type flowRegistry struct {
	mu      sync.Mutex
	entries map[string]*flowEntry
	now     func() time.Time
}

func newFlowRegistry() *flowRegistry {
	return &flowRegistry{
		entries: make(map[string]*flowEntry),
		now:     time.Now,
	}
}

// get returns the live entry for deviceID, or nil.
func (reg *flowRegistry) get(deviceID string) *flowEntry {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	reg.reapLocked()

	e, ok := reg.entries[deviceID]
	if !ok {
		return nil
	}
	e.lastSeen = reg.now()
	return e
}

// getOrCreate returns the entry for deviceID, creating one with create if
// none is live.
func (reg *flowRegistry) getOrCreate(deviceID string, create func() *flowEntry) *flowEntry {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	reg.reapLocked()

	e, ok := reg.entries[deviceID]
	if !ok {
		e = create()
		reg.entries[deviceID] = e
	}
	e.lastSeen = reg.now()
	return e
}

func (reg *flowRegistry) reapLocked() {
	cutoff := reg.now().Add(-flowTTL)
	for id, e := range reg.entries {
		if e.lastSeen.Before(cutoff) {
			delete(reg.entries, id)
		}
	}
}

// diagnosticEntry resolves the request's flow entry, creating it when asked.
func (s *Server) diagnosticEntry(w http.ResponseWriter, r *http.Request, create bool) (*flowEntry, *session.Manager) {
	mgr, st := s.manager(w, r)

	var e *flowEntry
	if create {
		e = s.flows.getOrCreate(st.DeviceID(), func() *flowEntry {
			svc := &diagnosticService{client: s.gw}
			flow := diagnostic.NewFlow(svc, s.logger)
			if s.metrics != nil {
				flow.SetMetrics(s.metrics)
			}
			return &flowEntry{flow: flow, svc: svc}
		})
	} else {
		e = s.flows.get(st.DeviceID())
	}
	if e != nil {
		e.svc.bind(mgr)
	}
	return e, mgr
}

// renderFlow writes the wizard view. An errored flow reports through the
// gateway error taxonomy: expected 4xx responses keep their status, and only
// genuine outages get the one-shot error-page handoff.
func (s *Server) renderFlow(w http.ResponseWriter, r *http.Request, v diagnostic.View) {
	if v.State == diagnostic.StateErrored {
		err := v.Err
		if err == nil {
			err = &gateway.HTTPError{Status: http.StatusBadGateway, Detail: v.ErrorMessage}
		}
		s.gatewayError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// handleDiagnosticStart handles POST /api/v1/diagnostics/start. Starting is
// idempotent: a flow already past loading returns its current view.
func (s *Server) handleDiagnosticStart(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TargetCompany string `json:"target_company"`
		TargetRole    string `json:"target_role"`
	}
	_ = readJSON(r, &req) // body is optional

	e, _ := s.diagnosticEntry(w, r, true)
	e.svc.setTargets(req.TargetCompany, req.TargetRole)

	v := e.flow.View()
	if v.State == diagnostic.StateLoading || v.State == diagnostic.StateErrored {
		v = e.flow.Start(r.Context())
	}
	s.renderFlow(w, r, v)
}

// handleDiagnosticView handles GET /api/v1/diagnostics.
func (s *Server) handleDiagnosticView(w http.ResponseWriter, r *http.Request) {
	e, _ := s.diagnosticEntry(w, r, false)
	if e == nil {
		writeError(w, http.StatusNotFound, "not_found", "no diagnostic in progress")
		return
	}
	s.renderFlow(w, r, e.flow.View())
}

// handleDiagnosticAnswer handles POST /api/v1/diagnostics/answer.
func (s *Server) handleDiagnosticAnswer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		QuestionID string `json:"question_id"`
		Value      string `json:"value"`
	}
	if err := readJSON(r, &req); err != nil || req.QuestionID == "" {
		writeError(w, http.StatusUnprocessableEntity, "validation_error", "question_id is required")
		return
	}

	e, _ := s.diagnosticEntry(w, r, false)
	if e == nil {
		writeError(w, http.StatusNotFound, "not_found", "no diagnostic in progress")
		return
	}
	s.renderFlow(w, r, e.flow.Answer(req.QuestionID, req.Value))
}

// handleDiagnosticNext handles POST /api/v1/diagnostics/next.
func (s *Server) handleDiagnosticNext(w http.ResponseWriter, r *http.Request) {
	e, _ := s.diagnosticEntry(w, r, false)
	if e == nil {
		writeError(w, http.StatusNotFound, "not_found", "no diagnostic in progress")
		return
	}
	s.renderFlow(w, r, e.flow.Next(r.Context()))
}

// handleDiagnosticPrevious handles POST /api/v1/diagnostics/previous.
func (s *Server) handleDiagnosticPrevious(w http.ResponseWriter, r *http.Request) {
	e, _ := s.diagnosticEntry(w, r, false)
	if e == nil {
		writeError(w, http.StatusNotFound, "not_found", "no diagnostic in progress")
		return
	}
	s.renderFlow(w, r, e.flow.Previous())
}

// handleDiagnosticSubmit handles POST /api/v1/diagnostics/submit.
func (s *Server) handleDiagnosticSubmit(w http.ResponseWriter, r *http.Request) {
	e, _ := s.diagnosticEntry(w, r, false)
	if e == nil {
		writeError(w, http.StatusNotFound, "not_found", "no diagnostic in progress")
		return
	}
	s.renderFlow(w, r, e.flow.Submit(r.Context()))
}
