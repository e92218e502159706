package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/alfredjeanlab/gatewarden/internal/model"
	"github.com/alfredjeanlab/gatewarden/internal/store"
)

// mockStore is an in-memory store.Store for engine tests. A single mutex
// guards all state so the claim race test can hit it from two goroutines.
type mockStore struct {
	mu sync.Mutex

	projects    map[string]*model.Project
	gates       map[string]*model.PromotionGate
	evaluations []*model.GateEvaluation
	exceptions  map[string]*model.Exception
	approvals   map[string]*model.ApprovalRequest
	comments    map[string][]*model.ApprovalComment
	packets     map[string]*model.TaskPacket
	findings    map[string]*model.Finding
	timeline    []*model.TimelineEvent

	commentNextID int64
	seq           int64
}

func newMockStore() *mockStore {
	return &mockStore{
		projects:   make(map[string]*model.Project),
		gates:      make(map[string]*model.PromotionGate),
		exceptions: make(map[string]*model.Exception),
		approvals:  make(map[string]*model.ApprovalRequest),
		comments:   make(map[string][]*model.ApprovalComment),
		packets:    make(map[string]*model.TaskPacket),
		findings:   make(map[string]*model.Finding),
	}
}

var _ store.Store = (*mockStore)(nil)

func gateKey(source, target model.Environment) string {
	return string(source) + "->" + string(target)
}

func (m *mockStore) CreateProject(_ context.Context, p *model.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.projects[p.ID] = p
	return nil
}

func (m *mockStore) GetProject(_ context.Context, id string) (*model.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.projects[id]
	if !ok {
		return nil, nil
	}
	clone := *p
	return &clone, nil
}

func (m *mockStore) UpdateProject(_ context.Context, p *model.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.projects[p.ID]; !ok {
		return model.ErrNotFound
	}
	m.projects[p.ID] = p
	return nil
}

func (m *mockStore) ListProjects(_ context.Context) ([]*model.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Project
	for _, p := range m.projects {
		out = append(out, p)
	}
	return out, nil
}

func (m *mockStore) UpsertGate(_ context.Context, g *model.PromotionGate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gates[gateKey(g.SourceEnvironment, g.TargetEnvironment)] = g
	return nil
}

func (m *mockStore) GetGate(_ context.Context, source, target model.Environment) (*model.PromotionGate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.gates[gateKey(source, target)]
	if !ok {
		return nil, nil
	}
	return g, nil
}

func (m *mockStore) ListGates(_ context.Context) ([]*model.PromotionGate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.PromotionGate
	for _, g := range m.gates {
		out = append(out, g)
	}
	return out, nil
}

func (m *mockStore) CreateEvaluation(_ context.Context, e *model.GateEvaluation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.evaluations = append(m.evaluations, e)
	return nil
}

func (m *mockStore) GetEvaluation(_ context.Context, id string) (*model.GateEvaluation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.evaluations {
		if e.EvaluationID == id {
			return e, nil
		}
	}
	return nil, nil
}

func (m *mockStore) LatestEvaluation(_ context.Context, projectID string, source, target model.Environment) (*model.GateEvaluation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.evaluations) - 1; i >= 0; i-- {
		e := m.evaluations[i]
		if e.ProjectID == projectID && e.SourceEnvironment == source && e.TargetEnvironment == target {
			return e, nil
		}
	}
	return nil, nil
}

func (m *mockStore) ListEvaluations(_ context.Context, projectID string, limit int) ([]*model.GateEvaluation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.GateEvaluation
	for i := len(m.evaluations) - 1; i >= 0; i-- {
		if m.evaluations[i].ProjectID != projectID {
			continue
		}
		out = append(out, m.evaluations[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *mockStore) CreateException(_ context.Context, e *model.Exception) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	// One pending-or-active exception per (project, rule_type), mirroring
	// the partial unique index in postgres.
	for _, existing := range m.exceptions {
		if existing.ProjectID == e.ProjectID && existing.RuleType == e.RuleType &&
			(existing.Status == model.ExceptionPending || existing.Status == model.ExceptionActive) {
			return fmt.Errorf("%w: exception already pending or active for %s", model.ErrInvalidContest, e.RuleType)
		}
	}
	m.exceptions[e.ExceptionID] = e
	return nil
}

func (m *mockStore) GetException(_ context.Context, id string) (*model.Exception, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.exceptions[id]
	if !ok {
		return nil, nil
	}
	return e, nil
}

func (m *mockStore) UpdateException(_ context.Context, e *model.Exception) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.exceptions[e.ExceptionID]; !ok {
		return model.ErrNotFound
	}
	m.exceptions[e.ExceptionID] = e
	return nil
}

func (m *mockStore) ActiveException(_ context.Context, projectID, ruleType string, now time.Time) (*model.Exception, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.exceptions {
		if e.ProjectID == projectID && e.RuleType == ruleType && e.EffectiveStatus(now) == model.ExceptionActive {
			return e, nil
		}
	}
	return nil, nil
}

func (m *mockStore) CreateApprovalRequest(_ context.Context, r *model.ApprovalRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.approvals[r.ApprovalRequestID] = r
	return nil
}

func (m *mockStore) GetApprovalRequest(_ context.Context, id string) (*model.ApprovalRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.approvals[id]
	if !ok {
		return nil, nil
	}
	clone := *r
	return &clone, nil
}

func (m *mockStore) UpdateApprovalRequest(_ context.Context, r *model.ApprovalRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.approvals[r.ApprovalRequestID]; !ok {
		return model.ErrNotFound
	}
	m.approvals[r.ApprovalRequestID] = r
	return nil
}

func (m *mockStore) AddApprovalComment(_ context.Context, c *model.ApprovalComment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commentNextID++
	c.ID = m.commentNextID
	m.comments[c.ApprovalRequestID] = append(m.comments[c.ApprovalRequestID], c)
	return nil
}

func (m *mockStore) GetApprovalComments(_ context.Context, approvalRequestID string) ([]*model.ApprovalComment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.comments[approvalRequestID], nil
}

func (m *mockStore) CreateTaskPacket(_ context.Context, p *model.TaskPacket) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.packets[p.TaskPacketID] = p
	return nil
}

func (m *mockStore) GetTaskPacket(_ context.Context, id string) (*model.TaskPacket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.packets[id]
	if !ok {
		return nil, nil
	}
	clone := *p
	return &clone, nil
}

func (m *mockStore) ListTaskPackets(_ context.Context, filter model.TaskPacketFilter) ([]*model.TaskPacket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.TaskPacket
outer:
	for _, p := range m.packets {
		if filter.ProjectID != "" && p.ProjectID != filter.ProjectID {
			continue
		}
		if filter.RuleID != "" && p.RuleID != filter.RuleID {
			continue
		}
		if filter.AgentID != "" && p.AgentID != filter.AgentID {
			continue
		}
		if len(filter.Status) > 0 {
			for _, st := range filter.Status {
				if p.Status == st {
					out = append(out, p)
					continue outer
				}
			}
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (m *mockStore) UpdateTaskPacket(_ context.Context, p *model.TaskPacket) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.packets[p.TaskPacketID]; !ok {
		return model.ErrNotFound
	}
	m.packets[p.TaskPacketID] = p
	return nil
}

func (m *mockStore) LiveTaskPacket(_ context.Context, projectID, ruleID string) (*model.TaskPacket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.packets {
		if p.ProjectID == projectID && p.RuleID == ruleID &&
			(p.Status == model.PacketOpen || p.Status == model.PacketInProgress) {
			return p, nil
		}
	}
	return nil, nil
}

func (m *mockStore) ClaimTaskPacket(_ context.Context, id, agentID string, now time.Time) (*model.TaskPacket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.packets[id]
	if !ok {
		return nil, fmt.Errorf("%w: task packet %s", model.ErrNotFound, id)
	}
	if p.Status != model.PacketOpen {
		return nil, fmt.Errorf("%w: task packet %s is %s", model.ErrAlreadyClaimed, id, p.Status)
	}
	p.Status = model.PacketInProgress
	p.AgentID = agentID
	p.ClaimedAt = &now
	p.UpdatedAt = now
	clone := *p
	return &clone, nil
}

func (m *mockStore) CreateFinding(_ context.Context, f *model.Finding) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.findings[f.FindingID] = f
	return nil
}

func (m *mockStore) GetFinding(_ context.Context, id string) (*model.Finding, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.findings[id]
	if !ok {
		return nil, nil
	}
	return f, nil
}

func (m *mockStore) ListFindings(_ context.Context, filter model.FindingFilter) ([]*model.Finding, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Finding
outer:
	for _, f := range m.findings {
		if filter.ProjectID != "" && f.ProjectID != filter.ProjectID {
			continue
		}
		if filter.Category != "" && f.Category != filter.Category {
			continue
		}
		if len(filter.Status) > 0 {
			found := false
			for _, st := range filter.Status {
				if f.Status == st {
					found = true
					break
				}
			}
			if !found {
				continue outer
			}
		}
		if len(filter.Severity) > 0 {
			found := false
			for _, sev := range filter.Severity {
				if f.Severity == sev {
					found = true
					break
				}
			}
			if !found {
				continue outer
			}
		}
		out = append(out, f)
	}
	return out, nil
}

func (m *mockStore) ResolveFinding(_ context.Context, id string, now time.Time) (*model.Finding, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.findings[id]
	if !ok {
		return nil, fmt.Errorf("%w: finding %s", model.ErrNotFound, id)
	}
	if f.Status != model.FindingResolved {
		f.Status = model.FindingResolved
		f.ResolvedAt = &now
		f.UpdatedAt = now
	}
	return f, nil
}

func (m *mockStore) AppendTimelineEvent(_ context.Context, e *model.TimelineEvent) error {
	if err := model.ValidateTimelineEvent(e); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	e.Seq = m.seq
	m.timeline = append(m.timeline, e)
	return nil
}

func (m *mockStore) QueryTimeline(_ context.Context, projectID string, limit int) ([]*model.TimelineEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.TimelineEvent
	for i := len(m.timeline) - 1; i >= 0; i-- {
		if m.timeline[i].ProjectID != projectID {
			continue
		}
		out = append(out, m.timeline[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *mockStore) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	return fn(m)
}

func (m *mockStore) Close() error { return nil }

// timelineTypes returns the event types recorded for a project, oldest first.
func (m *mockStore) timelineTypes(projectID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, e := range m.timeline {
		if e.ProjectID == projectID {
			out = append(out, e.EventType)
		}
	}
	return out
}

// capturePublisher records published events for assertions.
type capturePublisher struct {
	mu     sync.Mutex
	topics []string
}

func (p *capturePublisher) Publish(_ context.Context, topic string, _ any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	return nil
}

func (p *capturePublisher) Close() error { return nil }

func (p *capturePublisher) published() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.topics...)
}
