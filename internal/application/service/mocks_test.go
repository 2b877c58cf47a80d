package service

import (
	"context"
	"sort"
	"sync"

	"github.com/garyjia/ohsms/internal/application/dispatcher"
	"github.com/garyjia/ohsms/internal/application/port"
	"github.com/garyjia/ohsms/internal/domain/entity"
	"github.com/garyjia/ohsms/internal/domain/event"
	domainwf "github.com/garyjia/ohsms/internal/domain/workflow"
)

type mockLogger struct{}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{})  {}
func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {}

// memReportRepo is an in-memory ReportRepository with the same version rules as the real stores
type memReportRepo struct {
	mu      sync.Mutex
	reports map[string]*entity.Report
	gets    int
	putFunc func(ctx context.Context, report *entity.Report) error
}

func newMemReportRepo(reports ...*entity.Report) *memReportRepo {
	m := &memReportRepo{reports: make(map[string]*entity.Report)}
	for _, r := range reports {
		m.reports[r.ID] = r.Clone()
	}
	return m
}

func (m *memReportRepo) Get(ctx context.Context, id string) (*entity.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	if r, ok := m.reports[id]; ok {
		return r.Clone(), nil
	}
	return nil, nil
}

func (m *memReportRepo) List(ctx context.Context) ([]*entity.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*entity.Report, 0, len(m.reports))
	for _, r := range m.reports {
		out = append(out, r.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memReportRepo) IDsForYear(ctx context.Context, year int) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for id, r := range m.reports {
		if r.CreatedAt.Year() == year {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (m *memReportRepo) GetByFollowUpKey(ctx context.Context, key string) (*entity.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.reports {
		if r.FollowUpKey == key {
			return r.Clone(), nil
		}
	}
	return nil, nil
}

func (m *memReportRepo) Put(ctx context.Context, report *entity.Report) error {
	if m.putFunc != nil {
		if err := m.putFunc(ctx, report); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, exists := m.reports[report.ID]
	if (exists && stored.Version != report.Version) || (!exists && report.Version != 0) {
		return port.ErrConcurrentUpdate
	}
	report.Version++
	m.reports[report.ID] = report.Clone()
	return nil
}

type mockTxManager struct{}

func (m *mockTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type mockAuthorizer struct {
	user    *entity.User
	allowed map[domainwf.Permission]bool
}

func allowAll() *mockAuthorizer {
	return &mockAuthorizer{user: &entity.User{ID: "u1", Name: "Officer"}}
}

func (m *mockAuthorizer) CurrentUser(ctx context.Context) *entity.User {
	return m.user
}

func (m *mockAuthorizer) HasPermission(user *entity.User, perm domainwf.Permission) bool {
	if user == nil {
		return false
	}
	if m.allowed == nil {
		return true
	}
	return m.allowed[perm]
}

type mockAuditRepo struct {
	mu       sync.Mutex
	created  []*entity.AuditLogEntry
	err      error
	listFunc func(ctx context.Context, reportID string, limit int) ([]*entity.AuditLogEntry, error)
}

func (m *mockAuditRepo) Create(ctx context.Context, entry *entity.AuditLogEntry) error {
	if m.err != nil {
		return m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.created = append(m.created, entry)
	return nil
}

func (m *mockAuditRepo) ListByReport(ctx context.Context, reportID string, limit int) ([]*entity.AuditLogEntry, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx, reportID, limit)
	}
	return nil, nil
}

type mockRiskSource struct {
	risks []entity.RiskRecord
	err   error
}

func (m *mockRiskSource) ListRisks(ctx context.Context) ([]entity.RiskRecord, error) {
	return m.risks, m.err
}

type mockFormSource struct {
	forms []entity.FormSubmission
}

func (m *mockFormSource) ListSubmissions(ctx context.Context) ([]entity.FormSubmission, error) {
	return m.forms, nil
}

type recordingDispatcher struct {
	mu     sync.Mutex
	events []*event.Event
}

func (m *recordingDispatcher) Subscribe(eventType event.Type, handler dispatcher.Handler) {}

func (m *recordingDispatcher) SubscribeNamed(eventType event.Type, name string, handler dispatcher.Handler) {
}

func (m *recordingDispatcher) Unsubscribe(eventType event.Type, name string) {}

func (m *recordingDispatcher) Dispatch(ctx context.Context, evt *event.Event) error {
	m.DispatchAsync(ctx, evt)
	return nil
}

func (m *recordingDispatcher) DispatchAsync(ctx context.Context, evt *event.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, evt)
}

func (m *recordingDispatcher) ListHandlers(eventType event.Type) []dispatcher.HandlerInfo {
	return nil
}

func (m *recordingDispatcher) Close() error {
	return nil
}
