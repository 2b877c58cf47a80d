package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/ohsms/internal/application/service"
	"github.com/garyjia/ohsms/internal/application/workflow"
	"github.com/garyjia/ohsms/internal/domain/entity"
	domainwf "github.com/garyjia/ohsms/internal/domain/workflow"
	"github.com/garyjia/ohsms/internal/infrastructure/auth"
)

type mockLogger struct{}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{})  {}
func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {}

type mockEngine struct {
	applyFunc      func(ctx context.Context, reportID string, action domainwf.Action, note string) (*entity.Report, error)
	assignmentFunc func(ctx context.Context, reportID string, a workflow.Assignment) (*entity.Report, error)
}

func (m *mockEngine) Receive(ctx context.Context, id, note string) (*entity.Report, error) {
	return m.Apply(ctx, id, domainwf.ActionReceive, note)
}
func (m *mockEngine) Assign(ctx context.Context, id, note string) (*entity.Report, error) {
	return m.Apply(ctx, id, domainwf.ActionAssign, note)
}
func (m *mockEngine) Forward(ctx context.Context, id, note string) (*entity.Report, error) {
	return m.Apply(ctx, id, domainwf.ActionForward, note)
}
func (m *mockEngine) Done(ctx context.Context, id, note string) (*entity.Report, error) {
	return m.Apply(ctx, id, domainwf.ActionDone, note)
}
func (m *mockEngine) Close(ctx context.Context, id, note string) (*entity.Report, error) {
	return m.Apply(ctx, id, domainwf.ActionClose, note)
}
func (m *mockEngine) Escalate(ctx context.Context, id, note string) (*entity.Report, error) {
	return m.Apply(ctx, id, domainwf.ActionEscalate, note)
}

func (m *mockEngine) Apply(ctx context.Context, reportID string, action domainwf.Action, note string) (*entity.Report, error) {
	if m.applyFunc != nil {
		return m.applyFunc(ctx, reportID, action, note)
	}
	return &entity.Report{ID: reportID}, nil
}

func (m *mockEngine) UpdateAssignment(ctx context.Context, reportID string, a workflow.Assignment) (*entity.Report, error) {
	if m.assignmentFunc != nil {
		return m.assignmentFunc(ctx, reportID, a)
	}
	return &entity.Report{ID: reportID, AssignedDept: a.Department}, nil
}

type mockReportService struct {
	submitNormalFunc func(ctx context.Context, in service.NormalSubmission) (*entity.Report, error)
	listFunc         func(ctx context.Context) ([]*entity.Report, error)
	getFunc          func(ctx context.Context, id string) (*entity.Report, error)
	trackFunc        func(ctx context.Context, key string) (*service.TrackingView, error)
	auditFunc        func(ctx context.Context, id string, limit int) ([]*entity.AuditLogEntry, error)
}

func (m *mockReportService) SubmitNormal(ctx context.Context, in service.NormalSubmission) (*entity.Report, error) {
	if m.submitNormalFunc != nil {
		return m.submitNormalFunc(ctx, in)
	}
	return &entity.Report{ID: "2025-0001", Kind: entity.KindNormal}, nil
}

func (m *mockReportService) SubmitConfidential(ctx context.Context, in service.ConfidentialSubmission) (*service.ConfidentialReceipt, error) {
	return &service.ConfidentialReceipt{Report: &entity.Report{ID: "2025-0002"}, FollowUpKey: "key-1"}, nil
}

func (m *mockReportService) SubmitUrgent(ctx context.Context, in service.UrgentSubmission) (*entity.Report, error) {
	return &entity.Report{ID: "2025-0003", Kind: entity.KindUrgent}, nil
}

func (m *mockReportService) GetReport(ctx context.Context, id string) (*entity.Report, error) {
	if m.getFunc != nil {
		return m.getFunc(ctx, id)
	}
	return &entity.Report{ID: id}, nil
}

func (m *mockReportService) ListReports(ctx context.Context) ([]*entity.Report, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx)
	}
	return []*entity.Report{}, nil
}

func (m *mockReportService) Summary(ctx context.Context) (*entity.ReportSummary, error) {
	return &entity.ReportSummary{Total: 1, Open: 1}, nil
}

func (m *mockReportService) TrackConfidential(ctx context.Context, key string) (*service.TrackingView, error) {
	if m.trackFunc != nil {
		return m.trackFunc(ctx, key)
	}
	return &service.TrackingView{ReportID: "2025-0002"}, nil
}

func (m *mockReportService) ListAuditLog(ctx context.Context, id string, limit int) ([]*entity.AuditLogEntry, error) {
	if m.auditFunc != nil {
		return m.auditFunc(ctx, id, limit)
	}
	return []*entity.AuditLogEntry{}, nil
}

type mockNoteService struct {
	notes map[int]string
}

func (m *mockNoteService) GetNote(ctx context.Context, reportID string, stage int) (string, error) {
	if stage < 0 || stage >= domainwf.StageCount {
		return "", workflow.ErrInvalidStage
	}
	return m.notes[stage], nil
}

func (m *mockNoteService) SetNote(ctx context.Context, reportID string, stage int, text string) (*service.NoteReceipt, error) {
	if strings.TrimSpace(text) == "" {
		return nil, workflow.ErrEmptyNote
	}
	m.notes[stage] = text
	return &service.NoteReceipt{Saved: true, ReportID: reportID, Stage: stage}, nil
}

func (m *mockNoteService) HasNote(ctx context.Context, reportID string, stage int) (bool, error) {
	return m.notes[stage] != "", nil
}

func (m *mockNoteService) NoteIndicators(ctx context.Context, reportID string) (map[domainwf.Stage]bool, error) {
	out := make(map[domainwf.Stage]bool)
	for i := 0; i < domainwf.StageCount; i++ {
		out[domainwf.Stage(i)] = m.notes[i] != ""
	}
	return out, nil
}

type mockActivityService struct{}

func (m *mockActivityService) BuildAudit(ctx context.Context) ([]entity.ActivityEntry, error) {
	return []entity.ActivityEntry{{Kind: entity.ActivityKindRisk, SourceID: "R1", Text: "Fire – Storage"}}, nil
}

type mockExporter struct{}

func (m *mockExporter) ContentType() string   { return "text/csv" }
func (m *mockExporter) FileExtension() string { return ".csv" }
func (m *mockExporter) Export(ctx context.Context, reports []*entity.Report, w io.Writer) error {
	for _, r := range reports {
		fmt.Fprintln(w, r.ID)
	}
	return nil
}

type mockTokens struct{}

func (m *mockTokens) Parse(token string) (*entity.User, error) {
	if token == "good" {
		return &entity.User{ID: "u1", Name: "Dana", Role: entity.RoleSafetyCoordinator}, nil
	}
	return nil, auth.ErrInvalidToken
}

type mockMetrics struct {
	routes []string
}

func (m *mockMetrics) RequestStarted() func(method, route string, status int) {
	return func(method, route string, status int) {
		m.routes = append(m.routes, fmt.Sprintf("%s %s %d", method, route, status))
	}
}

func (m *mockMetrics) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("metrics"))
	})
}

type fixture struct {
	engine  *mockEngine
	reports *mockReportService
	notes   *mockNoteService
	metrics *mockMetrics
	server  *Server
}

func newFixture(t *testing.T, mutate func(cfg *ServerConfig)) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	f := &fixture{
		engine:  &mockEngine{},
		reports: &mockReportService{},
		notes:   &mockNoteService{notes: map[int]string{}},
		metrics: &mockMetrics{},
	}
	cfg := DefaultServerConfig()
	cfg.Mode = gin.TestMode
	cfg.RateLimit.Enabled = false
	if mutate != nil {
		mutate(&cfg)
	}

	f.server = NewServer(cfg, Services{
		Engine:   f.engine,
		Reports:  f.reports,
		Notes:    f.notes,
		Activity: &mockActivityService{},
		Exporter: &mockExporter{},
	}, &mockTokens{}, f.metrics, &mockLogger{})
	return f
}

func (f *fixture) do(method, path, body string, headers ...string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	f.server.Router().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestHealthCheck(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.do(http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode(t, rec).Success)
}

func TestListStages(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.do(http.MethodGet, "/api/workflow/stages", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Data []domainwf.StageInfo `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Data, domainwf.StageCount)
	assert.True(t, body.Data[7].Terminal)
}

func TestSubmitNormal(t *testing.T) {
	f := newFixture(t, nil)
	var got service.NormalSubmission
	f.reports.submitNormalFunc = func(ctx context.Context, in service.NormalSubmission) (*entity.Report, error) {
		got = in
		if in.Description == "" {
			return nil, fmt.Errorf("%w: description is required", workflow.ErrValidation)
		}
		return &entity.Report{ID: "2025-0001"}, nil
	}

	rec := f.do(http.MethodPost, "/api/reports/normal", `{"reporter_name":"Sam","description":"Spill"}`)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "Sam", got.ReporterName)

	rec = f.do(http.MethodPost, "/api/reports/normal", `{"reporter_name":"Sam"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "VALIDATION_FAILED", decode(t, rec).ErrorCode)

	rec = f.do(http.MethodPost, "/api/reports/normal", `{`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubmitConfidential_ReturnsFollowUpKey(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.do(http.MethodPost, "/api/reports/confidential", `{"description":"x","secrecy_reason":"y"}`)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"follow_up_key":"key-1"`)
}

func TestApplyAction_ErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		report   *entity.Report
		status   int
		code     string
		withData bool
	}{
		{"applied", nil, &entity.Report{ID: "2025-0001"}, http.StatusOK, "", true},
		{"not found", workflow.ErrNotFound, nil, http.StatusNotFound, "NOT_FOUND", false},
		{"forbidden", workflow.ErrForbidden, nil, http.StatusForbidden, "FORBIDDEN", false},
		{"closed", workflow.ErrAlreadyClosed, &entity.Report{ID: "2025-0001", StageIndex: domainwf.StageClosed}, http.StatusConflict, "ALREADY_CLOSED", true},
		{"missing assignment", workflow.ErrMissingAssignment, nil, http.StatusUnprocessableEntity, "MISSING_ASSIGNMENT", false},
		{"conflict", workflow.ErrConcurrentUpdate, nil, http.StatusConflict, "CONCURRENT_UPDATE", false},
		{"store", errors.New("disk full"), nil, http.StatusInternalServerError, "INTERNAL", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil)
			f.engine.applyFunc = func(ctx context.Context, reportID string, action domainwf.Action, note string) (*entity.Report, error) {
				return tt.report, tt.err
			}

			rec := f.do(http.MethodPost, "/api/reports/2025-0001/close", `{"note":"done"}`)
			assert.Equal(t, tt.status, rec.Code)
			resp := decode(t, rec)
			assert.Equal(t, tt.code, resp.ErrorCode)
			assert.Equal(t, tt.withData, resp.Data != nil)
			if tt.status == http.StatusInternalServerError {
				assert.Equal(t, "internal error", resp.Error)
			}
		})
	}
}

func TestApplyAction_RoutesActionAndNote(t *testing.T) {
	f := newFixture(t, nil)
	var gotAction domainwf.Action
	var gotNote string
	f.engine.applyFunc = func(ctx context.Context, reportID string, action domainwf.Action, note string) (*entity.Report, error) {
		gotAction, gotNote = action, note
		return &entity.Report{ID: reportID}, nil
	}

	rec := f.do(http.MethodPost, "/api/reports/2025-0001/forward", `{"note":"crew on site"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domainwf.ActionForward, gotAction)
	assert.Equal(t, "crew on site", gotNote)

	rec = f.do(http.MethodPost, "/api/reports/2025-0001/escalate", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domainwf.ActionEscalate, gotAction)
	assert.Empty(t, gotNote)
}

func TestAuthMiddleware_AttachesUser(t *testing.T) {
	f := newFixture(t, nil)
	var seen *entity.User
	f.engine.applyFunc = func(ctx context.Context, reportID string, action domainwf.Action, note string) (*entity.Report, error) {
		seen = auth.UserFromContext(ctx)
		return &entity.Report{ID: reportID}, nil
	}

	f.do(http.MethodPost, "/api/reports/2025-0001/receive", "", "Authorization", "Bearer good")
	require.NotNil(t, seen)
	assert.Equal(t, "Dana", seen.Name)

	seen = nil
	f.do(http.MethodPost, "/api/reports/2025-0001/receive", "", "Authorization", "Bearer bad")
	assert.Nil(t, seen)

	f.do(http.MethodPost, "/api/reports/2025-0001/receive", "", "Authorization", "Basic abc")
	assert.Nil(t, seen)
}

func TestUpdateAssignment(t *testing.T) {
	f := newFixture(t, nil)
	f.engine.assignmentFunc = func(ctx context.Context, reportID string, a workflow.Assignment) (*entity.Report, error) {
		if a.Department == "" {
			return nil, workflow.ErrMissingAssignment
		}
		return &entity.Report{ID: reportID, AssignedDept: a.Department}, nil
	}

	rec := f.do(http.MethodPut, "/api/reports/2025-0001/assignment", `{"department":"Maintenance","executor":"Ali"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"assigned_dept":"Maintenance"`)

	rec = f.do(http.MethodPut, "/api/reports/2025-0001/assignment", `{"executor":"Ali"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestNotes(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(http.MethodPut, "/api/reports/2025-0001/stages/3/note", `{"text":"called the site"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"saved":true`)

	rec = f.do(http.MethodGet, "/api/reports/2025-0001/stages/3/note", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"note":"called the site"`)

	rec = f.do(http.MethodGet, "/api/reports/2025-0001/stages/3/has-note", "")
	assert.Contains(t, rec.Body.String(), `"has_note":true`)

	rec = f.do(http.MethodGet, "/api/reports/2025-0001/notes", "")
	assert.Contains(t, rec.Body.String(), `"3":true`)

	rec = f.do(http.MethodPut, "/api/reports/2025-0001/stages/3/note", `{"text":"   "}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "EMPTY_NOTE", decode(t, rec).ErrorCode)

	rec = f.do(http.MethodGet, "/api/reports/2025-0001/stages/abc/note", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "INVALID_STAGE", decode(t, rec).ErrorCode)

	rec = f.do(http.MethodGet, "/api/reports/2025-0001/stages/12/note", "")
	assert.Equal(t, "INVALID_STAGE", decode(t, rec).ErrorCode)
}

func TestExportReports(t *testing.T) {
	f := newFixture(t, nil)
	f.reports.listFunc = func(ctx context.Context) ([]*entity.Report, error) {
		return []*entity.Report{{ID: "2025-0002"}, {ID: "2025-0001"}}, nil
	}

	rec := f.do(http.MethodGet, "/api/reports/export", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), ".csv")
	assert.Equal(t, "2025-0002\n2025-0001\n", rec.Body.String())

	f.reports.listFunc = func(ctx context.Context) ([]*entity.Report, error) {
		return nil, workflow.ErrForbidden
	}
	rec = f.do(http.MethodGet, "/api/reports/export", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestStaticRoutesBeatReportID(t *testing.T) {
	f := newFixture(t, nil)
	var gotID string
	f.reports.getFunc = func(ctx context.Context, id string) (*entity.Report, error) {
		gotID = id
		return &entity.Report{ID: id}, nil
	}

	rec := f.do(http.MethodGet, "/api/reports/summary", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, gotID)

	f.do(http.MethodGet, "/api/reports/2025-0001", "")
	assert.Equal(t, "2025-0001", gotID)
}

func TestAuditLogAndTracking(t *testing.T) {
	f := newFixture(t, nil)
	var gotLimit int
	f.reports.auditFunc = func(ctx context.Context, id string, limit int) ([]*entity.AuditLogEntry, error) {
		gotLimit = limit
		return []*entity.AuditLogEntry{{ReportID: id, Action: "RECEIVE", CreatedAt: time.Now()}}, nil
	}
	f.reports.trackFunc = func(ctx context.Context, key string) (*service.TrackingView, error) {
		if key != "key-1" {
			return nil, workflow.ErrNotFound
		}
		return &service.TrackingView{ReportID: "2025-0002", StageLabel: "Submitted"}, nil
	}

	rec := f.do(http.MethodGet, "/api/reports/2025-0001/audit-log?limit=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, gotLimit)

	rec = f.do(http.MethodGet, "/api/track/key-1", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = f.do(http.MethodGet, "/api/track/other", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestActivity(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.do(http.MethodGet, "/api/activity", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Fire – Storage")
}

func TestMetricsMiddleware_UsesRouteTemplate(t *testing.T) {
	f := newFixture(t, nil)
	f.do(http.MethodGet, "/api/reports/2025-0001", "")
	f.do(http.MethodGet, "/nowhere", "")

	rec := f.do(http.MethodGet, "/metrics", "")
	assert.Equal(t, "metrics", rec.Body.String())
	assert.Equal(t, []string{"GET /api/reports/:id 200", "GET unmatched 404"}, f.metrics.routes)
}

func TestRateLimiter(t *testing.T) {
	f := newFixture(t, func(cfg *ServerConfig) {
		cfg.RateLimit = RateLimitConfig{Enabled: true, RequestsPerSecond: 0.001, Burst: 2}
	})

	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/health", "").Code)
	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/health", "").Code)
	rec := f.do(http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "RATE_LIMITED", decode(t, rec).ErrorCode)
}

func TestIPRateLimiter_SweepsIdleVisitors(t *testing.T) {
	rl := newIPRateLimiter(1, 1)
	now := time.Now()
	rl.now = func() time.Time { return now }

	rl.limiterFor("10.0.0.1")
	now = now.Add(5 * time.Minute)
	rl.limiterFor("10.0.0.2")

	assert.Len(t, rl.visitors, 1)
	assert.Contains(t, rl.visitors, "10.0.0.2")
}
