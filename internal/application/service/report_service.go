package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/garyjia/ohsms/internal/application/dispatcher"
	"github.com/garyjia/ohsms/internal/application/port"
	wf "github.com/garyjia/ohsms/internal/application/workflow"
	"github.com/garyjia/ohsms/internal/domain/entity"
	"github.com/garyjia/ohsms/internal/domain/event"
	domainwf "github.com/garyjia/ohsms/internal/domain/workflow"
	"github.com/garyjia/ohsms/pkg/utils"
)

// submitAttempts bounds the retries when two submissions race for the same id
const submitAttempts = 3

// NormalSubmission is the input of a named report
type NormalSubmission struct {
	ReporterName string `json:"reporter_name"`
	Contact      string `json:"contact"`
	Location     string `json:"location"`
	HazardNote   string `json:"hazard_note"`
	Description  string `json:"description"`
}

// ConfidentialSubmission is the input of an anonymous report. The reporter
// identity is accepted but never stored.
type ConfidentialSubmission struct {
	Location      string `json:"location"`
	HazardNote    string `json:"hazard_note"`
	Description   string `json:"description"`
	SecrecyReason string `json:"secrecy_reason"`
}

// UrgentSubmission is the minimal input of an urgent report
type UrgentSubmission struct {
	ReporterName string `json:"reporter_name"`
	Contact      string `json:"contact"`
	Location     string `json:"location"`
	Description  string `json:"description"`
}

// ConfidentialReceipt is returned once to the anonymous reporter
type ConfidentialReceipt struct {
	Report      *entity.Report `json:"report"`
	FollowUpKey string         `json:"follow_up_key"`
}

// TrackingView is the redacted status shown to a confidential reporter
type TrackingView struct {
	ReportID   string    `json:"report_id"`
	StageIndex int       `json:"stage_index"`
	StageLabel string    `json:"stage_label"`
	Closed     bool      `json:"closed"`
	Actions    []string  `json:"actions"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// ReportService manages report submission and read access
type ReportService interface {
	SubmitNormal(ctx context.Context, in NormalSubmission) (*entity.Report, error)
	SubmitConfidential(ctx context.Context, in ConfidentialSubmission) (*ConfidentialReceipt, error)
	SubmitUrgent(ctx context.Context, in UrgentSubmission) (*entity.Report, error)
	GetReport(ctx context.Context, id string) (*entity.Report, error)
	ListReports(ctx context.Context) ([]*entity.Report, error)
	Summary(ctx context.Context) (*entity.ReportSummary, error)
	TrackConfidential(ctx context.Context, key string) (*TrackingView, error)
	ListAuditLog(ctx context.Context, reportID string, limit int) ([]*entity.AuditLogEntry, error)
}

type reportServiceImpl struct {
	reportRepo port.ReportRepository
	auditRepo  port.AuditLogRepository
	txManager  port.TransactionManager
	authorizer port.Authorizer
	dispatcher dispatcher.Dispatcher
	logger     Logger
	now        func() time.Time
	newKey     func() string
}

// ReportServiceOption configures the report service
type ReportServiceOption func(*reportServiceImpl)

// WithReportClock overrides the time source
func WithReportClock(now func() time.Time) ReportServiceOption {
	return func(s *reportServiceImpl) {
		s.now = now
	}
}

// WithReportDispatcher emits report.submitted events
func WithReportDispatcher(d dispatcher.Dispatcher) ReportServiceOption {
	return func(s *reportServiceImpl) {
		s.dispatcher = d
	}
}

// NewReportService creates a new ReportService
func NewReportService(
	reportRepo port.ReportRepository,
	auditRepo port.AuditLogRepository,
	txManager port.TransactionManager,
	authorizer port.Authorizer,
	logger Logger,
	opts ...ReportServiceOption,
) ReportService {
	s := &reportServiceImpl{
		reportRepo: reportRepo,
		auditRepo:  auditRepo,
		txManager:  txManager,
		authorizer: authorizer,
		logger:     logger,
		now:        time.Now,
		newKey:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SubmitNormal records a named report
func (s *reportServiceImpl) SubmitNormal(ctx context.Context, in NormalSubmission) (*entity.Report, error) {
	description := utils.SanitizeText(in.Description)
	if description == "" {
		return nil, fmt.Errorf("%w: description is required", wf.ErrValidation)
	}
	if err := checkLengths(map[string]string{
		"reporter_name": in.ReporterName,
		"contact":       in.Contact,
		"location":      in.Location,
		"hazard_note":   in.HazardNote,
		"description":   description,
	}); err != nil {
		return nil, err
	}

	report := &entity.Report{
		Kind:         entity.KindNormal,
		ReporterName: orDefault(in.ReporterName, entity.DefaultNotSpecified),
		Contact:      orDefault(in.Contact, entity.DefaultNotSpecified),
		Location:     orDefault(in.Location, entity.DefaultLocation),
		HazardNote:   utils.SanitizeText(in.HazardNote),
		Description:  description,
	}
	return s.create(ctx, report, entity.HistorySubmittedNormal)
}

// SubmitConfidential records an anonymous report and returns its follow-up key
func (s *reportServiceImpl) SubmitConfidential(ctx context.Context, in ConfidentialSubmission) (*ConfidentialReceipt, error) {
	description := utils.SanitizeText(in.Description)
	reason := utils.SanitizeText(in.SecrecyReason)
	var missing []string
	if description == "" {
		missing = append(missing, "description")
	}
	if reason == "" {
		missing = append(missing, "secrecy_reason")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s required", wf.ErrValidation, strings.Join(missing, ", "))
	}
	if err := checkLengths(map[string]string{
		"location":       in.Location,
		"hazard_note":    in.HazardNote,
		"description":    description,
		"secrecy_reason": reason,
	}); err != nil {
		return nil, err
	}

	key := s.newKey()
	report := &entity.Report{
		Kind:          entity.KindConfidential,
		ReporterName:  entity.RedactedReporter,
		Contact:       entity.RedactedContact,
		Location:      orDefault(in.Location, entity.DefaultLocation),
		HazardNote:    utils.SanitizeText(in.HazardNote),
		Description:   description,
		SecrecyReason: reason,
		FollowUpKey:   key,
	}
	created, err := s.create(ctx, report, entity.HistorySubmittedConfidential)
	if err != nil {
		return nil, err
	}
	return &ConfidentialReceipt{Report: created, FollowUpKey: key}, nil
}

// SubmitUrgent records an urgent report. All fields are optional.
func (s *reportServiceImpl) SubmitUrgent(ctx context.Context, in UrgentSubmission) (*entity.Report, error) {
	if err := checkLengths(map[string]string{
		"reporter_name": in.ReporterName,
		"contact":       in.Contact,
		"location":      in.Location,
		"description":   in.Description,
	}); err != nil {
		return nil, err
	}
	report := &entity.Report{
		Kind:         entity.KindUrgent,
		ReporterName: orDefault(in.ReporterName, entity.DefaultNotSpecified),
		Contact:      orDefault(in.Contact, entity.DefaultNotSpecified),
		Location:     orDefault(in.Location, entity.DefaultLocation),
		Description:  orDefault(in.Description, entity.DefaultNotSpecified),
	}
	return s.create(ctx, report, entity.HistoryUrgentLogged)
}

// create assigns the next id of the current year and stores the report with
// its seed history entry. A lost race on the id is retried.
func (s *reportServiceImpl) create(ctx context.Context, report *entity.Report, seedLabel string) (*entity.Report, error) {
	now := s.now()
	report.StageIndex = domainwf.StageSubmitted
	report.CreatedAt = now
	report.UpdatedAt = now
	report.History = nil
	report.AppendHistory(seedLabel, "", "", now)

	var err error
	for attempt := 1; attempt <= submitAttempts; attempt++ {
		err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
			ids, err := s.reportRepo.IDsForYear(txCtx, now.Year())
			if err != nil {
				return fmt.Errorf("list ids for %d: %w", now.Year(), err)
			}
			report.ID = entity.NextReportID(now.Year(), ids)
			report.Version = 0
			return s.reportRepo.Put(txCtx, report)
		})
		if !errors.Is(err, port.ErrConcurrentUpdate) {
			break
		}
		s.logger.Info("Report id taken, retrying", "report_id", report.ID, "attempt", attempt)
	}
	if err != nil {
		s.logger.Error("Failed to create report", "error", err, "kind", report.Kind)
		return nil, err
	}

	s.logger.Info("Report submitted", "report_id", report.ID, "kind", report.Kind)

	if s.dispatcher != nil {
		s.dispatcher.DispatchAsync(context.WithoutCancel(ctx), event.NewEvent(event.TypeReportSubmitted, report.ID, map[string]interface{}{
			event.KeyKind:   string(report.Kind),
			event.KeyAction: seedLabel,
		}))
	}
	return report, nil
}

// GetReport returns a report or ErrNotFound
func (s *reportServiceImpl) GetReport(ctx context.Context, id string) (*entity.Report, error) {
	if err := s.requireView(ctx); err != nil {
		return nil, err
	}
	report, err := s.reportRepo.Get(ctx, id)
	if err != nil {
		s.logger.Error("Failed to get report", "error", err, "report_id", id)
		return nil, err
	}
	if report == nil {
		return nil, fmt.Errorf("%w: %s", wf.ErrNotFound, id)
	}
	return report, nil
}

// ListReports returns every report, newest first
func (s *reportServiceImpl) ListReports(ctx context.Context) ([]*entity.Report, error) {
	if err := s.requireView(ctx); err != nil {
		return nil, err
	}
	reports, err := s.reportRepo.List(ctx)
	if err != nil {
		s.logger.Error("Failed to list reports", "error", err)
		return nil, err
	}
	sort.SliceStable(reports, func(i, j int) bool {
		return reports[i].CreatedAt.After(reports[j].CreatedAt)
	})
	return reports, nil
}

// Summary counts reports for the dashboard
func (s *reportServiceImpl) Summary(ctx context.Context) (*entity.ReportSummary, error) {
	reports, err := s.ListReports(ctx)
	if err != nil {
		return nil, err
	}

	return entity.Summarize(reports), nil
}

// TrackConfidential resolves a follow-up key. No authentication is required;
// the view carries no reporter or note content.
func (s *reportServiceImpl) TrackConfidential(ctx context.Context, key string) (*TrackingView, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, fmt.Errorf("%w: follow-up key is required", wf.ErrValidation)
	}

	report, err := s.reportRepo.GetByFollowUpKey(ctx, key)
	if err != nil {
		return nil, err
	}
	if report == nil || report.Kind != entity.KindConfidential {
		return nil, fmt.Errorf("%w: unknown follow-up key", wf.ErrNotFound)
	}

	actions := make([]string, 0, len(report.History))
	for _, h := range report.History {
		actions = append(actions, h.Action)
	}
	return &TrackingView{
		ReportID:   report.ID,
		StageIndex: int(report.StageIndex),
		StageLabel: report.StageLabel(),
		Closed:     report.IsClosed(),
		Actions:    actions,
		UpdatedAt:  report.UpdatedAt,
	}, nil
}

// ListAuditLog returns the audit log rows of a report, newest first
func (s *reportServiceImpl) ListAuditLog(ctx context.Context, reportID string, limit int) ([]*entity.AuditLogEntry, error) {
	if err := s.requireView(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.auditRepo.ListByReport(ctx, reportID, limit)
}

func (s *reportServiceImpl) requireView(ctx context.Context) error {
	user := s.authorizer.CurrentUser(ctx)
	if !s.authorizer.HasPermission(user, domainwf.PermissionView) {
		return fmt.Errorf("%w: requires %s", wf.ErrForbidden, domainwf.PermissionView)
	}
	return nil
}

func orDefault(value, fallback string) string {
	if v := utils.SanitizeText(value); v != "" {
		return v
	}
	return fallback
}

func checkLengths(fields map[string]string) error {
	for name, v := range fields {
		if err := utils.ValidateLength(name, v, utils.MaxTextLength); err != nil {
			return fmt.Errorf("%w: %v", wf.ErrValidation, err)
		}
	}
	return nil
}
