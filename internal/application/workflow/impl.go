package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/garyjia/ohsms/internal/application/dispatcher"
	"github.com/garyjia/ohsms/internal/application/port"
	"github.com/garyjia/ohsms/internal/domain/entity"
	"github.com/garyjia/ohsms/internal/domain/event"
	domainwf "github.com/garyjia/ohsms/internal/domain/workflow"
)

// Outcome labels reported to the metrics recorder
const (
	OutcomeApplied  = "applied"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
)

// engineImpl is the concrete implementation of ReportEngine
type engineImpl struct {
	reportRepo port.ReportRepository
	txManager  port.TransactionManager
	authorizer port.Authorizer
	dispatcher dispatcher.Dispatcher
	metrics    MetricsRecorder
	logger     Logger
	now        func() time.Time
}

// EngineOption configures the report engine
type EngineOption func(*engineImpl)

// WithDispatcher sets the event dispatcher for emitting events
func WithDispatcher(d dispatcher.Dispatcher) EngineOption {
	return func(e *engineImpl) {
		e.dispatcher = d
	}
}

// WithMetrics sets the recorder for action outcomes
func WithMetrics(m MetricsRecorder) EngineOption {
	return func(e *engineImpl) {
		e.metrics = m
	}
}

// WithLogger sets a logger for the engine
func WithLogger(logger Logger) EngineOption {
	return func(e *engineImpl) {
		e.logger = logger
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) EngineOption {
	return func(e *engineImpl) {
		e.now = now
	}
}

// NewEngine creates a new report engine
func NewEngine(
	reportRepo port.ReportRepository,
	txManager port.TransactionManager,
	authorizer port.Authorizer,
	opts ...EngineOption,
) ReportEngine {
	e := &engineImpl{
		reportRepo: reportRepo,
		txManager:  txManager,
		authorizer: authorizer,
		now:        time.Now,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

func (e *engineImpl) Receive(ctx context.Context, reportID, note string) (*entity.Report, error) {
	return e.Apply(ctx, reportID, domainwf.ActionReceive, note)
}

func (e *engineImpl) Assign(ctx context.Context, reportID, note string) (*entity.Report, error) {
	return e.Apply(ctx, reportID, domainwf.ActionAssign, note)
}

func (e *engineImpl) Forward(ctx context.Context, reportID, note string) (*entity.Report, error) {
	return e.Apply(ctx, reportID, domainwf.ActionForward, note)
}

func (e *engineImpl) Done(ctx context.Context, reportID, note string) (*entity.Report, error) {
	return e.Apply(ctx, reportID, domainwf.ActionDone, note)
}

func (e *engineImpl) Close(ctx context.Context, reportID, note string) (*entity.Report, error) {
	return e.Apply(ctx, reportID, domainwf.ActionClose, note)
}

func (e *engineImpl) Escalate(ctx context.Context, reportID, note string) (*entity.Report, error) {
	return e.Apply(ctx, reportID, domainwf.ActionEscalate, note)
}

// Apply loads the report, runs the action and persists the result in one transaction
func (e *engineImpl) Apply(ctx context.Context, reportID string, action domainwf.Action, note string) (*entity.Report, error) {
	if !action.IsValid() {
		return nil, fmt.Errorf("%w: unknown action %q", ErrValidation, action)
	}

	user := e.authorizer.CurrentUser(ctx)
	if !e.authorizer.HasPermission(user, action.Permission()) {
		err := fmt.Errorf("%w: %s requires %s", ErrForbidden, action, action.Permission())
		e.reject(ctx, reportID, action, user, err)
		return nil, err
	}

	actor := user.DisplayName()
	note = strings.TrimSpace(note)

	var (
		result    *entity.Report
		outcome   error
		fromStage domainwf.Stage
	)

	err := e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		report, err := e.load(txCtx, reportID)
		if err != nil {
			return err
		}
		fromStage = report.StageIndex

		now := e.now()
		if action == domainwf.ActionEscalate {
			escalate(report, note, actor, now)
		} else {
			outcome = e.advance(txCtx, report, action, note, actor, now)
			if outcome != nil && !errors.Is(outcome, ErrAlreadyClosed) {
				return outcome
			}
		}
		report.UpdatedAt = now

		if err := e.reportRepo.Put(txCtx, report); err != nil {
			return fmt.Errorf("failed to persist report %s: %w", reportID, err)
		}
		result = report
		return nil
	})

	if err != nil {
		e.reject(ctx, reportID, action, user, err)
		return nil, err
	}

	if outcome != nil {
		e.reject(ctx, reportID, action, user, outcome)
		return result, outcome
	}

	e.observe(action, OutcomeApplied)
	e.emitApplied(ctx, result, action, fromStage, note, actor)

	if e.logger != nil {
		e.logger.Info("Report action applied",
			"report_id", reportID,
			"action", action,
			"from_stage", int(fromStage),
			"to_stage", int(result.StageIndex),
			"actor", actor,
		)
	}

	return result, nil
}

// UpdateAssignment sets the referral metadata. An empty department is rejected.
func (e *engineImpl) UpdateAssignment(ctx context.Context, reportID string, assignment Assignment) (*entity.Report, error) {
	user := e.authorizer.CurrentUser(ctx)
	if !e.authorizer.HasPermission(user, domainwf.PermissionAssign) {
		return nil, fmt.Errorf("%w: assignment requires %s", ErrForbidden, domainwf.PermissionAssign)
	}

	assignment.Department = strings.TrimSpace(assignment.Department)
	assignment.Coordinator = strings.TrimSpace(assignment.Coordinator)
	assignment.Executor = strings.TrimSpace(assignment.Executor)
	if assignment.Department == "" {
		return nil, fmt.Errorf("%w: department is required", ErrMissingAssignment)
	}

	var result *entity.Report
	err := e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		report, err := e.load(txCtx, reportID)
		if err != nil {
			return err
		}

		now := e.now()
		report.AssignedDept = assignment.Department
		report.Coordinator = assignment.Coordinator
		report.Executor = assignment.Executor
		report.AppendHistory(entity.HistoryAssignmentUpdated, describeAssignment(assignment), user.DisplayName(), now)
		report.UpdatedAt = now

		if err := e.reportRepo.Put(txCtx, report); err != nil {
			return fmt.Errorf("failed to persist report %s: %w", reportID, err)
		}
		result = report
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.publish(ctx, event.NewEvent(event.TypeAssignmentUpdate, reportID, map[string]interface{}{
		event.KeyActor: user.DisplayName(),
		event.KeyNote:  describeAssignment(assignment),
	}))

	return result, nil
}

func (e *engineImpl) load(ctx context.Context, reportID string) (*entity.Report, error) {
	report, err := e.reportRepo.Get(ctx, reportID)
	if err != nil {
		return nil, fmt.Errorf("failed to load report %s: %w", reportID, err)
	}
	if report == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, reportID)
	}
	return report, nil
}

// advance fires a stage action. On a closed report the history row is still
// appended and ErrAlreadyClosed is returned so the caller persists it.
func (e *engineImpl) advance(ctx context.Context, report *entity.Report, action domainwf.Action, note, actor string, now time.Time) error {
	machine, err := BuildReportStateMachine(report)
	if err != nil {
		return err
	}

	if err := machine.Fire(ctx, action); err != nil {
		switch {
		case errors.Is(err, domainwf.ErrGuardFailed):
			return fmt.Errorf("%w: report %s", ErrMissingAssignment, report.ID)
		case errors.Is(err, domainwf.ErrInvalidTransition) && report.IsClosed():
			report.AppendHistory(action.Label(), note, actor, now)
			return fmt.Errorf("%w: report %s", ErrAlreadyClosed, report.ID)
		default:
			return fmt.Errorf("failed to fire %s: %w", action, err)
		}
	}

	report.StageIndex = machine.Stage()
	stampTimestamps(report, action, actor, now)
	report.AppendHistory(action.Label(), note, actor, now)
	return nil
}

// stampTimestamps sets the stage-entry fields for an action. Fields already set are kept.
func stampTimestamps(report *entity.Report, action domainwf.Action, actor string, now time.Time) {
	switch action {
	case domainwf.ActionReceive:
		if entity.SetOnce(&report.ReceivedAt, now) && report.ReceivedBy == "" {
			report.ReceivedBy = actor
		}
	case domainwf.ActionAssign:
		entity.SetOnce(&report.AssignedAt, now)
	case domainwf.ActionForward:
		entity.SetOnce(&report.ForwardedAt, now)
		entity.SetOnce(&report.WorkStartedAt, *report.ForwardedAt)
	case domainwf.ActionDone:
		entity.SetOnce(&report.DoneAt, now)
	case domainwf.ActionClose:
		entity.SetOnce(&report.ClosedAt, now)
	}
}

// escalate bumps the counter and records the selected target. It never touches the stage.
func escalate(report *entity.Report, note, actor string, now time.Time) {
	report.EscalationLevel++
	text := "Escalated to " + domainwf.EscalationTarget(report.EscalationLevel)
	if note != "" {
		text += ": " + note
	}
	report.AppendHistory(domainwf.ActionEscalate.Label(), text, actor, now)
}

func describeAssignment(a Assignment) string {
	parts := []string{"Department: " + a.Department}
	if a.Coordinator != "" {
		parts = append(parts, "Coordinator: "+a.Coordinator)
	}
	if a.Executor != "" {
		parts = append(parts, "Executor: "+a.Executor)
	}
	return strings.Join(parts, ", ")
}

func (e *engineImpl) emitApplied(ctx context.Context, report *entity.Report, action domainwf.Action, from domainwf.Stage, note, actor string) {
	if action == domainwf.ActionEscalate {
		e.publish(ctx, event.NewEvent(event.TypeReportEscalated, report.ID, map[string]interface{}{
			event.KeyAction: action.String(),
			event.KeyActor:  actor,
			event.KeyLevel:  report.EscalationLevel,
			event.KeyTarget: domainwf.EscalationTarget(report.EscalationLevel),
			event.KeyNote:   note,
		}))
		return
	}

	e.publish(ctx, event.NewEvent(event.TypeStageAdvanced, report.ID, map[string]interface{}{
		event.KeyAction:    action.String(),
		event.KeyActor:     actor,
		event.KeyFromStage: int(from),
		event.KeyToStage:   int(report.StageIndex),
		event.KeyNote:      note,
	}))
}

// reject records a refused action. Infrastructure failures are only logged.
func (e *engineImpl) reject(ctx context.Context, reportID string, action domainwf.Action, user *entity.User, cause error) {
	if e.logger != nil {
		e.logger.Error("Report action rejected",
			"report_id", reportID,
			"action", action,
			"error", cause,
		)
	}

	if !isDomainError(cause) {
		e.observe(action, OutcomeFailed)
		return
	}
	e.observe(action, OutcomeRejected)

	if errors.Is(cause, ErrNotFound) {
		return
	}
	e.publish(ctx, event.NewEvent(event.TypeActionRejected, reportID, map[string]interface{}{
		event.KeyAction: action.String(),
		event.KeyActor:  user.DisplayName(),
		event.KeyReason: cause.Error(),
	}))
}

func (e *engineImpl) observe(action domainwf.Action, outcome string) {
	if e.metrics != nil {
		e.metrics.ObserveAction(action.String(), outcome)
	}
}

func (e *engineImpl) publish(ctx context.Context, evt *event.Event) {
	if e.dispatcher == nil {
		return
	}
	// Handlers outlive the request
	e.dispatcher.DispatchAsync(context.WithoutCancel(ctx), evt)
}

func isDomainError(err error) bool {
	for _, kind := range []error{ErrNotFound, ErrAlreadyClosed, ErrMissingAssignment, ErrForbidden, ErrValidation, ErrInvalidStage} {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}
