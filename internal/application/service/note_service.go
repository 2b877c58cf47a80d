package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/garyjia/ohsms/internal/application/dispatcher"
	"github.com/garyjia/ohsms/internal/application/port"
	wf "github.com/garyjia/ohsms/internal/application/workflow"
	"github.com/garyjia/ohsms/internal/domain/entity"
	"github.com/garyjia/ohsms/internal/domain/event"
	domainwf "github.com/garyjia/ohsms/internal/domain/workflow"
)

// NoteReceipt acknowledges a saved stage note
type NoteReceipt struct {
	Saved    bool      `json:"saved"`
	ReportID string    `json:"report_id"`
	Stage    int       `json:"stage"`
	SavedAt  time.Time `json:"saved_at"`
}

// NoteService manages per-stage annotations. Any stage may be annotated,
// including future stages and the stages of closed reports.
type NoteService interface {
	GetNote(ctx context.Context, reportID string, stage int) (string, error)
	SetNote(ctx context.Context, reportID string, stage int, text string) (*NoteReceipt, error)
	HasNote(ctx context.Context, reportID string, stage int) (bool, error)
	NoteIndicators(ctx context.Context, reportID string) (map[domainwf.Stage]bool, error)
}

type noteServiceImpl struct {
	reportRepo port.ReportRepository
	txManager  port.TransactionManager
	authorizer port.Authorizer
	dispatcher dispatcher.Dispatcher
	logger     Logger
	now        func() time.Time
}

// NewNoteService creates a new NoteService. d may be nil.
func NewNoteService(
	reportRepo port.ReportRepository,
	txManager port.TransactionManager,
	authorizer port.Authorizer,
	d dispatcher.Dispatcher,
	logger Logger,
) NoteService {
	return &noteServiceImpl{
		reportRepo: reportRepo,
		txManager:  txManager,
		authorizer: authorizer,
		dispatcher: d,
		logger:     logger,
		now:        time.Now,
	}
}

func (s *noteServiceImpl) GetNote(ctx context.Context, reportID string, stage int) (string, error) {
	report, st, err := s.read(ctx, reportID, stage)
	if err != nil {
		return "", err
	}
	return report.StageNotes.Get(st), nil
}

// SetNote trims and upserts a note. Blank text is rejected without touching the store.
func (s *noteServiceImpl) SetNote(ctx context.Context, reportID string, stage int, text string) (*NoteReceipt, error) {
	user := s.authorizer.CurrentUser(ctx)
	if !s.authorizer.HasPermission(user, domainwf.PermissionAnnotate) {
		return nil, fmt.Errorf("%w: requires %s", wf.ErrForbidden, domainwf.PermissionAnnotate)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, wf.ErrEmptyNote
	}
	st, err := domainwf.StageFor(stage)
	if err != nil {
		return nil, err
	}

	var savedAt time.Time
	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		report, err := s.load(txCtx, reportID)
		if err != nil {
			return err
		}
		if report.StageNotes == nil {
			report.StageNotes = make(entity.StageNotes)
		}
		savedAt = s.now()
		report.StageNotes[st] = text
		report.UpdatedAt = savedAt
		return s.reportRepo.Put(txCtx, report)
	})
	if err != nil {
		s.logger.Error("Failed to save note", "error", err, "report_id", reportID, "stage", stage)
		return nil, err
	}

	s.logger.Info("Stage note saved", "report_id", reportID, "stage", stage)
	if s.dispatcher != nil {
		s.dispatcher.DispatchAsync(context.WithoutCancel(ctx), event.NewEvent(event.TypeNoteSaved, reportID, map[string]interface{}{
			event.KeyStage: int(stage),
			event.KeyActor: user.DisplayName(),
			event.KeyNote:  text,
		}))
	}

	return &NoteReceipt{Saved: true, ReportID: reportID, Stage: stage, SavedAt: savedAt}, nil
}

// HasNote reads through the store on every call
func (s *noteServiceImpl) HasNote(ctx context.Context, reportID string, stage int) (bool, error) {
	report, st, err := s.read(ctx, reportID, stage)
	if err != nil {
		return false, err
	}
	return report.StageNotes.Has(st), nil
}

// NoteIndicators returns one flag per stage for the timeline view
func (s *noteServiceImpl) NoteIndicators(ctx context.Context, reportID string) (map[domainwf.Stage]bool, error) {
	report, _, err := s.read(ctx, reportID, 0)
	if err != nil {
		return nil, err
	}
	indicators := make(map[domainwf.Stage]bool, domainwf.StageCount)
	for _, info := range domainwf.Stages() {
		indicators[info.Index] = report.StageNotes.Has(info.Index)
	}
	return indicators, nil
}

func (s *noteServiceImpl) read(ctx context.Context, reportID string, stage int) (*entity.Report, domainwf.Stage, error) {
	user := s.authorizer.CurrentUser(ctx)
	if !s.authorizer.HasPermission(user, domainwf.PermissionView) {
		return nil, 0, fmt.Errorf("%w: requires %s", wf.ErrForbidden, domainwf.PermissionView)
	}
	st, err := domainwf.StageFor(stage)
	if err != nil {
		return nil, 0, err
	}
	report, err := s.load(ctx, reportID)
	if err != nil {
		return nil, 0, err
	}
	return report, st, nil
}

func (s *noteServiceImpl) load(ctx context.Context, reportID string) (*entity.Report, error) {
	report, err := s.reportRepo.Get(ctx, reportID)
	if err != nil {
		return nil, fmt.Errorf("failed to load report %s: %w", reportID, err)
	}
	if report == nil {
		return nil, fmt.Errorf("%w: %s", wf.ErrNotFound, reportID)
	}
	return report, nil
}
