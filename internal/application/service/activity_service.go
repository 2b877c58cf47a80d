package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/garyjia/ohsms/internal/application/port"
	wf "github.com/garyjia/ohsms/internal/application/workflow"
	"github.com/garyjia/ohsms/internal/domain/entity"
	domainwf "github.com/garyjia/ohsms/internal/domain/workflow"
)

const (
	// ActivityHistoryDepth is the number of trailing history rows taken per report
	ActivityHistoryDepth = 3
	// ActivityLimit caps the merged feed
	ActivityLimit = 20
)

// Layouts tried, in order, for timestamps coming from external sources
var activityLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ActivityService builds the dashboard activity feed
type ActivityService interface {
	BuildAudit(ctx context.Context) ([]entity.ActivityEntry, error)
}

type activityServiceImpl struct {
	reportRepo port.ReportRepository
	risks      port.RiskSource
	forms      port.FormSubmissionSource
	authorizer port.Authorizer
	logger     Logger
}

// NewActivityService creates a new ActivityService. risks and forms may be nil.
func NewActivityService(
	reportRepo port.ReportRepository,
	risks port.RiskSource,
	forms port.FormSubmissionSource,
	authorizer port.Authorizer,
	logger Logger,
) ActivityService {
	return &activityServiceImpl{
		reportRepo: reportRepo,
		risks:      risks,
		forms:      forms,
		authorizer: authorizer,
		logger:     logger,
	}
}

type rankedEntry struct {
	entry entity.ActivityEntry
	key   int64
}

// BuildAudit merges recent report history, risk creations and form submissions
// into one feed, newest first. Timestamps that cannot be parsed sort last.
// Nothing is cached; each call reads every source.
func (s *activityServiceImpl) BuildAudit(ctx context.Context) ([]entity.ActivityEntry, error) {
	user := s.authorizer.CurrentUser(ctx)
	if !s.authorizer.HasPermission(user, domainwf.PermissionView) {
		return nil, fmt.Errorf("%w: requires %s", wf.ErrForbidden, domainwf.PermissionView)
	}

	reports, err := s.reportRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}

	var ranked []rankedEntry
	add := func(e entity.ActivityEntry) {
		ranked = append(ranked, rankedEntry{entry: e, key: parseActivityTime(e.Timestamp)})
	}

	for _, r := range reports {
		for _, h := range r.RecentHistory(ActivityHistoryDepth) {
			at := h.At
			if at.IsZero() {
				at = r.CreatedAt
			}
			text := h.Action
			if h.Note != "" {
				text += " – " + h.Note
			}
			add(entity.ActivityEntry{
				Kind:      entity.ActivityKindReport,
				SourceID:  r.ID,
				Timestamp: formatActivityTime(at),
				Text:      text,
			})
		}
	}

	if s.risks != nil {
		risks, err := s.risks.ListRisks(ctx)
		if err != nil {
			return nil, fmt.Errorf("list risks: %w", err)
		}
		for _, r := range risks {
			main := r.MainCategory
			if main == "" {
				main = "Risk"
			}
			add(entity.ActivityEntry{
				Kind:      entity.ActivityKindRisk,
				SourceID:  r.ID,
				Timestamp: r.CreatedAt,
				Text:      main + " – " + r.SubCategory,
			})
		}
	}

	if s.forms != nil {
		forms, err := s.forms.ListSubmissions(ctx)
		if err != nil {
			return nil, fmt.Errorf("list form submissions: %w", err)
		}
		for _, f := range forms {
			filler := f.FilledBy
			if filler == "" {
				filler = "unspecified user"
			}
			add(entity.ActivityEntry{
				Kind:      entity.ActivityKindForm,
				SourceID:  f.ID,
				Timestamp: f.SubmittedAt,
				Text:      "Form filled by " + filler,
			})
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].key > ranked[j].key
	})
	if len(ranked) > ActivityLimit {
		ranked = ranked[:ActivityLimit]
	}

	out := make([]entity.ActivityEntry, len(ranked))
	for i, r := range ranked {
		out[i] = r.entry
	}
	return out, nil
}

func formatActivityTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// parseActivityTime returns unix milliseconds, or 0 when raw matches no layout
func parseActivityTime(raw string) int64 {
	if raw == "" {
		return 0
	}
	for _, layout := range activityLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UnixMilli()
		}
	}
	return 0
}
