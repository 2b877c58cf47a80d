package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	wf "github.com/garyjia/ohsms/internal/application/workflow"
	"github.com/garyjia/ohsms/internal/domain/entity"
	"github.com/garyjia/ohsms/internal/domain/event"
	domainwf "github.com/garyjia/ohsms/internal/domain/workflow"
)

func seededReport(stage domainwf.Stage) *entity.Report {
	r := &entity.Report{ID: "2025-0001", StageIndex: stage, CreatedAt: time.Now(), Version: 1}
	r.AppendHistory(entity.HistorySubmittedNormal, "", "", r.CreatedAt)
	return r
}

func TestNoteService_SetAndGet(t *testing.T) {
	repo := newMemReportRepo(seededReport(domainwf.StageReceived))
	d := &recordingDispatcher{}
	svc := NewNoteService(repo, &mockTxManager{}, allowAll(), d, &mockLogger{})
	ctx := context.Background()

	receipt, err := svc.SetNote(ctx, "2025-0001", 1, "  checked the valve  ")
	require.NoError(t, err)
	assert.True(t, receipt.Saved)
	assert.Equal(t, 1, receipt.Stage)
	assert.False(t, receipt.SavedAt.IsZero())

	note, err := svc.GetNote(ctx, "2025-0001", 1)
	require.NoError(t, err)
	assert.Equal(t, "checked the valve", note)

	empty, err := svc.GetNote(ctx, "2025-0001", 4)
	require.NoError(t, err)
	assert.Equal(t, "", empty)

	require.Len(t, d.events, 1)
	assert.Equal(t, event.TypeNoteSaved, d.events[0].Type)
}

func TestNoteService_Upsert(t *testing.T) {
	repo := newMemReportRepo(seededReport(domainwf.StageReceived))
	svc := NewNoteService(repo, &mockTxManager{}, allowAll(), nil, &mockLogger{})
	ctx := context.Background()

	_, err := svc.SetNote(ctx, "2025-0001", 1, "first")
	require.NoError(t, err)
	_, err = svc.SetNote(ctx, "2025-0001", 1, "second")
	require.NoError(t, err)

	stored := repo.reports["2025-0001"]
	assert.Equal(t, "second", stored.StageNotes.Get(domainwf.StageReceived))
	assert.Len(t, stored.StageNotes, 1)
	assert.Len(t, stored.History, 1, "notes never touch history")
}

func TestNoteService_EmptyNoteIsNotPersisted(t *testing.T) {
	repo := newMemReportRepo(seededReport(domainwf.StageReceived))
	svc := NewNoteService(repo, &mockTxManager{}, allowAll(), nil, &mockLogger{})

	_, err := svc.SetNote(context.Background(), "2025-0001", 1, " \t\n ")
	assert.ErrorIs(t, err, wf.ErrEmptyNote)
	assert.Equal(t, int64(1), repo.reports["2025-0001"].Version)
}

func TestNoteService_Errors(t *testing.T) {
	repo := newMemReportRepo(seededReport(domainwf.StageReceived))
	ctx := context.Background()

	svc := NewNoteService(repo, &mockTxManager{}, allowAll(), nil, &mockLogger{})
	_, err := svc.SetNote(ctx, "2025-0001", 8, "x")
	assert.ErrorIs(t, err, wf.ErrInvalidStage)
	_, err = svc.GetNote(ctx, "2025-0001", -1)
	assert.ErrorIs(t, err, wf.ErrInvalidStage)
	_, err = svc.SetNote(ctx, "2025-0999", 1, "x")
	assert.ErrorIs(t, err, wf.ErrNotFound)

	viewer := &mockAuthorizer{
		user:    &entity.User{ID: "emp"},
		allowed: map[domainwf.Permission]bool{domainwf.PermissionView: true},
	}
	svc = NewNoteService(repo, &mockTxManager{}, viewer, nil, &mockLogger{})
	_, err = svc.SetNote(ctx, "2025-0001", 1, "x")
	assert.ErrorIs(t, err, wf.ErrForbidden)
}

func TestNoteService_FutureStageAndClosedReport(t *testing.T) {
	repo := newMemReportRepo(seededReport(domainwf.StageReceived))
	svc := NewNoteService(repo, &mockTxManager{}, allowAll(), nil, &mockLogger{})
	ctx := context.Background()

	_, err := svc.SetNote(ctx, "2025-0001", int(domainwf.StageCompleted), "planned fix")
	require.NoError(t, err)

	closed := seededReport(domainwf.StageClosed)
	closed.ID = "2025-0002"
	repo.reports[closed.ID] = closed
	_, err = svc.SetNote(ctx, "2025-0002", 0, "late remark")
	require.NoError(t, err)
}

func TestNoteService_HasNoteReadsThrough(t *testing.T) {
	repo := newMemReportRepo(seededReport(domainwf.StageReceived))
	svc := NewNoteService(repo, &mockTxManager{}, allowAll(), nil, &mockLogger{})
	ctx := context.Background()

	has, err := svc.HasNote(ctx, "2025-0001", 2)
	require.NoError(t, err)
	assert.False(t, has)

	// Written behind the service's back
	repo.reports["2025-0001"].StageNotes = entity.StageNotes{domainwf.StageReferred: "external"}

	has, err = svc.HasNote(ctx, "2025-0001", 2)
	require.NoError(t, err)
	assert.True(t, has)
	assert.Equal(t, 2, repo.gets)
}

func TestNoteService_NoteIndicators(t *testing.T) {
	report := seededReport(domainwf.StageInProgress)
	report.StageNotes = entity.StageNotes{domainwf.StageSubmitted: "a", domainwf.StageForwarded: "b"}
	svc := NewNoteService(newMemReportRepo(report), &mockTxManager{}, allowAll(), nil, &mockLogger{})

	indicators, err := svc.NoteIndicators(context.Background(), "2025-0001")
	require.NoError(t, err)
	require.Len(t, indicators, domainwf.StageCount)
	assert.True(t, indicators[domainwf.StageSubmitted])
	assert.True(t, indicators[domainwf.StageForwarded])
	assert.False(t, indicators[domainwf.StageClosed])
}
