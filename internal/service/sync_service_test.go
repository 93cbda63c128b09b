package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"leblingo/internal/domain"
	"leblingo/internal/dto"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type syncFixture struct {
	store     *progressStore
	cacheImpl *memoryCache
	lessons   []domain.Lesson
	quizzes   []domain.Quiz
	created   []*domain.QuizAttempt
	records   []domain.ErrorRecord
	svc       SyncService
}

func newSyncFixture(t *testing.T) *syncFixture {
	t.Helper()
	f := &syncFixture{
		store:     newProgressStore(),
		cacheImpl: newMemoryCache(),
	}

	attemptRepo := f.store.attemptRepo()
	attemptRepo.CreateAttemptFunc = func(ctx context.Context, attempt *domain.QuizAttempt) error {
		f.created = append(f.created, attempt)
		f.store.attempts = append(f.store.attempts, *attempt)
		return nil
	}
	attemptRepo.CreateErrorRecordsFunc = func(ctx context.Context, records []domain.ErrorRecord) error {
		f.records = append(f.records, records...)
		return nil
	}

	lessonRepo := f.store.lessonRepo()
	lessonRepo.ListLessonsUpdatedSinceFunc = func(ctx context.Context, since time.Time, limit int) ([]domain.Lesson, error) {
		matched := []domain.Lesson{}
		for _, lesson := range f.lessons {
			if lesson.UpdatedAt.After(since) {
				matched = append(matched, lesson)
			}
		}
		return matched, nil
	}

	quizRepo := &mockQuizRepository{
		ListQuizzesUpdatedSinceFunc: func(ctx context.Context, since time.Time, limit int) ([]domain.Quiz, error) {
			matched := []domain.Quiz{}
			for _, quiz := range f.quizzes {
				if quiz.UpdatedAt.After(since) {
					matched = append(matched, quiz)
				}
			}
			return matched, nil
		},
	}

	progressRepo := f.store.progressRepo()
	progressRepo.ListProgressUpdatedSinceFunc = func(ctx context.Context, userID string, since time.Time, limit int) ([]domain.UserLessonProgress, error) {
		matched := []domain.UserLessonProgress{}
		for _, row := range f.store.rows {
			if row.UpdatedAt.After(since) {
				matched = append(matched, *row)
			}
		}
		return matched, nil
	}
	progressRepo.ListSnapshotsSinceFunc = func(ctx context.Context, userID string, since time.Time) ([]domain.ProgressSnapshot, error) {
		matched := []domain.ProgressSnapshot{}
		for _, snapshot := range f.store.snapshots {
			if snapshot.ComputedAt.After(since) {
				matched = append(matched, *snapshot)
			}
		}
		return matched, nil
	}

	profileRepo := f.store.profileRepo()
	progress := NewProgressService(progressRepo, attemptRepo, profileRepo, lessonRepo, nil, nil)
	users := NewUserService(userRepoWith(testUser("user1", "rima@example.com")), profileRepo, attemptRepo)

	f.svc = NewSyncService(profileRepo, lessonRepo, quizRepo, attemptRepo, progressRepo, progress, users, f.cacheImpl)
	return f
}

func mustJSON(t *testing.T, v interface{}) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return raw
}

func TestSyncReturnsServerChangesInTableOrder(t *testing.T) {
	f := newSyncFixture(t)
	now := time.Now()
	f.store.profile = &domain.UserProfile{UserID: "user1", DisplayName: "Rima", UpdatedAt: now.Add(-time.Hour)}
	f.lessons = []domain.Lesson{{ID: "lesson1", Topic: "greetings", UpdatedAt: now.Add(-time.Hour)}}
	f.store.rows["lesson1"] = &domain.UserLessonProgress{
		UserID: "user1", LessonID: "lesson1",
		Status:    domain.LessonStatusInProgress,
		UpdatedAt: now.Add(-time.Hour),
	}

	resp, err := f.svc.Sync(context.Background(), "user1", nil)
	require.NoError(t, err)
	require.Len(t, resp.ServerChanges, 3)
	assert.Equal(t, "user_profiles", resp.ServerChanges[0].Table)
	assert.Equal(t, "lessons", resp.ServerChanges[1].Table)
	assert.Equal(t, "user_progress", resp.ServerChanges[2].Table)
	assert.Empty(t, resp.Conflicts)
	assert.Zero(t, resp.AppliedCount)
	assert.False(t, resp.SyncTime.IsZero())
}

func TestSyncSkipsUnchangedServerState(t *testing.T) {
	f := newSyncFixture(t)
	lastSync := time.Now().Add(-time.Minute)
	f.store.profile = &domain.UserProfile{UserID: "user1", UpdatedAt: time.Now().Add(-time.Hour)}

	resp, err := f.svc.Sync(context.Background(), "user1", &dto.SyncRequest{LastSync: &lastSync})
	require.NoError(t, err)
	assert.Empty(t, resp.ServerChanges)
}

func TestSyncAppliesClientProgressChange(t *testing.T) {
	f := newSyncFixture(t)

	status := "completed"
	views := 7
	resp, err := f.svc.Sync(context.Background(), "user1", &dto.SyncRequest{
		Changes: []dto.SyncChange{{
			Table:     "user_progress",
			ItemID:    "lesson1",
			Payload:   mustJSON(t, progressSyncPayload{Status: &status, LessonViews: &views}),
			UpdatedAt: time.Now(),
		}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.AppliedCount)
	assert.Empty(t, resp.Conflicts)

	row := f.store.rows["lesson1"]
	require.NotNil(t, row)
	assert.Equal(t, domain.LessonStatusCompleted, row.Status)
	assert.Equal(t, 7, row.LessonViews)
	require.NotNil(t, row.CompletionDate)

	// The applied change comes back as a server change.
	var echoed bool
	for _, change := range resp.ServerChanges {
		if change.Table == "user_progress" && change.ItemID == "lesson1" {
			echoed = true
		}
	}
	assert.True(t, echoed)
}

func TestSyncConflictServerWinsByDefault(t *testing.T) {
	f := newSyncFixture(t)
	now := time.Now()
	f.store.rows["lesson1"] = &domain.UserLessonProgress{
		UserID: "user1", LessonID: "lesson1",
		Status:    domain.LessonStatusCompleted,
		UpdatedAt: now.Add(-time.Minute),
	}

	status := "not_started"
	resp, err := f.svc.Sync(context.Background(), "user1", &dto.SyncRequest{
		Changes: []dto.SyncChange{{
			Table:     "user_progress",
			ItemID:    "lesson1",
			Payload:   mustJSON(t, progressSyncPayload{Status: &status}),
			UpdatedAt: now,
		}},
	})
	require.NoError(t, err)
	assert.Zero(t, resp.AppliedCount)
	require.Len(t, resp.Conflicts, 1)
	assert.Equal(t, dto.ResolutionServerWins, resp.Conflicts[0].Resolution)
	assert.Equal(t, domain.LessonStatusCompleted, f.store.rows["lesson1"].Status)
}

func TestSyncClientWinsWhenClientIsNewer(t *testing.T) {
	f := newSyncFixture(t)
	now := time.Now()
	f.store.rows["lesson1"] = &domain.UserLessonProgress{
		UserID: "user1", LessonID: "lesson1",
		Status:    domain.LessonStatusInProgress,
		UpdatedAt: now.Add(-time.Minute),
	}

	status := "completed"
	resp, err := f.svc.Sync(context.Background(), "user1", &dto.SyncRequest{
		Resolution: dto.ResolutionClientWins,
		Changes: []dto.SyncChange{{
			Table:     "user_progress",
			ItemID:    "lesson1",
			Payload:   mustJSON(t, progressSyncPayload{Status: &status}),
			UpdatedAt: now,
		}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.AppliedCount)
	require.Len(t, resp.Conflicts, 1)
	assert.Equal(t, dto.ResolutionClientWins, resp.Conflicts[0].Resolution)
	assert.Equal(t, domain.LessonStatusCompleted, f.store.rows["lesson1"].Status)
}

func TestSyncClientWinsStillDefersToNewerServerCopy(t *testing.T) {
	f := newSyncFixture(t)
	now := time.Now()
	f.store.rows["lesson1"] = &domain.UserLessonProgress{
		UserID: "user1", LessonID: "lesson1",
		Status:    domain.LessonStatusCompleted,
		UpdatedAt: now,
	}

	status := "not_started"
	resp, err := f.svc.Sync(context.Background(), "user1", &dto.SyncRequest{
		Resolution: dto.ResolutionClientWins,
		Changes: []dto.SyncChange{{
			Table:     "user_progress",
			ItemID:    "lesson1",
			Payload:   mustJSON(t, progressSyncPayload{Status: &status}),
			UpdatedAt: now.Add(-time.Hour),
		}},
	})
	require.NoError(t, err)
	assert.Zero(t, resp.AppliedCount)
	require.Len(t, resp.Conflicts, 1)
	assert.Equal(t, dto.ResolutionServerWins, resp.Conflicts[0].Resolution)
}

func TestSyncRejectsUnknownResolution(t *testing.T) {
	f := newSyncFixture(t)

	_, err := f.svc.Sync(context.Background(), "user1", &dto.SyncRequest{Resolution: "merge"})
	require.Error(t, err)
	domainErr, ok := err.(*domain.DomainError)
	require.True(t, ok)
	assert.Equal(t, domain.CodeInvalidInput, domainErr.Code)
}

func TestSyncIgnoresServerManagedTables(t *testing.T) {
	f := newSyncFixture(t)

	resp, err := f.svc.Sync(context.Background(), "user1", &dto.SyncRequest{
		Changes: []dto.SyncChange{{
			Table:     "lessons",
			ItemID:    "lesson1",
			Payload:   mustJSON(t, map[string]string{"en_text": "tampered"}),
			UpdatedAt: time.Now(),
		}},
	})
	require.NoError(t, err)
	assert.Zero(t, resp.AppliedCount)
}

func TestSyncAppliesAttemptChange(t *testing.T) {
	f := newSyncFixture(t)

	resp, err := f.svc.Sync(context.Background(), "user1", &dto.SyncRequest{
		Changes: []dto.SyncChange{{
			Table:  "quiz_attempts",
			ItemID: "client-attempt-1",
			Payload: mustJSON(t, attemptSyncPayload{
				QuizID:         "quiz1",
				LessonID:       "lesson1",
				Score:          0.8,
				TotalQuestions: 3,
				CorrectAnswers: 2,
			}),
			UpdatedAt: time.Now(),
		}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.AppliedCount)

	require.Len(t, f.created, 1)
	attempt := f.created[0]
	assert.Equal(t, "client-attempt-1", attempt.ID)
	assert.Equal(t, "user1", attempt.UserID)
	assert.False(t, attempt.CompletedAt.IsZero())

	// The synced attempt is folded into lesson progress.
	row := f.store.rows["lesson1"]
	require.NotNil(t, row)
	assert.True(t, row.QuizTaken)
}

func TestSyncRejectsMalformedAttempt(t *testing.T) {
	f := newSyncFixture(t)

	resp, err := f.svc.Sync(context.Background(), "user1", &dto.SyncRequest{
		Changes: []dto.SyncChange{{
			Table:     "quiz_attempts",
			ItemID:    "bad",
			Payload:   mustJSON(t, attemptSyncPayload{QuizID: "quiz1", LessonID: "lesson1", Score: 1.5}),
			UpdatedAt: time.Now(),
		}},
	})
	require.NoError(t, err)
	assert.Zero(t, resp.AppliedCount)
	assert.Empty(t, f.created)
}

func TestProcessOfflineQueue(t *testing.T) {
	f := newSyncFixture(t)

	resp, err := f.svc.ProcessOfflineQueue(context.Background(), "user1", &dto.OfflineQueueRequest{
		Actions: []dto.OfflineAction{
			{ID: "a1", Type: "lesson_view", Payload: mustJSON(t, lessonActionPayload{LessonID: "lesson1"})},
			{ID: "a2", Type: "translation_toggle", Payload: mustJSON(t, lessonActionPayload{LessonID: "lesson1"})},
			{ID: "a3", Type: "quiz_attempt", Payload: mustJSON(t, attemptSyncPayload{QuizID: "quiz1", LessonID: "lesson1", Score: 0.9})},
			{ID: "a4", Type: "teleport", Payload: mustJSON(t, map[string]string{})},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, resp.Processed)
	assert.Equal(t, 1, resp.Failed)
	require.Len(t, resp.Results, 4)
	assert.True(t, resp.Results[0].Success)
	assert.True(t, resp.Results[2].Success)
	assert.False(t, resp.Results[3].Success)
	assert.Contains(t, resp.Results[3].Error, "unsupported action type")

	row := f.store.rows["lesson1"]
	require.NotNil(t, row)
	assert.Equal(t, 1, row.LessonViews)
	assert.Equal(t, 1, row.TranslationToggles)
	assert.True(t, row.QuizTaken)
	require.Len(t, f.created, 1)
	assert.Equal(t, "a3", f.created[0].ID)
}

func TestProcessOfflineQueueActionValidation(t *testing.T) {
	f := newSyncFixture(t)

	resp, err := f.svc.ProcessOfflineQueue(context.Background(), "user1", &dto.OfflineQueueRequest{
		Actions: []dto.OfflineAction{
			{ID: "a1", Type: "lesson_view", Payload: mustJSON(t, map[string]string{})},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Failed)
	assert.False(t, resp.Results[0].Success)
}

func TestProcessOfflineQueueRequiresActions(t *testing.T) {
	f := newSyncFixture(t)

	_, err := f.svc.ProcessOfflineQueue(context.Background(), "user1", &dto.OfflineQueueRequest{})
	require.Error(t, err)
	domainErr, ok := err.(*domain.DomainError)
	require.True(t, ok)
	assert.Equal(t, domain.CodeInvalidInput, domainErr.Code)
}

func TestGetStatus(t *testing.T) {
	f := newSyncFixture(t)
	f.store.profile = &domain.UserProfile{UserID: "user1", UpdatedAt: time.Now().Add(-time.Hour)}

	status, err := f.svc.GetStatus(context.Background(), "user1")
	require.NoError(t, err)
	assert.Nil(t, status.LastSync)
	assert.Equal(t, 1, status.PendingChanges)
	assert.False(t, status.ServerTime.IsZero())

	_, err = f.svc.Sync(context.Background(), "user1", nil)
	require.NoError(t, err)

	status, err = f.svc.GetStatus(context.Background(), "user1")
	require.NoError(t, err)
	require.NotNil(t, status.LastSync)
	assert.Zero(t, status.PendingChanges)
}
