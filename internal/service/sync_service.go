package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"leblingo/internal/cache"
	"leblingo/internal/domain"
	"leblingo/internal/dto"
	"leblingo/internal/logger"
	"leblingo/internal/util"

	"go.uber.org/zap"
)

const (
	syncBatchSize  = 100
	syncWindowDays = 30
	syncStateTTL   = syncWindowDays * 24 * time.Hour
)

const (
	tableUserProfiles      = "user_profiles"
	tableLessons           = "lessons"
	tableQuizzes           = "quizzes"
	tableQuizAttempts      = "quiz_attempts"
	tableErrorRecords      = "error_records"
	tableUserProgress      = "user_progress"
	tableProgressSnapshots = "progress_snapshots"
)

// syncTableOrder is the dependency order changes are collected and applied
// in.
var syncTableOrder = []string{
	tableUserProfiles,
	tableLessons,
	tableQuizzes,
	tableQuizAttempts,
	tableErrorRecords,
	tableUserProgress,
	tableProgressSnapshots,
}

// Offline action types clients may queue while disconnected.
const (
	actionLessonView        = "lesson_view"
	actionTranslationToggle = "translation_toggle"
	actionProgressUpdate    = "progress_update"
	actionQuizAttempt       = "quiz_attempt"
	actionProfileUpdate     = "profile_update"
)

// SyncService defines the interface for cross-device data synchronization.
type SyncService interface {
	// Sync exchanges changes with a client: it applies the client's changes,
	// reports conflicts, and returns the server's changes since last sync.
	Sync(ctx context.Context, userID string, req *dto.SyncRequest) (*dto.SyncResponse, error)

	// ProcessOfflineQueue replays actions a client queued while offline.
	// Actions succeed or fail individually.
	ProcessOfflineQueue(ctx context.Context, userID string, req *dto.OfflineQueueRequest) (*dto.OfflineQueueResponse, error)

	// GetStatus reports the user's last sync time and pending change count.
	GetStatus(ctx context.Context, userID string) (*dto.SyncStatusResponse, error)
}

type syncServiceImpl struct {
	profileRepo  domain.ProfileRepository
	lessonRepo   domain.LessonRepository
	quizRepo     domain.QuizRepository
	attemptRepo  domain.AttemptRepository
	progressRepo domain.ProgressRepository
	progress     ProgressService
	users        UserService
	cacheImpl    domain.Cache
}

// NewSyncService creates a new instance of SyncService. The cache is
// optional; without it last sync times are not remembered between calls.
func NewSyncService(
	profileRepo domain.ProfileRepository,
	lessonRepo domain.LessonRepository,
	quizRepo domain.QuizRepository,
	attemptRepo domain.AttemptRepository,
	progressRepo domain.ProgressRepository,
	progress ProgressService,
	users UserService,
	cacheImpl domain.Cache,
) SyncService {
	if cacheImpl == nil {
		logger.Get().Warn("sync service running without a cache, last sync times will not persist")
	}
	return &syncServiceImpl{
		profileRepo:  profileRepo,
		lessonRepo:   lessonRepo,
		quizRepo:     quizRepo,
		attemptRepo:  attemptRepo,
		progressRepo: progressRepo,
		progress:     progress,
		users:        users,
		cacheImpl:    cacheImpl,
	}
}

// profileSyncPayload is the wire shape of a user profile change.
type profileSyncPayload struct {
	DisplayName    string              `json:"display_name,omitempty"`
	PreferredLevel string              `json:"preferred_level,omitempty"`
	Settings       *dto.ProfileSettings `json:"settings,omitempty"`
}

// errorSyncPayload is the wire shape of an error record change.
type errorSyncPayload struct {
	ID            string    `json:"id"`
	LessonID      string    `json:"lesson_id"`
	QuizID        string    `json:"quiz_id"`
	QuestionIndex int       `json:"question_index"`
	ErrorType     string    `json:"error_type"`
	Token         string    `json:"token"`
	CreatedAt     time.Time `json:"created_at"`
}

// snapshotSyncPayload is the wire shape of a progress snapshot change.
type snapshotSyncPayload struct {
	PeriodDays int                    `json:"period_days"`
	Metrics    map[string]interface{} `json:"metrics"`
	ComputedAt time.Time              `json:"computed_at"`
}

// progressSyncPayload carries a client's absolute view of one lesson's
// progress. Pointer fields distinguish "unchanged" from zero.
type progressSyncPayload struct {
	Status             *string  `json:"status,omitempty"`
	LessonViews        *int     `json:"lesson_views,omitempty"`
	TranslationToggles *int     `json:"translation_toggles,omitempty"`
	TimeSpentMinutes   *int     `json:"time_spent_minutes,omitempty"`
	QuizTaken          *bool    `json:"quiz_taken,omitempty"`
	QuizScore          *float64 `json:"quiz_score,omitempty"`
	QuizAttempts       *int     `json:"quiz_attempts,omitempty"`
	BestQuizScore      *float64 `json:"best_quiz_score,omitempty"`
}

// attemptSyncPayload carries a quiz attempt recorded on a client.
type attemptSyncPayload struct {
	QuizID           string    `json:"quiz_id"`
	LessonID         string    `json:"lesson_id"`
	Score            float64   `json:"score"`
	TotalQuestions   int       `json:"total_questions"`
	CorrectAnswers   int       `json:"correct_answers"`
	StartedAt        time.Time `json:"started_at"`
	CompletedAt      time.Time `json:"completed_at"`
	TimeTakenSeconds int       `json:"time_taken_seconds"`
}

// lessonActionPayload identifies the lesson an offline action applies to.
type lessonActionPayload struct {
	LessonID string `json:"lesson_id"`
}

// progressActionPayload is the body of a queued progress_update action.
type progressActionPayload struct {
	LessonID         string `json:"lesson_id"`
	Status           string `json:"status,omitempty"`
	TimeSpentMinutes int    `json:"time_spent_minutes,omitempty"`
}

// Sync applies the client's changes in table order, skipping items a
// conflicting server change wins over, then returns the server's view.
func (s *syncServiceImpl) Sync(ctx context.Context, userID string, req *dto.SyncRequest) (*dto.SyncResponse, error) {
	if req == nil {
		req = &dto.SyncRequest{}
	}
	resolution := req.Resolution
	if resolution == "" {
		resolution = dto.ResolutionServerWins
	}
	if resolution != dto.ResolutionServerWins && resolution != dto.ResolutionClientWins {
		return nil, domain.NewInvalidInputError("resolution must be server_wins or client_wins")
	}

	since := sinceTime(req.LastSync)
	serverChanges, err := s.serverChanges(ctx, userID, since)
	if err != nil {
		return nil, err
	}
	serverIndex := make(map[string]dto.SyncChange, len(serverChanges))
	for _, change := range serverChanges {
		serverIndex[changeKey(change.Table, change.ItemID)] = change
	}

	ordered := make([]dto.SyncChange, len(req.Changes))
	copy(ordered, req.Changes)
	sort.SliceStable(ordered, func(i, j int) bool {
		return tableRank(ordered[i].Table) < tableRank(ordered[j].Table)
	})

	conflicts := []dto.SyncConflict{}
	applied := 0
	for _, change := range ordered {
		if serverChange, ok := serverIndex[changeKey(change.Table, change.ItemID)]; ok {
			conflict := dto.SyncConflict{
				Table:           change.Table,
				ItemID:          change.ItemID,
				Resolution:      dto.ResolutionServerWins,
				ServerUpdatedAt: serverChange.UpdatedAt,
				ClientUpdatedAt: change.UpdatedAt,
			}
			// client_wins still defers to the server when the server copy
			// is newer.
			if resolution == dto.ResolutionClientWins && change.UpdatedAt.After(serverChange.UpdatedAt) {
				conflict.Resolution = dto.ResolutionClientWins
			}
			conflicts = append(conflicts, conflict)
			if conflict.Resolution == dto.ResolutionServerWins {
				continue
			}
		}

		if err := s.applyClientChange(ctx, userID, change); err != nil {
			logger.Get().Warn("Failed to apply client sync change",
				zap.String("user_id", userID),
				zap.String("table", change.Table),
				zap.String("item_id", change.ItemID),
				zap.Error(err))
			continue
		}
		applied++
	}

	// Recollect so the response reflects the state after the client's
	// changes landed.
	serverChanges, err = s.serverChanges(ctx, userID, since)
	if err != nil {
		return nil, err
	}

	syncTime := time.Now()
	s.storeLastSync(ctx, userID, syncTime)

	logger.Get().Info("Sync completed",
		zap.String("user_id", userID),
		zap.Int("applied", applied),
		zap.Int("conflicts", len(conflicts)),
		zap.Int("server_changes", len(serverChanges)))

	return &dto.SyncResponse{
		ServerChanges: serverChanges,
		Conflicts:     conflicts,
		AppliedCount:  applied,
		SyncTime:      syncTime,
	}, nil
}

// ProcessOfflineQueue replays queued actions one at a time, collecting
// per-action outcomes instead of failing the batch.
func (s *syncServiceImpl) ProcessOfflineQueue(ctx context.Context, userID string, req *dto.OfflineQueueRequest) (*dto.OfflineQueueResponse, error) {
	if req == nil || len(req.Actions) == 0 {
		return nil, domain.NewInvalidInputError("at least one offline action is required")
	}

	results := make([]dto.OfflineActionResult, 0, len(req.Actions))
	failed := 0
	for _, action := range req.Actions {
		result := dto.OfflineActionResult{ID: action.ID, Success: true}
		if err := s.applyOfflineAction(ctx, userID, action); err != nil {
			result.Success = false
			result.Error = err.Error()
			failed++
			logger.Get().Warn("Failed to replay offline action",
				zap.String("user_id", userID),
				zap.String("action_id", action.ID),
				zap.String("action_type", action.Type),
				zap.Error(err))
		}
		results = append(results, result)
	}

	return &dto.OfflineQueueResponse{
		Results:   results,
		Processed: len(req.Actions) - failed,
		Failed:    failed,
	}, nil
}

// GetStatus reports the last sync time and how many server changes await
// the client.
func (s *syncServiceImpl) GetStatus(ctx context.Context, userID string) (*dto.SyncStatusResponse, error) {
	lastSync := s.loadLastSync(ctx, userID)
	changes, err := s.serverChanges(ctx, userID, sinceTime(lastSync))
	if err != nil {
		return nil, err
	}
	return &dto.SyncStatusResponse{
		LastSync:       lastSync,
		PendingChanges: len(changes),
		ServerTime:     time.Now(),
	}, nil
}

// serverChanges collects the server's changes since the given time across
// the sync tables, in dependency order, capped per table.
func (s *syncServiceImpl) serverChanges(ctx context.Context, userID string, since time.Time) ([]dto.SyncChange, error) {
	changes := []dto.SyncChange{}

	profile, err := s.profileRepo.GetProfile(ctx, userID)
	if err != nil {
		return nil, domain.NewDatabaseError("failed to load user profile", err)
	}
	if profile != nil && profile.UpdatedAt.After(since) {
		settings := profile.Settings
		changes = append(changes, newSyncChange(tableUserProfiles, profile.UserID, profileSyncPayload{
			DisplayName:    profile.DisplayName,
			PreferredLevel: string(profile.PreferredLevel),
			Settings: &dto.ProfileSettings{
				Dialect:              settings.Dialect,
				Difficulty:           settings.Difficulty,
				TransliterationStyle: settings.TransliterationStyle,
				DailyGoalMinutes:     settings.DailyGoalMinutes,
			},
		}, profile.UpdatedAt))
	}

	lessons, err := s.lessonRepo.ListLessonsUpdatedSince(ctx, since, syncBatchSize)
	if err != nil {
		return nil, domain.NewDatabaseError("failed to list changed lessons", err)
	}
	for i := range lessons {
		changes = append(changes, newSyncChange(tableLessons, lessons[i].ID, dto.NewLessonResponse(&lessons[i]), lessons[i].UpdatedAt))
	}

	quizzes, err := s.quizRepo.ListQuizzesUpdatedSince(ctx, since, syncBatchSize)
	if err != nil {
		return nil, domain.NewDatabaseError("failed to list changed quizzes", err)
	}
	for i := range quizzes {
		changes = append(changes, newSyncChange(tableQuizzes, quizzes[i].ID, dto.NewQuizResponse(&quizzes[i]), quizzes[i].UpdatedAt))
	}

	attempts, err := s.attemptRepo.ListAttemptsSince(ctx, userID, since)
	if err != nil {
		return nil, domain.NewDatabaseError("failed to list changed attempts", err)
	}
	if len(attempts) > syncBatchSize {
		attempts = attempts[:syncBatchSize]
	}
	for i := range attempts {
		changes = append(changes, newSyncChange(tableQuizAttempts, attempts[i].ID, dto.NewUserQuizAttemptItem(&attempts[i]), attempts[i].CompletedAt))
	}

	errorRecords, err := s.attemptRepo.ListErrorsSince(ctx, userID, since)
	if err != nil {
		return nil, domain.NewDatabaseError("failed to list changed error records", err)
	}
	if len(errorRecords) > syncBatchSize {
		errorRecords = errorRecords[:syncBatchSize]
	}
	for i := range errorRecords {
		record := &errorRecords[i]
		changes = append(changes, newSyncChange(tableErrorRecords, record.ID, errorSyncPayload{
			ID:            record.ID,
			LessonID:      record.LessonID,
			QuizID:        record.QuizID,
			QuestionIndex: record.QuestionIndex,
			ErrorType:     string(record.ErrorType),
			Token:         record.Token,
			CreatedAt:     record.CreatedAt,
		}, record.CreatedAt))
	}

	progressRows, err := s.progressRepo.ListProgressUpdatedSince(ctx, userID, since, syncBatchSize)
	if err != nil {
		return nil, domain.NewDatabaseError("failed to list changed progress", err)
	}
	for i := range progressRows {
		changes = append(changes, newSyncChange(tableUserProgress, progressRows[i].LessonID, dto.NewLessonProgressResponse(&progressRows[i]), progressRows[i].UpdatedAt))
	}

	snapshots, err := s.progressRepo.ListSnapshotsSince(ctx, userID, since)
	if err != nil {
		return nil, domain.NewDatabaseError("failed to list changed snapshots", err)
	}
	if len(snapshots) > syncBatchSize {
		snapshots = snapshots[:syncBatchSize]
	}
	for i := range snapshots {
		snapshot := &snapshots[i]
		changes = append(changes, newSyncChange(tableProgressSnapshots, strconv.Itoa(snapshot.PeriodDays), snapshotSyncPayload{
			PeriodDays: snapshot.PeriodDays,
			Metrics:    snapshot.Metrics,
			ComputedAt: snapshot.ComputedAt,
		}, snapshot.ComputedAt))
	}

	return changes, nil
}

func (s *syncServiceImpl) applyClientChange(ctx context.Context, userID string, change dto.SyncChange) error {
	switch change.Table {
	case tableUserProfiles:
		var req dto.UpdateProfileRequest
		if err := json.Unmarshal(change.Payload, &req); err != nil {
			return fmt.Errorf("malformed profile payload: %w", err)
		}
		_, err := s.users.UpdateUserProfile(ctx, userID, &req)
		return err

	case tableUserProgress:
		return s.applyProgressChange(ctx, userID, change)

	case tableQuizAttempts:
		return s.applyAttemptChange(ctx, userID, change)

	case tableErrorRecords:
		return s.applyErrorChange(ctx, userID, change)

	case tableLessons, tableQuizzes, tableProgressSnapshots:
		return fmt.Errorf("table %s is server managed", change.Table)

	default:
		return fmt.Errorf("unknown sync table %q", change.Table)
	}
}

// applyProgressChange merges a client's absolute progress state for one
// lesson. The item ID is the lesson ID.
func (s *syncServiceImpl) applyProgressChange(ctx context.Context, userID string, change dto.SyncChange) error {
	if change.ItemID == "" {
		return errors.New("progress change is missing its lesson id")
	}
	var payload progressSyncPayload
	if err := json.Unmarshal(change.Payload, &payload); err != nil {
		return fmt.Errorf("malformed progress payload: %w", err)
	}

	progress, err := s.progressRepo.GetLessonProgress(ctx, userID, change.ItemID)
	if err != nil {
		return fmt.Errorf("failed to load lesson progress: %w", err)
	}
	if progress == nil {
		progress = domain.NewUserLessonProgress(userID, change.ItemID)
		progress.ID = util.NewULID()
	}

	now := time.Now()
	if payload.Status != nil {
		status := domain.LessonStatus(*payload.Status)
		switch status {
		case domain.LessonStatusNotStarted, domain.LessonStatusInProgress, domain.LessonStatusCompleted:
		default:
			return fmt.Errorf("invalid progress status %q", *payload.Status)
		}
		if status == domain.LessonStatusCompleted && progress.Status != domain.LessonStatusCompleted {
			progress.CompletionDate = &now
		}
		progress.Status = status
	}
	if payload.LessonViews != nil {
		progress.LessonViews = *payload.LessonViews
	}
	if payload.TranslationToggles != nil {
		progress.TranslationToggles = *payload.TranslationToggles
	}
	if payload.TimeSpentMinutes != nil {
		progress.TimeSpentMinutes = *payload.TimeSpentMinutes
	}
	if payload.QuizTaken != nil {
		progress.QuizTaken = *payload.QuizTaken
	}
	if payload.QuizScore != nil {
		progress.QuizScore = *payload.QuizScore
	}
	if payload.QuizAttempts != nil {
		progress.QuizAttempts = *payload.QuizAttempts
	}
	if payload.BestQuizScore != nil {
		progress.BestQuizScore = *payload.BestQuizScore
	}
	progress.LastAccessed = now
	progress.UpdatedAt = now

	return s.progressRepo.UpsertLessonProgress(ctx, progress)
}

// applyAttemptChange records an attempt completed on a client. The client's
// item ID is kept so replays of the same queue do not duplicate rows.
func (s *syncServiceImpl) applyAttemptChange(ctx context.Context, userID string, change dto.SyncChange) error {
	var payload attemptSyncPayload
	if err := json.Unmarshal(change.Payload, &payload); err != nil {
		return fmt.Errorf("malformed attempt payload: %w", err)
	}
	if payload.QuizID == "" || payload.LessonID == "" {
		return errors.New("attempt change requires quiz_id and lesson_id")
	}
	if payload.Score < 0 || payload.Score > 1 {
		return errors.New("attempt score must be between 0 and 1")
	}

	attempt := &domain.QuizAttempt{
		ID:               change.ItemID,
		UserID:           userID,
		LessonID:         payload.LessonID,
		QuizID:           payload.QuizID,
		Score:            payload.Score,
		TotalQuestions:   payload.TotalQuestions,
		CorrectAnswers:   payload.CorrectAnswers,
		StartedAt:        payload.StartedAt,
		CompletedAt:      payload.CompletedAt,
		TimeTakenSeconds: payload.TimeTakenSeconds,
	}
	if attempt.ID == "" {
		attempt.ID = util.NewULID()
	}
	if attempt.CompletedAt.IsZero() {
		attempt.CompletedAt = time.Now()
	}
	if attempt.StartedAt.IsZero() {
		attempt.StartedAt = attempt.CompletedAt
	}

	if err := s.attemptRepo.CreateAttempt(ctx, attempt); err != nil {
		return fmt.Errorf("failed to create attempt: %w", err)
	}
	if s.progress != nil {
		if err := s.progress.RecordQuizAttempt(ctx, userID, attempt); err != nil {
			logger.Get().Warn("Failed to fold synced attempt into progress",
				zap.String("user_id", userID), zap.Error(err))
		}
	}
	return nil
}

func (s *syncServiceImpl) applyErrorChange(ctx context.Context, userID string, change dto.SyncChange) error {
	var payload errorSyncPayload
	if err := json.Unmarshal(change.Payload, &payload); err != nil {
		return fmt.Errorf("malformed error record payload: %w", err)
	}
	record := domain.ErrorRecord{
		ID:            change.ItemID,
		UserID:        userID,
		LessonID:      payload.LessonID,
		QuizID:        payload.QuizID,
		QuestionIndex: payload.QuestionIndex,
		ErrorType:     domain.ErrorType(payload.ErrorType),
		Token:         payload.Token,
		CreatedAt:     payload.CreatedAt,
	}
	if record.ID == "" {
		record.ID = util.NewULID()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}
	return s.attemptRepo.CreateErrorRecords(ctx, []domain.ErrorRecord{record})
}

func (s *syncServiceImpl) applyOfflineAction(ctx context.Context, userID string, action dto.OfflineAction) error {
	switch action.Type {
	case actionLessonView:
		var payload lessonActionPayload
		if err := json.Unmarshal(action.Payload, &payload); err != nil || payload.LessonID == "" {
			return errors.New("lesson_view requires a lesson_id")
		}
		_, err := s.progress.RecordLessonView(ctx, userID, payload.LessonID)
		return err

	case actionTranslationToggle:
		var payload lessonActionPayload
		if err := json.Unmarshal(action.Payload, &payload); err != nil || payload.LessonID == "" {
			return errors.New("translation_toggle requires a lesson_id")
		}
		_, err := s.progress.RecordTranslationToggle(ctx, userID, payload.LessonID)
		return err

	case actionProgressUpdate:
		var payload progressActionPayload
		if err := json.Unmarshal(action.Payload, &payload); err != nil || payload.LessonID == "" {
			return errors.New("progress_update requires a lesson_id")
		}
		_, err := s.progress.UpdateLessonProgress(ctx, userID, payload.LessonID, &dto.UpdateProgressRequest{
			Status:           payload.Status,
			TimeSpentMinutes: payload.TimeSpentMinutes,
		})
		return err

	case actionQuizAttempt:
		return s.applyAttemptChange(ctx, userID, dto.SyncChange{
			Table:     tableQuizAttempts,
			ItemID:    action.ID,
			Payload:   action.Payload,
			UpdatedAt: action.QueuedAt,
		})

	case actionProfileUpdate:
		var payload dto.UpdateProfileRequest
		if err := json.Unmarshal(action.Payload, &payload); err != nil {
			return fmt.Errorf("malformed profile payload: %w", err)
		}
		_, err := s.users.UpdateUserProfile(ctx, userID, &payload)
		return err

	default:
		return fmt.Errorf("unsupported action type %q", action.Type)
	}
}

func (s *syncServiceImpl) loadLastSync(ctx context.Context, userID string) *time.Time {
	if s.cacheImpl == nil {
		return nil
	}
	raw, err := s.cacheImpl.Get(ctx, cache.LastSyncKey(userID))
	if err != nil {
		if !errors.Is(err, domain.ErrCacheMiss) {
			logger.Get().Warn("Failed to read last sync time",
				zap.String("user_id", userID), zap.Error(err))
		}
		return nil
	}
	parsed, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		logger.Get().Warn("Corrupt last sync time in cache",
			zap.String("user_id", userID), zap.Error(err))
		return nil
	}
	return &parsed
}

func (s *syncServiceImpl) storeLastSync(ctx context.Context, userID string, syncTime time.Time) {
	if s.cacheImpl == nil {
		return
	}
	if err := s.cacheImpl.Set(ctx, cache.LastSyncKey(userID), syncTime.Format(time.RFC3339Nano), syncStateTTL); err != nil {
		logger.Get().Warn("Failed to store last sync time",
			zap.String("user_id", userID), zap.Error(err))
	}
}

func sinceTime(lastSync *time.Time) time.Time {
	if lastSync == nil || lastSync.IsZero() {
		return time.Now().AddDate(0, 0, -syncWindowDays)
	}
	return *lastSync
}

func newSyncChange(table, itemID string, payload interface{}, updatedAt time.Time) dto.SyncChange {
	raw, err := json.Marshal(payload)
	if err != nil {
		logger.Get().Warn("Failed to marshal sync payload",
			zap.String("table", table), zap.String("item_id", itemID), zap.Error(err))
		raw = nil
	}
	return dto.SyncChange{
		Table:     table,
		ItemID:    itemID,
		Action:    "update",
		Payload:   raw,
		UpdatedAt: updatedAt,
	}
}

func changeKey(table, itemID string) string {
	return table + ":" + itemID
}

func tableRank(table string) int {
	for i, name := range syncTableOrder {
		if name == table {
			return i
		}
	}
	return len(syncTableOrder)
}
