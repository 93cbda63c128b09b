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
	"leblingo/internal/config"
	"leblingo/internal/domain"
	"leblingo/internal/dto"
	"leblingo/internal/logger"
	"leblingo/internal/util"

	"go.uber.org/zap"
)

const (
	// Study time is estimated from attempt counts until the client reports
	// real durations.
	studyMinutesPerAttempt = 5

	streakLookbackDays   = 30
	defaultSummaryDays   = 7
	defaultTrendDays     = 14
	defaultAnalyticsDays = 30
	maxPeriodDays        = 90
	recentActivityLimit  = 10
	favoriteTopicLimit   = 3
	commonErrorLimit     = 5
)

// ProgressService defines the interface for tracking study activity and
// deriving analytics from it.
type ProgressService interface {
	RecordLessonView(ctx context.Context, userID, lessonID string) (*dto.LessonProgressResponse, error)
	RecordTranslationToggle(ctx context.Context, userID, lessonID string) (*dto.LessonProgressResponse, error)
	UpdateLessonProgress(ctx context.Context, userID, lessonID string, req *dto.UpdateProgressRequest) (*dto.LessonProgressResponse, error)
	GetLessonProgress(ctx context.Context, userID, lessonID string) (*dto.LessonProgressResponse, error)

	// RecordQuizAttempt folds a persisted attempt into the per-lesson
	// progress record and the profile aggregates.
	RecordQuizAttempt(ctx context.Context, userID string, attempt *domain.QuizAttempt) error

	GetSummary(ctx context.Context, userID string, days int) (*dto.ProgressSummaryResponse, error)
	GetTrends(ctx context.Context, userID string, days int) (*dto.TrendsResponse, error)
	GetDashboard(ctx context.Context, userID string) (*dto.DashboardResponse, error)
	GetAnalytics(ctx context.Context, userID string, days int) (*dto.AnalyticsResponse, error)
}

type progressServiceImpl struct {
	progressRepo domain.ProgressRepository
	attemptRepo  domain.AttemptRepository
	profileRepo  domain.ProfileRepository
	lessonRepo   domain.LessonRepository
	cacheImpl    domain.Cache
	summaryTTL   time.Duration
}

// NewProgressService creates a new instance of ProgressService. The cache is
// optional; without it summaries are recomputed on every request.
func NewProgressService(
	progressRepo domain.ProgressRepository,
	attemptRepo domain.AttemptRepository,
	profileRepo domain.ProfileRepository,
	lessonRepo domain.LessonRepository,
	cacheImpl domain.Cache,
	cfg *config.Config,
) ProgressService {
	summaryTTL := time.Hour
	if cfg != nil {
		summaryTTL = cfg.ParseTTLStringOrDefault(cfg.CacheTTLs.ProgressSummary, time.Hour)
	}
	if cacheImpl == nil {
		logger.Get().Warn("progress service running without a cache, summaries will not be reused")
	}
	return &progressServiceImpl{
		progressRepo: progressRepo,
		attemptRepo:  attemptRepo,
		profileRepo:  profileRepo,
		lessonRepo:   lessonRepo,
		cacheImpl:    cacheImpl,
		summaryTTL:   summaryTTL,
	}
}

// RecordLessonView bumps the lesson's view counter, creating the progress
// record on first contact.
func (s *progressServiceImpl) RecordLessonView(ctx context.Context, userID, lessonID string) (*dto.LessonProgressResponse, error) {
	progress, err := s.loadOrCreateProgress(ctx, userID, lessonID)
	if err != nil {
		return nil, err
	}
	progress.RecordView()
	if err := s.progressRepo.UpsertLessonProgress(ctx, progress); err != nil {
		return nil, domain.NewDatabaseError("failed to save lesson progress", err)
	}
	return dto.NewLessonProgressResponse(progress), nil
}

// RecordTranslationToggle bumps the lesson's translation toggle counter.
func (s *progressServiceImpl) RecordTranslationToggle(ctx context.Context, userID, lessonID string) (*dto.LessonProgressResponse, error) {
	progress, err := s.loadOrCreateProgress(ctx, userID, lessonID)
	if err != nil {
		return nil, err
	}
	progress.RecordToggle()
	if err := s.progressRepo.UpsertLessonProgress(ctx, progress); err != nil {
		return nil, domain.NewDatabaseError("failed to save lesson progress", err)
	}
	return dto.NewLessonProgressResponse(progress), nil
}

// UpdateLessonProgress applies an explicit client update. Completing a
// lesson refreshes the profile aggregates.
func (s *progressServiceImpl) UpdateLessonProgress(ctx context.Context, userID, lessonID string, req *dto.UpdateProgressRequest) (*dto.LessonProgressResponse, error) {
	if req == nil {
		return nil, domain.NewInvalidInputError("a progress update body is required")
	}
	if req.TimeSpentMinutes < 0 {
		return nil, domain.NewInvalidInputError("time_spent_minutes cannot be negative")
	}

	progress, err := s.loadOrCreateProgress(ctx, userID, lessonID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if req.Status != "" {
		status := domain.LessonStatus(req.Status)
		switch status {
		case domain.LessonStatusNotStarted, domain.LessonStatusInProgress, domain.LessonStatusCompleted:
		default:
			return nil, domain.NewInvalidInputError("status must be not_started, in_progress or completed")
		}
		if status == domain.LessonStatusCompleted && progress.Status != domain.LessonStatusCompleted {
			progress.CompletionDate = &now
		}
		progress.Status = status
	}
	if req.TimeSpentMinutes > 0 {
		progress.TimeSpentMinutes += req.TimeSpentMinutes
	}
	progress.LastAccessed = now
	progress.UpdatedAt = now

	if err := s.progressRepo.UpsertLessonProgress(ctx, progress); err != nil {
		return nil, domain.NewDatabaseError("failed to save lesson progress", err)
	}

	if progress.Status == domain.LessonStatusCompleted {
		if err := s.refreshProfileAggregates(ctx, userID); err != nil {
			logger.Get().Warn("Failed to refresh profile aggregates",
				zap.String("user_id", userID), zap.Error(err))
		}
	}
	return dto.NewLessonProgressResponse(progress), nil
}

// GetLessonProgress returns the user's standing on one lesson. A lesson the
// user never touched reads as a fresh not_started record.
func (s *progressServiceImpl) GetLessonProgress(ctx context.Context, userID, lessonID string) (*dto.LessonProgressResponse, error) {
	progress, err := s.progressRepo.GetLessonProgress(ctx, userID, lessonID)
	if err != nil {
		return nil, domain.NewDatabaseError("failed to load lesson progress", err)
	}
	if progress == nil {
		progress = domain.NewUserLessonProgress(userID, lessonID)
	}
	return dto.NewLessonProgressResponse(progress), nil
}

// RecordQuizAttempt updates the lesson progress with the attempt's score and
// refreshes the profile aggregates. Aggregate refresh failures are logged
// rather than returned so a slow profile never voids a recorded attempt.
func (s *progressServiceImpl) RecordQuizAttempt(ctx context.Context, userID string, attempt *domain.QuizAttempt) error {
	if attempt == nil || attempt.LessonID == "" {
		return nil
	}

	progress, err := s.loadOrCreateProgress(ctx, userID, attempt.LessonID)
	if err != nil {
		return err
	}
	progress.RecordQuizAttempt(attempt.Score)
	if err := s.progressRepo.UpsertLessonProgress(ctx, progress); err != nil {
		return domain.NewDatabaseError("failed to save lesson progress", err)
	}

	if err := s.refreshProfileAggregates(ctx, userID); err != nil {
		logger.Get().Warn("Failed to refresh profile aggregates",
			zap.String("user_id", userID), zap.Error(err))
	}
	return nil
}

// GetSummary computes study metrics over the given period plus all-time
// totals. Computed summaries are cached and snapshotted.
func (s *progressServiceImpl) GetSummary(ctx context.Context, userID string, days int) (*dto.ProgressSummaryResponse, error) {
	days = clampPeriodDays(days, defaultSummaryDays)

	cacheKey := cache.SummaryKey(userID, strconv.Itoa(days))
	if cached := s.cachedSummary(ctx, cacheKey); cached != nil {
		return cached, nil
	}

	cutoff := time.Now().AddDate(0, 0, -days)
	attempts, err := s.attemptRepo.ListAttemptsSince(ctx, userID, cutoff)
	if err != nil {
		return nil, domain.NewDatabaseError("failed to list quiz attempts", err)
	}

	summary := &dto.ProgressSummaryResponse{
		PeriodDays:       days,
		ErrorCounts:      map[string]int{},
		ImprovementAreas: []string{},
		MostCommonErrors: []dto.ErrorCount{},
	}

	lessons := make(map[string]bool)
	var scoreSum float64
	for i := range attempts {
		scoreSum += attempts[i].Score
		lessons[attempts[i].LessonID] = true
	}
	summary.QuizzesTaken = len(attempts)
	summary.LessonsStudied = len(lessons)
	summary.StudyTimeMinutes = len(attempts) * studyMinutesPerAttempt
	if len(attempts) > 0 {
		summary.Accuracy = scoreSum / float64(len(attempts))
	}

	errorCounts, err := s.attemptRepo.CountErrorsByType(ctx, userID, cutoff)
	if err != nil {
		return nil, domain.NewDatabaseError("failed to count errors", err)
	}
	for errorType, count := range errorCounts {
		summary.ErrorCounts[string(errorType)] = count
		if count > 2 {
			summary.ImprovementAreas = append(summary.ImprovementAreas, string(errorType))
		}
	}
	sort.Strings(summary.ImprovementAreas)

	streak, err := s.streakDays(ctx, userID)
	if err != nil {
		return nil, err
	}
	summary.CurrentStreak = streak

	totalAttempts, totalLessons, err := s.attemptRepo.CountAttemptTotals(ctx, userID)
	if err != nil {
		return nil, domain.NewDatabaseError("failed to count attempts", err)
	}
	summary.TotalStudyTimeMinutes = totalAttempts * studyMinutesPerAttempt
	summary.TotalLessonsStudied = totalLessons

	allErrors, err := s.attemptRepo.CountErrorsByType(ctx, userID, time.Time{})
	if err != nil {
		return nil, domain.NewDatabaseError("failed to count errors", err)
	}
	summary.MostCommonErrors = topErrorCounts(allErrors, commonErrorLimit)

	s.snapshotSummary(ctx, userID, summary)
	s.cacheSummary(ctx, cacheKey, summary)
	return summary, nil
}

// GetTrends returns a zero-filled daily activity series, oldest first, and
// the least-squares slope of its nonzero accuracy points.
func (s *progressServiceImpl) GetTrends(ctx context.Context, userID string, days int) (*dto.TrendsResponse, error) {
	days = clampPeriodDays(days, defaultTrendDays)
	points, rate, err := s.trendSeries(ctx, userID, days)
	if err != nil {
		return nil, err
	}
	return &dto.TrendsResponse{
		PeriodDays:      days,
		Points:          points,
		ImprovementRate: rate,
	}, nil
}

// GetDashboard assembles the progress overview from the profile aggregates
// and the per-lesson records.
func (s *progressServiceImpl) GetDashboard(ctx context.Context, userID string) (*dto.DashboardResponse, error) {
	profile, err := s.profileRepo.GetProfile(ctx, userID)
	if err != nil {
		return nil, domain.NewDatabaseError("failed to load user profile", err)
	}
	if profile == nil {
		profile = domain.NewUserProfile(userID, "")
	}

	rows, err := s.progressRepo.ListLessonProgress(ctx, userID)
	if err != nil {
		return nil, domain.NewDatabaseError("failed to list lesson progress", err)
	}

	weekAgo := time.Now().AddDate(0, 0, -7)
	recent := make([]domain.UserLessonProgress, 0, len(rows))
	lessonsThisWeek := 0
	for i := range rows {
		if rows[i].LastAccessed.After(weekAgo) {
			recent = append(recent, rows[i])
		}
		if rows[i].Status == domain.LessonStatusCompleted &&
			rows[i].CompletionDate != nil && rows[i].CompletionDate.After(weekAgo) {
			lessonsThisWeek++
		}
	}
	sort.Slice(recent, func(i, j int) bool { return recent[i].LastAccessed.After(recent[j].LastAccessed) })
	if len(recent) > recentActivityLimit {
		recent = recent[:recentActivityLimit]
	}

	activity := make([]dto.RecentActivityItem, 0, len(recent))
	for i := range recent {
		activity = append(activity, dto.RecentActivityItem{
			LessonID:         recent[i].LessonID,
			Status:           string(recent[i].Status),
			Timestamp:        recent[i].LastAccessed,
			TimeSpentMinutes: recent[i].TimeSpentMinutes,
		})
	}

	topicProgress, err := s.topicProgress(ctx, rows)
	if err != nil {
		return nil, err
	}

	return &dto.DashboardResponse{
		TotalLessonsCompleted: profile.TotalLessonsCompleted,
		TotalQuizzesTaken:     profile.TotalQuizzesTaken,
		AverageQuizScore:      profile.AverageQuizScore,
		CurrentStreak:         profile.CurrentStreak,
		LongestStreak:         profile.LongestStreak,
		LessonsThisWeek:       lessonsThisWeek,
		RecentActivity:        activity,
		TopicProgress:         topicProgress,
	}, nil
}

// GetAnalytics computes the detailed learning analytics view for the given
// period, including per-question-type performance and study
// recommendations.
func (s *progressServiceImpl) GetAnalytics(ctx context.Context, userID string, days int) (*dto.AnalyticsResponse, error) {
	days = clampPeriodDays(days, defaultAnalyticsDays)
	cutoff := time.Now().AddDate(0, 0, -days)

	rows, err := s.progressRepo.ListLessonProgress(ctx, userID)
	if err != nil {
		return nil, domain.NewDatabaseError("failed to list lesson progress", err)
	}
	recent := make([]domain.UserLessonProgress, 0, len(rows))
	for i := range rows {
		if rows[i].LastAccessed.After(cutoff) {
			recent = append(recent, rows[i])
		}
	}

	attempts, err := s.attemptRepo.ListAttemptsSince(ctx, userID, cutoff)
	if err != nil {
		return nil, domain.NewDatabaseError("failed to list quiz attempts", err)
	}

	resp := &dto.AnalyticsResponse{
		PeriodDays:              days,
		QuestionTypePerformance: map[string]dto.TypePerformance{},
		DailyActivity:           []dto.DailyActivityItem{},
		MostCommonErrors:        []dto.ErrorCount{},
		Recommendations:         []dto.RecommendationItem{},
	}

	completed := 0
	var views, toggles int
	for i := range recent {
		resp.StudyTimeMinutes += recent[i].TimeSpentMinutes
		views += recent[i].LessonViews
		toggles += recent[i].TranslationToggles
		if recent[i].Status == domain.LessonStatusCompleted {
			completed++
		}
	}
	resp.LessonsAccessed = len(recent)
	resp.LessonsCompleted = completed
	resp.LearningVelocity = float64(completed) / float64(days)
	if len(recent) > 0 {
		resp.AverageViewsPerLesson = float64(views) / float64(len(recent))
		resp.AverageTogglesPerLesson = float64(toggles) / float64(len(recent))
	}

	resp.QuizAttempts = len(attempts)
	var scoreSum float64
	var mcqCorrect, mcqTotal, translationCorrect, translationTotal, fillBlankCorrect, fillBlankTotal int
	for i := range attempts {
		scoreSum += attempts[i].Score
		mcqCorrect += attempts[i].MCQCorrect
		mcqTotal += attempts[i].MCQTotal
		translationCorrect += attempts[i].TranslationCorrect
		translationTotal += attempts[i].TranslationTotal
		fillBlankCorrect += attempts[i].FillBlankCorrect
		fillBlankTotal += attempts[i].FillBlankTotal
	}
	if len(attempts) > 0 {
		resp.AverageQuizScore = scoreSum / float64(len(attempts))
	}
	addTypePerformance(resp.QuestionTypePerformance, domain.QuestionTypeMCQ, mcqCorrect, mcqTotal)
	addTypePerformance(resp.QuestionTypePerformance, domain.QuestionTypeTranslation, translationCorrect, translationTotal)
	addTypePerformance(resp.QuestionTypePerformance, domain.QuestionTypeFillBlank, fillBlankCorrect, fillBlankTotal)

	resp.DailyActivity = dailyActivity(recent, days)

	errorCounts, err := s.attemptRepo.CountErrorsByType(ctx, userID, cutoff)
	if err != nil {
		return nil, domain.NewDatabaseError("failed to count errors", err)
	}
	resp.MostCommonErrors = topErrorCounts(errorCounts, commonErrorLimit)

	recommendations, err := s.recommendations(ctx, userID, days, resp.MostCommonErrors)
	if err != nil {
		return nil, err
	}
	resp.Recommendations = recommendations
	return resp, nil
}

func (s *progressServiceImpl) loadOrCreateProgress(ctx context.Context, userID, lessonID string) (*domain.UserLessonProgress, error) {
	progress, err := s.progressRepo.GetLessonProgress(ctx, userID, lessonID)
	if err != nil {
		return nil, domain.NewDatabaseError("failed to load lesson progress", err)
	}
	if progress == nil {
		progress = domain.NewUserLessonProgress(userID, lessonID)
		progress.ID = util.NewULID()
	}
	return progress, nil
}

// refreshProfileAggregates recomputes the profile's totals, streaks,
// favorite topics and per-topic performance from the progress records.
func (s *progressServiceImpl) refreshProfileAggregates(ctx context.Context, userID string) error {
	rows, err := s.progressRepo.ListLessonProgress(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to list lesson progress: %w", err)
	}
	profile, err := s.profileRepo.GetProfile(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to load user profile: %w", err)
	}
	if profile == nil {
		profile = domain.NewUserProfile(userID, "")
	}

	completed := 0
	quizzes := 0
	var scoreSum float64
	var completionDates []time.Time
	lessonIDs := make([]string, 0, len(rows))
	for i := range rows {
		lessonIDs = append(lessonIDs, rows[i].LessonID)
		if rows[i].Status != domain.LessonStatusCompleted {
			continue
		}
		completed++
		if rows[i].QuizTaken {
			quizzes++
			scoreSum += rows[i].QuizScore
		}
		if rows[i].CompletionDate != nil {
			completionDates = append(completionDates, *rows[i].CompletionDate)
		}
	}
	profile.TotalLessonsCompleted = completed
	profile.TotalQuizzesTaken = quizzes
	profile.AverageQuizScore = 0
	if quizzes > 0 {
		profile.AverageQuizScore = scoreSum / float64(quizzes)
	}

	current, longest, lastActivity := completionStreak(completionDates, time.Now())
	profile.CurrentStreak = current
	if longest > profile.LongestStreak {
		profile.LongestStreak = longest
	}
	if lastActivity != nil {
		profile.LastActivityDate = lastActivity
	}

	topics, err := s.lessonRepo.MapLessonTopics(ctx, lessonIDs)
	if err != nil {
		return err
	}
	type topicAgg struct {
		rows     int
		scored   int
		scoreSum float64
	}
	aggregates := make(map[string]*topicAgg)
	for i := range rows {
		topic, ok := topics[rows[i].LessonID]
		if !ok {
			continue
		}
		agg := aggregates[topic]
		if agg == nil {
			agg = &topicAgg{}
			aggregates[topic] = agg
		}
		agg.rows++
		if rows[i].QuizTaken {
			agg.scored++
			agg.scoreSum += rows[i].QuizScore
		}
	}

	performance := make(map[string]float64, len(aggregates))
	names := make([]string, 0, len(aggregates))
	for topic, agg := range aggregates {
		names = append(names, topic)
		if agg.scored > 0 {
			performance[topic] = agg.scoreSum / float64(agg.scored)
		}
	}
	sort.Slice(names, func(i, j int) bool {
		if aggregates[names[i]].rows != aggregates[names[j]].rows {
			return aggregates[names[i]].rows > aggregates[names[j]].rows
		}
		return names[i] < names[j]
	})
	if len(names) > favoriteTopicLimit {
		names = names[:favoriteTopicLimit]
	}
	profile.FavoriteTopics = names
	profile.TopicPerformance = performance
	profile.UpdatedAt = time.Now()

	if err := s.profileRepo.UpsertProfile(ctx, profile); err != nil {
		return fmt.Errorf("failed to save user profile: %w", err)
	}
	return nil
}

// streakDays counts consecutive days with at least one quiz attempt working
// back from today, allowing a single missed day between active ones.
func (s *progressServiceImpl) streakDays(ctx context.Context, userID string) (int, error) {
	attempts, err := s.attemptRepo.ListAttemptsSince(ctx, userID, time.Now().AddDate(0, 0, -streakLookbackDays))
	if err != nil {
		return 0, domain.NewDatabaseError("failed to list quiz attempts", err)
	}

	seen := make(map[time.Time]bool)
	dates := make([]time.Time, 0, len(attempts))
	for i := range attempts {
		day := dayOf(attempts[i].CompletedAt)
		if !seen[day] {
			seen[day] = true
			dates = append(dates, day)
		}
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].After(dates[j]) })

	streak := 0
	current := dayOf(time.Now())
	for _, day := range dates {
		switch {
		case day.Equal(current):
			streak++
			current = current.AddDate(0, 0, -1)
		case day.Equal(current.AddDate(0, 0, -1)):
			current = day.AddDate(0, 0, -1)
		default:
			return streak, nil
		}
	}
	return streak, nil
}

func (s *progressServiceImpl) trendSeries(ctx context.Context, userID string, days int) ([]dto.TrendPoint, float64, error) {
	cutoff := time.Now().AddDate(0, 0, -days)
	attempts, err := s.attemptRepo.ListAttemptsSince(ctx, userID, cutoff)
	if err != nil {
		return nil, 0, domain.NewDatabaseError("failed to list quiz attempts", err)
	}
	errorRecords, err := s.attemptRepo.ListErrorsSince(ctx, userID, cutoff)
	if err != nil {
		return nil, 0, domain.NewDatabaseError("failed to list error records", err)
	}

	type dayAgg struct {
		attempts int
		scoreSum float64
		lessons  map[string]bool
		errors   int
	}
	byDay := make(map[time.Time]*dayAgg)
	aggFor := func(day time.Time) *dayAgg {
		agg := byDay[day]
		if agg == nil {
			agg = &dayAgg{lessons: map[string]bool{}}
			byDay[day] = agg
		}
		return agg
	}
	for i := range attempts {
		agg := aggFor(dayOf(attempts[i].CompletedAt))
		agg.attempts++
		agg.scoreSum += attempts[i].Score
		agg.lessons[attempts[i].LessonID] = true
	}
	for i := range errorRecords {
		aggFor(dayOf(errorRecords[i].CreatedAt)).errors++
	}

	today := dayOf(time.Now())
	points := make([]dto.TrendPoint, 0, days)
	var accuracies []float64
	for i := days - 1; i >= 0; i-- {
		day := today.AddDate(0, 0, -i)
		point := dto.TrendPoint{Date: day.Format("2006-01-02")}
		if agg := byDay[day]; agg != nil {
			point.QuizzesTaken = agg.attempts
			point.LessonsStudied = len(agg.lessons)
			point.StudyTimeMinutes = agg.attempts * studyMinutesPerAttempt
			point.Errors = agg.errors
			if agg.attempts > 0 {
				point.Accuracy = agg.scoreSum / float64(agg.attempts)
			}
		}
		if point.Accuracy > 0 {
			accuracies = append(accuracies, point.Accuracy)
		}
		points = append(points, point)
	}
	return points, util.LeastSquaresSlope(accuracies), nil
}

func (s *progressServiceImpl) topicProgress(ctx context.Context, rows []domain.UserLessonProgress) (map[string]dto.TopicProgress, error) {
	result := make(map[string]dto.TopicProgress)
	if len(rows) == 0 {
		return result, nil
	}

	lessonIDs := make([]string, 0, len(rows))
	for i := range rows {
		lessonIDs = append(lessonIDs, rows[i].LessonID)
	}
	topics, err := s.lessonRepo.MapLessonTopics(ctx, lessonIDs)
	if err != nil {
		return nil, domain.NewDatabaseError("failed to map lesson topics", err)
	}

	type topicAgg struct {
		total     int
		completed int
		scored    int
		scoreSum  float64
	}
	aggregates := make(map[string]*topicAgg)
	for i := range rows {
		topic, ok := topics[rows[i].LessonID]
		if !ok {
			continue
		}
		agg := aggregates[topic]
		if agg == nil {
			agg = &topicAgg{}
			aggregates[topic] = agg
		}
		agg.total++
		if rows[i].Status == domain.LessonStatusCompleted {
			agg.completed++
		}
		if rows[i].QuizTaken {
			agg.scored++
			agg.scoreSum += rows[i].QuizScore
		}
	}

	for topic, agg := range aggregates {
		progress := dto.TopicProgress{
			Total:          agg.total,
			Completed:      agg.completed,
			CompletionRate: float64(agg.completed) / float64(agg.total),
		}
		if agg.scored > 0 {
			progress.AverageScore = agg.scoreSum / float64(agg.scored)
		}
		result[topic] = progress
	}
	return result, nil
}

func (s *progressServiceImpl) recommendations(ctx context.Context, userID string, days int, commonErrors []dto.ErrorCount) ([]dto.RecommendationItem, error) {
	_, improvementRate, err := s.trendSeries(ctx, userID, days)
	if err != nil {
		return nil, err
	}
	streak, err := s.streakDays(ctx, userID)
	if err != nil {
		return nil, err
	}

	items := []dto.RecommendationItem{}
	top := commonErrors
	if len(top) > 3 {
		top = top[:3]
	}
	for _, errorCount := range top {
		if item, ok := errorRecommendation(domain.ErrorType(errorCount.Type), errorCount.Count); ok {
			items = append(items, item)
		}
	}
	if improvementRate < 0 {
		items = append(items, dto.RecommendationItem{
			Title:       "Focus on Fundamentals",
			Description: "Your accuracy has been declining. Consider reviewing basic transliteration rules.",
			Priority:    "high",
			Action:      "Review lesson basics",
		})
	}
	if streak < 3 {
		items = append(items, dto.RecommendationItem{
			Title:       "Build Study Consistency",
			Description: "Regular practice leads to better retention. Try to study a little each day.",
			Priority:    "medium",
			Action:      "Set daily reminders",
		})
	}
	return items, nil
}

func (s *progressServiceImpl) cachedSummary(ctx context.Context, key string) *dto.ProgressSummaryResponse {
	if s.cacheImpl == nil {
		return nil
	}
	raw, err := s.cacheImpl.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, domain.ErrCacheMiss) {
			logger.Get().Warn("Failed to read progress summary from cache",
				zap.String("key", key), zap.Error(err))
		}
		return nil
	}
	var summary dto.ProgressSummaryResponse
	if err := json.Unmarshal([]byte(raw), &summary); err != nil {
		logger.Get().Warn("Corrupt progress summary in cache",
			zap.String("key", key), zap.Error(err))
		return nil
	}
	return &summary
}

func (s *progressServiceImpl) cacheSummary(ctx context.Context, key string, summary *dto.ProgressSummaryResponse) {
	if s.cacheImpl == nil {
		return
	}
	raw, err := json.Marshal(summary)
	if err != nil {
		return
	}
	if err := s.cacheImpl.Set(ctx, key, string(raw), s.summaryTTL); err != nil {
		logger.Get().Warn("Failed to cache progress summary",
			zap.String("key", key), zap.Error(err))
	}
}

func (s *progressServiceImpl) snapshotSummary(ctx context.Context, userID string, summary *dto.ProgressSummaryResponse) {
	snapshot := &domain.ProgressSnapshot{
		UserID:     userID,
		PeriodDays: summary.PeriodDays,
		Metrics: map[string]interface{}{
			"accuracy":           summary.Accuracy,
			"study_time_minutes": summary.StudyTimeMinutes,
			"lessons_studied":    summary.LessonsStudied,
			"quizzes_taken":      summary.QuizzesTaken,
			"current_streak":     summary.CurrentStreak,
		},
		ComputedAt: time.Now(),
	}
	if err := s.progressRepo.SaveSnapshot(ctx, snapshot); err != nil {
		logger.Get().Warn("Failed to save progress snapshot",
			zap.String("user_id", userID), zap.Error(err))
	}
}

// completionStreak derives the current and longest completion streaks from
// lesson completion dates, plus the most recent activity day. A current
// streak survives one day without a completion.
func completionStreak(dates []time.Time, now time.Time) (int, int, *time.Time) {
	seen := make(map[time.Time]bool)
	days := make([]time.Time, 0, len(dates))
	for _, d := range dates {
		day := dayOf(d)
		if !seen[day] {
			seen[day] = true
			days = append(days, day)
		}
	}
	if len(days) == 0 {
		return 0, 0, nil
	}
	sort.Slice(days, func(i, j int) bool { return days[i].After(days[j]) })
	if len(days) > streakLookbackDays {
		days = days[:streakLookbackDays]
	}

	today := dayOf(now)
	current := 0
	longest := 0
	temp := 0
	for i, day := range days {
		if i == 0 {
			if !day.Equal(today) && !day.Equal(today.AddDate(0, 0, -1)) {
				break
			}
			current = 1
			temp = 1
		} else {
			if days[i-1].AddDate(0, 0, -1).Equal(day) {
				current++
				temp++
			} else {
				temp = 1
			}
		}
		if temp > longest {
			longest = temp
		}
	}
	last := days[0]
	return current, longest, &last
}

func errorRecommendation(errorType domain.ErrorType, count int) (dto.RecommendationItem, bool) {
	item := dto.RecommendationItem{ErrorType: string(errorType), Priority: "medium"}
	if count > 5 {
		item.Priority = "high"
	}
	switch errorType {
	case domain.ErrorTypeEnglishInArabic:
		item.Title = "Practice Arabic Transliteration"
		item.Description = fmt.Sprintf("You've used English words %d times. Focus on learning Arabic equivalents.", count)
		item.Action = "Review transliteration lessons"
	case domain.ErrorTypeSpellingTranslit:
		item.Title = "Improve Transliteration Spelling"
		item.Description = fmt.Sprintf("You have %d spelling errors. Practice number substitutions (2,3,5,7,8,9).", count)
		item.Action = "Study transliteration rules"
	case domain.ErrorTypeGrammar:
		item.Title = "Work on Grammar Structure"
		item.Description = fmt.Sprintf("You have %d grammar issues. Review Lebanese Arabic sentence patterns.", count)
		item.Action = "Practice sentence structure"
	case domain.ErrorTypeVocab:
		item.Title = "Expand Your Vocabulary"
		item.Description = fmt.Sprintf("You have %d vocabulary mistakes. Learn more Lebanese Arabic words.", count)
		item.Action = "Study vocabulary lists"
	default:
		return dto.RecommendationItem{}, false
	}
	return item, true
}

// addTypePerformance records per-type accuracy, leaving question types the
// user never saw out of the map.
func addTypePerformance(perf map[string]dto.TypePerformance, questionType domain.QuestionType, correct, total int) {
	if total == 0 {
		return
	}
	perf[string(questionType)] = dto.TypePerformance{
		Correct:  correct,
		Total:    total,
		Accuracy: float64(correct) / float64(total),
	}
}

func topErrorCounts(counts map[domain.ErrorType]int, limit int) []dto.ErrorCount {
	items := make([]dto.ErrorCount, 0, len(counts))
	for errorType, count := range counts {
		items = append(items, dto.ErrorCount{Type: string(errorType), Count: count})
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Count != items[j].Count {
			return items[i].Count > items[j].Count
		}
		return items[i].Type < items[j].Type
	})
	if len(items) > limit {
		items = items[:limit]
	}
	return items
}

func dailyActivity(rows []domain.UserLessonProgress, days int) []dto.DailyActivityItem {
	type dayAgg struct {
		accessed  int
		completed int
		minutes   int
	}
	byDay := make(map[time.Time]*dayAgg)
	for i := range rows {
		day := dayOf(rows[i].LastAccessed)
		agg := byDay[day]
		if agg == nil {
			agg = &dayAgg{}
			byDay[day] = agg
		}
		agg.accessed++
		agg.minutes += rows[i].TimeSpentMinutes
		if rows[i].Status == domain.LessonStatusCompleted {
			agg.completed++
		}
	}

	today := dayOf(time.Now())
	items := make([]dto.DailyActivityItem, 0, days)
	for i := days - 1; i >= 0; i-- {
		day := today.AddDate(0, 0, -i)
		item := dto.DailyActivityItem{Date: day.Format("2006-01-02")}
		if agg := byDay[day]; agg != nil {
			item.LessonsAccessed = agg.accessed
			item.LessonsCompleted = agg.completed
			item.TimeSpentMinutes = agg.minutes
		}
		items = append(items, item)
	}
	return items
}

func clampPeriodDays(days, fallback int) int {
	if days <= 0 {
		return fallback
	}
	if days > maxPeriodDays {
		return maxPeriodDays
	}
	return days
}

func dayOf(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, t.Location())
}
