package service

import (
	"context"
	"strconv"
	"sync"
	"time"

	"leblingo/internal/domain"
	"leblingo/internal/dto"
	"leblingo/internal/repository/models"
)

// memoryCache is an in-memory domain.Cache used by service tests. Errors
// can be injected per operation through the fail* fields.
type memoryCache struct {
	mu      sync.Mutex
	values  map[string]string
	hashes  map[string]map[string]string
	sets    map[string]map[string]float64
	failGet error
	failSet error
	failZ   error
}

func newMemoryCache() *memoryCache {
	return &memoryCache{
		values: map[string]string{},
		hashes: map[string]map[string]string{},
		sets:   map[string]map[string]float64{},
	}
}

func (c *memoryCache) Get(ctx context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failGet != nil {
		return "", c.failGet
	}
	value, ok := c.values[key]
	if !ok {
		return "", domain.ErrCacheMiss
	}
	return value, nil
}

func (c *memoryCache) Set(ctx context.Context, key, value string, expiration time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failSet != nil {
		return c.failSet
	}
	c.values[key] = value
	return nil
}

func (c *memoryCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.values, key)
	delete(c.hashes, key)
	delete(c.sets, key)
	return nil
}

func (c *memoryCache) Ping(ctx context.Context) error { return nil }

func (c *memoryCache) HGet(ctx context.Context, key, field string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	hash, ok := c.hashes[key]
	if !ok {
		return "", domain.ErrCacheMiss
	}
	value, ok := hash[field]
	if !ok {
		return "", domain.ErrCacheMiss
	}
	return value, nil
}

func (c *memoryCache) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	hash, ok := c.hashes[key]
	if !ok {
		return map[string]string{}, nil
	}
	copied := make(map[string]string, len(hash))
	for field, value := range hash {
		copied[field] = value
	}
	return copied, nil
}

func (c *memoryCache) HSet(ctx context.Context, key, field, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.hashes[key] == nil {
		c.hashes[key] = map[string]string{}
	}
	c.hashes[key][field] = value
	return nil
}

func (c *memoryCache) Expire(ctx context.Context, key string, expiration time.Duration) error {
	return nil
}

func (c *memoryCache) ZAdd(ctx context.Context, key string, score float64, member string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failZ != nil {
		return c.failZ
	}
	if c.sets[key] == nil {
		c.sets[key] = map[string]float64{}
	}
	c.sets[key][member] = score
	return nil
}

func (c *memoryCache) ZRemRangeByScore(ctx context.Context, key, min, max string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failZ != nil {
		return c.failZ
	}
	// Test windows only ever prune from zero, so parsing max is enough.
	maxScore, err := strconv.ParseFloat(max, 64)
	if err != nil {
		return err
	}
	for member, score := range c.sets[key] {
		if score <= maxScore {
			delete(c.sets[key], member)
		}
	}
	return nil
}

func (c *memoryCache) ZCard(ctx context.Context, key string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failZ != nil {
		return 0, c.failZ
	}
	return int64(len(c.sets[key])), nil
}

// --- repository mocks ---

type mockLessonRepository struct {
	CreateLessonFunc            func(ctx context.Context, lesson *domain.Lesson) error
	GetLessonByIDFunc           func(ctx context.Context, id string) (*domain.Lesson, error)
	GetLessonByTopicAndTextFunc func(ctx context.Context, topic, enText string) (*domain.Lesson, error)
	GetRandomLessonByTopicFunc  func(ctx context.Context, topic string) (*domain.Lesson, error)
	ListLessonsFunc             func(ctx context.Context, topic string, level domain.Level, limit, offset int) ([]domain.Lesson, int, error)
	ListLessonsUpdatedSinceFunc func(ctx context.Context, since time.Time, limit int) ([]domain.Lesson, error)
	ListTopicsFunc              func(ctx context.Context) ([]string, error)
	MapLessonTopicsFunc         func(ctx context.Context, lessonIDs []string) (map[string]string, error)
}

func (m *mockLessonRepository) CreateLesson(ctx context.Context, lesson *domain.Lesson) error {
	return m.CreateLessonFunc(ctx, lesson)
}

func (m *mockLessonRepository) GetLessonByID(ctx context.Context, id string) (*domain.Lesson, error) {
	return m.GetLessonByIDFunc(ctx, id)
}

func (m *mockLessonRepository) GetLessonByTopicAndText(ctx context.Context, topic, enText string) (*domain.Lesson, error) {
	return m.GetLessonByTopicAndTextFunc(ctx, topic, enText)
}

func (m *mockLessonRepository) GetRandomLessonByTopic(ctx context.Context, topic string) (*domain.Lesson, error) {
	return m.GetRandomLessonByTopicFunc(ctx, topic)
}

func (m *mockLessonRepository) ListLessons(ctx context.Context, topic string, level domain.Level, limit, offset int) ([]domain.Lesson, int, error) {
	return m.ListLessonsFunc(ctx, topic, level, limit, offset)
}

func (m *mockLessonRepository) ListLessonsUpdatedSince(ctx context.Context, since time.Time, limit int) ([]domain.Lesson, error) {
	return m.ListLessonsUpdatedSinceFunc(ctx, since, limit)
}

func (m *mockLessonRepository) ListTopics(ctx context.Context) ([]string, error) {
	return m.ListTopicsFunc(ctx)
}

func (m *mockLessonRepository) MapLessonTopics(ctx context.Context, lessonIDs []string) (map[string]string, error) {
	return m.MapLessonTopicsFunc(ctx, lessonIDs)
}

type mockQuizRepository struct {
	CreateQuizFunc              func(ctx context.Context, quiz *domain.Quiz) error
	GetQuizByIDFunc             func(ctx context.Context, id string) (*domain.Quiz, error)
	GetQuizByLessonIDFunc       func(ctx context.Context, lessonID string) (*domain.Quiz, error)
	ListQuizzesUpdatedSinceFunc func(ctx context.Context, since time.Time, limit int) ([]domain.Quiz, error)
}

func (m *mockQuizRepository) CreateQuiz(ctx context.Context, quiz *domain.Quiz) error {
	return m.CreateQuizFunc(ctx, quiz)
}

func (m *mockQuizRepository) GetQuizByID(ctx context.Context, id string) (*domain.Quiz, error) {
	return m.GetQuizByIDFunc(ctx, id)
}

func (m *mockQuizRepository) GetQuizByLessonID(ctx context.Context, lessonID string) (*domain.Quiz, error) {
	return m.GetQuizByLessonIDFunc(ctx, lessonID)
}

func (m *mockQuizRepository) ListQuizzesUpdatedSince(ctx context.Context, since time.Time, limit int) ([]domain.Quiz, error) {
	return m.ListQuizzesUpdatedSinceFunc(ctx, since, limit)
}

type mockAttemptRepository struct {
	CreateAttemptFunc      func(ctx context.Context, attempt *domain.QuizAttempt) error
	CreateErrorRecordsFunc func(ctx context.Context, records []domain.ErrorRecord) error
	ListAttemptsByUserFunc func(ctx context.Context, userID string, limit, offset int) ([]domain.QuizAttempt, int, error)
	ListAttemptsByQuizFunc func(ctx context.Context, userID, quizID string) ([]domain.QuizAttempt, error)
	ListAttemptsSinceFunc  func(ctx context.Context, userID string, since time.Time) ([]domain.QuizAttempt, error)
	CountAttemptTotalsFunc func(ctx context.Context, userID string) (int, int, error)
	CountErrorsByTypeFunc  func(ctx context.Context, userID string, since time.Time) (map[domain.ErrorType]int, error)
	ListErrorsSinceFunc    func(ctx context.Context, userID string, since time.Time) ([]domain.ErrorRecord, error)
}

func (m *mockAttemptRepository) CreateAttempt(ctx context.Context, attempt *domain.QuizAttempt) error {
	return m.CreateAttemptFunc(ctx, attempt)
}

func (m *mockAttemptRepository) CreateErrorRecords(ctx context.Context, records []domain.ErrorRecord) error {
	return m.CreateErrorRecordsFunc(ctx, records)
}

func (m *mockAttemptRepository) ListAttemptsByUser(ctx context.Context, userID string, limit, offset int) ([]domain.QuizAttempt, int, error) {
	return m.ListAttemptsByUserFunc(ctx, userID, limit, offset)
}

func (m *mockAttemptRepository) ListAttemptsByQuiz(ctx context.Context, userID, quizID string) ([]domain.QuizAttempt, error) {
	return m.ListAttemptsByQuizFunc(ctx, userID, quizID)
}

func (m *mockAttemptRepository) ListAttemptsSince(ctx context.Context, userID string, since time.Time) ([]domain.QuizAttempt, error) {
	return m.ListAttemptsSinceFunc(ctx, userID, since)
}

func (m *mockAttemptRepository) CountAttemptTotals(ctx context.Context, userID string) (int, int, error) {
	return m.CountAttemptTotalsFunc(ctx, userID)
}

func (m *mockAttemptRepository) CountErrorsByType(ctx context.Context, userID string, since time.Time) (map[domain.ErrorType]int, error) {
	return m.CountErrorsByTypeFunc(ctx, userID, since)
}

func (m *mockAttemptRepository) ListErrorsSince(ctx context.Context, userID string, since time.Time) ([]domain.ErrorRecord, error) {
	return m.ListErrorsSinceFunc(ctx, userID, since)
}

type mockProfileRepository struct {
	GetProfileFunc    func(ctx context.Context, userID string) (*domain.UserProfile, error)
	UpsertProfileFunc func(ctx context.Context, profile *domain.UserProfile) error
}

func (m *mockProfileRepository) GetProfile(ctx context.Context, userID string) (*domain.UserProfile, error) {
	return m.GetProfileFunc(ctx, userID)
}

func (m *mockProfileRepository) UpsertProfile(ctx context.Context, profile *domain.UserProfile) error {
	return m.UpsertProfileFunc(ctx, profile)
}

type mockProgressRepository struct {
	UpsertLessonProgressFunc     func(ctx context.Context, progress *domain.UserLessonProgress) error
	GetLessonProgressFunc        func(ctx context.Context, userID, lessonID string) (*domain.UserLessonProgress, error)
	ListLessonProgressFunc       func(ctx context.Context, userID string) ([]domain.UserLessonProgress, error)
	ListProgressUpdatedSinceFunc func(ctx context.Context, userID string, since time.Time, limit int) ([]domain.UserLessonProgress, error)
	SaveSnapshotFunc             func(ctx context.Context, snapshot *domain.ProgressSnapshot) error
	GetLatestSnapshotFunc        func(ctx context.Context, userID string, periodDays int) (*domain.ProgressSnapshot, error)
	ListSnapshotsSinceFunc       func(ctx context.Context, userID string, since time.Time) ([]domain.ProgressSnapshot, error)
}

func (m *mockProgressRepository) UpsertLessonProgress(ctx context.Context, progress *domain.UserLessonProgress) error {
	return m.UpsertLessonProgressFunc(ctx, progress)
}

func (m *mockProgressRepository) GetLessonProgress(ctx context.Context, userID, lessonID string) (*domain.UserLessonProgress, error) {
	return m.GetLessonProgressFunc(ctx, userID, lessonID)
}

func (m *mockProgressRepository) ListLessonProgress(ctx context.Context, userID string) ([]domain.UserLessonProgress, error) {
	return m.ListLessonProgressFunc(ctx, userID)
}

func (m *mockProgressRepository) ListProgressUpdatedSince(ctx context.Context, userID string, since time.Time, limit int) ([]domain.UserLessonProgress, error) {
	return m.ListProgressUpdatedSinceFunc(ctx, userID, since, limit)
}

func (m *mockProgressRepository) SaveSnapshot(ctx context.Context, snapshot *domain.ProgressSnapshot) error {
	return m.SaveSnapshotFunc(ctx, snapshot)
}

func (m *mockProgressRepository) GetLatestSnapshot(ctx context.Context, userID string, periodDays int) (*domain.ProgressSnapshot, error) {
	return m.GetLatestSnapshotFunc(ctx, userID, periodDays)
}

func (m *mockProgressRepository) ListSnapshotsSince(ctx context.Context, userID string, since time.Time) ([]domain.ProgressSnapshot, error) {
	return m.ListSnapshotsSinceFunc(ctx, userID, since)
}

// --- port mocks ---

type mockStoryGenerator struct {
	GenerateStoryFunc func(ctx context.Context, topic string, level domain.Level, seed string) (*domain.GeneratedStory, error)
}

func (m *mockStoryGenerator) GenerateStory(ctx context.Context, topic string, level domain.Level, seed string) (*domain.GeneratedStory, error) {
	return m.GenerateStoryFunc(ctx, topic, level, seed)
}

type mockQuizGenerator struct {
	GenerateQuizFunc func(ctx context.Context, lesson *domain.Lesson) ([]domain.QuizQuestion, error)
}

func (m *mockQuizGenerator) GenerateQuiz(ctx context.Context, lesson *domain.Lesson) ([]domain.QuizQuestion, error) {
	return m.GenerateQuizFunc(ctx, lesson)
}

type mockTranslationJudge struct {
	JudgeTranslationFunc func(ctx context.Context, question, expected, userAnswer string) (*domain.TranslationJudgment, error)
}

func (m *mockTranslationJudge) JudgeTranslation(ctx context.Context, question, expected, userAnswer string) (*domain.TranslationJudgment, error) {
	return m.JudgeTranslationFunc(ctx, question, expected, userAnswer)
}

type mockEmbeddingService struct {
	GenerateFunc func(ctx context.Context, text string) ([]float32, error)
}

func (m *mockEmbeddingService) Generate(ctx context.Context, text string) ([]float32, error) {
	return m.GenerateFunc(ctx, text)
}

// mockTransactionManager runs the callback directly, no transaction.
type mockTransactionManager struct {
	WithTransactionFunc func(ctx context.Context, fn func(ctx context.Context) error) error
}

func (m *mockTransactionManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if m.WithTransactionFunc != nil {
		return m.WithTransactionFunc(ctx, fn)
	}
	return fn(ctx)
}

// --- service mocks ---

type mockEvaluationService struct {
	EvaluateResponsesFunc func(ctx context.Context, userID string, quiz *domain.Quiz, responses []domain.QuizResponse, startedAt time.Time) (*domain.EvaluationResult, error)
	EvaluateAttemptFunc   func(ctx context.Context, userID, quizID string, req *dto.AttemptRequest) (*dto.EvaluationResponse, error)
}

func (m *mockEvaluationService) EvaluateResponses(ctx context.Context, userID string, quiz *domain.Quiz, responses []domain.QuizResponse, startedAt time.Time) (*domain.EvaluationResult, error) {
	return m.EvaluateResponsesFunc(ctx, userID, quiz, responses, startedAt)
}

func (m *mockEvaluationService) EvaluateAttempt(ctx context.Context, userID, quizID string, req *dto.AttemptRequest) (*dto.EvaluationResponse, error) {
	return m.EvaluateAttemptFunc(ctx, userID, quizID, req)
}

type mockProgressService struct {
	RecordQuizAttemptFunc func(ctx context.Context, userID string, attempt *domain.QuizAttempt) error
}

func (m *mockProgressService) RecordLessonView(ctx context.Context, userID, lessonID string) (*dto.LessonProgressResponse, error) {
	panic("not implemented in mock")
}

func (m *mockProgressService) RecordTranslationToggle(ctx context.Context, userID, lessonID string) (*dto.LessonProgressResponse, error) {
	panic("not implemented in mock")
}

func (m *mockProgressService) UpdateLessonProgress(ctx context.Context, userID, lessonID string, req *dto.UpdateProgressRequest) (*dto.LessonProgressResponse, error) {
	panic("not implemented in mock")
}

func (m *mockProgressService) GetLessonProgress(ctx context.Context, userID, lessonID string) (*dto.LessonProgressResponse, error) {
	panic("not implemented in mock")
}

func (m *mockProgressService) RecordQuizAttempt(ctx context.Context, userID string, attempt *domain.QuizAttempt) error {
	if m.RecordQuizAttemptFunc != nil {
		return m.RecordQuizAttemptFunc(ctx, userID, attempt)
	}
	return nil
}

func (m *mockProgressService) GetSummary(ctx context.Context, userID string, days int) (*dto.ProgressSummaryResponse, error) {
	panic("not implemented in mock")
}

func (m *mockProgressService) GetTrends(ctx context.Context, userID string, days int) (*dto.TrendsResponse, error) {
	panic("not implemented in mock")
}

func (m *mockProgressService) GetDashboard(ctx context.Context, userID string) (*dto.DashboardResponse, error) {
	panic("not implemented in mock")
}

func (m *mockProgressService) GetAnalytics(ctx context.Context, userID string, days int) (*dto.AnalyticsResponse, error) {
	panic("not implemented in mock")
}

type mockUserRepository struct {
	CreateUserFunc        func(ctx context.Context, user *models.User) error
	GetUserByIDFunc       func(ctx context.Context, userID string) (*models.User, error)
	GetUserByEmailFunc    func(ctx context.Context, email string) (*models.User, error)
	GetUserByGoogleIDFunc func(ctx context.Context, googleID string) (*models.User, error)
	UpdateUserFunc        func(ctx context.Context, user *models.User) error
}

func (m *mockUserRepository) CreateUser(ctx context.Context, user *models.User) error {
	if m.CreateUserFunc != nil {
		return m.CreateUserFunc(ctx, user)
	}
	return nil
}

func (m *mockUserRepository) GetUserByID(ctx context.Context, userID string) (*models.User, error) {
	if m.GetUserByIDFunc != nil {
		return m.GetUserByIDFunc(ctx, userID)
	}
	return nil, nil
}

func (m *mockUserRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.GetUserByEmailFunc != nil {
		return m.GetUserByEmailFunc(ctx, email)
	}
	return nil, nil
}

func (m *mockUserRepository) GetUserByGoogleID(ctx context.Context, googleID string) (*models.User, error) {
	if m.GetUserByGoogleIDFunc != nil {
		return m.GetUserByGoogleIDFunc(ctx, googleID)
	}
	return nil, nil
}

func (m *mockUserRepository) UpdateUser(ctx context.Context, user *models.User) error {
	if m.UpdateUserFunc != nil {
		return m.UpdateUserFunc(ctx, user)
	}
	return nil
}

// --- fixtures ---

// threeQuestionQuiz builds a quiz with one question of each type.
func threeQuestionQuiz() *domain.Quiz {
	return &domain.Quiz{
		ID:       "01HQUIZAAAAAAAAAAAAAAAAAAA",
		LessonID: "01HLESSONAAAAAAAAAAAAAAAAA",
		Questions: []domain.QuizQuestion{
			{
				Type:        domain.QuestionTypeMCQ,
				Question:    "What does 'mar7aba' mean?",
				Choices:     []string{"Goodbye", "Hello", "Thanks"},
				AnswerIndex: 1,
			},
			{
				Type:       domain.QuestionTypeTranslation,
				Question:   "Translate: 'How are you?'",
				AnswerText: "kifak",
			},
			{
				Type:         domain.QuestionTypeFillBlank,
				Question:     "Sabah el ____.",
				AnswerBlanks: []string{"kheir"},
			},
		},
	}
}
