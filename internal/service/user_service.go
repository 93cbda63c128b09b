package service

import (
	"context"
	"time"

	"leblingo/internal/domain"
	"leblingo/internal/dto"
	"leblingo/internal/repository"
	"leblingo/internal/repository/models"
	"leblingo/internal/util"
)

const attemptHistoryDays = 365

// UserService defines the interface for user account and history operations.
type UserService interface {
	GetUserProfile(ctx context.Context, userID string) (*dto.UserProfileResponse, error)
	UpdateUserProfile(ctx context.Context, userID string, req *dto.UpdateProfileRequest) (*dto.UserProfileResponse, error)
	GetUserQuizAttempts(ctx context.Context, userID string, filters *dto.AttemptFilters, page *dto.Pagination) (*dto.UserQuizAttemptsResponse, error)
	GetUserErrors(ctx context.Context, userID string, days int) (*dto.UserErrorsResponse, error)
}

type userServiceImpl struct {
	userRepo    repository.UserRepository
	profileRepo domain.ProfileRepository
	attemptRepo domain.AttemptRepository
}

// NewUserService creates a new instance of UserService.
func NewUserService(
	userRepo repository.UserRepository,
	profileRepo domain.ProfileRepository,
	attemptRepo domain.AttemptRepository,
) UserService {
	return &userServiceImpl{
		userRepo:    userRepo,
		profileRepo: profileRepo,
		attemptRepo: attemptRepo,
	}
}

// GetUserProfile returns the account plus its study profile. A user who has
// never studied gets a default profile rather than an error.
func (s *userServiceImpl) GetUserProfile(ctx context.Context, userID string) (*dto.UserProfileResponse, error) {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	profile, err := s.profileRepo.GetProfile(ctx, userID)
	if err != nil {
		return nil, domain.NewDatabaseError("failed to load user profile", err)
	}
	return dto.NewUserProfileResponse(toDomainUser(user), profile), nil
}

// UpdateUserProfile applies the non-nil fields of the request. A first
// update creates the profile.
func (s *userServiceImpl) UpdateUserProfile(ctx context.Context, userID string, req *dto.UpdateProfileRequest) (*dto.UserProfileResponse, error) {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	profile, err := s.profileRepo.GetProfile(ctx, userID)
	if err != nil {
		return nil, domain.NewDatabaseError("failed to load user profile", err)
	}
	if profile == nil {
		profile = domain.NewUserProfile(userID, user.DisplayName.String)
	}

	if req.DisplayName != nil {
		profile.DisplayName = *req.DisplayName
	}
	if req.PreferredLevel != nil {
		if !domain.IsValidLevel(*req.PreferredLevel) {
			return nil, domain.NewInvalidInputError("preferred_level must be beginner, intermediate or advanced")
		}
		profile.PreferredLevel = domain.ParseLevel(*req.PreferredLevel)
	}
	if req.Settings != nil {
		profile.Settings = domain.ProfileSettings{
			Dialect:              req.Settings.Dialect,
			Difficulty:           req.Settings.Difficulty,
			TransliterationStyle: req.Settings.TransliterationStyle,
			DailyGoalMinutes:     req.Settings.DailyGoalMinutes,
		}
	}
	profile.UpdatedAt = time.Now()

	if err := s.profileRepo.UpsertProfile(ctx, profile); err != nil {
		return nil, domain.NewDatabaseError("failed to save user profile", err)
	}
	return dto.NewUserProfileResponse(toDomainUser(user), profile), nil
}

// GetUserQuizAttempts returns a page of the user's attempt history, newest
// first. With lesson or date filters the history is filtered first and
// paginated in memory; filtered histories are small enough for that.
func (s *userServiceImpl) GetUserQuizAttempts(ctx context.Context, userID string, filters *dto.AttemptFilters, page *dto.Pagination) (*dto.UserQuizAttemptsResponse, error) {
	if _, err := s.loadUser(ctx, userID); err != nil {
		return nil, err
	}
	if page == nil {
		page = &dto.Pagination{}
	}
	page.Normalize()

	if filters == nil || (filters.LessonID == "" && filters.StartDate == "" && filters.EndDate == "") {
		attempts, total, err := s.attemptRepo.ListAttemptsByUser(ctx, userID, page.Limit, page.Offset)
		if err != nil {
			return nil, domain.NewDatabaseError("failed to list quiz attempts", err)
		}
		return buildAttemptsResponse(attempts, page, int64(total)), nil
	}

	start, end, err := parseAttemptDateRange(filters)
	if err != nil {
		return nil, err
	}

	history, err := s.attemptRepo.ListAttemptsSince(ctx, userID, start)
	if err != nil {
		return nil, domain.NewDatabaseError("failed to list quiz attempts", err)
	}

	filtered := make([]domain.QuizAttempt, 0, len(history))
	for _, attempt := range history {
		if filters.LessonID != "" && attempt.LessonID != filters.LessonID {
			continue
		}
		if !end.IsZero() && attempt.CompletedAt.After(end) {
			continue
		}
		filtered = append(filtered, attempt)
	}
	// ListAttemptsSince is oldest first; the history endpoint serves newest
	// first.
	for i, j := 0, len(filtered)-1; i < j; i, j = i+1, j-1 {
		filtered[i], filtered[j] = filtered[j], filtered[i]
	}

	total := int64(len(filtered))
	low := page.Offset
	if low > len(filtered) {
		low = len(filtered)
	}
	high := low + page.Limit
	if high > len(filtered) {
		high = len(filtered)
	}
	return buildAttemptsResponse(filtered[low:high], page, total), nil
}

// GetUserErrors returns the user's error histogram over the given window.
func (s *userServiceImpl) GetUserErrors(ctx context.Context, userID string, days int) (*dto.UserErrorsResponse, error) {
	if _, err := s.loadUser(ctx, userID); err != nil {
		return nil, err
	}
	if days <= 0 {
		days = 30
	}

	counts, err := s.attemptRepo.CountErrorsByType(ctx, userID, time.Now().AddDate(0, 0, -days))
	if err != nil {
		return nil, domain.NewDatabaseError("failed to count errors", err)
	}

	response := &dto.UserErrorsResponse{Counts: make(map[string]int, len(counts))}
	for errorType, count := range counts {
		response.Counts[string(errorType)] = count
		response.TotalErrors += count
	}
	return response, nil
}

func (s *userServiceImpl) loadUser(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, domain.NewDatabaseError("failed to load user", err)
	}
	if user == nil {
		return nil, domain.NewUserNotFoundError(userID)
	}
	return user, nil
}

func buildAttemptsResponse(attempts []domain.QuizAttempt, page *dto.Pagination, total int64) *dto.UserQuizAttemptsResponse {
	items := make([]dto.UserQuizAttemptItem, 0, len(attempts))
	for i := range attempts {
		items = append(items, dto.NewUserQuizAttemptItem(&attempts[i]))
	}
	return &dto.UserQuizAttemptsResponse{
		Attempts:       items,
		PaginationInfo: dto.NewPaginationInfo(page, total),
	}
}

// parseAttemptDateRange resolves the filter dates. An absent start date
// falls back to a year of history; the end date is inclusive of its whole
// day.
func parseAttemptDateRange(filters *dto.AttemptFilters) (time.Time, time.Time, error) {
	start := time.Now().AddDate(0, 0, -attemptHistoryDays)
	var end time.Time

	if filters.StartDate != "" {
		parsed, err := time.Parse("2006-01-02", filters.StartDate)
		if err != nil {
			return time.Time{}, time.Time{}, domain.NewInvalidInputError("start_date must be formatted as YYYY-MM-DD")
		}
		start = parsed
	}
	if filters.EndDate != "" {
		parsed, err := time.Parse("2006-01-02", filters.EndDate)
		if err != nil {
			return time.Time{}, time.Time{}, domain.NewInvalidInputError("end_date must be formatted as YYYY-MM-DD")
		}
		end = parsed.AddDate(0, 0, 1)
	}
	return start, end, nil
}

func toDomainUser(m *models.User) *domain.User {
	if m == nil {
		return nil
	}
	return &domain.User{
		ID:           m.ID,
		Email:        m.Email,
		PasswordHash: m.PasswordHash.String,
		GoogleID:     m.GoogleID.String,
		DisplayName:  m.DisplayName.String,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
		LastLoginAt:  util.NullTimeToPtr(m.LastLoginAt),
		DeletedAt:    util.NullTimeToPtr(m.DeletedAt),
	}
}
