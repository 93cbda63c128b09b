package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"leblingo/internal/cache"
	"leblingo/internal/config"
	"leblingo/internal/domain"
	"leblingo/internal/dto"
	"leblingo/internal/logger"
	"leblingo/internal/util"

	"go.uber.org/zap"
)

// SessionService manages quiz session lifecycles. Sessions are pure values;
// every mutation loads the stored session, applies one transition and
// replaces the stored value wholesale, so concurrent writers can never
// observe a half-applied step.
type SessionService interface {
	CreateSession(ctx context.Context, userID, quizID string) (*dto.SessionResponse, error)
	GetSession(ctx context.Context, sessionID, userID string) (*dto.SessionResponse, error)
	Answer(ctx context.Context, sessionID, userID string, req *dto.AnswerRequest) (*dto.SessionResponse, error)
	Navigate(ctx context.Context, sessionID, userID string, req *dto.NavigateRequest) (*dto.SessionResponse, error)
	Complete(ctx context.Context, sessionID, userID string) (*dto.CompleteSessionResponse, error)
	GetResult(ctx context.Context, resultID string) (*dto.EvaluationResponse, error)
}

type sessionServiceImpl struct {
	cacheImpl   domain.Cache
	quizRepo    domain.QuizRepository
	evaluation  EvaluationService
	resultCache AnonymousResultCacheService
	sessionTTL  time.Duration
}

// NewSessionService creates a new instance of SessionService.
func NewSessionService(
	cacheImpl domain.Cache,
	quizRepo domain.QuizRepository,
	evaluation EvaluationService,
	resultCache AnonymousResultCacheService,
	cfg *config.Config,
) SessionService {
	return &sessionServiceImpl{
		cacheImpl:   cacheImpl,
		quizRepo:    quizRepo,
		evaluation:  evaluation,
		resultCache: resultCache,
		sessionTTL:  cfg.ParseTTLStringOrDefault(cfg.CacheTTLs.QuizSession, 2*time.Hour),
	}
}

// CreateSession starts a session for a quiz. UserID may be empty for
// anonymous learners.
func (s *sessionServiceImpl) CreateSession(ctx context.Context, userID, quizID string) (*dto.SessionResponse, error) {
	quiz, err := s.quizRepo.GetQuizByID(ctx, quizID)
	if err != nil {
		return nil, domain.NewDatabaseError("failed to load quiz for session", err)
	}
	if quiz == nil {
		return nil, domain.NewQuizNotFoundError(quizID)
	}

	session, err := domain.NewQuizSession(quiz)
	if err != nil {
		return nil, err
	}

	sessionID := util.NewULID()
	doc := dto.NewSessionDocument(sessionID, userID, session)
	if err := s.store(ctx, doc); err != nil {
		return nil, err
	}

	logger.Get().Info("Quiz session started",
		zap.String("sessionID", sessionID),
		zap.String("quizID", quizID),
		zap.Bool("anonymous", userID == ""))
	return dto.NewSessionResponse(sessionID, session), nil
}

// GetSession returns the current state of a session.
func (s *sessionServiceImpl) GetSession(ctx context.Context, sessionID, userID string) (*dto.SessionResponse, error) {
	doc, err := s.load(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}
	return dto.NewSessionResponse(sessionID, doc.ToDomain()), nil
}

// Answer records an answer for the session's current question. An answer
// whose shape does not match the question is recorded as incorrect; only a
// request with no answer at all is rejected.
func (s *sessionServiceImpl) Answer(ctx context.Context, sessionID, userID string, req *dto.AnswerRequest) (*dto.SessionResponse, error) {
	answer := req.ToUserAnswer()
	if answer == nil {
		return nil, domain.NewInvalidInputError("an answer value is required")
	}

	doc, err := s.load(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}

	session := doc.ToDomain().AnswerCurrent(answer)
	if err := s.store(ctx, dto.NewSessionDocument(sessionID, doc.UserID, session)); err != nil {
		return nil, err
	}
	return dto.NewSessionResponse(sessionID, session), nil
}

// Navigate moves the session between questions. Out-of-range targets leave
// the position unchanged rather than erroring.
func (s *sessionServiceImpl) Navigate(ctx context.Context, sessionID, userID string, req *dto.NavigateRequest) (*dto.SessionResponse, error) {
	doc, err := s.load(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}

	session := doc.ToDomain()
	switch req.Action {
	case dto.NavigateNext:
		session = session.GoToNext()
	case dto.NavigatePrevious:
		session = session.GoToPrevious()
	case dto.NavigateGoto:
		if req.Index == nil {
			return nil, domain.NewInvalidInputError("goto navigation requires an index")
		}
		session = session.GoToQuestion(*req.Index)
	default:
		return nil, domain.NewInvalidInputError("action must be next, previous or goto")
	}

	if err := s.store(ctx, dto.NewSessionDocument(sessionID, doc.UserID, session)); err != nil {
		return nil, err
	}
	return dto.NewSessionResponse(sessionID, session), nil
}

// Complete finishes the session and evaluates it. Completion never requires
// all questions to be answered; unanswered questions score as incorrect.
// Anonymous results are parked in the result cache and referenced by
// ResultID.
func (s *sessionServiceImpl) Complete(ctx context.Context, sessionID, userID string) (*dto.CompleteSessionResponse, error) {
	doc, err := s.load(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}

	session := doc.ToDomain().Complete()
	if err := s.store(ctx, dto.NewSessionDocument(sessionID, doc.UserID, session)); err != nil {
		return nil, err
	}

	result, err := s.evaluation.EvaluateResponses(ctx, doc.UserID, session.Quiz, session.ResponsesInOrder(), session.StartTime)
	if err != nil {
		return nil, err
	}

	response := &dto.CompleteSessionResponse{EvaluationResponse: *dto.NewEvaluationResponse(result)}

	if doc.UserID == "" && s.resultCache != nil {
		resultID := util.NewULID()
		if err := s.resultCache.Put(ctx, resultID, &response.EvaluationResponse); err != nil {
			logger.Get().Warn("Failed to park anonymous evaluation result",
				zap.Error(err),
				zap.String("sessionID", sessionID))
		} else {
			response.ResultID = resultID
		}
	}

	logger.Get().Info("Quiz session completed",
		zap.String("sessionID", sessionID),
		zap.Float64("score", result.Score),
		zap.Bool("anonymous", doc.UserID == ""))
	return response, nil
}

// GetResult fetches a parked anonymous evaluation result.
func (s *sessionServiceImpl) GetResult(ctx context.Context, resultID string) (*dto.EvaluationResponse, error) {
	if s.resultCache == nil {
		return nil, domain.NewResultNotFoundError(resultID)
	}
	result, err := s.resultCache.Get(ctx, resultID)
	if err != nil {
		if errors.Is(err, ErrAnonymousResultNotFound) {
			return nil, domain.NewResultNotFoundError(resultID)
		}
		return nil, err
	}
	return result, nil
}

// load fetches a session document and checks that the caller may touch it.
// Anonymous sessions are open to anyone holding the session ID.
func (s *sessionServiceImpl) load(ctx context.Context, sessionID, userID string) (*dto.SessionDocument, error) {
	raw, err := s.cacheImpl.Get(ctx, cache.SessionKey(sessionID))
	if err != nil {
		if errors.Is(err, domain.ErrCacheMiss) {
			return nil, domain.NewSessionNotFoundError(sessionID)
		}
		return nil, domain.NewCacheError(err)
	}

	var doc dto.SessionDocument
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		logger.Get().Error("Stored session document is corrupt",
			zap.Error(err),
			zap.String("sessionID", sessionID))
		return nil, domain.NewSessionNotFoundError(sessionID)
	}

	if doc.UserID != "" && doc.UserID != userID {
		return nil, domain.NewForbiddenError("session belongs to another user")
	}
	return &doc, nil
}

func (s *sessionServiceImpl) store(ctx context.Context, doc *dto.SessionDocument) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return domain.NewInternalError("failed to marshal session document", err)
	}
	if err := s.cacheImpl.Set(ctx, cache.SessionKey(doc.SessionID), string(raw), s.sessionTTL); err != nil {
		return domain.NewCacheError(err)
	}
	return nil
}
