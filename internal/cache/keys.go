package cache

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"strings"
)

const (
	GlobalKeyPrefix = "leblingo"
)

// GenerateCacheKey generates a cache key for a given service, object type, and identifier.
// If paramsKey are provided, they are joined by "_" and appended to the cache key.
func GenerateCacheKey(serviceName, objectType, identifier string, paramsKey ...string) string {
	baseKey := strings.Join([]string{GlobalKeyPrefix, serviceName, objectType, identifier}, ":")
	if len(paramsKey) > 0 {
		return strings.Join([]string{baseKey, strings.Join(paramsKey, "_")}, ":")
	}
	return baseKey
}

// ContentHash digests a set of request parameters into a stable hex fragment.
// encoding/json writes map keys in sorted order, so equal parameter sets
// always produce the same digest.
func ContentHash(params map[string]string) string {
	payload, _ := json.Marshal(params)
	sum := md5.Sum(payload)
	return hex.EncodeToString(sum[:])
}

// StoryKey is the cache key for a generated story with the given parameters.
func StoryKey(topic, level, seed string) string {
	return GenerateCacheKey("generation", "story", ContentHash(map[string]string{
		"topic": topic,
		"level": level,
		"seed":  seed,
	}))
}

// QuizKey is the cache key for the quiz generated from a lesson's content.
func QuizKey(lessonID, enText, laText string) string {
	return GenerateCacheKey("generation", "quiz", ContentHash(map[string]string{
		"lesson_id": lessonID,
		"en_text":   enText,
		"la_text":   laText,
	}))
}

// SessionKey is the cache key for a stored quiz session.
func SessionKey(sessionID string) string {
	return GenerateCacheKey("session", "quiz", sessionID)
}

// UserSessionKey is the cache key for a user's login session marker.
func UserSessionKey(userID string) string {
	return GenerateCacheKey("auth", "user_session", userID)
}

// RateLimitKey is the cache key for a user's request rate window.
func RateLimitKey(userID string) string {
	return GenerateCacheKey("ratelimit", "requests", userID)
}

// ResultKey is the cache key for a parked anonymous evaluation result.
func ResultKey(resultID string) string {
	return GenerateCacheKey("anonymous", "result", resultID)
}

// EvaluationKey is the cache key for the evaluation of one set of responses
// to one quiz. The answer digest folds every normalized answer in, so any
// changed answer lands on a fresh key.
func EvaluationKey(quizID, answersDigest string) string {
	return GenerateCacheKey("evaluation", "result", quizID, answersDigest)
}

// JudgmentKey is the cache key for the hash of stored translation judgments
// scoped to one question of one quiz.
func JudgmentKey(quizID string, questionIndex string) string {
	return GenerateCacheKey("evaluation", "judgments", quizID, questionIndex)
}

// LastSyncKey is the cache key for a device's last acknowledged sync time.
func LastSyncKey(userID string) string {
	return GenerateCacheKey("sync", "last", userID)
}

// SummaryKey is the cache key for a user's computed progress summary over a
// period.
func SummaryKey(userID string, periodDays string) string {
	return GenerateCacheKey("progress", "summary", userID, periodDays)
}
