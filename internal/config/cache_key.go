package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// ExamBundleKey returns the cache key for an exam's settings and question set
func (r *CacheKeyStruct) ExamBundleKey(examID string) string {
	return fmt.Sprintf("exam:%s:bundle", examID)
}

// ExamMonitorChannel returns the Redis PubSub channel name for an exam monitor
func (r *CacheKeyStruct) ExamMonitorChannel(examID string) string {
	return fmt.Sprintf("exam:%s:monitor", examID)
}

// SessionKey returns the hash holding a session's scalar fields
func (r *CacheKeyStruct) SessionKey(sessionID string) string {
	return fmt.Sprintf("session:%s", sessionID)
}

// SessionAnswersKey returns the hash of question id -> encoded answer
func (r *CacheKeyStruct) SessionAnswersKey(sessionID string) string {
	return fmt.Sprintf("session:%s:answers", sessionID)
}

// SessionAnswerTimesKey returns the hash of question id -> answer recorded_at (unix millis)
func (r *CacheKeyStruct) SessionAnswerTimesKey(sessionID string) string {
	return fmt.Sprintf("session:%s:answer_times", sessionID)
}

// SessionStatusesKey returns the hash of question id -> question status
func (r *CacheKeyStruct) SessionStatusesKey(sessionID string) string {
	return fmt.Sprintf("session:%s:statuses", sessionID)
}

// SessionResultKey returns the key holding a finalized session's result
func (r *CacheKeyStruct) SessionResultKey(sessionID string) string {
	return fmt.Sprintf("session:%s:result", sessionID)
}

// UserActiveSessionKey returns the key pointing at a user's started session for a schedule
func (r *CacheKeyStruct) UserActiveSessionKey(userID int, scheduleID string) string {
	return fmt.Sprintf("user:%d:schedule:%s:active", userID, scheduleID)
}

// UserAttemptSeqKey returns the counter of sessions a user has started for a schedule
func (r *CacheKeyStruct) UserAttemptSeqKey(userID int, scheduleID string) string {
	return fmt.Sprintf("user:%d:schedule:%s:attempt_seq", userID, scheduleID)
}

// UserFinishedAttemptsKey returns the counter of a user's terminal sessions for a schedule
func (r *CacheKeyStruct) UserFinishedAttemptsKey(userID int, scheduleID string) string {
	return fmt.Sprintf("user:%d:schedule:%s:finished", userID, scheduleID)
}

// UserAnswerRateKey returns the fixed-window counter for a user's answer writes
func (r *CacheKeyStruct) UserAnswerRateKey(userID int, window int64) string {
	return fmt.Sprintf("ratelimit:answers:%d:%d", userID, window)
}

var CacheKey = NewCacheKeyStruct()
