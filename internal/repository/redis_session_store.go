package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stemsi/exstem-session/internal/config"
	"github.com/stemsi/exstem-session/internal/model"
)

// finalizeRetries bounds the optimistic finalize loop.
const finalizeRetries = 5

// createScript claims the user's active slot and writes the session hash.
// It replies 0 when a session is already running and -1 when the attempt cap
// is reached.
// KEYS: active, attempt_seq, session, statuses, finished
// ARGV: session_id, user_id, exam_id, schedule_id, started_ms, expires_ms,
// max_attempts (0 for none), question ids...
var createScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
	return 0
end
local max = tonumber(ARGV[7])
if max > 0 and tonumber(redis.call('GET', KEYS[5]) or '0') >= max then
	return -1
end
redis.call('SET', KEYS[1], ARGV[1])
local attempt = redis.call('INCR', KEYS[2])
redis.call('HSET', KEYS[3],
	'user_id', ARGV[2], 'exam_id', ARGV[3], 'schedule_id', ARGV[4],
	'attempt_number', attempt, 'status', 'started',
	'started_at', ARGV[5], 'expires_at', ARGV[6], 'version', 0)
for i = 8, #ARGV do
	redis.call('HSET', KEYS[4], ARGV[i], 'not_visited')
end
return attempt
`)

// recordScript writes an answer unless a newer one is already stored.
// KEYS: session, answers, answer_times, statuses
// ARGV: question_id, answer_json, recorded_ms, now_ms, status_if_marked, status_otherwise
var recordScript = redis.NewScript(`
local s = redis.call('HMGET', KEYS[1], 'status', 'expires_at')
if not s[1] then
	return 'not_found'
end
if s[1] ~= 'started' then
	return 'closed'
end
if tonumber(ARGV[4]) > tonumber(s[2]) then
	return 'expired'
end
local cur = redis.call('HGET', KEYS[4], ARGV[1])
if not cur then
	return 'unknown_question'
end
local prev = redis.call('HGET', KEYS[3], ARGV[1])
if prev and tonumber(prev) > tonumber(ARGV[3]) then
	return 'stale'
end
redis.call('HSET', KEYS[2], ARGV[1], ARGV[2])
redis.call('HSET', KEYS[3], ARGV[1], ARGV[3])
local nxt = ARGV[6]
if cur == 'marked_for_review' or cur == 'answered_mark_for_review' then
	nxt = ARGV[5]
end
redis.call('HSET', KEYS[4], ARGV[1], nxt)
redis.call('HINCRBY', KEYS[1], 'version', 1)
return 'ok'
`)

// markScript sets one question's navigation status.
// KEYS: session, statuses
// ARGV: question_id, status
var markScript = redis.NewScript(`
local st = redis.call('HGET', KEYS[1], 'status')
if not st then
	return 'not_found'
end
if st ~= 'started' then
	return 'closed'
end
if redis.call('HEXISTS', KEYS[2], ARGV[1]) == 0 then
	return 'unknown_question'
end
redis.call('HSET', KEYS[2], ARGV[1], ARGV[2])
redis.call('HINCRBY', KEYS[1], 'version', 1)
return 'ok'
`)

// finalizeScript commits a result computed from the snapshot at ARGV[1] and,
// when ARGV[5] is positive, starts the retention clock on the session's keys.
// KEYS: session, result, active, finished, answers, answer_times, statuses
// ARGV: expected_version, outcome, submitted_ms, result_json, retention_ms
var finalizeScript = redis.NewScript(`
local cur = redis.call('HMGET', KEYS[1], 'status', 'version')
if not cur[1] then
	return 'not_found'
end
if cur[1] ~= 'started' then
	if cur[1] == ARGV[2] then
		return 'same'
	end
	return 'conflict'
end
if cur[2] ~= ARGV[1] then
	return 'retry'
end
redis.call('HSET', KEYS[1], 'status', ARGV[2], 'submitted_at', ARGV[3])
redis.call('HINCRBY', KEYS[1], 'version', 1)
redis.call('SET', KEYS[2], ARGV[4])
redis.call('DEL', KEYS[3])
redis.call('INCR', KEYS[4])
local ttl = tonumber(ARGV[5])
if ttl > 0 then
	for _, k in ipairs({KEYS[1], KEYS[2], KEYS[5], KEYS[6], KEYS[7]}) do
		redis.call('PEXPIRE', k, ttl)
	end
end
return 'ok'
`)

// RedisSessionStore keeps sessions in Redis hashes. Every mutation runs as a
// Lua script, so writes to one session never interleave; finalization uses the
// session's version field for optimistic concurrency.
//
// A finalized session and its result expire after the retention period; the
// result archive worker copies results to PostgreSQL well before that. The
// per-user attempt counters never expire.
type RedisSessionStore struct {
	rdb       redis.UniversalClient
	retention time.Duration
}

// NewRedisSessionStore creates a new RedisSessionStore. A non-positive
// retention keeps finalized sessions forever.
func NewRedisSessionStore(rdb redis.UniversalClient, retention time.Duration) *RedisSessionStore {
	return &RedisSessionStore{rdb: rdb, retention: retention}
}

// Create starts a session unless the user already has one running for the
// schedule or has used up p.MaxAttempts.
func (r *RedisSessionStore) Create(ctx context.Context, p model.NewSessionParams) (*model.Session, error) {
	s := &model.Session{
		ID:               uuid.New(),
		UserID:           p.UserID,
		ExamID:           p.ExamID,
		ScheduleID:       p.ScheduleID,
		Status:           model.SessionStatusStarted,
		StartedAt:        p.Now,
		ExpiresAt:        p.Now.Add(p.Duration),
		Answers:          make(map[uuid.UUID]model.Answer),
		QuestionStatuses: make(map[uuid.UUID]model.QuestionStatus, len(p.QuestionIDs)),
	}
	sid := s.ID.String()
	schedule := p.ScheduleID.String()

	keys := []string{
		config.CacheKey.UserActiveSessionKey(p.UserID, schedule),
		config.CacheKey.UserAttemptSeqKey(p.UserID, schedule),
		config.CacheKey.SessionKey(sid),
		config.CacheKey.SessionStatusesKey(sid),
		config.CacheKey.UserFinishedAttemptsKey(p.UserID, schedule),
	}
	maxAttempts := 0
	if p.MaxAttempts != nil {
		maxAttempts = *p.MaxAttempts
	}
	args := make([]any, 0, 7+len(p.QuestionIDs))
	args = append(args, sid, p.UserID, p.ExamID.String(), schedule,
		s.StartedAt.UnixMilli(), s.ExpiresAt.UnixMilli(), maxAttempts)
	for _, qid := range p.QuestionIDs {
		args = append(args, qid.String())
		s.QuestionStatuses[qid] = model.QuestionStatusNotVisited
	}

	attempt, err := createScript.Run(ctx, r.rdb, keys, args...).Int()
	if err != nil {
		return nil, redisError("create session", err)
	}
	switch attempt {
	case 0:
		return nil, model.ErrSessionAlreadyActive
	case -1:
		return nil, model.ErrAttemptsExceeded
	}
	s.AttemptNumber = attempt
	return s, nil
}

// Get loads a session. The three hashes are read in one MULTI block so the
// snapshot is consistent.
func (r *RedisSessionStore) Get(ctx context.Context, sessionID uuid.UUID) (*model.Session, error) {
	sid := sessionID.String()
	var fields, answers, statuses *redis.MapStringStringCmd
	_, err := r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		fields = pipe.HGetAll(ctx, config.CacheKey.SessionKey(sid))
		answers = pipe.HGetAll(ctx, config.CacheKey.SessionAnswersKey(sid))
		statuses = pipe.HGetAll(ctx, config.CacheKey.SessionStatusesKey(sid))
		return nil
	})
	if err != nil {
		return nil, redisError("get session", err)
	}
	if len(fields.Val()) == 0 {
		return nil, fmt.Errorf("session %s: %w", sid, model.ErrNotFound)
	}

	s, err := decodeSession(sessionID, fields.Val())
	if err != nil {
		return nil, err
	}
	for _, raw := range answers.Val() {
		var a model.Answer
		if err := json.Unmarshal([]byte(raw), &a); err != nil {
			return nil, fmt.Errorf("decode answer: %w", err)
		}
		s.Answers[a.QuestionID] = a
	}
	for qid, st := range statuses.Val() {
		id, err := uuid.Parse(qid)
		if err != nil {
			return nil, fmt.Errorf("decode question id: %w", err)
		}
		s.QuestionStatuses[id] = model.QuestionStatus(st)
	}
	return s, nil
}

func decodeSession(id uuid.UUID, f map[string]string) (*model.Session, error) {
	s := &model.Session{
		ID:               id,
		Status:           model.SessionStatus(f["status"]),
		Answers:          make(map[uuid.UUID]model.Answer),
		QuestionStatuses: make(map[uuid.UUID]model.QuestionStatus),
	}
	var err error
	if s.UserID, err = strconv.Atoi(f["user_id"]); err != nil {
		return nil, fmt.Errorf("decode user_id: %w", err)
	}
	if s.ExamID, err = uuid.Parse(f["exam_id"]); err != nil {
		return nil, fmt.Errorf("decode exam_id: %w", err)
	}
	if s.ScheduleID, err = uuid.Parse(f["schedule_id"]); err != nil {
		return nil, fmt.Errorf("decode schedule_id: %w", err)
	}
	if s.AttemptNumber, err = strconv.Atoi(f["attempt_number"]); err != nil {
		return nil, fmt.Errorf("decode attempt_number: %w", err)
	}
	if s.Version, err = strconv.ParseInt(f["version"], 10, 64); err != nil {
		return nil, fmt.Errorf("decode version: %w", err)
	}
	if s.StartedAt, err = parseMillis(f["started_at"]); err != nil {
		return nil, fmt.Errorf("decode started_at: %w", err)
	}
	if s.ExpiresAt, err = parseMillis(f["expires_at"]); err != nil {
		return nil, fmt.Errorf("decode expires_at: %w", err)
	}
	if raw, ok := f["submitted_at"]; ok {
		t, err := parseMillis(raw)
		if err != nil {
			return nil, fmt.Errorf("decode submitted_at: %w", err)
		}
		s.SubmittedAt = &t
	}
	return s, nil
}

func parseMillis(raw string) (time.Time, error) {
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(ms).UTC(), nil
}

// GetActive returns the user's started session for a schedule.
func (r *RedisSessionStore) GetActive(ctx context.Context, userID int, scheduleID uuid.UUID) (*model.Session, error) {
	raw, err := r.rdb.Get(ctx, config.CacheKey.UserActiveSessionKey(userID, scheduleID.String())).Result()
	if err != nil {
		return nil, redisError("get active session", err)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("decode active session id: %w", err)
	}
	return r.Get(ctx, id)
}

// CountAttempts counts the user's terminal sessions for a schedule.
func (r *RedisSessionStore) CountAttempts(ctx context.Context, userID int, scheduleID uuid.UUID) (int, error) {
	n, err := r.rdb.Get(ctx, config.CacheKey.UserFinishedAttemptsKey(userID, scheduleID.String())).Int()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, redisError("count attempts", err)
	}
	return n, nil
}

// MarkStatus sets the navigation status of one question.
func (r *RedisSessionStore) MarkStatus(ctx context.Context, sessionID, questionID uuid.UUID, status model.QuestionStatus) error {
	sid := sessionID.String()
	keys := []string{config.CacheKey.SessionKey(sid), config.CacheKey.SessionStatusesKey(sid)}
	code, err := markScript.Run(ctx, r.rdb, keys, questionID.String(), string(status)).Text()
	if err != nil {
		return redisError("mark status", err)
	}
	return scriptOutcome(code, sessionID, questionID)
}

// RecordAnswer upserts an answer; a write older than the stored one is
// acknowledged without effect.
func (r *RedisSessionStore) RecordAnswer(ctx context.Context, sessionID uuid.UUID, a model.Answer, now time.Time) error {
	payload, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("encode answer: %w", err)
	}
	sid := sessionID.String()
	keys := []string{
		config.CacheKey.SessionKey(sid),
		config.CacheKey.SessionAnswersKey(sid),
		config.CacheKey.SessionAnswerTimesKey(sid),
		config.CacheKey.SessionStatusesKey(sid),
	}
	cleared := a.Value.IsEmpty()
	code, err := recordScript.Run(ctx, r.rdb, keys,
		a.QuestionID.String(), payload, a.RecordedAt.UnixMilli(), now.UnixMilli(),
		string(model.NextQuestionStatus(model.QuestionStatusMarkedForReview, cleared)),
		string(model.NextQuestionStatus(model.QuestionStatusNotVisited, cleared)),
	).Text()
	if err != nil {
		return redisError("record answer", err)
	}
	return scriptOutcome(code, sessionID, a.QuestionID)
}

func scriptOutcome(code string, sessionID, questionID uuid.UUID) error {
	switch code {
	case "ok", "stale":
		return nil
	case "not_found":
		return fmt.Errorf("session %s: %w", sessionID, model.ErrNotFound)
	case "closed":
		return model.ErrSessionClosed
	case "expired":
		return model.ErrSessionExpired
	case "unknown_question":
		return fmt.Errorf("question %s: %w", questionID, model.ErrNotFound)
	}
	return fmt.Errorf("unexpected script reply %q", code)
}

// Finalize moves a started session into outcome with its result. The result
// is computed from a snapshot and committed only if no write landed since;
// otherwise the snapshot is re-read and scored again.
func (r *RedisSessionStore) Finalize(ctx context.Context, sessionID uuid.UUID, now time.Time, outcome model.SessionStatus, score model.ScoreFunc) (*model.Result, error) {
	for range finalizeRetries {
		s, err := r.Get(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		if s.Status.Terminal() {
			if s.Status != outcome {
				return nil, fmt.Errorf("session %s is %s: %w", sessionID, s.Status, model.ErrAlreadyFinalized)
			}
			return r.GetResult(ctx, sessionID)
		}

		expected := s.Version
		submitted := now
		s.Status = outcome
		s.SubmittedAt = &submitted

		result, err := score(s)
		if err != nil {
			return nil, err
		}
		result.CreatedAt = now
		payload, err := json.Marshal(result)
		if err != nil {
			return nil, fmt.Errorf("encode result: %w", err)
		}

		sid := sessionID.String()
		schedule := s.ScheduleID.String()
		keys := []string{
			config.CacheKey.SessionKey(sid),
			config.CacheKey.SessionResultKey(sid),
			config.CacheKey.UserActiveSessionKey(s.UserID, schedule),
			config.CacheKey.UserFinishedAttemptsKey(s.UserID, schedule),
			config.CacheKey.SessionAnswersKey(sid),
			config.CacheKey.SessionAnswerTimesKey(sid),
			config.CacheKey.SessionStatusesKey(sid),
		}
		code, err := finalizeScript.Run(ctx, r.rdb, keys,
			strconv.FormatInt(expected, 10), string(outcome), now.UnixMilli(), payload,
			r.retention.Milliseconds(),
		).Text()
		if err != nil {
			return nil, redisError("finalize session", err)
		}

		switch code {
		case "ok":
			return result, nil
		case "same":
			return r.GetResult(ctx, sessionID)
		case "conflict":
			return nil, fmt.Errorf("session %s: %w", sessionID, model.ErrAlreadyFinalized)
		case "not_found":
			return nil, fmt.Errorf("session %s: %w", sessionID, model.ErrNotFound)
		case "retry":
			continue
		default:
			return nil, fmt.Errorf("unexpected script reply %q", code)
		}
	}
	return nil, fmt.Errorf("finalize session %s: %w: too much write contention", sessionID, model.ErrStoreUnavailable)
}

// GetResult loads the result of a finalized session.
func (r *RedisSessionStore) GetResult(ctx context.Context, sessionID uuid.UUID) (*model.Result, error) {
	data, err := r.rdb.Get(ctx, config.CacheKey.SessionResultKey(sessionID.String())).Bytes()
	if err != nil {
		return nil, redisError("get result", err)
	}
	var res model.Result
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("decode result: %w", err)
	}
	return &res, nil
}
