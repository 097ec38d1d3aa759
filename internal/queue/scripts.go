package queue

import goredis "github.com/redis/go-redis/v9"

// dequeueScript moves the first waiting job to active unless the queue is
// paused. Due delayed jobs are promoted first. A paused queue promotes
// nothing so its sets stay put for control operations.
//
// KEYS: wait, active, delayed, paused
// ARGV: now ms, lease deadline ms, job key prefix
var dequeueScript = goredis.NewScript(`
if redis.call("EXISTS", KEYS[4]) == 1 then
	return false
end
local due = redis.call("ZRANGEBYSCORE", KEYS[3], "-inf", ARGV[1])
for _, id in ipairs(due) do
	redis.call("ZREM", KEYS[3], id)
	local score = redis.call("HGET", ARGV[3] .. id, "wait_score")
	redis.call("ZADD", KEYS[1], score, id)
	redis.call("HSET", ARGV[3] .. id, "state", "waiting")
end
local popped = redis.call("ZPOPMIN", KEYS[1])
if #popped == 0 then
	return false
end
local id = popped[1]
redis.call("ZADD", KEYS[2], ARGV[2], id)
redis.call("HSET", ARGV[3] .. id, "state", "active", "processed_at", ARGV[1])
return id
`)

// finishScript moves an active job into a terminal or delayed set and
// trims the target set to the retention cap.
//
// KEYS: active, target
// ARGV: id, score, state, keep (-1 for unlimited), job key prefix, now ms,
// field, value
var finishScript = goredis.NewScript(`
if redis.call("ZREM", KEYS[1], ARGV[1]) == 0 then
	return 0
end
local key = ARGV[5] .. ARGV[1]
redis.call("ZADD", KEYS[2], ARGV[2], ARGV[1])
redis.call("HINCRBY", key, "attempts_made", 1)
redis.call("HSET", key, "state", ARGV[3], "finished_at", ARGV[6], ARGV[7], ARGV[8])
local keep = tonumber(ARGV[4])
if keep >= 0 then
	local excess = redis.call("ZCARD", KEYS[2]) - keep
	if excess > 0 then
		local old = redis.call("ZRANGE", KEYS[2], 0, excess - 1)
		for _, oid in ipairs(old) do
			redis.call("DEL", ARGV[5] .. oid)
		end
		redis.call("ZREMRANGEBYRANK", KEYS[2], 0, excess - 1)
	end
end
return 1
`)

// requeueStalledScript returns jobs whose lease expired to the wait set.
// A job stalled more than max times is moved to failed instead and the
// failed set is trimmed to the retention cap.
//
// KEYS: active, wait, failed
// ARGV: now ms, job key prefix, max stalls (-1 for unlimited), keep failed
// (-1 for unlimited), failed reason
// Returns {requeued, failed}.
var requeueStalledScript = goredis.NewScript(`
local stalled = redis.call("ZRANGEBYSCORE", KEYS[1], "-inf", ARGV[1])
local max = tonumber(ARGV[3])
local requeued, failed = 0, 0
for _, id in ipairs(stalled) do
	redis.call("ZREM", KEYS[1], id)
	local key = ARGV[2] .. id
	local count = redis.call("HINCRBY", key, "stalled_count", 1)
	if max >= 0 and count > max then
		redis.call("ZADD", KEYS[3], ARGV[1], id)
		redis.call("HSET", key, "state", "failed", "finished_at", ARGV[1], "failed_reason", ARGV[5])
		failed = failed + 1
	else
		local score = redis.call("HGET", key, "wait_score")
		redis.call("ZADD", KEYS[2], score, id)
		redis.call("HSET", key, "state", "waiting")
		requeued = requeued + 1
	end
end
local keep = tonumber(ARGV[4])
if failed > 0 and keep >= 0 then
	local excess = redis.call("ZCARD", KEYS[3]) - keep
	if excess > 0 then
		local old = redis.call("ZRANGE", KEYS[3], 0, excess - 1)
		for _, oid in ipairs(old) do
			redis.call("DEL", ARGV[2] .. oid)
		end
		redis.call("ZREMRANGEBYRANK", KEYS[3], 0, excess - 1)
	end
end
return {requeued, failed}
`)

// cleanScript deletes every job of one state set.
//
// KEYS: state set
// ARGV: job key prefix
var cleanScript = goredis.NewScript(`
local ids = redis.call("ZRANGE", KEYS[1], 0, -1)
for _, id in ipairs(ids) do
	redis.call("DEL", ARGV[1] .. id)
end
redis.call("DEL", KEYS[1])
return #ids
`)

// obliterateScript deletes every job in every state plus the repeatable
// registry. The pause flag is left alone.
//
// KEYS: wait, active, delayed, completed, failed, repeat
// ARGV: job key prefix
var obliterateScript = goredis.NewScript(`
local removed = 0
for i = 1, 5 do
	local ids = redis.call("ZRANGE", KEYS[i], 0, -1)
	for _, id in ipairs(ids) do
		redis.call("DEL", ARGV[1] .. id)
	end
	removed = removed + #ids
	redis.call("DEL", KEYS[i])
end
redis.call("DEL", KEYS[6])
return removed
`)
