package redis

import "github.com/redis/go-redis/v9"

// Key layout:
//   stock:{product}   integer, free units
//   hold:{session}    hash product -> pending units
//   cart:{session}    hash product -> committed units
//   cart:touched      zset session -> last touch (unix ms)
//
// Scripts combine stock and session keys, and releaseAllScript derives stock
// keys from hash fields, so they need a single-node Redis (or a primary with
// replicas). Cluster mode is not supported.

// reserveScript
// KEYS[1] stock, KEYS[2] hold, KEYS[3] touched
// ARGV[1] product, ARGV[2] session, ARGV[3] now
// Returns remaining stock, -1 when exhausted, -2 when unseeded.
var reserveScript = redis.NewScript(`
redis.call("ZADD", KEYS[3], ARGV[3], ARGV[2])
local raw = redis.call("GET", KEYS[1])
if not raw then
  return -2
end
local stock = tonumber(raw)
if stock <= 0 then
  return -1
end
redis.call("HINCRBY", KEYS[2], ARGV[1], 1)
return redis.call("DECR", KEYS[1])
`)

// releaseScript
// KEYS[1] stock, KEYS[2] hold, KEYS[3] cart, KEYS[4] touched
// ARGV[1] product, ARGV[2] session, ARGV[3] now
// Returns {moved (0|1), stock}.
var releaseScript = redis.NewScript(`
redis.call("ZADD", KEYS[4], ARGV[3], ARGV[2])
local function take(key)
  local n = tonumber(redis.call("HGET", key, ARGV[1]) or "0")
  if n <= 0 then
    return false
  end
  if n == 1 then
    redis.call("HDEL", key, ARGV[1])
  else
    redis.call("HINCRBY", key, ARGV[1], -1)
  end
  return true
end
if take(KEYS[2]) or take(KEYS[3]) then
  return {1, redis.call("INCR", KEYS[1])}
end
return {0, tonumber(redis.call("GET", KEYS[1]) or "0")}
`)

// commitScript
// KEYS[1] stock, KEYS[2] hold, KEYS[3] cart, KEYS[4] touched
// ARGV[1] product, ARGV[2] session, ARGV[3] now, ARGV[4] n
// Returns {cart qty, fresh units}, or {-2, 0} when fresh stock is needed
// but unseeded.
var commitScript = redis.NewScript(`
redis.call("ZADD", KEYS[4], ARGV[3], ARGV[2])
local n = tonumber(ARGV[4])
local pending = tonumber(redis.call("HGET", KEYS[2], ARGV[1]) or "0")
local take = math.min(pending, n)
local want = n - take
local stock = 0
if want > 0 then
  local raw = redis.call("GET", KEYS[1])
  if not raw then
    return {-2, 0}
  end
  stock = math.max(tonumber(raw), 0)
end
if take > 0 then
  if take == pending then
    redis.call("HDEL", KEYS[2], ARGV[1])
  else
    redis.call("HINCRBY", KEYS[2], ARGV[1], -take)
  end
end
local fresh = math.min(want, stock)
if fresh > 0 then
  redis.call("DECRBY", KEYS[1], fresh)
end
if take + fresh > 0 then
  return {redis.call("HINCRBY", KEYS[3], ARGV[1], take + fresh), fresh}
end
return {tonumber(redis.call("HGET", KEYS[3], ARGV[1]) or "0"), 0}
`)

// uncommitScript
// KEYS[1] hold, KEYS[2] cart, KEYS[3] touched
// ARGV[1] product, ARGV[2] session, ARGV[3] now, ARGV[4] n
// Returns the cart quantity.
var uncommitScript = redis.NewScript(`
redis.call("ZADD", KEYS[3], ARGV[3], ARGV[2])
local committed = tonumber(redis.call("HGET", KEYS[2], ARGV[1]) or "0")
local m = math.min(committed, tonumber(ARGV[4]))
if m <= 0 then
  return committed
end
if m == committed then
  redis.call("HDEL", KEYS[2], ARGV[1])
else
  redis.call("HINCRBY", KEYS[2], ARGV[1], -m)
end
redis.call("HINCRBY", KEYS[1], ARGV[1], m)
return committed - m
`)

// releaseAllScript
// KEYS[1] hold, KEYS[2] cart, KEYS[3] touched
// ARGV[1] session, ARGV[2] stock key prefix, ARGV[3] idle cutoff or ""
// Returns {0} when the session was touched after the cutoff, otherwise
// {1, product, units, product, units, ...}.
var releaseAllScript = redis.NewScript(`
if ARGV[3] ~= "" then
  local score = redis.call("ZSCORE", KEYS[3], ARGV[1])
  if score and tonumber(score) > tonumber(ARGV[3]) then
    return {0}
  end
end
local totals = {}
for _, key in ipairs({KEYS[1], KEYS[2]}) do
  local h = redis.call("HGETALL", key)
  for i = 1, #h, 2 do
    totals[h[i]] = (totals[h[i]] or 0) + tonumber(h[i + 1])
  end
end
local out = {1}
for product, units in pairs(totals) do
  if units > 0 then
    redis.call("INCRBY", ARGV[2] .. product, units)
    table.insert(out, product)
    table.insert(out, units)
  end
end
redis.call("DEL", KEYS[1], KEYS[2])
redis.call("ZREM", KEYS[3], ARGV[1])
return out
`)
