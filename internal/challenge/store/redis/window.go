// Package redis implements the issuance sliding windows on Redis sorted
// sets. All dimensions are checked and incremented by one Lua script, so the
// "check then count" step is atomic across every window: two concurrent
// issuers can never both slide under the same last slot.
package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"verigate/internal/challenge/store"
)

const keyPrefix = "otp:window:"

// reserveScript checks every window and, only when all are under their
// limits, records one event in each. KEYS holds the window keys; ARGV is
// [now_micros, window_micros, member, limit1, limit2, ...]. Returns the
// indexes (1-based) of the tripped windows, empty on success.
var reserveScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local member = ARGV[3]
local cutoff = now - window

local tripped = {}
for i, key in ipairs(KEYS) do
	redis.call('ZREMRANGEBYSCORE', key, 0, cutoff)
	local count = redis.call('ZCARD', key)
	local limit = tonumber(ARGV[3 + i])
	if count >= limit then
		table.insert(tripped, i)
	end
end

if #tripped > 0 then
	return tripped
end

for _, key in ipairs(KEYS) do
	redis.call('ZADD', key, now, member)
	redis.call('PEXPIRE', key, math.ceil(window / 1000))
end
return tripped
`)

// WindowStore is the Redis-backed sliding-window counter.
type WindowStore struct {
	client *redis.Client
}

// New creates a Redis window store.
func New(client *redis.Client) *WindowStore {
	return &WindowStore{client: client}
}

func (s *WindowStore) ReserveAll(ctx context.Context, window time.Duration, reservations []store.Reservation) ([]string, error) {
	keys := make([]string, len(reservations))
	args := make([]any, 0, len(reservations)+3)
	args = append(args,
		strconv.FormatInt(time.Now().UnixMicro(), 10),
		strconv.FormatInt(window.Microseconds(), 10),
		uuid.NewString(),
	)
	for i, r := range reservations {
		keys[i] = keyPrefix + r.Dimension + ":" + r.Key
		args = append(args, strconv.Itoa(r.Limit))
	}

	raw, err := reserveScript.Run(ctx, s.client, keys, args...).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("reserve challenge windows: %w", err)
	}

	tripped := make([]string, 0, len(raw))
	for _, idx := range raw {
		tripped = append(tripped, reservations[idx-1].Dimension)
	}
	return tripped, nil
}

var _ store.WindowStore = (*WindowStore)(nil)
