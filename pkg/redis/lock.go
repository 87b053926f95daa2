package redis

import (
	"context"
	"time"

	"github.com/google/uuid"
	pkgerrors "github.com/printforge/printforge-backend/pkg/errors"
)

const (
	lockTTL           = 10 * time.Second
	lockRetryInterval = 25 * time.Millisecond
	lockAcquireWait   = 3 * time.Second
)

// unlockScript releases the lock only when held by the caller's token, so a
// slow holder cannot release a lock that already expired and was re-acquired.
const unlockScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end`

// AcquireLock takes a short-lived mutex for the given scope. It retries until
// the wait budget runs out, then fails with a conflict error.
func (c *Client) AcquireLock(ctx context.Context, scope string) (string, error) {
	key := c.LockKey(scope)
	token := uuid.NewString()
	deadline := time.Now().Add(lockAcquireWait)

	for {
		ok, err := c.SetNX(ctx, key, token, lockTTL)
		if err != nil {
			return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "acquire lock")
		}
		if ok {
			return token, nil
		}
		if time.Now().After(deadline) {
			return "", pkgerrors.New(pkgerrors.CodeConflict, "resource is busy, retry shortly")
		}
		select {
		case <-ctx.Done():
			return "", pkgerrors.Wrap(pkgerrors.CodeDependency, ctx.Err(), "acquire lock")
		case <-time.After(lockRetryInterval):
		}
	}
}

// ReleaseLock releases the mutex if the token still owns it.
func (c *Client) ReleaseLock(ctx context.Context, scope, token string) error {
	if c.store == nil {
		return nil
	}
	key := c.LockKey(scope)
	return c.store.Eval(ctx, unlockScript, []string{key}, token).Err()
}
