package client

import (
	"github.com/ValentinKolb/rKV/rpc/common"
)

// releaseScript deletes the lock only when it is held by the given owner.
// A lock that does not exist counts as released.
const releaseScript = `if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
elseif redis.call("EXISTS", KEYS[1]) == 0 then
	return 1
end
return 0`

// ILockManager provides simple locks stored under a key
type ILockManager interface {
	// AcquireLock acquires the lock for the given key. A timeout (seconds) greater than zero
	// releases the lock automatically. It returns whether the lock was acquired and the owner ID.
	AcquireLock(key string, timeout uint64) (ok bool, ownerID []byte, err error)

	// ReleaseLock releases the lock for the given key if it is held by ownerID.
	// It also returns true if the lock did not exist.
	ReleaseLock(key string, ownerID []byte) (ok bool, err error)
}

// NewLockMgr creates a lock manager on top of a client
func NewLockMgr(c IClient) ILockManager {
	return &clientLockMgr{client: c}
}

type clientLockMgr struct {
	client IClient
}

// --------------------------------------------------------------------------
// Interface Methods (docu see ILockManager)
// --------------------------------------------------------------------------

func (l *clientLockMgr) AcquireLock(key string, timeout uint64) (ok bool, ownerID []byte, err error) {
	ownerID = newOwnerID()
	args := []interface{}{key, ownerID, "NX"}
	if timeout > 0 {
		args = append(args, "EX", timeout)
	}

	reply, err := l.client.Execute(common.NewCommand("SET", args...))
	if err != nil {
		return false, nil, err
	}
	if _, err := checkReply(reply, true); err != nil {
		return false, nil, err
	}
	if reply.IsNull() {
		return false, nil, nil
	}
	return true, ownerID, nil
}

func (l *clientLockMgr) ReleaseLock(key string, ownerID []byte) (ok bool, err error) {
	cmd := common.NewScriptCommand("EVAL", releaseScript, []string{key}, ownerID)
	reply, err := l.client.Execute(cmd)
	if err != nil {
		return false, err
	}
	if _, err := checkReply(reply, true); err != nil {
		return false, err
	}
	return reply.Int == 1, nil
}
