package client

import (
	"errors"
	"fmt"
	"github.com/ValentinKolb/rKV/rpc/common"
	"github.com/ValentinKolb/rKV/rpc/resp"
	"time"
)

// IStore is a small key value view of a client
type IStore interface {
	// Set inserts or updates a key value pair
	Set(key string, value []byte) (err error)
	// SetE inserts or updates a key value pair that is deleted after ttl. A zero ttl means no expiration.
	SetE(key string, value []byte, ttl time.Duration) (err error)
	// SetEIfUnset inserts a key value pair if the key does not exist.
	// The returned bool tells whether the value was written.
	SetEIfUnset(key string, value []byte, ttl time.Duration) (ok bool, err error)
	// Expire sets the time to live of an existing key. The ttl must be positive, sub millisecond
	// values are rounded up to one millisecond.
	Expire(key string, ttl time.Duration) (ok bool, err error)
	// Delete deletes a key value pair
	Delete(key string) (err error)
	// Get returns the value for a key. The boolean return value indicates whether a value for the key was found.
	Get(key string) (value []byte, loaded bool, err error)
	// Has returns whether a key exists
	Has(key string) (loaded bool, err error)
}

// ErrInvalidTTL is returned by Expire for a ttl that is not positive. Use Delete to remove a key.
var ErrInvalidTTL = errors.New("ttl must be positive")

// NewStore creates a store on top of a client
func NewStore(c IClient) IStore {
	return &clientStore{client: c}
}

type clientStore struct {
	client IClient
}

// --------------------------------------------------------------------------
// Interface Methods (docu see IStore)
// --------------------------------------------------------------------------

func (s *clientStore) Set(key string, value []byte) (err error) {
	return s.SetE(key, value, 0)
}

func (s *clientStore) SetE(key string, value []byte, ttl time.Duration) (err error) {
	reply, err := s.invoke(setCommand(key, value, ttl, false))
	if err != nil {
		return err
	}
	return expectOK(reply)
}

func (s *clientStore) SetEIfUnset(key string, value []byte, ttl time.Duration) (ok bool, err error) {
	reply, err := s.invoke(setCommand(key, value, ttl, true))
	if err != nil {
		return false, err
	}
	// a null reply means the key already exists
	if reply.IsNull() {
		return false, nil
	}
	return true, expectOK(reply)
}

func (s *clientStore) Expire(key string, ttl time.Duration) (ok bool, err error) {
	// PEXPIRE with a non positive ttl deletes the key
	if ttl <= 0 {
		return false, ErrInvalidTTL
	}
	reply, err := s.invoke(common.NewCommand("PEXPIRE", key, ttlMillis(ttl)))
	if err != nil {
		return false, err
	}
	return reply.Int == 1, nil
}

func (s *clientStore) Delete(key string) (err error) {
	_, err = s.invoke(common.NewCommand("DEL", key))
	return err
}

func (s *clientStore) Get(key string) (value []byte, loaded bool, err error) {
	reply, err := s.invoke(common.NewCommand("GET", key))
	if err != nil {
		return nil, false, err
	}
	if reply.IsNull() {
		return nil, false, nil
	}
	return reply.Str, true, nil
}

func (s *clientStore) Has(key string) (loaded bool, err error) {
	reply, err := s.invoke(common.NewCommand("EXISTS", key))
	if err != nil {
		return false, err
	}
	return reply.Int > 0, nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// invoke executes the command and turns error replies into errors, whatever the client is configured to do
func (s *clientStore) invoke(cmd common.Command) (resp.Frame, error) {
	reply, err := s.client.Execute(cmd)
	if err != nil {
		return resp.Frame{}, err
	}
	return checkReply(reply, true)
}

func setCommand(key string, value []byte, ttl time.Duration, onlyIfUnset bool) common.Command {
	args := []interface{}{key, value}
	if ttl > 0 {
		args = append(args, "PX", ttlMillis(ttl))
	}
	if onlyIfUnset {
		args = append(args, "NX")
	}
	return common.NewCommand("SET", args...)
}

// ttlMillis converts a positive ttl to milliseconds, rounding up so it never becomes 0
func ttlMillis(ttl time.Duration) int64 {
	return int64((ttl + time.Millisecond - 1) / time.Millisecond)
}

func expectOK(reply resp.Frame) error {
	if reply.Kind != resp.KindStatus || reply.Text() != "OK" {
		return fmt.Errorf("unexpected reply %s", reply)
	}
	return nil
}
