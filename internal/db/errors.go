package db

import "errors"

// ErrKeyNotFound is returned by point reads of a missing key.
var ErrKeyNotFound = errors.New("db: key not found")

// Op constants name the failing command or statement for error context.
const (
	OpDel      = "DEL"
	OpHGetAll  = "HGETALL"
	OpHSet     = "HSET"
	OpHIncrBy  = "HINCRBY"
	OpScan     = "SCAN"
	OpGet      = "GET"
	OpIncrBy   = "INCRBY"
	OpExpire   = "EXPIRE"
	OpSAdd     = "SADD"
	OpSMembers = "SMEMBERS"
	OpSRem     = "SREM"
	OpSelect   = "SELECT"
	OpUpsert   = "UPSERT"
	OpDelete   = "DELETE"
	OpMigrate  = "MIGRATE"
)

// Error wraps an underlying error with the operation name for diagnostics.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }
