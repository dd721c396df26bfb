package domain

import (
	"errors"
	"fmt"
)

// StorageErrorKind classifies why a key-space operation did not produce a value.
type StorageErrorKind string

const (
	KindKeyMissing         StorageErrorKind = "key_missing"
	KindStorageUnavailable StorageErrorKind = "storage_unavailable"
	KindQuotaExceeded      StorageErrorKind = "quota_exceeded"
	KindCorruptRecord      StorageErrorKind = "corrupt_record"
	KindSyncPayloadInvalid StorageErrorKind = "sync_payload_invalid"
)

var (
	ErrKeyMissing         = errors.New("key missing")
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrQuotaExceeded      = errors.New("storage quota exceeded")
	ErrCorruptRecord      = errors.New("corrupt record")
	ErrSyncPayloadInvalid = errors.New("sync payload invalid")
)

var kindSentinels = map[StorageErrorKind]error{
	KindKeyMissing:         ErrKeyMissing,
	KindStorageUnavailable: ErrStorageUnavailable,
	KindQuotaExceeded:      ErrQuotaExceeded,
	KindCorruptRecord:      ErrCorruptRecord,
	KindSyncPayloadInvalid: ErrSyncPayloadInvalid,
}

// StorageError is the only error type the storage layer hands back to the store.
type StorageError struct {
	Kind StorageErrorKind
	Key  string
	Err  error
}

func NewStorageError(kind StorageErrorKind, key string, err error) *StorageError {
	return &StorageError{Kind: kind, Key: key, Err: err}
}

func (e *StorageError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s (key %q): %v", e.Kind, e.Key, e.Err)
	}
	return fmt.Sprintf("%s (key %q)", e.Kind, e.Key)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrQuotaExceeded) match on the kind alone.
func (e *StorageError) Is(target error) bool {
	return kindSentinels[e.Kind] == target
}

// KindOf returns the storage error kind of err, classifying unknown errors as
// StorageUnavailable.
func KindOf(err error) StorageErrorKind {
	if err == nil {
		return ""
	}
	var se *StorageError
	if errors.As(err, &se) {
		return se.Kind
	}
	for kind, sentinel := range kindSentinels {
		if errors.Is(err, sentinel) {
			return kind
		}
	}
	return KindStorageUnavailable
}
