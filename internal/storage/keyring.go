package storage

import (
	"context"
	"errors"

	"github.com/zalando/go-keyring"
)

// ServiceName is the keyring service entries are stored under.
const ServiceName = "slides"

// KeyringStore keeps values in the system keyring.
type KeyringStore struct {
	service string
}

// NewKeyringStore creates a keyring-backed store.
func NewKeyringStore() *KeyringStore {
	return &KeyringStore{service: ServiceName}
}

func keyringKey(key string) string {
	return ServiceName + "::" + key
}

func (s *KeyringStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, err := keyring.Get(s.service, keyringKey(key))
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return []byte(v), true, nil
}

func (s *KeyringStore) Set(_ context.Context, key string, value []byte) error {
	return keyring.Set(s.service, keyringKey(key), string(value))
}

func (s *KeyringStore) Remove(_ context.Context, key string) error {
	err := keyring.Delete(s.service, keyringKey(key))
	if errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return err
}

// KeyringAvailable checks the system keyring with a throwaway entry.
func KeyringAvailable() bool {
	check := keyringKey("availability-check")
	if err := keyring.Set(ServiceName, check, "ok"); err != nil {
		return false
	}
	_ = keyring.Delete(ServiceName, check)
	return true
}
