// Package session persists the authenticated session for the CLI:
// the bearer token and session token issued by the backend, plus a
// cached copy of the user profile. Credentials are sealed at rest and
// the store is handed to the API client explicitly instead of being
// read from ambient global state.
package session

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	bolt "go.etcd.io/bbolt"
	"golang.org/x/crypto/nacl/secretbox"

	"github.com/mailcannon/mailcannon/internal/api"
)

const (
	dbFile  = "session.db"
	keyFile = "secret.key"
)

var (
	bucketSession = []byte("session")

	keyCredentials = []byte("credentials")
	keyUser        = []byte("user")
)

// ErrNotLoggedIn is returned when no credentials are stored.
var ErrNotLoggedIn = errors.New("not logged in")

// Credentials are the tokens attached to every authenticated request.
type Credentials struct {
	Token        string `json:"token"`
	SessionToken string `json:"session_token"`
}

// Store is the local credential store backed by bbolt.
type Store struct {
	db    *bolt.DB
	key   [32]byte
	creds Credentials
}

// Open opens (creating if needed) the session store under dir.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	key, err := loadOrCreateKey(filepath.Join(dir, keyFile))
	if err != nil {
		return nil, err
	}

	db, err := bolt.Open(filepath.Join(dir, dbFile), 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open session store: %w", err)
	}

	s := &Store{db: db, key: key}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketSession)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize session store: %w", err)
	}

	if err := s.loadCredentials(); err != nil && !errors.Is(err, ErrNotLoggedIn) {
		db.Close()
		return nil, err
	}

	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Credentials implements api.CredentialSource. Empty strings mean no
// session is stored.
func (s *Store) Credentials() (token, sessionToken string) {
	return s.creds.Token, s.creds.SessionToken
}

// LoggedIn reports whether a session is stored.
func (s *Store) LoggedIn() bool {
	return s.creds.Token != ""
}

// SaveCredentials seals and persists the tokens.
func (s *Store) SaveCredentials(creds Credentials) error {
	plain, err := json.Marshal(creds)
	if err != nil {
		return fmt.Errorf("marshal credentials: %w", err)
	}

	sealed, err := s.seal(plain)
	if err != nil {
		return err
	}

	err = s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSession).Put(keyCredentials, sealed)
	})
	if err != nil {
		return fmt.Errorf("failed to save credentials: %w", err)
	}

	s.creds = creds
	return nil
}

// SaveUser caches the user profile.
func (s *Store) SaveUser(u *api.User) error {
	data, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("marshal user: %w", err)
	}
	err = s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSession).Put(keyUser, data)
	})
	if err != nil {
		return fmt.Errorf("failed to save user: %w", err)
	}
	return nil
}

// User returns the cached user profile, or nil if none is stored.
func (s *Store) User() (*api.User, error) {
	var data []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(bucketSession).Get(keyUser); v != nil {
			data = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, nil
	}

	u := &api.User{}
	if err := json.Unmarshal(data, u); err != nil {
		return nil, fmt.Errorf("unmarshal cached user: %w", err)
	}
	return u, nil
}

// Clear removes the stored session. Called on logout and whenever the
// backend answers 401.
func (s *Store) Clear() error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSession)
		if err := b.Delete(keyCredentials); err != nil {
			return err
		}
		return b.Delete(keyUser)
	})
	if err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	s.creds = Credentials{}
	return nil
}

func (s *Store) loadCredentials() error {
	var sealed []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(bucketSession).Get(keyCredentials); v != nil {
			sealed = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if sealed == nil {
		return ErrNotLoggedIn
	}

	plain, err := s.open(sealed)
	if err != nil {
		// An undecryptable record is treated as no session; the key
		// file was likely rotated or the db copied between machines.
		s.creds = Credentials{}
		return ErrNotLoggedIn
	}

	if err := json.Unmarshal(plain, &s.creds); err != nil {
		s.creds = Credentials{}
		return ErrNotLoggedIn
	}
	return nil
}

func (s *Store) seal(plain []byte) ([]byte, error) {
	var nonce [24]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	return secretbox.Seal(nonce[:], plain, &nonce, &s.key), nil
}

func (s *Store) open(sealed []byte) ([]byte, error) {
	if len(sealed) < 24 {
		return nil, errors.New("sealed record too short")
	}
	var nonce [24]byte
	copy(nonce[:], sealed[:24])
	plain, ok := secretbox.Open(nil, sealed[24:], &nonce, &s.key)
	if !ok {
		return nil, errors.New("failed to open sealed record")
	}
	return plain, nil
}

// loadOrCreateKey reads the per-install secretbox key, generating one on
// first use.
func loadOrCreateKey(path string) ([32]byte, error) {
	var key [32]byte

	data, err := os.ReadFile(path)
	if err == nil {
		if len(data) != 32 {
			return key, fmt.Errorf("key file %s is corrupt", path)
		}
		copy(key[:], data)
		return key, nil
	}
	if !os.IsNotExist(err) {
		return key, fmt.Errorf("failed to read key file: %w", err)
	}

	if _, err := rand.Read(key[:]); err != nil {
		return key, fmt.Errorf("generate key: %w", err)
	}
	if err := os.WriteFile(path, key[:], 0600); err != nil {
		return key, fmt.Errorf("failed to write key file: %w", err)
	}
	return key, nil
}
