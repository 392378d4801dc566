// Package prooftoken keeps the single-use session token an operator reads
// from disk to prove control of the host.
package prooftoken

import (
	"crypto/subtle"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/stake-plus/claimd/src/shared/fsx"
)

// Filename is the fixed name of the proof file inside the state directory.
const Filename = "claim_session_id"

const fileMode = 0o640

// Store holds the live token. At most one value matches at any time.
type Store struct {
	mu     sync.Mutex
	dir    string
	live   uuid.UUID
	path   string
	log    *zap.Logger
	random func() (uuid.UUID, error)
}

func New(stateDir string, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{
		dir:    stateDir,
		log:    log.Named("prooftoken"),
		random: uuid.NewRandom,
	}
}

// Generate replaces the live token and writes it to the proof file. The new
// value is live even when the write fails; the error only means operators
// cannot read it from disk.
func (s *Store) Generate() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generateLocked()
}

func (s *Store) generateLocked() error {
	id, err := s.random()
	if err != nil {
		// keep nothing live rather than a value that may have leaked
		s.live = uuid.Nil
		return fmt.Errorf("generate proof token: %w", err)
	}
	s.live = id

	path := fsx.StatePath(s.dir, Filename)
	if err := fsx.ReplaceFile(path, []byte(id.String()+"\n"), fileMode); err != nil {
		s.log.Error("cannot write proof token file", zap.String("path", path), zap.Error(err))
		return err
	}
	s.path = path
	return nil
}

// Path returns the file holding the live token, generating one first when
// none exists. It is empty if no write has ever succeeded.
func (s *Store) Path() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.path == "" {
		_ = s.generateLocked()
	}
	return s.path
}

// Matches reports whether candidate is the live token.
func (s *Store) Matches(candidate string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.matchesLocked(candidate)
}

// Consume checks candidate against the live token and rotates the token in
// the same critical section, whatever the result. A value can therefore be
// accepted at most once.
func (s *Store) Consume(candidate string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	ok := s.matchesLocked(candidate)
	if err := s.generateLocked(); err != nil {
		s.log.Warn("proof token rotated in memory only", zap.Error(err))
	}
	return ok
}

func (s *Store) matchesLocked(candidate string) bool {
	if s.live == uuid.Nil {
		return false
	}
	// only the plain 8-4-4-4-12 form; uuid.Parse also takes urn and braces
	if len(candidate) != 36 {
		return false
	}
	id, err := uuid.Parse(candidate)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare(id[:], s.live[:]) == 1
}
