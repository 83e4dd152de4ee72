package server

import (
	"fmt"
	"log/slog"
	"sync"

	lru "github.com/hashicorp/golang-lru"

	"github.com/information-sharing-networks/cmp-trust/internal/config"
	"github.com/information-sharing-networks/cmp-trust/internal/validation"
)

// transaction is the validation state of one CMP transaction. mu serializes the messages of the
// transaction because validation.Context is not safe for concurrent use.
type transaction struct {
	mu  sync.Mutex
	ctx *validation.Context
}

// transactionStore keeps the validation contexts of open transactions, keyed by profile and
// transactionID. The least recently used transaction is evicted when the store is full.
type transactionStore struct {
	mu    sync.Mutex
	cache *lru.Cache
}

func newTransactionStore(size int) (*transactionStore, error) {
	cache, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("failed to create transaction cache: %w", err)
	}
	return &transactionStore{cache: cache}, nil
}

func transactionKey(profile, transactionID string) string {
	return profile + "/" + transactionID
}

// acquire returns the locked transaction for (profile, transactionID), creating it when needed.
// Messages without a transactionID get a fresh transaction that is not stored.
// The caller must call release.
func (s *transactionStore) acquire(profile *config.Profile, transactionID string, logger *slog.Logger) *transaction {
	if transactionID == "" {
		tx := &transaction{ctx: profile.NewContext(logger)}
		tx.mu.Lock()
		return tx
	}

	key := transactionKey(profile.Name, transactionID)

	s.mu.Lock()
	var tx *transaction
	if v, ok := s.cache.Get(key); ok {
		tx = v.(*transaction)
	} else {
		tx = &transaction{ctx: profile.NewContext(logger)}
		s.cache.Add(key, tx)
	}
	s.mu.Unlock()

	tx.mu.Lock()
	tx.ctx.Logger = logger.With(slog.String("profile", profile.Name))
	return tx
}

func (s *transactionStore) release(tx *transaction) {
	tx.mu.Unlock()
}

// close drops the stored state of a transaction.
func (s *transactionStore) close(profile, transactionID string) {
	if transactionID == "" {
		return
	}
	s.mu.Lock()
	s.cache.Remove(transactionKey(profile, transactionID))
	s.mu.Unlock()
}

func (s *transactionStore) len() int {
	return s.cache.Len()
}
