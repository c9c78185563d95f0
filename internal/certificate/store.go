package certificate

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"

	apperrors "audiolicense/internal/errors"
	"audiolicense/internal/files"
	"audiolicense/pkg/contracts/domain"
)

// Store persists one certificate record per (order, item) pair
type Store interface {
	Get(ctx context.Context, orderID, itemID int64) (domain.Certificate, error)
	Save(ctx context.Context, cert domain.Certificate) error
}

type pairKey struct {
	order int64
	item  int64
}

func pairID(orderID, itemID int64) string {
	return strconv.FormatInt(orderID, 10) + "/" + strconv.FormatInt(itemID, 10)
}

// MemoryStore keeps records in process memory
type MemoryStore struct {
	mu      sync.RWMutex
	records map[pairKey]domain.Certificate
}

// NewMemoryStore creates an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[pairKey]domain.Certificate)}
}

// Get implements Store
func (s *MemoryStore) Get(_ context.Context, orderID, itemID int64) (domain.Certificate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.records[pairKey{orderID, itemID}]
	if !ok {
		return domain.Certificate{}, apperrors.NotFound("certificate.MemoryStore.Get", "certificate", pairID(orderID, itemID))
	}
	return c, nil
}

// Save implements Store
func (s *MemoryStore) Save(_ context.Context, cert domain.Certificate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[pairKey{cert.OrderID, cert.OrderItemID}] = cert
	return nil
}

// FileStore keeps each record as certificates/{orderID}/{itemID}.json
type FileStore struct {
	store files.Storage
}

// NewFileStore creates a FileStore on store
func NewFileStore(store files.Storage) *FileStore {
	return &FileStore{store: store}
}

func recordPath(orderID, itemID int64) string {
	return fmt.Sprintf("certificates/%d/%d.json", orderID, itemID)
}

// Get implements Store
func (s *FileStore) Get(ctx context.Context, orderID, itemID int64) (domain.Certificate, error) {
	p := recordPath(orderID, itemID)
	ok, err := s.store.Exists(ctx, p)
	if err != nil {
		return domain.Certificate{}, fmt.Errorf("failed to stat certificate record %s: %w", pairID(orderID, itemID), err)
	}
	if !ok {
		return domain.Certificate{}, apperrors.NotFound("certificate.FileStore.Get", "certificate", pairID(orderID, itemID))
	}

	data, err := s.store.Read(ctx, p)
	if err != nil {
		return domain.Certificate{}, fmt.Errorf("failed to read certificate record %s: %w", pairID(orderID, itemID), err)
	}
	var c domain.Certificate
	if err := json.Unmarshal(data, &c); err != nil {
		return domain.Certificate{}, fmt.Errorf("failed to parse certificate record %s: %w", pairID(orderID, itemID), err)
	}
	return c, nil
}

// Save implements Store
func (s *FileStore) Save(ctx context.Context, cert domain.Certificate) error {
	data, err := json.MarshalIndent(cert, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal certificate %s: %w", cert.Serial, err)
	}
	if err := s.store.Write(ctx, recordPath(cert.OrderID, cert.OrderItemID), data); err != nil {
		return fmt.Errorf("failed to write certificate %s: %w", cert.Serial, err)
	}
	return nil
}
