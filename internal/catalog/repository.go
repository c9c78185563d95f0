package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"audiolicense/internal/files"
	"audiolicense/pkg/contracts/domain"
)

// Repository persists a catalog as one ordered collection
type Repository interface {
	Load(ctx context.Context, catalogID string) ([]domain.LicenseTier, error)
	Save(ctx context.Context, catalogID string, tiers []domain.LicenseTier) error
}

// MemoryRepository is an in-memory implementation of Repository
type MemoryRepository struct {
	mu       sync.RWMutex
	catalogs map[string][]domain.LicenseTier
}

// NewMemoryRepository creates a new in-memory catalog repository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{catalogs: make(map[string][]domain.LicenseTier)}
}

// Load returns a copy of the stored tiers; an unknown catalog is empty
func (r *MemoryRepository) Load(ctx context.Context, catalogID string) ([]domain.LicenseTier, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return cloneTiers(r.catalogs[catalogID]), nil
}

// Save replaces the stored tiers
func (r *MemoryRepository) Save(ctx context.Context, catalogID string, tiers []domain.LicenseTier) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.catalogs[catalogID] = cloneTiers(tiers)
	return nil
}

// FileRepository stores each catalog as a JSON document on file storage
type FileRepository struct {
	store files.Storage
}

type catalogDocument struct {
	CatalogID string               `json:"catalog_id"`
	SavedAt   time.Time            `json:"saved_at"`
	Tiers     []domain.LicenseTier `json:"tiers"`
}

// NewFileRepository creates a repository writing catalogs/{id}.json to store
func NewFileRepository(store files.Storage) *FileRepository {
	return &FileRepository{store: store}
}

func documentPath(catalogID string) string {
	return fmt.Sprintf("catalogs/%s.json", catalogID)
}

// Load implements Repository
func (r *FileRepository) Load(ctx context.Context, catalogID string) ([]domain.LicenseTier, error) {
	p := documentPath(catalogID)
	ok, err := r.store.Exists(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("failed to stat catalog %s: %w", catalogID, err)
	}
	if !ok {
		return nil, nil
	}

	data, err := r.store.Read(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog %s: %w", catalogID, err)
	}
	var doc catalogDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse catalog %s: %w", catalogID, err)
	}
	return doc.Tiers, nil
}

// Save implements Repository
func (r *FileRepository) Save(ctx context.Context, catalogID string, tiers []domain.LicenseTier) error {
	doc := catalogDocument{CatalogID: catalogID, SavedAt: time.Now().UTC(), Tiers: tiers}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal catalog %s: %w", catalogID, err)
	}
	if err := r.store.Write(ctx, documentPath(catalogID), data); err != nil {
		return fmt.Errorf("failed to write catalog %s: %w", catalogID, err)
	}
	return nil
}

func cloneTiers(tiers []domain.LicenseTier) []domain.LicenseTier {
	if tiers == nil {
		return nil
	}
	out := make([]domain.LicenseTier, len(tiers))
	for i, t := range tiers {
		out[i] = t.Clone()
	}
	return out
}

// sortTiers orders tiers by SortOrder, keeping the stored order for ties
func sortTiers(tiers []domain.LicenseTier) {
	sort.SliceStable(tiers, func(i, j int) bool {
		return tiers[i].SortOrder < tiers[j].SortOrder
	})
}
