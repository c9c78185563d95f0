package commerce

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"

	"audiolicense/pkg/contracts/domain"
)

// Seed is a fixture file for the in-memory stores
type Seed struct {
	Tiers  []domain.LicenseTier `yaml:"tiers"`
	Assets []domain.Asset       `yaml:"assets"`
	Orders []domain.Order       `yaml:"orders"`
}

// LoadSeed reads a YAML seed file
func LoadSeed(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}
	return ParseSeed(data)
}

// ParseSeed decodes seed YAML and checks ids are present and unique
func ParseSeed(data []byte) (*Seed, error) {
	var seed Seed
	if err := yaml.UnmarshalStrict(data, &seed); err != nil {
		return nil, fmt.Errorf("failed to parse seed: %w", err)
	}

	assetIDs := make(map[string]bool, len(seed.Assets))
	for i, a := range seed.Assets {
		if a.ID == "" {
			return nil, fmt.Errorf("asset %d: id is required", i)
		}
		if assetIDs[a.ID] {
			return nil, fmt.Errorf("asset %s: duplicate id", a.ID)
		}
		assetIDs[a.ID] = true
	}

	orderIDs := make(map[int64]bool, len(seed.Orders))
	for i, o := range seed.Orders {
		if o.ID <= 0 {
			return nil, fmt.Errorf("order %d: id must be positive", i)
		}
		if orderIDs[o.ID] {
			return nil, fmt.Errorf("order %d: duplicate id", o.ID)
		}
		orderIDs[o.ID] = true
		if o.Status == "" {
			seed.Orders[i].Status = domain.OrderStatusPending
		}
	}
	return &seed, nil
}

// Apply loads the seed's assets and orders into the memory stores
func (s *Seed) Apply(assets *MemoryAssets, shop *MemoryShop) {
	for _, a := range s.Assets {
		assets.Put(a)
	}
	for _, o := range s.Orders {
		shop.PutOrder(o)
	}
}
