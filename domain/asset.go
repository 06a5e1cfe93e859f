package domain

import (
	"sync"

	"go.uber.org/zap"
)

// AssetConfig is the operator-supplied definition of one asset, as it
// arrives from whatever config surface the embedding process uses (file,
// RPC, flags); that surface is outside this package's concern.
type AssetConfig struct {
	ID            string
	SavePrecision uint
	ShowPrecision uint
	RollupTokenID uint64
}

// Asset is the immutable-after-registration metadata for one tradable asset.
type Asset struct {
	ID            string
	SavePrecision uint
	ShowPrecision uint
	// InnerID mirrors AssetConfig.RollupTokenID: preserved for downstream
	// consumers, plays no role in matching.
	InnerID uint64
}

// AssetRegistry is the process-wide table of known assets. It is effectively
// read-only during matching: mutations happen only via operator-driven
// Register calls between submissions, never concurrently with a market's
// single writer goroutine touching it.
type AssetRegistry struct {
	mu     sync.RWMutex
	assets map[string]Asset
	log    *zap.Logger
}

// NewAssetRegistry constructs an empty registry.
func NewAssetRegistry(log *zap.Logger) *AssetRegistry {
	if log == nil {
		log = zap.NewNop()
	}
	return &AssetRegistry{
		assets: make(map[string]Asset),
		log:    log,
	}
}

// Register inserts or replaces the metadata for each asset in cfgs. Updating
// an existing asset replaces its metadata in place.
func (r *AssetRegistry) Register(cfgs ...AssetConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, cfg := range cfgs {
		id := Intern(cfg.ID)
		_, existed := r.assets[id]
		r.assets[id] = Asset{
			ID:            id,
			SavePrecision: cfg.SavePrecision,
			ShowPrecision: cfg.ShowPrecision,
			InnerID:       cfg.RollupTokenID,
		}
		if existed {
			r.log.Info("asset registry updated existing asset", zap.String("asset", id))
		} else {
			r.log.Info("asset registry inserted new asset", zap.String("asset", id))
		}
	}
}

// Exists reports whether id has been registered.
func (r *AssetRegistry) Exists(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.assets[id]
	return ok
}

// Get returns the asset metadata for id. ok is false for an unregistered id.
func (r *AssetRegistry) Get(id string) (Asset, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.assets[id]
	return a, ok
}

// MustGet returns the asset metadata for id, or panics. Callers use this only
// where an unknown asset is a fatal precondition violation (e.g. inside a
// balance write reached only after Market construction already validated the
// asset exists).
func (r *AssetRegistry) MustGet(id string) Asset {
	a, ok := r.Get(id)
	if !ok {
		r.log.Error("fatal: unknown asset referenced after registration should have guaranteed existence", zap.String("asset", id))
		panic("clobcore/domain: unknown asset " + id)
	}
	return a
}

// SavePrecision returns the save precision for id, or 0 if unregistered.
func (r *AssetRegistry) SavePrecision(id string) uint {
	a, ok := r.Get(id)
	if !ok {
		return 0
	}
	return a.SavePrecision
}

// ShowPrecision returns the show precision for id, or 0 if unregistered.
func (r *AssetRegistry) ShowPrecision(id string) uint {
	a, ok := r.Get(id)
	if !ok {
		return 0
	}
	return a.ShowPrecision
}
