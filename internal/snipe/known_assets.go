// internal/snipe/known_assets.go
package snipe

import "sync"

// KnownAssetSet only grows: once seen, an asset is never reported as new again.
type KnownAssetSet struct {
	mu     sync.Mutex
	assets map[string]struct{}
}

func NewKnownAssetSet() *KnownAssetSet {
	return &KnownAssetSet{assets: make(map[string]struct{})}
}

// AddNew inserts every asset of snapshot and returns those not seen before, in snapshot order.
func (k *KnownAssetSet) AddNew(snapshot []string) []string {
	k.mu.Lock()
	defer k.mu.Unlock()

	var fresh []string
	for _, asset := range snapshot {
		if asset == "" {
			continue
		}
		if _, ok := k.assets[asset]; ok {
			continue
		}
		k.assets[asset] = struct{}{}
		fresh = append(fresh, asset)
	}
	return fresh
}

func (k *KnownAssetSet) Contains(asset string) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	_, ok := k.assets[asset]
	return ok
}

func (k *KnownAssetSet) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.assets)
}
