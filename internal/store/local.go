package store

import (
	"encoding/json"
	"fmt"

	"github.com/peterbourgon/diskv/v3"

	"physiotrack-backend/internal/model"
)

// DiskvLocal stores the bed collection as one JSON document under a
// versioned key. A schema change must use a new key so old documents are
// never partially decoded.
type DiskvLocal struct {
	d   *diskv.Diskv
	key string
}

// NewDiskvLocal creates a local store rooted at basePath.
func NewDiskvLocal(basePath, key string) *DiskvLocal {
	return &DiskvLocal{
		d: diskv.New(diskv.Options{
			BasePath:     basePath,
			Transform:    func(string) []string { return []string{} },
			CacheSizeMax: 1024 * 1024, // 1MB
		}),
		key: key,
	}
}

// Load returns the saved beds, or nil when nothing was saved under the key.
func (l *DiskvLocal) Load() ([]model.Bed, error) {
	if !l.d.Has(l.key) {
		return nil, nil
	}
	val, err := l.d.Read(l.key)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", l.key, err)
	}
	var beds []model.Bed
	if err := json.Unmarshal(val, &beds); err != nil {
		return nil, fmt.Errorf("decode %s: %w", l.key, err)
	}
	return beds, nil
}

// Save replaces the saved beds.
func (l *DiskvLocal) Save(beds []model.Bed) error {
	val, err := json.Marshal(beds)
	if err != nil {
		return fmt.Errorf("encode beds: %w", err)
	}
	if err := l.d.Write(l.key, val); err != nil {
		return fmt.Errorf("write %s: %w", l.key, err)
	}
	return nil
}
