package monitor

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sync"
	"time"

	"github.com/nicktill/thermonest/pkg/errdefs"
)

// usageCacheDuration bounds how often the data directory is walked
const usageCacheDuration = 10 * time.Second

// StorageMonitor tracks disk usage of an embedded store's data directory
// and enforces the configured limit on writes.
type StorageMonitor struct {
	dataDir  string
	maxBytes int64

	mu          sync.Mutex
	cachedUsage int64
	lastCheck   time.Time
}

// StorageUsage is the /api/storage response.
type StorageUsage struct {
	UsedBytes int64   `json:"used_bytes"`
	MaxBytes  int64   `json:"max_bytes"`
	Percent   float64 `json:"percent"`
}

// NewStorageMonitor creates a monitor; maxBytes of 0 disables the limit.
func NewStorageMonitor(dataDir string, maxBytes int64) *StorageMonitor {
	return &StorageMonitor{dataDir: dataDir, maxBytes: maxBytes}
}

// GetUsage returns current usage in bytes, recomputed at most every 10 seconds.
func (sm *StorageMonitor) GetUsage() (int64, error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if !sm.lastCheck.IsZero() && time.Since(sm.lastCheck) < usageCacheDuration {
		return sm.cachedUsage, nil
	}

	usage, err := dirSize(sm.dataDir)
	if err != nil {
		return 0, err
	}

	sm.cachedUsage = usage
	sm.lastCheck = time.Now()
	return usage, nil
}

// GetLimit returns the configured limit in bytes.
func (sm *StorageMonitor) GetLimit() int64 {
	return sm.maxBytes
}

// Usage returns usage and limit together.
func (sm *StorageMonitor) Usage() (StorageUsage, error) {
	used, err := sm.GetUsage()
	if err != nil {
		return StorageUsage{}, err
	}
	u := StorageUsage{UsedBytes: used, MaxBytes: sm.maxBytes}
	if sm.maxBytes > 0 {
		u.Percent = float64(used) / float64(sm.maxBytes) * 100
	}
	return u, nil
}

// CheckLimit returns errdefs.ErrStorageFull once usage reaches the limit.
// A failed disk walk does not block writes.
func (sm *StorageMonitor) CheckLimit() error {
	if sm.maxBytes <= 0 {
		return nil
	}
	used, err := sm.GetUsage()
	if err != nil {
		return nil
	}
	if used >= sm.maxBytes {
		return fmt.Errorf("%w: %d of %d bytes used", errdefs.ErrStorageFull, used, sm.maxBytes)
	}
	return nil
}

// dirSize sums the on-disk size of every file under path.
func dirSize(path string) (int64, error) {
	var size int64
	err := filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if n, err := diskUsage(p, info); err == nil {
			size += n
		} else {
			size += info.Size()
		}
		return nil
	})
	return size, err
}
