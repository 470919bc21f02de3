package cluster

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// StaticPositions is a fixed map of partition to exported position.
type StaticPositions map[int]int64

// LastExportedPosition returns the configured position of the partition.
func (p StaticPositions) LastExportedPosition(ctx context.Context, partition int) (int64, error) {
	position, ok := p[partition]
	if !ok {
		return 0, fmt.Errorf("partition %d: %w", partition, ErrUnknownPartition)
	}
	return position, nil
}

// positionsFile is the YAML layout of a positions file:
//
//	partitions:
//	  1: 2500
//	  2: 3100
type positionsFile struct {
	Partitions map[int]int64 `yaml:"partitions"`
}

// FilePositions serves exported positions read from a YAML file. The file
// can be reloaded while the source is in use, manually with Reload or on
// change with Watch.
type FilePositions struct {
	path   string
	logger *slog.Logger

	mu        sync.RWMutex
	positions map[int]int64

	watchMu sync.Mutex
	watcher *FileWatcher
}

// NewFilePositions loads the positions file at path.
func NewFilePositions(path string) (*FilePositions, error) {
	fp := &FilePositions{
		path:   path,
		logger: slog.Default().With("component", "cluster.positions", "path", path),
	}
	if err := fp.Reload(); err != nil {
		return nil, err
	}
	return fp, nil
}

// LastExportedPosition returns the position of the partition from the most
// recently loaded file.
func (fp *FilePositions) LastExportedPosition(ctx context.Context, partition int) (int64, error) {
	fp.mu.RLock()
	defer fp.mu.RUnlock()

	position, ok := fp.positions[partition]
	if !ok {
		return 0, fmt.Errorf("partition %d: %w", partition, ErrUnknownPartition)
	}
	return position, nil
}

// Snapshot returns a copy of the loaded positions.
func (fp *FilePositions) Snapshot() map[int]int64 {
	fp.mu.RLock()
	defer fp.mu.RUnlock()

	return maps.Clone(fp.positions)
}

// Reload re-reads the file. On error the previously loaded positions stay
// in effect.
func (fp *FilePositions) Reload() error {
	data, err := os.ReadFile(fp.path)
	if err != nil {
		return fmt.Errorf("failed to read positions file: %w", err)
	}

	var file positionsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse positions file: %w", err)
	}

	for partition, position := range file.Partitions {
		if partition < 1 {
			return fmt.Errorf("invalid positions file: partition id must be >= 1, got %d", partition)
		}
		if position < 0 {
			return fmt.Errorf("invalid positions file: partition %d has negative position %d", partition, position)
		}
	}

	fp.mu.Lock()
	fp.positions = file.Partitions
	fp.mu.Unlock()

	fp.logger.Debug("exported positions loaded", "partitions", len(file.Partitions))
	return nil
}

// Watch reloads the file whenever it changes. It blocks until ctx is
// cancelled or StopWatching is called.
func (fp *FilePositions) Watch(ctx context.Context) error {
	config := DefaultFileWatcherConfig()
	config.Path = fp.path

	watcher, err := NewFileWatcher(config, fp.logger)
	if err != nil {
		return err
	}

	fp.watchMu.Lock()
	fp.watcher = watcher
	fp.watchMu.Unlock()

	return watcher.Watch(ctx, fp.Reload)
}

// StopWatching stops a running Watch.
func (fp *FilePositions) StopWatching() error {
	fp.watchMu.Lock()
	watcher := fp.watcher
	fp.watcher = nil
	fp.watchMu.Unlock()

	if watcher == nil {
		return nil
	}
	return watcher.Stop()
}
