package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/jiaming2012/optionprisma/src/models"
)

var ErrNotFound = errors.New("simulation not found")
var ErrClosed = errors.New("store is closed")

type mutation struct {
	apply  func([]models.SimulationResult) ([]models.SimulationResult, error)
	result chan error
}

// JSONFileStore keeps every simulation result in a single JSON array on disk.
// All mutations go through one writer goroutine and each write replaces the file
// atomically, so readers always see a complete array.
type JSONFileStore struct {
	path   string
	queue  chan mutation
	closed bool
	mutex  sync.RWMutex
	wg     sync.WaitGroup
}

func NewJSONFileStore(path string, queueSize int) (*JSONFileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("NewJSONFileStore: failed to create directory: %w", err)
	}

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := writeAtomic(path, []models.SimulationResult{}); err != nil {
			return nil, fmt.Errorf("NewJSONFileStore: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("NewJSONFileStore: stat: %w", err)
	}

	if queueSize < 1 {
		queueSize = 1
	}

	s := &JSONFileStore{
		path:  path,
		queue: make(chan mutation, queueSize),
	}

	s.wg.Add(1)
	go s.run()

	return s, nil
}

func (s *JSONFileStore) run() {
	defer s.wg.Done()

	for m := range s.queue {
		records, err := readAll(s.path)
		if err == nil {
			records, err = m.apply(records)
		}

		if err == nil {
			err = writeAtomic(s.path, records)
		}

		m.result <- err
	}
}

func (s *JSONFileStore) submit(ctx context.Context, apply func([]models.SimulationResult) ([]models.SimulationResult, error)) error {
	m := mutation{
		apply:  apply,
		result: make(chan error, 1),
	}

	s.mutex.RLock()
	if s.closed {
		s.mutex.RUnlock()
		return ErrClosed
	}

	select {
	case s.queue <- m:
		s.mutex.RUnlock()
	case <-ctx.Done():
		s.mutex.RUnlock()
		return ctx.Err()
	}

	// once queued the mutation always completes, so the caller waits for it
	return <-m.result
}

func (s *JSONFileStore) Save(ctx context.Context, result models.SimulationResult) error {
	err := s.submit(ctx, func(records []models.SimulationResult) ([]models.SimulationResult, error) {
		for _, r := range records {
			if r.SimulationID == result.SimulationID {
				return nil, fmt.Errorf("simulation %s already exists", result.SimulationID)
			}
		}

		return append(records, result), nil
	})
	if err != nil {
		return fmt.Errorf("JSONFileStore: Save: %w", err)
	}

	log.WithContext(ctx).Debugf("JSONFileStore: saved %s", result.SimulationID)
	return nil
}

func (s *JSONFileStore) Delete(ctx context.Context, id string) error {
	err := s.submit(ctx, func(records []models.SimulationResult) ([]models.SimulationResult, error) {
		for i, r := range records {
			if r.SimulationID == id {
				return append(records[:i], records[i+1:]...), nil
			}
		}

		return nil, ErrNotFound
	})
	if err != nil {
		return fmt.Errorf("JSONFileStore: Delete: %w", err)
	}

	return nil
}

func (s *JSONFileStore) Get(ctx context.Context, id string) (models.SimulationResult, error) {
	records, err := readAll(s.path)
	if err != nil {
		return models.SimulationResult{}, fmt.Errorf("JSONFileStore: Get: %w", err)
	}

	for _, r := range records {
		if r.SimulationID == id {
			return r, nil
		}
	}

	return models.SimulationResult{}, fmt.Errorf("JSONFileStore: Get %s: %w", id, ErrNotFound)
}

// List returns records in insertion order. A limit of 0 returns everything
// after skip.
func (s *JSONFileStore) List(ctx context.Context, skip, limit int) ([]models.SimulationResult, error) {
	records, err := readAll(s.path)
	if err != nil {
		return nil, fmt.Errorf("JSONFileStore: List: %w", err)
	}

	if skip < 0 {
		skip = 0
	}

	if skip >= len(records) {
		return []models.SimulationResult{}, nil
	}

	records = records[skip:]
	if limit > 0 && limit < len(records) {
		records = records[:limit]
	}

	return records, nil
}

// Close drains pending mutations and stops the writer.
func (s *JSONFileStore) Close() error {
	s.mutex.Lock()
	if s.closed {
		s.mutex.Unlock()
		return nil
	}
	s.closed = true
	close(s.queue)
	s.mutex.Unlock()

	s.wg.Wait()
	return nil
}

func readAll(path string) ([]models.SimulationResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []models.SimulationResult{}, nil
		}
		return nil, fmt.Errorf("readAll: %w", err)
	}

	records := []models.SimulationResult{}
	if len(data) == 0 {
		return records, nil
	}

	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("readAll: failed to decode %s: %w", path, err)
	}

	return records, nil
}

func writeAtomic(path string, records []models.SimulationResult) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("writeAtomic: encode: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("writeAtomic: create temp file: %w", err)
	}

	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writeAtomic: write: %w", err)
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writeAtomic: sync: %w", err)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("writeAtomic: close: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("writeAtomic: rename: %w", err)
	}

	return nil
}
