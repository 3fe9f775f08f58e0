// Package storage persists annotated evidence images in a single flat
// directory and mirrors them into the capture index.
package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"hazardcam/internal/logger"
	"hazardcam/internal/model"
	"hazardcam/internal/repository"
)

// ErrPersist marks a failed evidence write.
var ErrPersist = errors.New("failed to persist capture")

// Store is safe for concurrent use. Each Save writes one independent file.
type Store struct {
	dir    string
	index  repository.CaptureIndex
	logger *logger.Logger

	mu        sync.Mutex
	lastStamp time.Time
}

type Option func(*Store)

// WithLogger sets the logger used for index failures.
func WithLogger(l *logger.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// New creates the capture directory if needed. index may be nil, in which
// case captures live on disk only.
func New(dir string, index repository.CaptureIndex, opts ...Option) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create capture directory: %w", err)
	}

	s := &Store{dir: dir, index: index, logger: logger.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Dir returns the capture directory.
func (s *Store) Dir() string {
	return s.dir
}

// Save persists data under a name derived from at and the labels of
// detections and returns that name.
func (s *Store) Save(data []byte, detections []model.Detection, at time.Time) (string, error) {
	return s.SaveFrom("", data, detections, at)
}

// SaveFrom is Save with the name of the frame source recorded in the index.
func (s *Store) SaveFrom(source string, data []byte, detections []model.Detection, at time.Time) (string, error) {
	labels := Labels(detections)
	if len(labels) == 0 {
		return "", fmt.Errorf("%w: no labels to name the capture", ErrPersist)
	}

	stamp := s.stamp(at)
	name := CaptureFilename(stamp, labels)
	path := filepath.Join(s.dir, name)

	if err := writeAtomic(path, data); err != nil {
		return "", fmt.Errorf("%w: %v", ErrPersist, err)
	}

	if s.index != nil {
		c := &model.Capture{
			Filename:  name,
			Timestamp: stamp,
			Classes:   labels,
			FilePath:  path,
			FileSize:  int64(len(data)),
			Source:    source,
		}
		if _, err := s.index.Upsert(c, indexDetections(detections)); err != nil {
			s.logger.Error("Error indexing capture %s: %v", name, err)
		}
	}

	return name, nil
}

// stamp truncates at to seconds and never returns a time before the previous
// stamp, so names stay ordered when the wall clock steps backwards.
func (s *Store) stamp(at time.Time) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	stamp := time.Unix(at.Unix(), 0).In(at.Location())
	if stamp.Before(s.lastStamp) {
		stamp = s.lastStamp
	}
	s.lastStamp = stamp
	return stamp
}

// writeAtomic writes to a unique temp file in the same directory and renames
// it into place. Same-name captures overwrite each other.
func writeAtomic(path string, data []byte) error {
	tmp := filepath.Join(filepath.Dir(path), "."+filepath.Base(path)+"."+uuid.NewString()+tempExt)

	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

// indexDetections records labels in the same form the filename carries, so
// rows written on save match rows rebuilt by Reindex.
func indexDetections(detections []model.Detection) []model.CaptureDetection {
	out := make([]model.CaptureDetection, 0, len(detections))
	for _, d := range detections {
		label := labelReplacer.Replace(d.Label)
		if label == "" {
			continue
		}
		out = append(out, model.CaptureDetection{
			Label:      label,
			Confidence: d.Confidence,
			X1:         d.Box.X1,
			Y1:         d.Box.Y1,
			X2:         d.Box.X2,
			Y2:         d.Box.Y2,
			Dangerous:  d.Dangerous,
		})
	}
	return out
}

// List returns every capture in the directory, newest first with ties broken
// by filename descending. Files that do not follow the naming scheme,
// directories, temp files and entries that vanish while listing are skipped.
func (s *Store) List() ([]model.Capture, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read capture directory: %w", err)
	}

	captures := make([]model.Capture, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		at, labels, ok := ParseCaptureFilename(entry.Name())
		if !ok {
			continue
		}
		info, err := entry.Info()
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		captures = append(captures, model.Capture{
			Filename:  entry.Name(),
			Timestamp: at,
			Classes:   labels,
			FilePath:  filepath.Join(s.dir, entry.Name()),
			FileSize:  info.Size(),
		})
	}

	sort.SliceStable(captures, func(i, j int) bool {
		if !captures[i].Timestamp.Equal(captures[j].Timestamp) {
			return captures[i].Timestamp.After(captures[j].Timestamp)
		}
		return captures[i].Filename > captures[j].Filename
	})
	return captures, nil
}

// Delete removes a capture. It reports false without error when the name is
// invalid or no such file exists.
func (s *Store) Delete(filename string) (bool, error) {
	if !validName(filename) {
		return false, nil
	}

	err := os.Remove(filepath.Join(s.dir, filename))
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to delete capture %s: %w", filename, err)
	}

	if s.index != nil {
		if err := s.index.DeleteByFilename(filename); err != nil {
			s.logger.Error("Error removing capture %s from index: %v", filename, err)
		}
	}
	return true, nil
}

// Path returns the on-disk path of a stored capture, or false when it does
// not exist.
func (s *Store) Path(filename string) (string, bool) {
	if !validName(filename) {
		return "", false
	}
	path := filepath.Join(s.dir, filename)
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return "", false
	}
	return path, true
}

// Stats summarizes the directory contents.
func (s *Store) Stats() (*model.CaptureStats, error) {
	captures, err := s.List()
	if err != nil {
		return nil, err
	}

	stats := &model.CaptureStats{
		TotalCaptures: len(captures),
		ClassCounts:   make(map[string]int),
	}
	for _, c := range captures {
		stats.TotalSizeBytes += c.FileSize
		for _, label := range c.Classes {
			stats.ClassCounts[label]++
		}
	}
	if len(captures) > 0 {
		last := captures[0].Timestamp
		stats.LastCapture = &last
	}
	return stats, nil
}

// Reindex writes every capture on disk into the index. Detections are
// reconstructed from the filename labels only.
func (s *Store) Reindex() (int, error) {
	if s.index == nil {
		return 0, nil
	}

	captures, err := s.List()
	if err != nil {
		return 0, err
	}

	indexed := 0
	for i := range captures {
		c := &captures[i]
		dets := make([]model.CaptureDetection, 0, len(c.Classes))
		for _, label := range c.Classes {
			dets = append(dets, model.CaptureDetection{Label: label})
		}
		if _, err := s.index.Upsert(c, dets); err != nil {
			return indexed, fmt.Errorf("failed to index %s: %w", c.Filename, err)
		}
		indexed++
	}
	return indexed, nil
}
