package snapshot

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/afero"

	"odds-value-alerts/internal/odds"
)

const (
	archiveDateLayout = "2006-01-02"
	backupTimeLayout  = "15-04-05"
	archiveExt        = ".jsonl"
)

// Options locate the live log and its archives.
type Options struct {
	HistoryPath string
	ArchiveDir  string
	BackupDir   string
	Location    *time.Location
}

// Store is an append-only JSON-lines log of snapshots, one snapshot per line,
// in fetch order. It assumes a single writer.
type Store struct {
	fs   afero.Fs
	opts Options
}

// ArchiveResult describes one rotation.
type ArchiveResult struct {
	Day       time.Time
	Path      string
	Snapshots int
	Merged    bool
}

// NewStore prepares directories for the log, archives and backups.
func NewStore(fs afero.Fs, opts Options) (*Store, error) {
	if opts.HistoryPath == "" {
		return nil, errors.New("snapshot history path is required")
	}
	if opts.ArchiveDir == "" {
		return nil, errors.New("snapshot archive dir is required")
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}

	dirs := []string{filepath.Dir(opts.HistoryPath), opts.ArchiveDir}
	if opts.BackupDir != "" {
		dirs = append(dirs, opts.BackupDir)
	}
	for _, dir := range dirs {
		if err := fs.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return &Store{fs: fs, opts: opts}, nil
}

// Location is the zone used to cut days.
func (s *Store) Location() *time.Location {
	return s.opts.Location
}

// Append writes one snapshot to the end of the live log and syncs it.
func (s *Store) Append(snap odds.Snapshot) error {
	line, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	line = append(line, '\n')

	f, err := s.fs.OpenFile(s.opts.HistoryPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}
	if _, err := f.Write(line); err != nil {
		f.Close()
		return fmt.Errorf("append snapshot: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("sync history: %w", err)
	}
	return f.Close()
}

// Load returns the live log in fetch order. A missing log is an empty log.
func (s *Store) Load() ([]odds.Snapshot, error) {
	return s.readLog(s.opts.HistoryPath)
}

// LastTwo returns the two newest snapshots; ok is false when fewer than two exist.
func (s *Store) LastTwo() (prev, latest odds.Snapshot, ok bool, err error) {
	history, err := s.Load()
	if err != nil {
		return odds.Snapshot{}, odds.Snapshot{}, false, err
	}
	if len(history) < 2 {
		return odds.Snapshot{}, odds.Snapshot{}, false, nil
	}
	return history[len(history)-2], history[len(history)-1], true, nil
}

// Latest returns the newest snapshot.
func (s *Store) Latest() (odds.Snapshot, bool, error) {
	history, err := s.Load()
	if err != nil {
		return odds.Snapshot{}, false, err
	}
	if len(history) == 0 {
		return odds.Snapshot{}, false, nil
	}
	return history[len(history)-1], true, nil
}

// Backup writes the snapshot to BackupDir/YYYY-MM-DD/HH-MM-SS.json. It is a no-op
// without a backup dir.
func (s *Store) Backup(snap odds.Snapshot) (string, error) {
	if s.opts.BackupDir == "" {
		return "", nil
	}
	ts := snap.Timestamp.In(s.opts.Location)
	dir := filepath.Join(s.opts.BackupDir, ts.Format(archiveDateLayout))
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create backup dir: %w", err)
	}

	payload, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode backup: %w", err)
	}
	path := filepath.Join(dir, ts.Format(backupTimeLayout)+".json")
	if err := afero.WriteFile(s.fs, path, payload, 0o644); err != nil {
		return "", fmt.Errorf("write backup: %w", err)
	}
	return path, nil
}

// ArchivePath is the archive file for a calendar day.
func (s *Store) ArchivePath(day time.Time) string {
	return filepath.Join(s.opts.ArchiveDir, day.In(s.opts.Location).Format(archiveDateLayout)+archiveExt)
}

// Rotate moves the live log verbatim into the archive for day and then empties the
// log. An empty log is left alone and no archive is written. An existing archive for
// the same day is extended, unless it already ends with the log (a rotation whose
// reset failed), in which case only the reset is repeated.
func (s *Store) Rotate(day time.Time) (ArchiveResult, bool, error) {
	raw, err := s.readRaw(s.opts.HistoryPath)
	if err != nil {
		return ArchiveResult{}, false, err
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return ArchiveResult{}, false, nil
	}

	result := ArchiveResult{
		Day:       startOfDay(day, s.opts.Location),
		Path:      s.ArchivePath(day),
		Snapshots: bytes.Count(bytes.TrimSpace(raw), []byte{'\n'}) + 1,
	}

	existing, err := s.readRaw(result.Path)
	if err != nil {
		return ArchiveResult{}, false, err
	}

	if !bytes.HasSuffix(existing, raw) {
		payload := raw
		if len(existing) > 0 {
			result.Merged = true
			payload = append(ensureNewline(existing), raw...)
		}
		if err := s.writeAtomic(result.Path, payload); err != nil {
			return ArchiveResult{}, false, fmt.Errorf("write archive: %w", err)
		}
	}

	if err := s.writeAtomic(s.opts.HistoryPath, nil); err != nil {
		return result, false, fmt.Errorf("reset history after archiving to %s: %w", result.Path, err)
	}
	return result, true, nil
}

// LoadArchive reads the archived snapshots for a day.
func (s *Store) LoadArchive(day time.Time) ([]odds.Snapshot, error) {
	return s.readLog(s.ArchivePath(day))
}

// ListArchives returns archived days in ascending order.
func (s *Store) ListArchives() ([]time.Time, error) {
	entries, err := afero.ReadDir(s.fs, s.opts.ArchiveDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("list archives: %w", err)
	}

	var days []time.Time
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, archiveExt) {
			continue
		}
		day, err := time.ParseInLocation(archiveDateLayout, strings.TrimSuffix(name, archiveExt), s.opts.Location)
		if err != nil {
			continue
		}
		days = append(days, day)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })
	return days, nil
}

func (s *Store) readRaw(path string) ([]byte, error) {
	raw, err := afero.ReadFile(s.fs, path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return raw, nil
}

func (s *Store) readLog(path string) ([]odds.Snapshot, error) {
	f, err := s.fs.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	var history []odds.Snapshot
	dec := json.NewDecoder(f)
	for {
		var snap odds.Snapshot
		if err := dec.Decode(&snap); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("decode %s entry %d: %w", path, len(history), err)
		}
		history = append(history, snap)
	}
	return history, nil
}

func (s *Store) writeAtomic(path string, payload []byte) error {
	tmp := path + ".tmp"
	if err := afero.WriteFile(s.fs, tmp, payload, 0o644); err != nil {
		return err
	}
	return s.fs.Rename(tmp, path)
}

func ensureNewline(b []byte) []byte {
	if len(b) == 0 || b[len(b)-1] == '\n' {
		return b
	}
	return append(b, '\n')
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}
