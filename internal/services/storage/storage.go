// Package storage manages the on-disk layout of recording sessions.
package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"time"

	"github.com/shirou/gopsutil/v3/disk"
)

// SessionDirLayout is the timestamp format of session directory names.
const SessionDirLayout = "20060102_150405"

// ErrLowDisk is returned when the output volume is below the free space floor.
var ErrLowDisk = errors.New("not enough free disk space")

var sessionDirRE = regexp.MustCompile(`^\d{8}_\d{6}(_\d+)?$`)

// UsageFunc reports disk usage for a path.
type UsageFunc func(path string) (*disk.UsageStat, error)

// Store owns the recordings root directory.
type Store struct {
	root  string
	usage UsageFunc
}

// New returns a store rooted at root.
func New(root string) *Store {
	return &Store{root: root, usage: disk.Usage}
}

// Root returns the recordings root.
func (s *Store) Root() string {
	return s.root
}

// Usage returns disk usage of the volume holding the root. The root may
// not exist yet, so the nearest existing parent is measured.
func (s *Store) Usage() (*disk.UsageStat, error) {
	p, err := filepath.Abs(s.root)
	if err != nil {
		return nil, err
	}
	for {
		if _, err := os.Stat(p); err == nil {
			break
		}
		parent := filepath.Dir(p)
		if parent == p {
			break
		}
		p = parent
	}
	return s.usage(p)
}

// CheckFree fails with ErrLowDisk when less than minMB is free. 0 disables the check.
func (s *Store) CheckFree(minMB uint64) error {
	if minMB == 0 {
		return nil
	}
	u, err := s.Usage()
	if err != nil {
		return fmt.Errorf("disk usage: %w", err)
	}
	freeMB := u.Free / 1024 / 1024
	if freeMB < minMB {
		return fmt.Errorf("%w: %d MB free, %d MB required", ErrLowDisk, freeMB, minMB)
	}
	return nil
}

// NewSessionDir creates a fresh directory named after t. When a directory
// with that name already exists a numeric suffix is added, so two sessions
// never share an output location.
func (s *Store) NewSessionDir(t time.Time) (string, error) {
	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return "", fmt.Errorf("create output root: %w", err)
	}

	name := t.Format(SessionDirLayout)
	for i := 1; i < 1000; i++ {
		dir := filepath.Join(s.root, name)
		if i > 1 {
			dir += "_" + strconv.Itoa(i)
		}
		err := os.Mkdir(dir, 0o755)
		if err == nil {
			return dir, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return "", fmt.Errorf("create session directory: %w", err)
		}
	}
	return "", fmt.Errorf("create session directory: too many sessions named %s", name)
}

// SessionDirs lists session directories oldest first.
func (s *Store) SessionDirs() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var dirs []string
	for _, e := range entries {
		if e.IsDir() && sessionDirRE.MatchString(e.Name()) {
			dirs = append(dirs, e.Name())
		}
	}
	sort.Slice(dirs, func(i, j int) bool { return lessSessionName(dirs[i], dirs[j]) })

	for i, d := range dirs {
		dirs[i] = filepath.Join(s.root, d)
	}
	return dirs, nil
}

// Prune removes the oldest session directories so at most keep remain.
// keep <= 0 keeps everything.
func (s *Store) Prune(keep int) ([]string, error) {
	if keep <= 0 {
		return nil, nil
	}
	dirs, err := s.SessionDirs()
	if err != nil {
		return nil, err
	}
	if len(dirs) <= keep {
		return nil, nil
	}

	var removed []string
	for _, d := range dirs[:len(dirs)-keep] {
		if err := os.RemoveAll(d); err != nil {
			return removed, fmt.Errorf("remove %s: %w", d, err)
		}
		removed = append(removed, d)
	}
	return removed, nil
}

// lessSessionName orders by timestamp, then by numeric suffix.
func lessSessionName(a, b string) bool {
	ta, sa := splitSuffix(a)
	tb, sb := splitSuffix(b)
	if ta != tb {
		return ta < tb
	}
	return sa < sb
}

func splitSuffix(name string) (string, int) {
	stamp := name[:len(SessionDirLayout)]
	if len(name) == len(stamp) {
		return stamp, 1
	}
	n, _ := strconv.Atoi(name[len(stamp)+1:])
	return stamp, n
}
