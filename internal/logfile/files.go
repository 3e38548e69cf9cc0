package logfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"
)

var (
	// ErrDirectoryNotFound means the configured log directory does not exist.
	ErrDirectoryNotFound = errors.New("log directory not found")
	// ErrNoLogFiles means the directory holds no matching *.log file yet.
	ErrNoLogFiles = errors.New("no log files found")
)

// datePattern matches per-client files such as 2026-03-10_laptop.log.
var datePattern = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2})_.+\.log$`)

// DateLayout is the layout of the per-client file name prefix.
const DateLayout = "2006-01-02"

func readDir(dir string) ([]os.DirEntry, error) {
	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrDirectoryNotFound, dir)
		}
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrDirectoryNotFound, dir)
	}
	return os.ReadDir(dir)
}

// LatestLogFile returns the *.log file in dir with the newest modification
// time.
func LatestLogFile(dir string) (string, error) {
	entries, err := readDir(dir)
	if err != nil {
		return "", err
	}

	var latest string
	var latestMod time.Time
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".log") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			// rotated away between ReadDir and Info
			continue
		}
		if latest == "" || info.ModTime().After(latestMod) {
			latest = filepath.Join(dir, e.Name())
			latestMod = info.ModTime()
		}
	}
	if latest == "" {
		return "", fmt.Errorf("%w in %s", ErrNoLogFiles, dir)
	}
	return latest, nil
}

// DateGroup is the set of per-client files written on one day.
type DateGroup struct {
	Date  string // YYYY-MM-DD
	Files []string
}

// DateGroups groups the YYYY-MM-DD_<client>.log files in dir by date, newest
// date first. Files within a group are sorted by name.
func DateGroups(dir string) ([]DateGroup, error) {
	entries, err := readDir(dir)
	if err != nil {
		return nil, err
	}

	byDate := make(map[string][]string)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		m := datePattern.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		byDate[m[1]] = append(byDate[m[1]], filepath.Join(dir, e.Name()))
	}
	if len(byDate) == 0 {
		return nil, fmt.Errorf("%w matching YYYY-MM-DD_*.log in %s", ErrNoLogFiles, dir)
	}

	groups := make([]DateGroup, 0, len(byDate))
	for date, files := range byDate {
		sort.Strings(files)
		groups = append(groups, DateGroup{Date: date, Files: files})
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Date > groups[j].Date })
	return groups, nil
}

// LatestDateFiles returns the files of the lexicographically greatest date.
func LatestDateFiles(dir string) ([]string, error) {
	groups, err := DateGroups(dir)
	if err != nil {
		return nil, err
	}
	return groups[0].Files, nil
}

// FilesSince returns the files of every group dated on or after since's day.
func FilesSince(dir string, since time.Time) ([]string, error) {
	groups, err := DateGroups(dir)
	if err != nil {
		return nil, err
	}
	cutoff := since.UTC().Format(DateLayout)
	var files []string
	for _, g := range groups {
		if g.Date < cutoff {
			break
		}
		files = append(files, g.Files...)
	}
	return files, nil
}
