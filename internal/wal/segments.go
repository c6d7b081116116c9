package wal

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
)

const (
	// DefaultMaxSegmentSize rotates to a fresh segment once the active one
	// crosses this size.
	DefaultMaxSegmentSize = 16 * 1024 * 1024
	segmentExt            = ".log"
)

var segmentNamePattern = regexp.MustCompile(`^wal-(\d+)\.log$`)

func segmentPath(dir string, id int) string {
	return filepath.Join(dir, fmt.Sprintf("wal-%08d%s", id, segmentExt))
}

// listSegments returns the segment IDs present in dir, ascending.
func listSegments(dir string) ([]int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var ids []int
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		m := segmentNamePattern.FindStringSubmatch(e.Name())
		if len(m) != 2 {
			continue
		}
		id, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}

	sort.Ints(ids)
	return ids, nil
}
