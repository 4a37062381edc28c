package fio

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// ParseSize converts a fio size spec ("1G", "512m", "4096") to bytes.
// Suffixes are binary multiples, matching fio's interpretation.
func ParseSize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty size spec")
	}

	mult := int64(1)
	switch last := s[len(s)-1]; last {
	case 'k', 'K':
		mult = 1 << 10
	case 'm', 'M':
		mult = 1 << 20
	case 'g', 'G':
		mult = 1 << 30
	case 't', 'T':
		mult = 1 << 40
	default:
		if last < '0' || last > '9' {
			return 0, fmt.Errorf("invalid size spec %q", s)
		}
	}
	if mult > 1 {
		s = s[:len(s)-1]
	}

	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid size spec %q", s)
	}
	return n * mult, nil
}

// checkSpace verifies the filesystem holding the test file has room for the
// configured size. Statfs runs on the parent directory since the file itself
// may not exist yet.
func checkSpace(filename string, need int64) error {
	var st unix.Statfs_t
	dir := filepath.Dir(filename)
	if err := unix.Statfs(dir, &st); err != nil {
		return fmt.Errorf("statfs %s: %w", dir, err)
	}
	avail := int64(st.Bavail) * st.Bsize
	if avail < need {
		return fmt.Errorf("insufficient space on %s: need %d bytes, %d available", dir, need, avail)
	}
	return nil
}
