package common

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

func Expired(expireAt time.Time) bool {
	return time.Now().After(expireAt)
}

func Deduplicate(list []string) []string {
	res := make([]string, 0, len(list))
	m := make(map[string]struct{})
	for _, v := range list {
		if _, ok := m[v]; ok {
			continue
		}
		m[v] = struct{}{}
		res = append(res, v)
	}
	return res
}

func DeduplicateInt64(list []int64) []int64 {
	res := make([]int64, 0, len(list))
	m := make(map[int64]struct{})
	for _, v := range list {
		if _, ok := m[v]; ok {
			continue
		}
		m[v] = struct{}{}
		res = append(res, v)
	}
	return res
}

// StringToUUID5 derives a stable UUIDv5 from the given string.
func StringToUUID5(str string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(str)).String()
}

// HomeExpand expands a leading '~' with the user home directory.
func HomeExpand(path string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, path[1:]), nil
}
