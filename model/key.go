package model

import (
	"fmt"
	"strconv"
	"strings"
)

// Key identifies one verification flow: one user in one group.
// The rendered form is "<user>/<group>"; int64 rendering cannot contain
// the delimiter, so the mapping is unambiguous in both directions.
type Key struct {
	UserID  int64
	GroupID int64
}

func (k Key) String() string {
	return strconv.FormatInt(k.UserID, 10) + "/" + strconv.FormatInt(k.GroupID, 10)
}

func (k Key) Bytes() []byte {
	return []byte(k.String())
}

func ParseKey(s string) (Key, error) {
	fields := strings.Split(s, "/")
	if len(fields) != 2 {
		return Key{}, fmt.Errorf("invalid key: %v", s)
	}
	userID, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return Key{}, fmt.Errorf("invalid key: %v", s)
	}
	groupID, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return Key{}, fmt.Errorf("invalid key: %v", s)
	}
	return Key{UserID: userID, GroupID: groupID}, nil
}
