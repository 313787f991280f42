package store

import (
	"fmt"
	"ito/internal/domain"
	"strings"
)

const (
	RoomsCollection = "rooms"
	UsersCollection = "users"
)

func Join(parts ...string) string {
	return strings.Join(parts, "/")
}

func RoomPath(roomID string) string {
	return Join(RoomsCollection, roomID)
}

func UserPath(userID string) string {
	return Join(UsersCollection, userID)
}

// Split validates path and returns its segments.
func Split(path string) ([]string, error) {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil, nil
	}
	parts := strings.Split(path, "/")
	for _, p := range parts {
		if p == "" || p == "." || p == ".." {
			return nil, fmt.Errorf("%w: %q", domain.ErrInvalidPath, path)
		}
	}
	return parts, nil
}

// Related reports whether a change at changed is visible from watched, i.e.
// one path is an ancestor of (or equal to) the other.
func Related(watched, changed string) bool {
	w := strings.Trim(watched, "/")
	c := strings.Trim(changed, "/")
	if w == "" || c == "" || w == c {
		return true
	}
	return strings.HasPrefix(c, w+"/") || strings.HasPrefix(w, c+"/")
}
