package maintenance

import (
	"context"
	"errors"
	"net/url"
	"os"
	"path"
	"path/filepath"
)

// DiskAvatars removes avatars stored as files in one directory. The file name
// is the last segment of the avatar URL.
type DiskAvatars struct {
	Dir string
}

func (d DiskAvatars) Remove(ctx context.Context, avatarURL string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	u, err := url.Parse(avatarURL)
	if err != nil {
		return err
	}
	name := path.Base(u.Path)
	if name == "." || name == "/" || d.Dir == "" {
		return nil
	}
	err = os.Remove(filepath.Join(d.Dir, name))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
