package inbox

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

var (
	ErrOutsideInbox  = errors.New("path escapes inbox")
	ErrSymlinkEscape = errors.New("symlink points outside inbox")
)

// checkInDir rejects paths that are not under dir, including symlinks that
// resolve elsewhere. Missing paths pass; the read that follows reports them.
func checkInDir(path, dir string) error {
	root, err := filepath.Abs(filepath.Clean(dir))
	if err != nil {
		return err
	}
	target, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return err
	}
	if !within(target, root) {
		return ErrOutsideInbox
	}

	info, err := os.Lstat(target)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if info.Mode()&os.ModeSymlink == 0 {
		return nil
	}

	resolved, err := filepath.EvalSymlinks(target)
	if err != nil {
		return nil
	}
	// The inbox itself may live behind a symlink.
	if realRoot, err := filepath.EvalSymlinks(root); err == nil {
		root = realRoot
	}
	if !within(filepath.Clean(resolved), root) {
		return ErrSymlinkEscape
	}
	return nil
}

func within(path, root string) bool {
	return path == root || strings.HasPrefix(path, root+string(os.PathSeparator))
}
