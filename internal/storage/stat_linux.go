//go:build linux

package storage

import (
	"fmt"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"github.com/starford/vaultgraph/internal/models"
)

func statFile(path string) (models.FileInfo, error) {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return models.FileInfo{}, &os.PathError{Op: "stat", Path: path, Err: err}
	}
	if st.Mode&unix.S_IFMT == unix.S_IFDIR {
		return models.FileInfo{}, fmt.Errorf("storage: %s is a directory", path)
	}
	return models.FileInfo{
		Size:     st.Size,
		Created:  time.Unix(st.Ctim.Unix()),
		Modified: time.Unix(st.Mtim.Unix()),
		Accessed: time.Unix(st.Atim.Unix()),
		ReadOnly: unix.Access(path, unix.W_OK) != nil,
	}, nil
}
