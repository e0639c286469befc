//go:build !linux

package storage

import (
	"fmt"
	"os"

	"github.com/starford/vaultgraph/internal/models"
)

func statFile(path string) (models.FileInfo, error) {
	info, err := os.Stat(path)
	if err != nil {
		return models.FileInfo{}, err
	}
	if info.IsDir() {
		return models.FileInfo{}, fmt.Errorf("storage: %s is a directory", path)
	}
	return models.FileInfo{
		Size:     info.Size(),
		Created:  info.ModTime(),
		Modified: info.ModTime(),
		Accessed: info.ModTime(),
		ReadOnly: info.Mode().Perm()&0o200 == 0,
	}, nil
}
