//go:build !windows

package tabular

import (
	stderrors "errors"
	"os"
	"syscall"

	"github.com/hpungsan/phishlabel/internal/errors"
)

// createTemp creates the staging file for a table write. O_EXCL refuses a file
// that is already there and O_NOFOLLOW refuses a symlink at that name.
func createTemp(path string) (*os.File, string, error) {
	tempPath, err := tempName(path)
	if err != nil {
		return nil, "", err
	}
	fd, err := syscall.Open(tempPath, syscall.O_CREAT|syscall.O_EXCL|syscall.O_WRONLY|syscall.O_NOFOLLOW|syscall.O_CLOEXEC, 0644)
	if err != nil {
		if stderrors.Is(err, syscall.ELOOP) || stderrors.Is(err, syscall.EEXIST) {
			return nil, "", errors.NewInvalidRequest("staging file for " + path + " already exists")
		}
		return nil, "", err
	}
	return os.NewFile(uintptr(fd), tempPath), tempPath, nil
}
