//go:build windows

package tabular

import "os"

// createTemp creates the staging file for a table write. Windows has no
// O_NOFOLLOW; ValidateOutputPath rejects symlinked targets instead.
func createTemp(path string) (*os.File, string, error) {
	tempPath, err := tempName(path)
	if err != nil {
		return nil, "", err
	}
	f, err := os.OpenFile(tempPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	return f, tempPath, err
}
