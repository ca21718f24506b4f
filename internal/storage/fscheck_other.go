//go:build !darwin && !linux

package storage

// Detection is unsupported here; the journal is assumed to be local.
func detectFilesystemType(path string) (string, error) {
	return "unknown", nil
}
