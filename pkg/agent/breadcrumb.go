package agent

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// DefaultBreadcrumbPath is where the registered instance id is recorded
const DefaultBreadcrumbPath = "/var/lib/ice/instance_id"

// WriteBreadcrumb records the instance id at path
func WriteBreadcrumb(path, instanceID string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create breadcrumb directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(instanceID+"\n"), 0644); err != nil {
		return fmt.Errorf("failed to write breadcrumb: %w", err)
	}
	return nil
}

// ReadBreadcrumb returns the recorded instance id, or an empty string when
// no breadcrumb exists
func ReadBreadcrumb(path string) (string, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read breadcrumb: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}
