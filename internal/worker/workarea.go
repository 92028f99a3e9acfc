package worker

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
)

// WorkArea is the scratch directory for a single job. It is keyed by job
// id so a crashed run's leftovers are found and wiped the next time the
// same id is processed.
type WorkArea struct {
	root string
}

// NewWorkArea creates a clean scratch directory for the job, removing any
// leftovers from a previous run first.
func NewWorkArea(baseDir, jobID string) (*WorkArea, error) {
	root := filepath.Join(baseDir, jobID)
	if err := os.RemoveAll(root); err != nil {
		return nil, fmt.Errorf("failed to clear work area: %w", err)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create work area: %w", err)
	}
	return &WorkArea{root: root}, nil
}

// Path returns the absolute path for a file inside the work area.
func (a *WorkArea) Path(name string) string {
	return filepath.Join(a.root, name)
}

// Remove deletes the work area and everything in it. Cleanup failure is
// logged, not propagated: the job outcome is already decided by then.
func (a *WorkArea) Remove() {
	if err := os.RemoveAll(a.root); err != nil {
		log.Printf("Failed to clean work area %s: %v", a.root, err)
	}
}
