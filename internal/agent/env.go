package agent

import (
	"os"
	"path/filepath"
)

// cleanTmpDir returns the dedicated temp directory for claude invocations.
// Using a dedicated directory avoids editor socket files that crash the claude
// CLI when --settings is used.
func cleanTmpDir() string {
	dir := filepath.Join(os.TempDir(), "ensemble-claude")
	_ = os.MkdirAll(dir, 0755)
	return dir
}

// providerEnv returns extra environment entries for a provider.
func providerEnv(p Provider) []string {
	if p == Claude {
		return []string{"TMPDIR=" + cleanTmpDir()}
	}
	return nil
}
