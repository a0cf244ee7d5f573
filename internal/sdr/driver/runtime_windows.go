//go:build windows

package driver

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// FindRuntime locates an SDR tool binary. Bundled tools are looked up under
// bin/<package>/windows/x64 next to the executable and in the working
// directory before falling back to PATH.
func FindRuntime(runtime string) (string, error) {
	var lookup []string

	exePath, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("failed to get executable path: %w", err)
	}
	lookup = append(lookup, filepath.Dir(exePath))

	workDir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get current working directory: %w", err)
	}
	lookup = append(lookup, workDir)

	for _, exeDir := range lookup {
		matches, err := filepath.Glob(filepath.Join(exeDir, "bin", "*", "windows", "x64", runtime+".exe"))
		if err != nil || len(matches) == 0 {
			continue // continue to next directory
		}

		if _, err = os.Stat(matches[0]); err != nil {
			continue
		}

		return matches[0], nil
	}

	if binPath, err := exec.LookPath(runtime); err == nil {
		return binPath, nil
	}

	return "", NewRuntimeError(fmt.Sprintf("failed to find binary `%s`", runtime))
}
