// Package shaders holds the WGSL sources compiled into the binary.
package shaders

import (
	_ "embed"
	"fmt"
	"os"
)

//go:embed default.wgsl
var Default string

// Load returns the WGSL source at path, or the embedded default when path is empty.
func Load(path string) (string, error) {
	if path == "" {
		return Default, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("load shader: %w", err)
	}
	return string(b), nil
}
