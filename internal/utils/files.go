package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// GetFilename strips the directory and the extension.
func GetFilename(filePath string) string {
	base := filepath.Base(filePath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// OpenFile creates <path>/<suffix>/<model>.<ext> when makeDir is set, and
// <path>/<model>_<suffix>.<ext> otherwise.
func OpenFile(makeDir bool, outputPath, fileSuffix, modelName, ext string) (*os.File, error) {
	if makeDir && fileSuffix != "" && fileSuffix != "." {
		dir := filepath.Join(outputPath, fileSuffix)
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create %s: %w", dir, err)
		}
		return os.Create(filepath.Join(dir, modelName+"."+ext))
	}
	if outputPath != "" {
		if err := os.MkdirAll(outputPath, 0o750); err != nil {
			return nil, fmt.Errorf("create %s: %w", outputPath, err)
		}
	}
	return os.Create(filepath.Join(outputPath, modelName+"_"+fileSuffix+"."+ext))
}
