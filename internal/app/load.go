package app

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/vk/unitgrid/internal/config"
	"github.com/vk/unitgrid/internal/hclconfig"
	"github.com/vk/unitgrid/internal/yamlconfig"
)

// LoaderFor picks the configuration loader for a project path by its
// extension. Directories are read as HCL.
func LoaderFor(path string) config.Loader {
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return hclconfig.NewLoader()
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".hcl":
		return hclconfig.NewLoader()
	default:
		return yamlconfig.NewLoader()
	}
}

// projectRoot is the directory relative project paths resolve against.
func projectRoot(projectFile string) (string, error) {
	abs, err := filepath.Abs(projectFile)
	if err != nil {
		return "", err
	}
	if info, err := os.Stat(abs); err == nil && info.IsDir() {
		return abs, nil
	}
	return filepath.Dir(abs), nil
}
