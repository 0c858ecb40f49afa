// Package autodetect locates the coverage report of a project.
package autodetect

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/felixgeelhaar/coverstatus/internal/application"
)

// ErrNotFound is returned when no coverage report could be located.
var ErrNotFound = errors.New("no coverage report found")

// candidates are the default output locations of common coverage tools,
// in order of preference.
var candidates = []string{
	"coverage/clover.xml",
	"coverage/coverage-summary.json",
	"build/logs/clover.xml",
	"target/site/clover/clover.xml",
	"clover.xml",
	"coverage-summary.json",
}

var reportNames = map[string]struct{}{"clover.xml": {}, "coverage-summary.json": {}}

// maxDepth bounds the directory walk below the project root.
const maxDepth = 4

type Detector struct{}

// Detect returns the coverage path and format found below root. Paths are
// relative to root and use forward slashes.
func (Detector) Detect(root string) (string, application.Format, error) {
	for _, rel := range candidates {
		if isFile(filepath.Join(root, filepath.FromSlash(rel))) {
			return rel, formatOf(rel), nil
		}
	}

	if found := walkReports(root); len(found) > 0 {
		return found[0], formatOf(found[0]), nil
	}

	// Jest writes coverage/clover.xml with its default reporters.
	if usesJest(root) {
		return candidates[0], application.FormatClover, nil
	}
	return "", "", ErrNotFound
}

func walkReports(root string) []string {
	var found []string
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		if d.IsDir() {
			if path == root {
				return nil
			}
			// Skip hidden directories and dependency trees
			base := d.Name()
			if strings.HasPrefix(base, ".") || base == "vendor" || base == "node_modules" {
				return filepath.SkipDir
			}
			if strings.Count(filepath.ToSlash(rel), "/") >= maxDepth {
				return filepath.SkipDir
			}
			return nil
		}
		if _, ok := reportNames[d.Name()]; ok {
			found = append(found, filepath.ToSlash(rel))
		}
		return nil
	})
	sort.Slice(found, func(i, j int) bool {
		di, dj := strings.Count(found[i], "/"), strings.Count(found[j], "/")
		if di != dj {
			return di < dj
		}
		return found[i] < found[j]
	})
	return found
}

func usesJest(root string) bool {
	// #nosec G304 -- Path is constructed from the project directory
	data, err := os.ReadFile(filepath.Join(root, "package.json"))
	if err != nil {
		return false
	}
	var pkg struct {
		Dependencies map[string]string `json:"dependencies"`
		DevDeps      map[string]string `json:"devDependencies"`
	}
	if json.Unmarshal(data, &pkg) != nil {
		return false
	}
	if _, ok := pkg.DevDeps["jest"]; ok {
		return true
	}
	_, ok := pkg.Dependencies["jest"]
	return ok
}

func formatOf(path string) application.Format {
	format, err := application.ResolveFormat(path, application.FormatAuto)
	if err != nil {
		return application.FormatAuto
	}
	return format
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
