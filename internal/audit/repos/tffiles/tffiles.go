// Package tffiles enumerates configuration files beneath a directory tree.
package tffiles

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DefaultExtension is the suffix of the files the audit scans.
const DefaultExtension = ".tf"

// ListAllFiles walks root recursively and returns the path of every regular
// entry that is not a directory. Paths are joined onto root, so a relative
// root yields relative paths. Any walk error aborts the listing.
func ListAllFiles(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("error listing %s: %w", root, err)
	}
	return files, nil
}

// ListConfigFiles returns the files under root whose name ends with ext.
// The suffix comparison is case-sensitive.
func ListConfigFiles(root, ext string) ([]string, error) {
	if ext == "" {
		ext = DefaultExtension
	}
	all, err := ListAllFiles(root)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(all))
	for _, f := range all {
		if strings.HasSuffix(f, ext) {
			out = append(out, f)
		}
	}
	return out, nil
}
