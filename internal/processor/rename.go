package processor

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
)

// renameFile moves one file; tests replace it to inject failures
var renameFile = os.Rename

// RenameTargets returns the canonical names for paths: {identity}{i}{ext} in the
// directory of the first path, ext being each source's own extension lowercased
func RenameTargets(paths []string, identity string) []string {
	if len(paths) == 0 {
		return nil
	}
	dir := filepath.Dir(paths[0])
	targets := make([]string, len(paths))
	for i, p := range paths {
		ext := strings.ToLower(filepath.Ext(p))
		targets[i] = filepath.Join(dir, fmt.Sprintf("%s%d%s", identity, i, ext))
	}
	return targets
}

// RenameBatch renames paths[i] to {identity}{i}{ext}.
//
// Every source is first moved to a unique hidden temporary name and only then
// to its target, so a source that already carries another source's target name
// never collides. If any target exists outside the set nothing is renamed.
// Failures roll back as far as possible and the returned error lists every
// rollback step that failed too.
//
// Returns the final paths in input order.
func RenameBatch(paths []string, identity string) ([]string, error) {
	if err := ValidateIdentity(identity); err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, nil
	}

	targets := RenameTargets(paths, identity)
	if err := checkCollisions(paths, targets); err != nil {
		return nil, err
	}

	batch := uuid.NewString()
	temps := make([]string, len(paths))
	for i, p := range paths {
		temps[i] = filepath.Join(filepath.Dir(p), fmt.Sprintf(".voiceprep-%s-%d.tmp", batch, i))
	}

	// Phase 1: sources to temporaries
	for i := range paths {
		if err := renameFile(paths[i], temps[i]); err != nil {
			var result *multierror.Error
			result = multierror.Append(result, fmt.Errorf("move %s aside: %w", filepath.Base(paths[i]), err))
			for j := i - 1; j >= 0; j-- {
				if rerr := renameFile(temps[j], paths[j]); rerr != nil {
					result = multierror.Append(result, fmt.Errorf("restore %s: %w", filepath.Base(paths[j]), rerr))
				}
			}
			return nil, ioError("rename", paths[i], result.ErrorOrNil())
		}
	}

	// Phase 2: temporaries to targets
	for i := range temps {
		if err := renameFile(temps[i], targets[i]); err != nil {
			var result *multierror.Error
			result = multierror.Append(result, fmt.Errorf("move to %s: %w", filepath.Base(targets[i]), err))
			return nil, ioError("rename", paths[i], rollbackPlaced(paths, temps, targets, i, result).ErrorOrNil())
		}
	}

	return targets, nil
}

// rollbackPlaced undoes a phase 2 that failed at index failed. The targets
// already placed go back to their temporaries before any source name is
// restored, since a target can be the original name of another source. A
// source whose name is still held by a target that could not be withdrawn
// stays under its temporary name.
func rollbackPlaced(paths, temps, targets []string, failed int, result *multierror.Error) *multierror.Error {
	held := make(map[string]bool)
	for k := failed - 1; k >= 0; k-- {
		if err := renameFile(targets[k], temps[k]); err != nil {
			result = multierror.Append(result, fmt.Errorf("withdraw %s: %w", filepath.Base(targets[k]), err))
			held[filepath.Clean(targets[k])] = true
		}
	}

	for j := range temps {
		if held[filepath.Clean(paths[j])] {
			result = multierror.Append(result, fmt.Errorf("restore %s: left as %s", filepath.Base(paths[j]), filepath.Base(temps[j])))
			continue
		}
		if err := renameFile(temps[j], paths[j]); err != nil {
			result = multierror.Append(result, fmt.Errorf("restore %s: %w", filepath.Base(paths[j]), err))
		}
	}
	return result
}

// checkCollisions fails when a target already exists and is not one of the sources
func checkCollisions(paths, targets []string) error {
	sources := make(map[string]bool, len(paths))
	for _, p := range paths {
		sources[filepath.Clean(p)] = true
	}

	seen := make(map[string]bool, len(targets))
	for _, t := range targets {
		t = filepath.Clean(t)
		if seen[t] {
			return ioError("rename", t, fmt.Errorf("duplicate target %s", filepath.Base(t)))
		}
		seen[t] = true

		if sources[t] {
			continue
		}
		if _, err := os.Lstat(t); err == nil {
			return ioError("rename", t, fmt.Errorf("target %s already exists and is not part of the batch", filepath.Base(t)))
		} else if !os.IsNotExist(err) {
			return ioError("rename", t, err)
		}
	}
	return nil
}
