package pipeline

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
)

// IntakeReport summarises how the workspace was tidied
type IntakeReport struct {
	Moved   int // audio files moved into the speaker directory
	Renamed int // moved files given a numeric suffix to avoid a clash
	Deleted int // non-audio files removed
	Removed int // directories removed
	Files   int // audio files in the speaker directory afterwards
}

// IsAudio reports whether name has one of the recognised extensions.
// Hidden files, including in-flight temporaries, never count as audio.
func IsAudio(name string, formats []string) bool {
	base := filepath.Base(name)
	if strings.HasPrefix(base, ".") {
		return false
	}
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(base), "."))
	if ext == "" {
		return false
	}
	for _, f := range formats {
		if ext == f {
			return true
		}
	}
	return false
}

// Scan lists the audio files directly inside dir, sorted by name
func Scan(dir string, formats []string) ([]string, error) {
	formats = NormalizeFormats(formats)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", dir, err)
	}

	var files []string
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		if IsAudio(e.Name(), formats) {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	// os.ReadDir already sorts by file name; keep the order explicit
	sort.Strings(files)
	return files, nil
}

// Intake flattens the workspace into root/speaker.
//
// Every audio file found anywhere under root is moved into the speaker
// directory, taking a numeric suffix when its name is already used. Every
// other file is deleted and every directory except the speaker directory is
// removed once emptied.
func Intake(root, speaker string, formats []string, log logrus.FieldLogger) (*IntakeReport, error) {
	formats = NormalizeFormats(formats)
	root = filepath.Clean(root)
	speakerDir := filepath.Join(root, speaker)
	if err := os.MkdirAll(speakerDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create speaker directory: %w", err)
	}

	type entry struct {
		path string
		dir  bool
	}
	var entries []entry
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == root {
			return nil
		}
		entries = append(entries, entry{path: path, dir: d.IsDir()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", root, err)
	}

	report := &IntakeReport{}
	var dirs []string
	for _, e := range entries {
		if e.dir {
			if e.path != speakerDir {
				dirs = append(dirs, e.path)
			}
			continue
		}

		if !IsAudio(e.path, formats) {
			if err := os.Remove(e.path); err != nil {
				return nil, fmt.Errorf("failed to remove %s: %w", e.path, err)
			}
			log.WithField("file", e.path).Debug("Removed non-audio file")
			report.Deleted++
			continue
		}

		if filepath.Dir(e.path) == speakerDir {
			continue
		}

		dst, suffixed, err := freeName(speakerDir, filepath.Base(e.path))
		if err != nil {
			return nil, err
		}
		if err := os.Rename(e.path, dst); err != nil {
			return nil, fmt.Errorf("failed to move %s into %s: %w", e.path, speakerDir, err)
		}
		log.WithFields(logrus.Fields{"file": e.path, "dest": dst}).Debug("Moved audio file")
		report.Moved++
		if suffixed {
			report.Renamed++
		}
	}

	// Deepest first so parents are empty by the time they are reached
	sort.Slice(dirs, func(i, j int) bool { return len(dirs[i]) > len(dirs[j]) })
	for _, dir := range dirs {
		if err := os.Remove(dir); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("failed to remove directory %s: %w", dir, err)
		}
		report.Removed++
	}

	files, err := Scan(speakerDir, formats)
	if err != nil {
		return nil, err
	}
	report.Files = len(files)

	log.WithFields(logrus.Fields{
		"moved":   report.Moved,
		"deleted": report.Deleted,
		"files":   report.Files,
	}).Info("Workspace intake complete")

	return report, nil
}

// freeName returns dir/name, or dir/{stem}-{n}{ext} for the first n that is unused
func freeName(dir, name string) (string, bool, error) {
	candidate := filepath.Join(dir, name)
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for n := 1; ; n++ {
		_, err := os.Lstat(candidate)
		if os.IsNotExist(err) {
			return candidate, n > 1, nil
		}
		if err != nil {
			return "", false, fmt.Errorf("failed to check %s: %w", candidate, err)
		}
		candidate = filepath.Join(dir, fmt.Sprintf("%s-%d%s", stem, n, ext))
	}
}
