package converter

import (
	"fmt"
	"io/fs"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
)

type FilePair struct {
	EventFile       string
	CalibrationFile string
}

// Name fragments marking a geometry/calibration/detector-status file.
var calibrationMarkers = []string{"gcd", "geo"}

func hasExtension(name string, extensions []string) bool {
	for _, extension := range extensions {
		if strings.Contains(name, extension) {
			return true
		}
	}
	return false
}

func isCalibrationFile(name string) bool {
	lower := strings.ToLower(name)
	for _, marker := range calibrationMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// FindFiles walks every root down to depth directory levels (the root is
// level 1) and pairs each event file with the calibration file found in
// the same directory, or with rescue when the directory has none. The
// resulting pairs are shuffled once with rng.
func FindFiles(paths []string, extensions []string, rescue string, depth int, rng *rand.Rand) (Manifest, error) {
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}
	if depth < 1 {
		depth = DefaultSearchDepth
	}

	var pairs []FilePair
	for _, root := range paths {
		info, err := os.Stat(root)
		if err != nil {
			return nil, &ErrOpenFile{Filename: root, Err: err}
		}
		if !info.IsDir() {
			return nil, &ErrOpenFile{Filename: root, Err: fmt.Errorf("not a directory")}
		}
		found, err := findInDirectory(root, extensions, rescue, 1, depth)
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, found...)
	}

	manifest := Manifest(pairs)
	manifest.Shuffle(rng)
	return manifest, nil
}

func findInDirectory(dir string, extensions []string, rescue string, level int, depth int) ([]FilePair, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if level == 1 {
			return nil, &ErrOpenFile{Filename: dir, Err: err}
		}
		errMessage := fmt.Errorf("skipping unreadable directory %s: %w", dir, err)
		logger.Error(errMessage.Error())
		return nil, nil
	}

	var eventFiles []string
	var subdirs []string
	calibration := ""
	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		mode := entry.Type()
		if mode&fs.ModeSymlink != 0 {
			info, err := os.Stat(path)
			if err != nil {
				errMessage := fmt.Errorf("skipping broken link %s: %w", path, err)
				logger.Error(errMessage.Error())
				continue
			}
			mode = info.Mode().Type()
		}
		if mode.IsDir() {
			subdirs = append(subdirs, path)
			continue
		}
		if !mode.IsRegular() || !hasExtension(entry.Name(), extensions) {
			continue
		}
		if isCalibrationFile(entry.Name()) {
			// Several calibration files in one directory: the last one wins.
			calibration = path
		} else {
			eventFiles = append(eventFiles, path)
		}
	}
	if calibration == "" {
		calibration = rescue
	}

	pairs := make([]FilePair, 0, len(eventFiles))
	for _, eventFile := range eventFiles {
		pairs = append(pairs, FilePair{EventFile: eventFile, CalibrationFile: calibration})
	}

	if level < depth {
		for _, subdir := range subdirs {
			found, err := findInDirectory(subdir, extensions, rescue, level+1, depth)
			if err != nil {
				return nil, err
			}
			pairs = append(pairs, found...)
		}
	}
	return pairs, nil
}
