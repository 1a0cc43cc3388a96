package converter

import (
	"encoding/csv"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
)

// Manifest is the ordered list of (event file, calibration file) pairs of
// a run.
type Manifest []FilePair

func (m Manifest) Shuffle(rng *rand.Rand) {
	if rng == nil {
		return
	}
	rng.Shuffle(len(m), func(i, j int) {
		m[i], m[j] = m[j], m[i]
	})
}

func (m Manifest) EventFiles() []string {
	files := make([]string, len(m))
	for i, pair := range m {
		files[i] = pair.EventFile
	}
	return files
}

// Split cuts the manifest into n contiguous parts whose lengths differ by
// at most one, the longer parts first.
func (m Manifest) Split(n int) []Manifest {
	if n < 1 {
		n = 1
	}
	parts := make([]Manifest, n)
	size := len(m) / n
	extra := len(m) % n
	start := 0
	for i := 0; i < n; i++ {
		end := start + size
		if i < extra {
			end++
		}
		parts[i] = m[start:end]
		start = end
	}
	return parts
}

// Save writes the event file list as a csv with an index column and a
// "filename" header.
func (m Manifest) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	file, err := os.Create(path)
	if err != nil {
		return &ErrOpenFile{Filename: path, Err: err}
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{"", "filename"}); err != nil {
		return err
	}
	for i, pair := range m {
		if err := writer.Write([]string{strconv.Itoa(i), pair.EventFile}); err != nil {
			return err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return err
	}
	return file.Close()
}

// LoadManifest reads back the event files saved by Manifest.Save.
func LoadManifest(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, &ErrOpenFile{Filename: path, Err: err}
	}
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("error reading manifest %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("manifest %s has no header", path)
	}
	files := make([]string, 0, len(records)-1)
	for _, record := range records[1:] {
		if len(record) != 2 {
			return nil, fmt.Errorf("manifest %s: malformed row %v", path, record)
		}
		files = append(files, record[1])
	}
	return files, nil
}
