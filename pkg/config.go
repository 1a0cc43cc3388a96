package converter

import (
	"fmt"
	"path/filepath"
)

const (
	ModeSimulation = "simulation"
	ModeData       = "data"
)

const (
	DefaultMaxEventNo   int64 = 99999999
	DefaultMaxBatchSize       = 10000
	DefaultSearchDepth        = 2
	TruthTable                = "truth"
	AuxTable                  = "RetroReco"
)

var DefaultExtensions = []string{"i3.bz2", ".zst", ".gz"}

type Configuration struct {
	Paths        []string `json:"paths"`
	Extensions   []string `json:"extensions"`
	GcdRescue    string   `json:"gcd_rescue"`
	OutDir       string   `json:"outdir"`
	DBName       string   `json:"db_name"`
	Mode         string   `json:"mode"`
	Pulsemap     string   `json:"pulsemap"`
	NumWorkers   int      `json:"num_workers"`
	MaxBatchSize int      `json:"max_dictionary_size"`
	MaxEventNo   int64    `json:"max_event_no"`
	SearchDepth  int      `json:"search_depth"`
	Seed         int64    `json:"seed"`
	IndexAux     bool     `json:"index_aux"`
	Overwrite    bool     `json:"overwrite"`
	KeepShards   bool     `json:"keep_shards"`
	MetricsFile  string   `json:"metrics_file"`
	Verbosity    int      `json:"verbosity"`
}

// DefaultConfiguration returns the values used when a field is missing
// from the configuration file.
func DefaultConfiguration() Configuration {
	return Configuration{
		Extensions:   append([]string(nil), DefaultExtensions...),
		OutDir:       ".",
		Mode:         ModeSimulation,
		Pulsemap:     "SRTInIcePulses",
		NumWorkers:   1,
		MaxBatchSize: DefaultMaxBatchSize,
		MaxEventNo:   DefaultMaxEventNo,
		SearchDepth:  DefaultSearchDepth,
		Verbosity:    1,
	}
}

func (c Configuration) Validate() error {
	if len(c.Paths) == 0 {
		return fmt.Errorf("no input paths configured")
	}
	if c.DBName == "" {
		return fmt.Errorf("db_name is empty")
	}
	if filepath.Ext(c.DBName) != "" {
		return fmt.Errorf("db_name %q must not carry an extension", c.DBName)
	}
	if c.Mode != ModeSimulation && c.Mode != ModeData {
		return fmt.Errorf("unknown extraction mode %q", c.Mode)
	}
	if c.Pulsemap == "" {
		return fmt.Errorf("pulsemap is empty")
	}
	if c.Pulsemap == TruthTable || c.Pulsemap == AuxTable {
		return fmt.Errorf("pulsemap name %q collides with a reserved table", c.Pulsemap)
	}
	if c.NumWorkers < 1 {
		return fmt.Errorf("num_workers must be positive, got %d", c.NumWorkers)
	}
	if c.MaxBatchSize < 1 {
		return fmt.Errorf("max_dictionary_size must be positive, got %d", c.MaxBatchSize)
	}
	if c.MaxEventNo < int64(c.NumWorkers) {
		return fmt.Errorf("max_event_no %d is smaller than the number of workers", c.MaxEventNo)
	}
	if c.SearchDepth < 1 {
		return fmt.Errorf("search_depth must be at least 1, got %d", c.SearchDepth)
	}
	return nil
}

// Layout of the output tree: <outdir>/<db_name>/{config,tmp,data}.
func (c Configuration) RootDir() string {
	return filepath.Join(c.OutDir, c.DBName)
}

func (c Configuration) ConfigDir() string {
	return filepath.Join(c.RootDir(), "config")
}

func (c Configuration) TmpDir() string {
	return filepath.Join(c.RootDir(), "tmp")
}

func (c Configuration) DataDir() string {
	return filepath.Join(c.RootDir(), "data")
}

func (c Configuration) ManifestPath() string {
	return filepath.Join(c.ConfigDir(), "i3files.csv")
}

func (c Configuration) DatabasePath() string {
	return filepath.Join(c.DataDir(), c.DBName+".db")
}
