package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/gnn-reco/converter_go/internal/logging"
	converter "github.com/gnn-reco/converter_go/pkg"
)

func LoadConfiguration(filename string) (converter.Configuration, error) {
	// Missing fields keep their default value
	config := converter.DefaultConfiguration()

	data, err := os.ReadFile(filename)
	if err != nil {
		return config, err
	}
	err = json.Unmarshal(data, &config)
	if err != nil {
		return config, err
	}
	return config, nil
}

func printConfiguration(config converter.Configuration, logger logging.Logger) {
	logger.Info(fmt.Sprintf("Paths: %v", config.Paths), "config")
	logger.Info(fmt.Sprintf("Extensions: %v", config.Extensions), "config")
	logger.Info(fmt.Sprintf("GCD rescue: %s", config.GcdRescue), "config")
	logger.Info(fmt.Sprintf("Search depth: %d", config.SearchDepth), "config")
	logger.Info(fmt.Sprintf("Output dir: %s", config.OutDir), "config")
	logger.Info(fmt.Sprintf("DB name: %s", config.DBName), "config")
	logger.Info(fmt.Sprintf("Mode: %s", config.Mode), "config")
	logger.Info(fmt.Sprintf("Pulsemap: %s", config.Pulsemap), "config")
	logger.Info(fmt.Sprintf("Num workers: %d", config.NumWorkers), "config")
	logger.Info(fmt.Sprintf("Max dictionary size: %d", config.MaxBatchSize), "config")
	logger.Info(fmt.Sprintf("Max event_no: %d", config.MaxEventNo), "config")
	logger.Info(fmt.Sprintf("Seed: %d", config.Seed), "config")
	logger.Info(fmt.Sprintf("Index %s: %t", converter.AuxTable, config.IndexAux), "config")
	logger.Info(fmt.Sprintf("Overwrite: %t", config.Overwrite), "config")
	logger.Info(fmt.Sprintf("Keep shards: %t", config.KeepShards), "config")
	logger.Info(fmt.Sprintf("Metrics file: %s", config.MetricsFile), "config")
	logger.Info(fmt.Sprintf("Verbosity: %d", config.Verbosity), "config")
}
