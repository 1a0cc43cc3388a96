package converter

import (
	"encoding/binary"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
)

// CalibrationLoader reads the geometry and calibration constants stored at
// path.
type CalibrationLoader interface {
	Load(path string) (*Calibration, error)
}

type CalibrationLoaderFunc func(path string) (*Calibration, error)

func (f CalibrationLoaderFunc) Load(path string) (*Calibration, error) {
	return f(path)
}

var (
	calibrationLoadersMu sync.RWMutex
	calibrationLoaders   = map[string]CalibrationLoader{
		".csv":    CalibrationLoaderFunc(LoadCSVCalibration),
		".db":     CalibrationLoaderFunc(LoadSQLiteCalibration),
		".sqlite": CalibrationLoaderFunc(LoadSQLiteCalibration),
	}
)

// RegisterCalibrationLoader makes loader responsible for files whose
// extension, once a compression suffix is removed, is extension.
func RegisterCalibrationLoader(extension string, loader CalibrationLoader) {
	calibrationLoadersMu.Lock()
	defer calibrationLoadersMu.Unlock()
	calibrationLoaders[strings.ToLower(extension)] = loader
}

// Loaders picks the loader from the path: mysql:// sources go to the
// MySQL loader, registered extensions to their loader and everything else
// is read as a frame container with geometry and calibration frames.
type Loaders struct{}

func (Loaders) Load(path string) (*Calibration, error) {
	if strings.HasPrefix(path, mysqlScheme) {
		return LoadMySQLCalibration(path)
	}
	extension := strings.ToLower(filepath.Ext(StripCompression(path)))
	calibrationLoadersMu.RLock()
	loader, ok := calibrationLoaders[extension]
	calibrationLoadersMu.RUnlock()
	if !ok {
		return LoadFrameCalibration(path)
	}
	return loader.Load(path)
}

// LoadCSVCalibration reads sensor_id,x,y,z[,gain,time_offset] rows with a
// header line. The file may be compressed.
func LoadCSVCalibration(path string) (*Calibration, error) {
	file, err := OpenDecompressed(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"sensor_id", "x", "y", "z"} {
		if _, ok := index[required]; !ok {
			return nil, fmt.Errorf("missing column %q", required)
		}
	}
	gainIdx, hasGain := index["gain"]
	offsetIdx, hasOffset := index["time_offset"]

	calibration := NewCalibration(path)
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if len(record) != len(header) {
			return nil, fmt.Errorf("line %d: expected %d fields, got %d", line, len(header), len(record))
		}
		id, err := strconv.ParseUint(record[index["sensor_id"]], 10, 32)
		if err != nil {
			return nil, fmt.Errorf("line %d: sensor_id: %w", line, err)
		}
		var position Position
		for name, target := range map[string]*float64{"x": &position.X, "y": &position.Y, "z": &position.Z} {
			*target, err = strconv.ParseFloat(record[index[name]], 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: %s: %w", line, name, err)
			}
		}
		sensorID := uint32(id)
		if _, ok := calibration.Geometry[sensorID]; ok {
			return nil, fmt.Errorf("line %d: sensor %d defined twice", line, sensorID)
		}
		calibration.Geometry[sensorID] = position

		if hasGain || hasOffset {
			constants := Constants{Gain: 1}
			if hasGain {
				if constants.Gain, err = strconv.ParseFloat(record[gainIdx], 64); err != nil {
					return nil, fmt.Errorf("line %d: gain: %w", line, err)
				}
			}
			if hasOffset {
				if constants.TimeOffset, err = strconv.ParseFloat(record[offsetIdx], 64); err != nil {
					return nil, fmt.Errorf("line %d: time_offset: %w", line, err)
				}
			}
			calibration.Constants[sensorID] = constants
		}
	}
	if len(calibration.Geometry) == 0 {
		return nil, fmt.Errorf("no sensors in %s", path)
	}
	return calibration, nil
}

// Record layouts of geometry and calibration frames.
type GeometryRecord struct {
	SensorID uint32
	X        float64
	Y        float64
	Z        float64
}

type ConstantsRecord struct {
	SensorID   uint32
	Gain       float64
	TimeOffset float64
}

// LoadFrameCalibration reads the first geometry frame and, if present, the
// first calibration frame of a frame container.
func LoadFrameCalibration(path string) (*Calibration, error) {
	file, err := OpenDecompressed(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	calibration := NewCalibration(path)
	haveGeometry, haveConstants := false, false
	for !(haveGeometry && haveConstants) {
		header, frameData, err := ReadFrame(file)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		switch {
		case header.FrameType == GEOMETRY_FRAME && !haveGeometry:
			records, err := decodeRecords[GeometryRecord](frameData)
			if err != nil {
				return nil, fmt.Errorf("geometry frame: %w", err)
			}
			for _, r := range records {
				calibration.Geometry[r.SensorID] = Position{X: r.X, Y: r.Y, Z: r.Z}
			}
			haveGeometry = true
		case header.FrameType == CALIBRATION_FRAME && !haveConstants:
			records, err := decodeRecords[ConstantsRecord](frameData)
			if err != nil {
				return nil, fmt.Errorf("calibration frame: %w", err)
			}
			for _, r := range records {
				calibration.Constants[r.SensorID] = Constants{Gain: r.Gain, TimeOffset: r.TimeOffset}
			}
			haveConstants = true
		}
	}
	if !haveGeometry {
		return nil, fmt.Errorf("no geometry frame in %s", path)
	}
	return calibration, nil
}

func decodeRecords[T any](frameData []byte) ([]T, error) {
	var record T
	size := binary.Size(record)
	if len(frameData)%size != 0 {
		return nil, fmt.Errorf("payload of %d bytes is not a multiple of %d", len(frameData), size)
	}
	records := make([]T, len(frameData)/size)
	if len(records) == 0 {
		return records, nil
	}
	if _, err := binary.Decode(frameData, binary.LittleEndian, records); err != nil {
		return nil, err
	}
	return records, nil
}

// EncodeRecords is the inverse of the geometry/calibration frame decoding.
func EncodeRecords[T any](records []T) ([]byte, error) {
	if len(records) == 0 {
		return nil, nil
	}
	return binary.Append(nil, binary.LittleEndian, records)
}
