// Package hdf5calib reads and writes detector calibrations stored as HDF5
// tables under /Sensors. It needs cgo and libhdf5, which is why it lives
// outside the converter package and is registered by the commands.
package hdf5calib

import (
	"fmt"

	converter "github.com/gnn-reco/converter_go/pkg"
	hdf5 "github.com/jmbenlloch/go-hdf5"
)

const (
	SensorsGroup       = "Sensors"
	GeometryTable      = "/Sensors/geometry"
	CalibrationTable   = "/Sensors/calibration"
	defaultTableChunks = 32768
	compressionLevel   = 4
)

type GeometryHDF5 struct {
	SensorID uint32  `hdf5:"sensor_id"`
	X        float64 `hdf5:"x"`
	Y        float64 `hdf5:"y"`
	Z        float64 `hdf5:"z"`
}

type ConstantsHDF5 struct {
	SensorID   uint32  `hdf5:"sensor_id"`
	Gain       float64 `hdf5:"gain"`
	TimeOffset float64 `hdf5:"time_offset"`
}

// Register makes the converter read .h5 and .hdf5 calibration files with
// this package.
func Register() {
	converter.RegisterCalibrationLoader(".h5", converter.CalibrationLoaderFunc(Load))
	converter.RegisterCalibrationLoader(".hdf5", converter.CalibrationLoaderFunc(Load))
}

func Load(path string) (*converter.Calibration, error) {
	if converter.CompressionFromName(path) != converter.CompressionNone {
		return nil, fmt.Errorf("compressed HDF5 files are not supported: %s", path)
	}
	file, err := hdf5.OpenFile(path, hdf5.F_ACC_RDONLY)
	if err != nil {
		return nil, &converter.ErrOpenFile{Filename: path, Err: err}
	}
	defer file.Close()

	geometry, err := readTable[GeometryHDF5](file, GeometryTable)
	if err != nil {
		return nil, err
	}
	calibration := converter.NewCalibration(path)
	for _, g := range geometry {
		if _, ok := calibration.Geometry[g.SensorID]; ok {
			return nil, fmt.Errorf("%s: sensor %d appears twice", GeometryTable, g.SensorID)
		}
		calibration.Geometry[g.SensorID] = converter.Position{X: g.X, Y: g.Y, Z: g.Z}
	}

	if !file.LinkExists(CalibrationTable) {
		return calibration, nil
	}
	constants, err := readTable[ConstantsHDF5](file, CalibrationTable)
	if err != nil {
		return nil, err
	}
	for _, c := range constants {
		calibration.Constants[c.SensorID] = converter.Constants{Gain: c.Gain, TimeOffset: c.TimeOffset}
	}
	return calibration, nil
}

func readTable[T any](file *hdf5.File, name string) ([]T, error) {
	dataset, err := file.OpenDataset(name)
	if err != nil {
		return nil, fmt.Errorf("error opening table %s: %w", name, err)
	}
	defer dataset.Close()

	space := dataset.Space()
	defer space.Close()
	dims, _, err := space.SimpleExtentDims()
	if err != nil {
		return nil, fmt.Errorf("error reading size of %s: %w", name, err)
	}
	if len(dims) != 1 {
		return nil, fmt.Errorf("table %s has %d dimensions, expected 1", name, len(dims))
	}
	rows := make([]T, dims[0])
	if dims[0] == 0 {
		return rows, nil
	}
	if err := dataset.Read(&rows); err != nil {
		return nil, fmt.Errorf("error reading table %s: %w", name, err)
	}
	return rows, nil
}

// Write stores a calibration in the layout Load reads. constants may be
// empty, in which case no calibration table is created.
func Write(path string, geometry []GeometryHDF5, constants []ConstantsHDF5) error {
	file, err := hdf5.CreateFile(path, hdf5.F_ACC_TRUNC)
	if err != nil {
		return &converter.ErrOpenFile{Filename: path, Err: err}
	}
	defer file.Close()

	group, err := file.CreateGroup(SensorsGroup)
	if err != nil {
		return err
	}
	defer group.Close()

	if err := writeTable(group, "geometry", geometry); err != nil {
		return err
	}
	if len(constants) == 0 {
		return nil
	}
	return writeTable(group, "calibration", constants)
}

func writeTable[T any](group *hdf5.Group, name string, rows []T) error {
	length := uint(len(rows))
	unlimitedDims := -1 // H5S_UNLIMITED is -1L
	space, err := hdf5.CreateSimpleDataspace([]uint{length}, []uint{uint(unlimitedDims)})
	if err != nil {
		return err
	}
	defer space.Close()

	plist, err := hdf5.NewPropList(hdf5.P_DATASET_CREATE)
	if err != nil {
		return err
	}
	defer plist.Close()
	chunks := uint(defaultTableChunks)
	if length > 0 && length < chunks {
		chunks = length
	}
	if err := plist.SetChunk([]uint{chunks}); err != nil {
		return err
	}
	if err := plist.SetDeflate(compressionLevel); err != nil {
		return err
	}

	var zero T
	dtype, err := hdf5.NewDatatypeFromValue(zero)
	if err != nil {
		return err
	}
	dataset, err := group.CreateDatasetWith(name, dtype, space, plist)
	if err != nil {
		return &converter.ErrCreateTable{TableName: name, Err: err}
	}
	defer dataset.Close()
	if length == 0 {
		return nil
	}
	if err := dataset.Write(&rows); err != nil {
		return &converter.ErrInsertRows{TableName: name, Err: err}
	}
	return nil
}
