package main

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"

	converter "github.com/gnn-reco/converter_go/pkg"
)

type Dataset struct {
	Dir      string
	Runs     int
	Files    int
	Events   int
	Sensors  int
	Pulses   int
	Pulsemap string
}

// Generate writes Runs directories, each with a GCD container and Files
// event files of Events physics frames.
func (d Dataset) Generate(rng *rand.Rand) error {
	for run := 0; run < d.Runs; run++ {
		runDir := filepath.Join(d.Dir, fmt.Sprintf("run_%06d", run))
		if err := os.MkdirAll(runDir, 0o755); err != nil {
			return err
		}
		gcd := filepath.Join(runDir, fmt.Sprintf("GeoCalibDetectorStatus_%06d.i3.gz", run))
		if err := d.writeGCD(gcd, rng); err != nil {
			return err
		}
		for file := 0; file < d.Files; file++ {
			name := filepath.Join(runDir, fmt.Sprintf("events_%06d_%04d.i3.zst", run, file))
			if err := d.writeEvents(name, uint32(run), uint32(file*d.Events), rng); err != nil {
				return err
			}
		}
	}
	return nil
}

func (d Dataset) writeGCD(path string, rng *rand.Rand) error {
	geometry := make([]converter.GeometryRecord, d.Sensors)
	constants := make([]converter.ConstantsRecord, d.Sensors)
	for i := range geometry {
		geometry[i] = converter.GeometryRecord{
			SensorID: uint32(i),
			X:        rng.Float64()*1000 - 500,
			Y:        rng.Float64()*1000 - 500,
			Z:        rng.Float64()*1000 - 500,
		}
		constants[i] = converter.ConstantsRecord{SensorID: uint32(i), Gain: 0.9 + 0.2*rng.Float64(), TimeOffset: rng.Float64() * 10}
	}

	writer, err := converter.NewFrameWriter(path)
	if err != nil {
		return err
	}
	geometryData, err := converter.EncodeRecords(geometry)
	if err != nil {
		writer.Close()
		return err
	}
	constantsData, err := converter.EncodeRecords(constants)
	if err != nil {
		writer.Close()
		return err
	}
	if err := writer.WriteFrame(converter.FrameHeaderStruct{FrameType: converter.GEOMETRY_FRAME}, geometryData); err != nil {
		writer.Close()
		return err
	}
	if err := writer.WriteFrame(converter.FrameHeaderStruct{FrameType: converter.CALIBRATION_FRAME}, constantsData); err != nil {
		writer.Close()
		return err
	}
	return writer.Close()
}

func (d Dataset) writeEvents(path string, run uint32, firstEvent uint32, rng *rand.Rand) error {
	writer, err := converter.NewFrameWriter(path)
	if err != nil {
		return err
	}
	for i := 0; i < d.Events; i++ {
		nPulses := rng.Intn(2*d.Pulses + 1)
		pulses := make([]converter.Pulse, nPulses)
		for j := range pulses {
			pulses[j] = converter.Pulse{
				SensorID: uint32(rng.Intn(d.Sensors)),
				Time:     float32(rng.Float64() * 10000),
				Charge:   float32(rng.ExpFloat64()),
				Width:    float32(1 + rng.Intn(8)),
			}
		}
		payload := converter.FramePayload{
			Truth: []converter.Field{
				{Name: "energy", Value: rng.ExpFloat64() * 100},
				{Name: "zenith", Value: rng.Float64() * 3.14159},
				{Name: "azimuth", Value: rng.Float64() * 6.28318},
				{Name: "mc_pid", Value: float64(12 + 2*rng.Intn(3))},
			},
			Series: []converter.PulseSeries{{Name: d.Pulsemap, Pulses: pulses}},
		}
		if rng.Intn(4) == 0 {
			payload.Aux = []converter.Field{
				{Name: "energy_reco", Value: rng.ExpFloat64() * 100},
				{Name: "zenith_reco", Value: rng.Float64() * 3.14159},
			}
		}
		frameData, err := converter.EncodeFramePayload(payload)
		if err != nil {
			writer.Close()
			return err
		}
		header := converter.FrameHeaderStruct{
			FrameType:         converter.PHYSICS_FRAME,
			FrameRunNb:        run,
			FrameEventId:      firstEvent + uint32(i),
			FrameTimestampSec: uint32(1600000000 + i),
		}
		if err := writer.WriteFrame(header, frameData); err != nil {
			writer.Close()
			return err
		}
	}
	return writer.Close()
}
