package converter

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const testSensors = 10

// testEvent describes one physics frame of a fixture file. Pulses is the
// number of pulses in the test pulsemap, -1 leaves the series out.
type testEvent struct {
	EventID uint32
	Pulses  int
	Aux     bool
	Energy  float64
}

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, nil, 0o644))
}

// writeCSVCalibration writes sensors 0..testSensors-1 at (id, 2id, 3id)
// with gain 2 and time offset 1.
func writeCSVCalibration(t *testing.T, path string) {
	t.Helper()
	var b strings.Builder
	b.WriteString("sensor_id,x,y,z,gain,time_offset\n")
	for i := 0; i < testSensors; i++ {
		fmt.Fprintf(&b, "%d,%d,%d,%d,2,1\n", i, i, 2*i, 3*i)
	}
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))
}

func testPayload(event testEvent, pulsemap string) FramePayload {
	payload := FramePayload{
		Truth: []Field{
			{Name: "energy", Value: event.Energy},
			{Name: "mc_pid", Value: 14},
		},
	}
	if event.Pulses >= 0 {
		pulses := make([]Pulse, event.Pulses)
		for i := range pulses {
			pulses[i] = Pulse{SensorID: uint32(i % testSensors), Time: float32(10 * (i + 1)), Charge: 1.5, Width: 4}
		}
		payload.Series = []PulseSeries{{Name: pulsemap, Pulses: pulses}}
	}
	if event.Aux {
		payload.Aux = []Field{{Name: "energy_reco", Value: event.Energy / 2}}
	}
	return payload
}

func writeEventFile(t *testing.T, path string, run uint32, pulsemap string, events ...testEvent) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	writer, err := NewFrameWriter(path)
	require.NoError(t, err)
	// A non physics frame in front, it must be ignored
	require.NoError(t, writer.WriteFrame(FrameHeaderStruct{FrameType: DAQ_FRAME}, []byte{1, 2, 3}))
	for _, event := range events {
		frameData, err := EncodeFramePayload(testPayload(event, pulsemap))
		require.NoError(t, err)
		header := FrameHeaderStruct{
			FrameType:          PHYSICS_FRAME,
			FrameRunNb:         run,
			FrameEventId:       event.EventID,
			FrameTimestampSec:  1000,
			FrameTimestampUsec: 500000,
		}
		require.NoError(t, writer.WriteFrame(header, frameData))
	}
	require.NoError(t, writer.Close())
}

func testCalibration() *Calibration {
	calibration := NewCalibration("test")
	for i := uint32(0); i < testSensors; i++ {
		calibration.Geometry[i] = Position{X: float64(i), Y: float64(2 * i), Z: float64(3 * i)}
		calibration.Constants[i] = Constants{Gain: 2, TimeOffset: 1}
	}
	return calibration
}

func testConfiguration(t *testing.T, paths ...string) Configuration {
	t.Helper()
	config := DefaultConfiguration()
	config.Paths = paths
	config.OutDir = t.TempDir()
	config.DBName = "test"
	config.Pulsemap = "pulses"
	config.Seed = 42
	return config
}

func countRows(t *testing.T, path string, table string) int {
	t.Helper()
	db, err := OpenSQLite(path)
	require.NoError(t, err)
	defer db.Close()
	var n int
	require.NoError(t, db.Get(&n, fmt.Sprintf("SELECT count(*) FROM %s", quoteIdentifier(table))))
	return n
}
