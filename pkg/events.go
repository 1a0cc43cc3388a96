package converter

// Frame is one physics frame handed to the extractor.
type Frame struct {
	Header   FrameHeaderStruct
	Data     []byte
	Filename string
}

// Fragment is a columnar piece of a table: every column has the same
// number of values.
type Fragment map[string][]float64

// Rows returns the number of rows of the fragment, or -1 if its columns
// have different lengths.
func (f Fragment) Rows() int {
	rows := -1
	for _, values := range f {
		if rows == -1 {
			rows = len(values)
		} else if rows != len(values) {
			return -1
		}
	}
	if rows == -1 {
		return 0
	}
	return rows
}

// Fragments is what the extractor returns for one frame.
type Fragments struct {
	Truth  Fragment
	Pulses Fragment
	Aux    Fragment
}

// PulseRequiredField must be present for a pulse fragment to be kept.
const PulseRequiredField = "dom_x"

func pulsesEmpty(pulses Fragment) bool {
	values, ok := pulses[PulseRequiredField]
	return !ok || len(values) == 0
}

type Position struct {
	X float64
	Y float64
	Z float64
}

type Constants struct {
	Gain       float64
	TimeOffset float64
}

// Calibration is the detector description used to interpret the frames of
// an event file.
type Calibration struct {
	Source    string
	Geometry  map[uint32]Position
	Constants map[uint32]Constants
}

func NewCalibration(source string) *Calibration {
	return &Calibration{
		Source:    source,
		Geometry:  make(map[uint32]Position),
		Constants: make(map[uint32]Constants),
	}
}

// ConstantsFor returns the constants of a sensor, unit gain and no offset
// when the sensor has none.
func (c *Calibration) ConstantsFor(sensorID uint32) Constants {
	if constants, ok := c.Constants[sensorID]; ok {
		return constants
	}
	return Constants{Gain: 1}
}
