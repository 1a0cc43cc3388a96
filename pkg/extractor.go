package converter

import (
	"fmt"
	"strings"
)

// Extractor turns one physics frame into table fragments. It must not keep
// state between calls: every worker shares the same instance.
type Extractor interface {
	Extract(frame Frame, mode string, pulsemap string, calibration *Calibration) (Fragments, error)
}

type ExtractorFunc func(frame Frame, mode string, pulsemap string, calibration *Calibration) (Fragments, error)

func (f ExtractorFunc) Extract(frame Frame, mode string, pulsemap string, calibration *Calibration) (Fragments, error) {
	return f(frame, mode, pulsemap, calibration)
}

// Truth fields with this prefix only exist in simulation.
const simulationPrefix = "mc_"

// DefaultExtractor reads frames in the FramePayload layout.
type DefaultExtractor struct{}

func (DefaultExtractor) Extract(frame Frame, mode string, pulsemap string, calibration *Calibration) (Fragments, error) {
	payload, err := DecodeFramePayload(frame.Data)
	if err != nil {
		return Fragments{}, fmt.Errorf("frame %d of %s: %w", frame.Header.FrameEventId, frame.Filename, err)
	}

	truth, err := extractTruth(frame.Header, payload.Truth, mode)
	if err != nil {
		return Fragments{}, err
	}
	pulses, err := extractPulses(payload, pulsemap, calibration)
	if err != nil {
		return Fragments{}, fmt.Errorf("frame %d of %s: %w", frame.Header.FrameEventId, frame.Filename, err)
	}
	aux, err := fieldsToFragment(payload.Aux)
	if err != nil {
		return Fragments{}, fmt.Errorf("aux block: %w", err)
	}
	return Fragments{Truth: truth, Pulses: pulses, Aux: aux}, nil
}

func extractTruth(header FrameHeaderStruct, fields []Field, mode string) (Fragment, error) {
	truth := Fragment{
		"run_id":       {float64(header.FrameRunNb)},
		"sub_event_id": {float64(header.FrameSubEventId)},
		"event_id":     {float64(header.FrameEventId)},
		"timestamp":    {float64(header.FrameTimestampSec) + float64(header.FrameTimestampUsec)*1e-6},
	}
	for _, field := range fields {
		if mode == ModeData && strings.HasPrefix(field.Name, simulationPrefix) {
			continue
		}
		if _, ok := truth[field.Name]; ok {
			return nil, fmt.Errorf("duplicated truth field %q", field.Name)
		}
		if field.Name == EventNoColumn {
			return nil, fmt.Errorf("truth field %q is reserved", field.Name)
		}
		truth[field.Name] = []float64{field.Value}
	}
	return truth, nil
}

func extractPulses(payload FramePayload, pulsemap string, calibration *Calibration) (Fragment, error) {
	series, ok := payload.SeriesByName(pulsemap)
	if !ok {
		return nil, nil
	}
	n := len(series.Pulses)
	pulses := Fragment{
		"sensor_id": make([]float64, n),
		"dom_x":     make([]float64, n),
		"dom_y":     make([]float64, n),
		"dom_z":     make([]float64, n),
		"dom_time":  make([]float64, n),
		"charge":    make([]float64, n),
		"width":     make([]float64, n),
	}
	for i, pulse := range series.Pulses {
		position, ok := calibration.Geometry[pulse.SensorID]
		if !ok {
			return nil, fmt.Errorf("sensor %d not in geometry %s", pulse.SensorID, calibration.Source)
		}
		constants := calibration.ConstantsFor(pulse.SensorID)
		pulses["sensor_id"][i] = float64(pulse.SensorID)
		pulses["dom_x"][i] = position.X
		pulses["dom_y"][i] = position.Y
		pulses["dom_z"][i] = position.Z
		pulses["dom_time"][i] = float64(pulse.Time) - constants.TimeOffset
		pulses["charge"][i] = float64(pulse.Charge) * constants.Gain
		pulses["width"][i] = float64(pulse.Width)
	}
	return pulses, nil
}

func fieldsToFragment(fields []Field) (Fragment, error) {
	if len(fields) == 0 {
		return nil, nil
	}
	fragment := make(Fragment, len(fields))
	for _, field := range fields {
		if _, ok := fragment[field.Name]; ok {
			return nil, fmt.Errorf("duplicated field %q", field.Name)
		}
		if field.Name == EventNoColumn {
			return nil, fmt.Errorf("field %q is reserved", field.Name)
		}
		fragment[field.Name] = []float64{field.Value}
	}
	return fragment, nil
}
