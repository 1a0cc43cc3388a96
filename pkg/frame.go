package converter

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

type Field struct {
	Name  string
	Value float64
}

type Pulse struct {
	SensorID uint32
	Time     float32
	Charge   float32
	Width    float32
}

var pulseSize = binary.Size(Pulse{})

type PulseSeries struct {
	Name   string
	Pulses []Pulse
}

// FramePayload is the content of a physics frame:
//
//	uint16 nTruth, nTruth x (uint8 len, name, float64)
//	uint16 nSeries, nSeries x (uint8 len, name, uint32 nPulses, nPulses x Pulse)
//	uint16 nAux, nAux x (uint8 len, name, float64)
//
// all little endian.
type FramePayload struct {
	Truth  []Field
	Series []PulseSeries
	Aux    []Field
}

func (p *FramePayload) SeriesByName(name string) (PulseSeries, bool) {
	for _, series := range p.Series {
		if series.Name == name {
			return series, true
		}
	}
	return PulseSeries{}, false
}

func EncodeFramePayload(payload FramePayload) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeFields(&buf, payload.Truth); err != nil {
		return nil, fmt.Errorf("truth block: %w", err)
	}
	if len(payload.Series) > 0xffff {
		return nil, fmt.Errorf("too many pulse series: %d", len(payload.Series))
	}
	binary.Write(&buf, binary.LittleEndian, uint16(len(payload.Series)))
	for _, series := range payload.Series {
		if err := writeName(&buf, series.Name); err != nil {
			return nil, err
		}
		binary.Write(&buf, binary.LittleEndian, uint32(len(series.Pulses)))
		if len(series.Pulses) > 0 {
			binary.Write(&buf, binary.LittleEndian, series.Pulses)
		}
	}
	if err := writeFields(&buf, payload.Aux); err != nil {
		return nil, fmt.Errorf("aux block: %w", err)
	}
	return buf.Bytes(), nil
}

func writeName(buf *bytes.Buffer, name string) error {
	if len(name) == 0 || len(name) > 0xff {
		return fmt.Errorf("invalid name length %d", len(name))
	}
	buf.WriteByte(uint8(len(name)))
	buf.WriteString(name)
	return nil
}

func writeFields(buf *bytes.Buffer, fields []Field) error {
	if len(fields) > 0xffff {
		return fmt.Errorf("too many fields: %d", len(fields))
	}
	binary.Write(buf, binary.LittleEndian, uint16(len(fields)))
	for _, field := range fields {
		if err := writeName(buf, field.Name); err != nil {
			return err
		}
		binary.Write(buf, binary.LittleEndian, field.Value)
	}
	return nil
}

func DecodeFramePayload(frameData []byte) (FramePayload, error) {
	var payload FramePayload
	reader := bytes.NewReader(frameData)

	var err error
	payload.Truth, err = readFields(reader)
	if err != nil {
		return payload, fmt.Errorf("truth block: %w", err)
	}

	var nSeries uint16
	if err := binary.Read(reader, binary.LittleEndian, &nSeries); err != nil {
		return payload, fmt.Errorf("series count: %w", err)
	}
	payload.Series = make([]PulseSeries, nSeries)
	for i := range payload.Series {
		name, err := readName(reader)
		if err != nil {
			return payload, fmt.Errorf("series %d: %w", i, err)
		}
		var nPulses uint32
		if err := binary.Read(reader, binary.LittleEndian, &nPulses); err != nil {
			return payload, fmt.Errorf("series %s: %w", name, err)
		}
		if int64(nPulses)*int64(pulseSize) > int64(reader.Len()) {
			return payload, fmt.Errorf("series %s: %d pulses exceed frame size", name, nPulses)
		}
		pulses := make([]Pulse, nPulses)
		if nPulses > 0 {
			if err := binary.Read(reader, binary.LittleEndian, pulses); err != nil {
				return payload, fmt.Errorf("series %s: %w", name, err)
			}
		}
		payload.Series[i] = PulseSeries{Name: name, Pulses: pulses}
	}

	payload.Aux, err = readFields(reader)
	if err != nil {
		return payload, fmt.Errorf("aux block: %w", err)
	}
	if reader.Len() != 0 {
		return payload, fmt.Errorf("%d trailing bytes in frame", reader.Len())
	}
	return payload, nil
}

func readName(reader *bytes.Reader) (string, error) {
	length, err := reader.ReadByte()
	if err != nil {
		return "", err
	}
	name := make([]byte, length)
	if _, err := io.ReadFull(reader, name); err != nil {
		return "", err
	}
	return string(name), nil
}

func readFields(reader *bytes.Reader) ([]Field, error) {
	var n uint16
	if err := binary.Read(reader, binary.LittleEndian, &n); err != nil {
		return nil, err
	}
	fields := make([]Field, n)
	for i := range fields {
		name, err := readName(reader)
		if err != nil {
			return nil, err
		}
		var value float64
		if err := binary.Read(reader, binary.LittleEndian, &value); err != nil {
			return nil, err
		}
		fields[i] = Field{Name: name, Value: value}
	}
	return fields, nil
}
