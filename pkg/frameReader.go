package converter

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

var frameHeaderSize = binary.Size(FrameHeaderStruct{})

// MaxFrameSize bounds the payload allocated for a single frame.
const MaxFrameSize = 64 << 20

func ValidFrame(header FrameHeaderStruct) bool {
	return header.FrameType == PHYSICS_FRAME
}

// ReadFrame reads one header and its payload. io.EOF is only returned on a
// clean frame boundary; a partial frame is io.ErrUnexpectedEOF.
func ReadFrame(reader io.Reader) (FrameHeaderStruct, []byte, error) {
	var header FrameHeaderStruct
	headerBinary := make([]byte, frameHeaderSize)
	if _, err := io.ReadFull(reader, headerBinary); err != nil {
		return header, nil, err
	}

	headerReader := bytes.NewReader(headerBinary)
	if err := binary.Read(headerReader, binary.LittleEndian, &header); err != nil {
		return header, nil, err
	}
	if header.FrameMagic != FRAME_MAGIC_NUMBER {
		return header, nil, fmt.Errorf("%w: %#x", ErrBadMagic, uint32(header.FrameMagic))
	}
	if int(header.FrameHeadSize) < frameHeaderSize || header.FrameSize < FrameSizeType(header.FrameHeadSize) {
		return header, nil, fmt.Errorf("inconsistent frame sizes: size %d, header %d", header.FrameSize, header.FrameHeadSize)
	}

	// Headers of newer versions may be longer, skip what we do not know
	if extra := int64(header.FrameHeadSize) - int64(frameHeaderSize); extra > 0 {
		if _, err := io.CopyN(io.Discard, reader, extra); err != nil {
			return header, nil, unexpected(err)
		}
	}

	payloadSize := uint32(header.FrameSize) - uint32(header.FrameHeadSize)
	if payloadSize > MaxFrameSize {
		return header, nil, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, payloadSize)
	}
	frameData := make([]byte, payloadSize)
	if _, err := io.ReadFull(reader, frameData); err != nil {
		return header, nil, unexpected(err)
	}
	return header, frameData, nil
}

func unexpected(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}

// FrameReader iterates over the frames of one event file.
type FrameReader struct {
	Filename   string
	FrameCount int
	file       io.ReadCloser
}

func OpenFrameReader(filename string) (*FrameReader, error) {
	file, err := OpenDecompressed(filename)
	if err != nil {
		return nil, &ErrOpenFile{Filename: filename, Err: err}
	}
	return &FrameReader{Filename: filename, FrameCount: -1, file: file}, nil
}

// NextPhysics returns the next physics frame, skipping the other types.
func (f *FrameReader) NextPhysics() (FrameHeaderStruct, []byte, error) {
	for {
		header, frameData, err := ReadFrame(f.file)
		if err != nil {
			return header, nil, err
		}
		f.FrameCount++
		if !ValidFrame(header) {
			if verbosity > 2 {
				message := fmt.Sprintf("Skipping %v frame %d in %s", header.FrameType, f.FrameCount, f.Filename)
				logger.Info(message, "frameReader")
			}
			continue
		}
		return header, frameData, nil
	}
}

func (f *FrameReader) Close() error {
	return f.file.Close()
}

// FrameWriter produces event files in the container format read by
// FrameReader.
type FrameWriter struct {
	Filename string
	file     io.WriteCloser
}

func NewFrameWriter(filename string) (*FrameWriter, error) {
	file, err := CreateCompressed(filename)
	if err != nil {
		return nil, &ErrOpenFile{Filename: filename, Err: err}
	}
	return &FrameWriter{Filename: filename, file: file}, nil
}

// WriteFrame fills in size, magic and version of header and appends the
// frame.
func (w *FrameWriter) WriteFrame(header FrameHeaderStruct, frameData []byte) error {
	header.FrameHeadSize = FrameHeadSizeType(frameHeaderSize)
	header.FrameSize = FrameSizeType(frameHeaderSize + len(frameData))
	header.FrameMagic = FRAME_MAGIC_NUMBER
	header.FrameVersion = FRAME_CURRENT_VERSION

	if err := binary.Write(w.file, binary.LittleEndian, header); err != nil {
		return err
	}
	_, err := w.file.Write(frameData)
	return err
}

func (w *FrameWriter) Close() error {
	return w.file.Close()
}
