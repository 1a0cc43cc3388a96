package converter

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameRoundTripCompression(t *testing.T) {
	t.Parallel()
	for _, name := range []string{"events.i3", "events.i3.gz", "events.i3.zst", "events.i3.lz4"} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			path := filepath.Join(t.TempDir(), name)
			writeEventFile(t, path, 7, "pulses",
				testEvent{EventID: 1, Pulses: 3},
				testEvent{EventID: 2, Pulses: 0},
				testEvent{EventID: 3, Pulses: -1, Aux: true},
			)

			reader, err := OpenFrameReader(path)
			require.NoError(t, err)
			defer reader.Close()

			var ids []uint32
			for {
				header, frameData, err := reader.NextPhysics()
				if errors.Is(err, io.EOF) {
					break
				}
				require.NoError(t, err)
				assert.Equal(t, uint32(7), header.FrameRunNb)
				_, err = DecodeFramePayload(frameData)
				require.NoError(t, err)
				ids = append(ids, header.FrameEventId)
			}
			assert.Equal(t, []uint32{1, 2, 3}, ids)
			// The DAQ frame in front counts as a frame but is not returned
			assert.Equal(t, 3, reader.FrameCount)
		})
	}
}

func TestCompressionFromName(t *testing.T) {
	t.Parallel()
	assert.Equal(t, CompressionBzip2, CompressionFromName("run.i3.bz2"))
	assert.Equal(t, CompressionZstd, CompressionFromName("run.I3.ZST"))
	assert.Equal(t, CompressionNone, CompressionFromName("run.i3"))
	assert.Equal(t, "run.i3", StripCompression("run.i3.gz"))
	assert.Equal(t, "geometry.csv", StripCompression("geometry.csv"))
}

func TestCreateCompressedRejectsBzip2(t *testing.T) {
	t.Parallel()
	_, err := CreateCompressed(filepath.Join(t.TempDir(), "out.i3.bz2"))
	assert.Error(t, err)
}

func encodeHeader(t *testing.T, header FrameHeaderStruct) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, header))
	return buf.Bytes()
}

func TestReadFrameBadMagic(t *testing.T) {
	t.Parallel()
	data := encodeHeader(t, FrameHeaderStruct{
		FrameSize:     FrameSizeType(frameHeaderSize),
		FrameMagic:    0xDEADBEEF,
		FrameHeadSize: FrameHeadSizeType(frameHeaderSize),
		FrameType:     PHYSICS_FRAME,
	})
	_, _, err := ReadFrame(bytes.NewReader(data))
	assert.ErrorIs(t, err, ErrBadMagic)
}

func TestReadFrameTooLarge(t *testing.T) {
	t.Parallel()
	data := encodeHeader(t, FrameHeaderStruct{
		FrameSize:     FrameSizeType(0xfffffff0),
		FrameMagic:    FRAME_MAGIC_NUMBER,
		FrameHeadSize: FrameHeadSizeType(frameHeaderSize),
		FrameType:     PHYSICS_FRAME,
	})
	_, frameData, err := ReadFrame(bytes.NewReader(data))
	assert.ErrorIs(t, err, ErrFrameTooLarge)
	assert.Nil(t, frameData)
}

func TestReadFrameTruncated(t *testing.T) {
	t.Parallel()
	header := FrameHeaderStruct{
		FrameSize:     FrameSizeType(frameHeaderSize + 16),
		FrameMagic:    FRAME_MAGIC_NUMBER,
		FrameHeadSize: FrameHeadSizeType(frameHeaderSize),
		FrameType:     PHYSICS_FRAME,
	}
	data := append(encodeHeader(t, header), make([]byte, 8)...)

	_, _, err := ReadFrame(bytes.NewReader(data))
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)

	// Half a header is not a clean end of file either
	_, _, err = ReadFrame(bytes.NewReader(data[:10]))
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)

	_, _, err = ReadFrame(bytes.NewReader(nil))
	assert.ErrorIs(t, err, io.EOF)
}

func TestReadFrameSkipsLongerHeader(t *testing.T) {
	t.Parallel()
	header := FrameHeaderStruct{
		FrameSize:     FrameSizeType(frameHeaderSize + 4 + 2),
		FrameMagic:    FRAME_MAGIC_NUMBER,
		FrameHeadSize: FrameHeadSizeType(frameHeaderSize + 4),
		FrameType:     PHYSICS_FRAME,
		FrameEventId:  9,
	}
	data := append(encodeHeader(t, header), 0xff, 0xff, 0xff, 0xff, 'o', 'k')

	got, frameData, err := ReadFrame(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, uint32(9), got.FrameEventId)
	assert.Equal(t, []byte("ok"), frameData)
}

func TestOpenFrameReaderMissingFile(t *testing.T) {
	t.Parallel()
	_, err := OpenFrameReader(filepath.Join(t.TempDir(), "missing.i3.zst"))
	var openErr *ErrOpenFile
	require.ErrorAs(t, err, &openErr)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
