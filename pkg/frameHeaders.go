package converter

type FrameSizeType uint32

type FrameMagicType uint32

const FRAME_MAGIC_NUMBER FrameMagicType = 0x13C0FFEE

type FrameHeadSizeType uint32

/* ---------- Unique version identifier ---------- */
const FRAME_MAJOR_VERSION_NUMBER = 1
const FRAME_MINOR_VERSION_NUMBER = 0
const FRAME_CURRENT_VERSION = ((FRAME_MAJOR_VERSION_NUMBER << 16) & 0xffff0000) | (FRAME_MINOR_VERSION_NUMBER & 0x0000ffff)

type FrameVersionType uint32

/* ---------- Frame type ---------- */
type FrameTypeType uint32

const (
	GEOMETRY_FRAME FrameTypeType = iota + 1
	CALIBRATION_FRAME
	DETECTOR_STATUS_FRAME
	DAQ_FRAME
	PHYSICS_FRAME
)

func (t FrameTypeType) String() string {
	switch t {
	case GEOMETRY_FRAME:
		return "Geometry"
	case CALIBRATION_FRAME:
		return "Calibration"
	case DETECTOR_STATUS_FRAME:
		return "DetectorStatus"
	case DAQ_FRAME:
		return "DAQ"
	case PHYSICS_FRAME:
		return "Physics"
	default:
		return "Unknown"
	}
}

/* ---------- The frame header structure ---------- */
type FrameHeaderStruct struct {
	FrameSize          FrameSizeType
	FrameMagic         FrameMagicType
	FrameHeadSize      FrameHeadSizeType
	FrameVersion       FrameVersionType
	FrameType          FrameTypeType
	FrameRunNb         uint32
	FrameEventId       uint32
	FrameSubEventId    uint32
	FrameTimestampSec  uint32
	FrameTimestampUsec uint32
}
