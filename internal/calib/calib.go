// Package calib decodes camera calibration payloads that depth
// sources attach to their buffers and renders them for the
// calibration log.
//
// Every field of a record is individually optional. Devices differ in
// what they report, so a payload may carry any subset and decoding
// never fails just because a section is absent.
package calib

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	"github.com/smazurov/depthnode/internal/media"
)

// Payload layout, little endian throughout:
//
//	magic   [4]byte "DCAL"
//	version uint8
//	flags   uint8
//	then one section per set flag, in flag bit order
const (
	payloadMagic   = "DCAL"
	payloadVersion = 1
)

const (
	flagIntrinsic byte = 1 << iota
	flagExtrinsic
	flagReference
	flagPixelSize
	flagDistortionCenter
	flagDistortionTable
)

var (
	ErrBadMagic   = errors.New("calib: bad payload magic")
	ErrBadVersion = errors.New("calib: unsupported payload version")
	ErrTruncated  = errors.New("calib: truncated payload")
)

// Matrix3 is a row major 3x3 matrix.
type Matrix3 [9]float32

// Vector3 is a 3 component vector.
type Vector3 [3]float32

// Point2 is a 2d point.
type Point2 [2]float32

// Dimensions are the reference frame dimensions the intrinsic matrix
// was computed for.
type Dimensions struct {
	Width  uint32
	Height uint32
}

// Record is one decoded calibration observation. Nil pointer fields
// and a nil DistortionTable mean the device did not report them.
type Record struct {
	Intrinsic            *Matrix3
	ExtrinsicRotation    *Matrix3
	ExtrinsicTranslation *Vector3
	Reference            *Dimensions
	PixelSize            *float32
	DistortionCenter     *Point2
	DistortionTable      []byte

	// TimestampMillis is the presentation time of the depth sample
	// the record was extracted from.
	TimestampMillis float64
}

// Extract decodes the calibration payload of a depth sample. It
// returns false when the sample carries no payload or the payload
// does not decode; callers skip persistence in that case.
func Extract(s *media.DepthSample) (*Record, bool) {
	if s == nil || s.Buffer == nil || len(s.Buffer.Calibration) == 0 {
		return nil, false
	}
	var r Record
	if err := r.UnmarshalBinary(s.Buffer.Calibration); err != nil {
		return nil, false
	}
	r.TimestampMillis = s.Timestamp.Millis()
	return &r, true
}

// UnmarshalBinary decodes a calibration payload.
func (r *Record) UnmarshalBinary(data []byte) error {
	if len(data) < len(payloadMagic)+2 {
		return ErrTruncated
	}
	if string(data[:4]) != payloadMagic {
		return ErrBadMagic
	}
	if data[4] != payloadVersion {
		return ErrBadVersion
	}
	flags := data[5]
	buf := bytes.NewReader(data[6:])

	if flags&flagIntrinsic != 0 {
		r.Intrinsic = new(Matrix3)
		if err := binary.Read(buf, binary.LittleEndian, r.Intrinsic); err != nil {
			return ErrTruncated
		}
	}
	if flags&flagExtrinsic != 0 {
		r.ExtrinsicRotation = new(Matrix3)
		r.ExtrinsicTranslation = new(Vector3)
		if err := binary.Read(buf, binary.LittleEndian, r.ExtrinsicRotation); err != nil {
			return ErrTruncated
		}
		if err := binary.Read(buf, binary.LittleEndian, r.ExtrinsicTranslation); err != nil {
			return ErrTruncated
		}
	}
	if flags&flagReference != 0 {
		r.Reference = new(Dimensions)
		if err := binary.Read(buf, binary.LittleEndian, r.Reference); err != nil {
			return ErrTruncated
		}
	}
	if flags&flagPixelSize != 0 {
		r.PixelSize = new(float32)
		if err := binary.Read(buf, binary.LittleEndian, r.PixelSize); err != nil {
			return ErrTruncated
		}
	}
	if flags&flagDistortionCenter != 0 {
		r.DistortionCenter = new(Point2)
		if err := binary.Read(buf, binary.LittleEndian, r.DistortionCenter); err != nil {
			return ErrTruncated
		}
	}
	if flags&flagDistortionTable != 0 {
		var n uint32
		if err := binary.Read(buf, binary.LittleEndian, &n); err != nil {
			return ErrTruncated
		}
		if uint32(buf.Len()) < n {
			return ErrTruncated
		}
		r.DistortionTable = make([]byte, n)
		if _, err := buf.Read(r.DistortionTable); err != nil {
			return ErrTruncated
		}
	}
	return nil
}

// MarshalBinary encodes the record as a payload a depth source can
// attach to its buffers. TimestampMillis is transient and not
// encoded.
func (r *Record) MarshalBinary() ([]byte, error) {
	var flags byte
	if r.Intrinsic != nil {
		flags |= flagIntrinsic
	}
	if r.ExtrinsicRotation != nil && r.ExtrinsicTranslation != nil {
		flags |= flagExtrinsic
	}
	if r.Reference != nil {
		flags |= flagReference
	}
	if r.PixelSize != nil {
		flags |= flagPixelSize
	}
	if r.DistortionCenter != nil {
		flags |= flagDistortionCenter
	}
	if r.DistortionTable != nil {
		flags |= flagDistortionTable
	}

	var buf bytes.Buffer
	buf.WriteString(payloadMagic)
	buf.WriteByte(payloadVersion)
	buf.WriteByte(flags)

	if flags&flagIntrinsic != 0 {
		if err := binary.Write(&buf, binary.LittleEndian, r.Intrinsic); err != nil {
			return nil, err
		}
	}
	if flags&flagExtrinsic != 0 {
		if err := binary.Write(&buf, binary.LittleEndian, r.ExtrinsicRotation); err != nil {
			return nil, err
		}
		if err := binary.Write(&buf, binary.LittleEndian, r.ExtrinsicTranslation); err != nil {
			return nil, err
		}
	}
	if flags&flagReference != 0 {
		if err := binary.Write(&buf, binary.LittleEndian, r.Reference); err != nil {
			return nil, err
		}
	}
	if flags&flagPixelSize != 0 {
		if err := binary.Write(&buf, binary.LittleEndian, *r.PixelSize); err != nil {
			return nil, err
		}
	}
	if flags&flagDistortionCenter != 0 {
		if err := binary.Write(&buf, binary.LittleEndian, r.DistortionCenter); err != nil {
			return nil, err
		}
	}
	if flags&flagDistortionTable != 0 {
		if err := binary.Write(&buf, binary.LittleEndian, uint32(len(r.DistortionTable))); err != nil {
			return nil, err
		}
		buf.Write(r.DistortionTable)
	}
	return buf.Bytes(), nil
}

// Description renders the record body for a calibration log line. The
// sink prepends the timestamp. Absent fields are omitted so lines
// stay parseable when devices report partial calibration.
func (r *Record) Description() string {
	var parts []string
	if r.Reference != nil {
		parts = append(parts, fmt.Sprintf("ref=%dx%d", r.Reference.Width, r.Reference.Height))
	}
	if r.PixelSize != nil {
		parts = append(parts, fmt.Sprintf("pixelsize=%g", *r.PixelSize))
	}
	if r.DistortionCenter != nil {
		parts = append(parts, fmt.Sprintf("center=(%g %g)", r.DistortionCenter[0], r.DistortionCenter[1]))
	}
	if r.Intrinsic != nil {
		parts = append(parts, "intrinsic="+formatMatrix(r.Intrinsic))
	}
	if r.ExtrinsicRotation != nil {
		parts = append(parts, "rotation="+formatMatrix(r.ExtrinsicRotation))
	}
	if r.ExtrinsicTranslation != nil {
		parts = append(parts, fmt.Sprintf("translation=(%g %g %g)",
			r.ExtrinsicTranslation[0], r.ExtrinsicTranslation[1], r.ExtrinsicTranslation[2]))
	}
	if r.DistortionTable != nil {
		parts = append(parts, fmt.Sprintf("lut=%dB", len(r.DistortionTable)))
	}
	if len(parts) == 0 {
		return "empty"
	}
	return strings.Join(parts, " ")
}

func formatMatrix(m *Matrix3) string {
	var b strings.Builder
	b.WriteByte('[')
	for row := 0; row < 3; row++ {
		if row > 0 {
			b.WriteString("; ")
		}
		for col := 0; col < 3; col++ {
			if col > 0 {
				b.WriteByte(' ')
			}
			fmt.Fprintf(&b, "%g", m[row*3+col])
		}
	}
	b.WriteByte(']')
	return b.String()
}
