// Package visionpb implements the wire protocol for the vision streaming
// service described in spec §6: a bidirectional RPC sending Frame messages
// and receiving Result messages, plus a unary Detect fallback (spec §3.2).
//
// There is no .proto file and no protoc-generated code here: the wire
// messages are hand-written Go structs that marshal/unmarshal themselves
// directly against google.golang.org/protobuf/encoding/protowire — the same
// low-level varint/length-delimited primitives protoc-gen-go compiles
// generated marshal code down to. The streaming/unary service plumbing
// (service.go) matches the shape protoc-gen-go-grpc would generate,
// grounded on the hand-rolled VisualiserServiceServer/ClientStream idiom
// seen in the lidar visualiser's grpc_server.go.
package visionpb

import (
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// ImageFormat mirrors spec §6's format enum(JPEG=1).
type ImageFormat uint32

const (
	ImageFormatUnspecified ImageFormat = 0
	ImageFormatJPEG        ImageFormat = 1
)

// Box is a detection bounding box in normalized or pixel coordinates
// (the server defines the convention; the client only relays it).
type Box struct {
	X, Y, W, H float32
}

func (b *Box) marshalAppend(dst []byte) []byte {
	dst = protowire.AppendTag(dst, 1, protowire.Fixed32Type)
	dst = protowire.AppendFixed32(dst, float32bits(b.X))
	dst = protowire.AppendTag(dst, 2, protowire.Fixed32Type)
	dst = protowire.AppendFixed32(dst, float32bits(b.Y))
	dst = protowire.AppendTag(dst, 3, protowire.Fixed32Type)
	dst = protowire.AppendFixed32(dst, float32bits(b.W))
	dst = protowire.AppendTag(dst, 4, protowire.Fixed32Type)
	dst = protowire.AppendFixed32(dst, float32bits(b.H))
	return dst
}

func (b *Box) unmarshal(data []byte) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return protowire.ParseError(n)
		}
		data = data[n:]
		switch num {
		case 1, 2, 3, 4:
			v, n := protowire.ConsumeFixed32(data)
			if n < 0 {
				return protowire.ParseError(n)
			}
			data = data[n:]
			f := float32frombits(v)
			switch num {
			case 1:
				b.X = f
			case 2:
				b.Y = f
			case 3:
				b.W = f
			case 4:
				b.H = f
			}
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return protowire.ParseError(n)
			}
			data = data[n:]
		}
	}
	return nil
}

// Detection is one server-reported detection.
type Detection struct {
	Box     *Box
	ClassID int32
	Score   float32
}

func (d *Detection) marshalAppend(dst []byte) []byte {
	if d.Box != nil {
		boxBytes := d.Box.marshalAppend(nil)
		dst = protowire.AppendTag(dst, 1, protowire.BytesType)
		dst = protowire.AppendBytes(dst, boxBytes)
	}
	dst = protowire.AppendTag(dst, 2, protowire.VarintType)
	dst = protowire.AppendVarint(dst, uint64(uint32(d.ClassID)))
	dst = protowire.AppendTag(dst, 3, protowire.Fixed32Type)
	dst = protowire.AppendFixed32(dst, float32bits(d.Score))
	return dst
}

func (d *Detection) unmarshal(data []byte) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return protowire.ParseError(n)
		}
		data = data[n:]
		switch num {
		case 1:
			b, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return protowire.ParseError(n)
			}
			data = data[n:]
			box := &Box{}
			if err := box.unmarshal(b); err != nil {
				return err
			}
			d.Box = box
		case 2:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return protowire.ParseError(n)
			}
			data = data[n:]
			d.ClassID = int32(v)
		case 3:
			v, n := protowire.ConsumeFixed32(data)
			if n < 0 {
				return protowire.ParseError(n)
			}
			data = data[n:]
			d.Score = float32frombits(v)
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return protowire.ParseError(n)
			}
			data = data[n:]
		}
	}
	return nil
}

// Frame is the outbound wire message: an encoded camera frame plus routing
// metadata (spec §6 "Outbound wire protocol").
type Frame struct {
	StreamID    string
	CameraID    string
	FrameIndex  uint64
	TimestampNs uint64
	Width       uint32
	Height      uint32
	Format      ImageFormat
	Data        []byte
}

func (f *Frame) Marshal() ([]byte, error) {
	var dst []byte
	dst = protowire.AppendTag(dst, 1, protowire.BytesType)
	dst = protowire.AppendString(dst, f.StreamID)
	dst = protowire.AppendTag(dst, 2, protowire.BytesType)
	dst = protowire.AppendString(dst, f.CameraID)
	dst = protowire.AppendTag(dst, 3, protowire.VarintType)
	dst = protowire.AppendVarint(dst, f.FrameIndex)
	dst = protowire.AppendTag(dst, 4, protowire.VarintType)
	dst = protowire.AppendVarint(dst, f.TimestampNs)
	dst = protowire.AppendTag(dst, 5, protowire.VarintType)
	dst = protowire.AppendVarint(dst, uint64(f.Width))
	dst = protowire.AppendTag(dst, 6, protowire.VarintType)
	dst = protowire.AppendVarint(dst, uint64(f.Height))
	dst = protowire.AppendTag(dst, 7, protowire.VarintType)
	dst = protowire.AppendVarint(dst, uint64(f.Format))
	dst = protowire.AppendTag(dst, 8, protowire.BytesType)
	dst = protowire.AppendBytes(dst, f.Data)
	return dst, nil
}

func (f *Frame) Unmarshal(data []byte) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return protowire.ParseError(n)
		}
		data = data[n:]
		switch num {
		case 1:
			v, n := protowire.ConsumeString(data)
			if n < 0 {
				return protowire.ParseError(n)
			}
			data, f.StreamID = data[n:], v
		case 2:
			v, n := protowire.ConsumeString(data)
			if n < 0 {
				return protowire.ParseError(n)
			}
			data, f.CameraID = data[n:], v
		case 3:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return protowire.ParseError(n)
			}
			data, f.FrameIndex = data[n:], v
		case 4:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return protowire.ParseError(n)
			}
			data, f.TimestampNs = data[n:], v
		case 5:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return protowire.ParseError(n)
			}
			data, f.Width = data[n:], uint32(v)
		case 6:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return protowire.ParseError(n)
			}
			data, f.Height = data[n:], uint32(v)
		case 7:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return protowire.ParseError(n)
			}
			data, f.Format = data[n:], ImageFormat(v)
		case 8:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return protowire.ParseError(n)
			}
			cp := make([]byte, len(v))
			copy(cp, v)
			data, f.Data = data[n:], cp
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return protowire.ParseError(n)
			}
			data = data[n:]
		}
	}
	return nil
}

// Result is the inbound wire message: detections for one previously sent
// frame index (spec §6 "Outbound wire protocol" / WireResult).
type Result struct {
	FrameIndex  uint64
	TimestampNs uint64
	Detections  []*Detection
}

func (r *Result) Marshal() ([]byte, error) {
	var dst []byte
	dst = protowire.AppendTag(dst, 1, protowire.VarintType)
	dst = protowire.AppendVarint(dst, r.FrameIndex)
	dst = protowire.AppendTag(dst, 2, protowire.VarintType)
	dst = protowire.AppendVarint(dst, r.TimestampNs)
	for _, d := range r.Detections {
		b := d.marshalAppend(nil)
		dst = protowire.AppendTag(dst, 3, protowire.BytesType)
		dst = protowire.AppendBytes(dst, b)
	}
	return dst, nil
}

func (r *Result) Unmarshal(data []byte) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return protowire.ParseError(n)
		}
		data = data[n:]
		switch num {
		case 1:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return protowire.ParseError(n)
			}
			data, r.FrameIndex = data[n:], v
		case 2:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return protowire.ParseError(n)
			}
			data, r.TimestampNs = data[n:], v
		case 3:
			b, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return protowire.ParseError(n)
			}
			data = data[n:]
			det := &Detection{}
			if err := det.unmarshal(b); err != nil {
				return err
			}
			r.Detections = append(r.Detections, det)
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return protowire.ParseError(n)
			}
			data = data[n:]
		}
	}
	return nil
}

// DetectRequest/DetectResponse back the unary Detect fallback RPC (spec
// §3.2, grounded on the original's single-camera unary prototype).
type DetectRequest struct {
	CameraID string
	Frame    *Frame
}

func (r *DetectRequest) Marshal() ([]byte, error) {
	var dst []byte
	dst = protowire.AppendTag(dst, 1, protowire.BytesType)
	dst = protowire.AppendString(dst, r.CameraID)
	if r.Frame != nil {
		fb, err := r.Frame.Marshal()
		if err != nil {
			return nil, err
		}
		dst = protowire.AppendTag(dst, 2, protowire.BytesType)
		dst = protowire.AppendBytes(dst, fb)
	}
	return dst, nil
}

func (r *DetectRequest) Unmarshal(data []byte) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return protowire.ParseError(n)
		}
		data = data[n:]
		switch num {
		case 1:
			v, n := protowire.ConsumeString(data)
			if n < 0 {
				return protowire.ParseError(n)
			}
			data, r.CameraID = data[n:], v
		case 2:
			b, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return protowire.ParseError(n)
			}
			data = data[n:]
			fr := &Frame{}
			if err := fr.Unmarshal(b); err != nil {
				return err
			}
			r.Frame = fr
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return protowire.ParseError(n)
			}
			data = data[n:]
		}
	}
	return nil
}

type DetectResponse struct {
	Result *Result
}

func (r *DetectResponse) Marshal() ([]byte, error) {
	var dst []byte
	if r.Result != nil {
		rb, err := r.Result.Marshal()
		if err != nil {
			return nil, err
		}
		dst = protowire.AppendTag(dst, 1, protowire.BytesType)
		dst = protowire.AppendBytes(dst, rb)
	}
	return dst, nil
}

func (r *DetectResponse) Unmarshal(data []byte) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return protowire.ParseError(n)
		}
		data = data[n:]
		switch num {
		case 1:
			b, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return protowire.ParseError(n)
			}
			data = data[n:]
			res := &Result{}
			if err := res.Unmarshal(b); err != nil {
				return err
			}
			r.Result = res
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return protowire.ParseError(n)
			}
			data = data[n:]
		}
	}
	return nil
}

func float32bits(f float32) uint32 {
	return math.Float32bits(f)
}

func float32frombits(b uint32) float32 {
	return math.Float32frombits(b)
}
