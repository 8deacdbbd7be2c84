package visionpb

import (
	"context"

	"google.golang.org/grpc"
)

const (
	serviceName           = "aivd.vision.Vision"
	streamDetectMethod    = "StreamDetect"
	detectMethod          = "Detect"
	fullStreamDetectMethod = "/" + serviceName + "/" + streamDetectMethod
	fullDetectMethod       = "/" + serviceName + "/" + detectMethod
)

// callOpts forces every call on this service to use the visionwire codec
// instead of gRPC's default proto-message codec.
var callOpts = []grpc.CallOption{grpc.CallContentSubtype(codecName)}

// VisionClient is the client-side API for the Vision service: the
// bidirectional StreamDetect RPC (spec §6) plus the unary Detect fallback
// (spec §3.2).
type VisionClient interface {
	StreamDetect(ctx context.Context, opts ...grpc.CallOption) (StreamDetectClient, error)
	Detect(ctx context.Context, in *DetectRequest, opts ...grpc.CallOption) (*DetectResponse, error)
}

// StreamDetectClient is the client's view of the bidirectional stream: send
// Frames, receive Results, matching the protoc-gen-go-grpc generated shape.
type StreamDetectClient interface {
	Send(*Frame) error
	Recv() (*Result, error)
	CloseSend() error
	grpc.ClientStream
}

type visionClient struct {
	cc grpc.ClientConnInterface
}

// NewVisionClient returns a VisionClient bound to cc.
func NewVisionClient(cc grpc.ClientConnInterface) VisionClient {
	return &visionClient{cc: cc}
}

func (c *visionClient) StreamDetect(ctx context.Context, opts ...grpc.CallOption) (StreamDetectClient, error) {
	opts = append(append([]grpc.CallOption{}, callOpts...), opts...)
	stream, err := c.cc.NewStream(ctx, &streamDetectStreamDesc, fullStreamDetectMethod, opts...)
	if err != nil {
		return nil, err
	}
	return &streamDetectClientStream{stream}, nil
}

type streamDetectClientStream struct {
	grpc.ClientStream
}

func (s *streamDetectClientStream) Send(f *Frame) error {
	return s.ClientStream.SendMsg(f)
}

func (s *streamDetectClientStream) Recv() (*Result, error) {
	res := new(Result)
	if err := s.ClientStream.RecvMsg(res); err != nil {
		return nil, err
	}
	return res, nil
}

func (c *visionClient) Detect(ctx context.Context, in *DetectRequest, opts ...grpc.CallOption) (*DetectResponse, error) {
	opts = append(append([]grpc.CallOption{}, callOpts...), opts...)
	out := new(DetectResponse)
	if err := c.cc.Invoke(ctx, fullDetectMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// VisionServer is the server-side API a vision backend implements.
type VisionServer interface {
	StreamDetect(StreamDetectServer) error
	Detect(context.Context, *DetectRequest) (*DetectResponse, error)
}

// StreamDetectServer is the server's view of the bidirectional stream.
type StreamDetectServer interface {
	Send(*Result) error
	Recv() (*Frame, error)
	grpc.ServerStream
}

type streamDetectServerStream struct {
	grpc.ServerStream
}

func (s *streamDetectServerStream) Send(r *Result) error {
	return s.ServerStream.SendMsg(r)
}

func (s *streamDetectServerStream) Recv() (*Frame, error) {
	f := new(Frame)
	if err := s.ServerStream.RecvMsg(f); err != nil {
		return nil, err
	}
	return f, nil
}

func streamDetectHandler(srv any, stream grpc.ServerStream) error {
	return srv.(VisionServer).StreamDetect(&streamDetectServerStream{stream})
}

func detectHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(DetectRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(VisionServer).Detect(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullDetectMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(VisionServer).Detect(ctx, req.(*DetectRequest))
	}
	return interceptor(ctx, in, info, handler)
}

var streamDetectStreamDesc = grpc.StreamDesc{
	StreamName:    streamDetectMethod,
	ServerStreams: true,
	ClientStreams: true,
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*VisionServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: detectMethod, Handler: detectHandler},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    streamDetectMethod,
			Handler:       streamDetectHandler,
			ServerStreams: true,
			ClientStreams: true,
		},
	},
}

// RegisterVisionServer registers srv with s, mirroring protoc-gen-go-grpc's
// generated registration function.
func RegisterVisionServer(s grpc.ServiceRegistrar, srv VisionServer) {
	s.RegisterService(&serviceDesc, srv)
}
