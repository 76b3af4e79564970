package server

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// JobService messages are google.protobuf.Struct values so the service needs
// no generated code; field names are documented on each handler.
const (
	JobServiceName = "docmerge.v1.JobService"

	JobService_Submit_FullMethodName = "/docmerge.v1.JobService/Submit"
	JobService_Status_FullMethodName = "/docmerge.v1.JobService/Status"
	JobService_Stats_FullMethodName  = "/docmerge.v1.JobService/Stats"
)

// JobServiceServer is the server API for the job service.
type JobServiceServer interface {
	Submit(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Status(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Stats(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

func RegisterJobServiceServer(s grpc.ServiceRegistrar, srv JobServiceServer) {
	s.RegisterService(&JobService_ServiceDesc, srv)
}

func unaryHandler(fullMethod string, call func(JobServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(JobServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(JobServiceServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var JobService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: JobServiceName,
	HandlerType: (*JobServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Submit",
			Handler:    unaryHandler(JobService_Submit_FullMethodName, JobServiceServer.Submit),
		},
		{
			MethodName: "Status",
			Handler:    unaryHandler(JobService_Status_FullMethodName, JobServiceServer.Status),
		},
		{
			MethodName: "Stats",
			Handler:    unaryHandler(JobService_Stats_FullMethodName, JobServiceServer.Stats),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "docmerge/v1/jobs.proto",
}

// JobServiceClient is the client API for the job service.
type JobServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewJobServiceClient(cc grpc.ClientConnInterface) *JobServiceClient {
	return &JobServiceClient{cc: cc}
}

func (c *JobServiceClient) invoke(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *JobServiceClient) Submit(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, JobService_Submit_FullMethodName, in, opts...)
}

func (c *JobServiceClient) Status(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, JobService_Status_FullMethodName, in, opts...)
}

func (c *JobServiceClient) Stats(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, JobService_Stats_FullMethodName, in, opts...)
}
