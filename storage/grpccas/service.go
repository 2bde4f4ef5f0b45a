// Package grpccas serves and consumes an evidence archive over gRPC.
//
// The service uses protobuf well-known wrapper types, so no generated code
// or protoc toolchain is needed:
//
//	service Archive {
//	  rpc Put(google.protobuf.BytesValue) returns (google.protobuf.StringValue);
//	  rpc Get(google.protobuf.StringValue) returns (google.protobuf.BytesValue);
//	  rpc Has(google.protobuf.StringValue) returns (google.protobuf.BoolValue);
//	}
package grpccas

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const serviceName = "trustchain.archive.v1.Archive"

// ArchiveServer is the server API of the archive service.
type ArchiveServer interface {
	Put(context.Context, *wrapperspb.BytesValue) (*wrapperspb.StringValue, error)
	Get(context.Context, *wrapperspb.StringValue) (*wrapperspb.BytesValue, error)
	Has(context.Context, *wrapperspb.StringValue) (*wrapperspb.BoolValue, error)
}

// UnimplementedArchiveServer can be embedded for forward compatibility.
type UnimplementedArchiveServer struct{}

func (UnimplementedArchiveServer) Put(context.Context, *wrapperspb.BytesValue) (*wrapperspb.StringValue, error) {
	return nil, status.Error(codes.Unimplemented, "method Put not implemented")
}

func (UnimplementedArchiveServer) Get(context.Context, *wrapperspb.StringValue) (*wrapperspb.BytesValue, error) {
	return nil, status.Error(codes.Unimplemented, "method Get not implemented")
}

func (UnimplementedArchiveServer) Has(context.Context, *wrapperspb.StringValue) (*wrapperspb.BoolValue, error) {
	return nil, status.Error(codes.Unimplemented, "method Has not implemented")
}

// RegisterArchiveServer registers srv on s.
func RegisterArchiveServer(s grpc.ServiceRegistrar, srv ArchiveServer) {
	s.RegisterService(&Archive_ServiceDesc, srv)
}

// ArchiveClient is the client API of the archive service.
type ArchiveClient interface {
	Put(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*wrapperspb.StringValue, error)
	Get(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*wrapperspb.BytesValue, error)
	Has(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*wrapperspb.BoolValue, error)
}

type archiveClient struct{ cc grpc.ClientConnInterface }

func NewArchiveClient(cc grpc.ClientConnInterface) ArchiveClient { return &archiveClient{cc: cc} }

func (c *archiveClient) Put(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*wrapperspb.StringValue, error) {
	out := new(wrapperspb.StringValue)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/Put", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *archiveClient) Get(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*wrapperspb.BytesValue, error) {
	out := new(wrapperspb.BytesValue)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/Get", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *archiveClient) Has(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*wrapperspb.BoolValue, error) {
	out := new(wrapperspb.BoolValue)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/Has", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func unaryHandler[Req any, Resp any](method string, newReq func() *Req, call func(ArchiveServer, context.Context, *Req) (Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
			in := newReq()
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(ArchiveServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/" + method}
			handler := func(ctx context.Context, req interface{}) (interface{}, error) {
				return call(srv.(ArchiveServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// Archive_ServiceDesc is the grpc.ServiceDesc of the archive service.
var Archive_ServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*ArchiveServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryHandler("Put", func() *wrapperspb.BytesValue { return new(wrapperspb.BytesValue) },
			func(s ArchiveServer, ctx context.Context, in *wrapperspb.BytesValue) (*wrapperspb.StringValue, error) {
				return s.Put(ctx, in)
			}),
		unaryHandler("Get", func() *wrapperspb.StringValue { return new(wrapperspb.StringValue) },
			func(s ArchiveServer, ctx context.Context, in *wrapperspb.StringValue) (*wrapperspb.BytesValue, error) {
				return s.Get(ctx, in)
			}),
		unaryHandler("Has", func() *wrapperspb.StringValue { return new(wrapperspb.StringValue) },
			func(s ArchiveServer, ctx context.Context, in *wrapperspb.StringValue) (*wrapperspb.BoolValue, error) {
				return s.Has(ctx, in)
			}),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "archive.proto",
}
