package grpcserver

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// CellService speaks only well-known protobuf types, so the descriptor is
// written out here instead of generated:
//
//	service CellService {
//	  rpc Get(google.protobuf.Empty) returns (google.protobuf.Struct);
//	  rpc Publish(google.protobuf.Struct) returns (google.protobuf.Struct);
//	  rpc Clear(google.protobuf.Empty) returns (google.protobuf.Struct);
//	}
const (
	ServiceName = "rcucell.v1.CellService"

	getMethod     = "/" + ServiceName + "/Get"
	publishMethod = "/" + ServiceName + "/Publish"
	clearMethod   = "/" + ServiceName + "/Clear"
)

// CellServiceServer is the server API for CellService.
type CellServiceServer interface {
	Get(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	Publish(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Clear(context.Context, *emptypb.Empty) (*structpb.Struct, error)
}

func RegisterCellServiceServer(s grpc.ServiceRegistrar, srv CellServiceServer) {
	s.RegisterService(&CellServiceDesc, srv)
}

var CellServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*CellServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Get", Handler: getHandler},
		{MethodName: "Publish", Handler: publishHandler},
		{MethodName: "Clear", Handler: clearHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "rcucell/v1/cell.proto",
}

func getHandler(
	srv any,
	ctx context.Context,
	dec func(any) error,
	interceptor grpc.UnaryServerInterceptor,
) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CellServiceServer).Get(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: getMethod}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(CellServiceServer).Get(ctx, req.(*emptypb.Empty))
	})
}

func publishHandler(
	srv any,
	ctx context.Context,
	dec func(any) error,
	interceptor grpc.UnaryServerInterceptor,
) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CellServiceServer).Publish(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: publishMethod}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(CellServiceServer).Publish(ctx, req.(*structpb.Struct))
	})
}

func clearHandler(
	srv any,
	ctx context.Context,
	dec func(any) error,
	interceptor grpc.UnaryServerInterceptor,
) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CellServiceServer).Clear(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: clearMethod}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(CellServiceServer).Clear(ctx, req.(*emptypb.Empty))
	})
}

// -------------------- Client --------------------

// CellServiceClient is the client API for CellService.
type CellServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewCellServiceClient(cc grpc.ClientConnInterface) *CellServiceClient {
	return &CellServiceClient{cc: cc}
}

func (c *CellServiceClient) Get(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, getMethod, &emptypb.Empty{}, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *CellServiceClient) Publish(ctx context.Context, body *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, publishMethod, body, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *CellServiceClient) Clear(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, clearMethod, &emptypb.Empty{}, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
