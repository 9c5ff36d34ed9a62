package grpcserver

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "jobmate.marketplace.v1.Marketplace"

// MarketplaceServer is the server API. Every method takes and returns a
// google.protobuf.Struct, so the service needs no generated code.
type MarketplaceServer interface {
	GetFeed(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SetFilter(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ClearFilters(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Refresh(context.Context, *structpb.Struct) (*structpb.Struct, error)
	UpdateQuery(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetPost(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Pay(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Submit(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type call func(MarketplaceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unary(name string, fn call) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			s := srv.(MarketplaceServer)
			if interceptor == nil {
				return fn(s, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + name}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return fn(s, ctx, req.(*structpb.Struct))
			})
		},
	}
}

// ServiceDesc describes the Marketplace service for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*MarketplaceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("GetFeed", MarketplaceServer.GetFeed),
		unary("SetFilter", MarketplaceServer.SetFilter),
		unary("ClearFilters", MarketplaceServer.ClearFilters),
		unary("Refresh", MarketplaceServer.Refresh),
		unary("UpdateQuery", MarketplaceServer.UpdateQuery),
		unary("GetPost", MarketplaceServer.GetPost),
		unary("Pay", MarketplaceServer.Pay),
		unary("Submit", MarketplaceServer.Submit),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "jobmate/marketplace/v1/marketplace.proto",
}

// Register attaches srv to s.
func Register(s *grpc.Server, srv MarketplaceServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// Client is a thin caller for the Marketplace service.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps an established connection.
func NewClient(cc grpc.ClientConnInterface) *Client { return &Client{cc: cc} }

// Call invokes method with in and returns the response struct.
func (c *Client) Call(ctx context.Context, method string, in map[string]any) (*structpb.Struct, error) {
	req, err := structpb.NewStruct(in)
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, req, out); err != nil {
		return nil, err
	}
	return out, nil
}
