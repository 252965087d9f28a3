package grpcapi

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName — полное имя gRPC-сервиса отслеживания заказов.
const ServiceName = "yummybites.v1.OrderTracking"

// SubscribedHeader приходит в заголовках WatchOrder, когда подписка уже активна.
const SubscribedHeader = "x-yb-subscribed"

const (
	getOrderMethod   = "/" + ServiceName + "/GetOrder"
	watchOrderMethod = "/" + ServiceName + "/WatchOrder"
)

// OrderTrackingServer реализуется сервером OrderTracking.
// Сообщения построены на well-known типах protobuf: запрос несёт id заказа, ответы приходят JSON-подобными структурами.
type OrderTrackingServer interface {
	GetOrder(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	WatchOrder(*wrapperspb.StringValue, grpc.ServerStreamingServer[structpb.Struct]) error
}

// OrderTrackingServiceDesc описывает сервис для grpc.Server.RegisterService.
var OrderTrackingServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*OrderTrackingServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetOrder", Handler: getOrderHandler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "WatchOrder", Handler: watchOrderHandler, ServerStreams: true},
	},
	Metadata: "yummybites/v1/order_tracking.proto",
}

// RegisterOrderTrackingServer регистрирует реализацию на сервере.
func RegisterOrderTrackingServer(s grpc.ServiceRegistrar, srv OrderTrackingServer) {
	s.RegisterService(&OrderTrackingServiceDesc, srv)
}

func getOrderHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(OrderTrackingServer).GetOrder(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: getOrderMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(OrderTrackingServer).GetOrder(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

func watchOrderHandler(srv any, stream grpc.ServerStream) error {
	in := new(wrapperspb.StringValue)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(OrderTrackingServer).WatchOrder(in, &grpc.GenericServerStream[wrapperspb.StringValue, structpb.Struct]{ServerStream: stream})
}

// Client вызывает OrderTracking.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient оборачивает соединение.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// GetOrder запрашивает текущее состояние заказа.
func (c *Client) GetOrder(ctx context.Context, orderID string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, getOrderMethod, wrapperspb.String(orderID), out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// WatchOrder открывает поток событий смены статуса.
func (c *Client) WatchOrder(ctx context.Context, orderID string, opts ...grpc.CallOption) (grpc.ServerStreamingClient[structpb.Struct], error) {
	stream, err := c.cc.NewStream(ctx, &OrderTrackingServiceDesc.Streams[0], watchOrderMethod, opts...)
	if err != nil {
		return nil, err
	}
	x := &grpc.GenericClientStream[wrapperspb.StringValue, structpb.Struct]{ClientStream: stream}
	if err := x.ClientStream.SendMsg(wrapperspb.String(orderID)); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}
