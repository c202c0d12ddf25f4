package ntpb

import (
	"context"

	grpc "google.golang.org/grpc"
)

// EntryAdminClient is the client API for the EntryAdmin service
type EntryAdminClient interface {
	ListEntries(ctx context.Context, in *ListEntriesRequest, opts ...grpc.CallOption) (*ListEntriesReply, error)
	PutEntry(ctx context.Context, in *PutEntryRequest, opts ...grpc.CallOption) (*PutEntryReply, error)
	DeleteEntry(ctx context.Context, in *DeleteEntryRequest, opts ...grpc.CallOption) (*DeleteEntryReply, error)
	CallProcedure(ctx context.Context, in *CallProcedureRequest, opts ...grpc.CallOption) (*CallProcedureReply, error)
}

type entryAdminClient struct {
	cc *grpc.ClientConn
}

func NewEntryAdminClient(cc *grpc.ClientConn) EntryAdminClient {
	return &entryAdminClient{cc}
}

func (c *entryAdminClient) ListEntries(ctx context.Context, in *ListEntriesRequest, opts ...grpc.CallOption) (*ListEntriesReply, error) {
	out := new(ListEntriesReply)
	if err := c.cc.Invoke(ctx, "/ntpb.EntryAdmin/ListEntries", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *entryAdminClient) PutEntry(ctx context.Context, in *PutEntryRequest, opts ...grpc.CallOption) (*PutEntryReply, error) {
	out := new(PutEntryReply)
	if err := c.cc.Invoke(ctx, "/ntpb.EntryAdmin/PutEntry", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *entryAdminClient) DeleteEntry(ctx context.Context, in *DeleteEntryRequest, opts ...grpc.CallOption) (*DeleteEntryReply, error) {
	out := new(DeleteEntryReply)
	if err := c.cc.Invoke(ctx, "/ntpb.EntryAdmin/DeleteEntry", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *entryAdminClient) CallProcedure(ctx context.Context, in *CallProcedureRequest, opts ...grpc.CallOption) (*CallProcedureReply, error) {
	out := new(CallProcedureReply)
	if err := c.cc.Invoke(ctx, "/ntpb.EntryAdmin/CallProcedure", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// EntryAdminServer is the server API for the EntryAdmin service
type EntryAdminServer interface {
	ListEntries(context.Context, *ListEntriesRequest) (*ListEntriesReply, error)
	PutEntry(context.Context, *PutEntryRequest) (*PutEntryReply, error)
	DeleteEntry(context.Context, *DeleteEntryRequest) (*DeleteEntryReply, error)
	CallProcedure(context.Context, *CallProcedureRequest) (*CallProcedureReply, error)
}

func RegisterEntryAdminServer(s *grpc.Server, srv EntryAdminServer) {
	s.RegisterService(&_EntryAdmin_serviceDesc, srv)
}

func _EntryAdmin_ListEntries_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(ListEntriesRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(EntryAdminServer).ListEntries(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: "/ntpb.EntryAdmin/ListEntries",
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(EntryAdminServer).ListEntries(ctx, req.(*ListEntriesRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _EntryAdmin_PutEntry_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(PutEntryRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(EntryAdminServer).PutEntry(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: "/ntpb.EntryAdmin/PutEntry",
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(EntryAdminServer).PutEntry(ctx, req.(*PutEntryRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _EntryAdmin_DeleteEntry_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(DeleteEntryRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(EntryAdminServer).DeleteEntry(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: "/ntpb.EntryAdmin/DeleteEntry",
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(EntryAdminServer).DeleteEntry(ctx, req.(*DeleteEntryRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _EntryAdmin_CallProcedure_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(CallProcedureRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(EntryAdminServer).CallProcedure(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: "/ntpb.EntryAdmin/CallProcedure",
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(EntryAdminServer).CallProcedure(ctx, req.(*CallProcedureRequest))
	}
	return interceptor(ctx, in, info, handler)
}

var _EntryAdmin_serviceDesc = grpc.ServiceDesc{
	ServiceName: "ntpb.EntryAdmin",
	HandlerType: (*EntryAdminServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "ListEntries",
			Handler:    _EntryAdmin_ListEntries_Handler,
		},
		{
			MethodName: "PutEntry",
			Handler:    _EntryAdmin_PutEntry_Handler,
		},
		{
			MethodName: "DeleteEntry",
			Handler:    _EntryAdmin_DeleteEntry_Handler,
		},
		{
			MethodName: "CallProcedure",
			Handler:    _EntryAdmin_CallProcedure_Handler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "admin.proto",
}
