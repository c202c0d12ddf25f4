// Package ntpb holds the messages and the service of the admin
// RPC API as described by admin.proto. The types follow the shape
// protoc-gen-go gives them so that the protobuf runtime can encode
// them from their struct tags.
package ntpb

import (
	proto "github.com/golang/protobuf/proto"
)

type Entry struct {
	Name   string `protobuf:"bytes,1,opt,name=name,proto3" json:"name,omitempty"`
	Id     uint32 `protobuf:"varint,2,opt,name=id,proto3" json:"id,omitempty"`
	Seqnum uint32 `protobuf:"varint,3,opt,name=seqnum,proto3" json:"seqnum,omitempty"`
	Flags  uint32 `protobuf:"varint,4,opt,name=flags,proto3" json:"flags,omitempty"`
	Type   uint32 `protobuf:"varint,5,opt,name=type,proto3" json:"type,omitempty"`
	Value  []byte `protobuf:"bytes,6,opt,name=value,proto3" json:"value,omitempty"`
}

func (m *Entry) Reset()         { *m = Entry{} }
func (m *Entry) String() string { return proto.CompactTextString(m) }
func (*Entry) ProtoMessage()    {}

func (m *Entry) GetName() string {
	if m != nil {
		return m.Name
	}
	return ""
}

func (m *Entry) GetId() uint32 {
	if m != nil {
		return m.Id
	}
	return 0
}

func (m *Entry) GetSeqnum() uint32 {
	if m != nil {
		return m.Seqnum
	}
	return 0
}

func (m *Entry) GetFlags() uint32 {
	if m != nil {
		return m.Flags
	}
	return 0
}

func (m *Entry) GetType() uint32 {
	if m != nil {
		return m.Type
	}
	return 0
}

func (m *Entry) GetValue() []byte {
	if m != nil {
		return m.Value
	}
	return nil
}

type ListEntriesRequest struct {
	Prefix string `protobuf:"bytes,1,opt,name=prefix,proto3" json:"prefix,omitempty"`
}

func (m *ListEntriesRequest) Reset()         { *m = ListEntriesRequest{} }
func (m *ListEntriesRequest) String() string { return proto.CompactTextString(m) }
func (*ListEntriesRequest) ProtoMessage()    {}

func (m *ListEntriesRequest) GetPrefix() string {
	if m != nil {
		return m.Prefix
	}
	return ""
}

type ListEntriesReply struct {
	Entries []*Entry `protobuf:"bytes,1,rep,name=entries,proto3" json:"entries,omitempty"`
}

func (m *ListEntriesReply) Reset()         { *m = ListEntriesReply{} }
func (m *ListEntriesReply) String() string { return proto.CompactTextString(m) }
func (*ListEntriesReply) ProtoMessage()    {}

func (m *ListEntriesReply) GetEntries() []*Entry {
	if m != nil {
		return m.Entries
	}
	return nil
}

type PutEntryRequest struct {
	Entry *Entry `protobuf:"bytes,1,opt,name=entry,proto3" json:"entry,omitempty"`
}

func (m *PutEntryRequest) Reset()         { *m = PutEntryRequest{} }
func (m *PutEntryRequest) String() string { return proto.CompactTextString(m) }
func (*PutEntryRequest) ProtoMessage()    {}

func (m *PutEntryRequest) GetEntry() *Entry {
	if m != nil {
		return m.Entry
	}
	return nil
}

type PutEntryReply struct {
	Id      uint32 `protobuf:"varint,1,opt,name=id,proto3" json:"id,omitempty"`
	Created bool   `protobuf:"varint,2,opt,name=created,proto3" json:"created,omitempty"`
}

func (m *PutEntryReply) Reset()         { *m = PutEntryReply{} }
func (m *PutEntryReply) String() string { return proto.CompactTextString(m) }
func (*PutEntryReply) ProtoMessage()    {}

func (m *PutEntryReply) GetId() uint32 {
	if m != nil {
		return m.Id
	}
	return 0
}

func (m *PutEntryReply) GetCreated() bool {
	if m != nil {
		return m.Created
	}
	return false
}

type DeleteEntryRequest struct {
	Id  uint32 `protobuf:"varint,1,opt,name=id,proto3" json:"id,omitempty"`
	All bool   `protobuf:"varint,2,opt,name=all,proto3" json:"all,omitempty"`
}

func (m *DeleteEntryRequest) Reset()         { *m = DeleteEntryRequest{} }
func (m *DeleteEntryRequest) String() string { return proto.CompactTextString(m) }
func (*DeleteEntryRequest) ProtoMessage()    {}

func (m *DeleteEntryRequest) GetId() uint32 {
	if m != nil {
		return m.Id
	}
	return 0
}

func (m *DeleteEntryRequest) GetAll() bool {
	if m != nil {
		return m.All
	}
	return false
}

type DeleteEntryReply struct{}

func (m *DeleteEntryReply) Reset()         { *m = DeleteEntryReply{} }
func (m *DeleteEntryReply) String() string { return proto.CompactTextString(m) }
func (*DeleteEntryReply) ProtoMessage()    {}

type CallProcedureRequest struct {
	Id        uint32 `protobuf:"varint,1,opt,name=id,proto3" json:"id,omitempty"`
	Parameter []byte `protobuf:"bytes,2,opt,name=parameter,proto3" json:"parameter,omitempty"`
}

func (m *CallProcedureRequest) Reset()         { *m = CallProcedureRequest{} }
func (m *CallProcedureRequest) String() string { return proto.CompactTextString(m) }
func (*CallProcedureRequest) ProtoMessage()    {}

func (m *CallProcedureRequest) GetId() uint32 {
	if m != nil {
		return m.Id
	}
	return 0
}

func (m *CallProcedureRequest) GetParameter() []byte {
	if m != nil {
		return m.Parameter
	}
	return nil
}

type CallProcedureReply struct {
	Result []byte `protobuf:"bytes,1,opt,name=result,proto3" json:"result,omitempty"`
}

func (m *CallProcedureReply) Reset()         { *m = CallProcedureReply{} }
func (m *CallProcedureReply) String() string { return proto.CompactTextString(m) }
func (*CallProcedureReply) ProtoMessage()    {}

func (m *CallProcedureReply) GetResult() []byte {
	if m != nil {
		return m.Result
	}
	return nil
}

func init() {
	proto.RegisterType((*Entry)(nil), "ntpb.Entry")
	proto.RegisterType((*ListEntriesRequest)(nil), "ntpb.ListEntriesRequest")
	proto.RegisterType((*ListEntriesReply)(nil), "ntpb.ListEntriesReply")
	proto.RegisterType((*PutEntryRequest)(nil), "ntpb.PutEntryRequest")
	proto.RegisterType((*PutEntryReply)(nil), "ntpb.PutEntryReply")
	proto.RegisterType((*DeleteEntryRequest)(nil), "ntpb.DeleteEntryRequest")
	proto.RegisterType((*DeleteEntryReply)(nil), "ntpb.DeleteEntryReply")
	proto.RegisterType((*CallProcedureRequest)(nil), "ntpb.CallProcedureRequest")
	proto.RegisterType((*CallProcedureReply)(nil), "ntpb.CallProcedureReply")
}
