// This file hand-registers the two RPC services (SchemaService,
// GraphService) as a grpc.ServiceDesc, since no protoc stubs exist in
// this repository. Wire messages are plain JSON-tagged Go structs
// carried by the "json" codec registered in codec.go.
package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"github.com/vertexdb/vertexdb/internal/apierrors"
	"github.com/vertexdb/vertexdb/internal/auth"
	"github.com/vertexdb/vertexdb/internal/consistency"
	"github.com/vertexdb/vertexdb/internal/edgestore"
	"github.com/vertexdb/vertexdb/internal/graphapi"
	"github.com/vertexdb/vertexdb/internal/model"
)

// ConsistencyWire is the wire shape of a ConsistencyRequirement, carried
// on every read RPC.
type ConsistencyWire struct {
	Mode   string `json:"mode"`
	Zookie string `json:"zookie,omitempty"`
}

func parseConsistency(w ConsistencyWire) (consistency.Requirement, error) {
	switch w.Mode {
	case "", "full_consistency":
		return consistency.FullConsistency(), nil
	case "at_least_as_fresh":
		if w.Zookie == "" {
			return nil, apierrors.InvalidArgument("at_least_as_fresh requires a zookie")
		}
		return consistency.AtLeastAsFresh(w.Zookie), nil
	case "exactly_at":
		if w.Zookie == "" {
			return nil, apierrors.InvalidArgument("exactly_at requires a zookie")
		}
		return consistency.ExactlyAt(w.Zookie), nil
	case "minimize_latency":
		return consistency.MinimizeLatency(), nil
	default:
		return nil, apierrors.InvalidArgument("unrecognized consistency mode: " + w.Mode)
	}
}

// ObjectWire is the wire representation of an object plus its live metadata.
type ObjectWire struct {
	ObjectID     int64  `json:"object_id"`
	Type         string `json:"type"`
	MetadataJSON string `json:"metadata_json,omitempty"`
	Zookie       string `json:"zookie"`
}

func objectWire(obj *model.Object, meta *model.ObjectMetadataVersion, zookie string) ObjectWire {
	w := ObjectWire{ObjectID: obj.ID, Type: obj.Type, Zookie: zookie}
	if meta != nil {
		w.MetadataJSON = meta.MetadataJSON
	}
	return w
}

// EdgeWire is the wire representation of an edge plus its resolved target.
type EdgeWire struct {
	EdgeID         int64  `json:"edge_id"`
	FromType       string `json:"from_type"`
	FromID         int64  `json:"from_id"`
	Relation       string `json:"relation"`
	ToType         string `json:"to_type"`
	ToID           int64  `json:"to_id"`
	MetadataJSON   string `json:"metadata_json,omitempty"`
	TargetMetadata string `json:"target_metadata_json,omitempty"`
	Zookie         string `json:"zookie"`
}

func edgeWire(edge *model.Edge, target *edgestore.TargetObject, zookie string) EdgeWire {
	w := EdgeWire{
		EdgeID: edge.ID, FromType: edge.FromType, FromID: edge.FromID,
		Relation: edge.Relation, ToType: edge.ToType, ToID: edge.ToID, Zookie: zookie,
	}
	if target != nil && target.Metadata != nil {
		w.TargetMetadata = target.Metadata.MetadataJSON
	}
	return w
}

// -- CreateSchema --

type CreateSchemaRequest struct {
	TypeName    string `json:"type_name"`
	SchemaJSON  string `json:"schema_json"`
	Description string `json:"description,omitempty"`
}

type CreateSchemaResponse struct {
	SchemaID int64 `json:"schema_id"`
}

// -- Object RPCs --

type GetObjectRequest struct {
	ObjectID    int64           `json:"object_id"`
	Consistency ConsistencyWire `json:"consistency"`
}

type CreateObjectRequest struct {
	TypeName     string `json:"type_name"`
	MetadataJSON string `json:"metadata_json"`
}

type UpdateObjectRequest struct {
	ObjectID     int64  `json:"object_id"`
	MetadataJSON string `json:"metadata_json"`
}

type DeleteObjectRequest struct {
	ObjectID int64 `json:"object_id"`
}

type DeleteResponse struct {
	Zookie string `json:"zookie"`
}

// -- Edge RPCs --

type GetEdgeRequest struct {
	ObjectID    int64           `json:"object_id"`
	Relation    string          `json:"relation"`
	Consistency ConsistencyWire `json:"consistency"`
}

type GetEdgesRequest struct {
	ObjectID    int64           `json:"object_id"`
	Relation    string          `json:"relation"`
	Consistency ConsistencyWire `json:"consistency"`
}

type GetEdgesResponse struct {
	Targets []ObjectWireBare `json:"targets"`
	Zookie  string           `json:"zookie"`
}

// ObjectWireBare is a target object as it appears inside a GetEdgesResponse:
// identity plus visible metadata. It carries no zookie of its own since the
// response's Zookie already covers the whole one-hop read.
type ObjectWireBare struct {
	ObjectID     int64  `json:"object_id"`
	Type         string `json:"type"`
	MetadataJSON string `json:"metadata_json,omitempty"`
}

type CreateEdgeRequest struct {
	FromType     string `json:"from_type"`
	FromID       int64  `json:"from_id"`
	Relation     string `json:"relation"`
	ToType       string `json:"to_type"`
	ToID         int64  `json:"to_id"`
	MetadataJSON string `json:"metadata_json,omitempty"`
}

type UpdateEdgeRequest struct {
	EdgeID       int64  `json:"edge_id"`
	MetadataJSON string `json:"metadata_json"`
}

type DeleteEdgeRequest struct {
	EdgeID int64 `json:"edge_id"`
}

// SchemaServer implements the SchemaService RPCs.
type SchemaServer struct {
	api  *graphapi.Service
	auth *auth.Validator
}

// GraphServer implements the GraphService RPCs.
type GraphServer struct {
	api  *graphapi.Service
	auth *auth.Validator
}

// NewSchemaServer builds a SchemaServer over the composed Graph API.
func NewSchemaServer(api *graphapi.Service, validator *auth.Validator) *SchemaServer {
	return &SchemaServer{api: api, auth: validator}
}

// NewGraphServer builds a GraphServer over the composed Graph API.
func NewGraphServer(api *graphapi.Service, validator *auth.Validator) *GraphServer {
	return &GraphServer{api: api, auth: validator}
}

func userIDFromContext(ctx context.Context, v *auth.Validator) (string, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return "", apierrors.Unauthenticated("missing request metadata")
	}
	vals := md.Get("authorization")
	if len(vals) == 0 {
		return "", apierrors.Unauthenticated("missing authorization header")
	}
	return v.UserID(vals[0])
}

func (s *SchemaServer) createSchema(ctx context.Context, req *CreateSchemaRequest) (*CreateSchemaResponse, error) {
	if _, err := userIDFromContext(ctx, s.auth); err != nil {
		return nil, err
	}
	id, err := s.api.CreateSchema(ctx, req.TypeName, req.SchemaJSON, req.Description)
	if err != nil {
		return nil, err
	}
	return &CreateSchemaResponse{SchemaID: id}, nil
}

func (g *GraphServer) getObject(ctx context.Context, req *GetObjectRequest) (*ObjectWire, error) {
	if _, err := userIDFromContext(ctx, g.auth); err != nil {
		return nil, err
	}
	reqmt, err := parseConsistency(req.Consistency)
	if err != nil {
		return nil, err
	}
	obj, meta, zookie, err := g.api.GetObject(ctx, req.ObjectID, reqmt)
	if err != nil {
		return nil, err
	}
	w := objectWire(obj, meta, zookie)
	return &w, nil
}

func (g *GraphServer) createObject(ctx context.Context, req *CreateObjectRequest) (*ObjectWire, error) {
	userID, err := userIDFromContext(ctx, g.auth)
	if err != nil {
		return nil, err
	}
	obj, zookie, err := g.api.CreateObject(ctx, userID, req.TypeName, req.MetadataJSON)
	if err != nil {
		return nil, err
	}
	w := objectWire(obj, nil, zookie)
	w.MetadataJSON = req.MetadataJSON
	return &w, nil
}

func (g *GraphServer) updateObject(ctx context.Context, req *UpdateObjectRequest) (*ObjectWire, error) {
	if _, err := userIDFromContext(ctx, g.auth); err != nil {
		return nil, err
	}
	obj, zookie, err := g.api.UpdateObject(ctx, req.ObjectID, req.MetadataJSON)
	if err != nil {
		return nil, err
	}
	w := objectWire(obj, nil, zookie)
	w.MetadataJSON = req.MetadataJSON
	return &w, nil
}

func (g *GraphServer) deleteObject(ctx context.Context, req *DeleteObjectRequest) (*DeleteResponse, error) {
	if _, err := userIDFromContext(ctx, g.auth); err != nil {
		return nil, err
	}
	zookie, err := g.api.DeleteObject(ctx, req.ObjectID)
	if err != nil {
		return nil, err
	}
	return &DeleteResponse{Zookie: zookie}, nil
}

func (g *GraphServer) getEdge(ctx context.Context, req *GetEdgeRequest) (*EdgeWire, error) {
	if _, err := userIDFromContext(ctx, g.auth); err != nil {
		return nil, err
	}
	reqmt, err := parseConsistency(req.Consistency)
	if err != nil {
		return nil, err
	}
	edge, target, zookie, err := g.api.GetEdge(ctx, req.ObjectID, req.Relation, reqmt)
	if err != nil {
		return nil, err
	}
	w := edgeWire(edge, target, zookie)
	return &w, nil
}

func (g *GraphServer) getEdges(ctx context.Context, req *GetEdgesRequest) (*GetEdgesResponse, error) {
	if _, err := userIDFromContext(ctx, g.auth); err != nil {
		return nil, err
	}
	reqmt, err := parseConsistency(req.Consistency)
	if err != nil {
		return nil, err
	}
	targets, zookie, err := g.api.GetEdges(ctx, req.ObjectID, req.Relation, reqmt)
	if err != nil {
		return nil, err
	}
	out := make([]ObjectWireBare, 0, len(targets))
	for _, t := range targets {
		bw := ObjectWireBare{ObjectID: t.Object.ID, Type: t.Object.Type}
		if t.Metadata != nil {
			bw.MetadataJSON = t.Metadata.MetadataJSON
		}
		out = append(out, bw)
	}
	return &GetEdgesResponse{Targets: out, Zookie: zookie}, nil
}

func (g *GraphServer) createEdge(ctx context.Context, req *CreateEdgeRequest) (*EdgeWire, error) {
	userID, err := userIDFromContext(ctx, g.auth)
	if err != nil {
		return nil, err
	}
	edge, zookie, err := g.api.CreateEdge(ctx, userID, req.FromType, req.FromID, req.Relation, req.ToType, req.ToID, req.MetadataJSON)
	if err != nil {
		return nil, err
	}
	w := edgeWire(edge, nil, zookie)
	w.MetadataJSON = req.MetadataJSON
	return &w, nil
}

func (g *GraphServer) updateEdge(ctx context.Context, req *UpdateEdgeRequest) (*EdgeWire, error) {
	if _, err := userIDFromContext(ctx, g.auth); err != nil {
		return nil, err
	}
	edge, zookie, err := g.api.UpdateEdge(ctx, req.EdgeID, req.MetadataJSON)
	if err != nil {
		return nil, err
	}
	w := edgeWire(edge, nil, zookie)
	w.MetadataJSON = req.MetadataJSON
	return &w, nil
}

func (g *GraphServer) deleteEdge(ctx context.Context, req *DeleteEdgeRequest) (*DeleteResponse, error) {
	if _, err := userIDFromContext(ctx, g.auth); err != nil {
		return nil, err
	}
	zookie, err := g.api.DeleteEdge(ctx, req.EdgeID)
	if err != nil {
		return nil, err
	}
	return &DeleteResponse{Zookie: zookie}, nil
}

func decodeAndHandle[Req any, Resp any](ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor, info *grpc.UnaryServerInfo, fn func(context.Context, *Req) (*Resp, error)) (interface{}, error) {
	req := new(Req)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return fn(ctx, req)
	}
	handler := func(ctx context.Context, r interface{}) (interface{}, error) {
		return fn(ctx, r.(*Req))
	}
	return interceptor(ctx, req, info, handler)
}

// SchemaServiceDesc is the hand-registered ServiceDesc for the schema RPCs.
var SchemaServiceDesc = grpc.ServiceDesc{
	ServiceName: "vertexdb.SchemaService",
	HandlerType: (*SchemaServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "CreateSchema",
			Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
				info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/vertexdb.SchemaService/CreateSchema"}
				return decodeAndHandle(ctx, dec, interceptor, info, srv.(*SchemaServer).createSchema)
			},
		},
	},
}

// GraphServiceDesc is the hand-registered ServiceDesc for the graph RPCs.
var GraphServiceDesc = grpc.ServiceDesc{
	ServiceName: "vertexdb.GraphService",
	HandlerType: (*GraphServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "GetObject",
			Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
				info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/vertexdb.GraphService/GetObject"}
				return decodeAndHandle(ctx, dec, interceptor, info, srv.(*GraphServer).getObject)
			},
		},
		{
			MethodName: "CreateObject",
			Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
				info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/vertexdb.GraphService/CreateObject"}
				return decodeAndHandle(ctx, dec, interceptor, info, srv.(*GraphServer).createObject)
			},
		},
		{
			MethodName: "UpdateObject",
			Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
				info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/vertexdb.GraphService/UpdateObject"}
				return decodeAndHandle(ctx, dec, interceptor, info, srv.(*GraphServer).updateObject)
			},
		},
		{
			MethodName: "DeleteObject",
			Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
				info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/vertexdb.GraphService/DeleteObject"}
				return decodeAndHandle(ctx, dec, interceptor, info, srv.(*GraphServer).deleteObject)
			},
		},
		{
			MethodName: "GetEdge",
			Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
				info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/vertexdb.GraphService/GetEdge"}
				return decodeAndHandle(ctx, dec, interceptor, info, srv.(*GraphServer).getEdge)
			},
		},
		{
			MethodName: "GetEdges",
			Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
				info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/vertexdb.GraphService/GetEdges"}
				return decodeAndHandle(ctx, dec, interceptor, info, srv.(*GraphServer).getEdges)
			},
		},
		{
			MethodName: "CreateEdge",
			Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
				info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/vertexdb.GraphService/CreateEdge"}
				return decodeAndHandle(ctx, dec, interceptor, info, srv.(*GraphServer).createEdge)
			},
		},
		{
			MethodName: "UpdateEdge",
			Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
				info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/vertexdb.GraphService/UpdateEdge"}
				return decodeAndHandle(ctx, dec, interceptor, info, srv.(*GraphServer).updateEdge)
			},
		},
		{
			MethodName: "DeleteEdge",
			Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
				info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/vertexdb.GraphService/DeleteEdge"}
				return decodeAndHandle(ctx, dec, interceptor, info, srv.(*GraphServer).deleteEdge)
			},
		},
	},
}
