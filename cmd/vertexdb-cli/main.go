// Package main is a thin flag-driven client for exercising a running
// vertexdb server over its JSON-codec gRPC transport. It favors a flat
// flag set over a subcommand framework, mirroring the storage node's
// own minimal cmd style.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"

	transportgrpc "github.com/vertexdb/vertexdb/internal/transport/grpc"
)

func main() {
	var (
		addr        = flag.String("addr", "localhost:8980", "vertexdb server address")
		token       = flag.String("token", os.Getenv("VERTEXDB_TOKEN"), "bearer token")
		op          = flag.String("op", "", "operation: create-schema, get-object, create-object, update-object, delete-object, get-edge, get-edges, create-edge, update-edge, delete-edge")
		typeName    = flag.String("type", "", "object/schema type name")
		schemaJSON  = flag.String("schema", "", "JSON Schema document (create-schema)")
		description = flag.String("description", "", "schema description (create-schema)")
		objectID    = flag.Int64("object-id", 0, "object id")
		metadata_   = flag.String("metadata", "", "object/edge metadata JSON")
		relation    = flag.String("relation", "", "edge relation name")
		fromType    = flag.String("from-type", "", "edge from_type")
		fromID      = flag.Int64("from-id", 0, "edge from_id")
		toType      = flag.String("to-type", "", "edge to_type")
		toID        = flag.Int64("to-id", 0, "edge to_id")
		edgeID      = flag.Int64("edge-id", 0, "edge id")
		consistency = flag.String("consistency", "full_consistency", "full_consistency, at_least_as_fresh, exactly_at, minimize_latency")
		zookieFlag  = flag.String("zookie", "", "zookie token (at_least_as_fresh, exactly_at)")
		timeout     = flag.Duration("timeout", 10*time.Second, "request timeout")
	)
	flag.Parse()

	if *op == "" {
		fmt.Fprintln(os.Stderr, "missing required -op flag")
		flag.Usage()
		os.Exit(2)
	}

	conn, err := grpc.NewClient(*addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype("json")),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "dial %s: %v\n", *addr, err)
		os.Exit(1)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	if *token != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+*token)
	}

	consistencyWire := transportgrpc.ConsistencyWire{Mode: *consistency, Zookie: *zookieFlag}

	var (
		resp interface{}
		rerr error
	)

	switch *op {
	case "create-schema":
		req := &transportgrpc.CreateSchemaRequest{TypeName: *typeName, SchemaJSON: *schemaJSON, Description: *description}
		out := new(transportgrpc.CreateSchemaResponse)
		rerr = conn.Invoke(ctx, "/vertexdb.SchemaService/CreateSchema", req, out)
		resp = out

	case "get-object":
		req := &transportgrpc.GetObjectRequest{ObjectID: *objectID, Consistency: consistencyWire}
		out := new(transportgrpc.ObjectWire)
		rerr = conn.Invoke(ctx, "/vertexdb.GraphService/GetObject", req, out)
		resp = out

	case "create-object":
		req := &transportgrpc.CreateObjectRequest{TypeName: *typeName, MetadataJSON: *metadata_}
		out := new(transportgrpc.ObjectWire)
		rerr = conn.Invoke(ctx, "/vertexdb.GraphService/CreateObject", req, out)
		resp = out

	case "update-object":
		req := &transportgrpc.UpdateObjectRequest{ObjectID: *objectID, MetadataJSON: *metadata_}
		out := new(transportgrpc.ObjectWire)
		rerr = conn.Invoke(ctx, "/vertexdb.GraphService/UpdateObject", req, out)
		resp = out

	case "delete-object":
		req := &transportgrpc.DeleteObjectRequest{ObjectID: *objectID}
		out := new(transportgrpc.DeleteResponse)
		rerr = conn.Invoke(ctx, "/vertexdb.GraphService/DeleteObject", req, out)
		resp = out

	case "get-edge":
		req := &transportgrpc.GetEdgeRequest{ObjectID: *objectID, Relation: *relation, Consistency: consistencyWire}
		out := new(transportgrpc.EdgeWire)
		rerr = conn.Invoke(ctx, "/vertexdb.GraphService/GetEdge", req, out)
		resp = out

	case "get-edges":
		req := &transportgrpc.GetEdgesRequest{ObjectID: *objectID, Relation: *relation, Consistency: consistencyWire}
		out := new(transportgrpc.GetEdgesResponse)
		rerr = conn.Invoke(ctx, "/vertexdb.GraphService/GetEdges", req, out)
		resp = out

	case "create-edge":
		req := &transportgrpc.CreateEdgeRequest{
			FromType: *fromType, FromID: *fromID, Relation: *relation,
			ToType: *toType, ToID: *toID, MetadataJSON: *metadata_,
		}
		out := new(transportgrpc.EdgeWire)
		rerr = conn.Invoke(ctx, "/vertexdb.GraphService/CreateEdge", req, out)
		resp = out

	case "update-edge":
		req := &transportgrpc.UpdateEdgeRequest{EdgeID: *edgeID, MetadataJSON: *metadata_}
		out := new(transportgrpc.EdgeWire)
		rerr = conn.Invoke(ctx, "/vertexdb.GraphService/UpdateEdge", req, out)
		resp = out

	case "delete-edge":
		req := &transportgrpc.DeleteEdgeRequest{EdgeID: *edgeID}
		out := new(transportgrpc.DeleteResponse)
		rerr = conn.Invoke(ctx, "/vertexdb.GraphService/DeleteEdge", req, out)
		resp = out

	default:
		fmt.Fprintf(os.Stderr, "unknown -op %q\n", *op)
		os.Exit(2)
	}

	if rerr != nil {
		fmt.Fprintf(os.Stderr, "rpc failed: %v\n", rerr)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(resp)
}
