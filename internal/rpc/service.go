// Package rpc exposes the query pipeline as a Connect service with a JSON
// codec.
package rpc

import (
	"context"
	"net/http"
	"strings"

	"connectrpc.com/connect"

	"github.com/voicetyped/voicequery/internal/connectutil"
)

const QueryServiceName = "voicequery.v1.QueryService"

const (
	QueryServiceTranscribeProcedure    = "/" + QueryServiceName + "/Transcribe"
	QueryServiceGenerateQueryProcedure = "/" + QueryServiceName + "/GenerateQuery"
	QueryServiceProcessProcedure       = "/" + QueryServiceName + "/Process"
	QueryServiceListModelsProcedure    = "/" + QueryServiceName + "/ListModels"
)

// QueryServiceHandler is the server side of the query service.
type QueryServiceHandler interface {
	Transcribe(context.Context, *connect.Request[TranscribeRequest]) (*connect.Response[TranscribeResponse], error)
	GenerateQuery(context.Context, *connect.Request[GenerateQueryRequest]) (*connect.Response[GenerateQueryResponse], error)
	Process(context.Context, *connect.Request[ProcessRequest]) (*connect.Response[ProcessResponse], error)
	ListModels(context.Context, *connect.Request[ListModelsRequest]) (*connect.Response[ListModelsResponse], error)
}

// NewQueryServiceHandler builds an HTTP handler serving svc and returns the
// path prefix to mount it on. The JSON codec is always installed.
func NewQueryServiceHandler(svc QueryServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(connectutil.JSONCodec{})}, opts...)

	routes := map[string]http.Handler{
		QueryServiceTranscribeProcedure:    connect.NewUnaryHandler(QueryServiceTranscribeProcedure, svc.Transcribe, opts...),
		QueryServiceGenerateQueryProcedure: connect.NewUnaryHandler(QueryServiceGenerateQueryProcedure, svc.GenerateQuery, opts...),
		QueryServiceProcessProcedure:       connect.NewUnaryHandler(QueryServiceProcessProcedure, svc.Process, opts...),
		QueryServiceListModelsProcedure:    connect.NewUnaryHandler(QueryServiceListModelsProcedure, svc.ListModels, opts...),
	}

	return "/" + QueryServiceName + "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h, ok := routes[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		h.ServeHTTP(w, r)
	})
}

// QueryServiceClient is the client side of the query service.
type QueryServiceClient interface {
	Transcribe(context.Context, *connect.Request[TranscribeRequest]) (*connect.Response[TranscribeResponse], error)
	GenerateQuery(context.Context, *connect.Request[GenerateQueryRequest]) (*connect.Response[GenerateQueryResponse], error)
	Process(context.Context, *connect.Request[ProcessRequest]) (*connect.Response[ProcessResponse], error)
	ListModels(context.Context, *connect.Request[ListModelsRequest]) (*connect.Response[ListModelsResponse], error)
}

type queryServiceClient struct {
	transcribe    *connect.Client[TranscribeRequest, TranscribeResponse]
	generateQuery *connect.Client[GenerateQueryRequest, GenerateQueryResponse]
	process       *connect.Client[ProcessRequest, ProcessResponse]
	listModels    *connect.Client[ListModelsRequest, ListModelsResponse]
}

// NewQueryServiceClient creates a client for the service at baseURL.
func NewQueryServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) QueryServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{connect.WithCodec(connectutil.JSONCodec{})}, opts...)
	return &queryServiceClient{
		transcribe:    connect.NewClient[TranscribeRequest, TranscribeResponse](httpClient, baseURL+QueryServiceTranscribeProcedure, opts...),
		generateQuery: connect.NewClient[GenerateQueryRequest, GenerateQueryResponse](httpClient, baseURL+QueryServiceGenerateQueryProcedure, opts...),
		process:       connect.NewClient[ProcessRequest, ProcessResponse](httpClient, baseURL+QueryServiceProcessProcedure, opts...),
		listModels:    connect.NewClient[ListModelsRequest, ListModelsResponse](httpClient, baseURL+QueryServiceListModelsProcedure, opts...),
	}
}

func (c *queryServiceClient) Transcribe(ctx context.Context, req *connect.Request[TranscribeRequest]) (*connect.Response[TranscribeResponse], error) {
	return c.transcribe.CallUnary(ctx, req)
}

func (c *queryServiceClient) GenerateQuery(ctx context.Context, req *connect.Request[GenerateQueryRequest]) (*connect.Response[GenerateQueryResponse], error) {
	return c.generateQuery.CallUnary(ctx, req)
}

func (c *queryServiceClient) Process(ctx context.Context, req *connect.Request[ProcessRequest]) (*connect.Response[ProcessResponse], error) {
	return c.process.CallUnary(ctx, req)
}

func (c *queryServiceClient) ListModels(ctx context.Context, req *connect.Request[ListModelsRequest]) (*connect.Response[ListModelsResponse], error) {
	return c.listModels.CallUnary(ctx, req)
}
