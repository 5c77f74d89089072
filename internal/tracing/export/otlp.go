package export

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/telchain/backend/internal/tracing"
	coltracepb "go.opentelemetry.io/proto/otlp/collector/trace/v1"
	commonpb "go.opentelemetry.io/proto/otlp/common/v1"
	resourcepb "go.opentelemetry.io/proto/otlp/resource/v1"
	tracepb "go.opentelemetry.io/proto/otlp/trace/v1"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// OTLP pushes completed spans to an OpenTelemetry collector over gRPC.
type OTLP struct {
	conn    *grpc.ClientConn
	client  coltracepb.TraceServiceClient
	service string
}

// NewOTLP connects to the collector at addr (host:port, plaintext).
func NewOTLP(addr, service string) (*OTLP, error) {
	conn, err := grpc.NewClient(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to collector: %w", err)
	}
	return &OTLP{
		conn:    conn,
		client:  coltracepb.NewTraceServiceClient(conn),
		service: service,
	}, nil
}

// Export converts the batch to OTLP and pushes it.
func (e *OTLP) Export(ctx context.Context, spans []*tracing.Span) error {
	req := buildExportRequest(e.service, spans)
	if _, err := e.client.Export(ctx, req); err != nil {
		return fmt.Errorf("otlp export: %w", err)
	}
	return nil
}

// Close tears down the collector connection.
func (e *OTLP) Close() error {
	if e.conn != nil {
		return e.conn.Close()
	}
	return nil
}

func buildExportRequest(service string, spans []*tracing.Span) *coltracepb.ExportTraceServiceRequest {
	pbSpans := make([]*tracepb.Span, 0, len(spans))
	for _, span := range spans {
		if pbSpan := toProtoSpan(span); pbSpan != nil {
			pbSpans = append(pbSpans, pbSpan)
		}
	}

	return &coltracepb.ExportTraceServiceRequest{
		ResourceSpans: []*tracepb.ResourceSpans{
			{
				Resource: &resourcepb.Resource{
					Attributes: []*commonpb.KeyValue{
						stringAttr("service.name", service),
					},
				},
				ScopeSpans: []*tracepb.ScopeSpans{
					{
						Scope: &commonpb.InstrumentationScope{Name: "telchain"},
						Spans: pbSpans,
					},
				},
			},
		},
	}
}

func toProtoSpan(span *tracing.Span) *tracepb.Span {
	traceID, err := hex.DecodeString(span.Context.TraceID)
	if err != nil {
		return nil
	}
	spanID, err := hex.DecodeString(span.Context.SpanID)
	if err != nil {
		return nil
	}
	var parentID []byte
	if span.Context.ParentSpanID != "" {
		parentID, _ = hex.DecodeString(span.Context.ParentSpanID)
	}

	attrs := span.Attributes()
	pbAttrs := make([]*commonpb.KeyValue, 0, len(attrs))
	for k, v := range attrs {
		pbAttrs = append(pbAttrs, stringAttr(k, v))
	}

	status, errMsg := span.Status()
	pbStatus := &tracepb.Status{Code: tracepb.Status_STATUS_CODE_OK}
	if status == tracing.StatusError {
		pbStatus = &tracepb.Status{
			Code:    tracepb.Status_STATUS_CODE_ERROR,
			Message: errMsg,
		}
	}

	return &tracepb.Span{
		TraceId:           traceID,
		SpanId:            spanID,
		ParentSpanId:      parentID,
		Name:              span.Name,
		Kind:              toProtoKind(span.Kind),
		StartTimeUnixNano: uint64(span.StartTime.UnixNano()),
		EndTimeUnixNano:   uint64(span.EndTime().UnixNano()),
		Attributes:        pbAttrs,
		Status:            pbStatus,
	}
}

func toProtoKind(kind tracing.Kind) tracepb.Span_SpanKind {
	switch kind {
	case tracing.KindServer:
		return tracepb.Span_SPAN_KIND_SERVER
	case tracing.KindClient:
		return tracepb.Span_SPAN_KIND_CLIENT
	case tracing.KindProducer:
		return tracepb.Span_SPAN_KIND_PRODUCER
	case tracing.KindConsumer:
		return tracepb.Span_SPAN_KIND_CONSUMER
	default:
		return tracepb.Span_SPAN_KIND_INTERNAL
	}
}

func stringAttr(key, value string) *commonpb.KeyValue {
	return &commonpb.KeyValue{
		Key:   key,
		Value: &commonpb.AnyValue{Value: &commonpb.AnyValue_StringValue{StringValue: value}},
	}
}
