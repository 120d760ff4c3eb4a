package model

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/danielpatrickdp/ownership-engine/internal/ownership"
)

// #region wire
const (
	PredictorService = "ownership.v1.Predictor"
	PredictMethod    = "/" + PredictorService + "/Predict"
)

// EncodeFeatures packs a feature set into the request message.
func EncodeFeatures(f ownership.Features) (*structpb.Struct, error) {
	vec := f.Vector()
	values := make([]any, len(vec))
	for i, v := range vec {
		values[i] = float64(v)
	}
	return structpb.NewStruct(map[string]any{"features": values})
}

// DecodeFeatures unpacks a request produced by EncodeFeatures.
func DecodeFeatures(req *structpb.Struct) (ownership.Features, error) {
	list := req.GetFields()["features"].GetListValue()
	if list == nil {
		return ownership.Features{}, fmt.Errorf("request missing features")
	}
	vec := make([]float32, len(list.GetValues()))
	for i, v := range list.GetValues() {
		vec[i] = float32(v.GetNumberValue())
	}
	return ownership.FeaturesFromVector(vec)
}

// EncodePrediction packs a prediction into the response message.
func EncodePrediction(p ownership.Prediction) (*structpb.Struct, error) {
	fields := map[string]any{
		"kind":       p.Kind.String(),
		"confidence": p.Confidence,
	}
	if p.Fallback != nil {
		fields["fallback"] = p.Fallback.String()
	}
	return structpb.NewStruct(fields)
}

// DecodePrediction unpacks a response produced by EncodePrediction.
func DecodePrediction(resp *structpb.Struct) (ownership.Prediction, error) {
	fields := resp.GetFields()
	kind, err := ownership.ParseKind(fields["kind"].GetStringValue())
	if err != nil {
		return ownership.Prediction{}, fmt.Errorf("decode prediction: %w", err)
	}
	p := ownership.NewPrediction(kind, fields["confidence"].GetNumberValue())
	if fb, ok := fields["fallback"]; ok {
		fallback, err := ownership.ParseKind(fb.GetStringValue())
		if err != nil {
			return ownership.Prediction{}, fmt.Errorf("decode fallback: %w", err)
		}
		p = p.WithFallback(fallback)
	}
	return p, nil
}

// #endregion wire

// #region remote-config
// RemoteConfig configures a gRPC-backed model.
type RemoteConfig struct {
	Addr    string
	Name    string
	Timeout time.Duration
}

// DefaultRemoteConfig returns defaults for a local inference service.
func DefaultRemoteConfig() RemoteConfig {
	return RemoteConfig{
		Addr:    "localhost:50051",
		Name:    "remote",
		Timeout: 2 * time.Second,
	}
}

// #endregion remote-config

// #region remote
// Remote calls an external predictor service. Transport failures degrade to
// the Null prediction so the hybrid classifier falls back to rules.
type Remote struct {
	conn     grpc.ClientConnInterface
	closer   func() error
	name     string
	timeout  time.Duration
	failures atomic.Int64
}

// NewRemote dials the predictor service at config.Addr.
func NewRemote(config RemoteConfig) (*Remote, error) {
	conn, err := grpc.NewClient(config.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("dial predictor: %w", err)
	}
	r := NewRemoteWithConn(conn, config)
	r.closer = conn.Close
	return r, nil
}

// NewRemoteWithConn creates a Remote over an existing connection (for testing).
func NewRemoteWithConn(conn grpc.ClientConnInterface, config RemoteConfig) *Remote {
	name := config.Name
	if name == "" {
		name = "remote"
	}
	return &Remote{conn: conn, name: name, timeout: config.Timeout}
}

// Close releases the connection if Remote dialed it.
func (r *Remote) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer()
}

func (r *Remote) Name() string { return r.name }

// Failures returns how many calls degraded to the Null prediction.
func (r *Remote) Failures() int64 { return r.failures.Load() }

func (r *Remote) Predict(f ownership.Features) ownership.Prediction {
	ctx := context.Background()
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	p, err := r.PredictContext(ctx, f)
	if err != nil {
		r.failures.Add(1)
		return Null{}.Predict(f)
	}
	return p
}

// PredictContext performs one Predict RPC and surfaces transport errors.
func (r *Remote) PredictContext(ctx context.Context, f ownership.Features) (ownership.Prediction, error) {
	req, err := EncodeFeatures(f)
	if err != nil {
		return ownership.Prediction{}, fmt.Errorf("encode features: %w", err)
	}
	resp := &structpb.Struct{}
	if err := r.conn.Invoke(ctx, PredictMethod, req, resp); err != nil {
		return ownership.Prediction{}, fmt.Errorf("predict rpc: %w", err)
	}
	return DecodePrediction(resp)
}

// #endregion remote

// #region server
// PredictorServer is the server side of the Predict RPC.
type PredictorServer interface {
	Predict(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

// PredictorServiceDesc describes the predictor service for grpc.Server.
var PredictorServiceDesc = grpc.ServiceDesc{
	ServiceName: PredictorService,
	HandlerType: (*PredictorServer)(nil),
	Methods: []grpc.MethodDesc{{
		MethodName: "Predict",
		Handler:    predictHandler,
	}},
	Streams: []grpc.StreamDesc{},
}

func predictHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := &structpb.Struct{}
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PredictorServer).Predict(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: PredictMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(PredictorServer).Predict(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// ModelServer exposes any Model over the Predict RPC.
type ModelServer struct {
	Model Model
}

func (s ModelServer) Predict(_ context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	f, err := DecodeFeatures(req)
	if err != nil {
		return nil, err
	}
	return EncodePrediction(s.Model.Predict(f))
}

// RegisterPredictor registers a Model as the predictor service on s.
func RegisterPredictor(s grpc.ServiceRegistrar, m Model) {
	s.RegisterService(&PredictorServiceDesc, ModelServer{Model: m})
}

// #endregion server
