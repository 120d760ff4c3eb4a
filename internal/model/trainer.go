package model

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/danielpatrickdp/ownership-engine/internal/ownership"
	"github.com/danielpatrickdp/ownership-engine/internal/retrain"
)

// #region trainer-wire
const (
	TrainerService = "ownership.v1.Trainer"
	TrainMethod    = "/" + TrainerService + "/Train"
)

func encodeSamples(samples []retrain.Sample) []any {
	out := make([]any, len(samples))
	for i, s := range samples {
		vec := s.Features.Vector()
		values := make([]any, len(vec))
		for j, v := range vec {
			values[j] = float64(v)
		}
		out[i] = map[string]any{
			"features":    values,
			"label":       s.Label.String(),
			"source_file": s.SourceFile,
			"line_number": float64(s.LineNumber),
		}
	}
	return out
}

func decodeSamples(list *structpb.ListValue) ([]retrain.Sample, error) {
	out := make([]retrain.Sample, 0, len(list.GetValues()))
	for i, v := range list.GetValues() {
		fields := v.GetStructValue().GetFields()
		raw := fields["features"].GetListValue().GetValues()
		vec := make([]float32, len(raw))
		for j, x := range raw {
			vec[j] = float32(x.GetNumberValue())
		}
		f, err := ownership.FeaturesFromVector(vec)
		if err != nil {
			return nil, fmt.Errorf("sample %d: %w", i, err)
		}
		label, err := ownership.ParseKind(fields["label"].GetStringValue())
		if err != nil {
			return nil, fmt.Errorf("sample %d: %w", i, err)
		}
		out = append(out, retrain.NewSample(f, label,
			fields["source_file"].GetStringValue(), uint32(fields["line_number"].GetNumberValue())))
	}
	return out, nil
}

// EncodeSplit packs a data split into the Train request message.
func EncodeSplit(s retrain.Split) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"train":      encodeSamples(s.Train),
		"validation": encodeSamples(s.Validation),
		"test":       encodeSamples(s.Test),
	})
}

// DecodeSplit unpacks a request produced by EncodeSplit.
func DecodeSplit(req *structpb.Struct) (retrain.Split, error) {
	fields := req.GetFields()
	var split retrain.Split
	var err error
	if split.Train, err = decodeSamples(fields["train"].GetListValue()); err != nil {
		return retrain.Split{}, fmt.Errorf("decode train: %w", err)
	}
	if split.Validation, err = decodeSamples(fields["validation"].GetListValue()); err != nil {
		return retrain.Split{}, fmt.Errorf("decode validation: %w", err)
	}
	if split.Test, err = decodeSamples(fields["test"].GetListValue()); err != nil {
		return retrain.Split{}, fmt.Errorf("decode test: %w", err)
	}
	return split, nil
}

// EncodeTrainingMetrics packs trainer results into the response message.
func EncodeTrainingMetrics(m retrain.TrainingMetrics) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"precision":       m.Precision,
		"recall":          m.Recall,
		"training_loss":   m.TrainingLoss,
		"validation_loss": m.ValidationLoss,
	})
}

// DecodeTrainingMetrics unpacks a response produced by EncodeTrainingMetrics.
// F1 is recomputed from precision and recall.
func DecodeTrainingMetrics(resp *structpb.Struct) retrain.TrainingMetrics {
	fields := resp.GetFields()
	m := retrain.NewTrainingMetrics(fields["precision"].GetNumberValue(), fields["recall"].GetNumberValue())
	m.TrainingLoss = fields["training_loss"].GetNumberValue()
	m.ValidationLoss = fields["validation_loss"].GetNumberValue()
	return m
}

// #endregion trainer-wire

// #region remote-trainer
// RemoteTrainer delegates training to an external service.
type RemoteTrainer struct {
	conn   grpc.ClientConnInterface
	closer func() error
}

// NewRemoteTrainer dials the trainer service at addr.
func NewRemoteTrainer(addr string) (*RemoteTrainer, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("dial trainer: %w", err)
	}
	return &RemoteTrainer{conn: conn, closer: conn.Close}, nil
}

// NewRemoteTrainerWithConn creates a RemoteTrainer over an existing connection.
func NewRemoteTrainerWithConn(conn grpc.ClientConnInterface) *RemoteTrainer {
	return &RemoteTrainer{conn: conn}
}

func (t *RemoteTrainer) Close() error {
	if t.closer == nil {
		return nil
	}
	return t.closer()
}

// Train sends the split and returns the reported metrics. Unlike Remote,
// errors are returned so the pipeline records a training error.
func (t *RemoteTrainer) Train(ctx context.Context, split retrain.Split) (retrain.TrainingMetrics, error) {
	req, err := EncodeSplit(split)
	if err != nil {
		return retrain.TrainingMetrics{}, fmt.Errorf("encode split: %w", err)
	}
	resp := &structpb.Struct{}
	if err := t.conn.Invoke(ctx, TrainMethod, req, resp); err != nil {
		return retrain.TrainingMetrics{}, fmt.Errorf("train rpc: %w", err)
	}
	return DecodeTrainingMetrics(resp), nil
}

// #endregion remote-trainer

// #region trainer-server
// TrainerServer is the server side of the Train RPC.
type TrainerServer interface {
	Train(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

// TrainerServiceDesc describes the trainer service for grpc.Server.
var TrainerServiceDesc = grpc.ServiceDesc{
	ServiceName: TrainerService,
	HandlerType: (*TrainerServer)(nil),
	Methods: []grpc.MethodDesc{{
		MethodName: "Train",
		Handler:    trainHandler,
	}},
	Streams: []grpc.StreamDesc{},
}

func trainHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := &structpb.Struct{}
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(TrainerServer).Train(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: TrainMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(TrainerServer).Train(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// TrainingServer exposes any retrain.Trainer over the Train RPC.
type TrainingServer struct {
	Trainer retrain.Trainer
}

func (s TrainingServer) Train(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	split, err := DecodeSplit(req)
	if err != nil {
		return nil, err
	}
	m, err := s.Trainer.Train(ctx, split)
	if err != nil {
		return nil, err
	}
	return EncodeTrainingMetrics(m)
}

// RegisterTrainer registers a Trainer as the trainer service on s.
func RegisterTrainer(s grpc.ServiceRegistrar, t retrain.Trainer) {
	s.RegisterService(&TrainerServiceDesc, TrainingServer{Trainer: t})
}

// #endregion trainer-server
