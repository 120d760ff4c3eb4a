package model

import (
	"context"
	"io"
	"log/slog"
	"net"
	"strings"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"

	"github.com/danielpatrickdp/ownership-engine/internal/ownership"
	"github.com/danielpatrickdp/ownership-engine/internal/registry"
	"github.com/danielpatrickdp/ownership-engine/internal/retrain"
)

func startTrainer(t *testing.T, tr retrain.Trainer) *RemoteTrainer {
	t.Helper()
	lis := bufconn.Listen(1 << 22)
	srv := grpc.NewServer()
	RegisterTrainer(srv, tr)
	go srv.Serve(lis)
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial bufnet: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return NewRemoteTrainerWithConn(conn)
}

func trainingSamples(n int) []retrain.Sample {
	out := make([]retrain.Sample, n)
	for i := range out {
		out[i] = retrain.NewSample(mallocFeatures(), ownership.Owned, "fixture.c", uint32(i+1))
	}
	return out
}

func TestSplitWireRoundTrip(t *testing.T) {
	split := retrain.SplitSamples(trainingSamples(20), retrain.DefaultConfig())
	req, err := EncodeSplit(split)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	back, err := DecodeSplit(req)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(back.Train) != len(split.Train) || len(back.Validation) != len(split.Validation) || len(back.Test) != len(split.Test) {
		t.Fatalf("sizes %d/%d/%d", len(back.Train), len(back.Validation), len(back.Test))
	}
	if back.Test[0] != split.Test[0] {
		t.Fatalf("sample mismatch: %+v vs %+v", back.Test[0], split.Test[0])
	}
}

func TestRemoteTrainer_ReturnsMetrics(t *testing.T) {
	var seen int
	tr := startTrainer(t, retrain.TrainerFunc(func(_ context.Context, s retrain.Split) (retrain.TrainingMetrics, error) {
		seen = s.Total()
		m := retrain.NewTrainingMetrics(0.9, 0.85)
		m.TrainingLoss = 0.12
		return m, nil
	}))

	split := retrain.SplitSamples(trainingSamples(40), retrain.DefaultConfig())
	m, err := tr.Train(context.Background(), split)
	if err != nil {
		t.Fatalf("Train: %v", err)
	}
	if seen != 40 {
		t.Fatalf("server saw %d samples", seen)
	}
	if m.Precision != 0.9 || m.Recall != 0.85 || m.TrainingLoss != 0.12 {
		t.Fatalf("metrics = %+v", m)
	}
	if m.F1 != retrain.NewTrainingMetrics(0.9, 0.85).F1 {
		t.Fatalf("f1 not recomputed: %v", m.F1)
	}
}

func TestRemoteTrainer_PropagatesErrors(t *testing.T) {
	tr := startTrainer(t, retrain.NullTrainer{})
	_, err := tr.Train(context.Background(), retrain.Split{})
	if err == nil || !strings.Contains(err.Error(), "null trainer cannot train") {
		t.Fatalf("err = %v", err)
	}
}

func TestRemoteTrainer_DrivesPipeline(t *testing.T) {
	tr := startTrainer(t, retrain.FixedTrainer{Metrics: retrain.NewTrainingMetrics(0.92, 0.90)})
	config := retrain.DefaultConfig()
	config.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	mc := registry.DefaultManagerConfig()
	mc.Logger = config.Logger

	p := retrain.NewPipeline(tr, registry.New(mc), config)
	out := p.Execute(context.Background(), trainingSamples(1000))
	if !out.IsSuccess() || !out.Activated {
		t.Fatalf("outcome = %+v", out)
	}
}
