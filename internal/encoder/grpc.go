package encoder

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/and161185/face-keeper/internal/logging"
	"github.com/and161185/face-keeper/internal/model"
)

// DetectMethod is the full gRPC method name served by the sidecar.
// Request and response are google.protobuf.Struct values.
const DetectMethod = "/faceencoder.v1.FaceEncoder/Detect"

// GRPCClient calls the sidecar over gRPC.
type GRPCClient struct {
	conn   grpc.ClientConnInterface
	model  string
	logger *zap.Logger
}

// DialGRPC returns a client for the sidecar at addr and the underlying
// connection, which the caller closes on shutdown.
func DialGRPC(addr, model string, logger *zap.Logger, opts ...grpc.DialOption) (*GRPCClient, *grpc.ClientConn, error) {
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithChainUnaryInterceptor(LoggingUnaryClient(logger)),
	}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		wrapped := logging.WrapOp(context.Background(), "encoder.dial", err)
		logger.Error("failed to dial encoder", zap.Error(wrapped), zap.String("addr", addr))
		return nil, nil, wrapped
	}
	return NewGRPCClient(conn, model, logger), conn, nil
}

// NewGRPCClient wraps an existing connection.
func NewGRPCClient(conn grpc.ClientConnInterface, model string, logger *zap.Logger) *GRPCClient {
	if model == "" {
		model = DefaultModel
	}
	return &GRPCClient{conn: conn, model: model, logger: logger.Named("encoder_grpc")}
}

// Detect sends the image and converts the returned faces.
func (g *GRPCClient) Detect(ctx context.Context, image []byte) ([]model.Detection, error) {
	req, err := structpb.NewStruct(map[string]any{
		"image": base64.StdEncoding.EncodeToString(image),
		"model": g.model,
	})
	if err != nil {
		return nil, err
	}

	resp := &structpb.Struct{}
	if err := g.conn.Invoke(ctx, DetectMethod, req, resp); err != nil {
		wrapped := logging.WrapOp(ctx, "encoder.detect", err)
		g.logger.Error("encoder call failed", zap.Error(wrapped))
		return nil, wrapped
	}

	raw, err := protojson.Marshal(resp)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadResponse, err)
	}
	var body struct {
		Faces []faceJSON `json:"faces"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadResponse, err)
	}
	return toDetections(body.Faces)
}
