package grpcserver

import (
	"context"
	"log"
	"time"

	"github.com/cockroachdb/errors"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"rcucell/infra/codec"
	"rcucell/service"
)

// Server adapts DocumentService to gRPC.
type Server struct {
	svc *service.DocumentService
}

func NewServer(svc *service.DocumentService) *Server {
	return &Server{svc: svc}
}

// -------------------- Commands --------------------

func (s *Server) Publish(
	ctx context.Context,
	req *structpb.Struct,
) (*structpb.Struct, error) {
	doc, err := s.svc.Publish(ctx, req)
	if err != nil {
		return nil, toStatus(err)
	}

	log.Printf("[gRPC] Publish version=%d id=%s", doc.Version, doc.ID)
	return codec.ToStruct(doc)
}

func (s *Server) Clear(
	ctx context.Context,
	_ *emptypb.Empty,
) (*structpb.Struct, error) {
	doc, err := s.svc.Clear(ctx)
	if err != nil {
		return nil, toStatus(err)
	}

	log.Printf("[gRPC] Clear version=%d", doc.Version)
	return codec.ToStruct(doc)
}

// -------------------- Queries --------------------

func (s *Server) Get(
	ctx context.Context,
	_ *emptypb.Empty,
) (*structpb.Struct, error) {
	g, err := s.svc.Current()
	if err != nil {
		return nil, toStatus(err)
	}
	defer g.Release()

	return codec.ToStruct(g.Value())
}

// -------------------- Interceptors --------------------

// UnaryLogger logs every call that fails, and slow ones.
func UnaryLogger(
	ctx context.Context,
	req any,
	info *grpc.UnaryServerInfo,
	handler grpc.UnaryHandler,
) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	if d := time.Since(start); err != nil || d > 100*time.Millisecond {
		log.Printf("[gRPC] %s took=%s code=%s err=%v", info.FullMethod, d, status.Code(err), err)
	}
	return resp, err
}

// -------------------- Converters --------------------

func toStatus(err error) error {
	switch {
	case errors.Is(err, service.ErrEmpty):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, service.ErrTooLarge):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return status.FromContextError(err).Err()
	default:
		return status.Error(codes.Unavailable, err.Error())
	}
}
