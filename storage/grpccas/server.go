package grpccas

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"xdao.co/trustchain/cidutil"
	"xdao.co/trustchain/storage"
)

// Server exposes a storage.CAS as the archive service.
type Server struct {
	UnimplementedArchiveServer
	CAS storage.CAS
}

func (s *Server) Put(ctx context.Context, in *wrapperspb.BytesValue) (*wrapperspb.StringValue, error) {
	if s == nil || s.CAS == nil {
		return nil, status.Error(codes.FailedPrecondition, "missing archive backend")
	}
	b := in.GetValue()
	if len(b) == 0 {
		return nil, status.Error(codes.InvalidArgument, storage.ErrEmpty.Error())
	}
	id, err := s.CAS.Put(ctx, b)
	if err != nil {
		return nil, toStatus(err)
	}
	// The backend must agree with the CID the bytes hash to.
	if !cidutil.Matches(id, b) {
		return nil, status.Error(codes.DataLoss, storage.ErrCIDMismatch.Error())
	}
	return wrapperspb.String(id.String()), nil
}

func (s *Server) Get(ctx context.Context, in *wrapperspb.StringValue) (*wrapperspb.BytesValue, error) {
	if s == nil || s.CAS == nil {
		return nil, status.Error(codes.FailedPrecondition, "missing archive backend")
	}
	id, err := storage.ParseCID(in.GetValue())
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, storage.ErrInvalidCID.Error())
	}
	b, err := s.CAS.Get(ctx, id)
	if err != nil {
		return nil, toStatus(err)
	}
	if !cidutil.Matches(id, b) {
		return nil, status.Error(codes.DataLoss, storage.ErrCIDMismatch.Error())
	}
	return wrapperspb.Bytes(b), nil
}

func (s *Server) Has(ctx context.Context, in *wrapperspb.StringValue) (*wrapperspb.BoolValue, error) {
	if s == nil || s.CAS == nil {
		return nil, status.Error(codes.FailedPrecondition, "missing archive backend")
	}
	id, err := storage.ParseCID(in.GetValue())
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, storage.ErrInvalidCID.Error())
	}
	ok, err := s.CAS.Has(ctx, id)
	if err != nil {
		return nil, toStatus(err)
	}
	return wrapperspb.Bool(ok), nil
}

func toStatus(err error) error {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, storage.ErrInvalidCID), errors.Is(err, storage.ErrEmpty):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, storage.ErrCIDMismatch), errors.Is(err, storage.ErrImmutable):
		return status.Error(codes.DataLoss, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// fromStatus maps archive service statuses back to storage errors.
func fromStatus(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	switch st.Code() {
	case codes.NotFound:
		return storage.ErrNotFound
	case codes.InvalidArgument:
		if st.Message() == storage.ErrEmpty.Error() {
			return storage.ErrEmpty
		}
		return storage.ErrInvalidCID
	case codes.DataLoss:
		if st.Message() == storage.ErrImmutable.Error() {
			return storage.ErrImmutable
		}
		return storage.ErrCIDMismatch
	default:
		return err
	}
}
