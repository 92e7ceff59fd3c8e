// Package grpc exposes the user use case as userrecord.v1.UserService.
// Requests and responses are google.protobuf.Struct values whose keys match
// the JSON bodies of the REST API.
package grpc

import (
	"context"
	"math"
	"strconv"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"user-record-service/internal/usecase/user"
	apperrors "user-record-service/pkg/errors"
	"user-record-service/pkg/logger"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "userrecord.v1.UserService"

// UserService is the server API for userrecord.v1.UserService.
type UserService interface {
	CreateUser(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	GetUser(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	UpdateUser(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	DeleteUser(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	ListUsers(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	ValidateUser(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
}

type unaryCall func(srv UserService, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)

func unary(method string, call unaryCall) grpc.MethodDesc {
	fullMethod := "/" + ServiceName + "/" + method
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(UserService), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(UserService), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// ServiceDesc describes userrecord.v1.UserService for grpc.Server.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*UserService)(nil),
	Methods: []grpc.MethodDesc{
		unary("CreateUser", UserService.CreateUser),
		unary("GetUser", UserService.GetUser),
		unary("UpdateUser", UserService.UpdateUser),
		unary("DeleteUser", UserService.DeleteUser),
		unary("ListUsers", UserService.ListUsers),
		unary("ValidateUser", UserService.ValidateUser),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "userrecord/v1/user_service.proto",
}

// RegisterUserServiceServer registers srv with s.
func RegisterUserServiceServer(s grpc.ServiceRegistrar, srv UserService) {
	s.RegisterService(&ServiceDesc, srv)
}

// UserServiceServer implements the gRPC user service
type UserServiceServer struct {
	uc  user.Service
	log *zap.Logger
}

// NewUserServiceServer creates a new gRPC user service server
func NewUserServiceServer(uc user.Service, log *zap.Logger) *UserServiceServer {
	return &UserServiceServer{uc: uc, log: log}
}

// CreateUser handles {email, password} and returns {id}.
func (s *UserServiceServer) CreateUser(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	email, err := stringField(in, "email")
	if err != nil {
		return nil, err
	}
	password, err := stringField(in, "password")
	if err != nil {
		return nil, err
	}

	resp, err := s.uc.CreateUser(ctx, user.CreateUserRequest{
		Email:    email,
		Password: password,
	})
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return newStruct(map[string]any{"id": resp.ID})
}

// GetUser handles {id} and returns the user without its password.
func (s *UserServiceServer) GetUser(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id, err := intField(in, "id")
	if err != nil {
		return nil, err
	}

	resp, err := s.uc.GetUser(ctx, user.GetUserRequest{ID: id})
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return newStruct(userFields(resp.User))
}

// UpdateUser handles {id, email?, password?}. Absent or null keys keep the
// stored value.
func (s *UserServiceServer) UpdateUser(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id, err := intField(in, "id")
	if err != nil {
		return nil, err
	}

	email, err := optionalStringField(in, "email")
	if err != nil {
		return nil, err
	}
	password, err := optionalStringField(in, "password")
	if err != nil {
		return nil, err
	}

	resp, err := s.uc.UpdateUser(ctx, user.UpdateUserRequest{
		ID:       id,
		Email:    email,
		Password: password,
	})
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return newStruct(map[string]any{"id": resp.ID})
}

// DeleteUser handles {id}.
func (s *UserServiceServer) DeleteUser(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id, err := intField(in, "id")
	if err != nil {
		return nil, err
	}

	resp, err := s.uc.DeleteUser(ctx, user.DeleteUserRequest{ID: id})
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return newStruct(map[string]any{"id": resp.ID})
}

// ListUsers handles {query?, page?, limit?}.
func (s *UserServiceServer) ListUsers(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var page, limit int64
	var err error
	if hasField(in, "page") {
		if page, err = intField(in, "page"); err != nil {
			return nil, err
		}
	}
	if hasField(in, "limit") {
		if limit, err = intField(in, "limit"); err != nil {
			return nil, err
		}
	}

	query, err := stringField(in, "query")
	if err != nil {
		return nil, err
	}

	resp, err := s.uc.ListUsers(ctx, user.ListUsersRequest{
		Query: query,
		Page:  page,
		Limit: limit,
	})
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	users := make([]any, len(resp.Users))
	for i, u := range resp.Users {
		users[i] = userFields(u)
	}

	out := map[string]any{"users": users}
	if p := resp.Pagination; p != nil {
		out["pagination"] = map[string]any{
			"total":       p.Total,
			"page":        p.Page,
			"limit":       p.Limit,
			"total_pages": p.TotalPages,
		}
	}
	return newStruct(out)
}

// ValidateUser handles {email, password} without storing anything.
func (s *UserServiceServer) ValidateUser(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	email, err := stringField(in, "email")
	if err != nil {
		return nil, err
	}
	password, err := stringField(in, "password")
	if err != nil {
		return nil, err
	}

	resp, err := s.uc.ValidateUser(ctx, user.ValidateUserRequest{
		Email:    email,
		Password: password,
	})
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return newStruct(map[string]any{"valid": true, "email": resp.Email})
}

// toStatus keeps typed application errors and hides everything else.
func (s *UserServiceServer) toStatus(ctx context.Context, err error) error {
	var st apperrors.GRPCStatuser
	if apperrors.As(err, &st) {
		return st.GRPCStatus().Err()
	}
	logger.WithContext(ctx, s.log).Error("unhandled error", zap.Error(err))
	return status.Error(codes.Internal, "internal server error")
}

func userFields(u user.User) map[string]any {
	return map[string]any{
		"id":         u.ID,
		"email":      u.Email,
		"created_at": u.CreatedAt.UTC().Format(time.RFC3339Nano),
		"updated_at": u.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func newStruct(fields map[string]any) (*structpb.Struct, error) {
	out, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	return out, nil
}

func hasField(in *structpb.Struct, key string) bool {
	v, ok := in.GetFields()[key]
	if !ok {
		return false
	}
	_, isNull := v.GetKind().(*structpb.Value_NullValue)
	return !isNull
}

// stringField reads key as text. Numbers and booleans are converted the way
// JSON clients spell them, so {"email": 123} is checked as "123".
func stringField(in *structpb.Struct, key string) (string, error) {
	switch v := in.GetFields()[key].GetKind().(type) {
	case nil, *structpb.Value_NullValue:
		return "", nil
	case *structpb.Value_StringValue:
		return v.StringValue, nil
	case *structpb.Value_NumberValue:
		return formatNumber(v.NumberValue), nil
	case *structpb.Value_BoolValue:
		return strconv.FormatBool(v.BoolValue), nil
	default:
		return "", status.Errorf(codes.InvalidArgument, "%s must be a string", key)
	}
}

func optionalStringField(in *structpb.Struct, key string) (*string, error) {
	if !hasField(in, key) {
		return nil, nil
	}
	v, err := stringField(in, key)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// formatNumber uses plain digits below 1e21 and exponent form above.
func formatNumber(n float64) string {
	if math.Abs(n) < 1e21 {
		return strconv.FormatFloat(n, 'f', -1, 64)
	}
	return strconv.FormatFloat(n, 'g', -1, 64)
}

// intField reads a whole number. Numbers arrive as float64.
func intField(in *structpb.Struct, key string) (int64, error) {
	v, ok := in.GetFields()[key].GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return 0, status.Errorf(codes.InvalidArgument, "%s must be a number", key)
	}
	n := v.NumberValue
	if n != math.Trunc(n) || math.Abs(n) > 1<<53 {
		return 0, status.Errorf(codes.InvalidArgument, "%s must be a whole number", key)
	}
	return int64(n), nil
}
