// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package grpc 提供 gRPC 服务端，与 HTTP 的 /agent、/query 能力对齐。
// 消息使用 protobuf 内置的 StringValue，服务描述手写，无需生成代码。
package grpc

import (
	"context"
	"encoding/json"
	stderrors "errors"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"log-agent/internal/pipeline/query"
	"log-agent/pkg/errors"
)

// ServiceName 完整服务名
const ServiceName = "logagent.v1.AgentService"

// Runner 执行一次 Agent 对话
type Runner interface {
	Run(ctx context.Context, query string) (string, error)
}

// Querier 语义查询
type Querier interface {
	QueryLogs(ctx context.Context, question string) (*query.Answer, error)
}

// AgentServiceServer 服务接口
type AgentServiceServer interface {
	Run(ctx context.Context, in *wrapperspb.StringValue) (*wrapperspb.StringValue, error)
	Query(ctx context.Context, in *wrapperspb.StringValue) (*wrapperspb.StringValue, error)
}

// Server gRPC 服务端
type Server struct {
	runner  Runner
	querier Querier
	health  *health.Server
}

// NewServer 创建 Server；runner 为 nil 时 Run 返回 Unavailable
func NewServer(runner Runner, querier Querier) *Server {
	return &Server{runner: runner, querier: querier, health: health.NewServer()}
}

// Register 注册 AgentService 与标准健康检查服务
func (s *Server) Register(grpcServer *grpc.Server) {
	grpcServer.RegisterService(&AgentServiceDesc, s)
	healthpb.RegisterHealthServer(grpcServer, s.health)
	s.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
}

// Shutdown 将健康状态置为 NOT_SERVING
func (s *Server) Shutdown() {
	s.health.Shutdown()
}

// Run 实现 AgentService.Run：输入为用户问题，输出为最终回答
func (s *Server) Run(ctx context.Context, in *wrapperspb.StringValue) (*wrapperspb.StringValue, error) {
	if in.GetValue() == "" {
		return nil, status.Error(codes.InvalidArgument, "query required")
	}
	if s.runner == nil {
		return nil, status.Error(codes.Unavailable, "agent not configured")
	}
	answer, err := s.runner.Run(ctx, in.GetValue())
	if err != nil {
		return nil, toStatus(err)
	}
	return wrapperspb.String(answer), nil
}

// Query 实现 AgentService.Query：输出为 {"answer","evidence"} JSON
func (s *Server) Query(ctx context.Context, in *wrapperspb.StringValue) (*wrapperspb.StringValue, error) {
	if in.GetValue() == "" {
		return nil, status.Error(codes.InvalidArgument, "q required")
	}
	ans, err := s.querier.QueryLogs(ctx, in.GetValue())
	if err != nil {
		return nil, toStatus(err)
	}
	b, err := json.Marshal(ans)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode answer: %v", err)
	}
	return wrapperspb.String(string(b)), nil
}

func toStatus(err error) error {
	switch {
	case errors.Is(err, errors.ErrInvalidArg):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, errors.ErrInconclusive):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, errors.ErrTimeout), stderrors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case stderrors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, errors.ErrUpstreamUnavailable):
		return status.Error(codes.Unavailable, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

func unaryHandler(method string, call func(AgentServiceServer, context.Context, *wrapperspb.StringValue) (*wrapperspb.StringValue, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
			in := new(wrapperspb.StringValue)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(AgentServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + method}
			return interceptor(ctx, in, info, func(ctx context.Context, req interface{}) (interface{}, error) {
				return call(srv.(AgentServiceServer), ctx, req.(*wrapperspb.StringValue))
			})
		},
	}
}

// AgentServiceDesc AgentService 的服务描述
var AgentServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AgentServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryHandler("Run", AgentServiceServer.Run),
		unaryHandler("Query", AgentServiceServer.Query),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "logagent/v1/agent.proto",
}
