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

package grpc

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"log-agent/internal/pipeline/query"
	pkgerrors "log-agent/pkg/errors"
)

type runnerFunc func(ctx context.Context, q string) (string, error)

func (f runnerFunc) Run(ctx context.Context, q string) (string, error) { return f(ctx, q) }

type querierFunc func(ctx context.Context, q string) (*query.Answer, error)

func (f querierFunc) QueryLogs(ctx context.Context, q string) (*query.Answer, error) { return f(ctx, q) }

func dial(t *testing.T, s *Server) *grpc.ClientConn {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	s.Register(srv)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestAgentService_Run(t *testing.T) {
	s := NewServer(runnerFunc(func(ctx context.Context, q string) (string, error) {
		if q == "loop" {
			return "", pkgerrors.Wrap(pkgerrors.ErrInconclusive, "8 turns")
		}
		return "answer to " + q, nil
	}), nil)
	conn := dial(t, s)
	ctx := context.Background()

	out := new(wrapperspb.StringValue)
	require.NoError(t, conn.Invoke(ctx, "/"+ServiceName+"/Run", wrapperspb.String("check errors"), out))
	assert.Equal(t, "answer to check errors", out.GetValue())

	err := conn.Invoke(ctx, "/"+ServiceName+"/Run", wrapperspb.String("loop"), out)
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))

	err = conn.Invoke(ctx, "/"+ServiceName+"/Run", wrapperspb.String(""), out)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestAgentService_Query(t *testing.T) {
	s := NewServer(nil, querierFunc(func(ctx context.Context, q string) (*query.Answer, error) {
		if q == "down" {
			return nil, pkgerrors.Join(pkgerrors.ErrUpstreamUnavailable, errors.New("503"))
		}
		return &query.Answer{Answer: "NO", Evidence: []string{}}, nil
	}))
	conn := dial(t, s)
	ctx := context.Background()

	out := new(wrapperspb.StringValue)
	require.NoError(t, conn.Invoke(ctx, "/"+ServiceName+"/Query", wrapperspb.String("did it crash?"), out))
	assert.JSONEq(t, `{"answer":"NO","evidence":[]}`, out.GetValue())

	err := conn.Invoke(ctx, "/"+ServiceName+"/Query", wrapperspb.String("down"), out)
	assert.Equal(t, codes.Unavailable, status.Code(err))

	err = conn.Invoke(ctx, "/"+ServiceName+"/Run", wrapperspb.String("x"), out)
	assert.Equal(t, codes.Unavailable, status.Code(err), "runner not configured")
}

func TestHealthService(t *testing.T) {
	conn := dial(t, NewServer(nil, nil))
	resp, err := healthpb.NewHealthClient(conn).Check(context.Background(), &healthpb.HealthCheckRequest{Service: ServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
}
