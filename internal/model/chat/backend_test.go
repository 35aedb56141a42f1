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

package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	goopenai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "log-agent/pkg/errors"
)

// scriptedModel 依次返回预置回复或错误
type scriptedModel struct {
	replies []*schema.Message
	errs    []error
	calls   int
	inputs  [][]*schema.Message
	tools   []*schema.ToolInfo
}

func (m *scriptedModel) Generate(ctx context.Context, in []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	i := m.calls
	m.calls++
	m.inputs = append(m.inputs, in)
	if i < len(m.errs) && m.errs[i] != nil {
		return nil, m.errs[i]
	}
	if i < len(m.replies) {
		return m.replies[i], nil
	}
	return schema.AssistantMessage("", nil), nil
}

func (m *scriptedModel) Stream(ctx context.Context, in []*schema.Message, _ ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("not supported")
}

func (m *scriptedModel) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	m.tools = tools
	return m, nil
}

// statusError 模拟携带 HTTP 状态码的提供方错误
type statusError struct{ code int }

func (e statusError) Error() string { return fmt.Sprintf("error, status code: %d", e.code) }
func (e statusError) StatusCode() int { return e.code }

var fastRetry = RetryPolicy{MaxRetries: 2, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond}

func TestEinoBackend_MapsToolCalls(t *testing.T) {
	reply := schema.AssistantMessage("checking", []schema.ToolCall{
		{ID: "c1", Function: schema.FunctionCall{Name: "get_error_logs", Arguments: `{"limit": 5}`}},
		{Function: schema.FunctionCall{Name: "health_report", Arguments: ""}},
	})
	m := &scriptedModel{replies: []*schema.Message{reply}}
	tools := []*schema.ToolInfo{{Name: "get_error_logs"}, {Name: "health_report"}}

	b, err := NewEinoBackend(m, tools, WithRetry(fastRetry), WithSystemPrompt("sys"))
	require.NoError(t, err)
	assert.Len(t, m.tools, 2)

	r, err := b.Send(context.Background(), "check errors")
	require.NoError(t, err)
	assert.Equal(t, "checking", r.Content)
	require.Len(t, r.ToolCalls, 2)
	assert.Equal(t, "c1", r.ToolCalls[0].ID)
	assert.Equal(t, "get_error_logs", r.ToolCalls[0].Name)
	v, ok := r.ToolCalls[0].Args.Get("limit")
	require.True(t, ok)
	assert.Equal(t, json.Number("5"), v)
	assert.NotEmpty(t, r.ToolCalls[1].ID)
	assert.True(t, r.ToolCalls[1].Args.IsEmpty())

	require.Len(t, m.inputs[0], 2)
	assert.Equal(t, schema.System, m.inputs[0][0].Role)
	assert.Equal(t, "sys", m.inputs[0][0].Content)
	assert.Equal(t, "check errors", m.inputs[0][1].Content)
}

func TestEinoBackend_RetriesTransient(t *testing.T) {
	m := &scriptedModel{
		errs:    []error{statusError{code: 503}, statusError{code: 429}},
		replies: []*schema.Message{nil, nil, schema.AssistantMessage("Done.", nil)},
	}
	b, err := NewEinoBackend(m, nil, WithRetry(fastRetry))
	require.NoError(t, err)

	r, err := b.Send(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "Done.", r.Content)
	assert.Equal(t, 3, m.calls)
}

func TestEinoBackend_ExhaustedIsUpstreamUnavailable(t *testing.T) {
	boom := statusError{code: 503}
	m := &scriptedModel{errs: []error{boom, boom, boom, boom}}
	b, err := NewEinoBackend(m, nil, WithRetry(fastRetry))
	require.NoError(t, err)

	_, err = b.Send(context.Background(), "hi")
	assert.ErrorIs(t, err, pkgerrors.ErrUpstreamUnavailable)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 3, m.calls)
}

func TestEinoBackend_PermanentErrorNotRetried(t *testing.T) {
	cases := map[string]error{
		"status coder": statusError{code: 401},
		"api error":    fmt.Errorf("generate: %w", &goopenai.APIError{HTTPStatusCode: 400, Message: "context length exceeded"}),
		"message only": errors.New("error, status code: 404, status: 404 Not Found, message: model not found"),
		"plain error":  errors.New("invalid tool schema"),
	}
	for name, cause := range cases {
		t.Run(name, func(t *testing.T) {
			m := &scriptedModel{errs: []error{cause, cause, cause, cause}}
			b, err := NewEinoBackend(m, nil, WithRetry(fastRetry))
			require.NoError(t, err)

			_, err = b.Send(context.Background(), "hi")
			assert.ErrorIs(t, err, pkgerrors.ErrUpstreamUnavailable)
			assert.ErrorIs(t, err, cause)
			assert.Equal(t, 1, m.calls)
		})
	}
}

func TestIsTransient(t *testing.T) {
	assert.True(t, isTransient(statusError{code: 429}))
	assert.True(t, isTransient(statusError{code: 502}))
	assert.True(t, isTransient(&goopenai.RequestError{HTTPStatusCode: 500, Err: errors.New("bad gateway")}))
	assert.True(t, isTransient(errors.New("error, status code: 503, status: 503 Service Unavailable")))
	assert.True(t, isTransient(&net.OpError{Op: "dial", Err: errors.New("connection refused")}))
	assert.True(t, isTransient(fmt.Errorf("read body: %w", io.ErrUnexpectedEOF)))

	assert.False(t, isTransient(statusError{code: 401}))
	assert.False(t, isTransient(&goopenai.APIError{HTTPStatusCode: 400}))
	assert.False(t, isTransient(errors.New("invalid tool schema")))
}

func TestEinoBackend_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m := &scriptedModel{errs: []error{context.Canceled}}
	b, err := NewEinoBackend(m, nil, WithRetry(fastRetry))
	require.NoError(t, err)

	_, err = b.Send(ctx, "hi")
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, pkgerrors.ErrUpstreamUnavailable)
}

func TestNewOpenAIChatModel_RequiresKey(t *testing.T) {
	_, err := NewOpenAIChatModel(context.Background(), "gpt-4o-mini", "", "", 0)
	assert.Error(t, err)
}
