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

package tool

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "log-agent/pkg/errors"
)

type kindError struct{}

func (kindError) Error() string { return "quota exhausted" }
func (kindError) Kind() string  { return "QuotaError" }

func noParamTool(t *testing.T, calls *int) Tool {
	t.Helper()
	return MustNew("pull_logs", "pull", nil, func(ctx context.Context, in Input) (any, error) {
		*calls++
		return map[string]any{"ingested": 3}, nil
	})
}

func errorLogsTool() Tool {
	return MustNew("get_error_logs", "errors", []Param{
		{Name: "limit", Type: TypeInteger, Default: 200},
	}, func(ctx context.Context, in Input) (any, error) {
		return in.Int("limit", -1), nil
	})
}

// limit 在前、question 在后，用于验证插入顺序与排序顺序两种位置绑定
func twoParamTool() Tool {
	return MustNew("search", "search", []Param{
		{Name: "limit", Type: TypeInteger, Required: true},
		{Name: "question", Type: TypeString, Required: true},
	}, func(ctx context.Context, in Input) (any, error) {
		return in.String("question") + "#" + in.String("limit"), nil
	})
}

func TestNew_ComputesSpec(t *testing.T) {
	tl := twoParamTool()
	assert.Equal(t, 2, tl.Spec.MinArgs)
	assert.Equal(t, 2, tl.Spec.MaxArgs)
	assert.Equal(t, CallKeyword, tl.Spec.CallKind)

	tl = errorLogsTool()
	assert.Equal(t, 0, tl.Spec.MinArgs)
	assert.Equal(t, 1, tl.Spec.MaxArgs)

	tl = MustNew("noop", "", nil, func(ctx context.Context, in Input) (any, error) { return nil, nil })
	assert.Equal(t, CallNone, tl.Spec.CallKind)
}

func TestNew_Invalid(t *testing.T) {
	fn := func(ctx context.Context, in Input) (any, error) { return nil, nil }
	_, err := New("", "", nil, fn)
	assert.True(t, pkgerrors.Is(err, pkgerrors.ErrInvalidArg))
	_, err = New("x", "", nil, nil)
	assert.True(t, pkgerrors.Is(err, pkgerrors.ErrInvalidArg))
	_, err = New("x", "", []Param{{Name: "a"}, {Name: "b", Required: true}}, fn)
	assert.True(t, pkgerrors.Is(err, pkgerrors.ErrInvalidArg))
	_, err = New("x", "", []Param{{Name: "a"}, {Name: "a"}}, fn)
	assert.True(t, pkgerrors.Is(err, pkgerrors.ErrInvalidArg))
}

func TestInvoke_ZeroParamIgnoresArgs(t *testing.T) {
	calls := 0
	tl := noParamTool(t, &calls)
	iv := NewInvoker()

	for _, args := range []Args{EmptyArgs(), NamedArgs(Arg{Key: "foo", Value: "bar"}), NamedArgs(Arg{Key: SingleArgKey, Value: "x"})} {
		res := iv.Invoke(context.Background(), tl, CallRequest{ID: "c", Name: "pull_logs", Args: args})
		assert.Equal(t, StatusOK, res.Status)
		assert.Equal(t, BranchNoParams, res.Branch)
	}
	assert.Equal(t, 3, calls)
}

func TestInvoke_KeywordPath(t *testing.T) {
	res := NewInvoker().Invoke(context.Background(), errorLogsTool(), CallRequest{
		ID: "c1", Name: "get_error_logs", Args: NamedArgs(Arg{Key: "limit", Value: 5}),
	})
	require.Equal(t, StatusOK, res.Status)
	assert.Equal(t, BranchKeyword, res.Branch)
	assert.Equal(t, 5, res.Payload)
	assert.Equal(t, "c1", res.CallID)
}

func TestInvoke_DefaultWhenEmpty(t *testing.T) {
	res := NewInvoker().Invoke(context.Background(), errorLogsTool(), CallRequest{Name: "get_error_logs"})
	require.Equal(t, StatusOK, res.Status)
	assert.Equal(t, BranchEmpty, res.Branch)
	assert.Equal(t, 200, res.Payload)
}

func TestInvoke_MismatchedKeysFallBackToPositional(t *testing.T) {
	args := ParseArgs(`{"n": 7, "q": "why"}`)
	res := NewInvoker().Invoke(context.Background(), twoParamTool(), CallRequest{Name: "search", Args: args})
	require.Equal(t, StatusOK, res.Status, res.Payload)
	assert.Equal(t, BranchPositional, res.Branch)
	assert.Equal(t, "why#7", res.Payload)
}

func TestInvoke_SingleArgKeyPositional(t *testing.T) {
	res := NewInvoker().Invoke(context.Background(), errorLogsTool(), CallRequest{
		Name: "get_error_logs", Args: NamedArgs(Arg{Key: SingleArgKey, Value: "12"}),
	})
	require.Equal(t, StatusOK, res.Status)
	assert.Equal(t, BranchPositional, res.Branch)
	assert.Equal(t, 12, res.Payload)
}

func TestInvoke_SortedFallback(t *testing.T) {
	// 插入顺序 q、n 会把 "why" 绑到 limit 上而失败，排序后 n、q 成功
	args := ParseArgs(`{"q": "why", "n": 7}`)
	res := NewInvoker().Invoke(context.Background(), twoParamTool(), CallRequest{Name: "search", Args: args})
	require.Equal(t, StatusOK, res.Status, res.Payload)
	assert.Equal(t, BranchSorted, res.Branch)
	assert.Equal(t, "why#7", res.Payload)
}

func TestInvoke_PositionalOnlySkipsKeyword(t *testing.T) {
	tl := MustNew("echo", "", []Param{{Name: "text", Type: TypeString, Required: true}},
		func(ctx context.Context, in Input) (any, error) { return in.String("text"), nil },
		PositionalOnly())
	assert.Equal(t, CallPositional, tl.Spec.CallKind)
	res := NewInvoker().Invoke(context.Background(), tl, CallRequest{Name: "echo", Args: NamedArgs(Arg{Key: "text", Value: "hi"})})
	require.Equal(t, StatusOK, res.Status)
	assert.Equal(t, BranchPositional, res.Branch)
}

func TestInvoke_BindingExhausted(t *testing.T) {
	args := NamedArgs(Arg{Key: "a", Value: "x"}, Arg{Key: "b", Value: "y"}, Arg{Key: "c", Value: "z"})
	res := NewInvoker().Invoke(context.Background(), twoParamTool(), CallRequest{Name: "search", Args: args})
	assert.Equal(t, StatusError, res.Status)
	assert.Equal(t, BranchUnresolved, res.Branch)
	text := res.Text()
	assert.True(t, strings.HasPrefix(text, "TOOL_ERROR: ArgumentError: search:"), text)
	assert.Contains(t, text, "takes 2 positional arguments but 3 were given")
}

func TestInvoke_MissingRequiredWithEmptyArgs(t *testing.T) {
	res := NewInvoker().Invoke(context.Background(), twoParamTool(), CallRequest{Name: "search"})
	assert.Equal(t, StatusError, res.Status)
	assert.Equal(t, BranchEmpty, res.Branch)
	assert.True(t, strings.HasPrefix(res.Text(), "TOOL_ERROR: ArgumentError:"))
}

func TestInvoke_ToolErrorsNeverEscape(t *testing.T) {
	cases := []struct {
		name     string
		fn       Func
		wantKind string
		wantMsg  string
	}{
		{
			name:     "plain",
			fn:       func(ctx context.Context, in Input) (any, error) { return nil, errors.New("disk full") },
			wantKind: "Error",
			wantMsg:  "disk full",
		},
		{
			name: "typed",
			fn: func(ctx context.Context, in Input) (any, error) {
				_, err := os.Open("/definitely/not/here")
				return nil, err
			},
			wantKind: "PathError",
			wantMsg:  "/definitely/not/here",
		},
		{
			name:     "kind",
			fn:       func(ctx context.Context, in Input) (any, error) { return nil, kindError{} },
			wantKind: "QuotaError",
			wantMsg:  "quota exhausted",
		},
		{
			name:     "panic",
			fn:       func(ctx context.Context, in Input) (any, error) { panic("nil map write") },
			wantKind: "Panic",
			wantMsg:  "nil map write",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tl := MustNew("t", "", nil, tc.fn)
			res := NewInvoker().Invoke(context.Background(), tl, CallRequest{Name: "t"})
			assert.Equal(t, StatusError, res.Status)
			text := res.Text()
			assert.True(t, strings.HasPrefix(text, "TOOL_ERROR: "+tc.wantKind+": "), text)
			assert.Contains(t, text, tc.wantMsg)
		})
	}
}

func TestInvoke_Timeout(t *testing.T) {
	tl := MustNew("slow", "", nil, func(ctx context.Context, in Input) (any, error) {
		<-ctx.Done()
		time.Sleep(10 * time.Millisecond)
		return "late", nil
	})
	res := NewInvoker(WithTimeout(20*time.Millisecond)).Invoke(context.Background(), tl, CallRequest{Name: "slow"})
	assert.Equal(t, StatusError, res.Status)
	assert.True(t, strings.HasPrefix(res.Text(), "TOOL_ERROR: Timeout: "), res.Text())
}

func TestInvoke_Canceled(t *testing.T) {
	tl := MustNew("block", "", nil, func(ctx context.Context, in Input) (any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := NewInvoker().Invoke(ctx, tl, CallRequest{Name: "block"})
	assert.True(t, strings.HasPrefix(res.Text(), "TOOL_ERROR: Canceled: "), res.Text())
}

func TestInvoke_IdempotentBranch(t *testing.T) {
	args := ParseArgs(`{"q": "why", "n": 7}`)
	iv := NewInvoker()
	first := iv.Invoke(context.Background(), twoParamTool(), CallRequest{Name: "search", Args: args})
	for i := 0; i < 5; i++ {
		again := iv.Invoke(context.Background(), twoParamTool(), CallRequest{Name: "search", Args: args})
		assert.Equal(t, first.Branch, again.Branch)
		assert.Equal(t, first.Payload, again.Payload)
	}
}

func TestUnknown(t *testing.T) {
	res := Unknown(CallRequest{ID: "x", Name: "rm_rf"})
	assert.Equal(t, StatusUnknown, res.Status)
	assert.Equal(t, "TOOL_ERROR: unknown tool rm_rf", res.Text())
}

func TestErrorKind_Wrapped(t *testing.T) {
	_, err := os.Open("/nope/nope")
	assert.Equal(t, "PathError", ErrorKind(pkgerrors.Wrap(err, "open")))
	assert.Equal(t, "Error", ErrorKind(pkgerrors.Wrap(pkgerrors.ErrNotFound, "x")))
	assert.Equal(t, "Timeout", ErrorKind(context.DeadlineExceeded))
}
