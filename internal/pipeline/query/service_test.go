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

package query

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	einoretriever "github.com/cloudwego/eino/components/retriever"
	"github.com/cloudwego/eino/schema"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"log-agent/internal/model/llm"
	"log-agent/internal/storage/logfile"
	pkgerrors "log-agent/pkg/errors"
)

type fakeLLM struct {
	reply   string
	err     error
	prompts []string
}

func (f *fakeLLM) ChatWithContext(ctx context.Context, msgs []llm.Message, _ llm.GenerateOptions) (string, error) {
	f.prompts = append(f.prompts, msgs[len(msgs)-1].Content)
	return f.reply, f.err
}
func (f *fakeLLM) Model() string    { return "fake" }
func (f *fakeLLM) Provider() string { return "fake" }

type fakeRetriever struct {
	docs []*schema.Document
	topK int
}

func (f *fakeRetriever) Retrieve(ctx context.Context, q string, opts ...einoretriever.Option) ([]*schema.Document, error) {
	o := einoretriever.GetCommonOptions(&einoretriever.Options{}, opts...)
	if o.TopK != nil {
		f.topK = *o.TopK
	}
	return f.docs, nil
}

func newFile(t *testing.T, lines ...string) *logfile.File {
	t.Helper()
	f := logfile.New(afero.NewMemMapFs(), "log.txt")
	require.NoError(t, f.Append(lines))
	return f
}

func TestQueryLogs_NoDocs(t *testing.T) {
	client := &fakeLLM{}
	svc := NewService(&fakeRetriever{}, newFile(t), client, Config{}, nil)

	ans, err := svc.QueryLogs(context.Background(), "did postgres fail?")
	require.NoError(t, err)
	assert.Equal(t, NoRelevantLogs, ans.Answer)
	assert.Empty(t, ans.Evidence)
	assert.Empty(t, client.prompts, "no LLM call without evidence")
}

func TestQueryLogs_ParsesJSON(t *testing.T) {
	ret := &fakeRetriever{docs: []*schema.Document{{Content: "t | s | postgres FATAL: too many connections"}}}
	client := &fakeLLM{reply: "```json\n{\"answer\":\"YES\",\"evidence\":[\"postgres FATAL\"]}\n```"}
	svc := NewService(ret, newFile(t), client, Config{TopK: 7}, nil)

	ans, err := svc.QueryLogs(context.Background(), "did postgres fail?")
	require.NoError(t, err)
	assert.Equal(t, "YES", ans.Answer)
	assert.Equal(t, []string{"postgres FATAL"}, ans.Evidence)
	assert.Equal(t, 7, ret.topK)
	require.Len(t, client.prompts, 1)
	assert.Contains(t, client.prompts[0], "too many connections")
	assert.Contains(t, client.prompts[0], "did postgres fail?")
}

func TestQueryLogs_PlainTextAnswer(t *testing.T) {
	ret := &fakeRetriever{docs: []*schema.Document{{Content: "line one"}}}
	svc := NewService(ret, newFile(t), &fakeLLM{reply: "Nothing suspicious."}, Config{}, nil)

	ans, err := svc.QueryLogs(context.Background(), "anything odd?")
	require.NoError(t, err)
	assert.Equal(t, "Nothing suspicious.", ans.Answer)
	assert.Equal(t, []string{"line one"}, ans.Evidence)
}

func TestQueryLogs_Errors(t *testing.T) {
	svc := NewService(&fakeRetriever{}, newFile(t), nil, Config{}, nil)
	_, err := svc.QueryLogs(context.Background(), "  ")
	assert.ErrorIs(t, err, pkgerrors.ErrInvalidArg)

	ret := &fakeRetriever{docs: []*schema.Document{{Content: "x"}}}
	svc = NewService(ret, newFile(t), nil, Config{}, nil)
	_, err = svc.QueryLogs(context.Background(), "q")
	assert.ErrorIs(t, err, pkgerrors.ErrUpstreamUnavailable)

	svc = NewService(ret, newFile(t), &fakeLLM{err: errors.New("503")}, Config{}, nil)
	_, err = svc.QueryLogs(context.Background(), "q")
	assert.ErrorIs(t, err, pkgerrors.ErrUpstreamUnavailable)
}

func TestErrorLogs(t *testing.T) {
	file := newFile(t,
		"t1 | a | started",
		"t2 | a | ERROR disk full",
		"t3 | b | java.lang.NullPointerException",
		"t4 | b | request ok",
		"t5 | c | health check Failed",
	)
	svc := NewService(&fakeRetriever{}, file, nil, Config{ErrorLimit: 2}, nil)

	res, err := svc.ErrorLogs(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Count)
	assert.Equal(t, []string{"t3 | b | java.lang.NullPointerException", "t5 | c | health check Failed"}, res.Logs)

	res, err = svc.ErrorLogs(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Count)
}

func TestErrorLogs_EmptyFile(t *testing.T) {
	svc := NewService(&fakeRetriever{}, logfile.New(afero.NewMemMapFs(), "none.txt"), nil, Config{}, nil)
	res, err := svc.ErrorLogs(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Count)
	assert.NotNil(t, res.Logs)
}

func TestSummaryLogs(t *testing.T) {
	client := &fakeLLM{reply: "  Two services restarted.  "}
	file := newFile(t, "l1", "l2", "l3")
	svc := NewService(&fakeRetriever{}, file, client, Config{SummaryLines: 2}, nil)

	sum, err := svc.SummaryLogs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Two services restarted.", sum.Summary)
	assert.Equal(t, 2, sum.Lines)
	assert.NotContains(t, client.prompts[0], "l1")
	assert.Contains(t, client.prompts[0], "l2\nl3")

	empty := NewService(&fakeRetriever{}, logfile.New(afero.NewMemMapFs(), "x"), client, Config{}, nil)
	sum, err = empty.SummaryLogs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, NoLogs, sum.Summary)
}

func TestHealthReport(t *testing.T) {
	lines := make([]string, 0, 100)
	for i := range 97 {
		lines = append(lines, fmt.Sprintf("t%d | web | ok", i))
	}
	lines = append(lines, "t97 | web | WARN slow", "t98 | db | ERROR timeout", "t99 | db | panic: nil map")
	client := &fakeLLM{reply: "DB is unstable."}
	svc := NewService(&fakeRetriever{}, newFile(t, lines...), client, Config{}, nil)

	h, err := svc.HealthReport(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 100, h.TotalLines)
	assert.Equal(t, 2, h.ErrorCount)
	assert.Equal(t, 1, h.WarningCount)
	assert.Equal(t, map[string]int{"db": 2}, h.StreamErrors)
	assert.Equal(t, "degraded", h.Status)
	assert.Equal(t, "DB is unstable.", h.Report)
	assert.True(t, strings.Contains(client.prompts[0], "panic: nil map"))
}

func TestHealthReport_FallbackAndStatus(t *testing.T) {
	svc := NewService(&fakeRetriever{}, newFile(t, "a | s | ERROR x", "b | s | ok"), &fakeLLM{err: errors.New("down")}, Config{}, nil)
	h, err := svc.HealthReport(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "critical", h.Status)
	assert.Contains(t, h.Report, "status=critical")

	empty := NewService(&fakeRetriever{}, logfile.New(afero.NewMemMapFs(), "x"), nil, Config{}, nil)
	h, err = empty.HealthReport(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "healthy", h.Status)
	assert.Equal(t, NoLogs, h.Report)
}

func TestStatusOf(t *testing.T) {
	assert.Equal(t, "healthy", statusOf(0, 0))
	assert.Equal(t, "degraded", statusOf(1, 0.049))
	assert.Equal(t, "critical", statusOf(5, 0.05))
}
