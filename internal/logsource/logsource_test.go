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

package logsource

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs/types"
	"github.com/aws/smithy-go"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"log-agent/pkg/config"
)

// fakeCW 按 token 返回预置分页；throttleOnce 时第一次调用返回限流错误
type fakeCW struct {
	pages        map[string]*cloudwatchlogs.FilterLogEventsOutput
	inputs       []cloudwatchlogs.FilterLogEventsInput
	throttleOnce bool
	failAlways   bool
}

func (f *fakeCW) FilterLogEvents(ctx context.Context, in *cloudwatchlogs.FilterLogEventsInput, _ ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.FilterLogEventsOutput, error) {
	f.inputs = append(f.inputs, *in)
	if f.failAlways {
		return nil, &smithy.GenericAPIError{Code: "AccessDeniedException", Message: "no"}
	}
	if f.throttleOnce {
		f.throttleOnce = false
		return nil, &smithy.GenericAPIError{Code: "ThrottlingException", Message: "slow down"}
	}
	return f.pages[aws.ToString(in.NextToken)], nil
}

func event(ts int64, stream, msg string) types.FilteredLogEvent {
	return types.FilteredLogEvent{Timestamp: aws.Int64(ts), LogStreamName: aws.String(stream), Message: aws.String(msg)}
}

func newFake() *fakeCW {
	return &fakeCW{pages: map[string]*cloudwatchlogs.FilterLogEventsOutput{
		"": {
			Events:    []types.FilteredLogEvent{event(1000, "s1", "a"), event(1001, "s1", "b")},
			NextToken: aws.String("t2"),
		},
		"t2": {
			Events: []types.FilteredLogEvent{{Timestamp: aws.Int64(1002), Message: aws.String("c")}},
		},
	}}
}

func TestCloudWatchSource_Paginates(t *testing.T) {
	f := newFake()
	src := NewCloudWatchSourceWithClient(f, config.SourceConfig{LogGroup: "/ec2/logs", PageLimit: 50, PageDelay: "1ms"}, nil)

	events, err := src.Pull(context.Background(), 999)
	require.NoError(t, err)
	assert.Equal(t, []Event{
		{Timestamp: 1000, Stream: "s1", Message: "a"},
		{Timestamp: 1001, Stream: "s1", Message: "b"},
		{Timestamp: 1002, Message: "c"},
	}, events)

	require.Len(t, f.inputs, 2)
	assert.Equal(t, "/ec2/logs", aws.ToString(f.inputs[0].LogGroupName))
	assert.EqualValues(t, 999, aws.ToInt64(f.inputs[0].StartTime))
	assert.EqualValues(t, 50, aws.ToInt32(f.inputs[0].Limit))
	assert.Equal(t, "t2", aws.ToString(f.inputs[1].NextToken))
	assert.Equal(t, "cloudwatch:/ec2/logs", src.Name())
}

func TestCloudWatchSource_RetriesThrottlingOnce(t *testing.T) {
	f := newFake()
	f.throttleOnce = true
	src := NewCloudWatchSourceWithClient(f, config.SourceConfig{LogGroup: "g", PageDelay: "1ms"}, nil)

	events, err := src.Pull(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, events, 3)
	assert.Len(t, f.inputs, 3)
}

func TestCloudWatchSource_OtherErrorsFail(t *testing.T) {
	f := &fakeCW{failAlways: true}
	src := NewCloudWatchSourceWithClient(f, config.SourceConfig{LogGroup: "g"}, nil)
	_, err := src.Pull(context.Background(), 0)
	assert.ErrorContains(t, err, "AccessDeniedException")
	assert.Len(t, f.inputs, 1)
}

func TestCloudWatchSource_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	src := NewCloudWatchSourceWithClient(newFake(), config.SourceConfig{LogGroup: "g", PageDelay: "1s"}, nil)
	_, err := src.Pull(ctx, 0)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFileSource_Pull(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "events.jsonl", []byte(
		`{"timestamp":100,"logStreamName":"s","message":"old"}`+"\n\n"+
			`{"timestamp":200,"logStreamName":"s","message":"ERROR new"}`+"\n"), 0o644))

	src := NewFileSource(fs, "events.jsonl")
	events, err := src.Pull(context.Background(), 150)
	require.NoError(t, err)
	assert.Equal(t, []Event{{Timestamp: 200, Stream: "s", Message: "ERROR new"}}, events)

	missing, err := NewFileSource(fs, "nope.jsonl").Pull(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, missing)
}

func TestFileSource_BadLine(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "e.jsonl", []byte("{oops\n"), 0o644))
	_, err := NewFileSource(fs, "e.jsonl").Pull(context.Background(), 0)
	assert.ErrorContains(t, err, "e.jsonl:1")
}
