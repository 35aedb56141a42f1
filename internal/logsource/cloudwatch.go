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
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/smithy-go"

	pkgconfig "log-agent/pkg/config"
	"log-agent/pkg/log"
)

const (
	defaultPageLimit int32 = 10000
	defaultPageDelay       = 100 * time.Millisecond
)

// FilterLogEventsAPI CloudWatchSource 使用的 CloudWatch Logs 接口子集
type FilterLogEventsAPI interface {
	FilterLogEvents(ctx context.Context, in *cloudwatchlogs.FilterLogEventsInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.FilterLogEventsOutput, error)
}

// CloudWatchSource 通过 FilterLogEvents 分页拉取一个日志组
type CloudWatchSource struct {
	client    FilterLogEventsAPI
	logGroup  string
	pageLimit int32
	pageDelay time.Duration
	logger    *log.Logger
}

// NewCloudWatchSource 使用默认凭证链创建 CloudWatchSource
func NewCloudWatchSource(ctx context.Context, cfg pkgconfig.SourceConfig, logger *log.Logger) (*CloudWatchSource, error) {
	if cfg.LogGroup == "" {
		return nil, fmt.Errorf("source.log_group 不能为空")
	}
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("加载 AWS 配置失败: %w", err)
	}
	return NewCloudWatchSourceWithClient(cloudwatchlogs.NewFromConfig(awsCfg), cfg, logger), nil
}

// NewCloudWatchSourceWithClient 使用给定客户端创建 CloudWatchSource
func NewCloudWatchSourceWithClient(client FilterLogEventsAPI, cfg pkgconfig.SourceConfig, logger *log.Logger) *CloudWatchSource {
	if logger == nil {
		logger = log.Nop()
	}
	limit := cfg.PageLimit
	if limit <= 0 {
		limit = defaultPageLimit
	}
	return &CloudWatchSource{
		client:    client,
		logGroup:  cfg.LogGroup,
		pageLimit: limit,
		pageDelay: pkgconfig.ParseDuration(cfg.PageDelay, defaultPageDelay),
		logger:    logger,
	}
}

// Name 实现 Source
func (s *CloudWatchSource) Name() string { return "cloudwatch:" + s.logGroup }

// Pull 实现 Source；分页之间等待 pageDelay，限流错误重试一次
func (s *CloudWatchSource) Pull(ctx context.Context, startMS int64) ([]Event, error) {
	p := cloudwatchlogs.NewFilterLogEventsPaginator(s.client, &cloudwatchlogs.FilterLogEventsInput{
		LogGroupName: aws.String(s.logGroup),
		StartTime:    aws.Int64(startMS),
	}, func(o *cloudwatchlogs.FilterLogEventsPaginatorOptions) {
		o.Limit = s.pageLimit
	})

	var events []Event
	for page := 0; p.HasMorePages(); page++ {
		if page > 0 {
			if err := sleep(ctx, s.pageDelay); err != nil {
				return nil, err
			}
		}
		out, err := p.NextPage(ctx)
		if isThrottling(err) {
			s.logger.Warn("CloudWatch 限流，稍后重试", "log_group", s.logGroup, "page", page)
			if err := sleep(ctx, s.pageDelay); err != nil {
				return nil, err
			}
			out, err = p.NextPage(ctx)
		}
		if err != nil {
			return nil, fmt.Errorf("FilterLogEvents %s: %w", s.logGroup, err)
		}
		for _, e := range out.Events {
			events = append(events, Event{
				Timestamp: aws.ToInt64(e.Timestamp),
				Stream:    aws.ToString(e.LogStreamName),
				Message:   aws.ToString(e.Message),
			})
		}
	}
	s.logger.Debug("CloudWatch 拉取完成", "log_group", s.logGroup, "events", len(events), "start", startMS)
	return events, nil
}

func isThrottling(err error) bool {
	var ae smithy.APIError
	return errors.As(err, &ae) && ae.ErrorCode() == "ThrottlingException"
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
