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
	"io"
	"net"
	"net/http"
	"regexp"
	"strconv"

	goopenai "github.com/sashabaranov/go-openai"

	"log-agent/pkg/errors"
)

// OpenAI 兼容客户端的错误文本形如 "error, status code: 429, status: ..."
var statusCodePattern = regexp.MustCompile(`status code: (\d{3})`)

// statusCoder 自带 HTTP 状态码的错误
type statusCoder interface {
	StatusCode() int
}

// httpStatus 从模型调用错误中提取 HTTP 状态码
func httpStatus(err error) (int, bool) {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode > 0 {
		return apiErr.HTTPStatusCode, true
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode > 0 {
		return reqErr.HTTPStatusCode, true
	}
	var sc statusCoder
	if errors.As(err, &sc) && sc.StatusCode() > 0 {
		return sc.StatusCode(), true
	}
	if m := statusCodePattern.FindStringSubmatch(err.Error()); m != nil {
		if code, convErr := strconv.Atoi(m[1]); convErr == nil {
			return code, true
		}
	}
	return 0, false
}

// isTransient 429、408、5xx 与网络错误可重试；其余（鉴权失败、请求非法、上下文超长等）重试无意义
func isTransient(err error) bool {
	if code, ok := httpStatus(err); ok {
		return code == http.StatusTooManyRequests || code == http.StatusRequestTimeout || code >= http.StatusInternalServerError
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF)
}
