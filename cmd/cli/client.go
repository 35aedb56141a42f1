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

package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
)

func apiBaseURL() string {
	if u := os.Getenv("LOG_AGENT_API_URL"); u != "" {
		return u
	}
	return "http://localhost:8080"
}

// client 调用 log-agent HTTP API
type client struct {
	http *resty.Client
}

func newClient(baseURL string) *client {
	c := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(5 * time.Minute).
		SetHeader("Content-Type", "application/json")
	if tok := os.Getenv("LOG_AGENT_TOKEN"); tok != "" {
		c.SetAuthToken(tok)
	}
	return &client{http: c}
}

// apiError 非 2xx 响应
type apiError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Status, e.Body)
}

func (c *client) do(method, path string, body, out any) error {
	req := c.http.R().SetResult(out)
	if body != nil {
		req.SetBody(body)
	}
	resp, err := req.Execute(method, path)
	if err != nil {
		return err
	}
	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return &apiError{Method: method, Path: path, Status: resp.StatusCode(), Body: resp.String()}
	}
	return nil
}

func (c *client) login(username, token string) (string, error) {
	var out struct {
		Token string `json:"token"`
	}
	err := c.do(http.MethodPost, "/login", map[string]string{"username": username, "token": token}, &out)
	return out.Token, err
}

func (c *client) refresh() (map[string]any, error) {
	var out map[string]any
	err := c.do(http.MethodPost, "/refresh", nil, &out)
	return out, err
}

func (c *client) query(q string) (map[string]any, error) {
	var out map[string]any
	err := c.do(http.MethodPost, "/query", map[string]string{"q": q}, &out)
	return out, err
}

func (c *client) summary() (map[string]any, error) {
	var out map[string]any
	err := c.do(http.MethodGet, "/summary", nil, &out)
	return out, err
}

func (c *client) health() (map[string]any, error) {
	var out map[string]any
	err := c.do(http.MethodGet, "/health", nil, &out)
	return out, err
}

func (c *client) errorLogs(limit int) (map[string]any, error) {
	path := "/errors"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var out map[string]any
	err := c.do(http.MethodGet, path, nil, &out)
	return out, err
}

// agentReply POST /agent 的响应
type agentReply struct {
	Response string `json:"response"`
	Status   string `json:"status"`
	Error    string `json:"error,omitempty"`
}

func (c *client) agent(query string) (*agentReply, error) {
	var out agentReply
	if err := c.do(http.MethodPost, "/agent", map[string]string{"query": query}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *client) tools() ([]map[string]any, error) {
	var out struct {
		Tools []map[string]any `json:"tools"`
	}
	err := c.do(http.MethodGet, "/tools", nil, &out)
	return out.Tools, err
}

func prettyJSON(v any) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}
