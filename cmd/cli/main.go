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
	"bufio"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"log-agent/pkg/config"
)

const version = "log-agent cli 0.1.0"

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// run 执行子命令并返回退出码
func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		printUsage(stdout)
		return 0
	}
	cmd, rest := args[0], args[1:]
	c := newClient(apiBaseURL())

	emit := func(v any, err error) int {
		if err != nil {
			fmt.Fprintf(stderr, "%s 失败: %v\n", cmd, err)
			return 1
		}
		fmt.Fprintln(stdout, prettyJSON(v))
		return 0
	}

	switch cmd {
	case "version":
		fmt.Fprintln(stdout, version)
		return 0
	case "config":
		return runConfig(stdout, stderr)
	case "server", "worker":
		if len(rest) == 0 || rest[0] != "start" {
			fmt.Fprintf(stderr, "Usage: log-agent %s start\n", cmd)
			return 1
		}
		target := "./cmd/api"
		if cmd == "worker" {
			target = "./cmd/worker"
		}
		return runGo(target, stdout, stderr)
	case "login":
		if len(rest) < 2 {
			fmt.Fprintf(stderr, "Usage: log-agent login <username> <token>\n")
			return 1
		}
		tok, err := c.login(rest[0], rest[1])
		if err != nil {
			fmt.Fprintf(stderr, "登录失败: %v\n", err)
			return 1
		}
		fmt.Fprintln(stdout, tok)
		return 0
	case "refresh":
		return emit(c.refresh())
	case "query":
		if len(rest) == 0 {
			fmt.Fprintf(stderr, "Usage: log-agent query <question>\n")
			return 1
		}
		return emit(c.query(strings.Join(rest, " ")))
	case "summary":
		return emit(c.summary())
	case "health":
		return emit(c.health())
	case "errors":
		limit := 0
		if len(rest) > 0 {
			n, err := strconv.Atoi(rest[0])
			if err != nil || n < 0 {
				fmt.Fprintf(stderr, "Usage: log-agent errors [limit]\n")
				return 1
			}
			limit = n
		}
		return emit(c.errorLogs(limit))
	case "tools":
		return emit(c.tools())
	case "agent":
		if len(rest) == 0 {
			fmt.Fprintf(stderr, "Usage: log-agent agent <query>\n")
			return 1
		}
		return printAgent(c, strings.Join(rest, " "), stdout, stderr)
	case "chat":
		return runChat(c, stdin, stdout, stderr)
	default:
		printUsage(stderr)
		return 1
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: log-agent <command> [args]")
	fmt.Fprintln(w, "  version              - 显示版本")
	fmt.Fprintln(w, "  config               - 显示配置概要")
	fmt.Fprintln(w, "  server start         - 启动 API 服务（go run ./cmd/api）")
	fmt.Fprintln(w, "  worker start         - 启动 Worker 服务（go run ./cmd/worker）")
	fmt.Fprintln(w, "  login <user> <token> - 获取 JWT，输出令牌（设置到 LOG_AGENT_TOKEN）")
	fmt.Fprintln(w, "  refresh              - 立即增量拉取日志")
	fmt.Fprintln(w, "  query <question>     - 语义检索并回答")
	fmt.Fprintln(w, "  summary              - 最近日志摘要")
	fmt.Fprintln(w, "  health               - 健康报告")
	fmt.Fprintln(w, "  errors [limit]       - 最近的错误日志")
	fmt.Fprintln(w, "  tools                - 列出 Agent 可用工具")
	fmt.Fprintln(w, "  agent <query>        - 单次 Agent 对话")
	fmt.Fprintln(w, "  chat                 - 交互式 Agent 对话")
	fmt.Fprintln(w, "环境变量: LOG_AGENT_API_URL（默认 http://localhost:8080）、LOG_AGENT_TOKEN")
}

func runConfig(stdout, stderr io.Writer) int {
	cfg, err := config.LoadAPIConfig()
	if err != nil {
		fmt.Fprintf(stderr, "加载配置失败: %v\n", err)
		return 1
	}
	fmt.Fprintf(stdout, "api=%s:%d\n", cfg.API.Host, cfg.API.Port)
	fmt.Fprintf(stdout, "source=%s log_group=%s\n", cfg.Source.Type, cfg.Source.LogGroup)
	fmt.Fprintf(stdout, "logfile=%s\n", cfg.LogFilePath())
	fmt.Fprintf(stdout, "vector=%s checkpoint=%s\n", cfg.Storage.Vector.Type, cfg.Storage.Checkpoint.Type)
	fmt.Fprintf(stdout, "llm=%s embedding=%s\n", cfg.Model.Defaults.LLM, cfg.Model.Defaults.Embedding)
	return 0
}

func runGo(target string, stdout, stderr io.Writer) int {
	c := exec.Command("go", "run", target)
	c.Stdout = stdout
	c.Stderr = stderr
	c.Dir = "."
	if err := c.Run(); err != nil {
		fmt.Fprintf(stderr, "%s: %v\n", target, err)
		return 1
	}
	return 0
}

func printAgent(c *client, query string, stdout, stderr io.Writer) int {
	r, err := c.agent(query)
	if err != nil {
		fmt.Fprintf(stderr, "agent 失败: %v\n", err)
		return 1
	}
	if r.Status != "done" {
		fmt.Fprintf(stderr, "[%s] %s\n", r.Status, r.Error)
		return 2
	}
	fmt.Fprintln(stdout, r.Response)
	return 0
}

func runChat(c *client, stdin io.Reader, stdout, stderr io.Writer) int {
	reader := bufio.NewReader(stdin)
	for {
		fmt.Fprint(stdout, "> ")
		line, err := reader.ReadString('\n')
		msg := strings.TrimSpace(line)
		if msg == "exit" || msg == "quit" {
			return 0
		}
		if msg != "" {
			printAgent(c, msg, stdout, stderr)
		}
		if err != nil {
			return 0
		}
	}
}
