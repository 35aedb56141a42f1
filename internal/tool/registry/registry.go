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

package registry

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/cloudwego/eino/schema"

	"log-agent/internal/tool"
	"log-agent/pkg/errors"
)

// Registry 工具注册表：注册、发现、供 LLM 使用的 Schema 列表。启动后只读，可被多个 Run 并发共享
type Registry struct {
	mu    sync.RWMutex
	tools map[string]tool.Tool
	order []string
}

// New 创建新的 ToolRegistry
func New() *Registry {
	return &Registry{
		tools: make(map[string]tool.Tool),
	}
}

// Register 注册工具；同名重复注册返回 ErrDuplicateTool
func (r *Registry) Register(t tool.Tool) error {
	if t.Spec.Name == "" || t.Func == nil {
		return errors.Wrap(errors.ErrInvalidArg, "tool must have a name and a func")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tools[t.Spec.Name]; ok {
		return errors.Wrapf(errors.ErrDuplicateTool, "tool %s", t.Spec.Name)
	}
	r.tools[t.Spec.Name] = t
	r.order = append(r.order, t.Spec.Name)
	return nil
}

// MustRegister 注册多个工具，失败时 panic（启动期配置错误）
func (r *Registry) MustRegister(ts ...tool.Tool) {
	for _, t := range ts {
		if err := r.Register(t); err != nil {
			panic(err)
		}
	}
}

// Resolve 按名称精确查找
func (r *Registry) Resolve(name string) (tool.Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// List 按注册顺序返回所有工具
func (r *Registry) List() []tool.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := make([]tool.Tool, 0, len(r.order))
	for _, name := range r.order {
		list = append(list, r.tools[name])
	}
	return list
}

// Specs 按注册顺序返回工具元数据
func (r *Registry) Specs() []tool.Spec {
	list := r.List()
	specs := make([]tool.Spec, len(list))
	for i, t := range list {
		specs[i] = t.Spec
	}
	return specs
}

// Dispatch 解析并调用；未知工具返回带标记的结果而非错误
func (r *Registry) Dispatch(ctx context.Context, iv *tool.Invoker, req tool.CallRequest) tool.Result {
	t, ok := r.Resolve(req.Name)
	if !ok {
		return tool.Unknown(req)
	}
	return iv.Invoke(ctx, t, req)
}

// ToolInfos 供 eino ToolCallingChatModel.WithTools 使用
func (r *Registry) ToolInfos() []*schema.ToolInfo {
	list := r.List()
	infos := make([]*schema.ToolInfo, 0, len(list))
	for _, t := range list {
		info := &schema.ToolInfo{Name: t.Spec.Name, Desc: t.Spec.Description}
		if len(t.Spec.Params) > 0 {
			params := make(map[string]*schema.ParameterInfo, len(t.Spec.Params))
			for _, p := range t.Spec.Params {
				params[p.Name] = &schema.ParameterInfo{
					Type:     dataType(p.Type),
					Desc:     p.Description,
					Required: p.Required,
				}
			}
			info.ParamsOneOf = schema.NewParamsOneOfByParams(params)
		}
		infos = append(infos, info)
	}
	return infos
}

func dataType(t tool.ParamType) schema.DataType {
	switch t {
	case tool.TypeInteger:
		return schema.Integer
	case tool.TypeNumber:
		return schema.Number
	case tool.TypeBoolean:
		return schema.Boolean
	default:
		return schema.String
	}
}

// ToolSchemaForLLM 单个工具供 LLM 使用的描述（name, description, parameters）
type ToolSchemaForLLM struct {
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Parameters  []tool.Param `json:"parameters"`
}

// SchemasForLLM 返回所有工具的 Schema 列表（JSON，GET /tools 与 CLI 使用）
func (r *Registry) SchemasForLLM() ([]byte, error) {
	list := r.List()
	out := make([]ToolSchemaForLLM, 0, len(list))
	for _, t := range list {
		params := t.Spec.Params
		if params == nil {
			params = []tool.Param{}
		}
		out = append(out, ToolSchemaForLLM{
			Name:        t.Spec.Name,
			Description: t.Spec.Description,
			Parameters:  params,
		})
	}
	return json.Marshal(out)
}
