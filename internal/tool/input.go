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
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Input 绑定后的参数，按声明的参数名读取
type Input struct {
	values map[string]any
}

// NewInput 以参数名到取值的映射构造 Input；nil 视为无参数
func NewInput(values map[string]any) Input {
	if values == nil {
		values = map[string]any{}
	}
	return Input{values: values}
}

// Value 按参数名取值；未绑定且无默认值时 ok=false
func (in Input) Value(name string) (any, bool) {
	v, ok := in.values[name]
	return v, ok
}

// String 取字符串参数
func (in Input) String(name string) string {
	v, ok := in.values[name]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// Int 取整数参数，缺省返回 def
func (in Input) Int(name string, def int) int {
	v, ok := in.values[name]
	if !ok || v == nil {
		return def
	}
	if n, ok := coerceInt(v); ok {
		return int(n)
	}
	return def
}

// Len 已绑定的参数个数
func (in Input) Len() int { return len(in.values) }

// coerce 将模型给出的值转换为参数声明的类型
func coerce(v any, t ParamType) (any, bool) {
	switch t {
	case TypeAny:
		if n, ok := v.(json.Number); ok {
			if i, err := n.Int64(); err == nil {
				return i, true
			}
			f, err := n.Float64()
			return f, err == nil
		}
		return v, true
	case TypeString:
		switch x := v.(type) {
		case string:
			return x, true
		case json.Number:
			return x.String(), true
		case bool, int, int32, int64, float32, float64:
			return fmt.Sprint(x), true
		}
		return nil, false
	case TypeInteger:
		n, ok := coerceInt(v)
		return n, ok
	case TypeNumber:
		f, ok := coerceFloat(v)
		return f, ok
	case TypeBoolean:
		switch x := v.(type) {
		case bool:
			return x, true
		case string:
			b, err := strconv.ParseBool(strings.TrimSpace(x))
			return b, err == nil
		}
		return nil, false
	}
	return nil, false
}

func coerceInt(v any) (int64, bool) {
	switch x := v.(type) {
	case int:
		return int64(x), true
	case int32:
		return int64(x), true
	case int64:
		return x, true
	case float64:
		if x == math.Trunc(x) && !math.IsInf(x, 0) {
			return int64(x), true
		}
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i, true
		}
		if f, err := x.Float64(); err == nil && f == math.Trunc(f) {
			return int64(f), true
		}
	case string:
		if i, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64); err == nil {
			return i, true
		}
	}
	return 0, false
}

func coerceFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case float32:
		return float64(x), true
	case float64:
		return x, true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil
	}
	return 0, false
}
