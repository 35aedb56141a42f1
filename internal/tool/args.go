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
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
)

// SingleArgKey 模型以非对象形式传入参数时使用的 key
const SingleArgKey = "__arg1"

// Arg 单个命名参数
type Arg struct {
	Key   string
	Value any
}

// Args 调用参数：Empty 或保持插入顺序的 Named 列表
type Args struct {
	pairs []Arg
}

// EmptyArgs 空参数
func EmptyArgs() Args { return Args{} }

// NamedArgs 按给定顺序构造参数；重复 key 保留最后一个值并沿用首次出现的位置
func NamedArgs(pairs ...Arg) Args {
	var a Args
	for _, p := range pairs {
		a.set(p.Key, p.Value)
	}
	return a
}

func (a *Args) set(key string, v any) {
	for i := range a.pairs {
		if a.pairs[i].Key == key {
			a.pairs[i].Value = v
			return
		}
	}
	a.pairs = append(a.pairs, Arg{Key: key, Value: v})
}

// IsEmpty 是否为 Empty
func (a Args) IsEmpty() bool { return len(a.pairs) == 0 }

// Len 参数个数
func (a Args) Len() int { return len(a.pairs) }

// Pairs 插入顺序的参数副本
func (a Args) Pairs() []Arg {
	return append([]Arg(nil), a.pairs...)
}

// Sorted 按 key 字典序排列的参数副本
func (a Args) Sorted() []Arg {
	out := a.Pairs()
	sort.SliceStable(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Get 按 key 取值
func (a Args) Get(key string) (any, bool) {
	for _, p := range a.pairs {
		if p.Key == key {
			return p.Value, true
		}
	}
	return nil, false
}

// MarshalJSON 按插入顺序输出 JSON 对象
func (a Args) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, p := range a.pairs {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(p.Key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(p.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON 见 ParseArgs
func (a *Args) UnmarshalJSON(data []byte) error {
	*a = ParseArgs(string(data))
	return nil
}

func (a Args) String() string {
	b, err := a.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("%v", a.pairs)
	}
	return string(b)
}

// ParseArgs 解析模型给出的 JSON 参数串，保留对象 key 的出现顺序。
// 空串、"null"、"{}" 为 Empty；非对象的合法 JSON 作为单个 __arg1；非法 JSON 原文作为 __arg1，
// 因此不会失败。
func ParseArgs(raw string) Args {
	s := strings.TrimSpace(raw)
	if s == "" || s == "null" {
		return EmptyArgs()
	}
	if !strings.HasPrefix(s, "{") {
		var v any
		if err := decodeValue(s, &v); err != nil {
			return NamedArgs(Arg{Key: SingleArgKey, Value: raw})
		}
		return NamedArgs(Arg{Key: SingleArgKey, Value: v})
	}
	a, err := parseObject(s)
	if err != nil {
		return NamedArgs(Arg{Key: SingleArgKey, Value: raw})
	}
	return a
}

func decodeValue(s string, v *any) error {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if _, err := dec.Token(); err != io.EOF {
		return fmt.Errorf("trailing data after JSON value")
	}
	return nil
}

func parseObject(s string) (Args, error) {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return Args{}, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return Args{}, fmt.Errorf("expected object")
	}
	var a Args
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return Args{}, err
		}
		key, ok := tok.(string)
		if !ok {
			return Args{}, fmt.Errorf("expected object key")
		}
		var v any
		if err := dec.Decode(&v); err != nil {
			return Args{}, err
		}
		a.set(key, v)
	}
	if _, err := dec.Token(); err != nil {
		return Args{}, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return Args{}, fmt.Errorf("trailing data after JSON object")
	}
	return a, nil
}
