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
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type stringerValue struct{ n int }

func (s stringerValue) String() string { return "stringer" }

func TestStringify(t *testing.T) {
	assert.Equal(t, "plain", Stringify("plain"))
	assert.Equal(t, "stringer", Stringify(stringerValue{n: 1}))
	assert.Equal(t, "bytes", Stringify([]byte("bytes")))
	assert.Equal(t, "boom", Stringify(errors.New("boom")))
	assert.Equal(t, `{"count":2}`, Stringify(map[string]int{"count": 2}))
	assert.Equal(t, "null", Stringify(nil))
	assert.Equal(t, "42", Stringify(42))
}

func TestStringify_UnmarshalableFallsBack(t *testing.T) {
	ch := make(chan int)
	out := Stringify(ch)
	assert.Contains(t, out, "chan int")
}

type treeNode struct{ name string }

func (n *treeNode) String() string { return n.name }

type panickyJSON struct{ ID int }

func (panickyJSON) MarshalJSON() ([]byte, error) { panic("encoder exploded") }

type nilError struct{ msg string }

func (e *nilError) Error() string { return e.msg }

func TestStringify_PanickingConversionFallsBack(t *testing.T) {
	var node *treeNode
	assert.NotPanics(t, func() {
		assert.Equal(t, "(*tool.treeNode)(nil)", Stringify(node))
	})
	assert.Equal(t, "leaf", Stringify(&treeNode{name: "leaf"}))

	assert.NotPanics(t, func() {
		assert.Equal(t, "tool.panickyJSON{ID:3}", Stringify(panickyJSON{ID: 3}))
	})

	var err *nilError
	assert.NotPanics(t, func() {
		assert.Equal(t, "(*tool.nilError)(nil)", Stringify(err))
	})
}

func TestRenderBlock(t *testing.T) {
	r := Result{CallID: "call_1", Name: "get_error_logs", Payload: `{"count":0}`}
	assert.Equal(t, "[tool_output name=get_error_logs id=call_1]\n{\"count\":0}\n[/tool_output]\n", RenderBlock(r))
}

func TestRenderNextInput(t *testing.T) {
	results := []Result{
		{CallID: "a", Name: "pull_logs", Payload: "ok"},
		{CallID: "b", Name: "nope", Payload: "TOOL_ERROR: unknown tool nope"},
	}
	got := RenderNextInput("checking", results)
	want := "checking\n\n" +
		"[tool_output name=pull_logs id=a]\nok\n[/tool_output]\n" +
		"\n" +
		"[tool_output name=nope id=b]\nTOOL_ERROR: unknown tool nope\n[/tool_output]\n"
	assert.Equal(t, want, got)
}
