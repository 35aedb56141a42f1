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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseArgs_PreservesKeyOrder(t *testing.T) {
	a := ParseArgs(`{"zeta": 1, "alpha": "x", "mid": true}`)
	require.Equal(t, 3, a.Len())

	pairs := a.Pairs()
	assert.Equal(t, "zeta", pairs[0].Key)
	assert.Equal(t, "alpha", pairs[1].Key)
	assert.Equal(t, "mid", pairs[2].Key)
	assert.Equal(t, json.Number("1"), pairs[0].Value)

	sorted := a.Sorted()
	assert.Equal(t, "alpha", sorted[0].Key)
	assert.Equal(t, "mid", sorted[1].Key)
	assert.Equal(t, "zeta", sorted[2].Key)
}

func TestParseArgs_Empty(t *testing.T) {
	for _, raw := range []string{"", "  ", "null", "{}"} {
		a := ParseArgs(raw)
		assert.True(t, a.IsEmpty(), raw)
	}
}

func TestParseArgs_NonObject(t *testing.T) {
	a := ParseArgs(`"database timeout"`)
	v, ok := a.Get(SingleArgKey)
	require.True(t, ok)
	assert.Equal(t, "database timeout", v)

	a = ParseArgs(`not json at all`)
	v, ok = a.Get(SingleArgKey)
	require.True(t, ok)
	assert.Equal(t, "not json at all", v)

	a = ParseArgs(`{"q": "x"`)
	_, ok = a.Get(SingleArgKey)
	assert.True(t, ok)
}

func TestParseArgs_DuplicateKeyKeepsFirstPosition(t *testing.T) {
	a := ParseArgs(`{"a": 1, "b": 2, "a": 3}`)
	pairs := a.Pairs()
	require.Len(t, pairs, 2)
	assert.Equal(t, "a", pairs[0].Key)
	assert.Equal(t, json.Number("3"), pairs[0].Value)
}

func TestArgs_JSONRoundTripKeepsOrder(t *testing.T) {
	a := NamedArgs(Arg{Key: "question", Value: "why"}, Arg{Key: "limit", Value: 5})
	b, err := json.Marshal(a)
	require.NoError(t, err)
	assert.Equal(t, `{"question":"why","limit":5}`, string(b))

	var back Args
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, "question", back.Pairs()[0].Key)
	assert.Equal(t, `{}`, EmptyArgs().String())
}
