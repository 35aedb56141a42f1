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

package logfile

import (
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFile_AppendAndTail(t *testing.T) {
	f := New(afero.NewMemMapFs(), "/aws_logs/log.txt")

	lines, err := f.Tail(10)
	require.NoError(t, err)
	assert.Empty(t, lines)

	require.NoError(t, f.Append([]string{"a", "b"}))
	require.NoError(t, f.Append([]string{"c\n", "d"}))
	require.NoError(t, f.Append(nil))

	lines, err = f.Tail(3)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c", "d"}, lines)

	all, err := f.Tail(0)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d"}, all)
}

func TestFile_Filter(t *testing.T) {
	f := New(afero.NewMemMapFs(), "log.txt")
	require.NoError(t, f.Append([]string{"ok 1", "ERROR 1", "ok 2", "error 2", "error 3"}))

	got, err := f.Filter(func(l string) bool { return strings.Contains(strings.ToLower(l), "error") }, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"error 2", "error 3"}, got)
}

func TestFile_ScanSkipsBlankAndStops(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "log.txt", []byte("a\n\n  \nb\r\nc\n"), 0o644))
	f := New(fs, "log.txt")

	var seen []string
	require.NoError(t, f.Scan(func(l string) bool {
		seen = append(seen, l)
		return len(seen) < 2
	}))
	assert.Equal(t, []string{"a", "b"}, seen)
}
