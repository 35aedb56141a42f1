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

package app

import (
	"fmt"
	"strings"

	"log-agent/pkg/config"
)

const hashDimension = 256

// lookupModel 按 "provider.model_key" 在提供商表中查找模型
func lookupModel(providers map[string]config.ProviderConfig, key, kind string) (string, config.ProviderConfig, config.ModelInfo, error) {
	provider, modelKey, err := parseDefaultKey(key)
	if err != nil {
		return "", config.ProviderConfig{}, config.ModelInfo{}, err
	}
	pc, ok := providers[provider]
	if !ok {
		return "", config.ProviderConfig{}, config.ModelInfo{}, fmt.Errorf("%s provider %q 未配置", kind, provider)
	}
	mi, ok := pc.Models[modelKey]
	if !ok {
		return "", config.ProviderConfig{}, config.ModelInfo{}, fmt.Errorf("%s model %q 未在 provider %q 中配置", kind, modelKey, provider)
	}
	if mi.Name == "" {
		mi.Name = modelKey
	}
	return provider, pc, mi, nil
}

// parseDefaultKey 解析 "provider.model_key"
func parseDefaultKey(key string) (provider, modelKey string, err error) {
	parts := strings.SplitN(key, ".", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("default key 格式应为 provider.model_key，如 openai.gpt_4o_mini，当前: %q", key)
	}
	return parts[0], parts[1], nil
}
