// Copyright 2025 Coverbridge, Inc.
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

package llms

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

var (
	encodingMu    sync.Mutex
	encodingCache = make(map[string]*tiktoken.Tiktoken)
)

// CountTokens counts tokens in text for the given model. Falls back
// to a character-based estimate when the model's encoding is unknown.
func CountTokens(model, text string) int {
	if text == "" {
		return 0
	}

	enc := encodingFor(model)
	if enc == nil {
		// Rough heuristic, about 4 characters per token for English.
		return (len(text) + 3) / 4
	}
	return len(enc.Encode(text, nil, nil))
}

// CountMessageTokens counts tokens across a message slice, including
// a small per-message framing overhead.
func CountMessageTokens(model string, messages []Message) int {
	total := 0
	for _, msg := range messages {
		total += CountTokens(model, msg.Content) + 4
	}
	return total
}

func encodingFor(model string) *tiktoken.Tiktoken {
	encodingMu.Lock()
	defer encodingMu.Unlock()

	if enc, ok := encodingCache[model]; ok {
		return enc
	}

	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			encodingCache[model] = nil
			return nil
		}
	}
	encodingCache[model] = enc
	return enc
}
