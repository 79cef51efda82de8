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

package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/coverbridge/supportgw/pkg/embedder"
	"github.com/coverbridge/supportgw/pkg/vector"
)

// KnowledgeBase retrieves supporting context for a question from the
// vector store. Retrieval failures degrade to an empty context rather
// than failing the chat.
type KnowledgeBase struct {
	embedder   embedder.Embedder
	vectors    vector.Provider
	collection string
	topK       int
}

// NewKnowledgeBase creates a knowledge retriever.
func NewKnowledgeBase(emb embedder.Embedder, vectors vector.Provider, collection string, topK int) *KnowledgeBase {
	if collection == "" {
		collection = "knowledge"
	}
	if topK <= 0 {
		topK = 4
	}
	return &KnowledgeBase{
		embedder:   emb,
		vectors:    vectors,
		collection: collection,
		topK:       topK,
	}
}

// Search returns a context block for the question, empty when nothing
// relevant is found.
func (k *KnowledgeBase) Search(ctx context.Context, question string) string {
	if k == nil || k.embedder == nil || k.vectors == nil {
		return ""
	}

	queryVector, err := k.embedder.Embed(ctx, question)
	if err != nil {
		slog.Warn("Knowledge base embedding failed", "error", err)
		return ""
	}

	results, err := k.vectors.Search(ctx, k.collection, queryVector, k.topK)
	if err != nil {
		slog.Warn("Knowledge base search failed", "error", err)
		return ""
	}
	if len(results) == 0 {
		return ""
	}

	var b strings.Builder
	for i, r := range results {
		if r.Content == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[%d] %s", i+1, r.Content)
	}
	return b.String()
}

// Index adds a document to the knowledge base.
func (k *KnowledgeBase) Index(ctx context.Context, id, content string, metadata map[string]any) error {
	vectorValues, err := k.embedder.Embed(ctx, content)
	if err != nil {
		return fmt.Errorf("failed to embed document: %w", err)
	}

	if metadata == nil {
		metadata = make(map[string]any)
	}
	metadata["content"] = content

	if err := k.vectors.Upsert(ctx, k.collection, id, vectorValues, metadata); err != nil {
		return fmt.Errorf("failed to index document: %w", err)
	}
	return nil
}
