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

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/coverbridge/supportgw/pkg/config"
)

// IndexCmd seeds the knowledge base from a directory of documents.
type IndexCmd struct {
	Docs string `arg:"" help:"Directory containing .md and .txt knowledge documents." type:"path"`
}

func (c *IndexCmd) Run(cli *CLI) error {
	ctx := context.Background()

	cfg := config.Default()
	if cli.Config != "" {
		loader := config.NewLoader(cli.Config)
		loaded, err := loader.Load(ctx)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}

	kb, err := buildKnowledgeBase(cfg)
	if err != nil {
		return err
	}
	if kb == nil {
		return fmt.Errorf("indexing requires embedder credentials (llm.api_key or embedder.api_key)")
	}

	indexed := 0
	err = filepath.WalkDir(c.Docs, func(path string, entry os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".md", ".txt":
		default:
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		content := strings.TrimSpace(string(data))
		if content == "" {
			return nil
		}

		rel, err := filepath.Rel(c.Docs, path)
		if err != nil {
			rel = filepath.Base(path)
		}

		if err := kb.Index(ctx, rel, content, map[string]any{"source": rel}); err != nil {
			return fmt.Errorf("failed to index %s: %w", rel, err)
		}

		slog.Info("Indexed document", "source", rel, "bytes", len(content))
		indexed++
		return nil
	})
	if err != nil {
		return err
	}

	fmt.Printf("Indexed %d documents into collection %q\n", indexed, cfg.Vector.Collection)
	return nil
}
