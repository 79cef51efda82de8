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

package config

import "fmt"

// VectorConfig configures the knowledge base vector store.
type VectorConfig struct {
	// Type selects the backend ("chromem" embedded, "pinecone" hosted).
	Type string `yaml:"type,omitempty" json:"type,omitempty"`

	// Collection is the collection / index namespace for knowledge docs.
	Collection string `yaml:"collection,omitempty" json:"collection,omitempty"`

	// TopK is the number of documents retrieved per query.
	TopK int `yaml:"top_k,omitempty" json:"top_k,omitempty"`

	// Chromem configuration (used when Type == "chromem").
	Chromem *ChromemConfig `yaml:"chromem,omitempty" json:"chromem,omitempty"`

	// Pinecone configuration (used when Type == "pinecone").
	Pinecone *PineconeConfig `yaml:"pinecone,omitempty" json:"pinecone,omitempty"`
}

// ChromemConfig configures the embedded chromem backend.
type ChromemConfig struct {
	// PersistPath for file persistence. Empty keeps vectors in memory.
	PersistPath string `yaml:"persist_path,omitempty" json:"persist_path,omitempty"`

	// Compress enables gzip compression for persistence.
	Compress bool `yaml:"compress,omitempty" json:"compress,omitempty"`
}

// PineconeConfig configures the hosted Pinecone backend.
type PineconeConfig struct {
	// APIKey is required for Pinecone authentication.
	APIKey string `yaml:"api_key,omitempty" json:"api_key,omitempty"`

	// Host is the Pinecone API host (optional).
	Host string `yaml:"host,omitempty" json:"host,omitempty"`

	// IndexName is the index to query.
	IndexName string `yaml:"index_name,omitempty" json:"index_name,omitempty"`
}

// SetDefaults sets default values for VectorConfig.
func (c *VectorConfig) SetDefaults() {
	if c.Type == "" {
		c.Type = "chromem"
	}
	if c.Collection == "" {
		c.Collection = "knowledge"
	}
	if c.TopK == 0 {
		c.TopK = 4
	}
	if c.Type == "chromem" && c.Chromem == nil {
		c.Chromem = &ChromemConfig{}
	}
}

// Validate validates the VectorConfig.
func (c *VectorConfig) Validate() error {
	switch c.Type {
	case "", "chromem":
	case "pinecone":
		if c.Pinecone == nil || c.Pinecone.APIKey == "" {
			return fmt.Errorf("pinecone backend requires pinecone.api_key")
		}
		if c.Pinecone.IndexName == "" {
			return fmt.Errorf("pinecone backend requires pinecone.index_name")
		}
	default:
		return fmt.Errorf("invalid type %q, must be 'chromem' or 'pinecone'", c.Type)
	}
	if c.TopK < 0 {
		return fmt.Errorf("top_k must not be negative")
	}
	return nil
}
