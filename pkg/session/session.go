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

// Package session stores conversations and their message history.
package session

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/coverbridge/supportgw/pkg/config"
)

// Message is one turn in a conversation.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	Agent          string    `json:"agent,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// Conversation groups messages under one chat session.
type Conversation struct {
	ID        string    `json:"id"`
	Identity  string    `json:"identity,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store persists conversations. Implementations must be thread-safe.
type Store interface {
	// EnsureConversation creates the conversation if it does not exist
	// and returns it.
	EnsureConversation(ctx context.Context, id, identity string) (*Conversation, error)

	// GetConversation returns a conversation, nil when unknown.
	GetConversation(ctx context.Context, id string) (*Conversation, error)

	// AppendMessage adds a message to a conversation.
	AppendMessage(ctx context.Context, msg *Message) error

	// History returns up to limit most recent messages, oldest first.
	History(ctx context.Context, conversationID string, limit int) ([]*Message, error)

	// DeleteConversation removes a conversation and its messages.
	DeleteConversation(ctx context.Context, id string) error

	// Close closes the store.
	Close() error
}

// NewID returns a fresh conversation or message identifier.
func NewID() string {
	return uuid.NewString()
}

// NewMessage builds a message with a fresh ID and timestamp.
func NewMessage(conversationID, role, content string) *Message {
	return &Message{
		ID:             NewID(),
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		CreatedAt:      time.Now().UTC(),
	}
}

// NewStoreFromConfig creates the session store selected by config.
func NewStoreFromConfig(cfg *config.SessionConfig, root *config.Config, pool *config.DBPool) (Store, error) {
	switch cfg.Backend {
	case "", "memory":
		return NewMemoryStore(), nil

	case "sql":
		dbCfg, ok := root.GetDatabase(cfg.SQLDatabase)
		if !ok {
			return nil, fmt.Errorf("session store: database %q not configured", cfg.SQLDatabase)
		}
		db, err := pool.Get(dbCfg)
		if err != nil {
			return nil, fmt.Errorf("session store: %w", err)
		}
		return NewSQLStore(db)

	default:
		return nil, fmt.Errorf("unsupported session backend: %s", cfg.Backend)
	}
}

// Ensure interface compliance at compile time.
var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*SQLStore)(nil)
)
