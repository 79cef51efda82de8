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

package admission

import (
	"fmt"

	"github.com/coverbridge/supportgw/pkg/config"
)

// NewStoreFromConfig creates the admission store selected by config.
// SQL-backed stores draw their connection from the shared pool.
func NewStoreFromConfig(cfg *config.AdmissionConfig, root *config.Config, pool *config.DBPool) (Store, error) {
	switch cfg.Backend {
	case "", "memory":
		return NewMemoryStore(), nil

	case "sql":
		dbCfg, ok := root.GetDatabase(cfg.SQLDatabase)
		if !ok {
			return nil, fmt.Errorf("admission store: database %q not configured", cfg.SQLDatabase)
		}
		db, err := pool.Get(dbCfg)
		if err != nil {
			return nil, fmt.Errorf("admission store: %w", err)
		}
		return NewSQLStore(db)

	default:
		return nil, fmt.Errorf("unsupported admission backend: %s", cfg.Backend)
	}
}
