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

// Package admission implements the request admission check consulted
// before every accepted chat message.
//
// Given an identity key (user or anonymous session), the caller IP, and
// the message, the check returns one of three verdicts:
//
//   - Allow: forward the message to the agent pipeline
//   - AllowWithWarning: forward, but prepend a redirect warning
//   - Deny: reject with a user-visible message
//
// The decision pipeline, in order:
//
//  1. Block set: a blocked identity key or IP short-circuits to Deny.
//  2. Sliding-window ceilings over the trailing hour and day.
//  3. Minimum inter-message interval.
//  4. Topical relevance: keyword fast path, then the external
//     classifier for ambiguous messages (bounded by a timeout).
//  5. Rolling relevance ratio over the conversation's recent messages
//     with progressive warnings before denial.
//
// The check fails open: any internal fault (store error, classifier
// outage) is logged and the message is allowed. Availability of the
// chat service is prioritized over strict enforcement.
//
// State lives in a Store. The in-memory store is the default; the SQL
// store (SQLite) survives restarts. Counters are monotone within their
// window and reset only at window boundaries. The block set has no
// expiry; entries are cleared through the admin surface.
package admission
