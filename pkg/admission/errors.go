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
	"errors"
)

// Common errors.
var (
	// ErrInvalidIdentity is returned when neither an identity key nor
	// an IP address is present on a request.
	ErrInvalidIdentity = errors.New("identity key or ip is required")

	// ErrStoreUnavailable is returned when the admission store cannot
	// be reached. Callers treat it as a fail-open condition.
	ErrStoreUnavailable = errors.New("admission store unavailable")
)

// DenialError wraps a Deny result for callers that propagate the
// verdict as an error.
type DenialError struct {
	Result *Result
}

// Error returns the user-visible denial message.
func (e *DenialError) Error() string {
	if e.Result != nil && e.Result.Reason != "" {
		return e.Result.Reason
	}
	return "request denied"
}

// IsDenial checks if an error is a DenialError.
func IsDenial(err error) bool {
	var de *DenialError
	return errors.As(err, &de)
}
