// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package scenario

import (
	"errors"
	"fmt"
)

// =============================================================================
// Errors
// =============================================================================

var (
	// ErrInvalidScenario indicates a malformed scenario document.
	ErrInvalidScenario = errors.New("invalid scenario")

	// ErrUnknownReference indicates an expression naming an undeclared
	// variable or definition.
	ErrUnknownReference = fmt.Errorf("%w: unknown reference", ErrInvalidScenario)

	// ErrTypeMismatch indicates a numeric expression where a boolean one is
	// required, or the reverse.
	ErrTypeMismatch = fmt.Errorf("%w: type mismatch", ErrInvalidScenario)

	// ErrUnknownLaw indicates a variable with an unsupported law name.
	ErrUnknownLaw = fmt.Errorf("%w: unknown law", ErrInvalidScenario)
)
