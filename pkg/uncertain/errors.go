// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package uncertain

import (
	"errors"
	"fmt"
)

// -----------------------------------------------------------------------------
// Errors
// -----------------------------------------------------------------------------

var (
	// ErrInvalidArgument indicates a caller contract violation. It is never
	// retried internally.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrInvalidProbability is returned by Pr and Test when the threshold is
	// not in the open interval (0, 1).
	ErrInvalidProbability = fmt.Errorf("%w: probability must be in (0, 1)", ErrInvalidArgument)

	// ErrInvalidPrecision is returned by Expect and Estimate when the
	// precision is not positive.
	ErrInvalidPrecision = fmt.Errorf("%w: precision must be positive", ErrInvalidArgument)

	// ErrInvalidConfig is returned when a query configuration is malformed.
	ErrInvalidConfig = fmt.Errorf("%w: invalid query configuration", ErrInvalidArgument)

	// ErrNotConverged is wrapped by ConvergenceError.
	ErrNotConverged = errors.New("expectation did not converge")
)
