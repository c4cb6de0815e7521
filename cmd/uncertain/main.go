// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command uncertain answers questions about uncertain values by sampling.
//
// Usage:
//
//	uncertain run scenario.yaml
//	uncertain demo
//	uncertain pr --law normal --param mu=5 --param sigma=1 --gt 4 --threshold 0.5
//	uncertain expect --law poisson --param lambda=3 --precision 0.05
package main

import (
	"os"
)

func main() {
	if err := execute(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		os.Exit(1)
	}
}
