// Copyright 2026 The Facto Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package cpu

import (
	internalcpu "github.com/facto-ml/facto/internal/backend/cpu"
	"github.com/facto-ml/facto/tensor"
)

// Backend is the CPU backend implementation.
//
// All matrix factorizations (SVD, QR, eigendecomposition) and linear solves
// are delegated to gonum.
type Backend = internalcpu.CPUBackend

// Compile-time check that Backend implements tensor.Backend.
var _ tensor.Backend = (*Backend)(nil)

// New creates a new CPU backend.
//
// Example:
//
//	import (
//	    "github.com/facto-ml/facto/backend/cpu"
//	    "github.com/facto-ml/facto/decomp"
//	)
//
//	func main() {
//	    bk := cpu.New()
//	    res, _, err := decomp.Tucker(bk, x, []int{2, 2, 2}, decomp.DefaultTuckerOptions())
//	    ...
//	}
func New() *Backend {
	return internalcpu.New()
}
