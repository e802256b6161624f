// Copyright 2026 The Facto Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package decomp implements tensor decompositions: Tucker via higher-order
// orthogonal iteration (HOOI) and CANDECOMP/PARAFAC via alternating least
// squares, including a randomised sampled-ALS variant. The decomposed forms
// are carried by the TuckerTensor and CPTensor containers.
package decomp

import "go.uber.org/zap"

var logger = zap.NewNop()

// SetLogger installs the logger used for warnings and, when the Verbose
// option is set on an engine, per-iteration progress. The default discards
// everything.
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	logger = l
}

// Initialization schemes shared by the Tucker and CP engines.
const (
	InitSVD    = "svd"
	InitRandom = "random"
)

// Convergence criteria for Parafac.
const (
	CvgAbsRecError = "abs_rec_error"
	CvgRecError    = "rec_error"
)
