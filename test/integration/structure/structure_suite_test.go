// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Partyline Contributors

//go:build integration

// Package structure_test exercises the structural cache and the
// permission resolution engine end to end: snapshot population,
// incremental event folds, and concurrent resolution.
package structure_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"go.uber.org/goleak"
)

func TestStructure(t *testing.T) {
	defer goleak.VerifyNone(t)
	RegisterFailHandler(Fail)
	RunSpecs(t, "Structure Suite")
}
