// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tollgate Contributors

//go:build tools

// Package main pins test-only and generator dependencies to go.mod.
package main

import (
	// Integration suites
	_ "github.com/onsi/ginkgo/v2"
	_ "github.com/onsi/gomega"
	_ "github.com/testcontainers/testcontainers-go/modules/postgres"

	// Mock generation output depends on testify/mock.
	_ "github.com/stretchr/testify/mock"
)
