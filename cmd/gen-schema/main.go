// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tollgate Contributors

// Command gen-schema writes the JSON Schema of every API request body to
// schemas/<route>.schema.json.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/tollgate/tollgate/internal/web"
)

func main() {
	if err := run("schemas"); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(dir string) error {
	schemas, err := web.RequestSchemas()
	if err != nil {
		return fmt.Errorf("generating schemas: %w", err)
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}

	names := make([]string, 0, len(schemas))
	for name := range schemas {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		outPath := filepath.Join(dir, name+".schema.json")
		if err := os.WriteFile(outPath, append(schemas[name], '\n'), 0o600); err != nil {
			return fmt.Errorf("writing %s: %w", outPath, err)
		}
		fmt.Printf("Generated %s\n", outPath)
	}
	return nil
}
