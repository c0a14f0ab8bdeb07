// Package utils provides small helpers shared by medinsight components.
//
// This package contains:
//   - Vector math for in-process similarity ranking (vector.go)
//   - Text helpers for list fields and bounded prompt input (text.go)
//   - Panic recovery for goroutines that must never crash the process (recovery.go)
package utils
