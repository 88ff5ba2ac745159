// Package kernel defines the data model shared by every layer that talks to
// the native atmosphere kernels.
//
// The package holds no behaviour of its own beyond small helpers:
//
//   - [Descriptor]: immutable identity and argument layout of a bound native function
//   - [Request]: one fully resolved point evaluation (flattened inputs)
//   - [Result]: the outputs of one point evaluation
//   - [Batch]: ordered requests with equally long result and status slots
//
// Errors raised anywhere in the stack are declared here so callers can match
// them with errors.Is / errors.As regardless of which layer produced them.
//
// # Thread Safety
//
// Descriptor values are immutable after construction and may be shared.
// Request, Result and Batch are plain values owned by whoever created them.
package kernel
