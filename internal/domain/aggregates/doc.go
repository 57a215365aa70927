// Package aggregates defines the write boundaries where trainer invariants are
// enforced atomically: turn index allocation, turn persistence, derived error
// events and usage consumption.
package aggregates
