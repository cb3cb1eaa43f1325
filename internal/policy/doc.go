// Package policy classifies an agent's tool-call trace against the fixed
// research policy.
//
// The policy is a closed set of required data tools that must all run
// before the terminal report tool. Each mistake type is detected by its own
// Gate; Checker runs them in mistake-type order and returns the violations.
// A trace with no violations is a successful run.
//
// Classification is pure: nothing here performs I/O or holds state.
package policy
