// Package wire owns the tagged binary wire contract.
//
// Ownership boundary:
// - packet header and protocol preamble primitives
// - tagged value envelope encode/decode
// - message registry and framed message decode
package wire
