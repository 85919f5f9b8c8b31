// Package body provides request body inspection and decoding: media-type
// classification into body kinds, a byte-level multipart/form-data decoder
// and encoder, and an order-preserving urlencoded form parser.
//
// The decoders are deliberately lenient: malformed multipart input degrades
// to partial or empty results and non-UTF-8 field values are dropped rather
// than surfaced as errors. Callers that need strictness must validate the
// input themselves.
package body
