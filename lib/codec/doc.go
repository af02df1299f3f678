// Package codec converts the composite value types of aKV (lists, maps and
// multimaps) to and from the single opaque blob that is stored under one
// storage key.
//
// Blob layout:
//
//   - every element is terminated by ElementSep (':')
//   - a map or multimap element is "key" PairSep ('/') "value"
//   - element contents are passed through a binary-safe transform
//     (unpadded URL base64) whose alphabet contains neither separator, so
//     arbitrary payload bytes can never break the framing
//
// An empty blob decodes to an empty collection. A blob whose last element is
// missing its terminator is accepted when decoding; re-encoding such a blob
// appends the terminator, so encode(decode(blob)) is not byte-identical in
// that case. decode(encode(c)) == c always holds.
//
// Mutations never panic or return errors. They return a Status (ok,
// not-found, invalid, exists) and the caller branches on it.
package codec
