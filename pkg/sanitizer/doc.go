// Package sanitizer normalizes caller-supplied text before extraction,
// validation and storage.
//
// All normalization functions are idempotent. Invalid input yields an empty
// string rather than an error; callers treat empty as "not provided".
//
// Normalization includes:
//   - Utterances: lowercase, punctuation stripped, whitespace collapsed
//   - Spoken digits: "five five five" becomes "555"
//   - Phone numbers: E.164 via libphonenumber, US by default
//   - Names: letters, hyphens and apostrophes kept, title-cased
//   - Aliases: lowercased and deduplicated
package sanitizer
