// Package decode turns an untyped companion-app payload into a validated
// model.GlucoseRecord. Decoding is pure and never panics on malformed input;
// failures are reported as *MissingFieldError.
package decode
