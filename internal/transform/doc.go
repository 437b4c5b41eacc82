// Package transform holds the column operations the pipeline applies to a
// frame: header normalization, derived columns and schema coercion. Each
// operation is exposed as a Stage so the runner can apply them in the order
// the pipeline file declares.
package transform
