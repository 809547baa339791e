// Package evaluation loads question/reference datasets and writes
// per-question evaluation reports.
//
// Datasets are read from JSON arrays, JSON Lines, YAML or CSV files with
// a question,answer header. Reports are written as CSV
// (question,ground_truth,answer,score) or JSON Lines.
package evaluation
