// Package repository reads score events and reference data from the
// relational store. The store is never written to.
package repository

import "github.com/secondvote/trends/internal/domain/dataset"

// Source is the read contract the dataset loader consumes.
type Source = dataset.Source

var _ Source = (*SQLStore)(nil)
