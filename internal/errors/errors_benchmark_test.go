package errors

import (
	"fmt"
	"testing"
)

// BenchmarkErrorCreation measures the allocation cost of building an
// EnhancedError with explicit component/category/context, the path every
// caller-thread API call takes on a validation failure.
func BenchmarkErrorCreation(b *testing.B) {
	b.ReportAllocs()

	for b.Loop() {
		err := fmt.Errorf("test error")
		_ = New(err).
			Component("property").
			Category(CategoryValidation).
			Build()
	}
}

// BenchmarkErrorCreationWithContext measures the additional cost of
// attaching structured context fields.
func BenchmarkErrorCreationWithContext(b *testing.B) {
	b.ReportAllocs()

	for b.Loop() {
		err := fmt.Errorf("test error")
		_ = New(err).
			Component("router").
			Category(CategoryRouting).
			Context("source", "src-1").
			Context("effect", "fx-1").
			Build()
	}
}
