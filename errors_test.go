package codeindex

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"
)

func ExampleError() {
	fmt.Println(&Error{
		Inner:   nil,
		Kind:    ErrInvalid,
		Message: "test",
		Op:      "ExampleError",
	})

	fmt.Println(&Error{
		Inner:   sql.ErrNoRows,
		Kind:    ErrNotFound,
		Message: "symbol not found",
		Op:      "LookupSymbol",
	})
	err := &Error{
		Inner: &Error{
			Inner:   sql.ErrNoRows,
			Kind:    ErrNotFound,
			Message: "symbol not found",
			Op:      "LookupSymbol",
		},
		Kind: ErrTransient,
	}
	fmt.Println(err)
	fmt.Println(fmt.Errorf("dispatcher: oops: %w", &Error{
		Inner:   sql.ErrNoRows,
		Kind:    ErrNotFound,
		Message: "symbol not found",
		Op:      "LookupSymbol",
	}))

	// Output:
	// ExampleError [invalid]: test
	// LookupSymbol [not_found]: symbol not found: sql: no rows in result set
	// LookupSymbol [not_found]: symbol not found: sql: no rows in result set
	// dispatcher: oops: LookupSymbol [not_found]: symbol not found: sql: no rows in result set
}

func TestErrorIs(t *testing.T) {
	wrapped := &Error{
		Inner: errors.New("disk gone"),
		Kind:  ErrUnavailable,
		Op:    "search_fulltext",
	}
	if !errors.Is(wrapped, ErrUnavailable) {
		t.Errorf("expected errors.Is(err, ErrUnavailable) to be true")
	}
	if errors.Is(wrapped, ErrTimeout) {
		t.Errorf("expected errors.Is(err, ErrTimeout) to be false")
	}

	var target *Error
	if !errors.As(wrapped, &target) {
		t.Fatalf("expected errors.As to unwrap to *Error")
	}
	if target.Op != "search_fulltext" {
		t.Errorf("got Op %q, want %q", target.Op, "search_fulltext")
	}
}
