package apperror

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorKinds(t *testing.T) {
	v := Invalid("a", "b")
	if !IsValidation(v) || v.Error() != "a; b" {
		t.Fatalf("validation error = %v", v)
	}
	cause := errors.New("boom")
	r := Remote(500, "Sorry", cause)
	if IsValidation(r) {
		t.Fatal("remote error reported as validation")
	}
	if !errors.Is(fmt.Errorf("ctx: %w", r), cause) {
		t.Fatal("cause not reachable")
	}
	if IsValidation(cause) {
		t.Fatal("plain error reported as validation")
	}
}
