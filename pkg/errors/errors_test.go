package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestWrap(t *testing.T) {
	if Wrap(nil, "msg") != nil {
		t.Error("Wrap(nil, msg) should return nil")
	}
	err := errors.New("base")
	wrapped := Wrap(err, "context")
	if wrapped == nil {
		t.Fatal("Wrap(err, msg) should not return nil")
	}
	if !errors.Is(wrapped, err) {
		t.Error("wrapped error should unwrap to base")
	}
}

func TestWrapf(t *testing.T) {
	if Wrapf(nil, "format %s", "x") != nil {
		t.Error("Wrapf(nil, ...) should return nil")
	}
	err := errors.New("base")
	wrapped := Wrapf(err, "id=%s", "a")
	if !errors.Is(wrapped, err) {
		t.Error("wrapped error should unwrap to base")
	}
	if wrapped.Error() != "id=a: base" {
		t.Errorf("Wrapf message: got %q", wrapped.Error())
	}
}

func TestFatal(t *testing.T) {
	if Fatal(nil) != nil {
		t.Error("Fatal(nil) should return nil")
	}
	base := errors.New("endpoint down")
	err := Fatal(base)
	if !errors.Is(err, ErrFatal) {
		t.Error("Fatal(err) should be Is ErrFatal")
	}
	if !errors.Is(err, base) {
		t.Error("Fatal(err) should keep the original error")
	}
	if again := Fatal(err); again != err {
		t.Error("Fatal should not double wrap")
	}
}

func TestIsBudgetExceeded(t *testing.T) {
	if !IsBudgetExceeded(fmt.Errorf("step 4: %w", ErrTokenLimitExceeded)) {
		t.Error("token limit should be a budget error")
	}
	if !IsBudgetExceeded(ErrStepLimitExceeded) {
		t.Error("step limit should be a budget error")
	}
	if IsBudgetExceeded(ErrFatal) {
		t.Error("fatal is not a budget error")
	}
}
