package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestHTTPStatus(t *testing.T) {
	t.Run("Unauthorized -> 401", func(t *testing.T) {
		if got := HTTPStatus(KindOf(Unauthorized("x"))); got != http.StatusUnauthorized {
			t.Fatalf("got %d", got)
		}
	})

	t.Run("Forbidden -> 403", func(t *testing.T) {
		if got := HTTPStatus(KindOf(Forbidden("x"))); got != http.StatusForbidden {
			t.Fatalf("got %d", got)
		}
	})

	t.Run("Validation -> 400", func(t *testing.T) {
		if got := HTTPStatus(KindOf(Field("items", "required"))); got != http.StatusBadRequest {
			t.Fatalf("got %d", got)
		}
	})

	t.Run("InvalidTransition -> 422", func(t *testing.T) {
		if got := HTTPStatus(KindOf(InvalidTransition("x"))); got != http.StatusUnprocessableEntity {
			t.Fatalf("got %d", got)
		}
	})

	t.Run("Conflict -> 409", func(t *testing.T) {
		if got := HTTPStatus(KindOf(Conflict("x"))); got != http.StatusConflict {
			t.Fatalf("got %d", got)
		}
	})

	t.Run("plain error -> 500", func(t *testing.T) {
		err := errors.New("boom")
		if KindOf(err) != KindInternal || HTTPStatus(KindOf(err)) != http.StatusInternalServerError {
			t.Fatalf("got kind %s", KindOf(err))
		}
	})
}

func TestKindSurvivesWrapping(t *testing.T) {
	err := fmt.Errorf("transition: %w", NotFound("order not found"))
	if !Is(err, KindNotFound) {
		t.Fatalf("wrapped error lost its kind: %v", err)
	}
	if Is(nil, KindNotFound) {
		t.Fatal("nil error must not match any kind")
	}
}

func TestValidationMessageListsFieldsInOrder(t *testing.T) {
	err := Validation(map[string]string{"shopId": "required", "items": "must not be empty"})
	want := "VALIDATION_ERROR: invalid input (items: must not be empty; shopId: required)"
	if err.Error() != want {
		t.Fatalf("got %q", err.Error())
	}
}
