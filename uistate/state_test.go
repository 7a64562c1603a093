package uistate

import (
	"encoding/json"
	"errors"
	"slices"
	"strings"
	"testing"

	apperrors "github.com/kbukum/flowkit/errors"
)

func describe(s State[int]) string {
	return Match(s,
		func() string { return "loading" },
		func(n int) string { return "value" },
		func(err error) string { return "error: " + err.Error() },
	)
}

func TestMatch(t *testing.T) {
	tests := []struct {
		name  string
		state State[int]
		want  string
	}{
		{"loading", NewLoading[int](), "loading"},
		{"success", NewSuccess(3), "value"},
		{"failure", NewFailure[int](errors.New("offline")), "error: offline"},
		{"nil counts as loading", nil, "loading"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := describe(tc.state); got != tc.want {
				t.Errorf("Match() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestKind(t *testing.T) {
	if NewLoading[string]().Kind() != KindLoading ||
		NewSuccess("x").Kind() != KindSuccess ||
		NewFailure[string](errors.New("x")).Kind() != KindError {
		t.Error("unexpected kinds")
	}
}

func TestEqual(t *testing.T) {
	tests := []struct {
		name string
		a, b State[int]
		want bool
	}{
		{"loading", NewLoading[int](), NewLoading[int](), true},
		{"same value", NewSuccess(1), NewSuccess(1), true},
		{"different value", NewSuccess(1), NewSuccess(2), false},
		{"different case", NewLoading[int](), NewSuccess(0), false},
		{"same error text", NewFailure[int](errors.New("x")), NewFailure[int](errors.New("x")), true},
		{"failure vs loading", NewFailure[int](errors.New("x")), NewLoading[int](), false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Equal[int](tc.a, tc.b); got != tc.want {
				t.Errorf("Equal() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestEqualFunc(t *testing.T) {
	eq := func(x, y []int) bool { return slices.Equal(x, y) }
	if !EqualFunc(NewSuccess([]int{1, 2}), NewSuccess([]int{1, 2}), eq) {
		t.Error("equal slices reported different")
	}
	if EqualFunc(NewSuccess([]int{1}), NewSuccess([]int{1, 2}), eq) {
		t.Error("different slices reported equal")
	}
}

func TestToView(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		body, err := json.Marshal(ToView[[]string](NewSuccess([]string{"a"})))
		if err != nil {
			t.Fatal(err)
		}
		if string(body) != `{"status":"success","data":["a"]}` {
			t.Errorf("unexpected body %s", body)
		}
	})

	t.Run("loading", func(t *testing.T) {
		body, _ := json.Marshal(ToView[int](NewLoading[int]()))
		if string(body) != `{"status":"loading"}` {
			t.Errorf("unexpected body %s", body)
		}
	})

	t.Run("failure keeps the app error code", func(t *testing.T) {
		v := ToView[int](NewFailure[int](apperrors.NotFound("user", "42")))
		if v.Error == nil || v.Error.Error.Code != apperrors.ErrCodeNotFound {
			t.Fatalf("expected NOT_FOUND, got %+v", v.Error)
		}
		body, _ := json.Marshal(v)
		if !strings.Contains(string(body), `"status":"error"`) {
			t.Errorf("unexpected body %s", body)
		}
	})

	t.Run("plain errors become internal", func(t *testing.T) {
		v := ToView[int](NewFailure[int](errors.New("boom")))
		if v.Error.Error.Code != apperrors.ErrCodeInternal {
			t.Errorf("expected INTERNAL_ERROR, got %s", v.Error.Error.Code)
		}
	})
}
