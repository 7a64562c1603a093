package validation

import (
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/kbukum/flowkit/errors"
)

func TestValidatorRequired(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		wantErr bool
	}{
		{"present", "main", false},
		{"empty", "", true},
		{"blank", "   ", true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			v := New().Required("dispatcher", tc.value)
			if v.HasErrors() != tc.wantErr {
				t.Errorf("HasErrors() = %v, want %v", v.HasErrors(), tc.wantErr)
			}
		})
	}
}

func TestValidatorRequiredUUID(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		wantErr bool
	}{
		{"valid", uuid.New().String(), false},
		{"empty", "", true},
		{"malformed", "not-a-uuid", true},
		{"nil uuid", uuid.Nil.String(), true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			v := New().RequiredUUID("id", tc.value)
			if v.HasErrors() != tc.wantErr {
				t.Errorf("HasErrors() = %v, want %v (%v)", v.HasErrors(), tc.wantErr, v.Errors())
			}
		})
	}
}

func TestValidatorNumbers(t *testing.T) {
	v := New().
		Range("fail_requests", 5, 0, 10).
		Min("parallelism", 1, 1)
	if v.HasErrors() {
		t.Fatalf("expected no errors, got %v", v.Errors())
	}

	v = New().
		Range("fail_requests", 11, 0, 10).
		Min("parallelism", 0, 1)
	if len(v.Errors()) != 2 {
		t.Fatalf("expected 2 errors, got %v", v.Errors())
	}
	if v.Errors()[0].Message != "must be between 0 and 10" {
		t.Errorf("unexpected range message %q", v.Errors()[0].Message)
	}
}

func TestValidatorStrings(t *testing.T) {
	v := New().
		MaxLength("name", "abcdef", 3).
		OneOf("format", "xml", []string{"json", "console"}).
		OneOf("output", "", []string{"stdout"})
	if len(v.Errors()) != 2 {
		t.Fatalf("expected 2 errors, got %v", v.Errors())
	}
	if !strings.Contains(v.Errors()[1].Message, "json, console") {
		t.Errorf("expected allowed values in message, got %q", v.Errors()[1].Message)
	}
}

func TestValidatorCustom(t *testing.T) {
	v := New().Custom(true, "dir", "unused")
	if v.HasErrors() {
		t.Error("expected no error when the condition holds")
	}
	v.Custom(false, "dir", "is required unless in_memory is set")
	if v.Errors()[0].Field != "dir" {
		t.Errorf("expected field dir, got %q", v.Errors()[0].Field)
	}
}

func TestValidatorValidate(t *testing.T) {
	if err := New().Required("name", "flowdemo").Validate(); err != nil {
		t.Errorf("expected nil, got %v", err)
	}

	err := New().Required("name", "").Required("addr", "").Validate()
	appErr, ok := errors.AsAppError(err)
	if !ok {
		t.Fatalf("expected an AppError, got %T", err)
	}
	if appErr.Code != errors.ErrCodeInvalidInput {
		t.Errorf("expected INVALID_INPUT, got %s", appErr.Code)
	}
	if !strings.Contains(appErr.Message, "name") || !strings.Contains(appErr.Message, "addr") {
		t.Errorf("expected both fields in message, got %q", appErr.Message)
	}
	fields, _ := appErr.Details["fields"].([]FieldError)
	if len(fields) != 2 {
		t.Errorf("expected 2 field errors in details, got %v", appErr.Details["fields"])
	}
}

type poolConfig struct {
	Parallelism int    `mapstructure:"parallelism" validate:"gte=0,lte=64"`
	Name        string `yaml:"pool_name" validate:"required"`
	Addr        string `json:"addr" validate:"omitempty,hostname_port"`
}

type serviceConfig struct {
	Pool poolConfig `mapstructure:"pool"`
}

func TestValidateStruct(t *testing.T) {
	if err := Validate(&poolConfig{Parallelism: 4, Name: "io", Addr: "localhost:8080"}); err != nil {
		t.Errorf("expected valid config, got %v", err)
	}

	err := Validate(&poolConfig{Parallelism: 100, Addr: "nope"})
	if err == nil {
		t.Fatal("expected validation error")
	}
	msg := err.Error()
	for _, want := range []string{
		"parallelism: must be less than or equal to 64",
		"pool_name: is required",
		"addr: must be a host:port address",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("expected %q in %q", want, msg)
		}
	}
}

func TestValidateNestedStructUsesPath(t *testing.T) {
	err := Validate(&serviceConfig{Pool: poolConfig{Parallelism: -1, Name: "io"}})
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "pool.parallelism: must be greater than or equal to 0") {
		t.Errorf("expected dotted field path, got %q", err.Error())
	}
}

func TestToSnakeCase(t *testing.T) {
	tests := map[string]string{
		"Name":                   "name",
		"BlockingIOParallelism":  "blocking_i_o_parallelism",
		"ComputationParallelism": "computation_parallelism",
	}
	for in, want := range tests {
		if got := toSnakeCase(in); got != want {
			t.Errorf("toSnakeCase(%q) = %q, want %q", in, got, want)
		}
	}
}
