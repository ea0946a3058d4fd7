package middleware_test

import (
	"testing"

	. "github.com/ai-task-scheduler/engine/internal/api/middleware"
)

func TestValidator_ValidateTaskType_AcceptsAllowed(t *testing.T) {
	v := NewValidator(DefaultValidatorConfig())

	for _, taskType := range []string{"reminder", "periodic_task", "automated_task", "custom"} {
		if err := v.ValidateTaskType(taskType); err != nil {
			t.Errorf("expected task type '%s' to be valid", taskType)
		}
	}
}

func TestValidator_ValidateTaskType_RejectsUnknown(t *testing.T) {
	v := NewValidator(DefaultValidatorConfig())

	if err := v.ValidateTaskType("unknown"); err == nil {
		t.Error("expected unknown task type to be rejected")
	}
}

func TestValidator_ValidateTitle_RejectsEmpty(t *testing.T) {
	v := NewValidator(DefaultValidatorConfig())

	if err := v.ValidateTitle(""); err == nil {
		t.Error("expected empty title to be rejected")
	}
}

func TestValidator_ValidateTitle_RejectsTooLong(t *testing.T) {
	config := DefaultValidatorConfig()
	config.MaxTitleLength = 5
	v := NewValidator(config)

	if err := v.ValidateTitle("toolongtitle"); err == nil {
		t.Error("expected too long title to be rejected")
	}
}

func TestValidationError_Error(t *testing.T) {
	err := &ValidationError{
		Field:   "title",
		Message: "is required",
	}

	expected := "title: is required"
	if err.Error() != expected {
		t.Errorf("expected '%s', got '%s'", expected, err.Error())
	}
}
