package executor_test

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/ai-task-scheduler/engine/internal/executor"
	"github.com/ai-task-scheduler/engine/internal/models"
)

func sampleTask(taskType models.TaskType) *models.Task {
	return &models.Task{
		ID:                   uuid.New(),
		UserID:               "user-1",
		Title:                "Call Bob",
		Description:          "Follow up on the proposal",
		TaskType:             taskType,
		ScheduleType:         models.ScheduleDaily,
		ScheduleConfig:       models.ScheduleConfig{Hour: 9, Minute: 0},
		NotificationChannels: models.NotificationChannels{models.ChannelSMS, models.ChannelEmail},
		AIContext:            "Bob prefers morning calls.",
	}
}

func TestBuildPrompt_ContainsAllFourSections(t *testing.T) {
	task := sampleTask(models.TaskTypeReminder)
	ctx := executor.PromptContext{CurrentTime: time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)}

	prompt := executor.BuildPrompt(task, ctx)

	for _, marker := range []string{"AI TASK EXECUTOR", "TASK CONTEXT", "REMINDER", "PROFESSIONAL EXECUTION GUIDELINES"} {
		if !strings.Contains(prompt, marker) {
			t.Errorf("expected prompt to contain %q, got:\n%s", marker, prompt)
		}
	}
}

func TestBuildPrompt_IsPureFunction(t *testing.T) {
	task := sampleTask(models.TaskTypePeriodicTask)
	ctx := executor.PromptContext{CurrentTime: time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)}

	a := executor.BuildPrompt(task, ctx)
	b := executor.BuildPrompt(task, ctx)
	if a != b {
		t.Error("expected BuildPrompt to be deterministic given the same task and context")
	}
}

func TestBuildPrompt_TaskTypeSpecificContent(t *testing.T) {
	cases := map[models.TaskType]string{
		models.TaskTypeReminder:      "REMINDER TASK DETAILS",
		models.TaskTypePeriodicTask:  "PERIODIC TASK DETAILS",
		models.TaskTypeAutomatedTask: "AUTOMATED TASK DETAILS",
		models.TaskTypeCustom:        "TASK DETAILS",
	}
	ctx := executor.PromptContext{CurrentTime: time.Now().UTC()}

	for taskType, marker := range cases {
		task := sampleTask(taskType)
		prompt := executor.BuildPrompt(task, ctx)
		if !strings.Contains(prompt, marker) {
			t.Errorf("task type %q: expected prompt to contain %q", taskType, marker)
		}
	}
}

func TestBuildPrompt_IncludesChannelsAndContext(t *testing.T) {
	task := sampleTask(models.TaskTypeReminder)
	ctx := executor.PromptContext{CurrentTime: time.Now().UTC()}

	prompt := executor.BuildPrompt(task, ctx)

	if !strings.Contains(prompt, "sms, email") {
		t.Errorf("expected channels joined in order, got:\n%s", prompt)
	}
	if !strings.Contains(prompt, task.AIContext) {
		t.Error("expected ai_context carried verbatim into the prompt")
	}
}

func TestBuildAIGuidance_Empty(t *testing.T) {
	got := executor.BuildAIGuidance(nil)
	if !strings.Contains(got, "No specific AI guidance") {
		t.Errorf("expected fallback guidance text, got %q", got)
	}
}

func TestBuildAIGuidance_WithEnhancements(t *testing.T) {
	got := executor.BuildAIGuidance([]string{"use a friendly tone", ""})
	if !strings.Contains(got, "USE A FRIENDLY TONE") {
		t.Errorf("expected enhancement echoed uppercased, got %q", got)
	}
}
