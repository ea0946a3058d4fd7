package executor

import (
	"fmt"
	"strings"
	"time"

	"github.com/ai-task-scheduler/engine/internal/models"
)

// PromptContext gathers the per-run values the prompt is assembled from
// (spec.md §4.8.1 step 2: "Context build").
type PromptContext struct {
	CreatedAt  *time.Time
	LastRunAt  *time.Time
	CurrentTime time.Time
}

// BuildPrompt assembles the deterministic, four-section prompt handed to
// the Agent (spec.md §4.8.2). It is a pure function of (task, context) —
// no global state influences it, so executor behavior is reproducible
// under test.
func BuildPrompt(task *models.Task, ctx PromptContext) string {
	var b strings.Builder

	b.WriteString(buildIdentitySection(ctx))
	b.WriteString(buildContextSection(task, ctx))
	b.WriteString(buildTaskTypeSection(task, ctx))
	b.WriteString(buildGuidelinesSection())

	return b.String()
}

// buildIdentitySection is section A: executor identity & current time.
func buildIdentitySection(ctx PromptContext) string {
	return fmt.Sprintf(
		"🎯 AI TASK EXECUTOR\n"+
			"📅 Current time: %s\n\n",
		ctx.CurrentTime.Format(time.RFC3339),
	)
}

// buildContextSection is section B: task context block.
func buildContextSection(task *models.Task, ctx PromptContext) string {
	created := "Unknown"
	if ctx.CreatedAt != nil {
		created = ctx.CreatedAt.Format(time.RFC3339)
	}
	lastRun := "Never"
	if ctx.LastRunAt != nil {
		lastRun = ctx.LastRunAt.Format(time.RFC3339)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🎯 TASK EXECUTION REQUEST:\n")
	fmt.Fprintf(&b, "📊 TASK CONTEXT:\n")
	fmt.Fprintf(&b, "  - Task ID: %s\n", task.ID)
	fmt.Fprintf(&b, "  - Task Type: %s\n", strings.ToUpper(string(task.TaskType)))
	fmt.Fprintf(&b, "  - User ID: %s\n", task.UserID)
	fmt.Fprintf(&b, "  - Created At: %s\n", created)
	fmt.Fprintf(&b, "  - Last Run At: %s\n", lastRun)
	fmt.Fprintf(&b, "  - Notification Channels: %s\n\n", joinChannels(task.NotificationChannels))
	return b.String()
}

// buildTaskTypeSection is section C: task-type-specific instructions.
func buildTaskTypeSection(task *models.Task, ctx PromptContext) string {
	switch task.TaskType {
	case models.TaskTypeReminder:
		return buildReminderContent(task)
	case models.TaskTypePeriodicTask:
		return buildPeriodicTaskContent(task, ctx)
	case models.TaskTypeAutomatedTask:
		return buildAutomatedTaskContent(task)
	default:
		return buildGenericTaskContent(task)
	}
}

func buildReminderContent(task *models.Task) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📋 REMINDER TASK DETAILS:\n")
	fmt.Fprintf(&b, "  - Title: %s\n", task.Title)
	if task.Description != "" {
		fmt.Fprintf(&b, "  - Description: %s\n", task.Description)
	}
	if task.AIContext != "" {
		fmt.Fprintf(&b, "  - Context: %s\n", task.AIContext)
	}
	fmt.Fprintf(&b, "\n🎯 REMINDER EXECUTION TASK:\n")
	fmt.Fprintf(&b, "  Acknowledge the reminder, summarize what the user asked to be reminded of, and confirm delivery.\n\n")
	return b.String()
}

func buildPeriodicTaskContent(task *models.Task, ctx PromptContext) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📋 PERIODIC TASK DETAILS:\n")
	fmt.Fprintf(&b, "  - Title: %s\n", task.Title)
	if task.Description != "" {
		fmt.Fprintf(&b, "  - Description: %s\n", task.Description)
	}
	fmt.Fprintf(&b, "  - Schedule Type: %s\n", task.ScheduleType)
	fmt.Fprintf(&b, "  - Schedule Config: %+v\n", task.ScheduleConfig)
	if task.AIContext != "" {
		fmt.Fprintf(&b, "  - Context: %s\n", task.AIContext)
	}
	if ctx.LastRunAt != nil {
		fmt.Fprintf(&b, "  - Last Run At: %s\n", ctx.LastRunAt.Format(time.RFC3339))
	}
	fmt.Fprintf(&b, "\n🎯 PERIODIC TASK EXECUTION:\n")
	fmt.Fprintf(&b, "  Execute this recurring task for the current cycle and summarize the result for the user.\n\n")
	return b.String()
}

func buildAutomatedTaskContent(task *models.Task) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📋 AUTOMATED TASK DETAILS:\n")
	fmt.Fprintf(&b, "  - Title: %s\n", task.Title)
	if task.Description != "" {
		fmt.Fprintf(&b, "  - Description: %s\n", task.Description)
	}
	if task.AIContext != "" {
		fmt.Fprintf(&b, "  - Context: %s\n", task.AIContext)
	}
	fmt.Fprintf(&b, "  - Note: this is a system-generated task executed without direct user supervision.\n")
	fmt.Fprintf(&b, "\n🎯 AUTOMATED TASK EXECUTION:\n")
	fmt.Fprintf(&b, "  Perform the automated action and report the outcome clearly.\n\n")
	return b.String()
}

func buildGenericTaskContent(task *models.Task) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📋 TASK DETAILS:\n")
	fmt.Fprintf(&b, "  - Title: %s\n", task.Title)
	if task.Description != "" {
		fmt.Fprintf(&b, "  - Description: %s\n", task.Description)
	}
	if task.AIContext != "" {
		fmt.Fprintf(&b, "  - Context: %s\n", task.AIContext)
	}
	fmt.Fprintf(&b, "\n🎯 EXECUTION:\n")
	fmt.Fprintf(&b, "  Complete this task and summarize what was done.\n\n")
	return b.String()
}

// buildGuidelinesSection is section D: professional guidelines & critical rules.
func buildGuidelinesSection() string {
	return "🎯 **PROFESSIONAL EXECUTION GUIDELINES**:\n" +
		"🚨 **CRITICAL RULES**:\n" +
		"  - Never refer to internal tool or system names.\n" +
		"  - Be concise and professional.\n" +
		"  - Always acknowledge the user's request explicitly.\n\n" +
		"💡 **RESPONSE QUALITY**:\n" +
		"  - Provide clear, actionable information.\n" +
		"  - Use a supportive, helpful tone.\n" +
		"  - Structure multi-step output as a numbered or bulleted list.\n\n" +
		"🔄 **TASK COMPLETION**:\n" +
		"  - Complete the task fully before responding.\n" +
		"  - Summarize the outcome and suggest sensible next steps.\n"
}

// BuildAIGuidance renders AI-guidance enhancements as an upper-cased
// bullet block, skipping blank entries. BuildPrompt does not call it;
// ai_context reaches the prompt verbatim through the task-type section.
func BuildAIGuidance(enhancements []string) string {
	if len(enhancements) == 0 {
		return "💡 No specific AI guidance available for this task type.\n"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🎯 **AI GUIDANCE & ENHANCEMENTS**:\n")
	for _, e := range enhancements {
		if strings.TrimSpace(e) == "" {
			continue
		}
		fmt.Fprintf(&b, "  - %s\n", strings.ToUpper(e))
	}
	return b.String()
}

func joinChannels(channels models.NotificationChannels) string {
	parts := make([]string, len(channels))
	for i, c := range channels {
		parts[i] = string(c)
	}
	return strings.Join(parts, ", ")
}
