package bot

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"starplanner/internal/model"
	"starplanner/internal/recurrence"
	"starplanner/internal/timeutil"
)

func TestParsePriority(t *testing.T) {
	for input, want := range map[string]model.Priority{
		"Низкий":    model.PriorityLow,
		"средний":   model.PriorityMedium,
		"ВЫСОКИЙ":   model.PriorityHigh,
		"🔴 Высокий": model.PriorityHigh,
		"high":      model.PriorityHigh,
	} {
		got, ok := parsePriority(input)
		assert.True(t, ok, "input %q", input)
		assert.Equal(t, want, got)
	}

	_, ok := parsePriority("срочно")
	assert.False(t, ok)
}

func TestParseRepeatType(t *testing.T) {
	got, ok := parseRepeatType("Каждую неделю")
	assert.True(t, ok)
	assert.Equal(t, recurrence.Weekly, got)

	got, ok = parseRepeatType("свой интервал")
	assert.True(t, ok)
	assert.Equal(t, recurrence.Custom, got)

	_, ok = parseRepeatType("каждый год")
	assert.False(t, ok)
}

func TestRuleLabel(t *testing.T) {
	assert.Equal(t, "каждый день", ruleLabel(recurrence.Rule{Type: recurrence.Daily, Interval: 1}))
	assert.Equal(t, "каждые 3 дн.", ruleLabel(recurrence.Rule{Type: recurrence.Daily, Interval: 3}))
	assert.Equal(t, "каждую неделю", ruleLabel(recurrence.Rule{Type: recurrence.Weekly, Interval: 1}))
	assert.Equal(t, "каждые 2 мес.", ruleLabel(recurrence.Rule{Type: recurrence.Monthly, Interval: 2}))
	assert.Equal(t, "каждые 10 дн.", ruleLabel(recurrence.Rule{Type: recurrence.Custom, Interval: 10, Unit: recurrence.UnitDays}))
}

func TestShortTitle(t *testing.T) {
	assert.Equal(t, "Короткая", shortTitle("короткая", 20))
	assert.Equal(t, "Очень длинное наз…", shortTitle("очень длинное название задачи", 18))
	assert.Equal(t, "Одна строка", shortTitle("одна\nстрока", 20))
}

func TestNormalizeTitle(t *testing.T) {
	assert.Equal(t, "Полить цветы", normalizeTitle("полить цветы"))
	assert.Equal(t, "Task", normalizeTitle("  task  "))
	assert.Equal(t, "", normalizeTitle("   "))
}

func TestParseTaskID(t *testing.T) {
	id, err := parseTaskID("complete:42", cbCompletePrefix)
	assert.NoError(t, err)
	assert.EqualValues(t, 42, id)

	_, err = parseTaskID("complete:abc", cbCompletePrefix)
	assert.Error(t, err)
}

func TestFormatTaskLineEscapesHTML(t *testing.T) {
	today := timeutil.Date{Year: 2024, Month: time.June, Day: 10}
	due := today.Time()
	task := model.Task{
		ID:      7,
		Title:   "review <script> PR",
		DueDate: &due,
	}

	line := formatTaskLine(task, today)
	assert.Contains(t, line, "&lt;script&gt;")
	assert.Contains(t, line, "сегодня")
	assert.NotContains(t, line, "<script>")
}

func TestFormatTemplateLine(t *testing.T) {
	end := timeutil.Date{Year: 2024, Month: time.December, Day: 31}.Time()
	anchor := timeutil.Date{Year: 2024, Month: time.June, Day: 10}.Time()
	task := model.Task{
		ID:             3,
		Title:          "отчёт",
		DueDate:        &anchor,
		IsRecurring:    true,
		RepeatType:     recurrence.Weekly,
		RepeatInterval: 1,
		RepeatEndDate:  &end,
	}

	line := formatTemplateLine(task)
	assert.Contains(t, line, "каждую неделю")
	assert.Contains(t, line, "до 2024-12-31")
}
