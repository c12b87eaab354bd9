package queue

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatActivity(t *testing.T) {
	at := time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC)
	line := FormatActivity(ActivityEvent{
		Type:       EventEnrollmentCreated,
		ActorID:    1,
		UserID:     7,
		CourseID:   3,
		Title:      "Intro to X",
		Amount:     100,
		OccurredAt: at,
	})
	assert.Equal(t, `[2026-04-02T10:00:00Z] enrollment.created | actor_id=1 | user_id=7 | course_id=3 | title="Intro to X" | amount=100.00`+"\n", line)
}

func TestConsumerHandleAppendsLines(t *testing.T) {
	dir := t.TempDir()
	c := &ActivityConsumer{LogPath: filepath.Join(dir, "nested", "activity.log")}

	require.NoError(t, c.handle([]byte(`{"type":"user.registered","user_id":5,"occurred_at":"2026-04-02T10:00:00Z"}`)))
	require.NoError(t, c.handle([]byte(`{"type":"course.deleted","course_id":9,"occurred_at":"2026-04-02T11:00:00Z"}`)))

	b, err := os.ReadFile(c.LogPath)
	require.NoError(t, err)
	assert.Equal(t,
		"[2026-04-02T10:00:00Z] user.registered | user_id=5\n[2026-04-02T11:00:00Z] course.deleted | course_id=9\n",
		string(b))
}

func TestConsumerHandleRejectsGarbage(t *testing.T) {
	c := &ActivityConsumer{LogPath: filepath.Join(t.TempDir(), "activity.log")}
	assert.Error(t, c.handle([]byte("not json")))
}
