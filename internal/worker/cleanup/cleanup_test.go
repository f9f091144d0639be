package cleanup

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// mockPurger は EventPurger のモック実装。
type mockPurger struct {
	mu      sync.Mutex
	calls   int
	before  time.Time
	deleted int64
	err     error
}

func (m *mockPurger) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.before = before
	return m.deleted, m.err
}

func (m *mockPurger) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

var fixedNow = time.Date(2026, 3, 15, 3, 0, 0, 0, time.UTC)

func newFixedJob(p *mockPurger, buf *bytes.Buffer) *CleanupJob {
	job := NewCleanupJob(p, newTestLogger(buf))
	job.now = func() time.Time { return fixedNow }
	return job
}

// logHasField はJSONログのいずれかの行に指定フィールドと値が含まれるかを返す。
func logHasField(buf *bytes.Buffer, key string, want interface{}) bool {
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var entry map[string]interface{}
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			continue
		}
		if v, ok := entry[key]; ok && (want == nil || v == want) {
			return true
		}
	}
	return false
}

func TestNewCleanupJob_SetsRetentionDays(t *testing.T) {
	var buf bytes.Buffer
	job := NewCleanupJob(&mockPurger{}, newTestLogger(&buf))

	if job.RetentionDays != 14 {
		t.Errorf("RetentionDays = %d, want 14", job.RetentionDays)
	}
}

func TestCleanupJob_Run_PassesCutoff(t *testing.T) {
	var buf bytes.Buffer
	p := &mockPurger{deleted: 5}
	job := newFixedJob(p, &buf)

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run() がエラーを返した: %v", err)
	}

	want := fixedNow.AddDate(0, 0, -14)
	if !p.before.Equal(want) {
		t.Errorf("before = %v, want %v", p.before, want)
	}
}

func TestCleanupJob_CustomRetentionDays(t *testing.T) {
	var buf bytes.Buffer
	p := &mockPurger{}
	job := newFixedJob(p, &buf)
	job.RetentionDays = 90

	_ = job.Run(context.Background())

	want := fixedNow.AddDate(0, 0, -90)
	if !p.before.Equal(want) {
		t.Errorf("before = %v, want %v", p.before, want)
	}
}

func TestCleanupJob_Run_LogsResult(t *testing.T) {
	var buf bytes.Buffer
	job := newFixedJob(&mockPurger{deleted: 42}, &buf)

	_ = job.Run(context.Background())

	if !logHasField(&buf, "deleted_count", float64(42)) {
		t.Errorf("ログに deleted_count=42 が記録されていない。ログ出力: %s", buf.String())
	}
	if !logHasField(&buf, "retention_days", float64(14)) {
		t.Errorf("ログに retention_days=14 が記録されていない。ログ出力: %s", buf.String())
	}
	if !logHasField(&buf, "duration_ms", nil) {
		t.Errorf("ログに duration_ms が記録されていない。ログ出力: %s", buf.String())
	}
}

func TestCleanupJob_Run_ReturnsErrorOnDBFailure(t *testing.T) {
	var buf bytes.Buffer
	job := newFixedJob(&mockPurger{err: sql.ErrConnDone}, &buf)

	err := job.Run(context.Background())
	if err == nil {
		t.Fatal("DBエラー時に Run() は nil でないエラーを返すべき")
	}
	if !strings.Contains(err.Error(), "sql: connection is already closed") {
		t.Errorf("エラーメッセージが期待と異なる: %v", err)
	}
	if !strings.Contains(buf.String(), "ERROR") {
		t.Errorf("エラー時にERRORレベルのログが記録されていない。ログ出力: %s", buf.String())
	}
}

func TestCleanupJob_Run_Idempotent_ZeroRows(t *testing.T) {
	var buf bytes.Buffer
	job := newFixedJob(&mockPurger{}, &buf)

	// 削除対象がなくてもエラーにならない
	for i := 0; i < 2; i++ {
		if err := job.Run(context.Background()); err != nil {
			t.Fatalf("%d回目の Run() がエラーを返した: %v", i+1, err)
		}
	}
	if !logHasField(&buf, "deleted_count", float64(0)) {
		t.Errorf("0件削除時にもログに deleted_count=0 が記録されるべき。ログ出力: %s", buf.String())
	}
}

func TestCleanupJob_Start_RunsImmediatelyAndStops(t *testing.T) {
	var buf bytes.Buffer
	p := &mockPurger{}
	job := NewCleanupJob(p, newTestLogger(&buf))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		job.Start(ctx, time.Hour)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for p.callCount() == 0 {
		select {
		case <-deadline:
			t.Fatal("起動直後に Run が実行されなかった")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("キャンセル後に Start が終了しなかった")
	}
}
