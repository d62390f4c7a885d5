package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deskagent/agent/internal/domain"
)

type fakeNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (f *fakeNotifier) Notify(watchID, message string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, message)
}

func (f *fakeNotifier) snapshot() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string{}, f.messages...)
}

type fakeDispatcher struct {
	mu       sync.Mutex
	received []domain.Command
}

func (f *fakeDispatcher) Dispatch(_ context.Context, cmd domain.Command) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.received = append(f.received, cmd)
	return nil
}

func (f *fakeDispatcher) snapshot() []domain.Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Command{}, f.received...)
}

func TestStartWatchFiresOnFileCreation(t *testing.T) {
	dir := t.TempDir()
	notifier := &fakeNotifier{}
	m := New(nil, notifier, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	task, err := m.StartWatch(ctx, dir, "", "notify", nil)
	require.NoError(t, err)
	assert.Len(t, task.WatchID, 8)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "new.txt"), []byte("x"), 0o644))

	assert.Eventually(t, func() bool {
		return len(notifier.snapshot()) == 1
	}, time.Second, 10*time.Millisecond)
	assert.Contains(t, notifier.snapshot()[0], "new.txt")
}

func TestStartWatchFilterKeyRestrictsFiring(t *testing.T) {
	dir := t.TempDir()
	notifier := &fakeNotifier{}
	m := New(nil, notifier, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, err := m.StartWatch(ctx, dir, "pdf", "notify", nil)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "ignored.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "report.pdf"), []byte("x"), 0o644))

	assert.Eventually(t, func() bool {
		return len(notifier.snapshot()) == 1
	}, time.Second, 10*time.Millisecond)
	assert.Contains(t, notifier.snapshot()[0], "report.pdf")
}

func TestStartWatchDebouncesRepeatEventsOnSamePath(t *testing.T) {
	dir := t.TempDir()
	notifier := &fakeNotifier{}
	m := New(nil, notifier, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, err := m.StartWatch(ctx, dir, "", "notify", nil)
	require.NoError(t, err)

	path := filepath.Join(dir, "same.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	assert.Eventually(t, func() bool { return len(notifier.snapshot()) == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, os.WriteFile(path, []byte("y"), 0o644))
	time.Sleep(200 * time.Millisecond)
	assert.Len(t, notifier.snapshot(), 1)
}

func TestStartWatchDispatchesOnChangeWithTriggerMetadata(t *testing.T) {
	dir := t.TempDir()
	dispatcher := &fakeDispatcher{}
	m := New(dispatcher, &fakeNotifier{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	onChange := &domain.Command{Intent: domain.IntentCreateFolder, Target: "backup"}
	task, err := m.StartWatch(ctx, dir, "", "notify", onChange)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "trigger.txt"), []byte("x"), 0o644))

	assert.Eventually(t, func() bool { return len(dispatcher.snapshot()) == 1 }, time.Second, 10*time.Millisecond)
	cmd := dispatcher.snapshot()[0]
	assert.Equal(t, task.WatchID, cmd.TriggerWatch)
	assert.Equal(t, filepath.Join(dir, "trigger.txt"), cmd.TriggerFile)
	assert.Equal(t, dir, cmd.TriggerFolder)
	assert.Equal(t, domain.IntentCreateFolder, cmd.Intent)
}

func TestStopWatchRemovesTaskAndNotifiesSubscribers(t *testing.T) {
	dir := t.TempDir()
	m := New(nil, &fakeNotifier{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	task, err := m.StartWatch(ctx, dir, "", "notify", nil)
	require.NoError(t, err)

	var updates [][]domain.WatchTask
	m.Subscribe(func(tasks []domain.WatchTask) { updates = append(updates, tasks) })

	assert.True(t, m.StopWatch(task.WatchID))
	assert.Empty(t, m.List())
	require.Len(t, updates, 1)
	assert.Empty(t, updates[0])

	assert.False(t, m.StopWatch(task.WatchID))
}

func TestStopAllClearsEveryWatch(t *testing.T) {
	dir1, dir2 := t.TempDir(), t.TempDir()
	m := New(nil, &fakeNotifier{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, err := m.StartWatch(ctx, dir1, "", "notify", nil)
	require.NoError(t, err)
	_, err = m.StartWatch(ctx, dir2, "", "notify", nil)
	require.NoError(t, err)

	assert.Equal(t, 2, m.StopAll())
	assert.Empty(t, m.List())
}

func TestListReturnsActiveTasks(t *testing.T) {
	dir := t.TempDir()
	m := New(nil, &fakeNotifier{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	task, err := m.StartWatch(ctx, dir, "pdf", "notify", nil)
	require.NoError(t, err)

	tasks := m.List()
	require.Len(t, tasks, 1)
	assert.Equal(t, task.WatchID, tasks[0].WatchID)
	assert.Equal(t, "pdf", tasks[0].FilterKey)
}
