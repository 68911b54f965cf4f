package delivery

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu      sync.Mutex
	now     time.Time
	sleeps  []time.Duration
	pending []func()
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	c.mu.Lock()
	c.sleeps = append(c.sleeps, d)
	c.mu.Unlock()
	return ctx.Err()
}

func (c *fakeClock) AfterFunc(d time.Duration, fn func()) func() bool {
	c.mu.Lock()
	c.pending = append(c.pending, fn)
	c.mu.Unlock()
	return func() bool { return false }
}

// fire runs every scheduled callback synchronously.
func (c *fakeClock) fire() {
	c.mu.Lock()
	fns := c.pending
	c.pending = nil
	c.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

type sentRecord struct {
	kind string
	seq  int
	text string
}

type fakeTransport struct {
	mu      sync.Mutex
	nextID  int
	sent    []sentRecord
	deleted []int
	failSeq map[int]error
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{failSeq: map[int]error{}}
}

func (t *fakeTransport) SendItem(_ context.Context, _ int64, item Item) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err, ok := t.failSeq[item.Seq]; ok {
		return 0, err
	}
	t.nextID++
	t.sent = append(t.sent, sentRecord{kind: "item", seq: item.Seq})
	return t.nextID, nil
}

func (t *fakeTransport) SendNotice(_ context.Context, _ int64, text string) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nextID++
	t.sent = append(t.sent, sentRecord{kind: "notice", text: text})
	return t.nextID, nil
}

func (t *fakeTransport) DeleteMessage(_ context.Context, _ int64, messageID int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.deleted = append(t.deleted, messageID)
	return nil
}

func (t *fakeTransport) notices() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []string
	for _, r := range t.sent {
		if r.kind == "notice" {
			out = append(out, r.text)
		}
	}
	return out
}

func batch(n int) []Item {
	items := make([]Item, n)
	for i := range items {
		items[i] = Item{Seq: i + 1, SourceRef: fmt.Sprintf("ref-%d", i+1), Caption: fmt.Sprintf("Episode %d", i+1)}
	}
	return items
}

func testOptions() Options {
	return Options{
		Pacing:    1500 * time.Millisecond,
		Retention: 15 * time.Minute,
		Notices: Notices{
			Separator: "that is the whole batch",
			Retention: "messages will be removed soon",
			Removed:   "messages removed",
		},
	}
}

func TestDeliverOrderAndBookends(t *testing.T) {
	tr := newFakeTransport()
	clock := newFakeClock()
	p := New(tr, clock, testOptions())

	job, err := p.Deliver(context.Background(), 42, batch(5))
	require.NoError(t, err)
	require.Equal(t, StateAwaitingCleanup, job.State())

	require.Len(t, tr.sent, 7)
	for i := 0; i < 5; i++ {
		assert.Equal(t, "item", tr.sent[i].kind)
		assert.Equal(t, i+1, tr.sent[i].seq)
	}
	// Both bookends close the batch, never precede it.
	assert.Equal(t, "notice", tr.sent[5].kind)
	assert.Equal(t, "that is the whole batch", tr.sent[5].text)
	assert.Equal(t, "notice", tr.sent[6].kind)
	assert.Equal(t, "messages will be removed soon", tr.sent[6].text)

	// Pacing waits happen between items, not around bookends.
	assert.Len(t, clock.sleeps, 4)
	for _, d := range clock.sleeps {
		assert.Equal(t, 1500*time.Millisecond, d)
	}
}

func TestDeliverSkipsFailedItem(t *testing.T) {
	tr := newFakeTransport()
	tr.failSeq[3] = errors.New("file reference expired")
	clock := newFakeClock()
	p := New(tr, clock, testOptions())

	job, err := p.Deliver(context.Background(), 42, batch(5))
	require.NoError(t, err)

	var itemSeqs []int
	for _, r := range tr.sent {
		if r.kind == "item" {
			itemSeqs = append(itemSeqs, r.seq)
		}
	}
	assert.Equal(t, []int{1, 2, 4, 5}, itemSeqs)
	// Bookends still sent, failed item excluded from the job record.
	assert.Len(t, job.SentMessageIDs(), 6)
}

func TestDeliverRejectsNonContiguousBatch(t *testing.T) {
	p := New(newFakeTransport(), newFakeClock(), testOptions())

	items := batch(3)
	items[1].Seq = 5
	_, err := p.Deliver(context.Background(), 42, items)
	require.Error(t, err)

	_, err = p.Deliver(context.Background(), 42, nil)
	require.Error(t, err)
}

func TestCleanupRemovesEverythingOnce(t *testing.T) {
	tr := newFakeTransport()
	clock := newFakeClock()
	p := New(tr, clock, testOptions())

	job, err := p.Deliver(context.Background(), 42, batch(3))
	require.NoError(t, err)
	sentIDs := job.SentMessageIDs()
	require.Len(t, sentIDs, 5)

	clock.fire()
	select {
	case <-job.CleanupDone():
	default:
		t.Fatal("cleanup did not complete")
	}
	assert.Equal(t, StateCleaned, job.State())
	assert.ElementsMatch(t, sentIDs, tr.deleted)

	// Firing again must not repeat deletions or the removed notice.
	clock.fire()
	removed := 0
	for _, text := range tr.notices() {
		if text == "messages removed" {
			removed++
		}
	}
	assert.Equal(t, 1, removed)
	assert.Len(t, tr.deleted, len(sentIDs))
}

func TestCanceledContextStopsSendsButCleanupStillRuns(t *testing.T) {
	tr := newFakeTransport()
	clock := newFakeClock()
	p := New(tr, clock, testOptions())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	job, err := p.Deliver(ctx, 42, batch(4))
	require.NoError(t, err)

	// First item goes out before the first pacing wait observes ctx.
	var itemSeqs []int
	for _, r := range tr.sent {
		if r.kind == "item" {
			itemSeqs = append(itemSeqs, r.seq)
		}
	}
	assert.Equal(t, []int{1}, itemSeqs)

	clock.fire()
	assert.Equal(t, StateCleaned, job.State())
	assert.Len(t, tr.deleted, len(job.SentMessageIDs()))
}
