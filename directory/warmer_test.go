package directory

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/madbus/madbus/emt"
	"github.com/madbus/madbus/logging"
	"github.com/madbus/madbus/model"
)

type stubSource struct {
	mutex sync.Mutex
	nodes map[int]emt.Node

	// number of failures left, by batch start
	failures map[int]int
	calls    []string
}

func (s *stubSource) CatalogPage(ctx context.Context, from int, to int) ([]emt.Node, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.calls = append(s.calls, fmt.Sprintf("%d-%d", from, to))
	if s.failures[from] > 0 {
		s.failures[from]--
		return nil, errors.New("boom")
	}

	nodes := []emt.Node{}
	for id := from; id < to; id++ {
		if n, found := s.nodes[id]; found {
			nodes = append(nodes, n)
		}
	}
	return nodes, nil
}

type stubNormalizer struct{}

func (stubNormalizer) NormalizeNode(ctx context.Context, node emt.Node) (*model.Stop, error) {
	if node.Name == "broken" {
		return nil, errors.New("broken node")
	}
	return &model.Stop{ID: node.Node.String(), Name: node.Name}, nil
}

func newStubSource(ids ...int) *stubSource {
	s := &stubSource{
		nodes:    map[int]emt.Node{},
		failures: map[int]int{},
	}
	for _, id := range ids {
		s.nodes[id] = emt.Node{Node: emt.Text(strconv.Itoa(id)), Name: fmt.Sprintf("Stop %d", id)}
	}
	return s
}

func testWarmer(d *Directory, source PageSource) *Warmer {
	w := NewWarmer(d, source, stubNormalizer{})
	w.BatchSize = 10
	w.MaxID = 35
	w.Stagger = 0
	w.Retry = RetryPolicy{}
	return w
}

func TestWarmerBatches(t *testing.T) {
	w := testWarmer(New(), newStubSource())
	assert.Equal(t, []batch{{1, 11}, {11, 21}, {21, 31}, {31, 35}}, w.batches())

	w.MaxID = 1
	assert.Equal(t, []batch{}, w.batches())
}

func TestWarmerLoadsAllBatches(t *testing.T) {
	d := New()
	source := newStubSource(1, 5, 12, 30, 34)
	w := testWarmer(d, source)

	require.NoError(t, w.Run(context.Background()))

	assert.Equal(t, 5, d.Len())
	assert.True(t, d.Complete())
	assert.ElementsMatch(t, []string{"1-11", "11-21", "21-31", "31-35"}, source.calls)

	s, found := d.Get("12")
	require.True(t, found)
	assert.Equal(t, "Stop 12", s.Name)
}

func TestWarmerReportsCompletion(t *testing.T) {
	buf := &bytes.Buffer{}
	require.NoError(t, logging.Setup("info", "json", buf))
	defer logging.Setup("info", "text", nil)

	d := New()
	require.NoError(t, testWarmer(d, newStubSource(1, 12)).Run(context.Background()))

	assert.Equal(t, 1, strings.Count(buf.String(), `"msg":"stop directory complete"`))
	assert.Contains(t, buf.String(), `"stops":2`)
}

func TestWarmerSkipsBrokenNodes(t *testing.T) {
	d := New()
	source := newStubSource(1, 2)
	source.nodes[2] = emt.Node{Node: "2", Name: "broken"}

	require.NoError(t, testWarmer(d, source).Run(context.Background()))

	assert.Equal(t, 1, d.Len())
	_, found := d.Get("2")
	assert.False(t, found)
}

func TestWarmerRetriesFailedBatch(t *testing.T) {
	d := New()
	source := newStubSource(12, 13)
	source.failures[11] = 3

	w := testWarmer(d, source)
	require.NoError(t, w.Run(context.Background()))

	assert.Equal(t, 2, d.Len())
	assert.True(t, d.Complete())

	retried := 0
	for _, c := range source.calls {
		if c == "11-21" {
			retried++
		}
	}
	assert.Equal(t, 4, retried)
}

func TestWarmerGivesUp(t *testing.T) {
	d := New()
	source := newStubSource(1, 12)
	source.failures[11] = 100

	w := testWarmer(d, source)
	w.Retry = RetryPolicy{MaxAttempts: 2}

	err := w.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "batch 11-21")

	// Other batches still loaded, but directory not complete
	assert.Equal(t, 1, d.Len())
	assert.False(t, d.Complete())
}

func TestWarmerStaggersBatches(t *testing.T) {
	d := New()
	w := testWarmer(d, newStubSource(1))
	w.MaxID = 31
	w.Stagger = 20 * time.Millisecond

	start := time.Now()
	require.NoError(t, w.Run(context.Background()))
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}

func TestWarmerCancelled(t *testing.T) {
	d := New()
	source := newStubSource(1)
	source.failures[1] = 1000

	w := testWarmer(d, source)
	w.Retry = RetryPolicy{InitialDelay: 10 * time.Millisecond}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := w.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, d.Complete())
}

func TestRetryPolicyDelay(t *testing.T) {
	p := RetryPolicy{InitialDelay: time.Second, MaxDelay: 10 * time.Second, Multiplier: 2}
	assert.Equal(t, time.Duration(0), p.Delay(0))
	assert.Equal(t, 1*time.Second, p.Delay(1))
	assert.Equal(t, 2*time.Second, p.Delay(2))
	assert.Equal(t, 4*time.Second, p.Delay(3))
	assert.Equal(t, 8*time.Second, p.Delay(4))
	assert.Equal(t, 10*time.Second, p.Delay(5))
	assert.Equal(t, 10*time.Second, p.Delay(50))

	// Fixed delay
	p = RetryPolicy{InitialDelay: time.Second}
	assert.Equal(t, time.Second, p.Delay(7))

	// Immediate
	assert.Equal(t, time.Duration(0), RetryPolicy{}.Delay(3))
}

func TestRetryPolicyAllow(t *testing.T) {
	assert.True(t, RetryPolicy{}.Allow(1000000))
	assert.True(t, RetryPolicy{MaxAttempts: 3}.Allow(2))
	assert.False(t, RetryPolicy{MaxAttempts: 3}.Allow(3))
}
