package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/tabletalk/internal/ai"
	"github.com/KaramelBytes/tabletalk/internal/dataset"
	"github.com/KaramelBytes/tabletalk/internal/dispatch"
	"github.com/KaramelBytes/tabletalk/internal/intent"
)

func pipeline() *dataset.Dataset {
	return dataset.New("pipeline", []string{"Customer", "Owner", "Status", "Revenue"}, [][]string{
		{"Acme", "Dana", "Green", "100"},
		{"Globex", "Lee", "Red", "250"},
		{"Initech", "Dana", "Green", "75"},
	})
}

func localDispatcher() *dispatch.Dispatcher {
	return dispatch.New(dispatch.Config{Logger: zerolog.Nop()})
}

// countingAnswerer records how many calls overlap.
type countingAnswerer struct {
	mu      sync.Mutex
	active  int
	overlap bool
	calls   int
}

func (c *countingAnswerer) AnswerAs(ctx context.Context, in intent.Intent, q string, ds *dataset.Dataset, pc dispatch.ProviderConfig) (*dispatch.Answer, error) {
	c.mu.Lock()
	c.active++
	c.calls++
	if c.active > 1 {
		c.overlap = true
	}
	c.mu.Unlock()
	time.Sleep(2 * time.Millisecond)
	c.mu.Lock()
	c.active--
	c.mu.Unlock()
	return &dispatch.Answer{BackendUsed: ai.ProviderLocal}, nil
}

func TestNewSessionSuggestsWithoutData(t *testing.T) {
	s := New(dispatch.ProviderConfig{Backend: "local"})
	require.NotEmpty(t, s.ID)
	assert.Contains(t, s.Suggestions(), "What kind of data analysis can you help me with?")
	assert.Nil(t, s.Profile())
}

func TestLoadDatasetRefreshesSuggestions(t *testing.T) {
	s := New(dispatch.ProviderConfig{})
	got := s.LoadDataset(pipeline())
	assert.Contains(t, got, "Analyze Revenue performance and identify key trends")
	assert.Equal(t, got, s.Suggestions())
	require.NotNil(t, s.Profile())
	assert.Equal(t, 3, s.Profile().RowCount)
}

func TestAskAppendsTurnsInOrder(t *testing.T) {
	s := New(dispatch.ProviderConfig{Backend: "local"})
	s.LoadDataset(pipeline())
	d := localDispatcher()

	_, err := s.Ask(context.Background(), d, "show top customers")
	require.NoError(t, err)
	_, err = s.Ask(context.Background(), d, "what is the status breakdown?")
	require.NoError(t, err)

	turns := s.Turns()
	require.Len(t, turns, 2)
	assert.Equal(t, "show top customers", turns[0].Question)
	assert.Equal(t, intent.Ranking, turns[0].Result.Intent)
	assert.Equal(t, intent.Distribution, turns[1].Result.Intent)
	assert.Equal(t, ai.ProviderLocal, turns[1].BackendUsed)

	turns[0].Question = "mutated"
	assert.Equal(t, "show top customers", s.Turns()[0].Question)
}

func TestAskWithoutDatasetFails(t *testing.T) {
	s := New(dispatch.ProviderConfig{})
	_, err := s.Ask(context.Background(), localDispatcher(), "summary")
	var empty *dataset.EmptyDatasetError
	require.ErrorAs(t, err, &empty)
	assert.Empty(t, s.Turns())
}

func TestAskIsSerialized(t *testing.T) {
	s := New(dispatch.ProviderConfig{})
	a := &countingAnswerer{}
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.Ask(context.Background(), a, "q")
		}()
	}
	wg.Wait()
	assert.False(t, a.overlap)
	assert.Equal(t, 8, a.calls)
	assert.Len(t, s.Turns(), 8)
}

func TestCloseClearsState(t *testing.T) {
	s := New(dispatch.ProviderConfig{Backend: "openai", Credentials: "sk-secret"})
	s.LoadDataset(pipeline())
	s.Close()

	_, err := s.Ask(context.Background(), localDispatcher(), "summary")
	assert.True(t, errors.Is(err, ErrClosed))
	assert.Nil(t, s.Profile())
	assert.Empty(t, s.Turns())
	assert.Empty(t, s.cfg.Credentials)
}

func TestStoreLifecycle(t *testing.T) {
	st := NewStore()
	s := st.Create(dispatch.ProviderConfig{Backend: "local"})

	got, err := st.Get(s.ID)
	require.NoError(t, err)
	assert.Same(t, s, got)
	assert.Equal(t, 1, st.Len())

	require.NoError(t, st.Delete(s.ID))
	_, err = st.Get(s.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, st.Delete(s.ID), ErrNotFound)
}

func TestSweepIdle(t *testing.T) {
	base := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	clock := base
	now = func() time.Time { return clock }
	t.Cleanup(func() { now = time.Now })

	st := NewStore()
	old := st.Create(dispatch.ProviderConfig{})
	clock = base.Add(50 * time.Minute)
	fresh := st.Create(dispatch.ProviderConfig{})

	clock = base.Add(61 * time.Minute)
	swept := st.SweepIdle(time.Hour)

	assert.Equal(t, []string{old.ID}, swept)
	_, err := st.Get(old.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = st.Get(fresh.ID)
	assert.NoError(t, err)
	_, err = old.Ask(context.Background(), localDispatcher(), "summary")
	assert.ErrorIs(t, err, ErrClosed)
}
