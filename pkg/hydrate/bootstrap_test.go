package hydrate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"statehydrate/pkg/blob"
	"statehydrate/pkg/cell"
	"statehydrate/pkg/replay"
	"statehydrate/pkg/schema"
)

// countingCell counts writes so replay tests can prove idempotency.
type countingCell struct {
	cell.Memory
	writes int
}

func (c *countingCell) Write(v any) error {
	c.writes++
	return c.Memory.Write(v)
}

func encodeT(t *testing.T, payload map[string]any) string {
	t.Helper()
	token, err := blob.Encode(payload)
	require.NoError(t, err)
	return token
}

func userRegistry(name, age cell.Cell) Registry {
	return Registry{"user": {
		Schema: schema.Object(schema.Fields{
			"name": schema.String(),
			"age":  schema.Number(),
		}),
		Cells: map[string]cell.Cell{"name": name, "age": age},
	}}
}

func TestBootstrapNothingToDo(t *testing.T) {
	bc := NewBootstrapContext()
	b := &Bootstrapper{Registry: userRegistry(cell.NewMemory(nil), cell.NewMemory(nil)), Context: bc}

	res, err := b.Run(context.Background())
	require.NoError(t, err)
	assert.Nil(t, res, "no payload is a distinct non-failure outcome")

	_, published, err := bc.LoadResult()
	require.NoError(t, err)
	assert.False(t, published, "nothing-to-do publishes nothing")
}

func TestBootstrapDiscoveryPrecedence(t *testing.T) {
	payload := func(name string) map[string]any {
		return map[string]any{"user": map[string]any{"name": name, "age": float64(1)}}
	}

	t.Run("explicit token wins over queue and query", func(t *testing.T) {
		name := cell.NewMemory(nil)
		bc := NewBootstrapContext()
		bc.PushToken(encodeT(t, payload("from-queue")), "")
		require.NoError(t, bc.SetLocation("https://app.test/?hydrate="+encodeT(t, payload("from-query"))))

		b := &Bootstrapper{
			Registry:      userRegistry(name, cell.NewMemory(nil)),
			Context:       bc,
			ExplicitToken: encodeT(t, payload("explicit")),
		}
		res, err := b.Run(context.Background())
		require.NoError(t, err)
		require.NotNil(t, res)

		v, _ := name.Read()
		assert.Equal(t, "explicit", v)
		assert.Equal(t, 1, bc.QueueLen(), "explicit token must not consume the queue")
	})

	t.Run("queue wins over query and is consumed", func(t *testing.T) {
		name := cell.NewMemory(nil)
		bc := NewBootstrapContext()
		bc.PushToken(encodeT(t, payload("from-queue")), "")
		require.NoError(t, bc.SetLocation("https://app.test/?hydrate="+encodeT(t, payload("from-query"))))

		b := &Bootstrapper{Registry: userRegistry(name, cell.NewMemory(nil)), Context: bc}
		_, err := b.Run(context.Background())
		require.NoError(t, err)

		v, _ := name.Read()
		assert.Equal(t, "from-queue", v)
		assert.Zero(t, bc.QueueLen(), "queue is consumed and cleared")
	})

	t.Run("query parameter is the last resort", func(t *testing.T) {
		name := cell.NewMemory(nil)
		bc := NewBootstrapContext()
		require.NoError(t, bc.SetLocation("https://app.test/?hydrate="+encodeT(t, payload("from-query"))))

		b := &Bootstrapper{Registry: userRegistry(name, cell.NewMemory(nil)), Context: bc}
		res, err := b.Run(context.Background())
		require.NoError(t, err)
		require.NotNil(t, res)

		v, _ := name.Read()
		assert.Equal(t, "from-query", v)
	})
}

func TestBootstrapMultipleTokensSequential(t *testing.T) {
	name := cell.NewMemory(nil)
	age := cell.NewMemory(nil)
	bc := NewBootstrapContext()

	// Two staged payloads; the later one overwrites the user section.
	bc.PushToken(encodeT(t, map[string]any{
		"user": map[string]any{"name": "First", "age": float64(1)},
	}), "")
	bc.PushToken(encodeT(t, map[string]any{
		"user": map[string]any{"name": "Second", "age": float64(2)},
	}), "")

	b := &Bootstrapper{Registry: userRegistry(name, age), Context: bc}
	res, err := b.Run(context.Background())
	require.NoError(t, err)

	assert.True(t, res.OverallSuccess)
	v, _ := name.Read()
	assert.Equal(t, "Second", v, "payload N+1 writes land after payload N")
}

func TestBootstrapAggregateANDsAcrossTokens(t *testing.T) {
	name := cell.NewMemory(nil)
	age := cell.NewMemory(nil)
	bc := NewBootstrapContext()

	bc.PushToken(encodeT(t, map[string]any{
		"user": map[string]any{"name": "Good", "age": float64(1)},
	}), "")
	bc.PushToken(encodeT(t, map[string]any{
		"user": map[string]any{"name": float64(13), "age": "bad"},
	}), "")

	b := &Bootstrapper{Registry: userRegistry(name, age), Context: bc}
	res, err := b.Run(context.Background())
	require.NoError(t, err)

	assert.False(t, res.OverallSuccess, "overall success ANDs across every hydrate call")
	assert.False(t, res.Sections["user"].Success, "later section result overwrites the earlier one")
}

func TestBootstrapReplayGuard(t *testing.T) {
	name := &countingCell{}
	age := &countingCell{}
	reg := userRegistry(name, age)
	guard := replay.NewMemory()
	token := encodeT(t, map[string]any{
		"user": map[string]any{"name": "John", "age": float64(30)},
	})

	runOnce := func() *Result {
		bc := NewBootstrapContext()
		bc.PushToken(token, replay.Key(token))
		b := &Bootstrapper{Registry: reg, Context: bc, Guard: guard}
		res, err := b.Run(context.Background())
		require.NoError(t, err)
		return res
	}

	first := runOnce()
	require.NotNil(t, first)
	assert.True(t, first.OverallSuccess)
	assert.Equal(t, 1, name.writes)

	// Simulated reload: the token is staged again, but the guard already
	// recorded it.
	second := runOnce()
	require.NotNil(t, second)
	assert.True(t, second.OverallSuccess)
	assert.Empty(t, second.Sections, "skipped token contributes no section results")
	assert.Equal(t, 1, name.writes, "hydrating the same token twice writes only once")
}

func TestBootstrapFailedHydrationNotRecorded(t *testing.T) {
	guard := replay.NewMemory()
	token := encodeT(t, map[string]any{
		"user": map[string]any{"name": float64(1), "age": "x"},
	})

	bc := NewBootstrapContext()
	bc.PushToken(token, "")
	b := &Bootstrapper{
		Registry: userRegistry(cell.NewMemory(nil), cell.NewMemory(nil)),
		Context:  bc,
		Guard:    guard,
	}
	res, err := b.Run(context.Background())
	require.NoError(t, err)
	assert.False(t, res.OverallSuccess)

	seen, err := guard.Seen(context.Background(), replay.Key(token))
	require.NoError(t, err)
	assert.False(t, seen, "only successful hydrations enter the replay guard")
}

func TestBootstrapBarrierFailure(t *testing.T) {
	boom := errors.New("storage exploded")
	failing := cell.NewAsync(func() (any, error) { return nil, boom })

	reg := Registry{
		"settings": {
			Schema:    schema.Object(schema.Fields{"theme": schema.String()}),
			Cells:     map[string]cell.Cell{"theme": failing},
			Persisted: []string{"theme"},
		},
		"user": {
			Schema: schema.Object(schema.Fields{"name": schema.String()}),
			Cells:  map[string]cell.Cell{"name": cell.NewMemory("untouched")},
		},
	}

	bc := NewBootstrapContext()
	bc.PushToken(encodeT(t, map[string]any{"user": map[string]any{"name": "X"}}), "")

	b := &Bootstrapper{Registry: reg, Context: bc, Barrier: BarrierOptions{Timeout: time.Second}}
	res, err := b.Run(context.Background())

	var oerr *OrchestrationError
	require.ErrorAs(t, err, &oerr)
	assert.Equal(t, "barrier", oerr.Stage)
	assert.ErrorIs(t, err, boom)

	// The synthetic result fails every registry section and is published.
	require.NotNil(t, res)
	assert.False(t, res.OverallSuccess)
	require.Len(t, res.Sections, 2)
	assert.Contains(t, res.Sections["user"].Error, "bootstrap failed")

	published, ok, perr := bc.LoadResult()
	require.NoError(t, perr)
	require.True(t, ok)
	assert.False(t, published.OverallSuccess)

	v, _ := reg["user"].Cells["name"].Read()
	assert.Equal(t, "untouched", v, "barrier failure aborts before any hydration")
}

func TestBootstrapGuardIOFailure(t *testing.T) {
	bc := NewBootstrapContext()
	bc.PushToken(encodeT(t, map[string]any{"user": map[string]any{"name": "X", "age": float64(1)}}), "")

	b := &Bootstrapper{
		Registry: userRegistry(cell.NewMemory(nil), cell.NewMemory(nil)),
		Context:  bc,
		Guard:    errGuard{errors.New("db locked")},
	}
	res, err := b.Run(context.Background())

	var oerr *OrchestrationError
	require.ErrorAs(t, err, &oerr)
	assert.Equal(t, "hydrate", oerr.Stage)
	require.NotNil(t, res)
	assert.False(t, res.OverallSuccess)
}

type errGuard struct{ err error }

func (g errGuard) Seen(context.Context, string) (bool, error) { return false, g.err }
func (g errGuard) Record(context.Context, string) error       { return g.err }

func TestBootstrapPublishesResult(t *testing.T) {
	bc := NewBootstrapContext()
	bc.PushToken(encodeT(t, map[string]any{
		"user": map[string]any{"name": "John", "age": float64(30)},
	}), "")

	b := &Bootstrapper{
		Registry: userRegistry(cell.NewMemory(nil), cell.NewMemory(nil)),
		Context:  bc,
	}
	res, err := b.Run(context.Background())
	require.NoError(t, err)

	published, ok, err := bc.LoadResult()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, res, published)
	assert.True(t, published.Sections["user"].Success)
}
