package hydrate

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"statehydrate/pkg/blob"
	"statehydrate/pkg/cell"
	"statehydrate/pkg/schema"
)

// failingCell rejects every write.
type failingCell struct{}

func (failingCell) Read() (any, error) { return nil, nil }
func (failingCell) Write(any) error    { return errors.New("write rejected") }

func userSection(name, age cell.Cell) Section {
	return Section{
		Schema: schema.Object(schema.Fields{
			"name": schema.String(),
			"age":  schema.Number(),
		}),
		Cells: map[string]cell.Cell{"name": name, "age": age},
	}
}

func TestApplyExample(t *testing.T) {
	name := cell.NewMemory(nil)
	age := cell.NewMemory(nil)
	reg := Registry{"user": userSection(name, age)}

	payload := map[string]any{
		"user": map[string]any{"name": "John", "age": float64(30)},
	}
	res := Apply(payload, reg, DefaultOptions())

	assert.True(t, res.OverallSuccess)
	require.Contains(t, res.Sections, "user")
	sr := res.Sections["user"]
	assert.True(t, sr.Success)
	assert.Equal(t, []string{"age", "name"}, sr.AppliedFields)
	assert.Empty(t, sr.Warnings)

	v, err := name.Read()
	require.NoError(t, err)
	assert.Equal(t, "John", v)
	v, err = age.Read()
	require.NoError(t, err)
	assert.Equal(t, float64(30), v)
}

func TestApplyEmptyPayload(t *testing.T) {
	reg := Registry{"user": userSection(cell.NewMemory(nil), cell.NewMemory(nil))}

	res := Apply(map[string]any{}, reg, DefaultOptions())

	assert.True(t, res.OverallSuccess)
	assert.Empty(t, res.Sections)
}

func TestApplySkipsSectionsNotInRegistry(t *testing.T) {
	reg := Registry{"user": userSection(cell.NewMemory(nil), cell.NewMemory(nil))}

	res := Apply(map[string]any{
		"unknown": map[string]any{"x": float64(1)},
	}, reg, DefaultOptions())

	assert.True(t, res.OverallSuccess)
	assert.NotContains(t, res.Sections, "unknown")
}

func TestApplyValidationFailureWritesNothing(t *testing.T) {
	name := cell.NewMemory("untouched")
	age := cell.NewMemory("untouched")
	reg := Registry{"user": userSection(name, age)}

	res := Apply(map[string]any{
		"user": map[string]any{"name": "John", "age": "thirty"},
	}, reg, DefaultOptions())

	assert.False(t, res.OverallSuccess)
	sr := res.Sections["user"]
	assert.False(t, sr.Success)
	assert.Contains(t, sr.Error, "age: ")
	assert.Empty(t, sr.AppliedFields)

	v, _ := name.Read()
	assert.Equal(t, "untouched", v, "failed validation must not write any cell")
}

func TestApplyPartialFailureIsolation(t *testing.T) {
	userName := cell.NewMemory(nil)
	userAge := cell.NewMemory(nil)
	theme := cell.NewMemory("light")

	reg := Registry{
		"user": userSection(userName, userAge),
		"settings": {
			Schema: schema.Object(schema.Fields{"theme": schema.String()}),
			Cells:  map[string]cell.Cell{"theme": theme},
		},
	}

	res := Apply(map[string]any{
		"user":     map[string]any{"name": "John", "age": float64(30)},
		"settings": map[string]any{"theme": float64(7)},
	}, reg, DefaultOptions())

	assert.False(t, res.OverallSuccess)
	assert.True(t, res.Sections["user"].Success)
	assert.False(t, res.Sections["settings"].Success)

	v, _ := userName.Read()
	assert.Equal(t, "John", v, "valid sibling section must still apply")
	v, _ = theme.Read()
	assert.Equal(t, "light", v, "invalid section must not touch its cells")
}

func TestStrictConsistency(t *testing.T) {
	t.Run("missing cell fails section", func(t *testing.T) {
		reg := Registry{"user": {
			Schema: schema.Object(schema.Fields{
				"a": schema.String(),
				"b": schema.String(),
			}),
			Cells: map[string]cell.Cell{"a": cell.NewMemory(nil)},
		}}

		res := Apply(map[string]any{
			"user": map[string]any{"a": "1", "b": "2"},
		}, reg, DefaultOptions())

		sr := res.Sections["user"]
		assert.False(t, sr.Success)
		assert.Contains(t, sr.Error, "missing atom: b")
		assert.Empty(t, sr.AppliedFields, "consistency failure must abort before any write")
	})

	t.Run("extra cell fails section", func(t *testing.T) {
		reg := Registry{"user": {
			Schema: schema.Object(schema.Fields{
				"a": schema.String(),
				"b": schema.String(),
			}),
			Cells: map[string]cell.Cell{
				"a": cell.NewMemory(nil),
				"b": cell.NewMemory(nil),
				"c": cell.NewMemory(nil),
			},
		}}

		res := Apply(map[string]any{
			"user": map[string]any{"a": "1", "b": "2"},
		}, reg, DefaultOptions())

		sr := res.Sections["user"]
		assert.False(t, sr.Success)
		assert.Contains(t, sr.Error, "Extra atoms not in schema: c")
	})

	t.Run("exact correspondence succeeds", func(t *testing.T) {
		reg := Registry{"user": {
			Schema: schema.Object(schema.Fields{
				"a": schema.String(),
				"b": schema.String(),
			}),
			Cells: map[string]cell.Cell{
				"a": cell.NewMemory(nil),
				"b": cell.NewMemory(nil),
			},
		}}

		res := Apply(map[string]any{
			"user": map[string]any{"a": "1", "b": "2"},
		}, reg, DefaultOptions())

		assert.True(t, res.Sections["user"].Success)
	})
}

func TestOpaqueSchemaFallback(t *testing.T) {
	opaque := schema.Func(func(v any) (map[string]any, schema.Issues) {
		return v.(map[string]any), nil
	})

	t.Run("strict check degrades to validated keys with warning", func(t *testing.T) {
		reg := Registry{"user": {
			Schema: opaque,
			Cells:  map[string]cell.Cell{"name": cell.NewMemory(nil)},
		}}

		res := Apply(map[string]any{
			"user": map[string]any{"name": "Ada"},
		}, reg, DefaultOptions())

		sr := res.Sections["user"]
		assert.True(t, sr.Success)
		require.Len(t, sr.Warnings, 1)
		assert.Contains(t, sr.Warnings[0], "declared fields")
	})

	t.Run("opaque rule schema still enforces correspondence on value keys", func(t *testing.T) {
		reg := Registry{"user": {
			Schema: opaque,
			Cells:  map[string]cell.Cell{"name": cell.NewMemory(nil)},
		}}

		res := Apply(map[string]any{
			"user": map[string]any{"name": "Ada", "extra": "x"},
		}, reg, DefaultOptions())

		sr := res.Sections["user"]
		assert.False(t, sr.Success)
		assert.Contains(t, sr.Error, "missing atom: extra")
	})
}

func TestNonStrictMode(t *testing.T) {
	name := cell.NewMemory(nil)
	reg := Registry{"user": {
		Schema: schema.Object(schema.Fields{
			"name":  schema.String(),
			"motto": schema.String(),
		}),
		Cells: map[string]cell.Cell{"name": name},
	}}

	res := Apply(map[string]any{
		"user": map[string]any{"name": "Ada", "motto": "onwards"},
	}, reg, HydrateOptions{Strict: false})

	sr := res.Sections["user"]
	assert.True(t, sr.Success)
	assert.Equal(t, []string{"name"}, sr.AppliedFields)
	require.Len(t, sr.Warnings, 1)
	assert.Equal(t, "No atom found for field: motto", sr.Warnings[0])
}

func TestOptionalAbsentFieldSkipped(t *testing.T) {
	name := cell.NewMemory(nil)
	email := cell.NewMemory("keep-me")
	reg := Registry{"user": {
		Schema: schema.Object(schema.Fields{
			"name":  schema.String(),
			"email": schema.Optional(schema.String()),
		}),
		Cells: map[string]cell.Cell{"name": name, "email": email},
	}}

	res := Apply(map[string]any{
		"user": map[string]any{"name": "Ada"},
	}, reg, DefaultOptions())

	sr := res.Sections["user"]
	assert.True(t, sr.Success)
	assert.Equal(t, []string{"name"}, sr.AppliedFields)

	v, _ := email.Read()
	assert.Equal(t, "keep-me", v)
}

func TestWriteFailureStopsSection(t *testing.T) {
	a := cell.NewMemory(nil)
	c := cell.NewMemory("untouched")
	reg := Registry{"sec": {
		Schema: schema.Object(schema.Fields{
			"a": schema.String(),
			"b": schema.String(),
			"c": schema.String(),
		}),
		Cells: map[string]cell.Cell{"a": a, "b": failingCell{}, "c": c},
	}}

	res := Apply(map[string]any{
		"sec": map[string]any{"a": "1", "b": "2", "c": "3"},
	}, reg, DefaultOptions())

	sr := res.Sections["sec"]
	assert.False(t, sr.Success)
	assert.Contains(t, sr.Error, "Failed to set atom for field b")
	assert.Equal(t, []string{"a"}, sr.AppliedFields, "fields applied before the failure stay applied")

	v, _ := a.Read()
	assert.Equal(t, "1", v, "no rollback")
	v, _ = c.Read()
	assert.Equal(t, "untouched", v, "fields after the failure are not applied")

	assert.False(t, res.OverallSuccess)
}

func TestWholeMode(t *testing.T) {
	t.Run("writes entire validated object to the single cell", func(t *testing.T) {
		profile := cell.NewMemory(nil)
		reg := Registry{"profile": {
			Schema: schema.Object(schema.Fields{
				"theme": schema.String(),
				"zoom":  schema.Number(),
			}),
			Cells: map[string]cell.Cell{"profile": profile},
			Mode:  ModeWhole,
		}}

		res := Apply(map[string]any{
			"profile": map[string]any{"theme": "dark", "zoom": float64(2)},
		}, reg, DefaultOptions())

		sr := res.Sections["profile"]
		require.True(t, sr.Success, "error: %s", sr.Error)
		assert.Equal(t, []string{"profile"}, sr.AppliedFields)

		v, _ := profile.Read()
		assert.Equal(t, map[string]any{"theme": "dark", "zoom": float64(2)}, v)
	})

	t.Run("requires exactly one cell", func(t *testing.T) {
		reg := Registry{"profile": {
			Schema: schema.Object(schema.Fields{"theme": schema.String()}),
			Cells: map[string]cell.Cell{
				"a": cell.NewMemory(nil),
				"b": cell.NewMemory(nil),
			},
			Mode: ModeWhole,
		}}

		res := Apply(map[string]any{
			"profile": map[string]any{"theme": "dark"},
		}, reg, DefaultOptions())

		sr := res.Sections["profile"]
		assert.False(t, sr.Success)
		assert.Contains(t, sr.Error, "exactly one atom")
	})
}

func TestApplyTokenDecodeFailureFailsEverySection(t *testing.T) {
	name := cell.NewMemory("untouched")
	reg := Registry{
		"user":     userSection(name, cell.NewMemory(nil)),
		"settings": {Schema: schema.Object(schema.Fields{}), Cells: map[string]cell.Cell{}},
	}

	res := ApplyToken("!!!not-a-token!!!", reg, DefaultOptions())

	assert.False(t, res.OverallSuccess)
	require.Len(t, res.Sections, 2, "every registry section fails, not just payload sections")
	for name, sr := range res.Sections {
		assert.False(t, sr.Success, "section %s", name)
		assert.Contains(t, sr.Error, "base64")
	}

	v, _ := name.Read()
	assert.Equal(t, "untouched", v)
}

func TestApplyTokenRoundTrip(t *testing.T) {
	name := cell.NewMemory(nil)
	age := cell.NewMemory(nil)
	reg := Registry{"user": userSection(name, age)}

	token, err := blob.Encode(map[string]any{
		"user": map[string]any{"name": "John", "age": float64(30)},
	})
	require.NoError(t, err)

	res := ApplyToken(token, reg, DefaultOptions())
	assert.True(t, res.OverallSuccess)

	v, _ := name.Read()
	assert.Equal(t, "John", v)
}

func TestApplyTokenNonObjectRoot(t *testing.T) {
	reg := Registry{"user": userSection(cell.NewMemory(nil), cell.NewMemory(nil))}

	token, err := blob.Encode([]any{"not", "an", "object"})
	require.NoError(t, err)

	res := ApplyToken(token, reg, DefaultOptions())
	assert.False(t, res.OverallSuccess)
	assert.Contains(t, res.Sections["user"].Error, "not an object")
}
