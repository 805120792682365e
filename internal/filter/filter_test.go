package filter

import (
	"context"
	"errors"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-hh-autoreply/internal/models"
	"go-hh-autoreply/internal/storage"
)

type fakeAreas struct {
	suggest map[string][]models.Area
	err     error
	calls   int
}

func (f *fakeAreas) SuggestAreas(ctx context.Context, text string) ([]models.Area, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.suggest[text], nil
}

func (f *fakeAreas) Area(ctx context.Context, id string) (models.Area, error) {
	for _, list := range f.suggest {
		for _, a := range list {
			if a.ID == id {
				return a, nil
			}
		}
	}
	return models.Area{}, errors.New("no such area")
}

func newAccumulator(areas *fakeAreas) (*Accumulator, *storage.Memory) {
	mem := storage.NewMemory()
	return NewAccumulator(mem, areas, nil), mem
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		field models.Field
		input string
		want  string
		ok    bool
	}{
		{"salary digits", models.FieldSalaryMin, " 70000 ", "70000", true},
		{"salary with letters", models.FieldSalaryMin, "70k", "", false},
		{"salary negative", models.FieldSalaryMin, "-5", "", false},
		{"salary empty", models.FieldSalaryMin, "  ", "", false},
		{"keyword short", models.FieldKeyword, "go", "", false},
		{"keyword cyrillic", models.FieldKeyword, "юрист", "юрист", true},
		{"region one rune", models.FieldRegion, "М", "", false},
		{"region two runes", models.FieldRegion, "Уфа", "Уфа", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Validate(tt.field, tt.input)
			if !tt.ok {
				require.ErrorIs(t, err, ErrInvalid)
				var ve *ValidationError
				require.True(t, errors.As(err, &ve))
				assert.NotEmpty(t, ve.Hint)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := Validate(models.FieldSchedule, "remote")
	require.ErrorIs(t, err, ErrUnknownField)
}

func TestToggleSet(t *testing.T) {
	assert.Equal(t, "remote", ToggleSet("", "remote"))
	assert.Equal(t, "fullDay,remote", ToggleSet("remote", "fullDay"))
	assert.Equal(t, "fullDay", ToggleSet("fullDay,remote", "remote"))
	assert.Equal(t, "", ToggleSet("remote", "remote"))

	for _, start := range []string{"", "remote", "fullDay,shift", "remote,remote"} {
		twice := ToggleSet(ToggleSet(start, "remote"), "remote")
		assert.Equal(t, FormatSet(ParseSet(start)), twice, "toggle twice from %q", start)
	}
}

func TestAcceptSalaryReprompt(t *testing.T) {
	acc, mem := newAccumulator(&fakeAreas{})
	ctx := context.Background()
	require.NoError(t, storage.SetPending(ctx, mem, 1, models.FieldSalaryMin))

	res, err := acc.Accept(ctx, 1, models.FieldSalaryMin, "70k")
	require.NoError(t, err)
	assert.Equal(t, Rejected, res.Status)
	assert.Contains(t, res.Hint, "70000")
	pending, _ := storage.GetPending(ctx, mem, 1)
	assert.Equal(t, models.FieldSalaryMin, pending)
	_, ok, _ := mem.Get(ctx, 1, "salary_min")
	assert.False(t, ok)

	res, err = acc.Accept(ctx, 1, models.FieldSalaryMin, "70000")
	require.NoError(t, err)
	assert.Equal(t, Accepted, res.Status)
	v, _, _ := mem.Get(ctx, 1, "salary_min")
	assert.Equal(t, "70000", v)
	pending, _ = storage.GetPending(ctx, mem, 1)
	assert.Equal(t, models.Field(""), pending)
}

func TestAcceptRegionExactMatch(t *testing.T) {
	areas := &fakeAreas{suggest: map[string][]models.Area{
		"москва": {{ID: "1", Name: "Москва"}, {ID: "2019", Name: "Московская область"}},
	}}
	acc, mem := newAccumulator(areas)
	ctx := context.Background()
	require.NoError(t, storage.SetPending(ctx, mem, 1, models.FieldRegion))

	res, err := acc.Accept(ctx, 1, models.FieldRegion, "москва")
	require.NoError(t, err)
	assert.Equal(t, Accepted, res.Status)
	assert.Equal(t, "Москва", res.Value)

	s, err := acc.Load(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "1", s.Region)
	assert.Equal(t, "Москва", s.RegionName)
	assert.Equal(t, models.Field(""), s.Pending)
}

func TestAcceptRegionAmbiguous(t *testing.T) {
	var many []models.Area
	for _, id := range []string{"1", "2", "3", "4", "5", "6", "7", "8"} {
		many = append(many, models.Area{ID: id, Name: "Новосибирск " + id})
	}
	areas := &fakeAreas{suggest: map[string][]models.Area{"Ново": many}}
	acc, mem := newAccumulator(areas)
	ctx := context.Background()
	require.NoError(t, storage.SetPending(ctx, mem, 1, models.FieldRegion))

	res, err := acc.Accept(ctx, 1, models.FieldRegion, "Ново")
	require.NoError(t, err)
	assert.Equal(t, Ambiguous, res.Status)
	assert.Len(t, res.Candidates, MaxCandidates)
	pending, _ := storage.GetPending(ctx, mem, 1)
	assert.Equal(t, models.FieldRegion, pending)

	area, err := acc.Choose(ctx, 1, "3")
	require.NoError(t, err)
	assert.Equal(t, "Новосибирск 3", area.Name)
	s, _ := acc.Load(ctx, 1)
	assert.Equal(t, "3", s.Region)
	assert.Equal(t, models.Field(""), s.Pending)
}

func TestAcceptRegionNoCandidatesAndFailure(t *testing.T) {
	areas := &fakeAreas{}
	acc, mem := newAccumulator(areas)
	ctx := context.Background()
	require.NoError(t, storage.SetPending(ctx, mem, 1, models.FieldRegion))

	res, err := acc.Accept(ctx, 1, models.FieldRegion, "Атлантида")
	require.NoError(t, err)
	assert.Equal(t, Rejected, res.Status)

	areas.err = errors.New("hh down")
	_, err = acc.Accept(ctx, 1, models.FieldRegion, "Казань")
	require.Error(t, err)
	pending, _ := storage.GetPending(ctx, mem, 1)
	assert.Equal(t, models.FieldRegion, pending, "external failure keeps the user in the input state")
}

func TestAcceptRegionTooShortSkipsLookup(t *testing.T) {
	areas := &fakeAreas{}
	acc, _ := newAccumulator(areas)

	res, err := acc.Accept(context.Background(), 1, models.FieldRegion, "М")
	require.NoError(t, err)
	assert.Equal(t, Rejected, res.Status)
	assert.Zero(t, areas.calls)
}

func TestToggleKeepsPending(t *testing.T) {
	acc, mem := newAccumulator(&fakeAreas{})
	ctx := context.Background()
	require.NoError(t, storage.SetPending(ctx, mem, 1, models.FieldKeyword))

	set, err := acc.Toggle(ctx, 1, models.FieldSchedule, "remote")
	require.NoError(t, err)
	assert.Equal(t, []string{"remote"}, set)
	set, err = acc.Toggle(ctx, 1, models.FieldSchedule, "fullDay")
	require.NoError(t, err)
	assert.Equal(t, []string{"fullDay", "remote"}, set)
	set, err = acc.Toggle(ctx, 1, models.FieldSchedule, "remote")
	require.NoError(t, err)
	assert.Equal(t, []string{"fullDay"}, set)

	pending, _ := storage.GetPending(ctx, mem, 1)
	assert.Equal(t, models.FieldKeyword, pending)

	_, err = acc.Toggle(ctx, 1, models.FieldSchedule, "weekends")
	require.ErrorIs(t, err, ErrUnknownOption)
	_, err = acc.Toggle(ctx, 1, models.FieldKeyword, "x")
	require.ErrorIs(t, err, ErrUnknownField)
}

func TestCollect(t *testing.T) {
	acc, mem := newAccumulator(&fakeAreas{})
	ctx := context.Background()

	params, err := acc.Collect(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, params, "no defaults are injected")

	require.NoError(t, mem.Set(ctx, 1, "keyword", storage.Str("golang")))
	require.NoError(t, mem.Set(ctx, 1, "region", storage.Str("1")))
	require.NoError(t, mem.Set(ctx, 1, "salary_min", storage.Str("70000")))
	require.NoError(t, mem.Set(ctx, 1, "schedule", storage.Str("remote,fullDay")))
	require.NoError(t, mem.Set(ctx, 1, "employment_type", storage.Str("full")))
	require.NoError(t, mem.Set(ctx, 1, "pending", storage.Str("keyword")))

	params, err = acc.Collect(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, url.Values{
		"text":       {"golang"},
		"area":       {"1"},
		"salary":     {"70000"},
		"schedule":   {"fullDay", "remote"},
		"employment": {"full"},
	}, params)
}

func TestReset(t *testing.T) {
	acc, mem := newAccumulator(&fakeAreas{})
	ctx := context.Background()
	require.NoError(t, mem.Set(ctx, 1, "keyword", storage.Str("golang")))
	require.NoError(t, mem.Set(ctx, 1, "region_name", storage.Str("Москва")))
	require.NoError(t, mem.Set(ctx, 1, "pending", storage.Str("salary_min")))
	require.NoError(t, mem.Set(ctx, 1, "lang", storage.Str("ru")))

	require.NoError(t, acc.Reset(ctx, 1))
	all, err := mem.All(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"lang": "ru"}, all)
}

func TestExactAreaFoldsCase(t *testing.T) {
	candidates := []models.Area{{ID: "2", Name: "Санкт-Петербург"}}
	a, ok := ExactArea("САНКТ-ПЕТЕРБУРГ ", candidates)
	require.True(t, ok)
	assert.Equal(t, "2", a.ID)

	_, ok = ExactArea("Санкт", candidates)
	assert.False(t, ok)
}
