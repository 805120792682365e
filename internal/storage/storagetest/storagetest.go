// Package storagetest holds the behaviour every storage backend must share.
package storagetest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-hh-autoreply/internal/models"
	"go-hh-autoreply/internal/storage"
)

// Factory returns a fresh, empty backend for one subtest.
type Factory func(t *testing.T) storage.Backend

func vacancies(ids ...string) []models.Vacancy {
	out := make([]models.Vacancy, 0, len(ids))
	for _, id := range ids {
		from := 100000
		out = append(out, models.Vacancy{
			ID:      id,
			Name:    "Vacancy " + id,
			URL:     "https://hh.ru/vacancy/" + id,
			Salary:  &models.Salary{From: &from, Currency: "RUR"},
			Snippet: models.Snippet{Requirement: "Go " + id},
		})
	}
	return out
}

// Run executes the conformance suite against backends produced by newBackend.
func Run(t *testing.T, newBackend Factory) {
	t.Run("SettingsSetGetDelete", func(t *testing.T) {
		s := newBackend(t)
		ctx := context.Background()

		_, ok, err := s.Get(ctx, 1, "keyword")
		require.NoError(t, err)
		require.False(t, ok)

		require.NoError(t, s.Set(ctx, 1, "keyword", storage.Str("golang")))
		require.NoError(t, s.Set(ctx, 1, "keyword", storage.Str("python")))
		v, ok, err := s.Get(ctx, 1, "keyword")
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, "python", v)

		// other users are isolated
		_, ok, err = s.Get(ctx, 2, "keyword")
		require.NoError(t, err)
		require.False(t, ok)

		require.NoError(t, s.Set(ctx, 1, "keyword", nil))
		_, ok, err = s.Get(ctx, 1, "keyword")
		require.NoError(t, err)
		require.False(t, ok)

		// deleting a missing key is not an error
		require.NoError(t, s.Set(ctx, 1, "missing", nil))
	})

	t.Run("SettingsAll", func(t *testing.T) {
		s := newBackend(t)
		ctx := context.Background()
		require.NoError(t, s.Set(ctx, 7, "keyword", storage.Str("go")))
		require.NoError(t, s.Set(ctx, 7, "salary_min", storage.Str("70000")))
		require.NoError(t, s.Set(ctx, 8, "keyword", storage.Str("other")))

		all, err := s.All(ctx, 7)
		require.NoError(t, err)
		require.Equal(t, map[string]string{"keyword": "go", "salary_min": "70000"}, all)

		all, err = s.All(ctx, 9)
		require.NoError(t, err)
		require.Empty(t, all)
	})

	t.Run("PendingOverwrites", func(t *testing.T) {
		s := newBackend(t)
		ctx := context.Background()

		p, err := storage.GetPending(ctx, s, 1)
		require.NoError(t, err)
		require.Equal(t, models.Field(""), p)

		require.NoError(t, storage.SetPending(ctx, s, 1, models.FieldSalaryMin))
		require.NoError(t, storage.SetPending(ctx, s, 1, models.FieldKeyword))
		p, err = storage.GetPending(ctx, s, 1)
		require.NoError(t, err)
		require.Equal(t, models.FieldKeyword, p)

		all, err := s.All(ctx, 1)
		require.NoError(t, err)
		require.Len(t, all, 1, "only one pending marker may exist")

		require.NoError(t, storage.SetPending(ctx, s, 1, ""))
		p, err = storage.GetPending(ctx, s, 1)
		require.NoError(t, err)
		require.Equal(t, models.Field(""), p)
	})

	t.Run("UpdateIsAtomic", func(t *testing.T) {
		s := newBackend(t)
		ctx := context.Background()

		const workers = 8
		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				code := fmt.Sprintf("v%d", i)
				_, err := s.Update(ctx, 3, "schedule", func(cur string, ok bool) *string {
					if !ok || cur == "" {
						return storage.Str(code)
					}
					return storage.Str(cur + "," + code)
				})
				assert.NoError(t, err)
			}(i)
		}
		wg.Wait()

		v, ok, err := s.Get(ctx, 3, "schedule")
		require.NoError(t, err)
		require.True(t, ok)
		parts := splitComma(v)
		sort.Strings(parts)
		require.Len(t, parts, workers, "no toggle may be lost: %q", v)

		got, err := s.Update(ctx, 3, "schedule", func(string, bool) *string { return nil })
		require.NoError(t, err)
		require.Equal(t, "", got)
		_, ok, err = s.Get(ctx, 3, "schedule")
		require.NoError(t, err)
		require.False(t, ok)
	})

	t.Run("QueueMonotonicity", func(t *testing.T) {
		s := newBackend(t)
		ctx := context.Background()
		items := vacancies("a", "b", "c")
		require.NoError(t, s.Replace(ctx, 1, items))

		cursor, total, ok, err := s.Cursor(ctx, 1)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, 0, cursor)
		require.Equal(t, 3, total)

		for _, want := range items {
			got, err := s.Next(ctx, 1)
			require.NoError(t, err)
			require.NotNil(t, got)
			require.Equal(t, want, *got)
		}
		for i := 0; i < 3; i++ {
			got, err := s.Next(ctx, 1)
			require.NoError(t, err)
			require.Nil(t, got)
		}
		cursor, total, ok, err = s.Cursor(ctx, 1)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, 3, cursor, "cursor must not pass the end")
		require.Equal(t, 3, total)
	})

	t.Run("QueueMissingIsEmpty", func(t *testing.T) {
		s := newBackend(t)
		ctx := context.Background()
		got, err := s.Next(ctx, 42)
		require.NoError(t, err)
		require.Nil(t, got)

		peek, err := s.Peek(ctx, 42, 5)
		require.NoError(t, err)
		require.Empty(t, peek)

		_, _, ok, err := s.Cursor(ctx, 42)
		require.NoError(t, err)
		require.False(t, ok)
	})

	t.Run("QueueReplaceDiscards", func(t *testing.T) {
		s := newBackend(t)
		ctx := context.Background()
		require.NoError(t, s.Replace(ctx, 1, vacancies("a", "b", "c")))
		_, err := s.Next(ctx, 1)
		require.NoError(t, err)
		_, err = s.Next(ctx, 1)
		require.NoError(t, err)

		require.NoError(t, s.Replace(ctx, 1, vacancies("x", "y")))
		cursor, total, _, err := s.Cursor(ctx, 1)
		require.NoError(t, err)
		require.Equal(t, 0, cursor)
		require.Equal(t, 2, total)

		var seen []string
		for {
			v, err := s.Next(ctx, 1)
			require.NoError(t, err)
			if v == nil {
				break
			}
			seen = append(seen, v.ID)
		}
		require.Equal(t, []string{"x", "y"}, seen)
	})

	t.Run("QueuePeekDoesNotAdvance", func(t *testing.T) {
		s := newBackend(t)
		ctx := context.Background()
		require.NoError(t, s.Replace(ctx, 1, vacancies("a", "b", "c", "d")))
		_, err := s.Next(ctx, 1)
		require.NoError(t, err)

		peek, err := s.Peek(ctx, 1, 2)
		require.NoError(t, err)
		require.Equal(t, []string{"b", "c"}, ids(peek))

		peek, err = s.Peek(ctx, 1, 10)
		require.NoError(t, err)
		require.Equal(t, []string{"b", "c", "d"}, ids(peek))

		v, err := s.Next(ctx, 1)
		require.NoError(t, err)
		require.Equal(t, "b", v.ID)
	})

	t.Run("QueueClear", func(t *testing.T) {
		s := newBackend(t)
		ctx := context.Background()
		require.NoError(t, s.Replace(ctx, 1, vacancies("a")))
		require.NoError(t, s.Clear(ctx, 1))
		v, err := s.Next(ctx, 1)
		require.NoError(t, err)
		require.Nil(t, v)
		require.NoError(t, s.Clear(ctx, 1))
	})

	t.Run("Users", func(t *testing.T) {
		s := newBackend(t)
		ctx := context.Background()

		_, err := s.User(ctx, 5)
		require.ErrorIs(t, err, storage.ErrNotFound)

		require.NoError(t, s.SaveChat(ctx, 5, 500))
		u, err := s.User(ctx, 5)
		require.NoError(t, err)
		require.Equal(t, int64(500), u.ChatID)
		require.False(t, u.Authorized())

		require.NoError(t, s.SetResume(ctx, 5, "r1"))
		exp := time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)
		require.NoError(t, s.SaveToken(ctx, 5, models.Token{AccessToken: "a1", RefreshToken: "r", ExpiresAt: exp}))
		require.NoError(t, s.SaveToken(ctx, 6, models.Token{AccessToken: "a2"}))

		u, err = s.User(ctx, 5)
		require.NoError(t, err)
		require.True(t, u.Authorized())
		require.Equal(t, "r1", u.ResumeID, "saving a token keeps the resume")
		require.Equal(t, "a1", u.Token.AccessToken)
		require.Equal(t, "r", u.Token.RefreshToken)
		require.True(t, exp.Equal(u.Token.ExpiresAt))
		require.Equal(t, int64(500), u.ChatID)

		ids, err := s.Authorized(ctx)
		require.NoError(t, err)
		require.Equal(t, []int64{5, 6}, ids)
	})
}

func ids(vs []models.Vacancy) []string {
	out := make([]string, 0, len(vs))
	for _, v := range vs {
		out = append(out, v.ID)
	}
	return out
}

func splitComma(s string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			if i > start {
				out = append(out, s[start:i])
			}
			start = i + 1
		}
	}
	return out
}
