package fake

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Deterministic(t *testing.T) {
	a, b := New(42), New(42)
	for i := 0; i < 20; i++ {
		require.Equal(t, a.Name(), b.Name())
		require.Equal(t, a.UniqueEmail(), b.UniqueEmail())
		require.Equal(t, a.IntBetween(1, 100), b.IntBetween(1, 100))
	}
}

func TestUniqueEmail(t *testing.T) {
	g := New(7)
	seen := make(map[string]bool)
	for i := 0; i < 2000; i++ {
		e := g.UniqueEmail()
		require.False(t, seen[e], "duplicate email %s", e)
		require.Contains(t, e, "@")
		seen[e] = true
	}
}

func TestIntBetween(t *testing.T) {
	g := New(1)
	for i := 0; i < 1000; i++ {
		v := g.IntBetween(5, 10)
		require.GreaterOrEqual(t, v, 5)
		require.LessOrEqual(t, v, 10)
	}
	assert.Equal(t, 3, g.IntBetween(3, 3))
}

func TestSample(t *testing.T) {
	g := New(3)
	values := []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	got := Sample(g, values, 5)
	require.Len(t, got, 5)
	seen := make(map[int]bool)
	for _, v := range got {
		assert.False(t, seen[v], "duplicate %d", v)
		seen[v] = true
	}
	assert.Len(t, Sample(g, values, 50), len(values))
}

func TestDates(t *testing.T) {
	g := New(9)
	now := time.Date(2025, time.October, 1, 15, 0, 0, 0, time.UTC)
	start := now.AddDate(-4, 0, 0)
	for i := 0; i < 500; i++ {
		d := g.DateBetween(start, now)
		require.False(t, d.Before(start.Truncate(24*time.Hour)))
		require.False(t, d.After(now))
		require.Zero(t, d.Hour())

		dob := g.DateOfBirth(now, 18, 30)
		age := now.Year() - dob.Year()
		if now.YearDay() < dob.YearDay() {
			age--
		}
		require.GreaterOrEqual(t, age, 18)
		require.LessOrEqual(t, age, 30)

		ts := g.TimeBetween(start, now)
		require.False(t, ts.Before(start))
		require.True(t, ts.Before(now))
	}
}

func TestCourseNameAndBuilding(t *testing.T) {
	g := New(11)
	var advanced int
	for i := 0; i < 200; i++ {
		if strings.HasPrefix(g.CourseName(), "Advanced ") {
			advanced++
		}
		b := g.Building()
		require.True(t, strings.HasSuffix(b, " Building"), b)
	}
	assert.Greater(t, advanced, 0)
}

func TestISBN13(t *testing.T) {
	g := New(5)
	for i := 0; i < 50; i++ {
		isbn := g.ISBN13()
		require.Len(t, isbn, 13)
		require.True(t, strings.HasPrefix(isbn, "978"), isbn)
		sum := 0
		for j, c := range isbn {
			w := 1
			if j%2 == 1 {
				w = 3
			}
			sum += int(c-'0') * w
		}
		assert.Zero(t, sum%10, isbn)
	}
}

func TestFloat(t *testing.T) {
	g := New(9)
	for i := 0; i < 100; i++ {
		v := g.Float(1, 5)
		require.GreaterOrEqual(t, v, 1.0)
		require.LessOrEqual(t, v, 5.0)
		assert.InDelta(t, v, float64(int(v*10+0.5))/10, 1e-9)
	}
}
