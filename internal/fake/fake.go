// Package fake wraps gofakeit with a seeded source and the few value shapes
// the lab seeders share. A Generator is not safe for concurrent use.
package fake

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v6"
)

// Generator produces reproducible fake values for a given seed.
type Generator struct {
	f      *gofakeit.Faker
	emails map[string]struct{}
}

// New returns a generator seeded with seed. A zero seed picks a random one.
func New(seed int64) *Generator {
	return &Generator{
		f:      gofakeit.New(seed),
		emails: make(map[string]struct{}),
	}
}

// Faker exposes the underlying gofakeit instance.
func (g *Generator) Faker() *gofakeit.Faker {
	return g.f
}

// Rand exposes the random source shared with the faker.
func (g *Generator) Rand() *rand.Rand {
	return g.f.Rand
}

// FirstName returns a first name.
func (g *Generator) FirstName() string { return g.f.FirstName() }

// LastName returns a last name.
func (g *Generator) LastName() string { return g.f.LastName() }

// Name returns a full name.
func (g *Generator) Name() string { return g.f.Name() }

// Phone returns a phone number.
func (g *Generator) Phone() string { return g.f.Phone() }

// City returns a city name.
func (g *Generator) City() string { return g.f.City() }

// Company returns a company name.
func (g *Generator) Company() string { return g.f.Company() }

// Word returns a single lowercase word.
func (g *Generator) Word() string { return strings.ToLower(g.f.Noun()) }

// Sentence returns a sentence of n words.
func (g *Generator) Sentence(n int) string { return g.f.Sentence(n) }

// Paragraph returns a short paragraph.
func (g *Generator) Paragraph() string {
	return g.f.Paragraph(1, g.IntBetween(2, 4), 10, " ")
}

// UniqueEmail returns an email address not handed out before by this generator.
func (g *Generator) UniqueEmail() string {
	for i := 0; i < 10; i++ {
		e := strings.ToLower(g.f.Email())
		if _, dup := g.emails[e]; !dup {
			g.emails[e] = struct{}{}
			return e
		}
	}
	// Fall back to a numbered address once collisions pile up.
	for n := len(g.emails); ; n++ {
		e := fmt.Sprintf("%s.%d@%s", strings.ToLower(g.f.Username()), n, g.f.DomainName())
		if _, dup := g.emails[e]; !dup {
			g.emails[e] = struct{}{}
			return e
		}
	}
}

// IntBetween returns a uniform integer in [min, max].
func (g *Generator) IntBetween(min, max int) int {
	if max <= min {
		return min
	}
	return min + g.f.Rand.Intn(max-min+1)
}

// Pick returns a random element of values.
func Pick[T any](g *Generator, values []T) T {
	return values[g.f.Rand.Intn(len(values))]
}

// Sample returns k distinct elements of values in random order. When k
// exceeds len(values) every element is returned.
func Sample[T any](g *Generator, values []T, k int) []T {
	if k > len(values) {
		k = len(values)
	}
	idx := g.f.Rand.Perm(len(values))[:k]
	out := make([]T, k)
	for i, j := range idx {
		out[i] = values[j]
	}
	return out
}

// DateBetween returns a UTC date (midnight) uniformly within [start, end].
func (g *Generator) DateBetween(start, end time.Time) time.Time {
	start = truncateDay(start)
	end = truncateDay(end)
	days := int(end.Sub(start).Hours() / 24)
	if days <= 0 {
		return start
	}
	return start.AddDate(0, 0, g.f.Rand.Intn(days+1))
}

// TimeBetween returns a UTC instant at second resolution within [start, end).
func (g *Generator) TimeBetween(start, end time.Time) time.Time {
	span := int64(end.Sub(start) / time.Second)
	if span <= 0 {
		return start.UTC()
	}
	return start.Add(time.Duration(g.f.Rand.Int63n(span)) * time.Second).UTC()
}

// DateOfBirth returns a birth date for someone aged between minAge and maxAge on now.
func (g *Generator) DateOfBirth(now time.Time, minAge, maxAge int) time.Time {
	latest := now.AddDate(-minAge, 0, 0)
	earliest := now.AddDate(-maxAge-1, 0, 1)
	return g.DateBetween(earliest, latest)
}

var courseLevels = []string{"Introduction to", "Advanced", "Applied", "Foundations of", "Topics in"}

// CourseName returns a course-like title.
func (g *Generator) CourseName() string {
	return fmt.Sprintf("%s %s %s", Pick(g, courseLevels), g.f.Adjective(), g.f.BuzzWord())
}

// Building returns a building name such as "Maple Building".
func (g *Generator) Building() string {
	w := g.Word()
	if w == "" {
		w = "main"
	}
	return strings.ToUpper(w[:1]) + w[1:] + " Building"
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Address returns a single-line street address.
func (g *Generator) Address() string {
	return g.f.Street() + ", " + g.f.City()
}

// CompanySuffix returns a legal suffix such as "Inc".
func (g *Generator) CompanySuffix() string { return g.f.CompanySuffix() }

// Language returns a two letter language code.
func (g *Generator) Language() string { return g.f.LanguageAbbreviation() }

// Float returns a uniform float in [min, max] rounded to one decimal.
func (g *Generator) Float(min, max float64) float64 {
	v := min + g.f.Rand.Float64()*(max-min)
	return float64(int(v*10+0.5)) / 10
}

// ISBN13 returns a 978-prefixed ISBN-13 with a valid check digit.
func (g *Generator) ISBN13() string {
	digits := make([]byte, 12, 13)
	copy(digits, "978")
	for i := 3; i < 12; i++ {
		digits[i] = byte('0' + g.f.Rand.Intn(10))
	}
	sum := 0
	for i, d := range digits {
		w := 1
		if i%2 == 1 {
			w = 3
		}
		sum += int(d-'0') * w
	}
	return string(append(digits, byte('0'+(10-sum%10)%10)))
}
