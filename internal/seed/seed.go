// Package seed fills an empty collection with demo transactions.
package seed

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"fintrack/internal/core"
)

// Count is the number of transactions a demo seed inserts.
const Count = 15

var descriptions = map[string][]string{
	"Food":           {"Grocery Shopping", "Lunch at Cafe", "Dinner with Friends", "Snacks", "Coffee"},
	"Transportation": {"Uber Ride", "Gas Station", "Bus Ticket", "Car Maintenance"},
	"Entertainment":  {"Movie Night", "Concert Tickets", "Netflix Subscription", "Video Game"},
	"Utilities":      {"Electricity Bill", "Water Bill", "Internet Bill", "Phone Bill"},
	"Salary":         {"Monthly Salary", "Bonus"},
	"Freelance":      {"Web Design Project", "Consulting Fee", "Logo Design"},
	"Other":          {"Gift", "Charity", "Miscellaneous"},
}

var expenseCategories = []string{"Food", "Transportation", "Entertainment", "Utilities", "Other"}

// Writer is the write side of the store adapter.
type Writer interface {
	Create(ctx context.Context, userID string, d core.Draft) (string, error)
}

type Seeder struct {
	writer Writer
	rng    *rand.Rand
	now    func() time.Time
}

type Option func(*Seeder)

// WithRand fixes the random source, mostly for tests.
func WithRand(r *rand.Rand) Option {
	return func(s *Seeder) { s.rng = r }
}

func WithClock(now func() time.Time) Option {
	return func(s *Seeder) { s.now = now }
}

func New(w Writer, opts ...Option) *Seeder {
	s := &Seeder{
		writer: w,
		rng:    rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x9e3779b97f4a7c15)),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Drafts generates Count demo drafts dated within the last 30 days.
func (s *Seeder) Drafts() []core.Draft {
	today := s.now().UTC()
	drafts := make([]core.Draft, 0, Count)
	for range Count {
		d := core.Draft{Type: core.Expense}
		if s.rng.Float64() <= 0.3 {
			d.Type = core.Income
		}

		if d.Type == core.Income {
			d.Category = "Freelance"
			if s.rng.Float64() > 0.7 {
				d.Category = "Salary"
			}
			d.Amount = core.Money{Cents: int64(s.rng.IntN(2000)+1000) * 100}
		} else {
			d.Category = expenseCategories[s.rng.IntN(len(expenseCategories))]
			d.Amount = core.Money{Cents: int64(s.rng.IntN(150)+10) * 100}
		}

		options := descriptions[d.Category]
		d.Description = options[s.rng.IntN(len(options))]
		d.Date = today.AddDate(0, 0, -s.rng.IntN(30))
		drafts = append(drafts, d)
	}
	return drafts
}

// Seed writes a fresh batch of demo transactions for userID. It stops at
// the first failed write and reports how many were stored before it.
func (s *Seeder) Seed(ctx context.Context, userID string) (int, error) {
	written := 0
	for _, d := range s.Drafts() {
		if _, err := s.writer.Create(ctx, userID, d); err != nil {
			return written, fmt.Errorf("seed transaction %d: %w", written+1, err)
		}
		written++
	}
	slog.InfoContext(ctx, "Seeded demo transactions", "user_id", userID, "count", written)
	return written, nil
}
