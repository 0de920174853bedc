package report

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/xenking/warung-pos/internal/domain/apperr"
)

const maxTopCustomerDays = 366

// Dashboard bundles every per-day view the manager screen shows.
type Dashboard struct {
	Summary       DailySummary
	Items         []ItemPerformance
	Cancellations CancellationBreakdown
	Hourly        []Period
}

// Service loads facts and reduces them. Calendar days are taken in loc.
type Service struct {
	facts Repository
	loc   *time.Location
	now   func() time.Time
}

// NewService creates a report Service. A nil loc means UTC.
func NewService(facts Repository, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{facts: facts, loc: loc, now: time.Now}
}

// Day truncates t to local midnight.
func (s *Service) Day(t time.Time) time.Time {
	y, m, d := t.In(s.loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, s.loc)
}

func (s *Service) dayRange(date time.Time) (time.Time, time.Time) {
	from := s.Day(date)
	return from, from.AddDate(0, 0, 1)
}

// Daily returns the summary for the calendar day containing date.
func (s *Service) Daily(ctx context.Context, date time.Time) (*DailySummary, error) {
	from, to := s.dayRange(date)
	facts, err := s.facts.Orders(ctx, from, to)
	if err != nil {
		return nil, apperr.Persistence("load orders", err)
	}
	sum := Summarize(from, facts)
	return &sum, nil
}

// MenuPerformance ranks items sold on date.
func (s *Service) MenuPerformance(ctx context.Context, date time.Time) ([]ItemPerformance, error) {
	from, to := s.dayRange(date)
	lines, err := s.facts.Lines(ctx, from, to)
	if err != nil {
		return nil, apperr.Persistence("load order lines", err)
	}
	return RankItems(lines), nil
}

// Cancellations breaks down cancellations recorded on date.
func (s *Service) Cancellations(ctx context.Context, date time.Time) (*CancellationBreakdown, error) {
	from, to := s.dayRange(date)
	facts, err := s.facts.Cancellations(ctx, from, to)
	if err != nil {
		return nil, apperr.Persistence("load cancellations", err)
	}
	b := BreakDown(from, facts)
	return &b, nil
}

// Hourly returns 24 buckets for date.
func (s *Service) Hourly(ctx context.Context, date time.Time) ([]Period, error) {
	from, to := s.dayRange(date)
	facts, err := s.facts.Orders(ctx, from, to)
	if err != nil {
		return nil, apperr.Persistence("load orders", err)
	}
	return Series(from, time.Hour, 24, facts), nil
}

// Weekly returns seven daily buckets ending with the day containing end.
func (s *Service) Weekly(ctx context.Context, end time.Time) ([]Period, error) {
	_, to := s.dayRange(end)
	from := to.AddDate(0, 0, -7)
	facts, err := s.facts.Orders(ctx, from, to)
	if err != nil {
		return nil, apperr.Persistence("load orders", err)
	}
	return DailySeries(from, 7, facts), nil
}

// TopCustomers ranks customers by spend over the last days days.
func (s *Service) TopCustomers(ctx context.Context, days, limit int) ([]CustomerStat, error) {
	if days <= 0 || days > maxTopCustomerDays {
		return nil, apperr.Invalid("days", "must be between 1 and 366")
	}
	if limit <= 0 {
		return nil, apperr.Invalid("limit", "must be greater than 0")
	}
	_, to := s.dayRange(s.now())
	from := to.AddDate(0, 0, -days)
	facts, err := s.facts.Orders(ctx, from, to)
	if err != nil {
		return nil, apperr.Persistence("load orders", err)
	}
	return RankCustomers(facts, limit), nil
}

// Dashboard loads the three fact sets for date concurrently.
func (s *Service) Dashboard(ctx context.Context, date time.Time) (*Dashboard, error) {
	from, to := s.dayRange(date)

	var (
		orders  []OrderFact
		lines   []LineFact
		cancels []CancellationFact
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		orders, err = s.facts.Orders(gctx, from, to)
		return err
	})
	g.Go(func() (err error) {
		lines, err = s.facts.Lines(gctx, from, to)
		return err
	})
	g.Go(func() (err error) {
		cancels, err = s.facts.Cancellations(gctx, from, to)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, apperr.Persistence("load dashboard", err)
	}

	return &Dashboard{
		Summary:       Summarize(from, orders),
		Items:         RankItems(lines),
		Cancellations: BreakDown(from, cancels),
		Hourly:        Series(from, time.Hour, 24, orders),
	}, nil
}
