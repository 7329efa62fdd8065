package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/aquatracking/aquatracking/internal/cache"
	"github.com/aquatracking/aquatracking/internal/domain"
	"github.com/aquatracking/aquatracking/internal/repository"
)

// DashboardService builds the system-wide views of the dashboard. Results
// are cached for ttl when a cache is configured.
type DashboardService struct {
	repos *repository.Repos
	cache cache.Cache
	ttl   time.Duration
	loc   *time.Location
	now   func() time.Time
	log   zerolog.Logger
}

type TrendPoint struct {
	Date        string  `json:"date"`
	TotalLiters float64 `json:"totalLiters"`
	Homes       int     `json:"homes"`
}

type SectorShare struct {
	SectorID    string  `json:"sectorId"`
	SectorName  string  `json:"sectorName,omitempty"`
	TotalLiters float64 `json:"totalLiters"`
	Percentage  float64 `json:"percentage"`
}

type AlertSummary struct {
	Total      int            `json:"total"`
	Unresolved int            `json:"unresolved"`
	Resolved   int            `json:"resolved"`
	ByType     map[string]int `json:"byType"`
	RecentOpen []domain.Alert `json:"recentUnresolved"`
}

const (
	MaxDashboardDays = 90
	recentAlerts     = 10
)

// Trends returns the system total per day for the last days days, oldest
// first, with zero entries for days without rollups. The date axis is in the
// default zone; each point sums the rollups dated that day, whatever the
// zone of their home.
func (s *DashboardService) Trends(ctx context.Context, days int) ([]TrendPoint, error) {
	days = clampDays(days, 7)
	return cached(ctx, s, fmt.Sprintf("trends:%d", days), func() ([]TrendPoint, error) {
		dates := s.lastDays(days, s.loc)
		rollups, err := s.repos.Daily.Find(ctx, nil)
		if err != nil {
			return nil, err
		}
		sums := make(map[string]decimal.Decimal, days)
		homes := make(map[string]int, days)
		for _, d := range rollups {
			sums[d.Date] = sums[d.Date].Add(decimal.NewFromFloat(d.TotalLiters))
			homes[d.Date]++
		}
		points := make([]TrendPoint, 0, days)
		for _, date := range dates {
			points = append(points, TrendPoint{Date: date, TotalLiters: sums[date].InexactFloat64(), Homes: homes[date]})
		}
		return points, nil
	})
}

// Distribution splits the consumption of the last days days by sector.
// The window is taken in each home's own zone, matching its rollup dates.
// Homes without a sector are reported under an empty sector id.
func (s *DashboardService) Distribution(ctx context.Context, days int) ([]SectorShare, error) {
	days = clampDays(days, 30)
	return cached(ctx, s, fmt.Sprintf("distribution:%d", days), func() ([]SectorShare, error) {
		homes, err := s.repos.Homes.Find(ctx, nil)
		if err != nil {
			return nil, err
		}
		sectors, err := s.repos.Sectors.Find(ctx, nil)
		if err != nil {
			return nil, err
		}
		rollups, err := s.repos.Daily.Find(ctx, nil)
		if err != nil {
			return nil, err
		}

		sectorOf := make(map[string]string, len(homes))
		locOf := make(map[string]*time.Location, len(homes))
		for _, h := range homes {
			sectorOf[h.ID] = h.SectorID
			locOf[h.ID] = h.Location(s.loc)
		}
		windows := make(map[string]map[string]bool)
		inWindow := func(homeID, date string) bool {
			loc, ok := locOf[homeID]
			if !ok {
				loc = s.loc
			}
			w, ok := windows[loc.String()]
			if !ok {
				w = make(map[string]bool, days)
				for _, d := range s.lastDays(days, loc) {
					w[d] = true
				}
				windows[loc.String()] = w
			}
			return w[date]
		}
		names := make(map[string]string, len(sectors))
		for _, sec := range sectors {
			names[sec.ID] = sec.Name
		}

		sums := make(map[string]decimal.Decimal)
		total := decimal.Zero
		for _, d := range rollups {
			if !inWindow(d.HomeID, d.Date) {
				continue
			}
			l := decimal.NewFromFloat(d.TotalLiters)
			sums[sectorOf[d.HomeID]] = sums[sectorOf[d.HomeID]].Add(l)
			total = total.Add(l)
		}

		shares := make([]SectorShare, 0, len(sums))
		for id, sum := range sums {
			share := SectorShare{SectorID: id, SectorName: names[id], TotalLiters: sum.InexactFloat64()}
			if total.IsPositive() {
				share.Percentage = sum.Div(total).Mul(decimal.NewFromInt(100)).Round(2).InexactFloat64()
			}
			shares = append(shares, share)
		}
		sort.Slice(shares, func(i, j int) bool {
			if shares[i].TotalLiters != shares[j].TotalLiters {
				return shares[i].TotalLiters > shares[j].TotalLiters
			}
			return shares[i].SectorID < shares[j].SectorID
		})
		return shares, nil
	})
}

// Alerts summarises the ledger.
func (s *DashboardService) Alerts(ctx context.Context) (*AlertSummary, error) {
	out, err := cached(ctx, s, "alerts", func() (AlertSummary, error) {
		all, err := s.repos.Alerts.Find(ctx, nil)
		if err != nil {
			return AlertSummary{}, err
		}
		sort.SliceStable(all, func(i, j int) bool { return all[i].TriggeredAt.After(all[j].TriggeredAt) })

		sum := AlertSummary{Total: len(all), ByType: map[string]int{}, RecentOpen: []domain.Alert{}}
		for _, a := range all {
			sum.ByType[a.Type]++
			if a.Resolved {
				sum.Resolved++
				continue
			}
			sum.Unresolved++
			if len(sum.RecentOpen) < recentAlerts {
				sum.RecentOpen = append(sum.RecentOpen, a)
			}
		}
		return sum, nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// cached serves key from the cache, or computes and stores it.
func cached[V any](ctx context.Context, s *DashboardService, key string, compute func() (V, error)) (V, error) {
	var v V
	if hit, err := s.cache.Get(ctx, key, &v); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("cache read failed")
	} else if hit {
		return v, nil
	}

	v, err := compute()
	if err != nil {
		return v, err
	}
	if err := s.cache.Set(ctx, key, v, s.ttl); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("cache write failed")
	}
	return v, nil
}

func (s *DashboardService) lastDays(days int, loc *time.Location) []string {
	today := s.now().In(loc)
	out := make([]string, 0, days)
	for i := days - 1; i >= 0; i-- {
		out = append(out, today.AddDate(0, 0, -i).Format(domain.DateLayout))
	}
	return out
}

func clampDays(days, def int) int {
	switch {
	case days <= 0:
		return def
	case days > MaxDashboardDays:
		return MaxDashboardDays
	}
	return days
}
