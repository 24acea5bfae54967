package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/smallbiznis/labinventory/internal/system/domain"
)

// Stats aggregates totals per lab and per configuration. Configured labs with no systems report zero.
func (s *Service) Stats(ctx context.Context) (domain.Stats, error) {
	items, err := s.repo.List(ctx, s.db, domain.ListFilter{})
	if err != nil {
		return domain.Stats{}, fmt.Errorf("list systems: %w", err)
	}
	return buildStats(s.labs.Get().Codes, values(items), s.clock.Now()), nil
}

// buildStats expects systems ordered by idCode; department lists keep that order.
func buildStats(labs []string, systems []domain.System, now time.Time) domain.Stats {
	counts := make(map[string]int, len(labs))
	for _, lab := range labs {
		counts[lab] = 0
	}

	index := make(map[string]int)
	configs := make([]domain.ConfigStat, 0)
	for _, sys := range systems {
		counts[sys.LabName]++

		i, ok := index[sys.Description]
		if !ok {
			i = len(configs)
			index[sys.Description] = i
			configs = append(configs, domain.ConfigStat{Configuration: sys.Description})
		}
		configs[i].Count++
		if !containsString(configs[i].Departments, sys.LabName) {
			configs[i].Departments = append(configs[i].Departments, sys.LabName)
		}
	}

	sort.SliceStable(configs, func(a, b int) bool {
		if configs[a].Count != configs[b].Count {
			return configs[a].Count > configs[b].Count
		}
		return configs[a].Configuration < configs[b].Configuration
	})

	return domain.Stats{
		TotalSystems:     len(systems),
		DepartmentCounts: counts,
		ConfigStats:      configs,
		LastUpdated:      now.UTC(),
	}
}

func containsString(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
