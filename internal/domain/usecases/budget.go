package usecases

import (
	"github.com/0xcro3dile/contextrag-go/internal/domain/entities"
	"github.com/0xcro3dile/contextrag-go/internal/domain/textutil"
)

// Size profiles.
const (
	ProfileSmall  = "small"
	ProfileMedium = "medium"
	ProfileHuge   = "huge"
)

// budgetTier holds per-category shares in percent: kb, live, api, images, user images.
type budgetTier struct {
	limit   int
	profile string
	shares  [5]int
}

var budgetTiers = []budgetTier{
	{limit: 20000, profile: ProfileSmall, shares: [5]int{40, 30, 18, 6, 6}},
	{limit: 160000, profile: ProfileMedium, shares: [5]int{36, 30, 20, 7, 7}},
	{limit: -1, profile: ProfileHuge, shares: [5]int{32, 30, 24, 7, 7}},
}

// EstimateBudgets splits total across the context categories by size tier.
// The rounding remainder goes to the API category so the parts sum to total.
func EstimateBudgets(total int) (entities.Budgets, string) {
	total = max(0, total)

	tier := budgetTiers[len(budgetTiers)-1]
	for _, t := range budgetTiers {
		if t.limit >= 0 && total <= t.limit {
			tier = t
			break
		}
	}

	part := func(i int) int { return total * tier.shares[i] / 100 }
	b := entities.Budgets{
		KB:         part(0),
		Live:       part(1),
		API:        part(2),
		Images:     part(3),
		UserImages: part(4),
	}
	b.API += total - b.Sum()
	return b, tier.profile
}

// TakeWithBudget clamps each item to clampLen and keeps items in order while
// they fit in budget, counting two extra runes per item. It stops at the
// first item that does not fit.
func TakeWithBudget(items []string, budget, clampLen int) []string {
	var out []string
	used := 0
	for _, it := range items {
		s := textutil.Clamp(it, clampLen)
		cost := textutil.Len(s) + 2
		if used+cost > budget {
			break
		}
		out = append(out, s)
		used += cost
	}
	return out
}
