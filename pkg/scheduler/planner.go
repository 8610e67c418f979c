package scheduler

import (
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/korjavin/mealplanner/pkg/models"
)

// MaxPlanDays bounds the rotation regardless of the reset day
const MaxPlanDays = 7

// ErrNoRecipes is returned when a meal slot has nothing to draw from
var ErrNoRecipes = errors.New("no recipes available")

// CandidateFunc returns the titles a slot with the given filter may draw from
type CandidateFunc func(filter string) []string

// BuildPlan assigns a random recipe to every slot of every day from today
// until the day before the next resetDay. When today is itself the reset day
// the rotation runs a full week. Titles may repeat within and across days.
func BuildPlan(today time.Time, slots []models.MealSlot, resetDay time.Weekday, candidates CandidateFunc, rng *rand.Rand) (models.Plan, error) {
	plan := make(models.Plan)
	day := today

	for i := 0; i < MaxPlanDays; i++ {
		meals := make(map[string]string, len(slots))
		for _, slot := range slots {
			titles := candidates(slot.Filter)
			if len(titles) == 0 {
				return nil, fmt.Errorf("%w for meal %q", ErrNoRecipes, slot.Name)
			}
			meals[slot.Name] = titles[rng.Intn(len(titles))]
		}
		plan[day.Format(models.DateLayout)] = meals

		day = day.AddDate(0, 0, 1)
		if day.Weekday() == resetDay {
			break
		}
	}

	return plan, nil
}
