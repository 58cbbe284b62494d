package roster

import "context"

// Pool is the candidate set for one recognition request.
type Pool struct {
	// Population is the number of students whose cohort matches the course,
	// whether or not they registered a face. Reporting percentages divide by
	// this, keeping stats consistent with who could have been recognized.
	Population int
	// Candidates are the eligible students carrying a template.
	Candidates []Candidate
}

// PoolStore is the slice of the repository the resolver needs.
type PoolStore interface {
	CountCohort(ctx context.Context, department string, year int, section string) (int, error)
	ListCandidates(ctx context.Context, department string, year int, section string) ([]Candidate, error)
}

// Resolver computes a course's eligible population structurally from the
// cohort triple. There is deliberately no roster lookup: a transferred or
// late-admitted student becomes eligible the moment their demographic fields
// match, with no enrollment step.
type Resolver struct {
	store PoolStore
}

// NewResolver creates a resolver over the given store.
func NewResolver(store PoolStore) *Resolver {
	return &Resolver{store: store}
}

// Resolve returns the population size and template-bearing candidates for a
// course.
func (r *Resolver) Resolve(ctx context.Context, course Course) (Pool, error) {
	population, err := r.store.CountCohort(ctx, course.Department, course.Year, course.Section)
	if err != nil {
		return Pool{}, err
	}
	candidates, err := r.store.ListCandidates(ctx, course.Department, course.Year, course.Section)
	if err != nil {
		return Pool{}, err
	}
	return Pool{Population: population, Candidates: candidates}, nil
}
