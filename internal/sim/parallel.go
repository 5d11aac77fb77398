package sim

import (
	"context"
	"log/slog"
	"sync"

	"github.com/san-kum/peridyn/internal/dynamo"
)

// Factory builds the integrator of one ensemble member. Every member
// owns its own device context.
type Factory func(member int) (dynamo.Integrator, error)

// Ensemble runs independent simulations concurrently, one goroutine per
// member.
type Ensemble struct {
	factory Factory
	members int
	logger  *slog.Logger
	prepare func(member int, s *Simulator)
}

func NewEnsemble(factory Factory, members int, logger *slog.Logger) *Ensemble {
	return &Ensemble{factory: factory, members: members, logger: logger}
}

// SetPrepare registers fn to add metrics, observers or a recorder to each
// member's simulator before it runs. fn is called from the member's
// goroutine.
func (e *Ensemble) SetPrepare(fn func(member int, s *Simulator)) { e.prepare = fn }

// Run runs every member to completion and returns the first member error.
func (e *Ensemble) Run(ctx context.Context, cfg Config) ([]*Result, error) {
	results := make([]*Result, e.members)
	errs := make([]error, e.members)

	var wg sync.WaitGroup
	for i := 0; i < e.members; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()

			integ, err := e.factory(idx)
			if err != nil {
				errs[idx] = err
				return
			}
			defer integ.Close()

			s := New(integ, e.logger)
			if e.prepare != nil {
				e.prepare(idx, s)
			}
			res, err := s.Run(ctx, cfg)
			if res != nil {
				res.Realisation = idx
			}
			results[idx], errs[idx] = res, err
		}(i)
	}

	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return results, err
		}
	}

	return results, nil
}
