package sim

import "context"

// Observer receives the area ratios after each step. Returning false stops
// the run.
type Observer func(t float64, ratios []float64) bool

// Run steps s until its time reaches finalT, observe returns false, or ctx is
// done. A nil observe runs to finalT.
func Run(ctx context.Context, s Stepper, finalT float64, observe Observer) error {
	for s.Time() < finalT {
		if err := ctx.Err(); err != nil {
			return err
		}
		ratios, err := s.Step()
		if err != nil {
			return err
		}
		if observe != nil && !observe(s.Time(), ratios) {
			return nil
		}
	}
	return nil
}
