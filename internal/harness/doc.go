// Package harness runs a candidate agent through short predator/prey
// episodes and reports how it did.
//
// For each role under test the harness first builds one agent as an
// initialization check, then plays a fixed number of episodes. Every episode
// gets a fresh environment reset with seed base+episode. Participants whose
// role matches are driven by agents built lazily from the factory, one per
// participant per episode; the others are driven by a uniform random policy
// seeded from the episode seed, so a run is reproducible end to end.
//
// Only rewards earned by controlled participants count. A role passes when
// every episode completes; its score is the average episode reward.
//
// # Failures
//
// The first failure aborts the role. Failures are reported as *Error with one
// of the kinds ErrInit, ErrAction and ErrStep:
//
//	res, err := harness.New(factory).Run(ctx, agent.RolePrey)
//	var herr *harness.Error
//	if errors.As(err, &herr) && errors.Is(err, harness.ErrAction) {
//	    log.Printf("episode %d step %d: %v", herr.Episode, herr.Step, herr.Err)
//	}
package harness
