package mpe

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/stat/distuv"
)

// Body parameters of the tag scenario.
const (
	predatorSize     = 0.075
	predatorAccel    = 3.0
	predatorMaxSpeed = 1.0

	preySize     = 0.05
	preyAccel    = 4.0
	preyMaxSpeed = 1.3

	obstacleSize = 0.2

	// Reward for every predator/prey contact; prey lose it, predators gain it.
	contactReward = 10.0
)

// Participant id prefixes. Predators are named so that ids contain
// "adversary".
const (
	predatorPrefix = "adversary"
	preyPrefix     = "agent"
)

// newTagWorld builds the participants and obstacles of a tag world. Predators
// come first, then prey.
func newTagWorld(cfg Config) *world {
	w := &world{}
	for i := 0; i < cfg.NumAdversaries; i++ {
		w.participants = append(w.participants, &participant{
			entity: entity{
				name:     fmt.Sprintf("%s_%d", predatorPrefix, i),
				size:     predatorSize,
				movable:  true,
				collide:  true,
				maxSpeed: predatorMaxSpeed,
			},
			adversary: true,
			accel:     predatorAccel,
		})
	}
	for i := 0; i < cfg.NumGood; i++ {
		w.participants = append(w.participants, &participant{
			entity: entity{
				name:     fmt.Sprintf("%s_%d", preyPrefix, i),
				size:     preySize,
				movable:  true,
				collide:  true,
				maxSpeed: preyMaxSpeed,
			},
			accel: preyAccel,
		})
	}
	for i := 0; i < cfg.NumObstacles; i++ {
		w.obstacles = append(w.obstacles, &entity{
			name:    fmt.Sprintf("landmark %d", i),
			size:    obstacleSize,
			collide: true,
		})
	}
	return w
}

// resetTagWorld scatters participants over [-1, 1]² and obstacles over
// [-0.9, 0.9]², all at rest.
func resetTagWorld(w *world, src rand.Source) {
	participantSpread := distuv.Uniform{Min: -1, Max: 1, Src: src}
	for _, p := range w.participants {
		p.pos = r2.Vec{X: participantSpread.Rand(), Y: participantSpread.Rand()}
		p.vel = r2.Vec{}
		p.u = r2.Vec{}
	}
	obstacleSpread := distuv.Uniform{Min: -0.9, Max: 0.9, Src: src}
	for _, o := range w.obstacles {
		o.pos = r2.Vec{X: obstacleSpread.Rand(), Y: obstacleSpread.Rand()}
		o.vel = r2.Vec{}
	}
}

// tagRewardFor returns the reward of p after a world step.
func tagRewardFor(w *world, p *participant) float64 {
	if p.adversary {
		return predatorReward(w, p)
	}
	return preyReward(w, p)
}

// preyReward penalizes every touching predator and leaving the arena.
func preyReward(w *world, p *participant) float64 {
	rew := 0.0
	if p.collide {
		for _, other := range w.participants {
			if other.adversary && touching(&other.entity, &p.entity) {
				rew -= contactReward
			}
		}
	}
	rew -= boundaryPenalty(math.Abs(p.pos.X))
	rew -= boundaryPenalty(math.Abs(p.pos.Y))
	return rew
}

// predatorReward is shared by all predators: every predator/prey contact
// counts, whoever made it.
func predatorReward(w *world, p *participant) float64 {
	rew := 0.0
	if !p.collide {
		return rew
	}
	for _, prey := range w.participants {
		if prey.adversary {
			continue
		}
		for _, pred := range w.participants {
			if pred.adversary && touching(&prey.entity, &pred.entity) {
				rew += contactReward
			}
		}
	}
	return rew
}

// boundaryPenalty grows linearly from 0.9 to 1.0 and exponentially beyond,
// capped at 10.
func boundaryPenalty(x float64) float64 {
	if x < 0.9 {
		return 0
	}
	if x < 1.0 {
		return (x - 0.9) * 10
	}
	return math.Min(math.Exp(2*x-2), 10)
}

// tagObservation is the participant's own velocity and position, the
// relative positions of obstacles and other participants, and the velocities
// of the other prey.
func tagObservation(w *world, p *participant) []float64 {
	obs := make([]float64, 0, observationDim(w, p))
	obs = append(obs, p.vel.X, p.vel.Y, p.pos.X, p.pos.Y)
	for _, o := range w.obstacles {
		d := r2.Sub(o.pos, p.pos)
		obs = append(obs, d.X, d.Y)
	}
	var vels []float64
	for _, other := range w.participants {
		if other == p {
			continue
		}
		d := r2.Sub(other.pos, p.pos)
		obs = append(obs, d.X, d.Y)
		if !other.adversary {
			vels = append(vels, other.vel.X, other.vel.Y)
		}
	}
	return append(obs, vels...)
}

// observationDim is the length of p's observation vector.
func observationDim(w *world, p *participant) int {
	others := len(w.participants) - 1
	otherPrey := 0
	for _, other := range w.participants {
		if other != p && !other.adversary {
			otherPrey++
		}
	}
	return 4 + 2*len(w.obstacles) + 2*others + 2*otherPrey
}
