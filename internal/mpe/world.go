package mpe

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// Physical constants of the particle world.
const (
	dt            = 0.1
	damping       = 0.25
	contactForce  = 1e2
	contactMargin = 1e-3
	entityMass    = 1.0
)

// entity is anything with a body: participants and obstacles.
type entity struct {
	name     string
	size     float64
	movable  bool
	collide  bool
	maxSpeed float64 // zero means unbounded
	pos      r2.Vec
	vel      r2.Vec
}

// participant is a controllable entity.
type participant struct {
	entity
	adversary bool
	accel     float64
	u         r2.Vec // force requested by the current action
}

// world integrates participant motion with soft contact forces between
// colliding bodies.
type world struct {
	participants []*participant
	obstacles    []*entity
}

// entities returns participants followed by obstacles, the order in which
// collision forces are accumulated.
func (w *world) entities() []*entity {
	all := make([]*entity, 0, len(w.participants)+len(w.obstacles))
	for _, p := range w.participants {
		all = append(all, &p.entity)
	}
	return append(all, w.obstacles...)
}

// step advances the world by one tick of length dt.
func (w *world) step() {
	ents := w.entities()
	forces := make([]r2.Vec, len(ents))

	for i, p := range w.participants {
		if p.movable {
			forces[i] = p.u
		}
	}

	for a := range ents {
		for b := a + 1; b < len(ents); b++ {
			fa, fb, ok := collisionForce(ents[a], ents[b])
			if !ok {
				continue
			}
			if ents[a].movable {
				forces[a] = r2.Add(forces[a], fa)
			}
			if ents[b].movable {
				forces[b] = r2.Add(forces[b], fb)
			}
		}
	}

	for i, e := range ents {
		if !e.movable {
			continue
		}
		e.vel = r2.Scale(1-damping, e.vel)
		e.vel = r2.Add(e.vel, r2.Scale(dt/entityMass, forces[i]))
		if e.maxSpeed > 0 {
			if speed := r2.Norm(e.vel); speed > e.maxSpeed {
				e.vel = r2.Scale(e.maxSpeed/speed, e.vel)
			}
		}
		e.pos = r2.Add(e.pos, r2.Scale(dt, e.vel))
	}
}

// collisionForce returns the contact forces acting on a and b. The force is a
// softplus of the penetration depth, so it is non-zero (but tiny) just
// outside contact as well.
func collisionForce(a, b *entity) (r2.Vec, r2.Vec, bool) {
	if !a.collide || !b.collide || a == b {
		return r2.Vec{}, r2.Vec{}, false
	}
	delta := r2.Sub(a.pos, b.pos)
	dist := r2.Norm(delta)
	if dist == 0 {
		return r2.Vec{}, r2.Vec{}, false
	}
	distMin := a.size + b.size
	penetration := softplus(-(dist-distMin)/contactMargin) * contactMargin
	force := r2.Scale(contactForce*penetration/dist, delta)
	return force, r2.Scale(-1, force), true
}

// softplus computes log(1 + e^x) without overflow.
func softplus(x float64) float64 {
	if x > 0 {
		return x + math.Log1p(math.Exp(-x))
	}
	return math.Log1p(math.Exp(x))
}

// touching reports whether two bodies overlap.
func touching(a, b *entity) bool {
	return r2.Norm(r2.Sub(a.pos, b.pos)) < a.size+b.size
}
