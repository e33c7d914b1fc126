// Package mpe implements the predator/prey tag game of the multi-agent
// particle environments.
//
// Participants are discs on a plane. Predators ("adversary_N") are larger
// and slower than prey ("agent_N"); both are pushed by their actions, slowed
// by damping and separated by soft contact forces, which also keep them out of
// the fixed obstacles. Prey lose 10 for every predator touching them and are
// penalized for leaving the unit square; every predator gains 10 for every
// predator/prey contact. Episodes end by truncation after MaxCycles steps.
//
// ParallelEnv exposes the parallel API: all active participants submit an
// action every step and receive observations, rewards, and termination and
// truncation flags keyed by participant id.
package mpe
