// Package agent defines the roles under test, the Agent capability the
// harness drives, and the random policy used for uncontrolled participants.
package agent
