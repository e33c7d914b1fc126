package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRole(t *testing.T) {
	tests := []struct {
		in   string
		want Role
	}{
		{"prey", RolePrey},
		{"predator", RolePredator},
		{"Prey", RolePrey},
		{"  PREDATOR ", RolePredator},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseRole(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseRoleUnknown(t *testing.T) {
	_, err := ParseRole("hunter")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown role "hunter"`)
}

func TestRoleControls(t *testing.T) {
	ids := []string{"adversary_0", "adversary_1", "adversary_2", "agent_0", "agent_1"}

	for _, id := range ids {
		predator := RolePredator.Controls(id)
		prey := RolePrey.Controls(id)

		// Exactly one pass controls each participant.
		assert.NotEqual(t, predator, prey, "id %s", id)
		assert.Equal(t, IsPredatorID(id), predator, "id %s", id)
	}

	assert.True(t, RolePredator.Controls("adversary_0"))
	assert.False(t, RolePrey.Controls("adversary_0"))
	assert.True(t, RolePrey.Controls("agent_0"))
	assert.False(t, RolePredator.Controls("agent_0"))
	assert.False(t, Role("hunter").Controls("agent_0"))
}

func TestRoleDisplay(t *testing.T) {
	assert.Equal(t, "Prey", RolePrey.Title())
	assert.Equal(t, "Predator", RolePredator.Title())
	assert.Equal(t, "PREY", RolePrey.Upper())
	assert.Equal(t, "PREDATOR", RolePredator.Upper())
}
