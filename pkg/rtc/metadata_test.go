package rtc

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/livekit/tutor-room/pkg/rtc/types"
)

func TestDeriveRemoteParticipant(t *testing.T) {
	cases := []struct {
		name     string
		identity string
		pName    string
		metadata string
		role     types.Role
		display  string
	}{
		{
			name:     "tutor metadata",
			identity: "bob",
			metadata: `{"isTutor":true,"originalName":"Bob Tutor"}`,
			role:     types.RoleTutor,
			display:  "Bob Tutor",
		},
		{
			name:     "ai tutor wins over tutor",
			identity: "agent-1",
			pName:    "Agent",
			metadata: `{"isAITutor":true,"isTutor":true}`,
			role:     types.RoleAITutor,
			display:  "Agent",
		},
		{
			name:     "original name wins over name",
			identity: "carol",
			pName:    "carol-laptop",
			metadata: `{"originalName":"Carol"}`,
			role:     types.RoleStudent,
			display:  "Carol",
		},
		{
			name:     "malformed metadata",
			identity: "dave#1234",
			pName:    "Dave",
			metadata: `{"isTutor":`,
			role:     types.RoleStudent,
			display:  "dave#1234",
		},
		{
			name:     "no metadata uses name",
			identity: "erin",
			pName:    "Erin",
			role:     types.RoleStudent,
			display:  "Erin",
		},
		{
			name:     "identity prefix",
			identity: "frank@school.example",
			role:     types.RoleStudent,
			display:  "frank",
		},
		{
			name:     "raw identity",
			identity: "user-4fTq9Z",
			role:     types.RoleStudent,
			display:  "user-4fTq9Z",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			role, display := DeriveRemoteParticipant(tc.identity, tc.pName, tc.metadata)
			require.Equal(t, tc.role, role)
			require.Equal(t, tc.display, display)
		})
	}
}

func TestDeriveLocalRole(t *testing.T) {
	require.Equal(t, types.RoleTutor, DeriveLocalRole("Bob Tutor", "bob tutor", false))
	require.Equal(t, types.RoleStudent, DeriveLocalRole("Alice", "Bob Tutor", false))
	require.Equal(t, types.RoleStudent, DeriveLocalRole("Alice", "", false))
	require.Equal(t, types.RoleAITutor, DeriveLocalRole("Alice", "Bob Tutor", true))
}

func TestLocalMetadata(t *testing.T) {
	md := LocalMetadata("Bob Tutor", types.RoleTutor)
	require.True(t, md.IsTutor)
	require.False(t, md.IsAITutor)
	require.Equal(t, "Bob Tutor", md.OriginalName)

	// round trips through the remote side
	role, name := DeriveRemoteParticipant("bob", "", `{"isTutor":true,"originalName":"Bob Tutor"}`)
	require.Equal(t, types.RoleTutor, role)
	require.Equal(t, md.OriginalName, name)
}
