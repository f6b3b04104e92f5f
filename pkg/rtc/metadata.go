// Copyright 2023 LiveKit, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package rtc

import (
	"encoding/json"
	"strings"

	"github.com/livekit/tutor-room/pkg/rtc/types"
)

const identitySeparators = "#@"

func ParseParticipantMetadata(metadata string) (types.ParticipantMetadata, error) {
	var md types.ParticipantMetadata
	if strings.TrimSpace(metadata) == "" {
		return md, nil
	}
	err := json.Unmarshal([]byte(metadata), &md)
	return md, err
}

// DeriveRemoteParticipant resolves the role and display name shown for a remote participant.
// Name precedence: metadata originalName, transport name, identity prefix, identity.
// Unparseable metadata yields a student named after its identity.
func DeriveRemoteParticipant(identity string, name string, metadata string) (types.Role, string) {
	md, err := ParseParticipantMetadata(metadata)
	if err != nil {
		return types.RoleStudent, identity
	}

	role := types.RoleStudent
	switch {
	case md.IsAITutor:
		role = types.RoleAITutor
	case md.IsTutor:
		role = types.RoleTutor
	}

	switch {
	case strings.TrimSpace(md.OriginalName) != "":
		return role, strings.TrimSpace(md.OriginalName)
	case strings.TrimSpace(name) != "":
		return role, strings.TrimSpace(name)
	}
	if idx := strings.IndexAny(identity, identitySeparators); idx > 0 {
		return role, identity[:idx]
	}
	return role, identity
}

// DeriveLocalRole gives the local participant its role from the session's tutor name.
func DeriveLocalRole(displayName string, tutorName string, isAITutor bool) types.Role {
	switch {
	case isAITutor:
		return types.RoleAITutor
	case tutorName != "" && strings.EqualFold(strings.TrimSpace(displayName), strings.TrimSpace(tutorName)):
		return types.RoleTutor
	default:
		return types.RoleStudent
	}
}

// LocalMetadata is attached to the local participant's access token.
func LocalMetadata(displayName string, role types.Role) types.ParticipantMetadata {
	return types.ParticipantMetadata{
		IsAITutor:    role == types.RoleAITutor,
		IsTutor:      role == types.RoleTutor || role == types.RoleAITutor,
		OriginalName: displayName,
	}
}
