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

package service

import (
	"errors"
	"net/http"

	"github.com/twitchtv/twirp"
)

var (
	ErrRoomNotFound       = twirp.NotFoundError("room does not exist")
	ErrNoRoomName         = twirp.RequiredArgumentError("roomId")
	ErrIdentityEmpty      = twirp.RequiredArgumentError("identity")
	ErrInvalidRequestBody = twirp.NewError(twirp.Malformed, "request body is not valid JSON")
	ErrOperationFailed    = twirp.InternalError("operation cannot be completed")
	ErrTokenSigningFailed = twirp.InternalError("could not sign access token")
)

// IsNotFound reports whether err is a twirp not_found, whether raised locally or by a
// LiveKit server.
func IsNotFound(err error) bool {
	var terr twirp.Error
	if errors.As(err, &terr) {
		return terr.Code() == twirp.NotFound
	}
	return false
}

// httpStatus maps err onto the status code of an admission API response.
func httpStatus(err error) (int, string) {
	var terr twirp.Error
	if !errors.As(err, &terr) {
		return http.StatusInternalServerError, err.Error()
	}
	status := twirp.ServerHTTPStatusFromErrorCode(terr.Code())
	if status == 0 {
		status = http.StatusInternalServerError
	}
	return status, terr.Msg()
}
