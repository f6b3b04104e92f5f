package service

import (
	"time"

	"github.com/twitchtv/twirp"

	"github.com/livekit/protocol/auth"

	"github.com/livekit/tutor-room/pkg/config"
)

// TokenIssuer mints room join tokens. Without LiveKit credentials it signs with the
// development key pair, which a `livekit-server --dev` instance accepts.
type TokenIssuer struct {
	apiKey    string
	apiSecret string
	ttl       time.Duration
}

func NewTokenIssuer(conf *config.Config) *TokenIssuer {
	t := &TokenIssuer{
		apiKey:    conf.Server.DevAPIKey,
		apiSecret: conf.Server.DevAPISecret,
		ttl:       conf.Server.TokenTTL,
	}
	if conf.LiveKit.IsConfigured() {
		t.apiKey = conf.LiveKit.APIKey
		t.apiSecret = conf.LiveKit.APISecret
	}
	return t
}

func (t *TokenIssuer) APIKey() string {
	return t.apiKey
}

// Issue grants identity permission to join roomID.
func (t *TokenIssuer) Issue(roomID string, identity string, name string, metadata string) (string, error) {
	if roomID == "" {
		return "", ErrNoRoomName
	}
	if identity == "" {
		return "", ErrIdentityEmpty
	}

	at := auth.NewAccessToken(t.apiKey, t.apiSecret).
		SetVideoGrant(&auth.VideoGrant{
			RoomJoin: true,
			Room:     roomID,
		}).
		SetIdentity(identity).
		SetName(name).
		SetMetadata(metadata)
	if t.ttl > 0 {
		at.SetValidFor(t.ttl)
	}

	token, err := at.ToJWT()
	if err != nil {
		return "", twirp.WrapError(ErrTokenSigningFailed, err)
	}
	return token, nil
}
