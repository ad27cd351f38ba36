// Package transport defines the capability the session orchestrator drives:
// a negotiated peer with media lines and a datachannel side channel, plus the
// gateway bootstrap exchange. The pion implementation lives in webrtc.go;
// tests substitute fakes.
package transport

import (
	"context"

	"github.com/mediabridge/roomkit/channel"
	"github.com/mediabridge/roomkit/protocol"
)

// MediaSource is one local media feed a sender can bind.
type MediaSource interface {
	ID() string
	Kind() protocol.Kind
}

// SendLine is a local outbound media line. ReplaceSource(nil) unbinds.
type SendLine interface {
	ReplaceSource(src MediaSource) error
}

// RecvLine is a local inbound media line. TrackID is empty until the remote
// side has delivered media on it; ClearTrack resets the binding when the
// gateway migrates the session to a new host.
type RecvLine interface {
	TrackID() string
	ClearTrack()
}

type Description struct {
	Type string
	SDP  string
}

// Peer is the underlying real-time transport handle.
type Peer interface {
	CreateOffer(ctx context.Context, iceRestart bool) (Description, error)
	SetLocalDescription(ctx context.Context, desc Description) error
	SetRemoteDescription(ctx context.Context, desc Description) error

	AddSendLine(kind protocol.Kind, simulcast bool) (SendLine, error)
	AddRecvLine(kind protocol.Kind) (RecvLine, error)

	// Line is the side channel the RPC protocol runs on.
	Line() channel.Line

	// OnTrack fires once inbound media arrives for a recv line, with the
	// line's media-track identifier.
	OnTrack(fn func(trackID string))
	OnNegotiationNeeded(fn func())
	// OnCandidate reports locally discovered network candidates.
	OnCandidate(fn func(candidate string))

	Close() error
}

// Gateway is the out-of-band HTTP bootstrap used to establish or restart the
// transport connection.
type Gateway interface {
	Connect(ctx context.Context, token string, req *protocol.ConnectRequest) (*protocol.ConnectResponse, error)
	RestartIce(ctx context.Context, token, connID string, req *protocol.ConnectRequest) (*protocol.ConnectResponse, error)
	SendCandidates(ctx context.Context, connID string, candidates []string) error
}
