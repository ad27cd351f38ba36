package transport

import (
	"bytes"
	"context"
	"encoding"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mediabridge/roomkit/protocol"
)

// HTTPGateway speaks the bootstrap protocol: binary-encoded protocol
// messages over plain POSTs. The bearer token is passed per call because a
// room join can replace it mid-session.
type HTTPGateway struct {
	base   string
	client *http.Client
}

func NewHTTPGateway(base string) *HTTPGateway {
	return &HTTPGateway{
		base:   base,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (g *HTTPGateway) Connect(ctx context.Context, token string, req *protocol.ConnectRequest) (*protocol.ConnectResponse, error) {
	var res protocol.ConnectResponse
	if err := g.post(ctx, g.base+"/webrtc/connect", token, req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (g *HTTPGateway) RestartIce(ctx context.Context, token, connID string, req *protocol.ConnectRequest) (*protocol.ConnectResponse, error) {
	var res protocol.ConnectResponse
	if err := g.post(ctx, g.base+"/webrtc/"+connID+"/restart-ice", token, req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (g *HTTPGateway) SendCandidates(ctx context.Context, connID string, candidates []string) error {
	req := &protocol.RemoteIceRequest{Candidates: candidates}
	var res protocol.RemoteIceResponse
	return g.post(ctx, g.base+"/webrtc/"+connID+"/ice-candidate", "", req, &res)
}

func (g *HTTPGateway) post(ctx context.Context, url, token string, req encoding.BinaryMarshaler, res encoding.BinaryUnmarshaler) error {
	body, err := req.MarshalBinary()
	if err != nil {
		return err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}
	httpReq.Header.Set("Content-Type", "application/grpc")

	httpRes, err := g.client.Do(httpReq)
	if err != nil {
		return err
	}
	defer httpRes.Body.Close()

	if httpRes.StatusCode/100 != 2 {
		log.Warn().Str("module", "gateway").Str("url", url).Int("status", httpRes.StatusCode).Msg("bootstrap call rejected")
		return fmt.Errorf("gateway returned status %d", httpRes.StatusCode)
	}
	data, err := io.ReadAll(httpRes.Body)
	if err != nil {
		return err
	}
	return res.UnmarshalBinary(data)
}
