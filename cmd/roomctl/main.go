package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mediabridge/roomkit/internal/config"
	"github.com/mediabridge/roomkit/mixer"
	"github.com/mediabridge/roomkit/protocol"
	"github.com/mediabridge/roomkit/session"
	"github.com/mediabridge/roomkit/transport"
)

const clientVersion = "roomctl/0.3"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	// Human-friendly output for terminal; in production you may want JSON only.
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	if cfg.MetricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			log.Info().Str("addr", cfg.MetricsAddr).Msg("metrics endpoint started")
			if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
				log.Error().Err(err).Msg("metrics server error")
			}
		}()
	}

	peer, err := transport.NewWebRTCPeer(transport.DefaultWebRTCConfig())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create peer")
	}
	gw := transport.NewHTTPGateway(cfg.Gateway)

	join := &session.JoinDescriptor{
		Room:      cfg.Room,
		Peer:      cfg.Peer,
		Metadata:  cfg.Metadata,
		Publish:   protocol.Caps{Peer: cfg.Publish, Tracks: cfg.Publish},
		Subscribe: protocol.Caps{Peer: cfg.Subscribe, Tracks: cfg.Subscribe},
	}
	if cfg.MixerOutputs > 0 {
		join.Mixer = &mixer.Config{Outputs: cfg.MixerOutputs}
	}

	sess := session.New(gw, peer, session.Config{Token: cfg.Token, Join: join})
	if cfg.RequestTimeout > 0 {
		sess.Channel().Timeout = cfg.RequestTimeout
	}

	sess.OnPeerJoined(func(ev *protocol.PeerJoined) {
		log.Info().Str("peer", ev.Peer).Msg("peer joined")
	})
	sess.OnPeerLeaved(func(ev *protocol.PeerLeaved) {
		log.Info().Str("peer", ev.Peer).Msg("peer left")
	})
	sess.OnTrackStarted(func(ev *session.TrackStarted) {
		log.Info().
			Str("peer", ev.Event.Peer).
			Str("track", ev.Event.Track).
			Str("kind", ev.Event.Kind.String()).
			Str("receiver", ev.Receiver.Name()).
			Msg("track started")
	})
	sess.OnTrackStopped(func(ev *protocol.TrackStopped) {
		log.Info().Str("peer", ev.Peer).Str("track", ev.Track).Msg("track stopped")
	})
	if m := sess.Mixer(); m != nil {
		m.OnVoiceActivity(func(activity mixer.VoiceActivity) {
			log.Debug().Str("peer", activity.Peer).Bool("active", activity.Active).Int32("level", activity.AudioLevel).Msg("voice activity")
		})
	}

	if cfg.Publish {
		track, err := webrtc.NewTrackLocalStaticSample(
			webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus},
			"audio", cfg.Peer,
		)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create audio track")
		}
		snd, err := sess.Sender("mic", &transport.PionSource{Track: track}, nil)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to register sender")
		}
		snd.OnStatus(func(status session.TrackStatus) {
			log.Info().Str("sender", snd.Name()).Str("status", string(status)).Msg("sender status")
		})
	}

	connectCtx, connectCancel := context.WithTimeout(ctx, 30*time.Second)
	defer connectCancel()
	if err := sess.Connect(connectCtx, clientVersion); err != nil {
		log.Fatal().Err(err).Msg("connect failed")
	}
	log.Info().Str("session", sess.ID()).Msg("session connected")

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := sess.Disconnect(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("disconnect error")
	}
	log.Info().Msg("Session closed gracefully")
}
