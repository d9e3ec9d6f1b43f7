package chathub

import (
	"context"

	"duochat/backend/internal/config"

	"github.com/sirupsen/logrus"
)

// StartPubSubListener forwards emits published by other processes into the
// hub loop, which re-delivers them to the local subscribers of their room.
func (m *ManagerService) StartPubSubListener(ctx context.Context) {
	in := m.bridge.Subscribe(ctx)
	go func() {
		for bm := range in {
			select {
			case m.PubSubCh <- bm:
			case <-ctx.Done():
				return
			}
		}
	}()
}

// publishLoop drains the outbound queue so Redis latency never reaches the hub loop.
func (m *ManagerService) publishLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case bm := <-m.publishCh:
			pctx, cancel := context.WithTimeout(ctx, config.DirectoryTimeout)
			err := m.bridge.Publish(pctx, bm.Room, bm.Event)
			cancel()
			if err != nil {
				logrus.WithFields(logrus.Fields{
					"function": "publishLoop",
					"room":     bm.Room,
					"event":    bm.Event.Name,
				}).WithError(err).Warn("Error publishing to Redis")
			}
		}
	}
}
