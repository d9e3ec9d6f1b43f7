package config

import "time"

const (
	// WebSocket connection
	WriteWait      = 10 * time.Second
	PongWait       = 60 * time.Second
	PingPeriod     = (PongWait * 9) / 10
	MaxMessageSize = 64 * 1024

	// Buffered channel sizes
	ClientSendBuffer = 256
	HubQueueSize     = 1024
	BridgeQueueSize  = 1024

	// I/O budget for a single remote membership query or directory update
	DirectoryTimeout = 2 * time.Second
	// Friend-graph lookup on a realtime send
	AuthorizeTimeout = 2 * time.Second
)
