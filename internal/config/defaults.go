package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultAppName         = "life-stream-go-bus"
	DefaultAddress         = ":11111"
	DefaultMaxConnections  = 10000
	DefaultWSAddress       = ":11112"
	DefaultWSBufferSize    = 1024
	DefaultSendQueueSize   = 256
	DefaultReadBufferSize  = 4096
	DefaultMaxLineLength   = 4096
	DefaultMaxPayloadSize  = 16 << 20
	DefaultWriteTimeout    = 10 * time.Second
	DefaultMatchCacheSize  = 1024
	DefaultLogDirectory    = "logs"
	DefaultLogRetention    = 30 * 24 * time.Hour
	DefaultMetricsInterval = 60 * time.Second
)

func (c *Config) applyDefaults() {
	if c.AppName == "" {
		c.AppName = DefaultAppName
	}

	if c.Server.Address == "" {
		c.Server.Address = DefaultAddress
	}
	if c.Server.MaxConnections == 0 {
		c.Server.MaxConnections = DefaultMaxConnections
	}
	if c.Server.WebSocket.Address == "" {
		c.Server.WebSocket.Address = DefaultWSAddress
	}
	if c.Server.WebSocket.ReadBufferSize == 0 {
		c.Server.WebSocket.ReadBufferSize = DefaultWSBufferSize
	}
	if c.Server.WebSocket.WriteBufferSize == 0 {
		c.Server.WebSocket.WriteBufferSize = DefaultWSBufferSize
	}

	if c.Session.SendQueueSize == 0 {
		c.Session.SendQueueSize = DefaultSendQueueSize
	}
	if c.Session.ReadBufferSize == 0 {
		c.Session.ReadBufferSize = DefaultReadBufferSize
	}
	if c.Session.MaxLineLength == 0 {
		c.Session.MaxLineLength = DefaultMaxLineLength
	}
	if c.Session.MaxPayloadSize == 0 {
		c.Session.MaxPayloadSize = DefaultMaxPayloadSize
	}
	if c.Session.WriteTimeout == 0 {
		c.Session.WriteTimeout = Duration(DefaultWriteTimeout)
	}

	if c.Router.MatchCacheSize == 0 {
		c.Router.MatchCacheSize = DefaultMatchCacheSize
	}

	if c.Log.Directory == "" {
		c.Log.Directory = DefaultLogDirectory
	}
	if c.Log.Retention == 0 {
		c.Log.Retention = Duration(DefaultLogRetention)
	}

	if c.Metrics.Interval == 0 {
		c.Metrics.Interval = Duration(DefaultMetricsInterval)
	}
}
