package config

import (
	"errors"
	"fmt"
)

// Validate reports every invalid field of an already defaulted configuration.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.MaxConnections < 0 {
		errs = append(errs, fmt.Errorf("server.max_connections must be positive, got %d", c.Server.MaxConnections))
	}
	if c.Server.WebSocket.Enabled && c.Server.WebSocket.Address == c.Server.Address {
		errs = append(errs, fmt.Errorf("server.websocket.address must differ from server.address (%s)", c.Server.Address))
	}
	if c.Session.SendQueueSize < 0 {
		errs = append(errs, fmt.Errorf("session.send_queue_size must be positive, got %d", c.Session.SendQueueSize))
	}
	if c.Session.ReadBufferSize < 0 {
		errs = append(errs, fmt.Errorf("session.read_buffer_size must be positive, got %d", c.Session.ReadBufferSize))
	}
	if c.Session.MaxLineLength < 0 {
		errs = append(errs, fmt.Errorf("session.max_line_length must be positive, got %d", c.Session.MaxLineLength))
	}
	if c.Session.MaxPayloadSize < 0 {
		errs = append(errs, fmt.Errorf("session.max_payload_size must be positive, got %d", c.Session.MaxPayloadSize))
	}
	if c.Session.WriteTimeout < 0 {
		errs = append(errs, fmt.Errorf("session.write_timeout must not be negative"))
	}
	if c.Router.MatchCacheSize < -1 {
		errs = append(errs, fmt.Errorf("router.match_cache_size must be positive or -1, got %d", c.Router.MatchCacheSize))
	}
	if c.Metrics.Interval < 0 {
		errs = append(errs, fmt.Errorf("metrics.interval must not be negative"))
	}

	return errors.Join(errs...)
}
