// Package autoload initializes the global logger from LOG_-prefixed
// environment variables as a side effect of being imported.
package autoload

import (
	configx "github.com/soundvault/support-agent/pkg/config"
	logx "github.com/soundvault/support-agent/pkg/logger"
)

func init() {
	cfg, err := configx.New[logx.Config]("LOG")
	if err != nil {
		cfg = logx.DefaultConfig
	}
	logx.Init(*cfg)
}
