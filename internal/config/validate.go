package config

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateRender(); err != nil {
		return err
	}
	if err := c.validateUpload(); err != nil {
		return err
	}
	if err := c.validateTranslation(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateRedis(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateRender() error {
	if c.Render.MaxHeight < 2 {
		return errors.New("render.max_height must be at least 2")
	}
	if c.Render.FPS <= 0 {
		return errors.New("render.fps must be positive")
	}
	if c.Render.Threads <= 0 {
		return errors.New("render.threads must be positive")
	}
	if c.Render.MinVisibleSeconds <= 0 || math.IsNaN(c.Render.MinVisibleSeconds) || math.IsInf(c.Render.MinVisibleSeconds, 0) {
		return errors.New("render.min_visible_seconds must be a positive number")
	}
	return nil
}

func (c *Config) validateUpload() error {
	if c.Upload.MaxBytes <= 0 {
		return errors.New("upload.max_bytes must be positive")
	}
	return nil
}

func (c *Config) validateTranslation() error {
	if !c.Translation.Enabled {
		return nil
	}
	if c.Translation.MinTokenRunes < 0 {
		return errors.New("translation.min_token_runes must be zero or positive")
	}
	if c.Translation.Concurrency <= 0 {
		return errors.New("translation.concurrency must be positive")
	}
	if c.Translation.BatchSize <= 0 {
		return errors.New("translation.batch_size must be positive")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if err := ensurePositiveMap(map[string]int{
		"workflow.queue_poll_interval":  c.Workflow.QueuePollInterval,
		"workflow.error_retry_interval": c.Workflow.ErrorRetryInterval,
		"workflow.heartbeat_interval":   c.Workflow.HeartbeatInterval,
		"workflow.heartbeat_timeout":    c.Workflow.HeartbeatTimeout,
		"workflow.max_render_hours":     c.Workflow.MaxRenderHours,
	}); err != nil {
		return err
	}
	if c.Workflow.HeartbeatTimeout <= c.Workflow.HeartbeatInterval {
		return errors.New("workflow.heartbeat_timeout must be greater than workflow.heartbeat_interval")
	}
	if c.Workflow.WorkerCount < 1 {
		return errors.New("workflow.worker_count must be at least 1")
	}
	if c.Workflow.WorkerCount > c.Workflow.MaxWorkers {
		return fmt.Errorf("workflow.worker_count %d exceeds workflow.max_workers %d", c.Workflow.WorkerCount, c.Workflow.MaxWorkers)
	}
	switch c.Workflow.Dispatcher {
	case DispatcherLocal, DispatcherAsynq:
	default:
		return fmt.Errorf("workflow.dispatcher: unsupported value %q (want %q or %q)", c.Workflow.Dispatcher, DispatcherLocal, DispatcherAsynq)
	}
	return nil
}

func (c *Config) validateRedis() error {
	if c.UsesAsynq() && !c.RedisEnabled() {
		return errors.New("redis.addr must be set when workflow.dispatcher is \"asynq\"")
	}
	if c.Redis.DB < 0 {
		return errors.New("redis.db must be zero or positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	var keys []string
	for key, value := range values {
		if value <= 0 {
			keys = append(keys, key)
		}
	}
	if len(keys) == 0 {
		return nil
	}
	slices.Sort(keys)
	return fmt.Errorf("%s must be positive", strings.Join(keys, ", "))
}
