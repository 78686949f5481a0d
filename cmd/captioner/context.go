package main

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"captioner/internal/apiclient"
	"captioner/internal/config"
)

type globalFlags struct {
	config string
	addr   string
	token  string
	json   bool
}

type commandContext struct {
	flags *globalFlags

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(flags *globalFlags) *commandContext {
	return &commandContext{flags: flags}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.flags != nil {
			path = strings.TrimSpace(c.flags.config)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) jsonOutput() bool {
	return c.flags != nil && c.flags.json
}

func (c *commandContext) baseURL() (string, error) {
	if c.flags != nil && strings.TrimSpace(c.flags.addr) != "" {
		return apiclient.BaseURLFromBind(c.flags.addr), nil
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return "", err
	}
	return apiclient.BaseURLFromBind(cfg.Paths.APIBind), nil
}

func (c *commandContext) token() string {
	if c.flags != nil && strings.TrimSpace(c.flags.token) != "" {
		return c.flags.token
	}
	if cfg, err := c.ensureConfig(); err == nil {
		return cfg.Paths.APIToken
	}
	return ""
}

func (c *commandContext) client() (*apiclient.Client, error) {
	base, err := c.baseURL()
	if err != nil {
		return nil, err
	}
	return apiclient.New(base, apiclient.WithToken(c.token())), nil
}

// wrapDaemonError turns transport failures into hints about the daemon.
func wrapDaemonError(err error) error {
	if err == nil {
		return nil
	}
	var urlErr *url.Error
	switch {
	case errors.Is(err, syscall.ECONNREFUSED):
		return fmt.Errorf("connect to daemon: connection refused; start it with `captioner serve`")
	case errors.As(err, &urlErr) && urlErr.Timeout():
		return fmt.Errorf("connect to daemon: request timed out: %w", err)
	default:
		return err
	}
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
