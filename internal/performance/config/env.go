package config

import (
	"github.com/caarlos0/env/v6"
	"github.com/pkg/errors"
)

// Env holds run-time values read from the environment.
type Env struct {
	BaseURL    string `env:"BASE_URL" envDefault:"http://localhost:8080"`
	AdminToken string `env:"ADMIN_TOKEN" envDefault:"admin:u1"`
	UserToken  string `env:"USER_TOKEN" envDefault:"user:u2"`
	UserID     string `env:"USER_ID" envDefault:"u2"`
	AuthorID   string `env:"AUTHOR_ID" envDefault:"u1"`
	PRID       string `env:"PR_ID" envDefault:"pr-load-1"`
	OldUserID  string `env:"OLD_USER_ID" envDefault:"u2"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`
}

// LoadEnv reads Env from the process environment.
func LoadEnv() (*Env, error) {
	cfg := &Env{}
	if err := env.Parse(cfg); err != nil {
		return nil, errors.Wrap(err, "config error")
	}
	return cfg, nil
}

// LoadEnvFrom reads Env from vars instead of the process environment.
func LoadEnvFrom(vars map[string]string) (*Env, error) {
	cfg := &Env{}
	if err := env.Parse(cfg, env.Options{Environment: vars}); err != nil {
		return nil, errors.Wrap(err, "config error")
	}
	return cfg, nil
}

// Variables exposes the environment to request templates.
func (e *Env) Variables() map[string]string {
	return map[string]string{
		"baseUrl":    e.BaseURL,
		"adminToken": e.AdminToken,
		"userToken":  e.UserToken,
		"userId":     e.UserID,
		"authorId":   e.AuthorID,
		"prId":       e.PRID,
		"oldUserId":  e.OldUserID,
	}
}

// Apply fills the parts of cfg the environment provides. File values win:
// settings.baseUrl is only set when empty, and config variables override the
// environment's.
func (e *Env) Apply(cfg *TestConfig) {
	if cfg.Settings.BaseURL == "" {
		cfg.Settings.BaseURL = e.BaseURL
	}
	cfg.Variables = MergeVariables(e.Variables(), cfg.Variables)
}
