package config

import (
	"github.com/dataglove/glovectl/internal/client"
	"github.com/dataglove/glovectl/internal/client/credential"
	"github.com/dataglove/glovectl/internal/client/guard"
	"github.com/dataglove/glovectl/internal/client/pipeline"
	"github.com/dataglove/glovectl/internal/infra/tlsroots"
)

// ClientConfig maps the configuration onto the session stack.
func (c *Config) ClientConfig(userAgent string) client.Config {
	return client.Config{
		Transport: pipeline.Config{
			Server:    c.Server,
			APIPrefix: c.APIPrefix,
			Timeout:   c.Timeout,
			ClientID:  c.ClientID,
			UserAgent: userAgent,
			RateLimit: c.RateLimit.RPS,
			RateBurst: c.RateLimit.Burst,
		},
		Credential: credential.Config{
			Backend: c.Credential.Backend,
			Path:    c.Credential.Path,
			KeyFile: c.Credential.KeyFile,
			Slot:    c.Credential.Slot,
		},
		TLS: tlsroots.Config{
			CAFile:             c.TLS.CAFile,
			CADir:              c.TLS.CADir,
			CertFile:           c.TLS.CertFile,
			KeyFile:            c.TLS.KeyFile,
			ServerName:         c.TLS.ServerName,
			InsecureSkipVerify: c.TLS.InsecureSkipVerify,
		},
		Pages: guard.Pages{
			Entry:    c.Routes.Entry,
			Landing:  c.Routes.Landing,
			NotFound: c.Routes.NotFound,
		},
	}
}
