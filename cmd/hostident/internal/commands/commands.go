package commands

import (
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/wolfeidau/hostident/internal/identity"
	"github.com/wolfeidau/hostident/internal/store"
)

type Globals struct {
	Debug   bool
	Version string
	Logger  zerolog.Logger

	// Out receives command output. Defaults to stdout.
	Out io.Writer
}

func (g *Globals) out() io.Writer {
	if g.Out == nil {
		return os.Stdout
	}
	return g.Out
}

// logger returns the command logger and makes it the global logger used by the stores.
func (g *Globals) logger() zerolog.Logger {
	log.Logger = g.Logger
	return g.Logger
}

// identitySummary is the printed form of an identity. It carries no private material.
type identitySummary struct {
	Location string              `yaml:"location"`
	HostID   string              `yaml:"host_id,omitempty"`
	Root     *store.CertMetadata `yaml:"root"`
	Host     *store.CertMetadata `yaml:"host"`
}

func newIdentitySummary(location string, m *identity.Material) *identitySummary {
	return &identitySummary{
		Location: location,
		HostID:   m.HostID,
		Root:     store.NewCertMetadataFromX509(m.RootCert.X509()),
		Host:     store.NewCertMetadataFromX509(m.HostCert.X509()),
	}
}

func printYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}
