package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Rrens/flagr/internal/config"
	"github.com/Rrens/flagr/internal/logging"
)

type rootOptions struct {
	configPath string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "flagrctl",
		Short: "Analyze legal documents and manage Flagr data",
		Long: `flagrctl runs Flagr document analysis locally and administers the
storage backend used by the API server.

Examples:
  flagrctl analyze contract.pdf            # coloured risk summary
  flagrctl analyze lease.docx -o yaml      # full analysis as YAML
  flagrctl migrate up                      # apply the postgres schema
  flagrctl sessions export --user <id>     # dump a user's chat sessions`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Config file (default $CONFIG_PATH or ./configs/config.yaml)")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")

	cmd.AddCommand(
		newAnalyzeCmd(opts),
		newMigrateCmd(opts),
		newSessionsCmd(opts),
	)
	return cmd
}

// load reads configuration and installs the logger
func (o *rootOptions) load() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if o.configPath != "" {
		cfg, err = config.LoadFile(o.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	logCfg := cfg.Logging
	logCfg.Format = "console"
	if o.verbose {
		logCfg.Level = zerolog.DebugLevel.String()
	} else {
		logCfg.Level = zerolog.WarnLevel.String()
	}
	if _, err := logging.Setup(logCfg, false); err != nil {
		return nil, err
	}
	return cfg, nil
}

func checkFormat(format string, allowed ...string) error {
	for _, f := range allowed {
		if format == f {
			return nil
		}
	}
	return fmt.Errorf("unknown output format %q (want one of %v)", format, allowed)
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// writeYAML renders v as YAML using its JSON field names and order
func writeYAML(out io.Writer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return err
	}
	blockStyle(&doc)

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	_, err = out.Write(buf.Bytes())
	return err
}

// blockStyle drops the flow and quoting styles inherited from JSON
func blockStyle(n *yaml.Node) {
	n.Style = 0
	for _, c := range n.Content {
		blockStyle(c)
	}
}
