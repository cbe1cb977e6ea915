package main

import (
	"fmt"
	"os"

	"github.com/danmuck/gridctl/internal/config"
	"github.com/danmuck/gridctl/internal/logging"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func defaultPath(kind string) (string, error) {
	switch kind {
	case config.KindHarness:
		return "gridctl.toml", nil
	case config.KindGlobals:
		return "globals.yaml", nil
	default:
		return "", fmt.Errorf("unknown kind: %s", kind)
	}
}

func newRootCmd() *cobra.Command {
	var (
		kind     string
		output   string
		validate bool
		input    string
		force    bool
	)

	cmd := &cobra.Command{
		Use:          "configgen",
		Short:        "Write or validate gridctl harness and globals files",
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if validate {
				path := input
				if path == "" {
					p, err := defaultPath(kind)
					if err != nil {
						return err
					}
					path = p
				}
				if err := config.ValidateFile(path, kind); err != nil {
					return err
				}
				log.Info().Str("kind", kind).Str("path", path).Msg("configgen validated")
				return nil
			}

			target := output
			if target == "" {
				p, err := defaultPath(kind)
				if err != nil {
					return err
				}
				target = p
			}
			if err := config.WriteTemplate(target, kind, force); err != nil {
				return err
			}
			log.Info().Str("kind", kind).Str("path", target).Msg("configgen wrote template")
			return nil
		},
	}

	cmd.Flags().StringVar(&kind, "kind", config.KindHarness, "config kind: harness|globals")
	cmd.Flags().StringVar(&output, "output", "", "output path for config template")
	cmd.Flags().BoolVar(&validate, "validate", false, "validate an existing config file")
	cmd.Flags().StringVar(&input, "input", "", "config path for validation (defaults to per-kind path)")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing config file")
	return cmd
}

func main() {
	logging.ConfigureRuntime()
	if err := newRootCmd().Execute(); err != nil {
		log.Error().Err(err).Msg("configgen failed")
		os.Exit(1)
	}
}
