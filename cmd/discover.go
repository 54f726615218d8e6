package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bavix/faros/internal/config"
	"github.com/bavix/faros/internal/enumerate"
	"github.com/bavix/faros/internal/render"
)

//nolint:funlen
func newDiscoverCmd() *cobra.Command {
	var (
		flags    discoveryFlags
		asYAML   bool
		asJSON   bool
		jsonFile string
		field    string
		delim    string
		dumpPath string
	)

	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Discover the fleet and print the reconciled topology",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}

			result, err := runDiscovery(ctx, cfg, flags)
			if err != nil {
				return err
			}

			if dumpPath != "" {
				if err := enumerate.WriteFixture(dumpPath, result.Descriptors, result.Documents()); err != nil {
					return err
				}
			}

			topo := result.Topology

			switch {
			case asYAML:
				out, err := render.YAML(topo)
				if err != nil {
					return err
				}

				fmt.Fprint(cmd.OutOrStdout(), out)
			case asJSON || jsonFile != "":
				out, err := render.JSON(topo)
				if err != nil {
					return err
				}

				if jsonFile != "" {
					return os.WriteFile(jsonFile, []byte(out+"\n"), 0o600)
				}

				fmt.Fprintln(cmd.OutOrStdout(), out)
			default:
				fmt.Fprint(cmd.OutOrStdout(), render.Tree(topo, render.TreeOptions{Field: field, Delim: delim}))
			}

			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVar(&asYAML, "yaml", false, "Print the topology as YAML")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the station-indexed JSON document")
	cmd.Flags().StringVar(&jsonFile, "json-file", "", "Write the station-indexed JSON document to a file")
	cmd.Flags().StringVar(&field, "field", "", "Show one descriptor field per member instead of the default line (serial, address, firmware, fpga, label, revision, frontend)")
	cmd.Flags().StringVar(&delim, "delim", " ", "Delimiter between field values")
	cmd.Flags().StringVar(&dumpPath, "dump", "", "Record a replayable discovery snapshot to a file")

	return cmd
}
