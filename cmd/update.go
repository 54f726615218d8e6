package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bavix/faros/internal/config"
	"github.com/bavix/faros/internal/remote"
	"github.com/bavix/faros/internal/update"
)

var errArtifactBaseRequired = errors.New("--artifact-base is required unless --dry-run is set")

//nolint:funlen
func newUpdateCmd() *cobra.Command {
	var (
		flags        discoveryFlags
		user         string
		password     string
		recursive    bool
		standalone   bool
		patchAll     bool
		dryRun       bool
		artifactBase string
	)

	remaps := update.AllowedRemaps()
	remapEnabled := make([]bool, len(remaps))

	cmd := &cobra.Command{
		Use:   "update [serial]...",
		Short: "Flash firmware onto selected devices, deepest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}

			creds := resolveCredentials(cfg, user, password)
			if !dryRun {
				if err := creds.Validate(); err != nil {
					return err
				}

				if artifactBase == "" {
					return errArtifactBaseRequired
				}
			}

			env := update.NewEnvironment(artifactBase)

			for i, remap := range remaps {
				if !remapEnabled[i] {
					continue
				}

				if err := env.ApplyRemap(remap.From, remap.To); err != nil {
					return err
				}
			}

			result, err := runDiscovery(ctx, cfg, flags)
			if err != nil {
				return err
			}

			sel := update.Selection{
				Serials:    args,
				Recursive:  recursive,
				Standalone: standalone,
				PatchAll:   patchAll,
			}

			plan, err := update.BuildPlan(result.Topology, sel)
			if err != nil {
				return err
			}

			updater := update.NewUpdater(remote.NewManager(creds), env, update.BootMediaFlasher{}, dryRun)

			return updater.Run(ctx, plan)
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVarP(&user, "user", "U", "", "Fleet shell user")
	cmd.Flags().StringVarP(&password, "password", "P", "", "Fleet shell password")
	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "Also update every child of the selected devices")
	cmd.Flags().BoolVar(&standalone, "standalone", false, "Update all standalone chain-capable nodes")
	cmd.Flags().BoolVar(&patchAll, "patch-all", false, "Update every device on the network")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the plan without flashing anything")
	cmd.Flags().StringVar(&artifactBase, "artifact-base", "", "Base URL of the firmware artifacts, reachable from the fleet")

	for i, remap := range remaps {
		name := fmt.Sprintf("treat-%s-as-%s", remap.From, remap.To)
		usage := fmt.Sprintf("Flash %s devices with the %s image", remap.From, remap.To)
		cmd.Flags().BoolVar(&remapEnabled[i], name, false, usage)
	}

	return cmd
}
