package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bavix/faros/internal/config"
	"github.com/bavix/faros/internal/faroserrors"
	"github.com/bavix/faros/internal/remote"
	"github.com/bavix/faros/internal/topology"
	"github.com/bavix/faros/internal/update"
)

func newRebootCmd() *cobra.Command {
	var (
		flags     discoveryFlags
		user      string
		password  string
		recursive bool
		force     bool
	)

	cmd := &cobra.Command{
		Use:   "reboot [serial]...",
		Short: "Reboot devices, chains or hubs in power-dependency order",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}

			creds := resolveCredentials(cfg, user, password)
			if err := creds.Validate(); err != nil {
				return err
			}

			result, err := runDiscovery(ctx, cfg, flags)
			if err != nil {
				return err
			}

			topo := result.Topology

			items := make([]topology.Item, 0, len(args))

			for _, serial := range args {
				item, ok := topo.Find(serial)
				if !ok {
					return fmt.Errorf("%w: %s", faroserrors.ErrUnknownSerial, serial)
				}

				items = append(items, item)
			}

			rebooter := update.NewRebooter(remote.NewManager(creds), topo)

			if force {
				for _, item := range items {
					hub, ok := item.(*topology.Hub)
					if !ok {
						return fmt.Errorf("%w: --force targets hubs, %s is not one",
							faroserrors.ErrUnknownSerial, item.Ident())
					}

					if err := rebooter.ForceReboot(ctx, hub); err != nil {
						return err
					}
				}

				return nil
			}

			return rebooter.Reboot(ctx, items, recursive)
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVarP(&user, "user", "U", "", "Fleet shell user")
	cmd.Flags().StringVarP(&password, "password", "P", "", "Fleet shell password")
	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "Also reboot every child of the selected items")
	cmd.Flags().BoolVar(&force, "force", false, "Power-cycle every chain port of the selected hubs, then the hubs themselves")

	return cmd
}

// resolveCredentials overlays CLI credentials on top of the config.
func resolveCredentials(cfg *config.Config, user, password string) remote.Credentials {
	creds := remote.Credentials{User: cfg.Auth.User, Password: cfg.Auth.Password}

	if user != "" {
		creds.User = user
	}

	if password != "" {
		creds.Password = password
	}

	return creds
}
