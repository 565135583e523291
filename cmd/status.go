package cmd

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/Cyph1x/PowerContribution/pkg/config"
	"github.com/Cyph1x/PowerContribution/pkg/logging"
	"github.com/Cyph1x/PowerContribution/pkg/ovo"
	"github.com/Cyph1x/PowerContribution/pkg/tplink"
)

func StatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Verify provider logins and list smart-plug devices",
		RunE: func(cmd *cobra.Command, args []string) error {
			return showStatus()
		},
	}
}

func showStatus() error {
	logger, err := logging.NewLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	creds, err := config.CredentialsFromEnv(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Fetch.TimeoutSeconds)*time.Second)
	defer cancel()

	ovoSession := ovo.NewSession(logger)
	if err := ovoSession.Login(ctx, creds.OvoUsername, creds.OvoPassword); err != nil {
		return fmt.Errorf("ovo login: %w", err)
	}

	var tplinkOpts []tplink.Option
	if cfg.TPLink.GatewayURL != "" {
		tplinkOpts = append(tplinkOpts, tplink.WithGatewayURL(cfg.TPLink.GatewayURL))
	}
	plugClient := tplink.NewClient(logger, tplinkOpts...)
	if err := plugClient.Login(ctx, creds.TPLinkUsername, creds.TPLinkPassword); err != nil {
		return fmt.Errorf("tplink login: %w", err)
	}

	things, err := plugClient.Things(ctx)
	if err != nil {
		return fmt.Errorf("list devices: %w", err)
	}

	fmt.Printf("Provider Status\n")
	fmt.Printf("===============\n")
	fmt.Printf("OVO:     logged in (account %s)\n", creds.OvoAccountID)
	fmt.Printf("TP-Link: logged in (account %s)\n\n", plugClient.AccountNickname())

	fmt.Printf("%-32s %-16s %-10s %s\n", "THING", "MODEL", "STATUS", "NICKNAME")
	fmt.Println("================================================================================")
	names := make([]string, 0, len(things))
	for name := range things {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		thing := things[name]
		fmt.Printf("%-32s %-16s %-10d %s\n", thing.ThingName, thing.Model, thing.Status, thing.Nickname)
	}

	fmt.Printf("\nConfigured devices: %d. Run 'powercontribution report' to build a usage report.\n", len(cfg.TPLink.Devices))
	return nil
}
