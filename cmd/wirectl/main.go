package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/danmuck/wirelink/internal/logging"
	"github.com/danmuck/wirelink/internal/transport"
	"github.com/danmuck/wirelink/internal/transport/wsstream"
	"github.com/danmuck/wirelink/internal/wire"
	"github.com/danmuck/wirelink/internal/wire/diff"
	"github.com/danmuck/wirelink/internal/wire/inspect"
)

var wirectlVersion = "0.1.0"

var rootCmd = &cobra.Command{
	Use:           "wirectl",
	Short:         "Inspect, diff, and probe tagged wire dumps and endpoints",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.ConfigureRuntime()
	},
}

var inspectCmd = &cobra.Command{
	Use:   "inspect <dump>",
	Short: "Parse a tagged dump and print its structure with byte offsets",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		allowTrailing, _ := cmd.Flags().GetBool("allow-trailing")
		root, err := inspect.Inspect(wire.NewReader(data), nil, !allowTrailing)
		if err != nil {
			return fmt.Errorf("inspect %s: %w", args[0], err)
		}
		fmt.Fprint(cmd.OutOrStdout(), renderTree(root))
		return nil
	},
}

var diffCmd = &cobra.Command{
	Use:   "diff <dump-a> <dump-b>",
	Short: "Compare two tagged dumps and report the first difference",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		b, err := os.ReadFile(args[1])
		if err != nil {
			return err
		}
		res := diff.Compare(a, b)
		fmt.Fprintln(cmd.OutOrStdout(), res.Description)
		if !res.DumpsAreEqual {
			os.Exit(1)
		}
		return nil
	},
}

var probeCmd = &cobra.Command{
	Use:   "probe <address>",
	Short: "Connect to an endpoint, run the handshake, and report the server build",
	Long: `Probe dials an endpoint (host:port for TCP, ws:// or wss:// for
websocket), completes the protocol handshake, prints the server's hello,
and closes the connection.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfgPath, _ := cmd.Flags().GetString("config")
		cfg := transport.DefaultConfig()
		if cfgPath != "" {
			loaded, err := loadProbeConfig(cfgPath)
			if err != nil {
				return err
			}
			cfg = loaded
		}
		if magic, _ := cmd.Flags().GetString("game-magic"); magic != "" {
			cfg.GameMagic = magic
		}
		if len(cfg.GameMagic) != wire.GameMagicLen {
			return fmt.Errorf("game magic must be %d bytes, have %q", wire.GameMagicLen, cfg.GameMagic)
		}
		cfg.ClientVersion = wirectlVersion
		return runProbe(cmd, args[0], cfg)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show the wirectl version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "wirectl version %s\n", wirectlVersion)
	},
}

func runProbe(cmd *cobra.Command, address string, cfg transport.Config) error {
	var opener transport.Opener
	if strings.HasPrefix(address, "ws://") || strings.HasPrefix(address, "wss://") {
		opener = &wsstream.Opener{URL: address}
	} else {
		opener = &transport.TCPOpener{Address: address}
	}

	tr := transport.New(cfg, opener, transport.NewRegistry(), logging.Logger("wirectl"))
	defer tr.Dispose()
	if err := tr.Open(); err != nil {
		return err
	}

	for ev := range tr.Events() {
		switch e := ev.(type) {
		case transport.ConnectedEvent:
			fmt.Fprintf(cmd.OutOrStdout(), "connected to %s (%s)\n", e.Report.RemoteHost, e.Report.ProtocolLabel)
			fmt.Fprintf(cmd.OutOrStdout(), "server version: %s\n", e.Hello.ServerVersion)
			fmt.Fprintf(cmd.OutOrStdout(), "build number:   %d\n", e.Hello.BuildNumber)
			fmt.Fprintf(cmd.OutOrStdout(), "commit:         %s\n", e.Hello.CommitID)
			tr.EnqueueClose(nil)
		case transport.ErrorEvent:
			if _, requested := e.Err.(*transport.EnqueuedCloseError); requested {
				return nil
			}
			return e.Err
		}
	}
	return nil
}

func main() {
	inspectCmd.Flags().Bool("allow-trailing", false, "tolerate bytes after the root value")
	probeCmd.Flags().String("config", "", "probe config file (TOML)")
	probeCmd.Flags().String("game-magic", "", "override the expected 4-byte game magic")
	rootCmd.AddCommand(inspectCmd, diffCmd, probeCmd, versionCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "wirectl: %v\n", err)
		os.Exit(1)
	}
}
