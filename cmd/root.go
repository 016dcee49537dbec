package cmd

import (
	"os"

	coreconfig "github.com/lumio-chat/inlinegw/core/config"
	"github.com/lumio-chat/inlinegw/pkg/utils"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "inlinegw",
	Short: "Inline bot query gateway with persistent result caching",
	Long: `inlinegw resolves inline bot queries against an upstream provider and
caches result collections on disk with stale-while-revalidate semantics.`,
}

func init() {
	utils.LoadConfig(".")

	rootCmd.CompletionOptions.DisableDefaultCmd = true

	if _, err := coreconfig.LoadConfig(); err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}

	if coreconfig.Global.App.Debug {
		logrus.SetLevel(logrus.DebugLevel)
	}
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		logrus.Errorln(err)
		os.Exit(1)
	}
}
