// Package cmd wires the dbdoctor command line interface.
package cmd

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	logging "github.com/ipfs/go-log/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var log = logging.Logger("cmd")

var rootCmd = &cobra.Command{
	Use:   "dbdoctor",
	Short: "Find and repair database inconsistencies",
	Long: `dbdoctor audits a CMS database for structural inconsistencies -
workspace overlay records without a workspace, stale translation pointers,
records stranded on missing pages - and offers a fixed repair per finding
class. By default every repair is confirmed interactively.`,
	PersistentPreRun: func(cmd *cobra.Command, _ []string) {
		cmd.Flags().Visit(func(f *pflag.Flag) {
			log.Debugw("flag set", "name", f.Name, "value", f.Value.String())
		})
	},
	// We handle errors ourselves when they're returned from ExecuteContext.
	SilenceErrors: true,
	SilenceUsage:  true,
}

func init() {
	rootCmd.SetOut(os.Stdout)
	rootCmd.SetErr(os.Stderr)

	cobra.OnInitialize(initRootFlags, initConfig)
}

var cfgFilePath string

func initRootFlags() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFilePath,
		"config",
		"",
		"Path to the config file",
	)

	rootCmd.PersistentFlags().String(
		"driver",
		"sqlite",
		"Database driver (sqlite or mysql)",
	)
	cobra.CheckErr(viper.BindPFlag("db.driver", rootCmd.PersistentFlags().Lookup("driver")))
	cobra.CheckErr(viper.BindEnv("db.driver", "DBDOCTOR_DB_DRIVER"))

	rootCmd.PersistentFlags().String(
		"dsn",
		"",
		"Database connection string",
	)
	cobra.CheckErr(viper.BindPFlag("db.dsn", rootCmd.PersistentFlags().Lookup("dsn")))
	cobra.CheckErr(viper.BindEnv("db.dsn", "DBDOCTOR_DB_DSN"))

	rootCmd.PersistentFlags().String(
		"catalog",
		"catalog.yaml",
		"Path to the schema catalog file",
	)
	cobra.CheckErr(viper.BindPFlag("catalog.path", rootCmd.PersistentFlags().Lookup("catalog")))
	cobra.CheckErr(viper.BindEnv("catalog.path", "DBDOCTOR_CATALOG"))
}

func initConfig() {
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.SetEnvPrefix("DBDOCTOR")

	viper.SetConfigName("dbdoctor-config")
	viper.SetConfigType("yaml")

	// if no config file was provided, first look in the current directory
	// _then_ look in $XDG_CONFIG_HOME/dbdoctor/
	if cfgFilePath == "" {
		viper.AddConfigPath(".")
		if configDir, err := os.UserConfigDir(); err == nil {
			viper.AddConfigPath(filepath.Join(configDir, "dbdoctor"))
		}
	} else {
		viper.SetConfigFile(cfgFilePath)
	}

	if err := viper.ReadInConfig(); err == nil {
		log.Debugf("using config file %s", viper.ConfigFileUsed())
	}
}

// ExecuteContext adds all child commands to the root command and sets flags
// appropriately. This is called by main.main().
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}
