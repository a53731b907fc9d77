package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/anonto42/postacad/backend/pkg/client"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "postacad",
	Short: "postacad CLI - browse and curate the postacad feed from the terminal",
	Long: `postacad CLI talks to the postacad API. Sign in once with "postacad login",
then read the feed, search posts and users, and like or save posts.

Settings come from flags, POSTACAD_* environment variables or the config file.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to config file (default: ~/.config/postacad/config.yaml)")
	rootCmd.PersistentFlags().String("api", "http://localhost:8080/api/v1", "API base URL")
	rootCmd.PersistentFlags().String("token", "", "Session token (defaults to the one saved by login)")
	rootCmd.PersistentFlags().Duration("timeout", 15*time.Second, "HTTP timeout")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log HTTP traffic")

	_ = viper.BindPFlag("api", rootCmd.PersistentFlags().Lookup("api"))
	_ = viper.BindPFlag("token", rootCmd.PersistentFlags().Lookup("token"))
	_ = viper.BindPFlag("timeout", rootCmd.PersistentFlags().Lookup("timeout"))

	rootCmd.AddCommand(loginCmd, feedCmd, searchCmd, likeCmd, saveCmd, statsCmd)
}

func defaultConfigFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".config", "postacad", "config.yaml")
}

func initConfig() error {
	if cfgFile == "" {
		cfgFile = defaultConfigFile()
	}
	viper.SetConfigFile(cfgFile)
	viper.SetEnvPrefix("POSTACAD")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil && !os.IsNotExist(err) {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("read config %s: %w", cfgFile, err)
		}
	}
	return nil
}

// newClient builds an API client from the settled configuration
func newClient() *client.Client {
	log := zap.NewNop()
	if verbose {
		log, _ = zap.NewDevelopment()
	}
	c := client.New(viper.GetString("api"), viper.GetDuration("timeout"), log)
	if token := viper.GetString("token"); token != "" {
		c.SetToken(token)
	}
	return c
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
