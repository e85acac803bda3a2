// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the label-converter CLI.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/label-converter/internal/logging"
	"github.com/pdiddy/label-converter/internal/secrets"
	"github.com/pdiddy/label-converter/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// rootCmd is the base command for the label-converter CLI.
var rootCmd = &cobra.Command{
	Use:   "label-converter",
	Short: "Reshape Mondial Relay and InPost shipping labels for printing",
	Long: `label-converter rescales and repositions the pages of shipping label PDFs
onto a target page size. Pages can be fitted (contain, cover, stretch),
rotated, cropped to the detected label area and laid out two per sheet.

Use convert for files on disk and serve for the HTTP API and upload page.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadAppConfig()
		if err != nil {
			return err
		}
		logging.InitLogger(cfg.Log.File, cfg.Log.MaxSizeMB, cfg.Log.MaxBackups, cfg.Log.MaxAgeDays, cfg.Log.Compress, cfg.Log.Level)
		if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
			logging.SetLogLevel("debug")
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./label-converter.yaml or ~/.config/label-converter/label-converter.yaml)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "log at debug level")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("history", "", "conversion journal database (empty disables)")

	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("history.path", rootCmd.PersistentFlags().Lookup("history"))

	setDefaults(viper.GetViper())
}

// setDefaults registers every configuration key so that environment
// variables are picked up by Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.body_limit_mb", 32)
	v.SetDefault("server.rate_limit", 0)
	v.SetDefault("server.rate_interval", time.Minute)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.ui", true)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 28)
	v.SetDefault("log.compress", true)

	v.SetDefault("cache.redis_addr", "")
	v.SetDefault("cache.password", "")
	v.SetDefault("cache.secrets_dir", "")
	v.SetDefault("cache.db", 0)
	v.SetDefault("cache.rate_db", 1)
	v.SetDefault("cache.ttl", 24*time.Hour)

	v.SetDefault("history.path", "")

	def := types.DefaultConfig()
	v.SetDefault("conversion.preset", "")
	v.SetDefault("conversion.scale", def.Scale)
	v.SetDefault("conversion.fit", string(def.Fit))
	v.SetDefault("conversion.page", def.Page)
	v.SetDefault("conversion.margin", def.Margin)
	v.SetDefault("conversion.rotate", def.Rotate)
	v.SetDefault("conversion.zoom", def.Zoom)
	v.SetDefault("conversion.left_ratio", def.LeftRatio)
	v.SetDefault("conversion.auto_left", def.AutoLeft)
	v.SetDefault("conversion.auto_left_min", def.AutoLeftMin)
	v.SetDefault("conversion.auto_left_margin", def.AutoLeftMargin)
	v.SetDefault("conversion.auto_left_gap", def.AutoLeftGap)
	v.SetDefault("conversion.halign", string(def.HAlign))
	v.SetDefault("conversion.halign_offset", def.HAlignOffset)
	v.SetDefault("conversion.halign_bleed", def.HAlignBleed)
	v.SetDefault("conversion.valign", string(def.VAlign))
	v.SetDefault("conversion.layout", string(def.Layout))
	v.SetDefault("conversion.debug_boxes", def.DebugBoxes)
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("label-converter")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "label-converter"))
		}
	}

	viper.SetEnvPrefix("LABEL_CONVERTER")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// loadAppConfig decodes the merged configuration (defaults, file,
// environment, bound flags). A conversion.preset key replaces the
// conversion defaults before the remaining conversion keys apply.
func loadAppConfig() (types.AppConfig, error) {
	return decodeAppConfig(viper.GetViper())
}

func decodeAppConfig(v *viper.Viper) (types.AppConfig, error) {
	var cfg types.AppConfig
	if name := v.GetString("conversion.preset"); name != "" {
		preset, err := types.Preset(name)
		if err != nil {
			return cfg, fmt.Errorf("config: %w", err)
		}
		cfg.Conversion = preset
		// Keys set explicitly (file or environment) still win over the preset.
		for _, key := range conversionKeys {
			if !v.InConfig("conversion."+key) && os.Getenv(envName("conversion."+key)) == "" {
				v.SetDefault("conversion."+key, presetValue(preset, key))
			}
		}
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("decoding config: %w", err)
	}
	if cfg.Cache.Password == "" && cfg.Cache.SecretsDir != "" {
		store, err := secrets.Load(cfg.Cache.SecretsDir)
		if err != nil {
			return cfg, fmt.Errorf("config: %w", err)
		}
		cfg.Cache.Password = store.Get(secrets.RedisPassword)
	}
	return cfg, nil
}

func envName(key string) string {
	return "LABEL_CONVERTER_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
