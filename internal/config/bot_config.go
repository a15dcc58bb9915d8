package config

import (
	"fmt"
	"github.com/spf13/viper"
	"strings"
)

type BotConfig struct {
	Token                  string  `mapstructure:"token"`
	AdminID                int64   `mapstructure:"admin_id"`
	ScriptPath             string  `mapstructure:"script_path"`
	AssetsDir              string  `mapstructure:"assets_dir"`
	PaymentLabelPrefix     string  `mapstructure:"payment_label_prefix"`
	BroadcastsPerSecond    float64 `mapstructure:"broadcasts_per_second"`
	ReceiptWindowHours     int     `mapstructure:"receipt_window_hours"`
	ClaimExpirationInHours int     `mapstructure:"claim_expiration_in_hours"`
}

func (config BotConfig) validate() error {

	var missingFields []string

	if config.Token == "" {
		missingFields = append(missingFields, "token")
	}

	if config.AdminID == 0 {
		missingFields = append(missingFields, "admin_id")
	}

	if config.ScriptPath == "" {
		missingFields = append(missingFields, "script_path")
	}

	if len(missingFields) > 0 {
		return fmt.Errorf("missing required variables: %s", strings.Join(missingFields, ", "))
	}

	return nil
}

func (config BotConfig) bindEnvironmentVariables() error {
	var errs []error

	if err := viper.BindEnv("bot.token", "TG_TOKEN"); err != nil {
		errs = append(errs, err)
	}

	if err := viper.BindEnv("bot.admin_id", "ADMIN_ID"); err != nil {
		errs = append(errs, err)
	}

	if err := viper.BindEnv("bot.script_path", "SCRIPT_PATH"); err != nil {
		errs = append(errs, err)
	}

	if err := viper.BindEnv("bot.assets_dir", "ASSETS_DIR"); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return createMultiError(errs)
	}

	return nil
}
