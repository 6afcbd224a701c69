// Package appconfig loads the controller's immutable configuration
// once at startup, per spec §9 Design Notes ("Global config module →
// an immutable config struct loaded at startup and passed down").
// Backed by viper (file + environment variable + defaults), the way
// the wider example pack configures long-running daemons, rather than
// the teacher's heavier REST-editable SQLite/YAML ConfigProvider —
// this controller has one fixed topology for its whole deployment
// lifetime (see SPEC_FULL.md §6.2).
package appconfig

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// TempAPI describes a "latest?table=" style temperature endpoint.
type TempAPI struct {
	HostAndPort string
	TableName   string
}

// SmartThings holds optional alternate inside-temperature source
// credentials.
type SmartThings struct {
	Enabled     bool
	Token       string
	DeviceID    string
	APIEndpoint string
}

// CoolingTimeBuffer is either a fixed number of hours, or a quadratic
// function of outside temperature resolved by fixed-point iteration
// against the forecast mean (spec §4.5).
type CoolingTimeBuffer struct {
	IsFunction bool
	Constant   decimal.Decimal
	A, B, C    decimal.Decimal
}

// Config is the fully resolved, immutable controller configuration.
type Config struct {
	Timezone *time.Location

	FMILocation string
	FMIKey      string

	YrNoLocation string

	OpenWeatherMapKey      string
	OpenWeatherMapLocation string

	TempAPIOutside     TempAPI
	InsideTempEndpoint string
	SmartThings        SmartThings

	MinimumInsideTemp         decimal.Decimal
	AllowedMinimumInsideTemp  decimal.Decimal
	CoolingRatePerHourPerDiff decimal.Decimal
	CoolingTimeBuffer         CoolingTimeBuffer

	ControllerP decimal.Decimal
	ControllerI decimal.Decimal
	ControllerD decimal.Decimal

	EmailAddresses []string

	HealthcheckURLCron    string
	HealthcheckURLMessage string
}

// Load reads configuration from (in increasing precedence) built-in
// defaults, the file at path (if it exists), and environment
// variables prefixed ILP_.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("appconfig: reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("ILP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	loc, err := time.LoadLocation(v.GetString("timezone"))
	if err != nil {
		return nil, fmt.Errorf("appconfig: invalid timezone %q: %w", v.GetString("timezone"), err)
	}

	cfg := &Config{
		Timezone: loc,

		FMILocation: v.GetString("fmi_location"),
		FMIKey:      v.GetString("fmi_key"),

		YrNoLocation: v.GetString("yr_no_location"),

		OpenWeatherMapKey:      v.GetString("open_weather_map_key"),
		OpenWeatherMapLocation: v.GetString("open_weather_map_location"),

		TempAPIOutside: TempAPI{
			HostAndPort: v.GetString("temp_api_outside.host_and_port"),
			TableName:   v.GetString("temp_api_outside.table_name"),
		},
		InsideTempEndpoint: v.GetString("inside_temp_endpoint"),
		SmartThings: SmartThings{
			Enabled:     v.GetString("smartthings_token") != "",
			Token:       v.GetString("smartthings_token"),
			DeviceID:    v.GetString("smartthings_device_id"),
			APIEndpoint: v.GetString("smartthings_api_endpoint"),
		},

		EmailAddresses: v.GetStringSlice("email_addresses"),

		HealthcheckURLCron:    v.GetString("healthcheck_url_cron"),
		HealthcheckURLMessage: v.GetString("healthcheck_url_message"),
	}

	cfg.MinimumInsideTemp, err = decimalFromViper(v, "minimum_inside_temp")
	if err != nil {
		return nil, err
	}
	cfg.AllowedMinimumInsideTemp, err = decimalFromViper(v, "allowed_minimum_inside_temp")
	if err != nil {
		return nil, err
	}
	cfg.CoolingRatePerHourPerDiff, err = decimalFromViper(v, "cooling_rate_per_hour_per_temperature_diff")
	if err != nil {
		return nil, err
	}
	cfg.ControllerP, err = decimalFromViper(v, "controller_p")
	if err != nil {
		return nil, err
	}
	cfg.ControllerI, err = decimalFromViper(v, "controller_i")
	if err != nil {
		return nil, err
	}
	cfg.ControllerD, err = decimalFromViper(v, "controller_d")
	if err != nil {
		return nil, err
	}

	if v.IsSet("cooling_time_buffer_function") {
		cfg.CoolingTimeBuffer.IsFunction = true
		cfg.CoolingTimeBuffer.A, _ = decimalFromViper(v, "cooling_time_buffer_function.a")
		cfg.CoolingTimeBuffer.B, _ = decimalFromViper(v, "cooling_time_buffer_function.b")
		cfg.CoolingTimeBuffer.C, _ = decimalFromViper(v, "cooling_time_buffer_function.c")
	} else {
		cfg.CoolingTimeBuffer.Constant, err = decimalFromViper(v, "cooling_time_buffer")
		if err != nil {
			return nil, err
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decimalFromViper(v *viper.Viper, key string) (decimal.Decimal, error) {
	s := v.GetString(key)
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("appconfig: %s: %w", key, err)
	}
	return d, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("timezone", "UTC")
	v.SetDefault("minimum_inside_temp", "3.5")
	v.SetDefault("allowed_minimum_inside_temp", "1.0")
	v.SetDefault("cooling_rate_per_hour_per_temperature_diff", "0.015")
	v.SetDefault("cooling_time_buffer", "24")
	v.SetDefault("controller_p", "2")
	v.SetDefault("controller_i", fmt.Sprintf("%.10f", 2.0/3600.0))
	v.SetDefault("controller_d", fmt.Sprintf("%d", 3600*15))
	v.SetDefault("smartthings_api_endpoint", "https://api.smartthings.com/v1")
	v.SetDefault("healthcheck_url_cron", "")
	v.SetDefault("healthcheck_url_message", "")
}

func (c *Config) validate() error {
	if c.FMILocation == "" && c.YrNoLocation == "" {
		return fmt.Errorf("appconfig: at least one forecast source (FMI_LOCATION or YR_NO_LOCATION) must be configured")
	}
	if c.InsideTempEndpoint == "" && !c.SmartThings.Enabled {
		return fmt.Errorf("appconfig: an inside temperature source (INSIDE_TEMP_ENDPOINT or SMARTTHINGS_*) must be configured")
	}
	if c.TempAPIOutside.HostAndPort == "" && c.OpenWeatherMapKey == "" && c.FMILocation == "" {
		return fmt.Errorf("appconfig: at least one outside temperature source must be configured")
	}
	return nil
}
