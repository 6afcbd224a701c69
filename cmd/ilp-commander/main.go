// Package main is the heating controller's entry point: it loads
// configuration, wires the external collaborators (IR transmitter,
// mail, message channel, persistence, healthchecks), and drives the
// state machine loop until signalled.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/pflag"

	"github.com/kimmoahola/ilp-commander/internal/appconfig"
	"github.com/kimmoahola/ilp-commander/internal/applog"
	"github.com/kimmoahola/ilp-commander/internal/cache"
	"github.com/kimmoahola/ilp-commander/internal/clock"
	"github.com/kimmoahola/ilp-commander/internal/command"
	"github.com/kimmoahola/ilp-commander/internal/healthcheck"
	"github.com/kimmoahola/ilp-commander/internal/irsend"
	"github.com/kimmoahola/ilp-commander/internal/mailer"
	"github.com/kimmoahola/ilp-commander/internal/messagechannel"
	"github.com/kimmoahola/ilp-commander/internal/pipeline"
	"github.com/kimmoahola/ilp-commander/internal/sources"
	"github.com/kimmoahola/ilp-commander/internal/statemachine"
	"github.com/kimmoahola/ilp-commander/internal/store"
)

func main() {
	cfgFile := pflag.String("config", "/etc/ilp-commander/config.yaml", "Path to the controller's configuration file")
	dbFile := pflag.String("db", "ilp-commander.db", "Path to the SQLite persistence database")
	messageEndpoint := pflag.String("message-endpoint", "", "Operator message channel endpoint")
	smtpHost := pflag.String("smtp-host", "", "SMTP relay host for notification email")
	smtpPort := pflag.Int("smtp-port", 587, "SMTP relay port")
	smtpUser := pflag.String("smtp-user", "", "SMTP username")
	smtpPassword := pflag.String("smtp-password", "", "SMTP password")
	smtpFrom := pflag.String("smtp-from", "", "SMTP from address")
	debug := pflag.Bool("debug", false, "Turn on debugging output")
	pflag.Parse()

	if err := applog.Init(*debug); err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer applog.Sync()

	cfg, err := appconfig.Load(*cfgFile)
	if err != nil {
		applog.Errorf("failed to load configuration: %v", err)
		os.Exit(1)
	}

	st, err := store.Open(*dbFile)
	if err != nil {
		applog.Errorf("failed to open persistence store: %v", err)
		os.Exit(1)
	}
	defer st.Close()

	saved, savedOK, err := st.LoadSavedState()
	if err != nil {
		applog.Warnf("failed to load saved controller state, starting fresh: %v", err)
	}

	pState := pipeline.NewState(cfg, saved, savedOK)
	reqCache := cache.New(cache.DefaultPolicies())
	sysClock := clock.NewSystem(time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC))

	adapters := buildAdapters(cfg, reqCache)

	var mailClient *mailer.Mailer
	if *smtpHost != "" && len(cfg.EmailAddresses) > 0 {
		mailClient = mailer.New(*smtpHost, *smtpPort, *smtpUser, *smtpPassword, *smtpFrom, cfg.EmailAddresses)
	}
	sender := irsend.New("", "ilp")

	ad := pipeline.Adapters{
		Outside:  adapters.outside,
		Inside:   adapters.inside,
		DewPoint: adapters.dewPoint,
		FMI:      adapters.fmi,
		Yr:       adapters.yr,
		Sender:   sender,
		Mailer:   mailClient,
		Store:    st,
	}

	var msgChannel *messagechannel.Channel
	if *messageEndpoint != "" {
		msgChannel = messagechannel.New(*messageEndpoint)
	}
	health := healthcheck.New(cfg.HealthcheckURLCron, cfg.HealthcheckURLMessage)

	machine := statemachine.NewMachine()
	machine.Store = st
	machine.Messages = msgChannel
	machine.Health = health
	machine.PState = pState
	machine.Pipeline = func(ctx context.Context) pipeline.Result {
		return pipeline.Run(ctx, cfg, sysClock, pState, ad)
	}
	machine.SendOff = func(ctx context.Context) error {
		return sender.Send(ctx, command.Off)
	}
	machine.SendHeat = func(ctx context.Context, setPoint int) error {
		cmd, ok := nearestSetPoint(setPoint)
		if !ok {
			return fmt.Errorf("no valid set point near %d", setPoint)
		}
		return sender.Send(ctx, cmd)
	}

	runID := uuid.New().String()
	applog.Infof("ilp-commander starting (run=%s)", runID)

	ctx, cancel := context.WithCancel(context.Background())
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		applog.Info("shutdown signal received, finishing current iteration...")
		cancel()
	}()

	for ctx.Err() == nil {
		if _, err := machine.Step(ctx); err != nil {
			applog.Errorf("state machine step failed: %v", err)
		}
	}

	applog.Info("shutdown complete")
}

// nearestSetPoint resolves an operator-chosen integer temperature to
// the closest legal set point, since the heat pump only accepts the
// fixed set (spec §4.10 "set temp": param.temp integer °C).
func nearestSetPoint(temp int) (command.Command, bool) {
	best := -1
	bestDist := -1
	for _, sp := range command.SetPoints {
		dist := sp - temp
		if dist < 0 {
			dist = -dist
		}
		if bestDist == -1 || dist < bestDist {
			best = sp
			bestDist = dist
		}
	}
	if best == -1 {
		return command.Off, false
	}
	return command.Heat(best), true
}

// buildAdapters constructs one TempFunc/ForecastFunc per configured
// upstream and wraps each in the request cache under the name spec
// §4.2's policy table assigns it, so a transient upstream failure is
// served stale data rather than dropping the reading for this tick.
func buildAdapters(cfg *appconfig.Config, c *cache.Cache) struct {
	outside  []sources.TempFunc
	inside   []sources.TempFunc
	dewPoint sources.TempFunc
	fmi      sources.ForecastFunc
	yr       sources.ForecastFunc
} {
	var outside []sources.TempFunc
	if cfg.TempAPIOutside.HostAndPort != "" {
		outside = append(outside, sources.CacheTemp(c, "outside_raw", sources.NewOutsideTempAPI(cfg.TempAPIOutside.HostAndPort, cfg.TempAPIOutside.TableName)))
	}
	if cfg.FMILocation != "" {
		outside = append(outside, sources.CacheTemp(c, "weather_obs", sources.NewFMIObservation(cfg.FMILocation, cfg.FMIKey)))
	}
	if cfg.OpenWeatherMapKey != "" {
		outside = append(outside, sources.CacheTemp(c, "owm", sources.NewOpenWeatherMap(cfg.OpenWeatherMapKey, cfg.OpenWeatherMapLocation)))
	}

	var inside []sources.TempFunc
	if cfg.InsideTempEndpoint != "" {
		inside = append(inside, sources.CacheTemp(c, "inside", sources.NewInsideTempAPI(cfg.InsideTempEndpoint)))
	}
	if cfg.SmartThings.Enabled {
		inside = append(inside, sources.CacheTemp(c, "smartthings", sources.NewSmartThings(cfg.SmartThings.APIEndpoint, cfg.SmartThings.Token, cfg.SmartThings.DeviceID)))
	}

	var dewPoint sources.TempFunc
	if cfg.FMILocation != "" {
		dewPoint = sources.CacheTemp(c, "dew_point", sources.NewDewPoint(cfg.FMILocation, cfg.FMIKey))
	}

	var fmiForecast sources.ForecastFunc
	if cfg.FMILocation != "" {
		fmiForecast = sources.CacheForecast(c, "forecast_fmi", sources.NewFMIForecast(cfg.FMILocation, cfg.FMIKey))
	}
	var yrForecast sources.ForecastFunc
	if cfg.YrNoLocation != "" {
		yrForecast = sources.CacheForecast(c, "forecast_yr", sources.NewYrForecast(cfg.YrNoLocation))
	}

	return struct {
		outside  []sources.TempFunc
		inside   []sources.TempFunc
		dewPoint sources.TempFunc
		fmi      sources.ForecastFunc
		yr       sources.ForecastFunc
	}{
		outside:  outside,
		inside:   inside,
		dewPoint: dewPoint,
		fmi:      fmiForecast,
		yr:       yrForecast,
	}
}
