package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/rewired-gh/mandinetra/internal/config"
	"github.com/rewired-gh/mandinetra/internal/engine"
	"github.com/rewired-gh/mandinetra/internal/logger"
	"github.com/rewired-gh/mandinetra/internal/models"
	"github.com/rewired-gh/mandinetra/internal/settings"
)

const usage = `Usage: mandinetra [-config path] <command> [flags]

Commands:
  predict    -commodity C -district D -market M [-favorite]
  favorites  [list | remove -id N]
  alerts     [list | add -commodity C -target P [-condition above|below|change] [-district D] [-frequency instant|daily|weekly]
             | toggle -id N | rearm -id N | delete -id N | pending | flush [-frequency daily|weekly]]
  settings   [show | set -key K -value V | reset]
  commodities
  health
  watch      run digest delivery until interrupted
`

var configPath = flag.String("config", "", "Path to configuration file")

var digestFrequencies = []models.AlertFrequency{models.FrequencyDaily, models.FrequencyWeekly}

func main() {
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Setup logging with level support
	logger.Init(cfg.Logging.Level, cfg.Logging.Format)

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, cleaning up...")
		cancel()
	}()

	eng, err := engine.New(ctx, cfg, engine.Options{})
	if err != nil {
		logger.Fatal("Failed to initialize engine: %v", err)
	}

	cmd, args := flag.Arg(0), flag.Args()[1:]
	runErr := run(ctx, eng, cmd, args)

	if err := eng.Close(); err != nil {
		logger.Error("Failed to close engine: %v", err)
	}
	if runErr != nil {
		fmt.Fprintf(os.Stderr, "mandinetra %s: %v\n", cmd, runErr)
		os.Exit(1)
	}
}

func run(ctx context.Context, eng *engine.Engine, cmd string, args []string) error {
	switch cmd {
	case "predict":
		return runPredict(ctx, eng, args)
	case "favorites":
		return runFavorites(ctx, eng, args)
	case "alerts":
		return runAlerts(ctx, eng, args)
	case "settings":
		return runSettings(ctx, eng, args)
	case "commodities":
		return runCommodities(ctx, eng)
	case "health":
		return runHealth(ctx, eng)
	case "watch":
		logger.Info("Delivering alert digests until interrupted")
		return eng.Run(ctx)
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func runPredict(ctx context.Context, eng *engine.Engine, args []string) error {
	fs := flag.NewFlagSet("predict", flag.ContinueOnError)
	commodity := fs.String("commodity", "", "Commodity id, e.g. wheat")
	district := fs.String("district", "", "District id, e.g. pune")
	market := fs.String("market", "", "Market id, e.g. baramati")
	favorite := fs.Bool("favorite", false, "Save the prediction as a favorite")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if err := eng.Select(*commodity, *district, *market); err != nil {
		snap := eng.Snapshot()
		if len(snap.Districts) > 0 && snap.Selection.District == "" {
			return fmt.Errorf("%w (districts: %s)", err, districtIDs(snap.Districts))
		}
		if len(snap.Markets) > 0 && snap.Selection.Market == "" {
			return fmt.Errorf("%w (markets: %s)", err, marketIDs(snap.Markets))
		}
		return err
	}

	result, err := eng.Predict(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("%s\n", result.Label())
	fmt.Printf("  %s, %s\n", result.District, result.Market)
	fmt.Printf("  Predicted: ₹%s per quintal for %s\n", result.PredictedPrice.StringFixed(2), result.PredictionDate)

	if *favorite {
		fav, err := eng.AddFavorite(ctx)
		if err != nil {
			return fmt.Errorf("failed to save favorite: %w", err)
		}
		fmt.Printf("  Saved as favorite #%d\n", fav.ID)
	}
	return nil
}

func runFavorites(ctx context.Context, eng *engine.Engine, args []string) error {
	sub, rest := subcommand(args, "list")
	switch sub {
	case "list":
		favs := eng.Favorites()
		if len(favs) == 0 {
			fmt.Println("No favorites saved.")
			return nil
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tCOMMODITY\tDISTRICT\tMARKET\tPRICE\tSAVED")
		for _, f := range favs {
			label := f.DisplayLabel
			if label == "" {
				label = f.Commodity
			}
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t₹%s\t%s\n", f.ID, label, f.District, f.Market,
				f.PredictedPrice.StringFixed(2), f.CreatedAt.Local().Format(time.DateTime))
		}
		return w.Flush()
	case "remove":
		id, err := idFlag("favorites remove", rest)
		if err != nil {
			return err
		}
		found, err := eng.RemoveFavorite(ctx, id)
		if err != nil {
			return err
		}
		reportFound(found, "favorite", id, "removed")
		return nil
	default:
		return fmt.Errorf("unknown favorites command %q", sub)
	}
}

func runAlerts(ctx context.Context, eng *engine.Engine, args []string) error {
	sub, rest := subcommand(args, "list")
	switch sub {
	case "list":
		list := eng.Alerts()
		if len(list) == 0 {
			fmt.Println("No alerts configured.")
			return nil
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tCOMMODITY\tCONDITION\tTARGET\tDISTRICT\tFREQUENCY\tACTIVE\tTRIGGERED")
		for _, a := range list {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%t\t%t\n", a.ID, a.Commodity, a.Condition,
				a.TargetPrice.String(), a.District, a.Frequency, a.Active, a.Triggered)
		}
		return w.Flush()
	case "add":
		fs := flag.NewFlagSet("alerts add", flag.ContinueOnError)
		commodity := fs.String("commodity", "", "Commodity id")
		target := fs.String("target", "", "Target price, or percentage for change alerts")
		condition := fs.String("condition", "", "above, below or change")
		district := fs.String("district", "", "District id or all")
		frequency := fs.String("frequency", "", "instant, daily or weekly")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		a, err := eng.CreateAlert(ctx, models.AlertFields{
			Commodity:   *commodity,
			Condition:   models.AlertCondition(strings.ToLower(*condition)),
			TargetPrice: *target,
			District:    strings.ToLower(*district),
			Frequency:   models.AlertFrequency(strings.ToLower(*frequency)),
		})
		if err != nil {
			return err
		}
		fmt.Printf("Created alert #%d: %s %s %s (%s, %s)\n", a.ID, a.Commodity, a.Condition, a.TargetPrice.String(), a.District, a.Frequency)
		return nil
	case "toggle", "rearm", "delete":
		id, err := idFlag("alerts "+sub, rest)
		if err != nil {
			return err
		}
		var found bool
		var verb string
		switch sub {
		case "toggle":
			found, err = eng.ToggleAlert(ctx, id)
			verb = "toggled"
		case "rearm":
			found, err = eng.RearmAlert(ctx, id)
			verb = "re-armed"
		default:
			found, err = eng.DeleteAlert(ctx, id)
			verb = "deleted"
		}
		if err != nil {
			return err
		}
		reportFound(found, "alert", id, verb)
		return nil
	case "pending":
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "FREQUENCY	ALERT	COMMODITY	MARKET	PRICE	DETECTED")
		total := 0
		for _, f := range digestFrequencies {
			pending, err := eng.PendingDigest(ctx, f)
			if err != nil {
				return err
			}
			total += len(pending)
			for _, t := range pending {
				fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\t%s\n", f, t.Alert.ID, t.Alert.Commodity,
					t.Result.Selection.Key(), t.Result.PredictedPrice.StringFixed(2), t.DetectedAt.Format(time.RFC3339))
			}
		}
		if total == 0 {
			fmt.Println("No digest alerts queued.")
			return nil
		}
		return w.Flush()
	case "flush":
		fs := flag.NewFlagSet("alerts flush", flag.ContinueOnError)
		frequency := fs.String("frequency", "", "daily or weekly (default: both)")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		frequencies := digestFrequencies
		if *frequency != "" {
			f := models.AlertFrequency(strings.ToLower(*frequency))
			if f != models.FrequencyDaily && f != models.FrequencyWeekly {
				return fmt.Errorf("digest frequency must be daily or weekly, got %q", *frequency)
			}
			frequencies = []models.AlertFrequency{f}
		}
		for _, f := range frequencies {
			n, err := eng.FlushDigest(ctx, f)
			if err != nil {
				return err
			}
			fmt.Printf("Sent %s digest with %d alert(s)\n", f, n)
		}
		return nil
	default:
		return fmt.Errorf("unknown alerts command %q", sub)
	}
}

func runSettings(ctx context.Context, eng *engine.Engine, args []string) error {
	sub, rest := subcommand(args, "show")
	switch sub {
	case "show":
		printSettings(eng.Settings())
		return nil
	case "set":
		fs := flag.NewFlagSet("settings set", flag.ContinueOnError)
		key := fs.String("key", "", "One of: "+strings.Join(settings.Keys(), ", "))
		value := fs.String("value", "", "New value")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		s, err := eng.SetSetting(ctx, *key, *value)
		if err != nil {
			return err
		}
		printSettings(s)
		return nil
	case "reset":
		if err := eng.ResetSettings(ctx); err != nil {
			return err
		}
		printSettings(eng.Settings())
		return nil
	default:
		return fmt.Errorf("unknown settings command %q", sub)
	}
}

func runCommodities(ctx context.Context, eng *engine.Engine) error {
	for _, c := range eng.Commodities(ctx) {
		fmt.Printf("%-8s %s\n", c.ID, c.DisplayName)
	}
	return nil
}

func runHealth(ctx context.Context, eng *engine.Engine) error {
	h, err := eng.Health(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Status: %s\n", h.Status)
	fmt.Printf("Commodities: %d (%s)\n", h.TotalCommodities, strings.Join(h.AvailableCommodities, ", "))
	fmt.Printf("Districts: %d\n", h.TotalDistrictsAvailable)
	return nil
}

func printSettings(s settings.Settings) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "language\t%s\n", s.Language)
	fmt.Fprintf(w, "theme\t%s\n", s.Theme)
	fmt.Fprintf(w, "notifications\t%t\n", s.Notifications)
	fmt.Fprintf(w, "priceAlerts\t%t\n", s.PriceAlerts)
	fmt.Fprintf(w, "marketUpdates\t%t\n", s.MarketUpdates)
	fmt.Fprintf(w, "smsAlerts\t%t\n", s.SMSAlerts)
	fmt.Fprintf(w, "emailAlerts\t%t\n", s.EmailAlerts)
	fmt.Fprintf(w, "pushNotifications\t%t\n", s.PushNotifications)
	_ = w.Flush()
}

// subcommand splits off the first argument when it is not a flag.
func subcommand(args []string, def string) (string, []string) {
	if len(args) == 0 || strings.HasPrefix(args[0], "-") {
		return def, args
	}
	return args[0], args[1:]
}

func idFlag(name string, args []string) (int64, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	id := fs.String("id", "", "Record id")
	if err := fs.Parse(args); err != nil {
		return 0, err
	}
	if *id == "" {
		return 0, errors.New("-id is required")
	}
	n, err := strconv.ParseInt(*id, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q: %w", *id, err)
	}
	return n, nil
}

func reportFound(found bool, kind string, id int64, verb string) {
	if !found {
		fmt.Printf("No %s with id %d.\n", kind, id)
		return
	}
	fmt.Printf("%s #%d %s.\n", strings.ToUpper(kind[:1])+kind[1:], id, verb)
}

func districtIDs(ds []models.District) string {
	ids := make([]string, len(ds))
	for i, d := range ds {
		ids[i] = d.ID
	}
	return strings.Join(ids, ", ")
}

func marketIDs(ms []models.Market) string {
	ids := make([]string, len(ms))
	for i, m := range ms {
		ids[i] = m.ID
	}
	return strings.Join(ids, ", ")
}
