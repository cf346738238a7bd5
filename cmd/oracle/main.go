package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/richard-senior/oracle/internal/logger"
	"github.com/richard-senior/oracle/pkg/oracle"
	"github.com/richard-senior/oracle/pkg/oracle/cache"
	"github.com/richard-senior/oracle/pkg/oracle/export"
	"github.com/richard-senior/oracle/pkg/oracle/store"
	"github.com/richard-senior/oracle/pkg/server"
)

const usage = `usage: oracle <command> [flags]

commands:
  import          load match history and player stats CSVs into the database
  build-features  rebuild the feature table, rating history and team snapshots
  value           staking advice for one match
  backtest        replay classifier predictions against the stored features
  serve           HTTP API over the derived data
`

func main() {
	logger.SetShowDateTime(true)

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg := oracle.DefaultConfig()
	if err := oracle.LoadConfigFromEnv(cfg); err != nil {
		logger.Fatal("Bad environment:", err)
	}
	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		logger.Fatal("Bad log level:", err)
	}
	logger.SetLevel(level)
	defer logger.Close()

	cmd, args := os.Args[1], os.Args[2:]
	logger.Debug("Command", cmd, strings.Join(args, " "))

	if err := run(context.Background(), cfg, cmd, args, os.Stdout); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprintf(os.Stderr, "%v\n\n%s", err, usage)
			os.Exit(2)
		}
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		logger.Error(cmd+" failed:", err)
		os.Exit(1)
	}
}

var errUsage = errors.New("unknown command")

// run dispatches one subcommand. Reports go to stdout.
func run(ctx context.Context, cfg *oracle.Config, cmd string, args []string, stdout io.Writer) error {
	switch cmd {
	case "import":
		return runImport(ctx, cfg, args)
	case "build-features":
		return runBuild(ctx, cfg, args)
	case "value":
		return runValue(cfg, args, stdout)
	case "backtest":
		return runBacktest(ctx, cfg, args, stdout)
	case "serve":
		return runServe(ctx, cfg, args)
	case "-h", "--help", "help":
		fmt.Fprint(stdout, usage)
		return nil
	default:
		return fmt.Errorf("%w %q", errUsage, cmd)
	}
}

// commonFlags registers the storage flags every command shares
func commonFlags(fs *flag.FlagSet, cfg *oracle.Config) *string {
	fs.StringVar(&cfg.DBDriver, "driver", cfg.DBDriver, "database driver: sqlite or postgres")
	fs.StringVar(&cfg.DBDSN, "dsn", cfg.DBDSN, "database data source name")
	fs.StringVar(&cfg.RedisAddr, "redis", cfg.RedisAddr, "redis address for the snapshot cache, empty disables it")
	return fs.String("log", "", "also write the log to this file")
}

func setLogFile(path string) error {
	if path == "" {
		return nil
	}
	return logger.SetLogOutput('b', path)
}

func openRedis(cfg *oracle.Config) (*redis.Client, *cache.Cache) {
	if cfg.RedisAddr == "" {
		return nil, nil
	}
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	return rdb, cache.New(rdb, cfg.CacheTTL)
}

func runImport(ctx context.Context, cfg *oracle.Config, args []string) error {
	fs := flag.NewFlagSet("import", flag.ContinueOnError)
	logFile := commonFlags(fs, cfg)
	file := fs.String("csv", "", "match history CSV")
	playersFile := fs.String("players", "", "player season stats CSV for the squad columns")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := setLogFile(*logFile); err != nil {
		return err
	}
	if *file == "" && *playersFile == "" {
		return fmt.Errorf("-csv or -players is required")
	}
	if err := oracle.ValidateConfig(cfg); err != nil {
		return err
	}

	var matches []*oracle.Match
	var players []*oracle.PlayerSeasonStats
	var err error
	if *file != "" {
		if matches, err = export.ReadMatchesFile(*file); err != nil {
			return err
		}
	}
	if *playersFile != "" {
		if players, err = export.ReadPlayerStatsFile(*playersFile); err != nil {
			return err
		}
	}

	s, err := store.Open(ctx, cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return err
	}
	defer s.Close()
	if len(matches) > 0 {
		if err := s.SaveMatches(ctx, matches); err != nil {
			return err
		}
	}
	if len(players) > 0 {
		if err := s.SavePlayerStats(ctx, players); err != nil {
			return err
		}
	}
	return nil
}

func runBuild(ctx context.Context, cfg *oracle.Config, args []string) error {
	fs := flag.NewFlagSet("build-features", flag.ContinueOnError)
	logFile := commonFlags(fs, cfg)
	csvPath := fs.String("csv", "", "also export the feature table here (.br compresses)")
	fs.Float64Var(&cfg.KFactor, "k", cfg.KFactor, "rating K factor")
	fs.IntVar(&cfg.FormWindow, "window", cfg.FormWindow, "rolling form window")
	fs.IntVar(&cfg.MinFormHistory, "min-history", cfg.MinFormHistory, "prior matches needed for a defined form mean")
	fs.Float64Var(&cfg.DefaultRestDays, "default-rest", cfg.DefaultRestDays, "rest days for a team's first match")
	fs.BoolVar(&cfg.SquadFeatures, "squad", cfg.SquadFeatures, "add previous season squad xG columns from the imported player stats")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := setLogFile(*logFile); err != nil {
		return err
	}
	if err := oracle.ValidateConfig(cfg); err != nil {
		return err
	}

	s, err := store.Open(ctx, cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return err
	}
	defer s.Close()

	p := &oracle.Pipeline{
		Config:  cfg,
		Source:  s,
		Sinks:   []oracle.FeatureSink{s},
		History: s,
	}
	if cfg.SquadFeatures {
		p.Players = s
	}
	if *csvPath != "" {
		p.Sinks = append(p.Sinks, export.NewCSVWriter(*csvPath, cfg.SquadFeatures))
	}
	rdb, c := openRedis(cfg)
	if c != nil {
		defer rdb.Close()
		p.Sinks = append(p.Sinks, c)
		p.Snapshots = c
	}

	table, err := p.Run(ctx)
	if err != nil {
		return err
	}
	if c != nil {
		if _, err := c.PublishRun(ctx, table); err != nil {
			logger.Warn("Could not publish run event", err)
		}
	}
	logger.Highlight("Feature table rebuilt:", len(table.Rows), "rows,", len(table.Skipped), "skipped,", table.Dropped, "dropped")
	return nil
}

func runValue(cfg *oracle.Config, args []string, w io.Writer) error {
	fs := flag.NewFlagSet("value", flag.ContinueOnError)
	var p oracle.Probabilities
	var o oracle.Odds
	fs.Float64Var(&p.Home, "p-home", 0, "home win probability")
	fs.Float64Var(&p.Draw, "p-draw", 0, "draw probability")
	fs.Float64Var(&p.Away, "p-away", 0, "away win probability")
	fs.Float64Var(&o.Home, "odds-home", 0, "decimal odds on the home win")
	fs.Float64Var(&o.Draw, "odds-draw", 0, "decimal odds on the draw")
	fs.Float64Var(&o.Away, "odds-away", 0, "decimal odds on the away win")
	bankroll := fs.Float64("bankroll", 1000, "current bankroll")
	fs.Float64Var(&cfg.KellyMultiplier, "kelly", cfg.KellyMultiplier, "Kelly multiplier, 1 full, 0.5 half")
	if err := fs.Parse(args); err != nil {
		return err
	}

	rec, err := oracle.Recommend(p, o, *bankroll, cfg)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rec)
}

func runBacktest(ctx context.Context, cfg *oracle.Config, args []string, stdout io.Writer) error {
	bt := oracle.DefaultBacktestConfig()
	fs := flag.NewFlagSet("backtest", flag.ContinueOnError)
	logFile := commonFlags(fs, cfg)
	predPath := fs.String("predictions", "", "classifier predictions CSV (.br allowed), empty uses the Poisson baseline")
	mode := fs.String("mode", string(bt.Mode), "staking: kelly or flat")
	fs.Float64Var(&bt.StartingBankroll, "bankroll", bt.StartingBankroll, "starting bankroll")
	fs.Float64Var(&bt.FlatStake, "stake", bt.FlatStake, "flat stake per bet")
	fs.Float64Var(&bt.EdgeThreshold, "edge", bt.EdgeThreshold, "flat mode: required edge over the implied probability")
	fs.Float64Var(&bt.MaxStakeFraction, "max-fraction", bt.MaxStakeFraction, "kelly mode: cap on the bankroll fraction per bet")
	fs.Float64Var(&cfg.KellyMultiplier, "kelly", cfg.KellyMultiplier, "Kelly multiplier")
	margin := fs.Float64("margin", 0.05, "bookmaker margin for simulated odds")
	testFraction := fs.Float64("test-fraction", 0.2, "replay only this latest share of the matches, 1 replays all")
	out := fs.String("out", "", "write the JSON report here instead of stdout")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := setLogFile(*logFile); err != nil {
		return err
	}
	bt.Mode = oracle.StakingMode(*mode)
	if err := oracle.ValidateConfig(cfg); err != nil {
		return err
	}

	s, err := store.Open(ctx, cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return err
	}
	defer s.Close()
	rows, err := s.LoadFeatures(ctx)
	if err != nil {
		return err
	}

	byID, err := predictions(*predPath, rows)
	if err != nil {
		return err
	}
	all, simulated := backtestInputs(rows, byID, cfg.RatingScale, *margin)
	inputs, err := oracle.HoldOut(all, *testFraction)
	if err != nil {
		return err
	}
	logger.Info("Backtesting held out matches", len(inputs), "of", len(all), "with simulated odds", simulated)

	rep, err := oracle.Backtest(inputs, bt, cfg)
	if err != nil {
		return err
	}

	w := stdout
	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rep)
}

// backtestInputs joins stored rows with their predictions. Rows without a
// prediction are left out and predictions without prices get simulated odds.
func backtestInputs(rows []*oracle.FeatureRow, byID map[int64]export.Prediction, scale, margin float64) ([]oracle.BacktestInput, int) {
	var inputs []oracle.BacktestInput
	simulated := 0
	for _, r := range rows {
		p, ok := byID[r.MatchID]
		if !ok {
			continue
		}
		odds := p.Odds
		if !p.HasOdds {
			odds = oracle.SimulatedOdds(r, scale, margin)
			simulated++
		}
		inputs = append(inputs, oracle.BacktestInput{
			MatchID:       r.MatchID,
			Date:          r.Date,
			Probabilities: p.Probabilities,
			Odds:          odds,
			Result:        oracle.Outcome(r.MatchResult),
		})
	}
	return inputs, simulated
}

// predictions reads the classifier output, or prices every stored row with
// the Poisson baseline when path is empty
func predictions(path string, rows []*oracle.FeatureRow) (map[int64]export.Prediction, error) {
	out := make(map[int64]export.Prediction)
	if path != "" {
		preds, err := export.OpenPredictions(path)
		if err != nil {
			return nil, err
		}
		for _, p := range preds {
			out[p.MatchID] = p
		}
		return out, nil
	}

	b := oracle.DefaultPoissonBaseline()
	for _, r := range rows {
		p, err := b.Predict(r)
		if err != nil {
			logger.Warn("No baseline prediction", r.MatchID, err)
			continue
		}
		out[r.MatchID] = export.Prediction{MatchID: r.MatchID, Probabilities: p}
	}
	logger.Info("Using Poisson baseline predictions", len(out))
	return out, nil
}

func runServe(ctx context.Context, cfg *oracle.Config, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	logFile := commonFlags(fs, cfg)
	addr := fs.String("addr", ":8080", "listen address")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := setLogFile(*logFile); err != nil {
		return err
	}
	if err := oracle.ValidateConfig(cfg); err != nil {
		return err
	}

	s, err := store.Open(ctx, cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return err
	}
	defer s.Close()

	var srv *server.Server
	rdb, c := openRedis(cfg)
	if c != nil {
		defer rdb.Close()
		srv = server.New(cfg, c, s, c, s)
	} else {
		srv = server.New(cfg, nil, s, s)
	}
	return srv.Start(*addr)
}
