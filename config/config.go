package config

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/vadiminshakov/arbiter/internal/domain"
)

const (
	EnvAPIKey    = "VENUE_API_KEY"
	EnvAPISecret = "VENUE_API_SECRET"

	defaultPair             = "BTC_BRL"
	defaultMinProfitPercent = "0.3"
	defaultMinFiatBalance   = "100"
	defaultMinCryptoBalance = "0.0004"
	defaultIdleWindow       = 30 * time.Minute
	defaultStateFile        = "./state/recovery.json"
	defaultLedgerDir        = "./wal/profits"
	defaultReportCron       = "@hourly"
)

type Config struct {
	Pair                      domain.Pair
	BaseURL                   string
	APIKey                    string
	APISecret                 string
	MinProfitPercent          decimal.Decimal
	Interval                  time.Duration
	Simulation                bool
	ExecuteMissedSecondLeg    bool
	ForceFinalRecoveryAttempt bool
	MaxFiatBalance            decimal.Decimal
	MaxCryptoBalance          decimal.Decimal
	MinFiatBalance            decimal.Decimal
	MinCryptoBalance          decimal.Decimal
	ProportionalCycling       bool
	AdaptiveSizing            bool
	BaseFiatAmount            decimal.Decimal
	BaseCryptoAmount          decimal.Decimal
	IdleWindow                time.Duration
	Verbose                   bool
	StateFile                 string
	LedgerDir                 string
	LogFile                   string
	StatusAddr                string
	ReportCron                string
}

type ConfigTmp struct {
	Pair                      string        `yaml:"pair"`
	BaseURL                   string        `yaml:"base_url"`
	MinProfitPercent          string        `yaml:"min_profit_percent"`
	Interval                  time.Duration `yaml:"interval"`
	Simulation                bool          `yaml:"simulation"`
	ExecuteMissedSecondLeg    bool          `yaml:"execute_missed_second_leg"`
	ForceFinalRecoveryAttempt bool          `yaml:"force_final_recovery_attempt"`
	MaxFiatBalance            string        `yaml:"max_fiat_balance,omitempty"`
	MaxCryptoBalance          string        `yaml:"max_crypto_balance,omitempty"`
	MinFiatBalance            string        `yaml:"min_fiat_balance,omitempty"`
	MinCryptoBalance          string        `yaml:"min_crypto_balance,omitempty"`
	ProportionalCycling       bool          `yaml:"proportional_cycling"`
	AdaptiveSizing            bool          `yaml:"adaptive_sizing"`
	BaseFiatAmount            string        `yaml:"base_fiat_amount,omitempty"`
	BaseCryptoAmount          string        `yaml:"base_crypto_amount,omitempty"`
	IdleWindow                time.Duration `yaml:"idle_window,omitempty"`
	Verbose                   bool          `yaml:"verbose"`
	StateFile                 string        `yaml:"state_file,omitempty"`
	LedgerDir                 string        `yaml:"ledger_dir,omitempty"`
	LogFile                   string        `yaml:"log_file,omitempty"`
	StatusAddr                string        `yaml:"status_addr,omitempty"`
	ReportCron                string        `yaml:"report_cron,omitempty"`
}

// Get reads the configuration from the process arguments and environment.
func Get() (Config, error) {
	return Load(os.Args[1:])
}

// Load parses args: either --config path.yaml, or individual flags. API credentials
// always come from the environment, optionally seeded from a .env file.
func Load(args []string) (Config, error) {
	fs := flag.NewFlagSet("arbiter", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to yaml config")
	envFile := fs.String("env", ".env", "optional dotenv file with API credentials")
	tmp := registerFlags(fs)

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	if *configPath != "" {
		fromFile, err := readYaml(*configPath)
		if err != nil {
			return Config{}, err
		}
		tmp = fromFile
	}

	conf, err := tmp.parse()
	if err != nil {
		return Config{}, err
	}

	if err := loadEnvFile(*envFile); err != nil {
		return Config{}, err
	}
	conf.APIKey = os.Getenv(EnvAPIKey)
	conf.APISecret = os.Getenv(EnvAPISecret)

	return conf, nil
}

func registerFlags(fs *flag.FlagSet) *ConfigTmp {
	c := &ConfigTmp{}
	fs.StringVar(&c.Pair, "pair", defaultPair, "trade pair crypto_fiat, example: BTC_BRL")
	fs.StringVar(&c.BaseURL, "baseurl", "", "venue API base URL")
	fs.StringVar(&c.MinProfitPercent, "minprofit", defaultMinProfitPercent, "minimum profit percent to execute a cycle")
	fs.DurationVar(&c.Interval, "interval", 0, "tick interval, 0 uses the minimum allowed by the venue rate limit")
	fs.BoolVar(&c.Simulation, "simulation", false, "do not confirm offers")
	fs.BoolVar(&c.ExecuteMissedSecondLeg, "executemissedsecondleg", true, "re-execute a missed second leg at a possible loss")
	fs.BoolVar(&c.ForceFinalRecoveryAttempt, "forcefinalrecovery", false, "accept the last recovery quote regardless of profit")
	fs.StringVar(&c.MaxFiatBalance, "maxfiat", "", "cap of fiat balance used per cycle")
	fs.StringVar(&c.MaxCryptoBalance, "maxcrypto", "", "cap of crypto balance used per cycle")
	fs.StringVar(&c.MinFiatBalance, "minfiat", defaultMinFiatBalance, "fiat balance below which the fiat side is skipped")
	fs.StringVar(&c.MinCryptoBalance, "mincrypto", defaultMinCryptoBalance, "crypto balance below which the crypto side is skipped")
	fs.BoolVar(&c.ProportionalCycling, "proportional", false, "weight consecutive ticks per side by balance value")
	fs.BoolVar(&c.AdaptiveSizing, "adaptive", false, "grow trade amount after success, shrink after inactivity")
	fs.StringVar(&c.BaseFiatAmount, "basefiat", "", "base fiat amount for adaptive sizing")
	fs.StringVar(&c.BaseCryptoAmount, "basecrypto", "", "base crypto amount for adaptive sizing")
	fs.DurationVar(&c.IdleWindow, "idlewindow", defaultIdleWindow, "inactivity window before the trade amount shrinks")
	fs.BoolVar(&c.Verbose, "verbose", false, "debug logging")
	fs.StringVar(&c.StateFile, "statefile", defaultStateFile, "recovery snapshot path")
	fs.StringVar(&c.LedgerDir, "ledgerdir", defaultLedgerDir, "profit ledger directory")
	fs.StringVar(&c.LogFile, "logfile", "", "optional rotating log file")
	fs.StringVar(&c.StatusAddr, "statusaddr", "", "status server address, empty disables it")
	fs.StringVar(&c.ReportCron, "reportcron", defaultReportCron, "cron schedule of the profit report, empty disables it")

	return c
}

func readYaml(path string) (*ConfigTmp, error) {
	f, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read yaml config")
	}

	// yaml keys that are absent keep the defaults below
	c := &ConfigTmp{
		Pair:                   defaultPair,
		MinProfitPercent:       defaultMinProfitPercent,
		ExecuteMissedSecondLeg: true,
		MinFiatBalance:         defaultMinFiatBalance,
		MinCryptoBalance:       defaultMinCryptoBalance,
		IdleWindow:             defaultIdleWindow,
		StateFile:              defaultStateFile,
		LedgerDir:              defaultLedgerDir,
		ReportCron:             defaultReportCron,
	}
	if err := yaml.Unmarshal(f, c); err != nil {
		return nil, errors.Wrap(err, "failed to parse yaml config")
	}

	return c, nil
}

func (c *ConfigTmp) parse() (Config, error) {
	pair, err := getPairFromString(c.Pair)
	if err != nil {
		return Config{}, fmt.Errorf("incorrect 'pair' param: %s, error: %w", c.Pair, err)
	}

	conf := Config{
		Pair:                      pair,
		BaseURL:                   c.BaseURL,
		Interval:                  c.Interval,
		Simulation:                c.Simulation,
		ExecuteMissedSecondLeg:    c.ExecuteMissedSecondLeg,
		ForceFinalRecoveryAttempt: c.ForceFinalRecoveryAttempt,
		ProportionalCycling:       c.ProportionalCycling,
		AdaptiveSizing:            c.AdaptiveSizing,
		IdleWindow:                c.IdleWindow,
		Verbose:                   c.Verbose,
		StateFile:                 c.StateFile,
		LedgerDir:                 c.LedgerDir,
		LogFile:                   c.LogFile,
		StatusAddr:                c.StatusAddr,
		ReportCron:                c.ReportCron,
	}

	decimals := []struct {
		name  string
		value string
		def   string
		dst   *decimal.Decimal
	}{
		{"min_profit_percent", c.MinProfitPercent, defaultMinProfitPercent, &conf.MinProfitPercent},
		{"max_fiat_balance", c.MaxFiatBalance, "0", &conf.MaxFiatBalance},
		{"max_crypto_balance", c.MaxCryptoBalance, "0", &conf.MaxCryptoBalance},
		{"min_fiat_balance", c.MinFiatBalance, defaultMinFiatBalance, &conf.MinFiatBalance},
		{"min_crypto_balance", c.MinCryptoBalance, defaultMinCryptoBalance, &conf.MinCryptoBalance},
		{"base_fiat_amount", c.BaseFiatAmount, "0", &conf.BaseFiatAmount},
		{"base_crypto_amount", c.BaseCryptoAmount, "0", &conf.BaseCryptoAmount},
	}
	for _, d := range decimals {
		value := d.value
		if value == "" {
			value = d.def
		}
		parsed, err := decimal.NewFromString(value)
		if err != nil {
			return Config{}, fmt.Errorf("incorrect '%s' param (must be a decimal), error: %w", d.name, err)
		}
		if parsed.IsNegative() {
			return Config{}, fmt.Errorf("incorrect '%s' param, must not be negative: %s", d.name, value)
		}
		*d.dst = parsed
	}

	if conf.Interval < 0 {
		return Config{}, fmt.Errorf("incorrect 'interval' param, must not be negative: %s", conf.Interval)
	}
	if conf.AdaptiveSizing && (conf.BaseFiatAmount.IsZero() || conf.BaseCryptoAmount.IsZero()) {
		return Config{}, errors.New("adaptive sizing requires 'base_fiat_amount' and 'base_crypto_amount'")
	}

	return conf, nil
}

// loadEnvFile seeds missing environment variables from path; a missing file is not an error.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return errors.Wrapf(err, "failed to load env file %s", path)
	}
	return nil
}

func getPairFromString(pairStr string) (domain.Pair, error) {
	pairElements := strings.Split(pairStr, "_")
	if len(pairElements) != 2 || pairElements[0] == "" || pairElements[1] == "" {
		return domain.Pair{}, fmt.Errorf("invalid pair param")
	}
	return domain.Pair{From: pairElements[0], To: pairElements[1]}, nil
}
