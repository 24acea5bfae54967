package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// DefaultLabs is used when neither labs.yml nor LABINVENTORY_LABS_CODES is present.
var DefaultLabs = []string{"MCA", "BCA", "UIT", "PIT", "UCS", "PCS", "PDS"}

var labCodePattern = regexp.MustCompile(`^[A-Z0-9]{2,10}$`)

type LabsConfig struct {
	Codes []string `mapstructure:"codes"`
}

// Contains reports whether code is part of the configured set. Matching is exact.
func (c LabsConfig) Contains(code string) bool {
	for _, lab := range c.Codes {
		if lab == code {
			return true
		}
	}
	return false
}

type LabsHolder struct {
	current atomic.Value // holds LabsConfig
}

// NewStaticLabsHolder builds a holder that never reloads. Used by tests and tooling.
func NewStaticLabsHolder(codes ...string) *LabsHolder {
	holder := &LabsHolder{}
	holder.current.Store(LabsConfig{Codes: normalizeCodes(codes)})
	return holder
}

func NewLabsHolder(log *zap.Logger) (*LabsHolder, error) {
	return newLabsHolder(viper.New(), log)
}

func newLabsHolder(v *viper.Viper, log *zap.Logger) (*LabsHolder, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("config.labs")

	v.SetConfigName("labs")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/labinventory")
	v.AddConfigPath("./config")
	v.AddConfigPath(".")

	v.SetEnvPrefix("LABINVENTORY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.SetDefault("labs.codes", DefaultLabs)

	fileLoaded := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		fileLoaded = false
	}

	cfg, err := readLabs(v)
	if err != nil {
		return nil, err
	}

	holder := &LabsHolder{}
	holder.current.Store(cfg)

	if fileLoaded {
		v.WatchConfig()
		v.OnConfigChange(func(e fsnotify.Event) {
			updated, err := readLabs(v)
			if err != nil {
				log.Warn("invalid lab config ignored", zap.String("file", e.Name), zap.Error(err))
				return
			}
			holder.current.Store(updated)
			log.Info("lab config reloaded", zap.String("file", e.Name), zap.Strings("labs", updated.Codes))
		})
	}

	return holder, nil
}

func (h *LabsHolder) Get() LabsConfig {
	return h.current.Load().(LabsConfig)
}

func (h *LabsHolder) Set(cfg LabsConfig) error {
	cfg.Codes = normalizeCodes(cfg.Codes)
	if err := ValidateLabs(cfg); err != nil {
		return err
	}
	h.current.Store(cfg)
	return nil
}

func readLabs(v *viper.Viper) (LabsConfig, error) {
	var cfg LabsConfig
	switch raw := v.Get("labs.codes").(type) {
	case string:
		// LABINVENTORY_LABS_CODES arrives as a comma separated string.
		cfg.Codes = parseList(raw)
	case []string:
		cfg.Codes = raw
	case []any:
		for _, item := range raw {
			cfg.Codes = append(cfg.Codes, fmt.Sprint(item))
		}
	case nil:
	default:
		return LabsConfig{}, fmt.Errorf("labs.codes: unsupported value %T", raw)
	}
	cfg.Codes = normalizeCodes(cfg.Codes)
	if err := ValidateLabs(cfg); err != nil {
		return LabsConfig{}, err
	}
	return cfg, nil
}

func ValidateLabs(cfg LabsConfig) error {
	if len(cfg.Codes) == 0 {
		return errors.New("labs.codes cannot be empty")
	}
	seen := make(map[string]struct{}, len(cfg.Codes))
	for _, code := range cfg.Codes {
		if !labCodePattern.MatchString(code) {
			return fmt.Errorf("labs.codes: malformed lab code %q", code)
		}
		if _, ok := seen[code]; ok {
			return fmt.Errorf("labs.codes: duplicate lab code %q", code)
		}
		seen[code] = struct{}{}
	}
	return nil
}

func normalizeCodes(codes []string) []string {
	out := make([]string, 0, len(codes))
	for _, code := range codes {
		code = strings.ToUpper(strings.TrimSpace(code))
		if code == "" {
			continue
		}
		out = append(out, code)
	}
	return out
}
