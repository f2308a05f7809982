package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/alejandrodnm/energymatch/internal/domain"
)

// Canales del protocolo original de la exchange.
const (
	DefaultRequestChannel         = "external-myco//offers-bids/"
	DefaultResponseChannel        = "external-myco//offers-bids/response/"
	DefaultEventsChannel          = "external-myco//events/"
	DefaultRecommendationsChannel = "external-myco//recommendations/"
)

// Config es la configuración completa del matcher.
type Config struct {
	Matcher    MatcherConfig    `yaml:"matcher"`
	Trigger    TriggerConfig    `yaml:"trigger"`
	Source     SourceConfig     `yaml:"source"`
	Redis      RedisConfig      `yaml:"redis"`
	Settlement SettlementConfig `yaml:"settlement"`
	Storage    StorageConfig    `yaml:"storage"`
	Admin      AdminConfig      `yaml:"admin"`
	Log        LogConfig        `yaml:"log"`
}

// MatcherConfig controla el presupuesto de cada ciclo.
type MatcherConfig struct {
	MaxFetchAttempts int      `yaml:"max_fetch_attempts"`
	RetryDelayMS     int      `yaml:"retry_delay_ms"`
	FetchTimeoutMS   int      `yaml:"fetch_timeout_ms"`
	SubmitTimeoutMS  int      `yaml:"submit_timeout_ms"`
	FloatTolerance   float64  `yaml:"float_tolerance"`
	Markets          []string `yaml:"markets"` // mercados para triggers sin market id
	Workers          int      `yaml:"workers"` // paralelismo de -once; 0 = NumCPU
}

// TriggerConfig elige el modelo de disparo. "ticker" es un contador interno.
type TriggerConfig struct {
	Mode                           string  `yaml:"mode"` // counter | slot_completion | ticker
	Modulus                        uint64  `yaml:"trigger_modulus"`
	SlotCompletionThresholdPercent float64 `yaml:"slot_completion_threshold_percent"`
	TickIntervalMS                 int     `yaml:"tick_interval_ms"`
}

// SourceConfig elige de dónde salen las órdenes.
type SourceConfig struct {
	Kind        string `yaml:"kind"` // redis | fixture
	FixturePath string `yaml:"fixture_path"`
}

// RedisConfig contiene la conexión y los canales pub/sub.
type RedisConfig struct {
	URL                    string  `yaml:"url"`
	RequestChannel         string  `yaml:"request_channel"`
	ResponseChannel        string  `yaml:"response_channel"`
	EventsChannel          string  `yaml:"events_channel"`
	RecommendationsChannel string  `yaml:"recommendations_channel"`
	RequestsPerSecond      float64 `yaml:"requests_per_second"`
}

// SettlementConfig elige a dónde van los matches.
type SettlementConfig struct {
	Transport    string   `yaml:"transport"` // redis | nats | kafka | console
	NATSURL      string   `yaml:"nats_url"`
	NATSSubject  string   `yaml:"nats_subject"`
	KafkaBrokers []string `yaml:"kafka_brokers"`
	KafkaTopic   string   `yaml:"kafka_topic"`
}

// StorageConfig controla dónde se guarda el journal de ciclos.
type StorageConfig struct {
	DSN string `yaml:"dsn"` // ruta al archivo SQLite, o ":memory:"
}

// AdminConfig controla el servidor HTTP de administración.
type AdminConfig struct {
	Addr string `yaml:"addr"` // vacío desactiva el servidor
}

// LogConfig controla el formato y nivel de logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Load carga la configuración desde el archivo YAML y el archivo .env si existe.
// Las variables de entorno sobreescriben el YAML; después se aplican defaults y
// se valida.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	return cfg, nil
}

// Parse interpreta un documento YAML ya leído.
func Parse(data []byte) (*Config, error) {
	// Los numéricos arrancan en su default antes de leer el YAML, así un 0
	// explícito no se confunde con "no configurado".
	cfg := numericDefaults()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse YAML: %w: %v", domain.ErrConfiguration, err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate revisa los enums, los rangos del presupuesto de ciclo y los campos
// requeridos por cada transporte.
func (c *Config) Validate() error {
	m := c.Matcher
	switch {
	case m.MaxFetchAttempts < 1:
		return fmt.Errorf("%w: matcher.max_fetch_attempts must be >= 1", domain.ErrConfiguration)
	case m.RetryDelayMS < 0:
		return fmt.Errorf("%w: matcher.retry_delay_ms must be >= 0", domain.ErrConfiguration)
	case m.FetchTimeoutMS <= 0 || m.SubmitTimeoutMS <= 0:
		return fmt.Errorf("%w: matcher fetch and submit timeouts must be > 0", domain.ErrConfiguration)
	case m.FloatTolerance < 0:
		return fmt.Errorf("%w: matcher.float_tolerance must be >= 0", domain.ErrConfiguration)
	}

	switch c.Trigger.Mode {
	case "counter", "slot_completion":
	case "ticker":
		if c.Trigger.TickIntervalMS <= 0 {
			return fmt.Errorf("%w: trigger.tick_interval_ms must be > 0", domain.ErrConfiguration)
		}
		if len(c.Matcher.Markets) == 0 {
			return fmt.Errorf("%w: ticker mode needs matcher.markets", domain.ErrConfiguration)
		}
	default:
		return fmt.Errorf("%w: unknown trigger.mode %q", domain.ErrConfiguration, c.Trigger.Mode)
	}

	switch c.Source.Kind {
	case "redis":
	case "fixture":
		if c.Source.FixturePath == "" {
			return fmt.Errorf("%w: source.fixture_path is required", domain.ErrConfiguration)
		}
	default:
		return fmt.Errorf("%w: unknown source.kind %q", domain.ErrConfiguration, c.Source.Kind)
	}

	switch c.Settlement.Transport {
	case "redis", "console":
	case "nats":
		if c.Settlement.NATSURL == "" || c.Settlement.NATSSubject == "" {
			return fmt.Errorf("%w: settlement.nats_url and nats_subject are required", domain.ErrConfiguration)
		}
	case "kafka":
		if len(c.Settlement.KafkaBrokers) == 0 || c.Settlement.KafkaTopic == "" {
			return fmt.Errorf("%w: settlement.kafka_brokers and kafka_topic are required", domain.ErrConfiguration)
		}
	default:
		return fmt.Errorf("%w: unknown settlement.transport %q", domain.ErrConfiguration, c.Settlement.Transport)
	}

	if c.UsesRedis() && c.Redis.URL == "" {
		return fmt.Errorf("%w: redis.url is required", domain.ErrConfiguration)
	}
	if c.Matcher.Workers < 0 {
		return fmt.Errorf("%w: matcher.workers must be >= 0", domain.ErrConfiguration)
	}
	if c.Redis.RequestsPerSecond < 0 {
		return fmt.Errorf("%w: redis.requests_per_second must be >= 0", domain.ErrConfiguration)
	}

	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("%w: unknown log.format %q", domain.ErrConfiguration, c.Log.Format)
	}
	return nil
}

// UsesRedis indica si algún componente necesita la conexión a Redis.
func (c *Config) UsesRedis() bool {
	return c.Source.Kind == "redis" ||
		c.Settlement.Transport == "redis" ||
		c.Trigger.Mode == "counter" || c.Trigger.Mode == "slot_completion"
}

// PolicyMode devuelve el modo de la política de disparo. El ticker produce
// eventos de contador.
func (c *Config) PolicyMode() string {
	if c.Trigger.Mode == "ticker" {
		return "counter"
	}
	return c.Trigger.Mode
}

func (c *Config) RetryDelay() time.Duration {
	return time.Duration(c.Matcher.RetryDelayMS) * time.Millisecond
}

func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.Matcher.FetchTimeoutMS) * time.Millisecond
}

func (c *Config) SubmitTimeout() time.Duration {
	return time.Duration(c.Matcher.SubmitTimeoutMS) * time.Millisecond
}

func (c *Config) TickInterval() time.Duration {
	return time.Duration(c.Trigger.TickIntervalMS) * time.Millisecond
}

// applyEnvOverrides sobreescribe valores con variables de entorno si están presentes.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Redis.URL = v
	}
	if v := os.Getenv("NATS_URL"); v != "" {
		cfg.Settlement.NATSURL = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		cfg.Settlement.KafkaBrokers = strings.Split(v, ",")
	}
}

// numericDefaults devuelve los valores numéricos por defecto. Un 0 puede ser
// válido (retry_delay_ms, slot_completion_threshold_percent,
// requests_per_second) o un error (max_fetch_attempts), nunca un hueco.
func numericDefaults() Config {
	return Config{
		Matcher: MatcherConfig{
			MaxFetchAttempts: 3,
			RetryDelayMS:     2000,
			FetchTimeoutMS:   10_000,
			SubmitTimeoutMS:  10_000,
			FloatTolerance:   domain.DefaultTolerance,
		},
		Trigger: TriggerConfig{
			Modulus:                        4,
			SlotCompletionThresholdPercent: 33,
			TickIntervalMS:                 15_000,
		},
		Redis: RedisConfig{RequestsPerSecond: 20},
	}
}

// setDefaults completa los strings vacíos con valores sensatos.
func setDefaults(cfg *Config) {
	t := &cfg.Trigger
	if t.Mode == "" {
		t.Mode = "counter"
	}

	if cfg.Source.Kind == "" {
		cfg.Source.Kind = "redis"
	}

	r := &cfg.Redis
	if r.URL == "" {
		r.URL = "redis://127.0.0.1:6379"
	}
	if r.RequestChannel == "" {
		r.RequestChannel = DefaultRequestChannel
	}
	if r.ResponseChannel == "" {
		r.ResponseChannel = DefaultResponseChannel
	}
	if r.EventsChannel == "" {
		r.EventsChannel = DefaultEventsChannel
	}
	if r.RecommendationsChannel == "" {
		r.RecommendationsChannel = DefaultRecommendationsChannel
	}

	s := &cfg.Settlement
	if s.Transport == "" {
		s.Transport = "redis"
	}
	if s.NATSSubject == "" {
		s.NATSSubject = "energymatch.recommendations"
	}
	if s.KafkaTopic == "" {
		s.KafkaTopic = "energymatch.recommendations"
	}

	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "energymatch.db"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}
