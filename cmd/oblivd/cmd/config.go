package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/spf13/viper"

	"github.com/oblivion-chain/oblivion/api"
	"github.com/oblivion-chain/oblivion/app"
	"github.com/oblivion-chain/oblivion/app/health"
	"github.com/oblivion-chain/oblivion/app/telemetry"
	"github.com/oblivion-chain/oblivion/indexer"
	"github.com/oblivion-chain/oblivion/keeperbot"
)

const (
	configDirName  = "config"
	configFileName = "config.toml"
	genesisName    = "genesis.json"
	provingKeyName = "proving_key.bin"
	verifyingKey   = "verifying_key.bin"
	keyringDirName = "keyring"

	envPrefix = "OBLIV"
)

// Content store backends.
const (
	ContentBackendMemory = "memory"
	ContentBackendDir    = "dir"
	ContentBackendIPFS   = "ipfs"
)

// MetricsConfig configures the standalone Prometheus listener.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// ContentConfig selects the content store used for job scripts, data and models.
type ContentConfig struct {
	Backend   string `mapstructure:"backend"`
	Dir       string `mapstructure:"dir"`
	IPFSURL   string `mapstructure:"ipfs_url"`
	IPFSToken string `mapstructure:"ipfs_token"`
}

// NodeConfig is the content of config.toml.
type NodeConfig struct {
	App       app.Config       `mapstructure:"app"`
	API       api.Config       `mapstructure:"api"`
	Telemetry telemetry.Config `mapstructure:"telemetry"`
	Indexer   indexer.Config   `mapstructure:"indexer"`
	Health    health.Config    `mapstructure:"health"`
	Metrics   MetricsConfig    `mapstructure:"metrics"`
	Content   ContentConfig    `mapstructure:"content"`
	KeeperBot keeperbot.Config `mapstructure:"keeper_bot"`
}

// DefaultNodeConfig returns the configuration written by `oblivd init`.
func DefaultNodeConfig() NodeConfig {
	appCfg := app.DefaultConfig()
	appCfg.DBBackend = "goleveldb"

	telemetryCfg := telemetry.DefaultConfig()
	telemetryCfg.ChainID = appCfg.ChainID

	return NodeConfig{
		App:       appCfg,
		API:       *api.DefaultConfig(),
		Telemetry: telemetryCfg,
		Indexer:   indexer.DefaultConfig(),
		Health:    health.DefaultConfig(),
		Metrics:   MetricsConfig{Enabled: true, Addr: "127.0.0.1:36660"},
		Content:   ContentConfig{Backend: ContentBackendDir, Dir: "content", IPFSURL: "http://127.0.0.1:5001"},
		KeeperBot: keeperbot.DefaultConfig(),
	}
}

// Validate checks the parts of the configuration that have no validator of their own.
func (c NodeConfig) Validate() error {
	if err := c.App.Validate(); err != nil {
		return fmt.Errorf("app: %w", err)
	}
	if err := c.Telemetry.Validate(); err != nil {
		return err
	}
	switch c.Content.Backend {
	case ContentBackendMemory, ContentBackendDir, ContentBackendIPFS:
	default:
		return fmt.Errorf("content: unknown backend %q", c.Content.Backend)
	}
	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		return errors.New("metrics: addr is required when enabled")
	}
	return nil
}

const configTemplate = `# Oblivion node configuration.
# Every key can be overridden with an OBLIV_<SECTION>_<KEY> environment variable.

[app]
chain_id = "{{ .App.ChainID }}"
# memdb or goleveldb
db_backend = "{{ .App.DBBackend }}"
# Relative paths are resolved against the node home.
data_dir = "{{ .App.DataDir }}"
invariant_check = {{ .App.InvariantCheck }}
faucet_enabled = {{ .App.FaucetEnabled }}
faucet_limit = {{ .App.FaucetLimit }}

[api]
host = "{{ .API.Host }}"
port = "{{ .API.Port }}"
# Signs faucet tokens. A random secret is generated at start when empty.
jwt_secret = "{{ .API.JWTSecret }}"
cors_origins = [{{ range $i, $o := .API.CORSOrigins }}{{ if $i }}, {{ end }}"{{ $o }}"{{ end }}]
rate_limit_rps = {{ .API.RateLimitRPS }}
read_timeout = "{{ .API.ReadTimeout }}"
write_timeout = "{{ .API.WriteTimeout }}"
shutdown_timeout = "{{ .API.ShutdownTimeout }}"
faucet_enabled = {{ .API.FaucetEnabled }}

[telemetry]
enabled = {{ .Telemetry.Enabled }}
otlp_endpoint = "{{ .Telemetry.OTLPEndpoint }}"
sample_rate = {{ .Telemetry.SampleRate }}
environment = "{{ .Telemetry.Environment }}"
chain_id = "{{ .Telemetry.ChainID }}"
prometheus_enabled = {{ .Telemetry.PrometheusEnabled }}

[indexer]
# Postgres URL. Indexing is disabled when empty.
url = "{{ .Indexer.URL }}"
max_connections = {{ .Indexer.MaxConnections }}
max_idle = {{ .Indexer.MaxIdle }}
conn_max_life = "{{ .Indexer.ConnMaxLife }}"
queue_size = {{ .Indexer.QueueSize }}

[health]
max_response_time = "{{ .Health.MaxResponseTime }}"
cache_duration = "{{ .Health.CacheDuration }}"

[metrics]
enabled = {{ .Metrics.Enabled }}
addr = "{{ .Metrics.Addr }}"

[content]
# memory, dir or ipfs
backend = "{{ .Content.Backend }}"
dir = "{{ .Content.Dir }}"
ipfs_url = "{{ .Content.IPFSURL }}"
ipfs_token = "{{ .Content.IPFSToken }}"

[keeper_bot]
interval = "{{ .KeeperBot.Interval }}"
max_per_scan = {{ .KeeperBot.MaxPerScan }}
`

var configTmpl = template.Must(template.New("config").Parse(configTemplate))

// RenderConfig renders cfg as TOML.
func RenderConfig(cfg NodeConfig) ([]byte, error) {
	var buf bytes.Buffer
	if err := configTmpl.Execute(&buf, cfg); err != nil {
		return nil, fmt.Errorf("failed to render config: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteConfig writes cfg to path, creating the parent directory.
func WriteConfig(path string, cfg NodeConfig) error {
	bz, err := RenderConfig(cfg)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, bz, 0o600)
}

// newViper returns a viper instance seeded with the default configuration so
// that environment overrides apply to every key, even when the file omits it.
func newViper() (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigType("toml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	defaults, err := RenderConfig(DefaultNodeConfig())
	if err != nil {
		return nil, err
	}
	if err := v.ReadConfig(bytes.NewReader(defaults)); err != nil {
		return nil, fmt.Errorf("failed to load default config: %w", err)
	}
	return v, nil
}

// LoadConfig merges home/config/config.toml, if present, into v and decodes
// the result.
func LoadConfig(v *viper.Viper, home string) (NodeConfig, error) {
	path := filepath.Join(home, configDirName, configFileName)
	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		if err := v.MergeInConfig(); err != nil {
			return NodeConfig{}, fmt.Errorf("failed to read %s: %w", path, err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return NodeConfig{}, err
	}

	var cfg NodeConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return NodeConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.App.DataDir = resolvePath(home, cfg.App.DataDir)
	cfg.Content.Dir = resolvePath(home, cfg.Content.Dir)
	return cfg, nil
}

func resolvePath(home, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(home, p)
}
