package configure

import (
	"bytes"
	"encoding/json"
	"reflect"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func checkErr(err error) {
	if err != nil {
		zap.S().Fatalw("config",
			"error", err,
		)
	}
}

func New() *Config {
	initLogging("info")

	config := viper.New()

	// Default config
	b, _ := json.Marshal(Default())
	tmp := viper.New()
	defaultConfig := bytes.NewReader(b)

	tmp.SetConfigType("json")
	checkErr(tmp.ReadConfig(defaultConfig))
	checkErr(config.MergeConfigMap(tmp.AllSettings()))

	pflag.String("config", "config.yaml", "Config file location")
	pflag.Bool("noheader", false, "Disable the startup header")
	pflag.String("store.mode", string(StoreModeMemory), "Remote store backend (memory, redis, nats)")

	pflag.Parse()
	checkErr(config.BindPFlags(pflag.CommandLine))

	// File
	config.SetConfigFile(config.GetString("config"))
	config.AddConfigPath(".")

	if err := config.ReadInConfig(); err == nil {
		checkErr(config.MergeInConfig())
	}

	bindEnvs(config, Config{})

	// Environment
	config.AutomaticEnv()
	config.SetEnvPrefix("CHATSYNC")
	config.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	config.AllowEmptyEnv(true)

	c := &Config{}
	checkErr(config.Unmarshal(&c))

	initLogging(c.Level)

	return c
}

// Default returns the configuration used before any file, flag or environment
// variable is applied.
func Default() Config {
	c := Config{
		Level:      "info",
		ConfigFile: "config.yaml",
	}

	c.Store.Mode = StoreModeMemory
	c.Identity.Mode = IdentityModeMemory

	c.Redis.Addresses = []string{"127.0.0.1:6379"}
	c.Redis.Prefix = "chatsync:"

	c.Nats.URL = "nats://127.0.0.1:4222"
	c.Nats.Bucket = "chatsync"

	c.Mongo.URI = "mongodb://127.0.0.1:27017"
	c.Mongo.DB = "chatsync"

	c.Health.Bind = "0.0.0.0:9200"
	c.Monitoring.Bind = "0.0.0.0:9100"

	c.Http.Addr = "0.0.0.0"
	c.Http.Port = 3000

	c.Gateway.HeartbeatInterval = 30 * time.Second
	c.Gateway.PingInterval = 15 * time.Second

	c.Credentials.SessionTTL = 7 * 24 * time.Hour

	c.Limits.Messages.Count = 30
	c.Limits.Messages.Window = 10 * time.Second
	c.Limits.Auth.Count = 10
	c.Limits.Auth.Window = time.Minute

	c.PProf.Bind = "127.0.0.1:9300"

	return c
}

func bindEnvs(config *viper.Viper, iface interface{}, parts ...string) {
	ifv := reflect.ValueOf(iface)
	ift := reflect.TypeOf(iface)

	for i := 0; i < ift.NumField(); i++ {
		v := ifv.Field(i)
		t := ift.Field(i)

		tv, ok := t.Tag.Lookup("mapstructure")
		if !ok {
			continue
		}

		switch v.Kind() {
		case reflect.Struct:
			bindEnvs(config, v.Interface(), append(parts, tv)...)
		default:
			_ = config.BindEnv(strings.Join(append(parts, tv), "."))
		}
	}
}

type StoreMode string

const (
	StoreModeMemory StoreMode = "memory"
	StoreModeRedis  StoreMode = "redis"
	StoreModeNats   StoreMode = "nats"
)

type IdentityMode string

const (
	IdentityModeMemory IdentityMode = "memory"
	IdentityModeMongo  IdentityMode = "mongo"
)

type Config struct {
	Level      string `mapstructure:"level" json:"level"`
	ConfigFile string `mapstructure:"config" json:"config"`
	NoHeader   bool   `mapstructure:"noheader" json:"noheader"`

	K8S struct {
		NodeName string `mapstructure:"node_name" json:"node_name"`
		PodName  string `mapstructure:"pod_name" json:"pod_name"`
	} `mapstructure:"k8s" json:"k8s"`

	Store struct {
		Mode StoreMode `mapstructure:"mode" json:"mode"`
	} `mapstructure:"store" json:"store"`

	Redis struct {
		Username   string   `mapstructure:"username" json:"username"`
		Password   string   `mapstructure:"password" json:"password"`
		Database   int      `mapstructure:"db" json:"db"`
		Sentinel   bool     `mapstructure:"sentinel" json:"sentinel"`
		Addresses  []string `mapstructure:"addresses" json:"addresses"`
		MasterName string   `mapstructure:"master_name" json:"master_name"`
		Prefix     string   `mapstructure:"prefix" json:"prefix"`
	} `mapstructure:"redis" json:"redis"`

	Nats struct {
		URL    string `mapstructure:"url" json:"url"`
		Bucket string `mapstructure:"bucket" json:"bucket"`
	} `mapstructure:"nats" json:"nats"`

	Identity struct {
		Mode IdentityMode `mapstructure:"mode" json:"mode"`
	} `mapstructure:"identity" json:"identity"`

	Mongo struct {
		URI      string `mapstructure:"uri" json:"uri"`
		Username string `mapstructure:"username" json:"username"`
		Password string `mapstructure:"password" json:"password"`
		DB       string `mapstructure:"db" json:"db"`
		Direct   bool   `mapstructure:"direct" json:"direct"`
	} `mapstructure:"mongo" json:"mongo"`

	Health struct {
		Enabled bool   `mapstructure:"enabled" json:"enabled"`
		Bind    string `mapstructure:"bind" json:"bind"`
	} `mapstructure:"health" json:"health"`

	Monitoring struct {
		Enabled bool   `mapstructure:"enabled" json:"enabled"`
		Bind    string `mapstructure:"bind" json:"bind"`
		Labels  Labels `mapstructure:"labels" json:"labels"`
	} `mapstructure:"monitoring" json:"monitoring"`

	Http struct {
		Addr string `mapstructure:"addr" json:"addr"`
		Port int    `mapstructure:"port" json:"port"`
	} `mapstructure:"http" json:"http"`

	Gateway struct {
		HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval" json:"heartbeat_interval"`
		PingInterval      time.Duration `mapstructure:"ping_interval" json:"ping_interval"`
	} `mapstructure:"gateway" json:"gateway"`

	Credentials struct {
		JWTSecret    string        `mapstructure:"jwt_secret" json:"jwt_secret"`
		SessionTTL   time.Duration `mapstructure:"session_ttl" json:"session_ttl"`
		CookieDomain string        `mapstructure:"cookie_domain" json:"cookie_domain"`
		CookieSecure bool          `mapstructure:"cookie_secure" json:"cookie_secure"`
	} `mapstructure:"credentials" json:"credentials"`

	Limits struct {
		Messages Limit `mapstructure:"messages" json:"messages"`
		Auth     Limit `mapstructure:"auth" json:"auth"`
	} `mapstructure:"limits" json:"limits"`

	PProf struct {
		Enabled bool   `mapstructure:"enabled" json:"enabled"`
		Bind    string `mapstructure:"bind" json:"bind"`
	} `mapstructure:"pprof" json:"pprof"`
}

// Limit allows Count requests per Window. A zero Count disables the limit.
type Limit struct {
	Count  int64         `mapstructure:"count" json:"count"`
	Window time.Duration `mapstructure:"window" json:"window"`
}

type Labels []struct {
	Key   string `mapstructure:"key" json:"key"`
	Value string `mapstructure:"value" json:"value"`
}

func (l Labels) ToPrometheus() prometheus.Labels {
	mp := prometheus.Labels{}

	for _, v := range l {
		mp[v.Key] = v.Value
	}

	return mp
}
