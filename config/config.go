package config

import (
	"strings"

	"github.com/spf13/viper"

	"github.com/banyuechenjiang/cardsort/internal"
)

type Config struct {
	Logging struct {
		Level string
		File  string
	}
	Layout struct {
		ParamSetADir string `mapstructure:"param_set_a_dir"`
		ParamSetBDir string `mapstructure:"param_set_b_dir"`
	}
	Similarity struct {
		Threshold int
	}
	Performance struct {
		Workers int
	}
	Cache struct {
		// Path 为空时指纹缓存只存在于内存中
		Path string
	}
	Scanner struct {
		Extensions []string
	}
}

var cfg Config

// Load 依次从 $HOME/.cardsort、当前目录、/etc/cardsort 查找 config.yaml，
// 环境变量 CARDSORT_* 优先于配置文件
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath("$HOME/" + internal.ConfigDirName)
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/cardsort")

	v.SetEnvPrefix("CARDSORT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.file", "")
	v.SetDefault("layout.param_set_a_dir", internal.DefaultParamSetADir)
	v.SetDefault("layout.param_set_b_dir", internal.DefaultParamSetBDir)
	v.SetDefault("similarity.threshold", internal.DefaultSimilarityThreshold)
	v.SetDefault("performance.workers", internal.DefaultWorkers)
	v.SetDefault("cache.path", "")
	v.SetDefault("scanner.extensions", internal.DefaultExtensions)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var loaded Config
	if err := v.Unmarshal(&loaded); err != nil {
		return nil, err
	}
	cfg = loaded

	return &cfg, nil
}

func Get() *Config {
	return &cfg
}
