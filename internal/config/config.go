package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Pool     PoolConfig     `yaml:"pool"`
	Nailgun  NailgunConfig  `yaml:"nailgun"`
	Executor ExecutorConfig `yaml:"executor"`
	API      APIConfig      `yaml:"api"`
}

type PoolConfig struct {
	// StartupTimeoutSecs bounds how long a spawned server may take to
	// announce its port.
	StartupTimeoutSecs int `yaml:"startupTimeoutSecs"`
	// MonitorIntervalSecs is how often dead servers are pruned.
	MonitorIntervalSecs int `yaml:"monitorIntervalSecs"`
}

func (p PoolConfig) StartupTimeout() time.Duration {
	return time.Duration(p.StartupTimeoutSecs) * time.Second
}

func (p PoolConfig) MonitorInterval() time.Duration {
	return time.Duration(p.MonitorIntervalSecs) * time.Second
}

type NailgunConfig struct {
	// Distribution is the absolute path the client binary path is
	// resolved against.
	Distribution string `yaml:"distribution"`
	// WorkdirBase holds one working directory per logical server name.
	WorkdirBase string `yaml:"workdirBase"`
}

type ExecutorConfig struct {
	// StoreDir is where the local content store keeps blobs and trees.
	StoreDir string `yaml:"storeDir"`
	// ScratchDir is where run-to-completion processes execute.
	ScratchDir string `yaml:"scratchDir"`
}

type APIConfig struct {
	Port int `yaml:"port"`
}

func Default() Config {
	return Config{
		Pool: PoolConfig{
			StartupTimeoutSecs:  30,
			MonitorIntervalSecs: 15,
		},
		Nailgun: NailgunConfig{
			Distribution: "/usr/bin/python3",
			WorkdirBase:  filepath.Join(BaseDir(), "workdirs"),
		},
		Executor: ExecutorConfig{
			StoreDir:   filepath.Join(BaseDir(), "store"),
			ScratchDir: filepath.Join(BaseDir(), "scratch"),
		},
		API: APIConfig{
			Port: 8921,
		},
	}
}

func BaseDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".ngexec")
}

func ConfigPath() string {
	return filepath.Join(BaseDir(), "config.yaml")
}

func Load() (Config, error) {
	return LoadFrom(ConfigPath())
}

func LoadFrom(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

func Save(cfg Config) error {
	if err := os.MkdirAll(BaseDir(), 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(ConfigPath(), data, 0644)
}

func EnsureDirs(cfg Config) error {
	dirs := []string{
		BaseDir(),
		cfg.Nailgun.WorkdirBase,
		cfg.Executor.StoreDir,
		cfg.Executor.ScratchDir,
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0755); err != nil {
			return fmt.Errorf("creating %s: %w", d, err)
		}
	}
	return nil
}
