// Copyright (c) 2025 Stefano Scafiti
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

// Package config loads client defaults from an optional config file and
// AIRCARD_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds every tunable of the client.
type Config struct {
	BroadcastAddr string        `mapstructure:"broadcast_addr"`
	Username      string        `mapstructure:"username"`
	Password      string        `mapstructure:"password"`
	ReadTimeout   time.Duration `mapstructure:"read_timeout"`
	ProbeInterval time.Duration `mapstructure:"probe_interval"`
	WatchInterval time.Duration `mapstructure:"watch_interval"`
	LogLevel      string        `mapstructure:"log_level"`
}

// Load reads the configuration. path may be empty, in which case
// aircard.yaml is searched in the working directory and under
// ~/.config/aircard; a missing file leaves the defaults in place.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("broadcast_addr", "192.168.0.255")
	v.SetDefault("username", "admin")
	v.SetDefault("password", "admin")
	v.SetDefault("read_timeout", 5*time.Second)
	v.SetDefault("probe_interval", 10*time.Second)
	v.SetDefault("watch_interval", 5*time.Second)
	v.SetDefault("log_level", "INFO")

	v.SetEnvPrefix("aircard")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %q: %w", path, err)
		}
	} else {
		v.SetConfigName("aircard")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/aircard")

		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, err
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	return &cfg, nil
}
