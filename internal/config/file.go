package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// fileConfig is the YAML config file schema. Every field is optional; zero
// values leave the corresponding default untouched.
type fileConfig struct {
	Port     int    `yaml:"port"`
	LogLevel string `yaml:"log_level"`
	DataDir  string `yaml:"data_dir"`
	Headless bool   `yaml:"headless"`

	Engine struct {
		Binary          string `yaml:"binary"`
		CommandTimeoutS int    `yaml:"command_timeout_s"`
		LoadRetries     *int   `yaml:"load_retries"`
	} `yaml:"engine"`

	Export struct {
		Container  string `yaml:"container"`
		VideoCodec string `yaml:"video_codec"`
		AudioCodec string `yaml:"audio_codec"`
		CRF        int    `yaml:"crf"`
		Preset     string `yaml:"preset"`
	} `yaml:"export"`
}

// applyFile overlays settings from a YAML file onto the config. A missing
// file is not an error.
func (c *EnvConfig) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("cannot read config file %s: %w", path, err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("cannot parse config file %s: %w", path, err)
	}

	if fc.Port != 0 {
		if fc.Port < 1 || fc.Port > 65535 {
			return fmt.Errorf("config file %s: port must be between 1 and 65535", path)
		}
		c.port = fc.Port
	}
	if fc.LogLevel != "" {
		c.logLevel = fc.LogLevel
	}
	if fc.DataDir != "" {
		c.dataDir = fc.DataDir
	}
	if fc.Headless {
		c.headless = true
	}

	if fc.Engine.Binary != "" {
		c.engineBin = fc.Engine.Binary
	}
	if fc.Engine.CommandTimeoutS > 0 {
		c.engineCommandTimeout = time.Duration(fc.Engine.CommandTimeoutS) * time.Second
	}
	if fc.Engine.LoadRetries != nil && *fc.Engine.LoadRetries >= 0 {
		c.engineLoadRetries = *fc.Engine.LoadRetries
	}

	if fc.Export.Container != "" {
		c.exportContainer = fc.Export.Container
	}
	if fc.Export.VideoCodec != "" {
		c.exportVideoCodec = fc.Export.VideoCodec
	}
	if fc.Export.AudioCodec != "" {
		c.exportAudioCodec = fc.Export.AudioCodec
	}
	if fc.Export.CRF > 0 {
		c.exportCRF = fc.Export.CRF
	}
	if fc.Export.Preset != "" {
		c.exportPreset = fc.Export.Preset
	}

	return nil
}
