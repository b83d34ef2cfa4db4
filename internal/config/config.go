/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package config

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// AppConfig is the user-editable configuration persisted to a YAML file in the user scope.
// Environment variables are treated as read-only overrides at runtime.
//
// config_version: bump when the structure changes in a backward-incompatible way.
// Unknown fields are ignored on unmarshal.

type GeneralConfig struct {
	TelemetryOptIn bool     `yaml:"telemetry_opt_in"`
	Character      string   `yaml:"character"`       // isaac | buddy | rocket
	TargetLanguage string   `yaml:"target_language"` // language of definitions and target sentences
	Levels         []string `yaml:"levels"`
}

type GenerationConfig struct {
	// Backend selects the Gemini transport: "vertex" uses Application Default Credentials,
	// "gemini" uses an API key from the OS keychain.
	Backend    string `yaml:"backend"`
	Project    string `yaml:"project"`
	Location   string `yaml:"location"`
	ImageModel string `yaml:"image_model"`
	TextModel  string `yaml:"text_model"`
	TimeoutMs  int    `yaml:"timeout_ms"`
	// API key is not stored on disk; it lives in the OS keychain.
}

type DividerConfig struct {
	Show      bool    `yaml:"show"`
	Color     string  `yaml:"color"`
	Style     string  `yaml:"style"` // solid | dashed | dotted
	Thickness float64 `yaml:"thickness"`
}

type RenderConfig struct {
	StitchSize int           `yaml:"stitch_size"`
	Divider    DividerConfig `yaml:"divider"`
	// FontFile is an optional TTF/OTF used for overlay text, e.g. a CJK font
	// for target-language sentences. Empty uses the built-in Go fonts.
	FontFile   string        `yaml:"font_file"`
}

type CacheConfig struct {
	MaxBytes     int64 `yaml:"max_bytes"`
	FlushDelayMs int   `yaml:"flush_delay_ms"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Source bool   `yaml:"source"`
	File   string `yaml:"file"`
}

type AppConfig struct {
	ConfigVersion int              `yaml:"config_version"`
	General       GeneralConfig    `yaml:"general"`
	Generation    GenerationConfig `yaml:"generation"`
	Render        RenderConfig     `yaml:"render"`
	Cache         CacheConfig      `yaml:"cache"`
	Logging       LoggingConfig    `yaml:"logging"`
}

// Defaults returns the application defaults.
func Defaults() AppConfig {
	return AppConfig{
		ConfigVersion: 1,
		General:       GeneralConfig{TelemetryOptIn: false, Character: "isaac", TargetLanguage: "Traditional Chinese"},
		Generation: GenerationConfig{
			Backend:    "gemini",
			Location:   "us-central1",
			ImageModel: "gemini-2.5-flash-image",
			TextModel:  "gemini-3-flash-preview",
			TimeoutMs:  90000,
		},
		Render: RenderConfig{
			StitchSize: 2048,
			Divider:    DividerConfig{Show: false, Color: "#ffffff", Style: "solid", Thickness: 20},
		},
		Cache:   CacheConfig{MaxBytes: 256 * 1024 * 1024, FlushDelayMs: 500},
		Logging: LoggingConfig{Level: "info", Format: "console", Source: false, File: ""},
	}
}

// Env var names used as overrides.
const (
	EnvTelemetryOptIn = "VGS_TELEMETRY_OPT_IN"
	EnvCharacter      = "VGS_CHARACTER"
	EnvTargetLanguage = "VGS_TARGET_LANGUAGE"
	EnvBackend        = "VGS_GENAI_BACKEND"
	EnvProject        = "VGS_GENAI_PROJECT"
	EnvLocation       = "VGS_GENAI_LOCATION"
	EnvImageModel     = "VGS_IMAGE_MODEL"
	EnvTextModel      = "VGS_TEXT_MODEL"
	EnvTimeoutMs      = "VGS_GENAI_TIMEOUT_MS"
	EnvAPIKey         = "VGS_API_KEY"
	EnvStitchSize     = "VGS_STITCH_SIZE"
	EnvFontFile       = "VGS_FONT_FILE"
	EnvCacheMaxBytes  = "VGS_CACHE_MAX_BYTES"
	EnvFlushDelayMs   = "VGS_CACHE_FLUSH_MS"
	// EnvLogLevel Logging envs
	EnvLogLevel  = "VGS_LOG_LEVEL"
	EnvLogFormat = "VGS_LOG_FORMAT"
	EnvLogSource = "VGS_LOG_SOURCE"
	EnvLogFile   = "VGS_LOG_FILE"
)

// Service/keys for OS keyring.
const (
	keyringService = "VocabGridStudio"
	keyringAPIKey  = "gemini_api_key"
)

// tokenStore abstracts keyring, so we can stub in tests.
var tokenStore TokenStore = &osKeyring{}

type TokenStore interface {
	Get(service, key string) (string, error)
	Set(service, key, value string) error
	Delete(service, key string) error
}

// ConfigPath returns the per-user config file path.
func ConfigPath() (string, error) {
	var base string
	switch runtime.GOOS {
	case "windows":
		base = os.Getenv("AppData")
		if base == "" { // fallback
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		base = filepath.Join(base, "VocabGridStudio")
	case "darwin":
		base = filepath.Join(os.Getenv("HOME"), "Library", "Application Support", "VocabGridStudio")
	default: // linux and others
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			base = filepath.Join(xdg, "vocabgrid")
		} else {
			base = filepath.Join(os.Getenv("HOME"), ".config", "vocabgrid")
		}
	}
	if base == "" {
		return "", errors.New("cannot resolve config directory")
	}
	return filepath.Join(base, "config.yaml"), nil
}

// Load reads user config file (if present), applies defaults, and merges environment overrides.
// It also loads the Gemini API key from the keyring (not kept inside the struct; returned separately).
// VGS_API_KEY wins over the keyring.
func Load() (AppConfig, string, error) {
	cfg := Defaults()
	path, err := ConfigPath()
	if err != nil {
		return cfg, "", err
	}
	if data, err := os.ReadFile(path); err == nil {
		var fileCfg AppConfig
		if err := yaml.Unmarshal(data, &fileCfg); err == nil {
			mergeInto(&cfg, &fileCfg)
		}
	}
	applyEnvOverrides(&cfg)
	if v := strings.TrimSpace(os.Getenv(EnvAPIKey)); v != "" {
		return cfg, v, nil
	}
	key, _ := tokenStore.Get(keyringService, keyringAPIKey)
	return cfg, key, nil
}

// Save writes the user config YAML and persists the API key into the OS keyring (if non-empty).
func Save(cfg AppConfig, apiKey string) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return err
	}
	if apiKey != "" {
		if err := tokenStore.Set(keyringService, keyringAPIKey, apiKey); err != nil {
			return err
		}
	}
	return nil
}

// ForgetAPIKey removes the stored API key from the keyring.
func ForgetAPIKey() error {
	return tokenStore.Delete(keyringService, keyringAPIKey)
}

func mergeInto(dst *AppConfig, src *AppConfig) {
	if src.ConfigVersion != 0 {
		dst.ConfigVersion = src.ConfigVersion
	}
	// booleans: copy directly from src (file) so user preferences persist
	dst.General.TelemetryOptIn = src.General.TelemetryOptIn
	if s := strings.TrimSpace(src.General.Character); s != "" {
		dst.General.Character = strings.ToLower(s)
	}
	if s := strings.TrimSpace(src.General.TargetLanguage); s != "" {
		dst.General.TargetLanguage = s
	}
	if len(src.General.Levels) > 0 {
		dst.General.Levels = append([]string(nil), src.General.Levels...)
	}
	// generation
	if s := strings.TrimSpace(src.Generation.Backend); s != "" {
		dst.Generation.Backend = strings.ToLower(s)
	}
	if s := strings.TrimSpace(src.Generation.Project); s != "" {
		dst.Generation.Project = s
	}
	if s := strings.TrimSpace(src.Generation.Location); s != "" {
		dst.Generation.Location = s
	}
	if s := strings.TrimSpace(src.Generation.ImageModel); s != "" {
		dst.Generation.ImageModel = s
	}
	if s := strings.TrimSpace(src.Generation.TextModel); s != "" {
		dst.Generation.TextModel = s
	}
	if src.Generation.TimeoutMs != 0 {
		dst.Generation.TimeoutMs = src.Generation.TimeoutMs
	}
	// render
	if src.Render.StitchSize > 0 {
		dst.Render.StitchSize = src.Render.StitchSize
	}
	dst.Render.Divider.Show = src.Render.Divider.Show
	if s := strings.TrimSpace(src.Render.Divider.Color); s != "" {
		dst.Render.Divider.Color = s
	}
	if s := strings.TrimSpace(src.Render.Divider.Style); s != "" {
		dst.Render.Divider.Style = strings.ToLower(s)
	}
	if src.Render.Divider.Thickness > 0 {
		dst.Render.Divider.Thickness = src.Render.Divider.Thickness
	}
	if s := strings.TrimSpace(src.Render.FontFile); s != "" {
		dst.Render.FontFile = s
	}
	// cache
	if src.Cache.MaxBytes > 0 {
		dst.Cache.MaxBytes = src.Cache.MaxBytes
	}
	if src.Cache.FlushDelayMs > 0 {
		dst.Cache.FlushDelayMs = src.Cache.FlushDelayMs
	}
	// logging
	if strings.TrimSpace(src.Logging.Level) != "" {
		dst.Logging.Level = strings.ToLower(strings.TrimSpace(src.Logging.Level))
	}
	if strings.TrimSpace(src.Logging.Format) != "" {
		dst.Logging.Format = strings.ToLower(strings.TrimSpace(src.Logging.Format))
	}
	dst.Logging.Source = src.Logging.Source
	if strings.TrimSpace(src.Logging.File) != "" {
		dst.Logging.File = strings.TrimSpace(src.Logging.File)
	}
}

func parseBool(v string) bool {
	lv := strings.ToLower(strings.TrimSpace(v))
	return lv == "1" || lv == "true" || lv == "on" || lv == "yes"
}

func applyEnvOverrides(cfg *AppConfig) {
	if v := strings.TrimSpace(os.Getenv(EnvTelemetryOptIn)); v != "" {
		cfg.General.TelemetryOptIn = parseBool(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvCharacter)); v != "" {
		cfg.General.Character = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvTargetLanguage)); v != "" {
		cfg.General.TargetLanguage = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvBackend)); v != "" {
		cfg.Generation.Backend = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvProject)); v != "" {
		cfg.Generation.Project = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvLocation)); v != "" {
		cfg.Generation.Location = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvImageModel)); v != "" {
		cfg.Generation.ImageModel = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvTextModel)); v != "" {
		cfg.Generation.TextModel = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvTimeoutMs)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Generation.TimeoutMs = n
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvStitchSize)); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Render.StitchSize = n
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvFontFile)); v != "" {
		cfg.Render.FontFile = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvCacheMaxBytes)); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			cfg.Cache.MaxBytes = n
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvFlushDelayMs)); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.Cache.FlushDelayMs = n
		}
	}
	// logging overrides
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFormat)); v != "" {
		cfg.Logging.Format = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogSource)); v != "" {
		cfg.Logging.Source = parseBool(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFile)); v != "" {
		cfg.Logging.File = v
	}
}

var overrideEnv = map[string]string{
	"general.telemetry_opt_in": EnvTelemetryOptIn,
	"general.character":        EnvCharacter,
	"general.target_language":  EnvTargetLanguage,
	"generation.backend":       EnvBackend,
	"generation.project":       EnvProject,
	"generation.location":      EnvLocation,
	"generation.image_model":   EnvImageModel,
	"generation.text_model":    EnvTextModel,
	"generation.timeout_ms":    EnvTimeoutMs,
	"render.stitch_size":       EnvStitchSize,
	"render.font_file":         EnvFontFile,
	"cache.max_bytes":          EnvCacheMaxBytes,
	"cache.flush_delay_ms":     EnvFlushDelayMs,
	"logging.level":            EnvLogLevel,
	"logging.format":           EnvLogFormat,
	"logging.source":           EnvLogSource,
	"logging.file":             EnvLogFile,
}

// EnvOverrideFor returns the env var name if the field is overridden by environment variables.
func EnvOverrideFor(key string) (string, bool) {
	env, ok := overrideEnv[key]
	if !ok {
		return "", false
	}
	if os.Getenv(env) != "" {
		return env, true
	}
	return "", false
}

// Timeout returns the generation request timeout, falling back to the default.
func (g GenerationConfig) Timeout() time.Duration {
	if g.TimeoutMs <= 0 {
		return time.Duration(Defaults().Generation.TimeoutMs) * time.Millisecond
	}
	return time.Duration(g.TimeoutMs) * time.Millisecond
}

// FlushDelay returns the debounce window for image cache persistence.
// Zero milliseconds persists on every write and maps to a negative window.
func (c CacheConfig) FlushDelay() time.Duration {
	if c.FlushDelayMs <= 0 {
		return -1
	}
	return time.Duration(c.FlushDelayMs) * time.Millisecond
}
