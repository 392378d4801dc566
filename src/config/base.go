package config

import (
	"strconv"
	"strings"
)

const (
	SettingProxy    = "proxy"
	SettingInsecure = "insecure"
)

// SettingsReader is the cached settings table.
type SettingsReader interface {
	Get(name string) string
}

// Setting retrieves a setting with fallback to the value from the environment
func Setting(settings SettingsReader, name, fallback string) string {
	if settings != nil {
		if val := strings.TrimSpace(settings.Get(name)); val != "" {
			return val
		}
	}
	return fallback
}

// Transport exposes the outbound proxy and TLS verification options, letting
// rows in the settings table override the environment.
type Transport struct {
	cfg      Config
	settings SettingsReader
}

func NewTransport(cfg Config, settings SettingsReader) Transport {
	return Transport{cfg: cfg, settings: settings}
}

// Proxy is "env", "none" or a proxy URL.
func (t Transport) Proxy() string {
	return Setting(t.settings, SettingProxy, t.cfg.Proxy)
}

func (t Transport) Insecure() bool {
	raw := Setting(t.settings, SettingInsecure, "")
	if raw == "" {
		return t.cfg.Insecure
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return t.cfg.Insecure
	}
	return v
}
