// Package config loads the control plane's runtime configuration from
// environment variables and an optional .env file through viper. No
// command-line flags are bound.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds every tunable the control plane reads at startup.
type Config struct {
	ListenAddr string

	AutonomousEnabled     bool
	AutonomousMinInterval time.Duration
	AutonomousMaxInterval time.Duration
	AutonomousPromptPool  []string

	AgentProvider   string // "openai" | "gemini" | "anthropic"
	OpenAIAPIKey    string
	GeminiAPIKey    string
	AnthropicAPIKey string

	AuditDriver    string // "sqlite" | "postgres" | "" (disabled)
	AuditDSN       string
	AuditRetention time.Duration

	ValkeyAddr    string // empty disables distributed broadcast
	ValkeyChannel string

	DiscordBotToken string
	DiscordGuildIDs []string

	OutboundCapacity int

	CharacterName   string
	EmotionMap      map[string]int
	MotionGroups    map[string][]int
	AvatarReference string

	TTSProvider string // read but not consulted: serve wires tts.NoOp{} for any value
	ASRProvider string // read but not consulted: serve wires asr.NoOp{} for any value
}

// Load reads .env (if present), then environment variables, applying
// defaults for anything unset.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("autonomous_enabled", false)
	v.SetDefault("autonomous_min_interval_seconds", 120)
	v.SetDefault("autonomous_max_interval_seconds", 240)
	v.SetDefault("autonomous_prompt_pool", "Tell me something fun.,What are you up to?,Say hi to chat.")
	v.SetDefault("agent_provider", "openai")
	v.SetDefault("audit_driver", "sqlite")
	v.SetDefault("audit_dsn", "controlplane_audit.db")
	v.SetDefault("audit_retention_hours", 24*14)
	v.SetDefault("outbound_capacity", 64)
	v.SetDefault("valkey_channel", "controlplane:autonomous-chat")
	v.SetDefault("character_name", "Miko")
	v.SetDefault("emotion_map", "joy:1,sadness:2,anger:3,surprise:4,neutral:0")
	v.SetDefault("motion_groups", "idle:0:1,greeting:2")

	cfg := &Config{
		ListenAddr:            v.GetString("listen_addr"),
		AutonomousEnabled:     v.GetBool("autonomous_enabled"),
		AutonomousMinInterval: time.Duration(v.GetInt64("autonomous_min_interval_seconds")) * time.Second,
		AutonomousMaxInterval: time.Duration(v.GetInt64("autonomous_max_interval_seconds")) * time.Second,
		AutonomousPromptPool:  splitNonEmpty(v.GetString("autonomous_prompt_pool"), ","),
		AgentProvider:         v.GetString("agent_provider"),
		OpenAIAPIKey:          v.GetString("openai_api_key"),
		GeminiAPIKey:          v.GetString("gemini_api_key"),
		AnthropicAPIKey:       v.GetString("anthropic_api_key"),
		AuditDriver:           v.GetString("audit_driver"),
		AuditDSN:              v.GetString("audit_dsn"),
		AuditRetention:        time.Duration(v.GetInt64("audit_retention_hours")) * time.Hour,
		ValkeyAddr:            v.GetString("valkey_addr"),
		ValkeyChannel:         v.GetString("valkey_channel"),
		DiscordBotToken:       v.GetString("discord_bot_token"),
		DiscordGuildIDs:       splitNonEmpty(v.GetString("discord_guild_ids"), ","),
		OutboundCapacity:      v.GetInt("outbound_capacity"),
		CharacterName:         v.GetString("character_name"),
		EmotionMap:            parseEmotionMap(v.GetString("emotion_map")),
		MotionGroups:          parseMotionGroups(v.GetString("motion_groups")),
		AvatarReference:       v.GetString("avatar_reference"),
		TTSProvider:           v.GetString("tts_provider"),
		ASRProvider:           v.GetString("asr_provider"),
	}

	return cfg, nil
}

// parseEmotionMap decodes "key:id,key:id,..." into a lookup table, as a
// flat env-var-friendly alternative to a structured config file.
func parseEmotionMap(raw string) map[string]int {
	out := make(map[string]int)
	for _, pair := range splitNonEmpty(raw, ",") {
		k, v, ok := strings.Cut(pair, ":")
		if !ok {
			continue
		}
		var id int
		if _, err := fmt.Sscanf(v, "%d", &id); err == nil {
			out[k] = id
		}
	}
	return out
}

// parseMotionGroups decodes "group:idx:idx,group:idx,..." into the
// per-group valid index table.
func parseMotionGroups(raw string) map[string][]int {
	out := make(map[string][]int)
	for _, entry := range splitNonEmpty(raw, ",") {
		parts := strings.Split(entry, ":")
		if len(parts) < 2 {
			continue
		}
		group := parts[0]
		for _, idxStr := range parts[1:] {
			var idx int
			if _, err := fmt.Sscanf(idxStr, "%d", &idx); err == nil {
				out[group] = append(out[group], idx)
			}
		}
	}
	return out
}

func splitNonEmpty(s, sep string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, sep)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
