package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/flagx"
	"github.com/dmitrijs2005/authkeeper/internal/timex"
)

// JsonConfig is the on-disk shape. Pointer fields distinguish "absent" from
// an explicit zero, so a file only overrides the keys it contains.
type JsonConfig struct {
	HTTPAddr          *string         `json:"http_addr"`
	GRPCAddr          *string         `json:"grpc_addr"`
	DatabaseDSN       *string         `json:"database_dsn"`
	Storage           *string         `json:"storage"`
	MigrateOnStart    *bool           `json:"migrate_on_start"`
	JWTSecret         *string         `json:"jwt_secret"`
	RefreshSecret     *string         `json:"refresh_secret"`
	Issuer            *string         `json:"issuer"`
	Audience          *string         `json:"audience"`
	AccessTokenTTL    *timex.Duration `json:"access_token_ttl"`
	RefreshTokenTTL   *timex.Duration `json:"refresh_token_ttl"`
	ClockSkewLeeway   *timex.Duration `json:"clock_skew_leeway"`
	LockoutThreshold  *int            `json:"lockout_threshold"`
	LockoutDuration   *timex.Duration `json:"lockout_duration"`
	RefreshCookieName *string         `json:"refresh_cookie_name"`
	RefreshCookiePath *string         `json:"refresh_cookie_path"`
	CookieSecure      *bool           `json:"cookie_secure"`
	CORSOrigins       []string        `json:"cors_origins"`
	MaxBodyBytes      *int64          `json:"max_body_bytes"`
	ReusePolicy       *string         `json:"reuse_policy"`
	SweepInterval     *timex.Duration `json:"sweep_interval"`
	PurgeRetention    *timex.Duration `json:"purge_retention"`
	LogLevel          *string         `json:"log_level"`
}

// parseJSON overlays the file named by -c/-config, if any.
func parseJSON(config *Config, args []string) error {
	path := flagx.ConfigFilePath(args)
	if path == "" {
		return nil
	}

	file, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		return err
	}

	setString(&config.HTTPAddr, c.HTTPAddr)
	setString(&config.GRPCAddr, c.GRPCAddr)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.Storage, c.Storage)
	setBool(&config.MigrateOnStart, c.MigrateOnStart)
	setString(&config.JWTSecret, c.JWTSecret)
	setString(&config.RefreshSecret, c.RefreshSecret)
	setString(&config.Issuer, c.Issuer)
	setString(&config.Audience, c.Audience)
	setDuration(&config.AccessTokenTTL, c.AccessTokenTTL)
	setDuration(&config.RefreshTokenTTL, c.RefreshTokenTTL)
	setDuration(&config.ClockSkewLeeway, c.ClockSkewLeeway)
	if c.LockoutThreshold != nil {
		config.LockoutThreshold = *c.LockoutThreshold
	}
	setDuration(&config.LockoutDuration, c.LockoutDuration)
	setString(&config.RefreshCookieName, c.RefreshCookieName)
	setString(&config.RefreshCookiePath, c.RefreshCookiePath)
	setBool(&config.CookieSecure, c.CookieSecure)
	if c.CORSOrigins != nil {
		config.CORSOrigins = c.CORSOrigins
	}
	if c.MaxBodyBytes != nil {
		config.MaxBodyBytes = *c.MaxBodyBytes
	}
	setString(&config.ReusePolicy, c.ReusePolicy)
	setDuration(&config.SweepInterval, c.SweepInterval)
	setDuration(&config.PurgeRetention, c.PurgeRetention)
	setString(&config.LogLevel, c.LogLevel)

	return nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, v *timex.Duration) {
	if v != nil {
		*dst = v.Duration
	}
}
