package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"
)

// Access token lifetimes given in minutes are kept within these bounds.
const (
	minAccessTTLMinutes = 1
	maxAccessTTLMinutes = 120
)

func accessTTLMinutes(n int) time.Duration {
	n = max(minAccessTTLMinutes, min(n, maxAccessTTLMinutes))
	return time.Duration(n) * time.Minute
}

// parseEnv applies the environment variables understood by the service.
// HOST and PORT replace the host and port parts of HTTPAddr separately.
func parseEnv(config *Config, lookup func(string) (string, bool)) error {
	if lookup == nil {
		return nil
	}

	str := func(name string, dst *string) {
		if v, ok := lookup(name); ok && v != "" {
			*dst = v
		}
	}

	str("DATABASE_URL", &config.DatabaseDSN)
	str("STORAGE", &config.Storage)
	str("JWT_SECRET", &config.JWTSecret)
	str("REFRESH_SECRET", &config.RefreshSecret)
	str("JWT_ISSUER", &config.Issuer)
	str("JWT_AUDIENCE", &config.Audience)
	str("GRPC_ADDR", &config.GRPCAddr)
	str("LOG_LEVEL", &config.LogLevel)

	host, port, ok := lookupHostPort(config.HTTPAddr, lookup)
	if ok {
		config.HTTPAddr = net.JoinHostPort(host, port)
	}

	if v, ok := lookup("ACCESS_TTL_MIN"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("ACCESS_TTL_MIN: %w", err)
		}
		config.AccessTokenTTL = accessTTLMinutes(n)
	}

	if v, ok := lookup("COOKIE_SECURE"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("COOKIE_SECURE: %w", err)
		}
		config.CookieSecure = b
	}

	if v, ok := lookup("CORS_ORIGINS"); ok && v != "" {
		config.CORSOrigins = splitList(v)
	}

	return nil
}

func lookupHostPort(addr string, lookup func(string) (string, bool)) (string, string, bool) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		host, port = addr, ""
	}

	h, hok := lookup("HOST")
	p, pok := lookup("PORT")
	if (!hok || h == "") && (!pok || p == "") {
		return "", "", false
	}
	if hok && h != "" {
		host = h
	}
	if pok && p != "" {
		port = p
	}
	return host, port, true
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
