package config

import (
	"flag"
	"io"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/flagx"
)

var serverFlags = []string{"-a", "-g", "-d", "-m", "-s", "-k", "-t", "-r", "-l", "-o"}

// parseFlags applies the server command-line flags.
//
//	-a string   HTTP bind address
//	-g string   gRPC bind address
//	-d string   PostgreSQL DSN
//	-m string   storage backend: postgres | memory
//	-s string   access token signing secret
//	-k string   refresh token digest secret
//	-t int      access token lifetime, minutes
//	-r int      refresh token lifetime, hours
//	-l string   log level
//	-o string   comma-separated CORS origins
//
// Arguments not in the list above are ignored (see flagx.FilterArgs).
func parseFlags(config *Config, args []string) error {
	args = flagx.FilterArgs(args, serverFlags)

	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&config.HTTPAddr, "a", config.HTTPAddr, "HTTP address and port")
	fs.StringVar(&config.GRPCAddr, "g", config.GRPCAddr, "gRPC address and port")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.Storage, "m", config.Storage, "storage backend")
	fs.StringVar(&config.JWTSecret, "s", config.JWTSecret, "access token secret")
	fs.StringVar(&config.RefreshSecret, "k", config.RefreshSecret, "refresh token secret")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")

	accessTTL := fs.Int("t", int(config.AccessTokenTTL.Minutes()), "access token lifetime (in minutes)")
	refreshTTL := fs.Int("r", int(config.RefreshTokenTTL.Hours()), "refresh token lifetime (in hours)")
	origins := fs.String("o", "", "CORS origins")

	if err := fs.Parse(args); err != nil {
		return err
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "t":
			config.AccessTokenTTL = accessTTLMinutes(*accessTTL)
		case "r":
			config.RefreshTokenTTL = time.Duration(*refreshTTL) * time.Hour
		case "o":
			config.CORSOrigins = splitList(*origins)
		}
	})
	return nil
}
