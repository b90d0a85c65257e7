// Package config loads rxsync settings from flags, environment, .env and the
// config file through viper.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/Veraticus/rxsync/internal/common"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable, e.g. RXSYNC_SERVER_ADDR.
const EnvPrefix = "RXSYNC"

// Viper keys.
const (
	KeyLogLevel  = "logging.level"
	KeyLogFormat = "logging.format"

	KeyFormulary  = "inputs.formulary"
	KeyInvoice    = "inputs.invoice"
	KeyPriceTable = "inputs.pricetable"

	KeyOutputDir        = "outputs.dir"
	KeyOutputFormulary  = "outputs.formulary"
	KeyOutputDoses      = "outputs.doses"
	KeyOutputPriceTable = "outputs.pricetable"
	KeyOutputReport     = "outputs.report"

	KeyConfirm        = "reconcile.confirm"
	KeyConfirmTimeout = "reconcile.confirm_timeout"
	KeyProgress       = "reconcile.progress"
	KeyDryRun         = "reconcile.dry_run"

	KeyServerAddr      = "server.addr"
	KeyUploadDir       = "server.upload_dir"
	KeyMaxUploadMB     = "server.max_upload_mb"
	KeyRateLimit       = "server.rate_limit"
	KeyRateBurst       = "server.rate_burst"
	KeyShutdownTimeout = "server.shutdown_timeout"
	KeyTLS             = "server.tls"
	KeyCertDir         = "server.cert_dir"
	KeyTLSHosts        = "server.tls_hosts"
	KeyRetention       = "server.retention"
	KeyPruneInterval   = "server.prune_interval"
)

// Confirmation modes for ambiguous matches.
const (
	ConfirmAsk = "ask"
	ConfirmYes = "yes"
	ConfirmNo  = "no"
)

// Config is the typed view of all settings.
type Config struct {
	Logging   Logging
	Inputs    Inputs
	Outputs   Outputs
	Reconcile Reconcile
	Server    Server
}

// Logging configures slog.
type Logging struct {
	Level  string
	Format string
}

// Inputs names the files a reconcile run reads.
type Inputs struct {
	Formulary  string
	Invoice    string
	PriceTable string
}

// Outputs names the files a run writes. Relative names are placed under Dir;
// an empty name disables that output.
type Outputs struct {
	Dir        string
	Formulary  string
	Doses      string
	PriceTable string
	Report     string
}

// Reconcile configures the matching pass.
type Reconcile struct {
	Confirm        string
	ConfirmTimeout time.Duration
	Progress       bool
	DryRun         bool
}

// Server configures the upload front end.
type Server struct {
	Addr            string
	UploadDir       string
	MaxUploadMB     int64
	RateLimit       float64 // Requests per second per client
	RateBurst       int64
	ShutdownTimeout time.Duration
	TLS             bool          // Serve HTTPS with a self-signed certificate
	CertDir         string        // Where the certificate pair is kept
	TLSHosts        []string      // Extra names the certificate covers
	Retention       time.Duration // Age after which upload runs are deleted; 0 keeps them
	PruneInterval   time.Duration
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "console")

	v.SetDefault(KeyOutputDir, "rxsync-out")
	v.SetDefault(KeyOutputFormulary, "formulary.md")
	v.SetDefault(KeyOutputDoses, "doses.tsv")
	v.SetDefault(KeyOutputPriceTable, "pricetable.tsv")
	v.SetDefault(KeyOutputReport, "changes.xlsx")

	v.SetDefault(KeyConfirm, ConfirmAsk)
	v.SetDefault(KeyConfirmTimeout, time.Duration(0))
	v.SetDefault(KeyProgress, false)
	v.SetDefault(KeyDryRun, false)

	v.SetDefault(KeyServerAddr, ":8080")
	v.SetDefault(KeyUploadDir, filepath.Join("~", ".local", "share", "rxsync", "uploads"))
	v.SetDefault(KeyMaxUploadMB, 32)
	v.SetDefault(KeyRateLimit, 1.0)
	v.SetDefault(KeyRateBurst, 5)
	v.SetDefault(KeyShutdownTimeout, 10*time.Second)
	v.SetDefault(KeyTLS, false)
	v.SetDefault(KeyCertDir, filepath.Join("~", ".local", "share", "rxsync", "certs"))
	v.SetDefault(KeyTLSHosts, []string{})
	v.SetDefault(KeyRetention, 24*time.Hour)
	v.SetDefault(KeyPruneInterval, time.Hour)
}

// BindEnv makes every key readable from RXSYNC_* environment variables.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Load builds a Config from v and validates it.
func Load(v *viper.Viper) (Config, error) {
	cfg := Config{
		Logging: Logging{
			Level:  strings.ToLower(v.GetString(KeyLogLevel)),
			Format: strings.ToLower(v.GetString(KeyLogFormat)),
		},
		Inputs: Inputs{
			Formulary:  ExpandPath(v.GetString(KeyFormulary)),
			Invoice:    ExpandPath(v.GetString(KeyInvoice)),
			PriceTable: ExpandPath(v.GetString(KeyPriceTable)),
		},
		Outputs: Outputs{
			Dir:        ExpandPath(v.GetString(KeyOutputDir)),
			Formulary:  v.GetString(KeyOutputFormulary),
			Doses:      v.GetString(KeyOutputDoses),
			PriceTable: v.GetString(KeyOutputPriceTable),
			Report:     v.GetString(KeyOutputReport),
		},
		Reconcile: Reconcile{
			Confirm:        strings.ToLower(v.GetString(KeyConfirm)),
			ConfirmTimeout: v.GetDuration(KeyConfirmTimeout),
			Progress:       v.GetBool(KeyProgress),
			DryRun:         v.GetBool(KeyDryRun),
		},
		Server: Server{
			Addr:            v.GetString(KeyServerAddr),
			UploadDir:       ExpandPath(v.GetString(KeyUploadDir)),
			MaxUploadMB:     v.GetInt64(KeyMaxUploadMB),
			RateLimit:       v.GetFloat64(KeyRateLimit),
			RateBurst:       v.GetInt64(KeyRateBurst),
			ShutdownTimeout: v.GetDuration(KeyShutdownTimeout),
			TLS:             v.GetBool(KeyTLS),
			CertDir:         ExpandPath(v.GetString(KeyCertDir)),
			TLSHosts:        v.GetStringSlice(KeyTLSHosts),
			Retention:       v.GetDuration(KeyRetention),
			PruneInterval:   v.GetDuration(KeyPruneInterval),
		},
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if _, err := common.ParseLevel(c.Logging.Level); err != nil {
		return invalid(KeyLogLevel, c.Logging.Level)
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		return invalid(KeyLogFormat, c.Logging.Format)
	}

	switch c.Reconcile.Confirm {
	case ConfirmAsk, ConfirmYes, ConfirmNo:
	default:
		return invalid(KeyConfirm, c.Reconcile.Confirm)
	}
	if c.Reconcile.ConfirmTimeout < 0 {
		return invalid(KeyConfirmTimeout, c.Reconcile.ConfirmTimeout.String())
	}

	if c.Server.MaxUploadMB <= 0 {
		return invalid(KeyMaxUploadMB, fmt.Sprint(c.Server.MaxUploadMB))
	}
	if c.Server.RateLimit <= 0 {
		return invalid(KeyRateLimit, fmt.Sprint(c.Server.RateLimit))
	}
	if c.Server.RateBurst <= 0 {
		return invalid(KeyRateBurst, fmt.Sprint(c.Server.RateBurst))
	}
	if c.Server.Retention < 0 {
		return invalid(KeyRetention, c.Server.Retention.String())
	}
	if c.Server.Retention > 0 && c.Server.PruneInterval <= 0 {
		return invalid(KeyPruneInterval, c.Server.PruneInterval.String())
	}
	if c.Server.TLS && c.Server.CertDir == "" {
		return invalid(KeyCertDir, c.Server.CertDir)
	}
	return nil
}

func invalid(key, value string) error {
	return common.NewUserError(
		fmt.Sprintf("invalid value %q for %s", value, key),
		common.ErrInvalidConfig)
}

// MaxUploadBytes returns the upload size limit in bytes.
func (s Server) MaxUploadBytes() int64 {
	return s.MaxUploadMB << 20
}

// OutputPaths resolves the configured output names against Dir.
func (o Outputs) OutputPaths() Outputs {
	return Outputs{
		Dir:        o.Dir,
		Formulary:  resolve(o.Dir, o.Formulary),
		Doses:      resolve(o.Dir, o.Doses),
		PriceTable: resolve(o.Dir, o.PriceTable),
		Report:     resolve(o.Dir, o.Report),
	}
}

// In returns a copy of o whose relative names resolve under dir.
func (o Outputs) In(dir string) Outputs {
	o.Dir = dir
	return o
}
