package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	hdtls "github.com/foxzi/hyperdrive/internal/tls"
)

var hashKeyCost int

var hashKeyCmd = &cobra.Command{
	Use:   "hash-key [api_key]",
	Short: "Hash an API key for api.api_key_hash",
	Long: `Print a bcrypt hash of the given API key for use as api.api_key_hash.
Without an argument a random key is generated and printed first.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHashKey,
}

var tlsCmd = &cobra.Command{
	Use:   "tls",
	Short: "TLS commands",
}

var tlsStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the API certificate and its expiry",
	RunE:  runTLSStatus,
}

func init() {
	hashKeyCmd.Flags().IntVar(&hashKeyCost, "cost", bcrypt.DefaultCost, "bcrypt cost")

	tlsCmd.AddCommand(tlsStatusCmd)
	rootCmd.AddCommand(hashKeyCmd, tlsCmd)
}

func runHashKey(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	var key string
	if len(args) == 1 {
		key = args[0]
	} else {
		buf := make([]byte, 24)
		if _, err := rand.Read(buf); err != nil {
			return fmt.Errorf("failed to generate key: %w", err)
		}
		key = hex.EncodeToString(buf)
		fmt.Fprintf(out, "API key: %s\n", key)
	}
	if len(key) < 16 {
		return fmt.Errorf("API key must be at least 16 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(key), hashKeyCost)
	if err != nil {
		return fmt.Errorf("failed to hash key: %w", err)
	}
	fmt.Fprintf(out, "api_key_hash: %s\n", hash)
	return nil
}

func runTLSStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	tlsCfg := cfg.API.TLS

	var certs []hdtls.CertificateInfo
	switch {
	case tlsCfg.ACME.Enabled:
		fmt.Fprintf(out, "Mode: ACME (%s)\n", tlsCfg.ACME.CacheDir)
		m := hdtls.NewACMEManager(tlsCfg.ACME.Email, tlsCfg.ACME.Domains, tlsCfg.ACME.CacheDir)
		certs = m.CachedCertificates(context.Background())
		if len(certs) < len(tlsCfg.ACME.Domains) {
			fmt.Fprintf(out, "Cached: %d of %d domains (missing certificates are issued on first request)\n",
				len(certs), len(tlsCfg.ACME.Domains))
		}
	case tlsCfg.CertFile != "":
		fmt.Fprintf(out, "Mode: certificate file (%s)\n", tlsCfg.CertFile)
		info, err := hdtls.ReadCertificateInfo(tlsCfg.CertFile)
		if err != nil {
			return err
		}
		certs = append(certs, *info)
	default:
		fmt.Fprintln(out, "TLS is disabled")
		return nil
	}

	for _, c := range certs {
		name := c.Domain
		if name == "" {
			name = c.Subject
		}
		fmt.Fprintf(out, "  %s: expires %s (%d days left), issuer %s\n",
			name, c.NotAfter.Format("2006-01-02"), c.DaysLeft, c.Issuer)
		if c.DaysLeft < 7 {
			fmt.Fprintf(out, "    WARNING: certificate expires soon\n")
		}
	}
	return nil
}
