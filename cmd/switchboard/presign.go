package main

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/sagarc03/switchboard/auth"
	"github.com/sagarc03/switchboard/config"
	"github.com/sagarc03/switchboard/keybackend"
)

var presignCmd = &cobra.Command{
	Use:   "presign <path>",
	Short: "Print a presigned URL for a path",
	Long: `Print a URL carrying an AWS Signature V4 query signature that the
server accepts in presigned or any auth mode. The secret is looked up in
the configured keys unless --secret-key is given.`,
	Args: cobra.ExactArgs(1),
	RunE: runPresign,
}

func init() {
	presignCmd.Flags().String("method", "GET", "HTTP method to sign")
	presignCmd.Flags().Duration("expires", 15*time.Minute, "validity of the URL (max 7 days)")
	presignCmd.Flags().String("base-url", "", "server base URL (default: http://<host>:<port> from config)")
	presignCmd.Flags().String("access-key", "", "access key (default: the first configured key)")
	presignCmd.Flags().String("secret-key", "", "secret key (default: looked up in configured keys)")
	rootCmd.AddCommand(presignCmd)
}

func runPresign(cmd *cobra.Command, args []string) error {
	cfg, err := config.FromContext(cmd.Context())
	if err != nil {
		return err
	}

	method, _ := cmd.Flags().GetString("method")
	expires, _ := cmd.Flags().GetDuration("expires")
	baseURL, _ := cmd.Flags().GetString("base-url")
	accessKey, _ := cmd.Flags().GetString("access-key")
	secretKey, _ := cmd.Flags().GetString("secret-key")

	if baseURL == "" {
		baseURL = fmt.Sprintf("http://%s:%d", cfg.Server.Host, cfg.Server.Port)
	}
	base, err := url.Parse(baseURL)
	if err != nil || base.Host == "" {
		return fmt.Errorf("invalid base URL %q", baseURL)
	}

	accessKey, secretKey, err = resolveKey(cfg.Auth.Keys, accessKey, secretKey)
	if err != nil {
		return err
	}

	path := "/" + strings.TrimPrefix(args[0], "/")
	presigner := &auth.Presigner{
		AccessKey: accessKey,
		SecretKey: secretKey,
		Region:    cfg.Auth.Region,
		Service:   cfg.Auth.Service,
	}
	query, err := presigner.Presign(strings.ToUpper(method), base.Host, path, nil, expires)
	if err != nil {
		return err
	}

	signed := *base
	signed.Path = path
	signed.RawQuery = query.Encode()
	fmt.Fprintln(cmd.OutOrStdout(), signed.String())
	return nil
}

func resolveKey(keys keybackend.KeysConfig, accessKey, secretKey string) (string, string, error) {
	if accessKey != "" && secretKey != "" {
		return accessKey, secretKey, nil
	}

	store, err := keybackend.NewSecretStore(keys)
	if err != nil {
		return "", "", fmt.Errorf("load access keys: %w", err)
	}
	if accessKey == "" {
		known := store.AccessKeys()
		if len(known) == 0 {
			return "", "", errors.New("no access keys configured (use --access-key and --secret-key)")
		}
		accessKey = known[0]
	}
	secretKey, err = store.Lookup(accessKey)
	if err != nil {
		return "", "", err
	}
	return accessKey, secretKey, nil
}
