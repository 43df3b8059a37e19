package cli

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/stackrox/acs-loadtest/internal/config"
	lhttp "github.com/stackrox/acs-loadtest/internal/http"
	"github.com/stackrox/acs-loadtest/internal/output"
	"github.com/stackrox/acs-loadtest/internal/scenario"
	"github.com/stackrox/acs-loadtest/internal/schema"
)

type getOptions struct {
	configFile string
	format     string
	verbose    bool
	noColor    bool
	summary    bool
	validate   bool
}

func newGetCmd() *cobra.Command {
	opts := &getOptions{}

	cmd := &cobra.Command{
		Use:   "get",
		Short: "Issue one list centrals request and print it",
		Long: `Send the request a list-centrals user sends, once, and print the exchange.

Useful to check the host and token before starting a load test:
  STATIC_TOKEN=$(ocm token) acs-loadtest get --host https://fleet-manager.example.com --summary --validate`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts.configFile, cmd.Flags())
			if err != nil {
				return err
			}
			return runGet(cmd, cfg, opts)
		},
	}

	addConfigFlags(cmd.Flags())
	cmd.Flags().StringVarP(&opts.configFile, "config", "c", "", "YAML run profile")
	cmd.Flags().StringVar(&opts.format, "format", string(output.FormatText), "Output format (text, json, yaml)")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "Show timing and response headers")
	cmd.Flags().BoolVar(&opts.noColor, "no-color", false, "Disable colored output")
	cmd.Flags().BoolVar(&opts.summary, "summary", false, "Print a summary of the returned list")
	cmd.Flags().BoolVar(&opts.validate, "validate", false, "Validate the response against the CentralRequestList schema")

	return cmd
}

// exchangeClient performs task requests once and keeps the last exchange.
type exchangeClient struct {
	client  *lhttp.Client
	baseURL string

	request  *lhttp.Request
	response *lhttp.Response
}

func (c *exchangeClient) Get(ctx context.Context, path string, header http.Header) error {
	c.request = lhttp.NewRequest(http.MethodGet, path).WithHeaders(header)

	resp, err := c.client.Do(ctx, c.request)
	if err != nil {
		return err
	}
	c.response = resp
	return nil
}

func newExchangeClient(cfg *config.Config) *exchangeClient {
	opts := []lhttp.ClientOption{
		lhttp.WithBaseURL(cfg.Host),
		lhttp.WithTimeout(cfg.RequestTimeout.Std()),
	}
	if cfg.InsecureSkipVerify {
		opts = append(opts, lhttp.WithInsecureSkipVerify())
	}
	return &exchangeClient{client: lhttp.NewClient(opts...), baseURL: cfg.Host}
}

func runGet(cmd *cobra.Command, cfg *config.Config, opts *getOptions) error {
	format, err := output.ParseFormat(opts.format)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.RequireToken {
		if err := scenario.RequireToken(); err != nil {
			return err
		}
	}

	user, err := scenario.Lookup(cfg.User)
	if err != nil {
		return err
	}
	if len(user.Tasks) != 1 {
		return errors.Errorf("user %s has %d tasks, get needs exactly one", user.Name, len(user.Tasks))
	}

	client := newExchangeClient(cfg)
	formatter := output.GetFormatter(format, opts.verbose, opts.noColor)
	out := cmd.OutOrStdout()

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.RequestTimeout.Std()+time.Second)
	defer cancel()

	taskErr := user.Tasks[0].Fn(ctx, client)

	if client.request != nil {
		fmt.Fprint(out, formatter.FormatRequest(client.request, client.baseURL))
	}
	if taskErr != nil {
		return errors.Wrap(taskErr, "request failed")
	}

	resp := client.response
	fmt.Fprint(out, formatter.FormatResponse(resp))

	body, err := resp.GetBody()
	if err != nil {
		return errors.Wrap(err, "reading response body")
	}

	text := output.NewFormatter(false, opts.noColor)
	if opts.summary && resp.IsSuccess() {
		s, err := output.SummarizeList(body)
		if err != nil {
			return errors.Wrap(err, "summarizing response")
		}
		fmt.Fprint(out, text.FormatSummary(s))
	}

	if opts.validate && resp.IsSuccess() {
		if errs := schema.ValidateCentralRequestList(body); len(errs) > 0 {
			fmt.Fprintf(out, "%s response does not match CentralRequestList\n", output.ErrorIcon(opts.noColor))
			for _, e := range errs {
				fmt.Fprintf(out, "  %s\n", e)
			}
			return errors.New("schema validation failed")
		}
		fmt.Fprintf(out, "%s response matches CentralRequestList\n", output.SuccessIcon(opts.noColor))
	}

	if !resp.IsSuccess() {
		if !scenario.TokenPresent() {
			fmt.Fprintf(out, "%s %s is unset\n", output.WarningIcon(opts.noColor), scenario.TokenEnvVar)
		}
		return errors.Errorf("fleet manager answered %s", resp.Status)
	}
	return nil
}
