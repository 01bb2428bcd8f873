package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/mohitkumar/agentflow/analytics"
	"github.com/mohitkumar/agentflow/config"
	"github.com/mohitkumar/agentflow/container"
	"github.com/mohitkumar/agentflow/loader"
	"github.com/mohitkumar/agentflow/logger"
	"github.com/mohitkumar/agentflow/model"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

type cli struct {
	cfg config.Config
}

func setupFlags(cmd *cobra.Command) error {
	defaults := config.Default()
	flags := cmd.PersistentFlags()
	flags.String("config-file", "", "Path to config file.")
	flags.String("storage-impl", string(defaults.StorageType), "implementation of underline storage, memory or redis")
	flags.String("redis-addr", strings.Join(defaults.RedisConfig.Addrs, ","), "comma separated list of redis host:port")
	flags.String("namespace", defaults.RedisConfig.Namespace, "namespace used in storage")
	flags.Int("max-parallelism", defaults.MaxParallelism, "maximum concurrent agent calls per execution")
	flags.Duration("step-timeout", 0, "timeout of a single step attempt, 0 for none")
	flags.Int("retry-count", 0, "retries per step after the first attempt")
	flags.Duration("retry-backoff", 0, "wait between step retries")
	flags.String("retry-policy", string(model.RETRY_POLICY_FIXED), "retry policy, FIXED or BACKOFF")
	flags.Bool("linear-dependencies", false, "steps without depends_on run after the previous step")
	flags.String("analytics-file", "", "file receiving one json line per step outcome")
	flags.String("log-level", defaults.LogLevel, "log level")
	return viper.BindPFlags(flags)
}

func (c *cli) setupConfig(cmd *cobra.Command, args []string) error {
	configFile, err := cmd.Flags().GetString("config-file")
	if err != nil {
		return err
	}
	if configFile != "" {
		viper.SetConfigFile(configFile)
		if err = viper.ReadInConfig(); err != nil {
			// it's ok if config file doesn't exist
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return err
			}
		}
	}
	viper.SetEnvPrefix("AGENTFLOW")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	c.cfg = config.Default()
	c.cfg.StorageType = config.StorageType(viper.GetString("storage-impl"))
	c.cfg.RedisConfig.Addrs = strings.Split(viper.GetString("redis-addr"), ",")
	c.cfg.RedisConfig.Namespace = viper.GetString("namespace")
	c.cfg.MaxParallelism = viper.GetInt("max-parallelism")
	c.cfg.StepTimeout = viper.GetDuration("step-timeout")
	c.cfg.RetryPolicy = model.RetryPolicy{
		MaxRetries: viper.GetInt("retry-count"),
		Backoff:    viper.GetDuration("retry-backoff"),
		Policy:     model.RetryPolicyType(strings.ToUpper(viper.GetString("retry-policy"))),
	}
	c.cfg.LinearDependencies = viper.GetBool("linear-dependencies")
	if file := viper.GetString("analytics-file"); file != "" {
		c.cfg.AnalyticsConfig = analytics.DataCollectorConfig{
			FileName:      file,
			CollectorType: analytics.LOG_FILE_DATA_COLLECTOR,
		}
	}
	c.cfg.LogLevel = viper.GetString("log-level")
	if err := logger.Init(c.cfg.LogLevel, false); err != nil {
		return err
	}
	return c.cfg.Validate()
}

func (c *cli) run(cmd *cobra.Command, args []string) error {
	workflowId, err := cmd.Flags().GetString("workflow")
	if err != nil {
		return err
	}
	f, err := loader.LoadFile(args[0])
	if err != nil {
		return err
	}
	if workflowId == "" {
		if len(f.Workflows) != 1 {
			return fmt.Errorf("--workflow is required when the file declares %d workflows", len(f.Workflows))
		}
		workflowId = f.Workflows[0].Id
	}

	d := container.NewDiContainer()
	if err := d.Init(c.cfg); err != nil {
		return err
	}
	o := d.GetOrchestrator()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := f.Apply(ctx, o, true); err != nil {
		return err
	}
	rec, err := o.ExecuteWorkflow(ctx, workflowId)
	if err != nil {
		return err
	}
	defer logger.Sync()

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(rec); err != nil {
		return err
	}
	if !rec.Succeeded() {
		logger.Warn("workflow did not complete", zap.String("workflow", workflowId), zap.String("executionId", rec.Id))
	}
	return nil
}

func (c *cli) validate(cmd *cobra.Command, args []string) error {
	f, err := loader.LoadFile(args[0])
	if err != nil {
		return err
	}
	// validation never touches the configured storage
	conf := c.cfg
	conf.StorageType = config.STORAGE_TYPE_INMEM
	conf.AnalyticsConfig = analytics.DataCollectorConfig{CollectorType: analytics.NOOP_DATA_COLLECTOR}
	d := container.NewDiContainer()
	if err := d.Init(conf); err != nil {
		return err
	}
	if err := f.Apply(context.Background(), d.GetOrchestrator(), true); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d agents, %d workflows ok\n", len(f.Agents), len(f.Workflows))
	return nil
}

func newRootCommand() (*cobra.Command, error) {
	cli := &cli{}

	root := &cobra.Command{
		Use:               "agentflow",
		Short:             "Run dependency-aware multi-agent workflows",
		PersistentPreRunE: cli.setupConfig,
		SilenceUsage:      true,
	}
	if err := setupFlags(root); err != nil {
		return nil, err
	}

	runCmd := &cobra.Command{
		Use:   "run [file]",
		Short: "Load agents and workflows from a yaml file and execute one workflow",
		Args:  cobra.ExactArgs(1),
		RunE:  cli.run,
	}
	runCmd.Flags().String("workflow", "", "id of the workflow to execute")

	validateCmd := &cobra.Command{
		Use:   "validate [file]",
		Short: "Check agents and workflows declared in a yaml file",
		Args:  cobra.ExactArgs(1),
		RunE:  cli.validate,
	}
	root.AddCommand(runCmd, validateCmd)
	return root, nil
}

func main() {
	root, err := newRootCommand()
	if err != nil {
		log.Fatal(err)
	}
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
