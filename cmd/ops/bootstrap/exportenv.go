package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/joho/godotenv"
)

// ExportEnvConfig controls ExportEnvFile.
type ExportEnvConfig struct {
	OutputPath  string
	Environment string
	SSM         *SSMManager
	Stderr      io.Writer
	// Steps defaults to BuildInventory.
	Steps []BootstrapStep
	// IncludeLocalDefaults adds APP_ENV=local so the services read the file
	// directly instead of resolving SSM pointers.
	IncludeLocalDefaults bool
}

// ExportEnvFile reads every inventory parameter back from SSM and writes
// them as a dotenv file with 0600 permissions. Missing parameters are
// reported and left out.
func ExportEnvFile(ctx context.Context, cfg ExportEnvConfig) error {
	if cfg.OutputPath == "" {
		return fmt.Errorf("export path must not be empty")
	}
	if cfg.Stderr == nil {
		cfg.Stderr = io.Discard
	}
	steps := cfg.Steps
	if steps == nil {
		steps = BuildInventory(NewValidator())
	}

	env := make(map[string]string, len(steps)+2)
	for _, step := range steps {
		path := cfg.SSM.SSMPath(step.SSMCategoryKey)
		value, err := cfg.SSM.GetParameterValue(ctx, path, step.ParamType == ParamSecureString)
		if err != nil {
			var notFound *ssmtypes.ParameterNotFound
			if errors.As(err, &notFound) {
				fmt.Fprintf(cfg.Stderr, "  %s not set in SSM, left out\n", step.EnvVar)
				continue
			}
			return fmt.Errorf("exporting %s: %w", step.EnvVar, err)
		}
		env[step.EnvVar] = value
	}

	if cfg.IncludeLocalDefaults {
		env["APP_ENV"] = "local"
		env["METRICS_ENABLED"] = "false"
	}

	content, err := godotenv.Marshal(env)
	if err != nil {
		return fmt.Errorf("encoding env file: %w", err)
	}
	header := fmt.Sprintf("# exported from /%s/parkwatch/\n", cfg.Environment)
	if err := os.WriteFile(cfg.OutputPath, []byte(header+content+"\n"), 0o600); err != nil {
		return fmt.Errorf("writing %s: %w", cfg.OutputPath, err)
	}
	return nil
}
