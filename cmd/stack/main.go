package main

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"

	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/jsii-runtime-go"
	"github.com/joho/godotenv"

	"github.com/ab0utbla-k/lambda-errors-alarm/internal/stack"
)

func main() {
	defer jsii.Close()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.Error("cannot load .env file", slog.String("error", err.Error()))
		os.Exit(1)
	}

	app := awscdk.NewApp(nil)

	stack.New(app, "Stack", &stack.Props{
		StackProps: awscdk.StackProps{
			Env: env(),
		},
		AssetPath: os.Getenv("ASSET_PATH"),
	})

	app.Synth(nil)
}

func env() *awscdk.Environment {
	var environment awscdk.Environment
	if account := os.Getenv("CDK_DEFAULT_ACCOUNT"); account != "" {
		environment.Account = jsii.String(account)
	}
	if region := os.Getenv("CDK_DEFAULT_REGION"); region != "" {
		environment.Region = jsii.String(region)
	}

	return &environment
}
