// Package commands implements the storefront-server command line.
package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/manenim/storefront/internal/build"
)

const defaultConfigPath = "storefront.yaml"

// CLI is the storefront-server command line.
type CLI struct {
	app     Application
	rootCmd *cobra.Command
}

//go:generate go run go.uber.org/mock/mockgen -source=root.go -destination=mocks/mock_application.go -package=mocks

// Application is what the commands drive.
type Application interface {
	Serve(ctx context.Context, configPath string) error
	Check(ctx context.Context, configPath string, out io.Writer) error
}

func New(a Application) *CLI {
	rootCmd := &cobra.Command{
		Use:           "storefront-server",
		Short:         "Serve the dealership storefront API",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       build.Version,
	}
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"{{.Name}} version {{.Version}} (commit: %s, date: %s)\n",
		build.Commit,
		build.Date,
	))

	c := &CLI{app: a, rootCmd: rootCmd}
	rootCmd.AddCommand(c.newServeCmd())
	rootCmd.AddCommand(c.newCheckCmd())
	rootCmd.AddCommand(c.newVersionCmd())
	return c
}

// Execute runs the root command with the given context.
func (c *CLI) Execute(ctx context.Context) error {
	c.rootCmd.SetContext(ctx)
	return c.rootCmd.Execute()
}

func (c *CLI) SetArgs(args []string) {
	c.rootCmd.SetArgs(args)
}

func (c *CLI) SetOutput(out, err io.Writer) {
	c.rootCmd.SetOut(out)
	c.rootCmd.SetErr(err)
}
