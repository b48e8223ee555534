package app

import (
	"context"
	"fmt"
	"io"

	"github.com/manenim/storefront/internal/config"
)

// Launcher starts the server from a configuration file.
type Launcher struct {
	// LogOutput receives the structured log.
	LogOutput io.Writer
}

// Serve runs the server described by the file at path until ctx is done.
func (l Launcher) Serve(ctx context.Context, path string) error {
	cfg, err := config.LoadFile(path)
	if err != nil {
		return err
	}
	a, err := New(ctx, cfg, l.LogOutput)
	if err != nil {
		return err
	}
	defer a.Close()
	return a.Run(ctx)
}

// Check builds every component once, loading the catalog and reaching the
// configured backends, and reports the result to out.
func (l Launcher) Check(ctx context.Context, path string, out io.Writer) error {
	cfg, err := config.LoadFile(path)
	if err != nil {
		return err
	}
	a, err := New(ctx, cfg, io.Discard)
	if err != nil {
		return err
	}
	defer a.Close()

	_, err = fmt.Fprintf(out, "configuration ok: %d listings from %s source\n", a.Catalog().Len(), cfg.Source.Kind)
	return err
}
