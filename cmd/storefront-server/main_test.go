package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"

	"github.com/manenim/storefront/cmd/storefront-server/commands/mocks"
)

func TestRun_Version(t *testing.T) {
	ctrl := gomock.NewController(t)
	stdout, stderr := new(bytes.Buffer), new(bytes.Buffer)

	code := run(context.Background(), []string{"version"}, stdout, stderr, mocks.NewMockApplication(ctrl))
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout.String(), "storefront-server version dev")
	assert.Empty(t, stderr.String())
}

func TestRun_ServeDefaultConfig(t *testing.T) {
	ctrl := gomock.NewController(t)
	a := mocks.NewMockApplication(ctrl)
	a.EXPECT().Serve(gomock.Any(), "storefront.yaml").Return(nil)

	code := run(context.Background(), []string{"serve"}, io.Discard, io.Discard, a)
	assert.Equal(t, 0, code)
}

func TestRun_ServeFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	a := mocks.NewMockApplication(ctrl)
	a.EXPECT().Serve(gomock.Any(), "/etc/storefront.yaml").Return(errors.New("port in use"))

	stderr := new(bytes.Buffer)
	code := run(context.Background(), []string{"serve", "--config", "/etc/storefront.yaml"}, io.Discard, stderr, a)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), "Error: port in use")
}

func TestRun_Check(t *testing.T) {
	ctrl := gomock.NewController(t)
	a := mocks.NewMockApplication(ctrl)
	a.EXPECT().Check(gomock.Any(), "dev.yaml", gomock.Any()).DoAndReturn(
		func(_ context.Context, _ string, out io.Writer) error {
			_, err := io.WriteString(out, "configuration ok\n")
			return err
		})

	stdout := new(bytes.Buffer)
	code := run(context.Background(), []string{"check", "-c", "dev.yaml"}, stdout, io.Discard, a)
	assert.Equal(t, 0, code)
	assert.Equal(t, "configuration ok\n", stdout.String())
}

func TestRun_UnknownCommand(t *testing.T) {
	ctrl := gomock.NewController(t)
	stderr := new(bytes.Buffer)

	code := run(context.Background(), []string{"deploy"}, io.Discard, stderr, mocks.NewMockApplication(ctrl))
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), "unknown command")
}

func TestRun_ServeRejectsArgs(t *testing.T) {
	ctrl := gomock.NewController(t)
	code := run(context.Background(), []string{"serve", "extra"}, io.Discard, io.Discard, mocks.NewMockApplication(ctrl))
	assert.Equal(t, 1, code)
}
