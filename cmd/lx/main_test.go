package main

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/nvim-neorocks/lux/internal/app"
	"github.com/nvim-neorocks/lux/internal/core/ports/mocks"
	"github.com/nvim-neorocks/lux/internal/engine/builder"
	"github.com/nvim-neorocks/lux/internal/engine/resolver"
	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"
)

func newComponents(ctrl *gomock.Controller) (*app.Components, *mocks.MockProjectLoader) {
	mockLoader := mocks.NewMockProjectLoader(ctrl)
	mockProvider := mocks.NewMockManifestProvider(ctrl)
	mockFetcher := mocks.NewMockSourceFetcher(ctrl)
	mockRunner := mocks.NewMockRunner(ctrl)
	mockInstaller := mocks.NewMockInstaller(ctrl)
	mockCache := mocks.NewMockBuildCache(ctrl)
	mockLogger := mocks.NewMockLogger(ctrl)
	mockLogger.EXPECT().Debug(gomock.Any(), gomock.Any()).AnyTimes()
	mockLogger.EXPECT().Info(gomock.Any(), gomock.Any()).AnyTimes()
	mockLogger.EXPECT().Warn(gomock.Any(), gomock.Any()).AnyTimes()
	mockLogger.EXPECT().Error(gomock.Any(), gomock.Any()).AnyTimes()

	application := app.New(
		mockLoader,
		mockProvider,
		resolver.New(mockProvider, mockLogger),
		builder.New(mockFetcher, mockRunner, mockInstaller, mockCache, mockLogger),
		mockFetcher,
		mockInstaller,
		mockLogger,
	)

	return &app.Components{
		App:    application,
		Logger: mockLogger,
		Loader: mockLoader,
	}, mockLoader
}

// TestRun_Success verifies that the run function returns 0 when the command succeeds.
func TestRun_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	components, _ := newComponents(ctrl)
	provider := func(_ context.Context) (*app.Components, func(), error) {
		return components, func() {}, nil
	}

	stderr := new(bytes.Buffer)
	exitCode := run(context.Background(), []string{"version"}, stderr, provider)
	assert.Equal(t, 0, exitCode)
}

// TestRun_InitializationError verifies that run returns 1 when component initialization fails.
func TestRun_InitializationError(t *testing.T) {
	provider := func(_ context.Context) (*app.Components, func(), error) {
		return nil, nil, errors.New("init failed")
	}

	stderr := new(bytes.Buffer)
	exitCode := run(context.Background(), []string{"version"}, stderr, provider)

	assert.Equal(t, 1, exitCode)
	assert.Contains(t, stderr.String(), "Error: init failed")
}

// TestRun_ExecutionError verifies that run returns 1 when the command execution fails.
func TestRun_ExecutionError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	components, mockLoader := newComponents(ctrl)
	mockLoader.EXPECT().Root(gomock.Any()).Return("", errors.New("no project here"))

	provider := func(_ context.Context) (*app.Components, func(), error) {
		return components, func() {}, nil
	}

	stderr := new(bytes.Buffer)
	exitCode := run(context.Background(), []string{"install"}, stderr, provider)

	assert.Equal(t, 1, exitCode)
}
