// Package presets builds ready-to-use services for common setups.
package presets

import (
	"fmt"
	"log/slog"
	"testing"

	"github.com/tendant/simple-vault/pkg/simplevault"
	"github.com/tendant/simple-vault/pkg/simplevault/cipher"
	eventsmemory "github.com/tendant/simple-vault/pkg/simplevault/events/memory"
	"github.com/tendant/simple-vault/pkg/simplevault/events/realtime"
	memoryrepo "github.com/tendant/simple-vault/pkg/simplevault/repo/memory"
	memorystorage "github.com/tendant/simple-vault/pkg/simplevault/storage/memory"
)

// DevelopmentSecret encrypts objects in the development preset. Never use it
// for data you want to keep private.
const DevelopmentSecret = "simple-vault-development-secret"

// Stack is a service together with the in-memory backends behind it, so
// callers can inspect what the service wrote.
type Stack struct {
	Service    simplevault.Service
	Repository *memoryrepo.Repository
	Store      *memorystorage.Backend
	Hub        *realtime.Hub
	Log        *eventsmemory.Log
}

type stackConfig struct {
	secret  string
	logger  *slog.Logger
	options []simplevault.Option
}

// StackOption customizes a preset
type StackOption func(*stackConfig)

// WithSecret replaces the encryption secret
func WithSecret(secret string) StackOption {
	return func(cfg *stackConfig) {
		cfg.secret = secret
	}
}

// WithLogger sets the logger used by the service and hub
func WithLogger(logger *slog.Logger) StackOption {
	return func(cfg *stackConfig) {
		cfg.logger = logger
	}
}

// WithServiceOptions passes extra options through to simplevault.New
func WithServiceOptions(opts ...simplevault.Option) StackOption {
	return func(cfg *stackConfig) {
		cfg.options = append(cfg.options, opts...)
	}
}

// NewDevelopment creates a service for local development: memory repository,
// memory object store, memory durable log and a realtime hub.
func NewDevelopment(opts ...StackOption) (*Stack, error) {
	cfg := &stackConfig{secret: DevelopmentSecret, logger: slog.Default()}
	for _, opt := range opts {
		opt(cfg)
	}

	streamCipher, err := cipher.NewFromSecret(cfg.secret)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	stack := &Stack{
		Repository: memoryrepo.New(),
		Store:      memorystorage.New(),
		Hub:        realtime.NewHub(realtime.WithLogger(cfg.logger)),
		Log:        eventsmemory.New(),
	}

	options := append([]simplevault.Option{
		simplevault.WithRepository(stack.Repository),
		simplevault.WithObjectStore(stack.Store),
		simplevault.WithCipher(streamCipher),
		simplevault.WithRealtimeBus(stack.Hub),
		simplevault.WithDurableLog(stack.Log),
		simplevault.WithLogger(cfg.logger),
	}, cfg.options...)

	stack.Service, err = simplevault.New(options...)
	if err != nil {
		return nil, fmt.Errorf("failed to create service: %w", err)
	}
	return stack, nil
}

// NewTesting is NewDevelopment for tests: each call is isolated and a setup
// failure fails the test.
func NewTesting(t testing.TB, opts ...StackOption) *Stack {
	t.Helper()
	stack, err := NewDevelopment(append([]StackOption{WithSecret("simple-vault-test-secret")}, opts...)...)
	if err != nil {
		t.Fatalf("failed to create test service: %v", err)
	}
	return stack
}
