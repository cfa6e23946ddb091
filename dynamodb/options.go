package dynamodb

import (
	"errors"
	"time"
)

// Option is a functional option for configuring a [Client].
type Option func(*Options)

// Options holds the configuration for a [Client]. Use [Option] functions
// (such as [WithExecutionItemTimeToLive]) to customise the defaults.
type Options struct {
	executionItemTimeToLive time.Duration
	batchSize               int
	dynamoDBAPI             API
	clock                   func() time.Time
}

func newOptions() *Options {
	return &Options{
		executionItemTimeToLive: 24 * time.Hour,
		batchSize:               maxBatchSize,
		clock:                   time.Now,
	}
}

func (o *Options) validate() error {
	if o.executionItemTimeToLive <= 0 {
		return errors.New("execution item time to live must be greater than zero")
	}

	if o.batchSize < 1 || o.batchSize > maxBatchSize {
		return errors.New("batch size must be between 1 and 25")
	}

	if o.clock == nil {
		return errors.New("clock cannot be nil")
	}

	return nil
}

// WithExecutionItemTimeToLive sets how long staged execution items live when
// they are created without an explicit ttl. The default is 24 hours. The
// duration must be greater than zero.
func WithExecutionItemTimeToLive(d time.Duration) Option {
	return func(o *Options) {
		o.executionItemTimeToLive = d
	}
}

// WithBatchSize sets the number of write requests sent per BatchWriteItem
// call. Must be between 1 and 25 (the DynamoDB limit). Default: 25.
func WithBatchSize(n int) Option {
	return func(o *Options) {
		o.batchSize = n
	}
}

// WithAPI sets a custom [API] implementation. This is useful when a custom
// DynamoDB configuration is required, or for injecting mocks in tests.
func WithAPI(api API) Option {
	return func(o *Options) {
		o.dynamoDBAPI = api
	}
}

// WithClock sets a custom clock function used when computing TTL values.
// Defaults to [time.Now].
func WithClock(clock func() time.Time) Option {
	return func(o *Options) {
		o.clock = clock
	}
}
