package sqs

import (
	"errors"
	"time"
)

// Option is a functional option for configuring a [Client].
// Options are passed to [New] and applied before [Client.Init] is called.
type Option func(*Options)

// Options holds the resolved configuration for a [Client].
type Options struct {
	sqsVisibilityTimeoutSeconds   int32
	sqsReceiveMaxNumberOfMessages int32
	sqsReceiveWaitTimeSeconds     int32
	sqsAPIMaxRetryAttempts        int
	sqsAPIMaxRetryBackoffDelay    time.Duration
	maxLeaseDuration              time.Duration
	maxOutstandingMessages        int
	maxOutstandingBytes           int
	clock                         func() time.Time
	sqsClient                     sqsClient // Optional: injected SQS client for testing
}

func newOptions() *Options {
	return &Options{
		sqsVisibilityTimeoutSeconds:   30,
		sqsReceiveMaxNumberOfMessages: 10,
		sqsReceiveWaitTimeSeconds:     5,
		sqsAPIMaxRetryAttempts:        5,
		sqsAPIMaxRetryBackoffDelay:    10 * time.Second,
		maxLeaseDuration:              10 * time.Minute,
		maxOutstandingMessages:        100,
		maxOutstandingBytes:           1e6, // 1 MB
		clock:                         time.Now,
	}
}

func (o *Options) validate() error {
	if o.sqsVisibilityTimeoutSeconds < 10 || o.sqsVisibilityTimeoutSeconds > 3600 {
		return errors.New("SQS message visibility timeout must be between 10 seconds and 1 hour")
	}

	if o.sqsReceiveMaxNumberOfMessages < 1 || o.sqsReceiveMaxNumberOfMessages > 10 {
		return errors.New("max number of messages per SQS receive must be between 1 and 10")
	}

	if o.sqsReceiveWaitTimeSeconds < 1 || o.sqsReceiveWaitTimeSeconds > 20 {
		return errors.New("SQS receive wait time must be between 1 and 20 seconds")
	}

	if o.sqsAPIMaxRetryAttempts < 0 || o.sqsAPIMaxRetryAttempts > 10 {
		return errors.New("max SQS API retry attempts must be between 0 and 10")
	}

	if o.sqsAPIMaxRetryBackoffDelay < 1*time.Second || o.sqsAPIMaxRetryBackoffDelay > 30*time.Second {
		return errors.New("max SQS API retry backoff delay must be between 1 and 30 seconds")
	}

	if o.maxLeaseDuration < 1*time.Minute || o.maxLeaseDuration > time.Hour {
		return errors.New("max lease duration must be between 1 minute and 1 hour")
	}

	if o.maxOutstandingMessages < 1 {
		return errors.New("max outstanding messages must be greater than or equal to 1")
	}

	if o.maxOutstandingBytes < 1e4 {
		return errors.New("max outstanding bytes must be greater than or equal to 10 KB")
	}

	if o.clock == nil {
		return errors.New("clock cannot be nil")
	}

	return nil
}

// WithSqsVisibilityTimeout sets the visibility timeout of received messages.
// Must be between 10 and 3600 seconds. Default: 30.
func WithSqsVisibilityTimeout(seconds int32) Option {
	return func(o *Options) {
		o.sqsVisibilityTimeoutSeconds = seconds
	}
}

// WithSqsReceiveMaxNumberOfMessages sets the batch size of one
// ReceiveMessage call. Must be between 1 and 10. Default: 10.
func WithSqsReceiveMaxNumberOfMessages(n int32) Option {
	return func(o *Options) {
		o.sqsReceiveMaxNumberOfMessages = n
	}
}

// WithSqsReceiveWaitTimeSeconds sets the long-poll wait of one ReceiveMessage
// call. Must be between 1 and 20 seconds. Default: 5.
func WithSqsReceiveWaitTimeSeconds(seconds int32) Option {
	return func(o *Options) {
		o.sqsReceiveWaitTimeSeconds = seconds
	}
}

// WithSqsAPIMaxRetryAttempts sets the maximum number of retry attempts for
// failed SQS API calls. Must be between 0 and 10. Default: 5.
func WithSqsAPIMaxRetryAttempts(n int) Option {
	return func(o *Options) {
		o.sqsAPIMaxRetryAttempts = n
	}
}

// WithSqsAPIMaxRetryBackoffDelay sets the maximum backoff delay between SQS
// API retry attempts. Must be between 1 and 30 seconds. Default: 10 seconds.
func WithSqsAPIMaxRetryBackoffDelay(d time.Duration) Option {
	return func(o *Options) {
		o.sqsAPIMaxRetryBackoffDelay = d
	}
}

// WithMaxLeaseDuration caps how long a delivered message is kept invisible
// by renewals. Must be between 1 minute and 1 hour. Default: 10 minutes.
func WithMaxLeaseDuration(d time.Duration) Option {
	return func(o *Options) {
		o.maxLeaseDuration = d
	}
}

// WithMaxOutstandingMessages sets how many unsettled messages pause
// [Client.Receive]. Must be at least 1. Default: 100.
func WithMaxOutstandingMessages(n int) Option {
	return func(o *Options) {
		o.maxOutstandingMessages = n
	}
}

// WithMaxOutstandingBytes sets the total body size of unsettled messages
// that pauses [Client.Receive]. Must be at least 10 KB. Default: 1 MB.
func WithMaxOutstandingBytes(n int) Option {
	return func(o *Options) {
		o.maxOutstandingBytes = n
	}
}

// WithClock replaces time.Now for report timestamps and lease bookkeeping.
func WithClock(clock func() time.Time) Option {
	return func(o *Options) {
		o.clock = clock
	}
}

// WithSQSClient replaces the AWS SQS client. Intended for tests.
func WithSQSClient(client sqsClient) Option {
	return func(o *Options) {
		o.sqsClient = client
	}
}
