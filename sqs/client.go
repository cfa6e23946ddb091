package sqs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anoopengineer/rss-bluesky-bridge/types"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

const (
	receiveRetryDelay = 5 * time.Second
	settleTimeout     = 2 * time.Second
)

// Message is one delivered failure queue message. Exactly one of Ack or
// Nack should be called once the message has been handled.
type Message struct {
	MessageID  string
	GroupID    string
	ReceivedAt time.Time
	Body       string
	Ack        func()
	Nack       func()
}

// Report decodes the message body.
func (m *Message) Report() (*FailureReport, error) {
	return DecodeFailureReport(m.Body)
}

// Client publishes failure reports to an SQS FIFO queue and drains them
// again for replay.
//
// Create a Client with [New], then call [Client.Init] once before any other
// method. Init is not thread-safe; all other methods are safe for concurrent
// use after Init returns.
type Client struct {
	client      sqsClient
	queueName   string
	queueURL    string
	awsCfg      *aws.Config
	opts        *Options
	keeper      *leaseKeeper
	leaseCh     chan *lease
	logger      types.Logger
	initialized bool
}

// New creates a Client for the named FIFO queue. It does not connect to AWS.
func New(awsCfg *aws.Config, queueName string, logger types.Logger, opts ...Option) *Client {
	options := newOptions()

	for _, o := range opts {
		o(options)
	}

	logger = logger.
		WithField("component", "sqs").
		WithField("queue_name", queueName)

	return &Client{
		awsCfg:    awsCfg,
		queueName: queueName,
		opts:      options,
		leaseCh:   make(chan *lease, 1000),
		logger:    logger,
	}
}

// Init validates options, resolves the queue URL and starts the lease keeper
// goroutine, which runs until ctx is cancelled. It returns the receiver so
// that it can be chained with [New]:
//
//	client, err := sqs.New(&awsCfg, "bridge-failures.fifo", logger).Init(ctx)
//
// Subsequent calls are no-ops.
func (c *Client) Init(ctx context.Context) (*Client, error) {
	if c.initialized {
		return c, nil
	}

	if !strings.HasSuffix(c.queueName, ".fifo") {
		return nil, errors.New("the SQS queue must be a FIFO queue (the name must end with .fifo)")
	}

	if err := c.opts.validate(); err != nil {
		return nil, fmt.Errorf("invalid SQS options: %w", err)
	}

	if c.opts.sqsClient != nil {
		c.client = c.opts.sqsClient
	} else {
		if c.awsCfg == nil {
			return nil, errors.New("AWS config cannot be nil")
		}

		c.client = sqs.NewFromConfig(*c.awsCfg, func(o *sqs.Options) {
			o.Retryer = retry.AddWithMaxBackoffDelay(o.Retryer, c.opts.sqsAPIMaxRetryBackoffDelay)
			o.Retryer = retry.AddWithMaxAttempts(o.Retryer, c.opts.sqsAPIMaxRetryAttempts)
		})
	}

	resp, err := c.client.GetQueueUrl(ctx, &sqs.GetQueueUrlInput{QueueName: aws.String(c.queueName)})
	if err != nil {
		return nil, fmt.Errorf("failed to get SQS queue URL for %s: %w", c.queueName, err)
	}

	c.queueURL = aws.ToString(resp.QueueUrl)

	c.keeper = newLeaseKeeper(c.opts, c.logger)

	go c.keeper.run(ctx, c.leaseCh)

	c.initialized = true

	return c, nil
}

// Name returns the SQS queue name supplied to [New].
func (c *Client) Name() string {
	return c.queueName
}

// Send publishes one message. groupID becomes the MessageGroupId and dedupID
// the MessageDeduplicationId; all three arguments are required.
func (c *Client) Send(ctx context.Context, groupID, dedupID, body string) error {
	if !c.initialized {
		return errors.New("SQS client not initialized")
	}

	if groupID == "" {
		return errors.New("groupID cannot be empty")
	}

	if dedupID == "" {
		return errors.New("dedupID cannot be empty")
	}

	if body == "" {
		return errors.New("body cannot be empty")
	}

	input := &sqs.SendMessageInput{
		QueueUrl:               &c.queueURL,
		MessageGroupId:         &groupID,
		MessageDeduplicationId: &dedupID,
		MessageBody:            &body,
	}

	if _, err := c.client.SendMessage(ctx, input); err != nil {
		return fmt.Errorf("failed to send SQS message: %w", err)
	}

	return nil
}

// SendFailure publishes a failure report. Reports of one run share a message
// group, and the deduplication id is derived from the item key. A zero
// ReportedAt is set from the clock.
func (c *Client) SendFailure(ctx context.Context, report *FailureReport) error {
	if err := report.Validate(); err != nil {
		return err
	}

	if report.ReportedAt.IsZero() {
		report.ReportedAt = c.opts.clock().UTC()
	}

	body, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to encode failure report: %w", err)
	}

	if err := c.Send(ctx, report.ExecutionID, DedupID(report.ExecutionID, report.GUID), string(body)); err != nil {
		return &types.UpstreamError{Service: "sqs", Op: "SendMessage", Identifier: report.Identifier(), Err: err}
	}

	c.logger.WithField("execution_id", report.ExecutionID).WithField("guid", report.GUID).Debug("Failure report sent")

	return nil
}

// Receive reads the queue in a loop and sends each message to sinkCh. It
// closes sinkCh before returning.
//
// Reading pauses while the unsettled messages reach the limits set by
// [WithMaxOutstandingMessages] or [WithMaxOutstandingBytes]. A failed read is
// logged and retried after five seconds. Receive returns ctx.Err() once ctx
// is cancelled.
func (c *Client) Receive(ctx context.Context, sinkCh chan<- *Message) error {
	defer close(sinkCh)

	if !c.initialized {
		return errors.New("SQS client not initialized")
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			err := c.read(ctx, sinkCh)
			if err == nil {
				continue
			}

			if ctx.Err() != nil {
				return ctx.Err()
			}

			c.logger.Errorf("Error reading SQS queue %s: %v", c.queueName, err)

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(receiveRetryDelay):
			}
		}
	}
}

func (c *Client) read(ctx context.Context, sinkCh chan<- *Message) error {
	for !c.keeper.HasCapacity() {
		c.logger.Debug("SQS lease keeper is at capacity, waiting before reading more messages")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}

	input := &sqs.ReceiveMessageInput{
		QueueUrl:            &c.queueURL,
		MaxNumberOfMessages: c.opts.sqsReceiveMaxNumberOfMessages,
		VisibilityTimeout:   c.opts.sqsVisibilityTimeoutSeconds,
		WaitTimeSeconds:     c.opts.sqsReceiveWaitTimeSeconds,
		MessageSystemAttributeNames: []sqstypes.MessageSystemAttributeName{
			sqstypes.MessageSystemAttributeNameMessageGroupId,
		},
	}

	output, err := c.client.ReceiveMessage(ctx, input)
	if err != nil {
		return fmt.Errorf("failed to receive SQS messages: %w", err)
	}

	now := c.opts.clock()

	for _, m := range output.Messages {
		msgID := aws.ToString(m.MessageId)
		receiptHandle := aws.ToString(m.ReceiptHandle)
		body := aws.ToString(m.Body)

		l := newLease(msgID, c.opts.sqsVisibilityTimeoutSeconds, len(body), now)

		//nolint:contextcheck // settling must complete regardless of the caller's context state
		l.ackFunc = func() { c.deleteMessage(msgID, receiptHandle) }
		//nolint:contextcheck // settling must complete regardless of the caller's context state
		l.nackFunc = func() { c.releaseMessage(msgID, receiptHandle) }
		l.renewFunc = func(ctx context.Context) error {
			return c.changeMessageVisibility(ctx, msgID, receiptHandle, c.opts.sqsVisibilityTimeoutSeconds)
		}

		if err := trySend(ctx, l, c.leaseCh); err != nil {
			return err
		}

		msg := &Message{
			MessageID:  msgID,
			GroupID:    m.Attributes[string(sqstypes.MessageSystemAttributeNameMessageGroupId)],
			ReceivedAt: now,
			Body:       body,
			Ack:        l.Ack,
			Nack:       l.Nack,
		}

		if err := trySend(ctx, msg, sinkCh); err != nil {
			return err
		}

		c.logger.WithField("message_id", msgID).Debug("SQS message received")
	}

	return nil
}

// deleteMessage and releaseMessage use context.Background() with a short
// timeout because they must complete regardless of the caller's context.
func (c *Client) deleteMessage(messageID, receiptHandle string) {
	logger := c.logger.WithField("message_id", messageID)

	input := &sqs.DeleteMessageInput{
		QueueUrl:      &c.queueURL,
		ReceiptHandle: &receiptHandle,
	}

	ctx, cancel := context.WithTimeout(context.Background(), settleTimeout)
	defer cancel()

	if _, err := c.client.DeleteMessage(ctx, input); err != nil {
		logger.Errorf("Failed to delete SQS message: %v", err)
		return
	}

	logger.Debug("SQS message deleted")
}

func (c *Client) releaseMessage(messageID, receiptHandle string) {
	ctx, cancel := context.WithTimeout(context.Background(), settleTimeout)
	defer cancel()

	if err := c.changeMessageVisibility(ctx, messageID, receiptHandle, 0); err != nil {
		c.logger.WithField("message_id", messageID).Errorf("Failed to release SQS message: %v", err)
	}
}

func (c *Client) changeMessageVisibility(ctx context.Context, messageID, receiptHandle string, timeoutSeconds int32) error {
	input := &sqs.ChangeMessageVisibilityInput{
		QueueUrl:          &c.queueURL,
		ReceiptHandle:     &receiptHandle,
		VisibilityTimeout: timeoutSeconds,
	}

	if _, err := c.client.ChangeMessageVisibility(ctx, input); err != nil {
		return fmt.Errorf("failed to change SQS message visibility: %w", err)
	}

	c.logger.WithField("message_id", messageID).WithField("visibility_timeout_seconds", timeoutSeconds).Debug("SQS message visibility changed")

	return nil
}

func trySend[T any](ctx context.Context, msg T, sinkCh chan<- T) error {
	select {
	case sinkCh <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
