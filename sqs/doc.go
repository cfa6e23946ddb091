// Package sqs carries failure reports of the bridge pipeline over an AWS SQS
// FIFO queue.
//
// The error-check stage publishes one [FailureReport] per item that a stage
// could not finish. Reports of the same run share a message group (the
// execution id) and their deduplication id is derived from the item key, so a
// retried error-check does not enqueue the same report twice:
//
//	client, err := sqs.New(&awsCfg, "bridge-failures.fifo", logger).Init(ctx)
//	err = client.SendFailure(ctx, &sqs.FailureReport{ExecutionID: id, GUID: guid, Error: cause})
//
// Operators drain the queue with [Client.Receive]. Each [Message] must be
// settled with Ack, which deletes it, or Nack, which makes it visible again
// right away:
//
//	sinkCh := make(chan *sqs.Message)
//	go client.Receive(ctx, sinkCh)
//	for msg := range sinkCh {
//	    report, err := msg.Report()
//	    ...
//	    msg.Ack()
//	}
//
// While a message is unsettled its visibility timeout is renewed in the
// background. Renewal is best-effort and stops after [WithMaxLeaseDuration]
// (default 10 minutes), after which the message may be delivered again.
package sqs
