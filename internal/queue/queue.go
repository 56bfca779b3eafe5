// Package queue carries analysis jobs from the API to workers.
package queue

import "context"

// Client hands a job to a worker pool.
type Client interface {
	Send(ctx context.Context, msg Message) error
}
