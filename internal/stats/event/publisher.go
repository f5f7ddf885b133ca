package event

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"ojstats/internal/common/mq"
)

// Topics this service publishes to. Consumers (live stat dashboards, the
// judge fleet) subscribe out of band.
const (
	TopicSubmissions = "submissions"
	TopicJudgeTasks  = "judge-tasks"
)

const typeChangeGlobalStats = "change-global-stats"

// GlobalStatsDelta announces that one result category's global count moved,
// so connected readers can adjust their copy without refetching the
// aggregate. ResultType carries the category code (AC, WA, CE, TLE, ERR),
// never a raw verdict: subscribers key their charts by category.
type GlobalStatsDelta struct {
	Type       string `json:"type"`
	ResultType string `json:"result_type"`
	Delta      int64  `json:"delta"`
}

// RejudgeRequested asks the judge fleet to re-run one submission.
type RejudgeRequested struct {
	SubmissionID int64     `json:"submission_id"`
	ProblemID    int64     `json:"problem_id"`
	RequestedBy  int64     `json:"requested_by"`
	RequestedAt  time.Time `json:"requested_at"`
}

// Publisher fans statistics events out to the message queue.
type Publisher struct {
	producer mq.Producer
}

// NewPublisher creates a Publisher.
func NewPublisher(producer mq.Producer) (*Publisher, error) {
	if producer == nil {
		return nil, errors.New("producer is required")
	}
	return &Publisher{producer: producer}, nil
}

// PublishGlobalStatsDelta publishes a category-count change notification.
func (p *Publisher) PublishGlobalStatsDelta(ctx context.Context, categoryCode string, delta int64) error {
	body, err := json.Marshal(GlobalStatsDelta{
		Type:       typeChangeGlobalStats,
		ResultType: categoryCode,
		Delta:      delta,
	})
	if err != nil {
		return err
	}
	msg := mq.NewMessage(body)
	msg.SetHeader("event-type", typeChangeGlobalStats)
	return p.producer.Publish(ctx, TopicSubmissions, msg)
}

// PublishRejudgeRequested enqueues rejudge requests for the judge fleet, one
// message per submission, preserving order.
func (p *Publisher) PublishRejudgeRequested(ctx context.Context, requests []RejudgeRequested) error {
	if len(requests) == 0 {
		return nil
	}
	messages := make([]*mq.Message, 0, len(requests))
	for _, req := range requests {
		body, err := json.Marshal(req)
		if err != nil {
			return err
		}
		msg := mq.NewMessage(body)
		msg.SetHeader("event-type", "rejudge-requested")
		messages = append(messages, msg)
	}
	return p.producer.PublishBatch(ctx, TopicJudgeTasks, messages)
}
