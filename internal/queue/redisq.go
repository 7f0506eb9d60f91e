package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pkg/errors"
	r "github.com/redis/go-redis/v9"

	"github.com/you/prospect/internal/domain"
)

// Redis key layout, per queue name:
//
//	queue:<name>      list of ready job envelopes (LPUSH/BRPOP)
//	delay:<name>      ZSET of delayed envelopes scored by run-at unix
//	failed:<name>     capped list of terminally failed envelopes
//	active:<name>     gauge of jobs currently held by workers
//	completed:<name>  monotonic counter
const failedKeep = 200

type RedisQ struct{ rdb *r.Client }

func New(rdb *r.Client) *RedisQ { return &RedisQ{rdb} }

// Enqueue pushes a job onto its queue, or onto the delay set when
// RunAt is in the future.
func (q *RedisQ) Enqueue(ctx context.Context, job *domain.Job) error {
	job.Status = domain.Waiting
	b, err := json.Marshal(job)
	if err != nil {
		return errors.Wrap(err, "marshal job")
	}
	if time.Until(job.RunAt) > 0 {
		return q.rdb.ZAdd(ctx, "delay:"+job.Queue, r.Z{Score: float64(job.RunAt.Unix()), Member: b}).Err()
	}
	return q.rdb.LPush(ctx, "queue:"+job.Queue, b).Err()
}

// Dequeue blocks up to block for the next ready job. Returns nil when
// the wait times out with an empty queue.
func (q *RedisQ) Dequeue(ctx context.Context, queue string, block time.Duration) (*domain.Job, error) {
	res, err := q.rdb.BRPop(ctx, block, "queue:"+queue).Result()
	if err == r.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(res) != 2 {
		return nil, nil
	}
	var job domain.Job
	if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
		return nil, errors.Wrap(err, "unmarshal job")
	}
	job.Status = domain.Active
	q.rdb.Incr(ctx, "active:"+queue)
	return &job, nil
}

// Complete records a successful job.
func (q *RedisQ) Complete(ctx context.Context, job *domain.Job) error {
	job.Status = domain.Completed
	pipe := q.rdb.TxPipeline()
	pipe.Decr(ctx, "active:"+job.Queue)
	pipe.Incr(ctx, "completed:"+job.Queue)
	_, err := pipe.Exec(ctx)
	return err
}

// Retry re-enqueues a failed job with its attempt counter bumped, or
// moves it to the failed list once the budget is exhausted. The
// attempts counter only ever grows; a failed job re-enters the queue
// exclusively through this path.
func (q *RedisQ) Retry(ctx context.Context, job *domain.Job, cause error) (requeued bool, err error) {
	job.Attempt++
	if cause != nil {
		job.LastError = cause.Error()
	}
	if job.Exhausted() {
		return false, q.Fail(ctx, job)
	}
	job.RunAt = time.Now().Add(job.NextDelay())
	job.Status = domain.Waiting
	b, merr := json.Marshal(job)
	if merr != nil {
		return false, errors.Wrap(merr, "marshal job")
	}
	pipe := q.rdb.TxPipeline()
	pipe.Decr(ctx, "active:"+job.Queue)
	pipe.ZAdd(ctx, "delay:"+job.Queue, r.Z{Score: float64(job.RunAt.Unix()), Member: b})
	_, err = pipe.Exec(ctx)
	return err == nil, err
}

func (q *RedisQ) Fail(ctx context.Context, job *domain.Job) error {
	job.Status = domain.Failed
	b, err := json.Marshal(job)
	if err != nil {
		return errors.Wrap(err, "marshal job")
	}
	pipe := q.rdb.TxPipeline()
	pipe.Decr(ctx, "active:"+job.Queue)
	pipe.LPush(ctx, "failed:"+job.Queue, b)
	pipe.LTrim(ctx, "failed:"+job.Queue, 0, failedKeep-1)
	pipe.Incr(ctx, "failedcount:"+job.Queue)
	_, err = pipe.Exec(ctx)
	return err
}

// MoveDue promotes delayed jobs whose run-at has passed onto the ready
// list. Called periodically by the scheduler process.
func (q *RedisQ) MoveDue(ctx context.Context, queue string, now int64, batch int64) error {
	members, err := q.rdb.ZRangeByScore(ctx, "delay:"+queue, &r.ZRangeBy{Min: "-inf", Max: fmt.Sprintf("%d", now), Offset: 0, Count: batch}).Result()
	if err != nil || len(members) == 0 {
		return err
	}
	pipe := q.rdb.TxPipeline()
	for _, m := range members {
		pipe.LPush(ctx, "queue:"+queue, m)
		pipe.ZRem(ctx, "delay:"+queue, m)
	}
	_, err = pipe.Exec(ctx)
	return err
}

// Depths reports the queue's counters for the monitoring surface.
type Depths struct {
	Waiting   int64 `json:"waiting"`
	Delayed   int64 `json:"delayed"`
	Active    int64 `json:"active"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
}

func (q *RedisQ) Depths(ctx context.Context, queue string) (Depths, error) {
	var d Depths
	pipe := q.rdb.Pipeline()
	waiting := pipe.LLen(ctx, "queue:"+queue)
	delayed := pipe.ZCard(ctx, "delay:"+queue)
	active := pipe.Get(ctx, "active:"+queue)
	completed := pipe.Get(ctx, "completed:"+queue)
	failed := pipe.Get(ctx, "failedcount:"+queue)
	if _, err := pipe.Exec(ctx); err != nil && err != r.Nil {
		return d, err
	}
	d.Waiting = waiting.Val()
	d.Delayed = delayed.Val()
	d.Active, _ = active.Int64()
	d.Completed, _ = completed.Int64()
	d.Failed, _ = failed.Int64()
	return d, nil
}

// Ping verifies connectivity for the liveness probe.
func (q *RedisQ) Ping(ctx context.Context) error {
	return q.rdb.Ping(ctx).Err()
}
