package sched

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/you/prospect/internal/domain"
)

type captureEnqueuer struct {
	jobs []*domain.Job
	err  error
}

func (e *captureEnqueuer) Enqueue(_ context.Context, job *domain.Job) error {
	if e.err != nil {
		return e.err
	}
	e.jobs = append(e.jobs, job)
	return nil
}

func TestTickEnqueuesOneJobPerPayload(t *testing.T) {
	q := &captureEnqueuer{}
	s := New(q, zap.NewNop())

	s.tick("dpe", domain.TypeFetchDPERecords, func() []any {
		return []any{
			&domain.FetchDPEPayload{Department: "75"},
			&domain.FetchDPEPayload{Department: "93"},
		}
	})

	require.Len(t, q.jobs, 2)
	for _, j := range q.jobs {
		assert.Equal(t, "dpe", j.Queue)
		assert.Equal(t, domain.TypeFetchDPERecords, j.Type)
		assert.Equal(t, 3, j.MaxAttempts)
		assert.NotEmpty(t, j.ID)
	}

	var p domain.FetchDPEPayload
	require.NoError(t, json.Unmarshal(q.jobs[1].Payload, &p))
	assert.Equal(t, "93", p.Department)
}

func TestTickSwallowsEnqueueFailures(t *testing.T) {
	q := &captureEnqueuer{err: errors.New("redis unavailable")}
	s := New(q, zap.NewNop())

	assert.NotPanics(t, func() {
		s.tick("dpe", domain.TypeFetchDPERecords, func() []any {
			return []any{&domain.FetchDPEPayload{Department: "75"}}
		})
	})
}

func TestAddRejectsBadCronExpression(t *testing.T) {
	s := New(&captureEnqueuer{}, zap.NewNop())
	err := s.Add("not a cron line", "Europe/Paris", "dpe", domain.TypeFetchDPERecords, func() []any { return nil })
	require.Error(t, err)
}

func TestRegisterCalendarInstallsAllEntries(t *testing.T) {
	s := New(&captureEnqueuer{}, zap.NewNop())
	require.NoError(t, RegisterCalendar(s, []string{"75", "92"}))
}
