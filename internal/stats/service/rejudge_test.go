package service_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"ojstats/internal/stats/event"
	"ojstats/internal/stats/model"
	xerrors "ojstats/pkg/errors"
)

func submission(id, userID, problemID, participationID int64, casePoints, caseTotal float64) model.Submission {
	return model.Submission{
		ID:              id,
		UserID:          userID,
		ProblemID:       problemID,
		ParticipationID: participationID,
		Result:          model.ResultAC,
		CasePoints:      casePoints,
		CaseTotal:       caseTotal,
	}
}

func TestRejudgeRequiresCapabilities(t *testing.T) {
	store := newFakeStore()
	store.submissions[1] = submission(1, 10, 100, 0, 5, 5)
	producer := newFakeProducer()
	svc := newTestRejudgeService(t, store, newFakeProblems(), newFakeCache(), producer, 10)

	cases := []model.Caller{
		model.NewCaller(1),
		model.NewCaller(1, model.CapRejudge),
		model.NewCaller(1, model.CapEditOwnProblem),
	}
	for i, caller := range cases {
		_, err := svc.Rejudge(context.Background(), caller, []int64{1})
		if !xerrors.Is(err, xerrors.PermissionDenied) {
			t.Fatalf("case %d: expected permission denied, got %v", i, err)
		}
	}
	if len(producer.messages(event.TopicJudgeTasks)) != 0 {
		t.Fatalf("expected no side effects from rejected batches")
	}
}

func TestRejudgeEmptyBatch(t *testing.T) {
	svc := newTestRejudgeService(t, newFakeStore(), newFakeProblems(), newFakeCache(), newFakeProducer(), 10)
	caller := model.NewCaller(1, model.CapRejudge, model.CapEditOwnProblem, model.CapEditAllProblem)

	_, err := svc.Rejudge(context.Background(), caller, nil)
	if !xerrors.Is(err, xerrors.RejudgeBatchEmpty) {
		t.Fatalf("expected empty batch error, got %v", err)
	}
}

func TestRejudgeBatchLimit(t *testing.T) {
	store := newFakeStore()
	producer := newFakeProducer()
	var ids []int64
	for i := int64(1); i <= 5; i++ {
		store.submissions[i] = submission(i, 10, 100, 0, 5, 5)
		ids = append(ids, i)
	}
	svc := newTestRejudgeService(t, store, newFakeProblems(), newFakeCache(), producer, 3)

	caller := model.NewCaller(1, model.CapRejudge, model.CapEditOwnProblem, model.CapEditAllProblem)
	_, err := svc.Rejudge(context.Background(), caller, ids)
	if !xerrors.Is(err, xerrors.InsufficientPermission) {
		t.Fatalf("expected insufficient permission, got %v", err)
	}
	if len(producer.messages(event.TopicJudgeTasks)) != 0 {
		t.Fatalf("expected no side effects from rejected batch")
	}

	bulk := model.NewCaller(1, model.CapRejudge, model.CapEditOwnProblem, model.CapEditAllProblem, model.CapRejudgeLot)
	result, err := svc.Rejudge(context.Background(), bulk, ids)
	if err != nil {
		t.Fatalf("rejudge failed: %v", err)
	}
	if result.Requested != 5 || result.Enqueued != 5 {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestRejudgeFiltersToAuthoredProblems(t *testing.T) {
	store := newFakeStore()
	store.submissions[1] = submission(1, 10, 100, 0, 5, 5)
	store.submissions[2] = submission(2, 11, 200, 0, 5, 5)
	problems := newFakeProblems()
	problems.authored[7] = map[int64]struct{}{100: {}}
	producer := newFakeProducer()
	svc := newTestRejudgeService(t, store, problems, newFakeCache(), producer, 10)

	caller := model.NewCaller(7, model.CapRejudge, model.CapEditOwnProblem)
	result, err := svc.Rejudge(context.Background(), caller, []int64{1, 2})
	if err != nil {
		t.Fatalf("rejudge failed: %v", err)
	}
	if result.Requested != 2 || result.Enqueued != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}

	messages := producer.messages(event.TopicJudgeTasks)
	if len(messages) != 1 {
		t.Fatalf("expected one enqueued request, got %d", len(messages))
	}
	var req event.RejudgeRequested
	if err := json.Unmarshal(messages[0].Body, &req); err != nil {
		t.Fatalf("unmarshal request failed: %v", err)
	}
	if req.SubmissionID != 1 || req.ProblemID != 100 || req.RequestedBy != 7 {
		t.Fatalf("unexpected request payload: %+v", req)
	}
}

func TestRejudgePreservesAscendingOrder(t *testing.T) {
	store := newFakeStore()
	for i := int64(1); i <= 4; i++ {
		store.submissions[i] = submission(i, 10, 100, 0, 5, 5)
	}
	producer := newFakeProducer()
	svc := newTestRejudgeService(t, store, newFakeProblems(), newFakeCache(), producer, 10)

	caller := model.NewCaller(1, model.CapRejudge, model.CapEditOwnProblem, model.CapEditAllProblem)
	if _, err := svc.Rejudge(context.Background(), caller, []int64{4, 1, 3, 2}); err != nil {
		t.Fatalf("rejudge failed: %v", err)
	}

	messages := producer.messages(event.TopicJudgeTasks)
	for i, msg := range messages {
		var req event.RejudgeRequested
		if err := json.Unmarshal(msg.Body, &req); err != nil {
			t.Fatalf("unmarshal request failed: %v", err)
		}
		if req.SubmissionID != int64(i+1) {
			t.Fatalf("expected submission %d at index %d, got %d", i+1, i, req.SubmissionID)
		}
	}
}

func TestRescorePartialCredit(t *testing.T) {
	store := newFakeStore()
	store.submissions[1] = submission(1, 10, 100, 0, 80, 100)
	problems := newFakeProblems()
	problems.problems[100] = model.Problem{ID: 100, Points: 10, Partial: true}
	svc := newTestRejudgeService(t, store, problems, newFakeCache(), newFakeProducer(), 10)

	caller := model.NewCaller(1, model.CapRejudge, model.CapEditOwnProblem, model.CapEditAllProblem)
	result, err := svc.Rescore(context.Background(), caller, []int64{1})
	if err != nil {
		t.Fatalf("rescore failed: %v", err)
	}
	if result.Updated != 1 {
		t.Fatalf("expected one update, got %+v", result)
	}
	if got := store.updatedPoints[1]; got != 8.0 {
		t.Fatalf("expected 8.0 points, got %f", got)
	}
}

func TestRescoreAllOrNothing(t *testing.T) {
	store := newFakeStore()
	store.submissions[1] = submission(1, 10, 100, 0, 80, 100)
	store.submissions[2] = submission(2, 10, 100, 0, 100, 100)
	problems := newFakeProblems()
	problems.problems[100] = model.Problem{ID: 100, Points: 10, Partial: false}
	svc := newTestRejudgeService(t, store, problems, newFakeCache(), newFakeProducer(), 10)

	caller := model.NewCaller(1, model.CapRejudge, model.CapEditOwnProblem, model.CapEditAllProblem)
	if _, err := svc.Rescore(context.Background(), caller, []int64{1, 2}); err != nil {
		t.Fatalf("rescore failed: %v", err)
	}
	if got := store.updatedPoints[1]; got != 0 {
		t.Fatalf("expected partial score forced to 0, got %f", got)
	}
	if got := store.updatedPoints[2]; got != 10 {
		t.Fatalf("expected full marks to keep 10, got %f", got)
	}
}

func TestRescoreRounding(t *testing.T) {
	store := newFakeStore()
	store.submissions[1] = submission(1, 10, 100, 0, 1, 3)
	store.submissions[2] = submission(2, 10, 100, 0, 0, 0) // no case data
	problems := newFakeProblems()
	problems.problems[100] = model.Problem{ID: 100, Points: 10, Partial: true}
	svc := newTestRejudgeService(t, store, problems, newFakeCache(), newFakeProducer(), 10)

	caller := model.NewCaller(1, model.CapRejudge, model.CapEditOwnProblem, model.CapEditAllProblem)
	if _, err := svc.Rescore(context.Background(), caller, []int64{1, 2}); err != nil {
		t.Fatalf("rescore failed: %v", err)
	}
	if got := store.updatedPoints[1]; got != 3.3 {
		t.Fatalf("expected 3.3 points, got %f", got)
	}
	if got := store.updatedPoints[2]; got != 0 {
		t.Fatalf("expected 0 points without case data, got %f", got)
	}
}

func TestRescoreSkipsFailuresAndContinues(t *testing.T) {
	store := newFakeStore()
	store.submissions[1] = submission(1, 10, 100, 0, 5, 5)
	store.submissions[2] = submission(2, 11, 100, 0, 5, 5)
	store.submissions[3] = submission(3, 12, 100, 0, 5, 5)
	store.failUpdate[2] = true
	problems := newFakeProblems()
	problems.problems[100] = model.Problem{ID: 100, Points: 10, Partial: true}
	svc := newTestRejudgeService(t, store, problems, newFakeCache(), newFakeProducer(), 10)

	caller := model.NewCaller(1, model.CapRejudge, model.CapEditOwnProblem, model.CapEditAllProblem)
	result, err := svc.Rescore(context.Background(), caller, []int64{1, 2, 3, 99})
	if err != nil {
		t.Fatalf("rescore failed: %v", err)
	}
	if result.Requested != 4 || result.Updated != 2 || result.Skipped != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestRescoreInvalidatesTouchedIdentities(t *testing.T) {
	store := newFakeStore()
	store.submissions[1] = submission(1, 10, 100, 0, 5, 5)
	store.submissions[2] = submission(2, 11, 100, 55, 5, 5)
	problems := newFakeProblems()
	problems.problems[100] = model.Problem{ID: 100, Points: 10, Partial: true}
	cache := newFakeCache()
	svc := newTestRejudgeService(t, store, problems, cache, newFakeProducer(), 10)

	caller := model.NewCaller(1, model.CapRejudge, model.CapEditOwnProblem, model.CapEditAllProblem)
	if _, err := svc.Rescore(context.Background(), caller, []int64{1, 2}); err != nil {
		t.Fatalf("rescore failed: %v", err)
	}

	for _, profileID := range []int64{10, 11} {
		for _, key := range []string{
			fmt.Sprintf("user_complete:%d", profileID),
			fmt.Sprintf("user_attempted:%d", profileID),
		} {
			if !cache.wasDeleted(key) {
				t.Fatalf("expected %s to be invalidated", key)
			}
		}
	}
	for _, key := range []string{"contest_complete:55", "contest_attempted:55"} {
		if !cache.wasDeleted(key) {
			t.Fatalf("expected %s to be invalidated", key)
		}
	}
}
