package submission

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	Do(method, path string, body any, admin bool) (int, []byte, error)
	GET(path string, admin bool) error
	POST(path string, body any, admin bool) error
	PATCH(path string, body any) error
	GetResponseField(field string) (any, error)
	GetLastResponseStatus() int
	GetLastResponseBody() []byte
	EventID() string
	SetEventID(eventID string)
	SubmissionID(name string) (string, error)
	SetSubmissionID(name, subID string)
	RecordConcurrent(status int)
	ConcurrentStatuses() []int
	NextTeam() string
}

// RegisterSteps registers submission and moderation step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &submissionSteps{tc: tc}

	// Parent events
	ctx.Step(`^an open event with (\d+) slots and a future deadline$`, steps.openEventWithSlots)
	ctx.Step(`^an unlimited open event$`, steps.unlimitedOpenEvent)
	ctx.Step(`^an event whose deadline has passed$`, steps.eventWithPastDeadline)

	// Submission intake
	ctx.Step(`^I submit a registration named "([^"]*)"$`, steps.submitNamed)
	ctx.Step(`^I submit a registration$`, steps.submitAnonymous)
	ctx.Step(`^(\d+) registrations are submitted concurrently$`, steps.submitConcurrently)
	ctx.Step(`^(\d+) of the concurrent submissions should return (\d+)$`, steps.concurrentStatusCount)
	ctx.Step(`^the event should have (\d+) active submissions$`, steps.eventActiveCount)

	// Moderation
	ctx.Step(`^I (verify|reject) "([^"]*)"$`, steps.transitionPlain)
	ctx.Step(`^I (verify|reject) "([^"]*)" with notes "([^"]*)"$`, steps.transitionWithNotes)
	ctx.Step(`^I batch (verify|reject) "([^"]*)", "([^"]*)" and "([^"]*)"$`, steps.batchTransition)
	ctx.Step(`^I fetch submission "([^"]*)"$`, steps.fetchSubmission)
}

type submissionSteps struct {
	tc TestContext
}

var targets = map[string]string{"verify": "verified", "reject": "rejected"}

func (s *submissionSteps) createEvent(body map[string]any) error {
	status, _, err := s.tc.Do(http.MethodPost, "/admin/events", body, true)
	if err != nil {
		return err
	}
	if status != http.StatusCreated {
		return fmt.Errorf("create event returned %d: %s", status, s.tc.GetLastResponseBody())
	}
	eventID, err := s.tc.GetResponseField("id")
	if err != nil {
		return err
	}
	s.tc.SetEventID(fmt.Sprint(eventID))
	return nil
}

func (s *submissionSteps) openEventWithSlots(ctx context.Context, slots int) error {
	return s.createEvent(map[string]any{
		"name":            "E2E Cup",
		"kind":            "competition",
		"maxParticipants": slots,
		"deadline":        time.Now().Add(24 * time.Hour).UTC(),
	})
}

func (s *submissionSteps) unlimitedOpenEvent(ctx context.Context) error {
	return s.createEvent(map[string]any{"name": "E2E Open", "maxParticipants": 0})
}

func (s *submissionSteps) eventWithPastDeadline(ctx context.Context) error {
	return s.createEvent(map[string]any{
		"name":            "E2E Late",
		"maxParticipants": 10,
		"deadline":        time.Now().Add(-time.Hour).UTC(),
	})
}

func (s *submissionSteps) submitBody(team string) map[string]any {
	return map[string]any{
		"kind":        "registration",
		"title":       team,
		"institution": "E2E Academy",
		"contact":     map[string]any{"name": "Ada Lovelace", "email": "ada@example.com"},
		"members": []map[string]any{
			{"name": "Ada Lovelace", "identifier": team + "-lead", "role": "leader"},
			{"name": "Charles Babbage", "identifier": team + "-m1"},
		},
	}
}

func (s *submissionSteps) submit(team string) (int, error) {
	status, _, err := s.tc.Do(http.MethodPost, "/events/"+s.tc.EventID()+"/submissions", s.submitBody(team), false)
	return status, err
}

func (s *submissionSteps) submitNamed(ctx context.Context, name string) error {
	status, err := s.submit(s.tc.NextTeam())
	if err != nil {
		return err
	}
	if status != http.StatusCreated {
		return fmt.Errorf("submit %q returned %d: %s", name, status, s.tc.GetLastResponseBody())
	}
	subID, err := s.tc.GetResponseField("id")
	if err != nil {
		return err
	}
	s.tc.SetSubmissionID(name, fmt.Sprint(subID))
	return nil
}

func (s *submissionSteps) submitAnonymous(ctx context.Context) error {
	_, err := s.submit(s.tc.NextTeam())
	return err
}

func (s *submissionSteps) submitConcurrently(ctx context.Context, n int) error {
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for range n {
		team := s.tc.NextTeam()
		wg.Add(1)
		go func() {
			defer wg.Done()
			status, err := s.submit(team)
			if err != nil {
				errs <- err
				return
			}
			s.tc.RecordConcurrent(status)
		}()
	}
	wg.Wait()
	close(errs)
	return <-errs
}

func (s *submissionSteps) concurrentStatusCount(ctx context.Context, want, status int) error {
	got := 0
	for _, st := range s.tc.ConcurrentStatuses() {
		if st == status {
			got++
		}
	}
	if got != want {
		return fmt.Errorf("expected %d responses with status %d, got %d (%v)", want, status, got, s.tc.ConcurrentStatuses())
	}
	return nil
}

func (s *submissionSteps) eventActiveCount(ctx context.Context, want int) error {
	if err := s.tc.GET("/admin/events/"+s.tc.EventID(), true); err != nil {
		return err
	}
	active, err := s.tc.GetResponseField("active")
	if err != nil {
		if want == 0 {
			return nil
		}
		return err
	}
	if fmt.Sprint(active) != fmt.Sprint(want) {
		return fmt.Errorf("expected %d active submissions, got %v", want, active)
	}
	return nil
}

func (s *submissionSteps) transition(name, verb string, notes *string) error {
	subID, err := s.tc.SubmissionID(name)
	if err != nil {
		return err
	}
	body := map[string]any{"status": targets[verb]}
	if notes != nil {
		body["reviewerNotes"] = *notes
	}
	return s.tc.PATCH("/admin/submissions/"+subID, body)
}

func (s *submissionSteps) transitionPlain(ctx context.Context, verb, name string) error {
	return s.transition(name, verb, nil)
}

func (s *submissionSteps) transitionWithNotes(ctx context.Context, verb, name, notes string) error {
	return s.transition(name, verb, &notes)
}

func (s *submissionSteps) batchTransition(ctx context.Context, verb, a, b, c string) error {
	ids := make([]string, 0, 3)
	for _, name := range []string{a, b, c} {
		subID, err := s.tc.SubmissionID(name)
		if err != nil {
			return err
		}
		ids = append(ids, subID)
	}
	return s.tc.POST("/admin/submissions/batch", map[string]any{"ids": ids, "status": targets[verb]}, true)
}

func (s *submissionSteps) fetchSubmission(ctx context.Context, name string) error {
	subID, err := s.tc.SubmissionID(name)
	if err != nil {
		return err
	}
	return s.tc.GET("/admin/submissions/"+subID, true)
}
