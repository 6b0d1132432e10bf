package service

import (
	"context"
	"fmt"
	"time"

	"podium/internal/registration/models"
	"podium/internal/registration/roster"
	id "podium/pkg/domain"
	"podium/pkg/requestcontext"
)

var (
	fixedNow  = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	testAdmin = id.NewAdminID()
)

// adminCtx carries a fixed clock and an authenticated moderator.
func adminCtx() context.Context {
	ctx := requestcontext.WithTime(context.Background(), fixedNow)
	ctx = requestcontext.WithRequestID(ctx, "req-test")
	return requestcontext.WithAdminID(ctx, testAdmin)
}

func publicCtx() context.Context {
	return requestcontext.WithTime(context.Background(), fixedNow)
}

func ptr[T any](v T) *T { return &v }

func openEvent(maxParticipants int) CreateEventCommand {
	return CreateEventCommand{
		Name:             "Robotics Cup",
		Kind:             models.EventKindCompetition,
		MaxParticipants:  maxParticipants,
		Deadline:         ptr(fixedNow.Add(24 * time.Hour)),
		RegistrationOpen: true,
	}
}

func submitFor(eventID id.EventID, team string) SubmitCommand {
	return SubmitCommand{
		EventID:     eventID,
		Kind:        models.KindRegistration,
		Title:       team,
		Institution: "Northside High",
		Contact:     models.Contact{Name: "Grace Hopper", Email: "grace@example.com"},
		Members: []roster.MemberInput{
			{Name: "Grace Hopper", Identifier: fmt.Sprintf("%s-lead", team), Role: models.RoleLeader},
			{Name: "Alan Turing", Identifier: fmt.Sprintf("%s-m1", team)},
		},
	}
}
