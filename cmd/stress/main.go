// cmd/stress/main.go
//
// Concurrent-writer harness for the meetings service. It drives many
// simulated users against the HTTP API at once and then verifies that
// the aggregate invariants held: capacity never exceeded, exactly one
// owner, availability entries only for approved participants, no lost
// availability writes. Point it at a running service with MEETINGS_URL,
// or let it spin up an in-process server over the in-memory store.
package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"campusmeet/internal/clients"
	"campusmeet/internal/meeting"
	"campusmeet/internal/schedule"
	"campusmeet/internal/store"
)

type scenario struct {
	Name string
	Run  func(ctx context.Context, c *clients.MeetingsClient) error
}

func main() {
	baseURL := os.Getenv("MEETINGS_URL")
	if baseURL == "" {
		svc := meeting.NewService(store.NewMemoryStore(), store.NewBroadcaster(), nil, nil)
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			log.Fatalf("listen: %v", err)
		}
		server := &http.Server{Handler: meeting.NewHandler(svc).Routes()}
		go server.Serve(ln)
		defer server.Close()
		baseURL = "http://" + ln.Addr().String()
		log.Printf("no MEETINGS_URL set, using in-process server at %s", baseURL)
	}

	writers := 8
	if v := os.Getenv("STRESS_WRITERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			log.Fatalf("invalid STRESS_WRITERS %q", v)
		}
		writers = n
	}

	client := clients.NewMeetingsClient(baseURL)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	scenarios := []scenario{
		{Name: "capacity under concurrent approvals", Run: func(ctx context.Context, c *clients.MeetingsClient) error {
			return capacityScenario(ctx, c, writers)
		}},
		{Name: "availability writes never clobber", Run: func(ctx context.Context, c *clients.MeetingsClient) error {
			return availabilityScenario(ctx, c, writers)
		}},
	}

	failed := 0
	for _, sc := range scenarios {
		start := time.Now()
		err := sc.Run(ctx, client)
		if err != nil {
			failed++
			log.Printf("FAIL %s (%s): %v", sc.Name, time.Since(start).Round(time.Millisecond), err)
			continue
		}
		log.Printf("PASS %s (%s)", sc.Name, time.Since(start).Round(time.Millisecond))
	}
	if failed > 0 {
		os.Exit(1)
	}
}

// capacityScenario files more requests than there are seats, approves
// them all concurrently, and checks that the cap held.
func capacityScenario(ctx context.Context, c *clients.MeetingsClient, writers int) error {
	const seats = 3
	m, err := c.CreateMeeting(ctx, "owner", meeting.CreateMeetingInput{
		Title:           "Capacity stress",
		MaxParticipants: seats,
	})
	if err != nil {
		return fmt.Errorf("create meeting: %w", err)
	}

	users := make([]string, writers)
	for i := range users {
		users[i] = fmt.Sprintf("user-%d", i)
		if err := c.RequestJoin(ctx, users[i], m.ID, meeting.JoinInfo{}); err != nil {
			return fmt.Errorf("request join %s: %w", users[i], err)
		}
	}

	var wg sync.WaitGroup
	for _, user := range users {
		wg.Add(1)
		go func(user string) {
			defer wg.Done()
			// Rejections past capacity are the expected outcome.
			_ = c.DecideJoinRequest(ctx, "owner", m.ID, user, meeting.DecisionApprove)
		}(user)
	}
	wg.Wait()

	final, err := c.GetMeeting(ctx, "owner", m.ID)
	if err != nil {
		return fmt.Errorf("get meeting: %w", err)
	}
	return checkInvariants(final)
}

// availabilityScenario has every approved user submit a distinct
// selection concurrently and checks that no write was lost.
func availabilityScenario(ctx context.Context, c *clients.MeetingsClient, writers int) error {
	m, err := c.CreateMeeting(ctx, "owner", meeting.CreateMeetingInput{Title: "Availability stress"})
	if err != nil {
		return fmt.Errorf("create meeting: %w", err)
	}

	all := schedule.AllSlots()
	users := make([]string, writers)
	for i := range users {
		users[i] = fmt.Sprintf("user-%d", i)
		if err := c.RequestJoin(ctx, users[i], m.ID, meeting.JoinInfo{}); err != nil {
			return fmt.Errorf("request join: %w", err)
		}
		if err := c.DecideJoinRequest(ctx, "owner", m.ID, users[i], meeting.DecisionApprove); err != nil {
			return fmt.Errorf("approve: %w", err)
		}
	}

	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i, user := range users {
		wg.Add(1)
		go func(i int, user string) {
			defer wg.Done()
			slot := all[i%len(all)]
			if err := c.SubmitAvailability(ctx, user, m.ID, []schedule.SlotID{slot}); err != nil {
				errs <- fmt.Errorf("submit %s: %w", user, err)
			}
		}(i, user)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		return err
	}

	final, err := c.GetMeeting(ctx, "owner", m.ID)
	if err != nil {
		return fmt.Errorf("get meeting: %w", err)
	}
	for _, user := range users {
		if len(final.Availability[user]) != 1 {
			return fmt.Errorf("lost availability write for %s", user)
		}
	}
	return checkInvariants(final)
}

func checkInvariants(m *meeting.Meeting) error {
	owners := 0
	seen := make(map[string]bool)
	for _, p := range m.Participants {
		if seen[p.UserID] {
			return fmt.Errorf("duplicate participant %q", p.UserID)
		}
		seen[p.UserID] = true
		if p.Status == meeting.StatusOwner {
			owners++
		}
	}
	if owners != 1 {
		return fmt.Errorf("expected exactly one owner, found %d", owners)
	}
	if m.MaxParticipants > 0 && m.ApprovedCount() > m.MaxParticipants {
		return fmt.Errorf("capacity exceeded: %d of %d", m.ApprovedCount(), m.MaxParticipants)
	}
	for user := range m.Availability {
		if !m.IsApprovedParticipant(user) {
			return fmt.Errorf("availability entry for non-approved user %q", user)
		}
	}
	return nil
}
