package membership

import (
	"context"
	"fmt"

	"github.com/real-rm/linkup/internal/message"
)

// MemberLister lists the users of a room.
type MemberLister interface {
	Members(ctx context.Context, roomID string) ([]string, error)
}

// StaffLister lists staff user ids.
type StaffLister interface {
	ListStaff(ctx context.Context) ([]string, error)
}

// OnlineChecker reports live presence.
type OnlineChecker interface {
	IsConnected(userID string) bool
}

// Broadcaster delivers one payload to a list of users.
type Broadcaster interface {
	BroadcastToUsers(ctx context.Context, ids []string, payload message.Payload) int
}

// Delivery describes one event to route.
type Delivery struct {
	RoomID        string
	Class         Class
	SenderID      string
	SenderIsStaff bool
	// ReceiverID addresses a self-isolated message to one user.
	ReceiverID string
}

// Policy is the single routing table keyed by room class.
type Policy struct {
	members MemberLister
	staff   StaffLister
	online  OnlineChecker
	out     Broadcaster
}

// NewPolicy wires the policy. online may be nil, in which case every staff
// user counts as on duty.
func NewPolicy(members MemberLister, staff StaffLister, online OnlineChecker, out Broadcaster) *Policy {
	return &Policy{members: members, staff: staff, online: online, out: out}
}

// Audience resolves the user ids that receive d. The sender is always included.
func (p *Policy) Audience(ctx context.Context, d Delivery) ([]string, error) {
	switch d.Class {
	case ClassAIPersonal:
		return dedupe(d.SenderID, d.ReceiverID), nil

	case ClassSupport:
		staff, err := p.staff.ListStaff(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list staff: %w", err)
		}
		if !d.SenderIsStaff {
			return dedupe(append([]string{d.SenderID}, staff...)...), nil
		}
		ids := []string{d.SenderID, d.ReceiverID}
		for _, id := range staff {
			if id == d.SenderID {
				continue
			}
			// No else needed: optional operation (offline staff are skipped)
			if p.online == nil || p.online.IsConnected(id) {
				ids = append(ids, id)
			}
		}
		return dedupe(ids...), nil

	default:
		ids, err := p.members.Members(ctx, d.RoomID)
		if err != nil {
			return nil, err
		}
		return dedupe(append(ids, d.SenderID)...), nil
	}
}

// Deliver resolves the audience of d and sends payload to it. It returns the
// number of connections that accepted the frame.
func (p *Policy) Deliver(ctx context.Context, d Delivery, payload message.Payload) (int, error) {
	ids, err := p.Audience(ctx, d)
	if err != nil {
		return 0, err
	}
	return p.out.BroadcastToUsers(ctx, ids, payload), nil
}

// DeliverToUsers sends payload to ids without resolving a room.
func (p *Policy) DeliverToUsers(ctx context.Context, ids []string, payload message.Payload) int {
	return p.out.BroadcastToUsers(ctx, ids, payload)
}

// Staff returns every staff user id.
func (p *Policy) Staff(ctx context.Context) ([]string, error) {
	return p.staff.ListStaff(ctx)
}

// OnlineStaff returns the staff users with a live connection, except skip.
func (p *Policy) OnlineStaff(ctx context.Context, skip string) ([]string, error) {
	staff, err := p.staff.ListStaff(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list staff: %w", err)
	}
	out := make([]string, 0, len(staff))
	for _, id := range staff {
		if id == skip {
			continue
		}
		if p.online == nil || p.online.IsConnected(id) {
			out = append(out, id)
		}
	}
	return out, nil
}

// Members lists the room's users.
func (p *Policy) Members(ctx context.Context, roomID string) ([]string, error) {
	return p.members.Members(ctx, roomID)
}

func dedupe(ids ...string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
