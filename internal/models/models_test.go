package models

import (
	"testing"
	"time"
)

func TestTrialExpired(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	cases := []struct {
		name   string
		tenant Tenant
		want   bool
	}{
		{"no trial date", Tenant{}, false},
		{"in trial", Tenant{TrialEndsAt: &future}, false},
		{"lapsed", Tenant{TrialEndsAt: &past}, true},
		{"lapsed but subscribed", Tenant{TrialEndsAt: &past, SubscribedAt: &now}, false},
	}
	for _, tc := range cases {
		if got := tc.tenant.TrialExpired(now); got != tc.want {
			t.Errorf("%s: expected %t got %t", tc.name, tc.want, got)
		}
	}
}

func TestEligibleForAutoReply(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	on := Tenant{AutoReplyEnabled: true, TrialEndsAt: &future}
	if !on.EligibleForAutoReply(now) {
		t.Fatalf("enabled in-trial tenant must be eligible")
	}
	off := Tenant{AutoReplyEnabled: false, TrialEndsAt: &future}
	if off.EligibleForAutoReply(now) {
		t.Fatalf("disabled tenant must not be eligible")
	}
	expired := Tenant{AutoReplyEnabled: true, TrialEndsAt: &past}
	if expired.EligibleForAutoReply(now) {
		t.Fatalf("expired trial must not be eligible")
	}
}

func TestContactLooksLikeEmail(t *testing.T) {
	cases := []struct {
		contact string
		want    bool
	}{
		{"mario@example.com", true},
		{" mario@example.com ", true},
		{"555-0100", false},
		{"call mario@example.com", false},
		{"@example.com", false},
		{"mario@localhost", false},
		{"", false},
	}
	for _, tc := range cases {
		got := Tenant{Contact: tc.contact}.ContactLooksLikeEmail()
		if got != tc.want {
			t.Errorf("ContactLooksLikeEmail(%q) = %t, expected %t", tc.contact, got, tc.want)
		}
	}
}

func TestMergeTenant(t *testing.T) {
	five := 5
	name := "New Name"
	prior := Tenant{
		ID: "t1", Name: "Old Name", Contact: "old@example.com",
		AutoReplyEnabled: true,
	}
	out := MergeTenant(prior, TenantPatch{ID: "t1", Name: &name, IntervalMinutes: &five})

	if out.Name != "New Name" {
		t.Fatalf("patched field must win: %+v", out)
	}
	if out.Contact != "old@example.com" || !out.AutoReplyEnabled {
		t.Fatalf("nil patch fields must keep prior values: %+v", out)
	}
	if out.IntervalMinutes == nil || *out.IntervalMinutes != 5 {
		t.Fatalf("expected interval set: %+v", out)
	}
}

func TestReplyStateAddDedupes(t *testing.T) {
	var s ReplyState
	s.Add("r1")
	s.Add("r1")
	s.Add("r2")
	if len(s.RepliedReviewIDs) != 2 {
		t.Fatalf("expected 2 unique IDs got %v", s.RepliedReviewIDs)
	}
	if !s.Contains("r1") || s.Contains("r9") {
		t.Fatalf("Contains wrong: %v", s.RepliedReviewIDs)
	}
}
