package model

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestParseTimeOfDay(t *testing.T) {
	tests := []struct {
		in      string
		want    TimeOfDay
		wantErr bool
	}{
		{in: "10:00", want: TimeOfDay{Hour: 10}},
		{in: "23:59", want: TimeOfDay{Hour: 23, Minute: 59}},
		{in: "00:05", want: TimeOfDay{Minute: 5}},
		{in: "24:00", wantErr: true},
		{in: "10:60", wantErr: true},
		{in: "9:00", wantErr: true},
		{in: "ab:cd", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTimeOfDay(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ParseTimeOfDay mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.in, got.String()); diff != "" {
				t.Errorf("String mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDateArithmetic(t *testing.T) {
	d := Date{Year: 2024, Month: time.March, Day: 1}

	if diff := cmp.Diff("2024-02-29", d.AddDays(-1).String()); diff != "" {
		t.Errorf("AddDays(-1) mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff("2024-03-08", d.AddDays(7).String()); diff != "" {
		t.Errorf("AddDays(7) mismatch (-want +got):\n%s", diff)
	}
	if !d.AddDays(-1).Before(d) {
		t.Error("expected previous day to be before")
	}
	if d.Before(d) {
		t.Error("date must not be before itself")
	}

	parsed, err := ParseDate("2024-03-01")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if diff := cmp.Diff(d, parsed); diff != "" {
		t.Errorf("ParseDate mismatch (-want +got):\n%s", diff)
	}
}

func TestCategoriesDifference(t *testing.T) {
	declared := NewCategories(CategoryCash, CategorySafe, CategoryReceipts)
	reported := NewCategories(CategoryCash, Category("mystery"))

	got := declared.Difference(reported).Sorted()
	want := []Category{CategorySafe, CategoryReceipts}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Difference mismatch (-want +got):\n%s", diff)
	}
}

func TestMention(t *testing.T) {
	tests := []struct {
		name string
		user TrackedUser
		want string
	}{
		{name: "username", user: TrackedUser{UserID: 1, Username: "alice", DisplayName: "Store1"}, want: "@alice"},
		{name: "display name", user: TrackedUser{UserID: 1, DisplayName: "Store1"}, want: "Store1"},
		{name: "id fallback", user: TrackedUser{UserID: 42}, want: "id42"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, tt.user.Mention()); diff != "" {
				t.Errorf("Mention mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
