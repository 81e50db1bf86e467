package domain

import (
	"errors"
	"testing"
)

func validIntake() TicketIntakeRequest {
	return TicketIntakeRequest{
		Source:         SourceWebForm,
		Title:          "Printer jams on floor 3",
		Description:    "Paper jams every few pages on the HP in room 312.",
		RequesterEmail: "pat@example.com",
		RequesterName:  "Pat",
	}
}

func TestIntakeValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*TicketIntakeRequest)
		wantErr string
	}{
		{"valid", func(r *TicketIntakeRequest) {}, ""},
		{"unknown source", func(r *TicketIntakeRequest) { r.Source = "carrier_pigeon" }, "source"},
		{"missing title", func(r *TicketIntakeRequest) { r.Title = "  " }, "title"},
		{"missing description", func(r *TicketIntakeRequest) { r.Description = "" }, "description"},
		{"malformed email", func(r *TicketIntakeRequest) { r.RequesterEmail = "not-an-address" }, "requester_email"},
		{"empty email", func(r *TicketIntakeRequest) { r.RequesterEmail = "" }, "requester_email"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validIntake()
			tt.mutate(&req)
			err := req.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var fieldErr *FieldError
			if !errors.As(err, &fieldErr) {
				t.Fatalf("expected FieldError, got %v", err)
			}
			if fieldErr.Field != tt.wantErr {
				t.Errorf("expected error on field %q, got %q", tt.wantErr, fieldErr.Field)
			}
		})
	}
}

func TestIntakeNormalizeTrims(t *testing.T) {
	req := validIntake()
	req.Title = "  VPN drops  "
	req.Description = "\tDisconnects hourly.\n"
	req.RequesterEmail = " pat@example.com "
	req.ExternalID = " GLPI-9 "

	if err := req.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Title != "VPN drops" {
		t.Errorf("title not trimmed: %q", req.Title)
	}
	if req.Description != "Disconnects hourly." {
		t.Errorf("description not trimmed: %q", req.Description)
	}
	if req.RequesterEmail != "pat@example.com" {
		t.Errorf("email not trimmed: %q", req.RequesterEmail)
	}
	if req.ExternalID != "GLPI-9" {
		t.Errorf("external id not trimmed: %q", req.ExternalID)
	}
}
