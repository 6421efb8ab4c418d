package quoteform

import (
	"reflect"
	"testing"
)

func TestValidateAcceptsCompleteRecord(t *testing.T) {
	result := Validate(validRecord(t))
	if !result.OK() {
		t.Fatalf("expected valid record, got %v", result.Err())
	}
	if result.Err() != nil {
		t.Fatalf("expected nil error, got %v", result.Err())
	}
}

func TestValidateIsPure(t *testing.T) {
	records := []Record{
		validRecord(t),
		NewRecord(),
		validRecord(t).With(Email, "not-an-email").With(Timeline, "someday"),
	}
	for _, r := range records {
		before := r
		first := Validate(r)
		second := Validate(r)
		if !reflect.DeepEqual(first, second) {
			t.Fatalf("validate returned different results: %v vs %v", first.Errors(), second.Errors())
		}
		if r != before {
			t.Fatal("validate mutated its input")
		}
	}
}

func TestValidateRejectsMalformedEmailOnly(t *testing.T) {
	result := Validate(validRecord(t).With(Email, "not-an-email"))
	errs := result.Errors()
	if len(errs) != 1 {
		t.Fatalf("expected exactly one error, got %v", errs)
	}
	if errs[0].Field != Email {
		t.Fatalf("expected error on email, got %s", errs[0].Field)
	}
	if errs[0].Reason != reasonEmail {
		t.Fatalf("unexpected reason %q", errs[0].Reason)
	}
}

func TestValidateAggregatesEveryRequiredField(t *testing.T) {
	result := Validate(NewRecord())
	want := []string{"fullName", "email", "phone", "serviceInterest", "projectType", "timeline", "location", "message"}
	if got := result.Errors().Fields(); !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestValidateTreatsWhitespaceAsEmpty(t *testing.T) {
	r := validRecord(t).With(FullName, "   ").With(Message, "\t\n").With(Location, " ")
	got := Validate(r).Errors()
	if want := []string{"fullName", "location", "message"}; !reflect.DeepEqual(got.Fields(), want) {
		t.Fatalf("expected %v, got %v", want, got.Fields())
	}
	for _, e := range got {
		if e.Reason != reasonRequired {
			t.Fatalf("expected required reason on %s, got %q", e.Field, e.Reason)
		}
	}
}

func TestValidateEmailPattern(t *testing.T) {
	cases := map[string]bool{
		"jane@example.com":    true,
		"j.doe+quotes@ex.co":  true,
		" jane@example.com ":  true,
		"jane@example":        false,
		"jane example@ex.com": false,
		"@example.com":        false,
		"jane@@example.com":   false,
		"":                    false,
	}
	for email, ok := range cases {
		result := Validate(validRecord(t).With(Email, email))
		if result.OK() != ok {
			t.Errorf("email %q: expected ok=%v, got errors %v", email, ok, result.Errors())
		}
	}
}

func TestValidateEnumerations(t *testing.T) {
	cases := []struct {
		name  string
		field Field
		value string
		ok    bool
	}{
		{"unknown service", ServiceInterest, "Landscaping", false},
		{"unknown project type", ProjectType, "Space", false},
		{"unknown timeline", Timeline, "yesterday", false},
		{"budget optional", BudgetRange, "", true},
		{"budget listed", BudgetRange, "Over $1,000,000", true},
		{"budget unlisted", BudgetRange, "a lot", false},
		{"contact method empty", ContactMethod, "", true},
		{"contact method phone", ContactMethod, "phone", true},
		{"contact method fax", ContactMethod, "fax", false},
		{"source referral", HearAboutUs, "referral", true},
		{"source unlisted", HearAboutUs, "radio", false},
		{"company free text", Company, "anything goes", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			errs := Validate(validRecord(t).With(tc.field, tc.value)).Errors()
			if tc.ok && len(errs) != 0 {
				t.Fatalf("expected valid, got %v", errs)
			}
			if !tc.ok {
				if len(errs) != 1 || errs[0].Field != tc.field || errs[0].Reason != reasonOption {
					t.Fatalf("expected one option error on %s, got %v", tc.field, errs)
				}
			}
		})
	}
}

func TestFieldErrorJSON(t *testing.T) {
	payload, err := FieldError{Field: Email, Reason: reasonEmail}.MarshalJSON()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if want := `{"field":"email","reason":"must be a valid email address"}`; string(payload) != want {
		t.Fatalf("expected %s, got %s", want, payload)
	}
}
