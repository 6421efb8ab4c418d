package quoteform

import (
	"errors"
	"math/rand"
	"testing"
)

func TestNewRecordDefaults(t *testing.T) {
	r := NewRecord()
	m := r.Map()
	if len(m) != len(Fields()) {
		t.Fatalf("expected %d keys, got %d", len(Fields()), len(m))
	}
	for name, value := range m {
		if name == "contactMethod" {
			if value != "both" {
				t.Fatalf("expected contactMethod default both, got %q", value)
			}
			continue
		}
		if value != "" {
			t.Fatalf("expected %s to be empty, got %q", name, value)
		}
	}
}

func TestSetFieldKeepsDeclaredFieldSet(t *testing.T) {
	names := make([]string, 0, len(Fields())+3)
	for _, f := range Fields() {
		names = append(names, f.String())
	}
	names = append(names, "FullName", "notes", "")

	rng := rand.New(rand.NewSource(42))
	s := NewStore()
	for i := 0; i < 500; i++ {
		name := names[rng.Intn(len(names))]
		_ = s.SetField(name, string(rune('a'+rng.Intn(26))))

		pairs := s.Snapshot().Pairs()
		if len(pairs) != len(Fields()) {
			t.Fatalf("step %d: expected %d fields, got %d", i, len(Fields()), len(pairs))
		}
		for j, f := range Fields() {
			if pairs[j].Name != f.String() {
				t.Fatalf("step %d: field %d is %q, want %q", i, j, pairs[j].Name, f.String())
			}
		}
	}
}

func TestSetFieldReplacesOnlyNamedField(t *testing.T) {
	s := validStore(t)
	before := s.Snapshot()

	if err := s.SetField("company", "Acme"); err != nil {
		t.Fatalf("set company: %v", err)
	}

	after := s.Snapshot()
	for _, f := range Fields() {
		if f == Company {
			if after.Get(f) != "Acme" {
				t.Fatalf("company not updated: %q", after.Get(f))
			}
			continue
		}
		if after.Get(f) != before.Get(f) {
			t.Fatalf("%s changed from %q to %q", f, before.Get(f), after.Get(f))
		}
	}
}

func TestSetFieldRejectsUnknownName(t *testing.T) {
	s := validStore(t)
	before, rev := s.Snapshot(), s.Revision()

	err := s.SetField("favouriteColour", "blue")
	var unknown *UnknownFieldError
	if !errors.As(err, &unknown) {
		t.Fatalf("expected UnknownFieldError, got %v", err)
	}
	if unknown.Name != "favouriteColour" {
		t.Fatalf("unexpected name %q", unknown.Name)
	}
	if s.Snapshot() != before || s.Revision() != rev {
		t.Fatal("record changed after rejected update")
	}
}

func TestSetFieldsIsAllOrNothing(t *testing.T) {
	s := NewStore()
	err := s.SetFields(map[string]string{"fullName": "Jane", "budget": "lots"})
	if err == nil {
		t.Fatal("expected error for unknown field")
	}
	if !s.Snapshot().IsDefault() {
		t.Fatal("expected no field to be applied")
	}
}

func TestSetFieldRequiresExactName(t *testing.T) {
	s := NewStore()
	rev := s.Revision()

	err := s.SetField(" fullName ", "x")
	var unknown *UnknownFieldError
	if !errors.As(err, &unknown) {
		t.Fatalf("expected UnknownFieldError, got %v", err)
	}
	if got := s.Snapshot().Get(FullName); got != "" {
		t.Fatalf("padded name must not write fullName, got %q", got)
	}
	if s.Revision() != rev {
		t.Fatal("rejected write bumped the revision")
	}
}

func TestResetRestoresDefaults(t *testing.T) {
	s := validStore(t)
	if err := s.SetField("contactMethod", "phone"); err != nil {
		t.Fatalf("set contactMethod: %v", err)
	}
	rev := s.Revision()

	s.Reset()

	if !s.Snapshot().IsDefault() {
		t.Fatalf("expected defaults, got %v", s.Snapshot().Map())
	}
	if got := s.Snapshot().Get(ContactMethod); got != DefaultContactMethod {
		t.Fatalf("expected contactMethod %q, got %q", DefaultContactMethod, got)
	}
	if s.Revision() <= rev {
		t.Fatal("expected reset to bump the revision")
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	s := validStore(t)
	snap := s.Snapshot()
	s.Set(FullName, "John Roe")
	if snap.Get(FullName) != "Jane Doe" {
		t.Fatalf("snapshot changed with the store: %q", snap.Get(FullName))
	}
}

func TestRecordMarshalJSONKeepsDeclarationOrder(t *testing.T) {
	payload, err := NewRecord().With(FullName, `Jane "JD" Doe`).MarshalJSON()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"fullName":"Jane \"JD\" Doe","email":"","phone":"","company":"","serviceInterest":"","projectType":"","timeline":"","budgetRange":"","location":"","message":"","contactMethod":"both","hearAboutUs":""}`
	if string(payload) != want {
		t.Fatalf("unexpected json:\n got %s\nwant %s", payload, want)
	}
}

func TestParseFieldAndCatalog(t *testing.T) {
	f, err := ParseField("serviceInterest")
	if err != nil || f != ServiceInterest {
		t.Fatalf("expected ServiceInterest, got %v, %v", f, err)
	}
	for _, name := range []string{" serviceInterest ", "ServiceInterest", "serviceinterest"} {
		if _, err := ParseField(name); err == nil {
			t.Fatalf("expected %q to be rejected", name)
		}
	}

	catalog := Catalog()
	if len(catalog) != 12 {
		t.Fatalf("expected 12 fields, got %d", len(catalog))
	}
	required := 0
	for _, entry := range catalog {
		if entry.Required {
			required++
		}
	}
	if required != 8 {
		t.Fatalf("expected 8 required fields, got %d", required)
	}
	if catalog[ContactMethod].Default != "both" || len(catalog[ContactMethod].Options) != 3 {
		t.Fatalf("unexpected contactMethod entry: %+v", catalog[ContactMethod])
	}
	if catalog[Company].Options != nil {
		t.Fatal("free text field should not list options")
	}
}
