package quoteform

// Field identifies one declared input of the quote request form.
type Field int

// Declaration order is significant: records, snapshots and validation
// errors are always reported in this order.
const (
	FullName Field = iota
	Email
	Phone
	Company
	ServiceInterest
	ProjectType
	Timeline
	BudgetRange
	Location
	Message
	ContactMethod
	HearAboutUs

	fieldCount
)

// DefaultContactMethod is the value ContactMethod holds in a fresh record.
const DefaultContactMethod = "both"

var fieldNames = [fieldCount]string{
	FullName:        "fullName",
	Email:           "email",
	Phone:           "phone",
	Company:         "company",
	ServiceInterest: "serviceInterest",
	ProjectType:     "projectType",
	Timeline:        "timeline",
	BudgetRange:     "budgetRange",
	Location:        "location",
	Message:         "message",
	ContactMethod:   "contactMethod",
	HearAboutUs:     "hearAboutUs",
}

var fieldLabels = [fieldCount]string{
	FullName:        "Full Name",
	Email:           "Email Address",
	Phone:           "Phone Number",
	Company:         "Company/Organization",
	ServiceInterest: "Service Interest",
	ProjectType:     "Project Type",
	Timeline:        "Project Timeline",
	BudgetRange:     "Budget Range",
	Location:        "Project Location",
	Message:         "Project Details",
	ContactMethod:   "Preferred Contact Method",
	HearAboutUs:     "How did you hear about us?",
}

var requiredFields = [fieldCount]bool{
	FullName:        true,
	Email:           true,
	Phone:           true,
	ServiceInterest: true,
	ProjectType:     true,
	Timeline:        true,
	Location:        true,
	Message:         true,
}

var fieldsByName = func() map[string]Field {
	m := make(map[string]Field, fieldCount)
	for f := Field(0); f < fieldCount; f++ {
		m[fieldNames[f]] = f
	}
	return m
}()

// FieldOption is one selectable value of an enumerated field.
type FieldOption struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

func sameLabel(values ...string) []FieldOption {
	opts := make([]FieldOption, 0, len(values))
	for _, v := range values {
		opts = append(opts, FieldOption{Value: v, Label: v})
	}
	return opts
}

var (
	services = sameLabel(
		"Directional Boring",
		"Utility Installation",
		"Civil Construction",
		"Pile Installation",
		"Water & Sewer Treatment",
		"General Consultation",
	)
	projectTypes = sameLabel(
		"Residential",
		"Commercial",
		"Industrial",
		"Municipal",
		"Emergency/Repair",
	)
	timelines = sameLabel(
		"Immediate (Emergency)",
		"1-3 months",
		"3-6 months",
		"6-12 months",
		"More than 12 months",
		"Planning phase",
	)
	budgetRanges = sameLabel(
		"Under $50,000",
		"$50,000 - $100,000",
		"$100,000 - $500,000",
		"$500,000 - $1,000,000",
		"Over $1,000,000",
		"Prefer not to specify",
	)
	contactMethods = []FieldOption{
		{Value: "phone", Label: "Phone"},
		{Value: "email", Label: "Email"},
		{Value: "both", Label: "Both Phone & Email"},
	}
	hearAboutUsSources = []FieldOption{
		{Value: "google", Label: "Google Search"},
		{Value: "referral", Label: "Referral"},
		{Value: "social", Label: "Social Media"},
		{Value: "website", Label: "Company Website"},
		{Value: "advertisement", Label: "Advertisement"},
		{Value: "other", Label: "Other"},
	}
)

var fieldOptions = [fieldCount][]FieldOption{
	ServiceInterest: services,
	ProjectType:     projectTypes,
	Timeline:        timelines,
	BudgetRange:     budgetRanges,
	ContactMethod:   contactMethods,
	HearAboutUs:     hearAboutUsSources,
}

// Fields returns every declared field in declaration order.
func Fields() []Field {
	out := make([]Field, fieldCount)
	for i := range out {
		out[i] = Field(i)
	}
	return out
}

// ParseField maps a wire name such as "fullName" to its Field. Matching is
// exact and case-sensitive.
func ParseField(name string) (Field, error) {
	if f, ok := fieldsByName[name]; ok {
		return f, nil
	}
	return 0, &UnknownFieldError{Name: name}
}

// Valid reports whether f is one of the declared fields.
func (f Field) Valid() bool {
	return f >= 0 && f < fieldCount
}

// String returns the wire name of the field.
func (f Field) String() string {
	if !f.Valid() {
		return "unknown"
	}
	return fieldNames[f]
}

// Label returns the human readable caption of the field.
func (f Field) Label() string {
	if !f.Valid() {
		return ""
	}
	return fieldLabels[f]
}

// Required reports whether a submission must carry a non-empty value.
func (f Field) Required() bool {
	return f.Valid() && requiredFields[f]
}

// Options returns the allowed values of an enumerated field, or nil for free text.
func (f Field) Options() []FieldOption {
	if !f.Valid() || fieldOptions[f] == nil {
		return nil
	}
	return append([]FieldOption(nil), fieldOptions[f]...)
}

// Allows reports whether value is an accepted option of an enumerated field.
// Free-text fields accept anything.
func (f Field) Allows(value string) bool {
	if !f.Valid() {
		return false
	}
	opts := fieldOptions[f]
	if opts == nil {
		return true
	}
	for _, opt := range opts {
		if opt.Value == value {
			return true
		}
	}
	return false
}

func (f Field) defaultValue() string {
	if f == ContactMethod {
		return DefaultContactMethod
	}
	return ""
}

// FieldSpec describes one field for a presentation layer.
type FieldSpec struct {
	Name     string        `json:"name"`
	Label    string        `json:"label"`
	Required bool          `json:"required"`
	Default  string        `json:"default,omitempty"`
	Options  []FieldOption `json:"options,omitempty"`
}

// Catalog lists every field with its label, requirement and options.
func Catalog() []FieldSpec {
	specs := make([]FieldSpec, 0, fieldCount)
	for _, f := range Fields() {
		specs = append(specs, FieldSpec{
			Name:     f.String(),
			Label:    f.Label(),
			Required: f.Required(),
			Default:  f.defaultValue(),
			Options:  f.Options(),
		})
	}
	return specs
}
