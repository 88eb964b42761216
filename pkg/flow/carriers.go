package flow

import (
	"context"
	"regexp"
	"strings"

	"github.com/quotelane/quotelane/pkg/classify"
	"github.com/quotelane/quotelane/pkg/session"
	"github.com/quotelane/quotelane/pkg/snapshot"
)

// Builtin carrier flows. These are data, not code: each carrier is a
// classifier, a step-handler table and field factories wired into the one
// generic engine. Adding a carrier means adding a function like these.

const (
	StepPersonalInfo      = "personal_info"
	StepAddressInfo       = "address_info"
	StepVehicleInfo       = "vehicle_info"
	StepVehicleAndAddress = "vehicle_and_address"
	StepDriverDetails     = "driver_details"
	StepCoverageSelection = "coverage_selection"
)

// BuiltinCarriers returns the carrier flows shipped with the engine.
func BuiltinCarriers() []*Carrier {
	return []*Carrier{
		SentinelCarrier(),
		PacificCarrier(),
	}
}

// SentinelCarrier is the flow for Sentinel Mutual's quote funnel: a
// classic five-page form with a zip-code teaser on the landing page.
// Sentinel occasionally serves vehicle and address questions merged onto
// one page, which classifies as its own step.
func SentinelCarrier() *Carrier {
	c := &Carrier{
		ID:       "sentinel",
		Name:     "Sentinel Mutual",
		StartURL: "https://quote.sentinelmutual.example/start",
		Classifier: classify.New().
			WithCombined(StepVehicleAndAddress,
				[]string{"vehicle", "make", "model"},
				[]string{"street", "address", "city"}).
			WithURL("/about-you", StepPersonalInfo).
			WithURL("/address", StepAddressInfo).
			WithURL("/vehicle", StepVehicleInfo).
			WithURL("/drivers", StepDriverDetails).
			WithTitle("Tell us about yourself", StepPersonalInfo).
			WithText(StepDriverDetails, "driving history", "license"),
		ExtractQuote: quoteExtractor("sentinel", "your personalized rate"),
	}

	c.Fields = map[string]func() []FieldDef{
		StepPersonalInfo:      personalInfoFields,
		StepAddressInfo:       addressFields,
		StepVehicleInfo:       vehicleFields,
		StepVehicleAndAddress: func() []FieldDef { return append(vehicleFields(), addressFields()...) },
		StepDriverDetails:     driverFields,
	}

	c.Bootstrap = func(ctx context.Context, sc *StepContext) (*Outcome, error) {
		// Landing page wants just a zip code before revealing the form.
		if err := sc.Fill(ctx, "zipcode"); err != nil {
			return nil, err
		}
		return c.Advance(ctx, sc)
	}

	c.Steps = map[string]Handler{
		StepPersonalInfo: func(ctx context.Context, sc *StepContext) (*Outcome, error) {
			if err := sc.FillAll(ctx, "firstName", "lastName", "email", "phone", "dateOfBirth"); err != nil {
				return nil, err
			}
			return c.Advance(ctx, sc)
		},
		StepAddressInfo: func(ctx context.Context, sc *StepContext) (*Outcome, error) {
			if err := sc.FillAll(ctx, "street", "apt", "city", "state", "zipcode"); err != nil {
				return nil, err
			}
			return c.Advance(ctx, sc)
		},
		StepVehicleInfo: func(ctx context.Context, sc *StepContext) (*Outcome, error) {
			if err := sc.FillAll(ctx, "vehicleYear", "vehicleMake", "vehicleModel", "vehicleOwnership"); err != nil {
				return nil, err
			}
			return c.Advance(ctx, sc)
		},
		StepVehicleAndAddress: func(ctx context.Context, sc *StepContext) (*Outcome, error) {
			// Merged page: both halves in one pass, address first because
			// Sentinel re-validates zip against the teaser value.
			if err := sc.FillAll(ctx, "street", "city", "state", "zipcode"); err != nil {
				return nil, err
			}
			if err := sc.FillAll(ctx, "vehicleYear", "vehicleMake", "vehicleModel"); err != nil {
				return nil, err
			}
			return c.Advance(ctx, sc)
		},
		StepDriverDetails: func(ctx context.Context, sc *StepContext) (*Outcome, error) {
			if err := sc.FillAll(ctx, "gender", "maritalStatus", "licenseAge", "priorInsurance"); err != nil {
				return nil, err
			}
			return c.Advance(ctx, sc)
		},
	}
	return c
}

// PacificCarrier is the flow for Pacific Shield: a shorter funnel that
// asks for coverage preferences before quoting and keeps one URL for the
// whole flow, so classification leans on titles and text.
func PacificCarrier() *Carrier {
	c := &Carrier{
		ID:       "pacific",
		Name:     "Pacific Shield",
		StartURL: "https://www.pacificshield.example/auto/quote",
		MaxSteps: 10,
		Classifier: classify.New().
			WithTitle("About You", StepPersonalInfo).
			WithTitle("Your Vehicle", StepVehicleInfo).
			WithTitle("Coverage Options", StepCoverageSelection).
			WithText(StepPersonalInfo, "first name", "last name").
			WithText(StepVehicleInfo, "vehicle year").
			WithText(StepCoverageSelection, "deductible"),
		ExtractQuote: quoteExtractor("pacific", "your quote"),
	}

	c.Fields = map[string]func() []FieldDef{
		StepPersonalInfo:      personalInfoFields,
		StepVehicleInfo:       vehicleFields,
		StepCoverageSelection: coverageFields,
	}

	c.Steps = map[string]Handler{
		StepPersonalInfo: func(ctx context.Context, sc *StepContext) (*Outcome, error) {
			if err := sc.FillAll(ctx, "firstName", "lastName", "email", "dateOfBirth", "zipcode"); err != nil {
				return nil, err
			}
			return c.Advance(ctx, sc)
		},
		StepVehicleInfo: func(ctx context.Context, sc *StepContext) (*Outcome, error) {
			if err := sc.FillAll(ctx, "vehicleYear", "vehicleMake", "vehicleModel"); err != nil {
				return nil, err
			}
			return c.Advance(ctx, sc)
		},
		StepCoverageSelection: func(ctx context.Context, sc *StepContext) (*Outcome, error) {
			if err := sc.FillAll(ctx, "coverageLevel", "deductible"); err != nil {
				return nil, err
			}
			return c.Advance(ctx, sc)
		},
	}
	return c
}

var priceRe = regexp.MustCompile(`\$\d{1,5}(?:,\d{3})*(?:\.\d{2})?`)

// quoteExtractor builds a QuoteExtractor that fires only when the page
// carries the carrier's results marker, then lifts the first price figure
// from the visible text exactly as rendered.
func quoteExtractor(carrierID, marker string) QuoteExtractor {
	return func(snap *snapshot.Snapshot) *session.Quote {
		if !snap.ContainsText(marker) {
			return nil
		}
		price := priceRe.FindString(snap.Text)
		if price == "" {
			return nil
		}
		return &session.Quote{
			Carrier: carrierID,
			Price:   price,
			Term:    quoteTerm(snap.Text),
		}
	}
}

func quoteTerm(text string) string {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "/yr") || strings.Contains(lower, "per year") || strings.Contains(lower, "annually"):
		return "year"
	case strings.Contains(lower, "6-month") || strings.Contains(lower, "six month"):
		return "6-month"
	default:
		return "month"
	}
}

func personalInfoFields() []FieldDef {
	return []FieldDef{
		{Name: "firstName", Label: "First name", Kind: KindText, Required: true, MaxLength: 50},
		{Name: "lastName", Label: "Last name", Kind: KindText, Required: true, MaxLength: 50},
		{Name: "email", Label: "Email address", Kind: KindEmail, Required: true},
		{Name: "phone", Label: "Phone number", Kind: KindText, Pattern: `^\d{3}-?\d{3}-?\d{4}$`},
		{Name: "dateOfBirth", Label: "Date of birth", Kind: KindDate, Required: true},
	}
}

func addressFields() []FieldDef {
	return []FieldDef{
		{Name: "street", Label: "Street address", Kind: KindText, Required: true},
		{Name: "apt", Label: "Apt / unit", Kind: KindText},
		{Name: "city", Label: "City", Kind: KindText, Required: true},
		{Name: "state", Label: "State", Kind: KindSelect, Required: true},
		{Name: "zipcode", Label: "ZIP code", Kind: KindText, Required: true, Pattern: `^\d{5}$`, MinLength: 5, MaxLength: 5},
	}
}

func vehicleFields() []FieldDef {
	return []FieldDef{
		{Name: "vehicleYear", Label: "Vehicle year", Kind: KindSelect, Required: true},
		{Name: "vehicleMake", Label: "Make", Kind: KindSelect, Required: true},
		{Name: "vehicleModel", Label: "Model", Kind: KindSelect, Required: true},
		{Name: "vehicleOwnership", Label: "Own or lease", Kind: KindRadio, Options: []string{"own", "lease", "finance"}},
	}
}

func driverFields() []FieldDef {
	return []FieldDef{
		{Name: "gender", Label: "Gender", Kind: KindSelect, Options: []string{"female", "male", "nonbinary", "prefer_not_to_say"}},
		{Name: "maritalStatus", Label: "Marital status", Kind: KindSelect, Options: []string{"single", "married", "divorced", "widowed"}},
		{Name: "licenseAge", Label: "Age first licensed", Kind: KindText, Pattern: `^\d{1,2}$`},
		{Name: "priorInsurance", Label: "Currently insured", Kind: KindRadio, Options: []string{"yes", "no"}},
	}
}

func coverageFields() []FieldDef {
	return []FieldDef{
		{Name: "coverageLevel", Label: "Coverage level", Kind: KindSelect, Required: true, Options: []string{"basic", "standard", "premium"}},
		{Name: "deductible", Label: "Deductible", Kind: KindSelect, Required: true, Options: []string{"250", "500", "1000"}},
	}
}
