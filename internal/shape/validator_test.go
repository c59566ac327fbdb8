package shape

import (
	"encoding/json"
	"math/rand"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Harshitk-cp/factgate/internal/domain"
	"github.com/Harshitk-cp/factgate/internal/rules"
)

func float(f float64) *float64 { return &f }

func tourismValidator() *Validator {
	return NewValidator(rules.Default().Constraints)
}

func TestAttractionWithRatingConforms(t *testing.T) {
	g := domain.NewGraph(
		domain.TypeFact("tourism:DubaiAquarium", "tourism:Attraction"),
		domain.NewFact("tourism:DubaiAquarium", "tourism:hasRating", domain.NewDecimal(4.6)),
	)

	report := tourismValidator().Validate(g)

	assert.True(t, report.Conforms)
	assert.Empty(t, report.Violations)
	assert.NotNil(t, report.Violations)
}

func TestRatingAboveMaximum(t *testing.T) {
	g := domain.NewGraph(
		domain.NewFact("tourism:HotelX", "tourism:hasRating", domain.NewDecimal(6.0)),
	)

	report := tourismValidator().Validate(g)

	require.False(t, report.Conforms)
	require.Len(t, report.Violations, 1)
	v := report.Violations[0]
	assert.Equal(t, "tourism:HotelX", v.Subject)
	assert.Equal(t, "tourism:hasRating", v.Property)
	assert.Equal(t, "rating-range", v.ConstraintID)
	assert.Equal(t, domain.ViolationOutOfRange, v.Kind)
	assert.Equal(t, "hasRating 6.0 exceeds maximum 5", v.Reason)
}

func TestRangeBoundsAreClosed(t *testing.T) {
	validator := NewValidator([]domain.Constraint{
		domain.NumericRange{
			ConstraintRef: domain.ConstraintRef{ID: "rating", Property: "ex:rating"},
			Min:           float(0),
			Max:           float(5),
		},
	})

	tests := []struct {
		name     string
		value    domain.Term
		conforms bool
	}{
		{"lower bound", domain.NewDecimal(0), true},
		{"upper bound", domain.NewDecimal(5), true},
		{"integer upper bound", domain.NewInteger(5), true},
		{"just above", domain.NewDecimal(5.0001), false},
		{"negative", domain.NewInteger(-1), false},
		{"non numeric is not a range violation", domain.NewString("five"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := domain.NewGraph(domain.NewFact("ex:x", "ex:rating", tt.value))
			report := validator.Validate(g)
			if report.Conforms != tt.conforms {
				t.Errorf("Conforms = %v, want %v (violations %v)", report.Conforms, tt.conforms, report.Violations)
			}
		})
	}
}

func TestMissingAndWrongTypeAreDistinct(t *testing.T) {
	validator := NewValidator([]domain.Constraint{
		domain.Cardinality{
			ConstraintRef: domain.ConstraintRef{ID: "name-required", TargetClass: "ex:City", Property: "ex:name"},
			Min:           1,
			Max:           -1,
		},
		domain.Datatype{
			ConstraintRef: domain.ConstraintRef{ID: "name-string", Property: "ex:name"},
			Datatype:      domain.TermString,
		},
	})

	missing := validator.Validate(domain.NewGraph(domain.TypeFact("ex:a", "ex:City")))
	require.Len(t, missing.Violations, 1)
	assert.Equal(t, domain.ViolationMissingProperty, missing.Violations[0].Kind)
	assert.Nil(t, missing.Violations[0].Value)

	wrong := validator.Validate(domain.NewGraph(
		domain.TypeFact("ex:a", "ex:City"),
		domain.NewFact("ex:a", "ex:name", domain.NewInteger(7)),
	))
	require.Len(t, wrong.Violations, 1)
	assert.Equal(t, domain.ViolationWrongDatatype, wrong.Violations[0].Kind)
	require.NotNil(t, wrong.Violations[0].Value)
	assert.Equal(t, domain.NewInteger(7), *wrong.Violations[0].Value)
}

func TestCardinalityUpperBound(t *testing.T) {
	validator := NewValidator([]domain.Constraint{
		domain.Cardinality{
			ConstraintRef: domain.ConstraintRef{ID: "one-city", Property: "ex:locatedIn"},
			Max:           1,
		},
	})

	report := validator.Validate(domain.NewGraph(
		domain.NewFact("ex:a", "ex:locatedIn", domain.NewRef("ex:Dubai")),
		domain.NewFact("ex:a", "ex:locatedIn", domain.NewRef("ex:AbuDhabi")),
		domain.NewFact("ex:b", "ex:locatedIn", domain.NewRef("ex:Dubai")),
	))

	require.Len(t, report.Violations, 1)
	assert.Equal(t, "ex:a", report.Violations[0].Subject)
	assert.Equal(t, domain.ViolationTooManyValues, report.Violations[0].Kind)
}

func TestDomainAndObjectClass(t *testing.T) {
	validator := NewValidator([]domain.Constraint{
		domain.Domain{
			ConstraintRef: domain.ConstraintRef{ID: "rating-domain", Property: "ex:rating"},
			Class:         "ex:Attraction",
		},
		domain.ObjectClass{
			ConstraintRef: domain.ConstraintRef{ID: "located-city", Property: "ex:locatedIn"},
			Class:         "ex:City",
		},
	})

	report := validator.Validate(domain.NewGraph(
		domain.NewFact("ex:hotel", "ex:rating", domain.NewDecimal(4)),
		domain.TypeFact("ex:museum", "ex:Attraction"),
		domain.NewFact("ex:museum", "ex:rating", domain.NewDecimal(4)),
		domain.NewFact("ex:museum", "ex:locatedIn", domain.NewRef("ex:Dubai")),
		domain.NewFact("ex:park", "ex:locatedIn", domain.NewRef("ex:Sharjah")),
		domain.TypeFact("ex:Sharjah", "ex:City"),
	))

	require.Len(t, report.Violations, 2)
	assert.Equal(t, "ex:hotel", report.Violations[0].Subject)
	assert.Equal(t, domain.ViolationDomainMismatch, report.Violations[0].Kind)
	assert.Equal(t, "ex:museum", report.Violations[1].Subject)
	assert.Equal(t, domain.ViolationClassMismatch, report.Violations[1].Kind)
}

func TestValidateIsOrderIndependent(t *testing.T) {
	facts := []domain.Fact{
		domain.TypeFact("tourism:Dubai", "tourism:City"),
		domain.NewFact("tourism:Dubai", "tourism:hasPopulation", domain.NewDecimal(3.5)),
		domain.NewFact("tourism:HotelX", "tourism:hasRating", domain.NewDecimal(7)),
		domain.NewFact("tourism:HotelX", "tourism:hasRating", domain.NewDecimal(-1)),
		domain.NewFact("tourism:Museum", "tourism:hasEntryFeeCurrency", domain.NewString("JPY")),
		domain.NewFact("tourism:Museum", "tourism:isFamilyFriendly", domain.NewString("yes")),
		domain.TypeFact("tourism:Museum", "tourism:Attraction"),
		domain.NewFact("tourism:Museum", "tourism:locatedIn", domain.NewRef("tourism:Nowhere")),
	}
	validator := tourismValidator()
	want := validator.Validate(domain.NewGraph(facts...))
	require.False(t, want.Conforms)

	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 20; i++ {
		shuffled := append([]domain.Fact(nil), facts...)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
		assert.Equal(t, want, validator.Validate(domain.NewGraph(shuffled...)))
	}
}

func TestTourismViolationsGolden(t *testing.T) {
	g := domain.NewGraph(
		domain.TypeFact("tourism:Dubai", "tourism:City"),
		domain.NewFact("tourism:HotelX", "tourism:hasRating", domain.NewDecimal(6.0)),
		domain.NewFact("tourism:DubaiAquarium", "tourism:hasEntryFeeCurrency", domain.NewString("GBP")),
		domain.NewFact("tourism:DubaiAquarium", "tourism:hasEntryFeeAmount", domain.NewString("not_a_number")),
	)

	report := tourismValidator().Validate(g)

	data, err := json.MarshalIndent(report, "", "  ")
	require.NoError(t, err)

	gold := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	gold.Assert(t, "tourism_violations", append(data, '\n'))
}
