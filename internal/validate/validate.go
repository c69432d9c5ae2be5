// Package validate checks lead submissions before they are persisted.
package validate

import (
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/NonStopMan/vamo-heatos/internal/model"
)

// Enum value sets referenced by `enum=<name>` struct tags.
var enums = map[string][]string{
	"salutation": {"Frau", "Mann", "Divers"},
	"immoType": {
		"Einfamilienhaus / Zweifamilienhaus", "Doppelhaus / Reihenhaus", "Wohnung",
		"Gewerbe", "Mehrfamilienhaus", "Sonstiges",
	},
	"yesNo":          {"Ja", "Nein"},
	"boilerRoomSize": {"weniger als 4qm", "mehr als 4 qm"},
	"ceilingHeight":  {"niedriger als 180 cm", "180 - 199 cm", "höher als 199 cm"},
	"roomsBetween":   {"no_room", "one_room", "two_rooms_or_more"},
	"buildingLevel":  {"Keller", "Ergeschoss", "Obergeschoss", "Dachgeschoss"},
	"groundingType":  {"water_or_gas_pipe", "grounding_spike_or_foundation", "no_grounding", "unknown"},
	"ownershipRelationship": {
		OwnershipOwner, OwnershipPartOwner, OwnershipOther,
	},
	"ownershipType": {"one_owner", "two_owners", "community_of_owners"},
	"typeOfHeating": {
		"Heizkörper", "Fußbodenheizung", "Heizkörper + Fußbodenheizung", "Nachtspeicherofen", "Sonstiges",
	},
	"locationHeating": {
		"Unterm Dach", "Im Keller", "Im EG", "1.OG", "Dachgeschoss", "Obergeschoss", "Keller", "Erdgeschoss",
	},
	"apartmentHeatingSystem": {"Yes", "No"},
	"showerType":             {"Duschkopf", "Raindance Duschkopf", "Wasserfall-Dusche"},
	"consumptionUnit":        {"Liter (l)", "Kilowattstunden (kWh)"},
	"heatingSystemType": {
		"Fernwärme", "Gasetagenheizung", "Kohle", "Heizöl", "Wärmepumpe", "Erdgas",
		"Flüssiggas", "Pellet-/Holzheizung", "Sonstiges",
	},
	"circulationPump": {"no", "unknown", "yes_but_inactive", "yes_and_active"},
	"waterStation":    {"no", "unknown", "yes", "water_filter_and_pressure_reducer"},
	"projectTimeline": {"Sofort", "1-3 Monate", "3-6 Monate", ">6 Monate"},
	"householdIncome": {"more_than_40k_gross", "less_than_40k_gross", "no_answer"},
	"foundationConstruction": {
		"Vamo", "Kunde", "Kein Fundament notwendig",
	},
	"additionalDisposal": {
		"oil_tank_plastic_up_to_5000l", "oil_tank_plastic_more_than_5000l",
		"oil_tank_steel_up_to_5000l", "oil_tank_steel_more_than_5000l",
		"heatpump", "liquid_gas_tank",
	},
}

const (
	ImmoTypeApartment  = "Wohnung"
	OwnershipOwner     = "Eigentümer"
	OwnershipPartOwner = "Teileigentümer"
	OwnershipOther     = "Sonstiges"
)

var (
	instance *validator.Validate
	once     sync.Once
)

func get() *validator.Validate {
	once.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(jsonName)
		if err := v.RegisterValidation("enum", isEnumMember); err != nil {
			panic(err)
		}
		instance = v
	})
	return instance
}

// Lead validates a submission and returns human-readable issues, or nil when
// the payload is acceptable.
func Lead(p *model.LeadPayload) []string {
	if p == nil {
		return []string{"payload is required"}
	}

	var issues []string
	if err := get().Struct(p); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return []string{err.Error()}
		}
		for _, fe := range verrs {
			issues = append(issues, describe(fe))
		}
	}
	return append(issues, consistency(p)...)
}

// consistency applies rules that span several fields.
func consistency(p *model.LeadPayload) []string {
	var issues []string
	b := p.Building
	if b == nil {
		return nil
	}

	if info := b.BuildingInformation; info != nil {
		if info.ImmoType != nil && *info.ImmoType == ImmoTypeApartment {
			if b.EnergyRelevantInformation == nil || empty(b.EnergyRelevantInformation.ApartmentHeatingSystem) {
				issues = append(issues, "apartmentHeatingSystem is required when immoType is Wohnung")
			}
		}
		if info.HasSolarThermalSystem != nil && *info.HasSolarThermalSystem {
			if p.Project == nil || p.Project.ShouldKeepSolarThermalSystem == nil {
				issues = append(issues, "shouldKeepSolarThermalSystem is required when hasSolarThermalSystem is true")
			}
		}
	}

	if own := b.OwnershipRelationships; own != nil && own.OwnershipRelationship != nil {
		switch *own.OwnershipRelationship {
		case OwnershipPartOwner, OwnershipOther:
			if empty(own.OwnershipRelationshipExplanation) {
				issues = append(issues, "ownershipRelationshipExplanation is required for shared or other ownership")
			}
			if own.NumberOfOwners == nil {
				issues = append(issues, "numberOfOwners is required for shared or other ownership")
			}
		}
	}
	return issues
}

func isEnumMember(fl validator.FieldLevel) bool {
	values, ok := enums[fl.Param()]
	if !ok {
		return false
	}
	return slices.Contains(values, fl.Field().String())
}

func jsonName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	if name == "-" {
		return ""
	}
	return name
}

func describe(fe validator.FieldError) string {
	field := fe.Namespace()
	// Drop the root type name.
	if _, rest, ok := strings.Cut(field, "."); ok {
		field = rest
	}

	switch fe.Tag() {
	case "required":
		return field + " should not be empty"
	case "email":
		return field + " must be an email"
	case "url":
		return field + " must be a URL address"
	case "eq":
		return fmt.Sprintf("%s must be one of the following values: %s", field, fe.Param())
	case "enum":
		return fmt.Sprintf("%s must be one of the following values: %s", field, strings.Join(enums[fe.Param()], ", "))
	case "min":
		return fmt.Sprintf("%s must not be less than %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}

func empty(s *string) bool {
	return s == nil || *s == ""
}
