package validate

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NonStopMan/vamo-heatos/internal/model"
)

const validJSON = `{
  "version": "1.2.0",
  "id": "lead-1",
  "contact": {"contactInformation": {"salutation": "Frau", "firstName": "Erika", "lastName": "Muster", "phone": "0301234", "email": "erika@example.com"}},
  "building": {
    "buildingInformation": {
      "immoType": "Einfamilienhaus / Zweifamilienhaus",
      "livingSpace": 140,
      "residentialUnits": 1,
      "groundingType": "water_or_gas_pipe",
      "hasSolarThermalSystem": false,
      "installationLocationCeilingHeight": "höher als 199 cm"
    },
    "ownershipRelationships": {"ownershipRelationship": "Eigentümer", "ownerOccupiedHousing": true}
  },
  "heatingSystem": {"systemType": "Wärmepumpe", "consumption": 18000, "consumptionUnit": "Kilowattstunden (kWh)"},
  "project": {
    "timeline": "1-3 Monate",
    "householdIncome": "no_answer",
    "statusOfFoundationConstruction": "Kein Fundament notwendig",
    "additionalDisposal": ["heatpump", "liquid_gas_tank"],
    "pictures": {"outdoorUnitLocation": [{"url": "https://blob.example.com/a.jpg"}]}
  }
}`

func payload(t *testing.T) *model.LeadPayload {
	t.Helper()
	var p model.LeadPayload
	require.NoError(t, json.Unmarshal([]byte(validJSON), &p))
	return &p
}

func ptr[T any](v T) *T { return &v }

func TestLead_Valid(t *testing.T) {
	assert.Empty(t, Lead(payload(t)))
}

func TestLead_Minimal(t *testing.T) {
	p := &model.LeadPayload{
		Version: model.PayloadVersion,
		Contact: &model.Contact{ContactInformation: &model.ContactInformation{
			FirstName: "A", LastName: "B", Phone: "1", Email: "a@b.de",
		}},
	}
	assert.Empty(t, Lead(p))
}

func TestLead_Nil(t *testing.T) {
	assert.Equal(t, []string{"payload is required"}, Lead(nil))
}

func TestLead_FieldRules(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *model.LeadPayload)
		want   string
	}{
		{"wrong version", func(p *model.LeadPayload) { p.Version = "1.1.0" }, "version must be one of the following values: 1.2.0"},
		{"missing contact", func(p *model.LeadPayload) { p.Contact = nil }, "contact should not be empty"},
		{"missing contact information", func(p *model.LeadPayload) { p.Contact.ContactInformation = nil }, "contact.contactInformation should not be empty"},
		{"missing first name", func(p *model.LeadPayload) { p.Contact.ContactInformation.FirstName = "" }, "contact.contactInformation.firstName should not be empty"},
		{"bad email", func(p *model.LeadPayload) { p.Contact.ContactInformation.Email = "nope" }, "contact.contactInformation.email must be an email"},
		{"bad salutation", func(p *model.LeadPayload) { p.Contact.ContactInformation.Salutation = ptr("Herr") }, "contact.contactInformation.salutation must be one of the following values: Frau, Mann, Divers"},
		{"bad immo type", func(p *model.LeadPayload) { p.Building.BuildingInformation.ImmoType = ptr("Villa") }, "building.buildingInformation.immoType must be one of the following values"},
		{"bad disposal item", func(p *model.LeadPayload) { p.Project.AdditionalDisposal = []string{"heatpump", "piano"} }, "project.additionalDisposal[1] must be one of the following values"},
		{"bad picture url", func(p *model.LeadPayload) {
			p.Project.Pictures.OutdoorUnitLocation = []model.Picture{{URL: "not a url"}}
		}, "project.pictures.outdoorUnitLocation[0].url must be a URL address"},
		{"old heating system", func(p *model.LeadPayload) { p.HeatingSystem.ConstructionYearHeatingSystem = ptr(1200.0) }, "heatingSystem.constructionYearHeatingSystem must not be less than 1500"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := payload(t)
			tt.mutate(p)
			issues := Lead(p)
			require.Len(t, issues, 1, issues)
			assert.Contains(t, issues[0], tt.want)
		})
	}
}

func TestLead_EmptyEnumStringRejected(t *testing.T) {
	p := payload(t)
	p.Project.Timeline = ptr("")
	issues := Lead(p)
	require.Len(t, issues, 1)
	assert.Contains(t, issues[0], "project.timeline must be one of the following values: Sofort")
}

func TestLead_ApartmentNeedsHeatingSystem(t *testing.T) {
	p := payload(t)
	p.Building.BuildingInformation.ImmoType = ptr(ImmoTypeApartment)
	assert.Equal(t, []string{"apartmentHeatingSystem is required when immoType is Wohnung"}, Lead(p))

	p.Building.EnergyRelevantInformation = &model.EnergyRelevantInformation{ApartmentHeatingSystem: ptr("No")}
	assert.Empty(t, Lead(p))
}

func TestLead_SolarThermalNeedsKeepDecision(t *testing.T) {
	p := payload(t)
	p.Building.BuildingInformation.HasSolarThermalSystem = ptr(true)
	assert.Equal(t, []string{"shouldKeepSolarThermalSystem is required when hasSolarThermalSystem is true"}, Lead(p))

	p.Project.ShouldKeepSolarThermalSystem = ptr(false)
	assert.Empty(t, Lead(p))
}

func TestLead_SharedOwnershipNeedsDetails(t *testing.T) {
	for _, rel := range []string{OwnershipPartOwner, OwnershipOther} {
		t.Run(rel, func(t *testing.T) {
			p := payload(t)
			p.Building.OwnershipRelationships.OwnershipRelationship = ptr(rel)
			assert.Equal(t, []string{
				"ownershipRelationshipExplanation is required for shared or other ownership",
				"numberOfOwners is required for shared or other ownership",
			}, Lead(p))

			p.Building.OwnershipRelationships.OwnershipRelationshipExplanation = ptr("Erbengemeinschaft")
			p.Building.OwnershipRelationships.NumberOfOwners = ptr(0.0)
			assert.Empty(t, Lead(p))
		})
	}
}

func TestLead_CollectsAllIssues(t *testing.T) {
	p := payload(t)
	p.Contact.ContactInformation.Email = ""
	p.Contact.ContactInformation.Phone = ""
	p.Building.BuildingInformation.HasSolarThermalSystem = ptr(true)
	assert.Len(t, Lead(p), 3)
}
